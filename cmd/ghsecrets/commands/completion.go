package commands

import (
	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ghsecrets.

To load completions:

Bash:
  $ source <(ghsecrets completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ ghsecrets completion zsh > "${fpath[1]}/_ghsecrets"

Fish:
  $ ghsecrets completion fish > ~/.config/fish/completions/ghsecrets.fish

PowerShell:
  PS> ghsecrets completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(app.Out)
			case "zsh":
				return cmd.Root().GenZshCompletion(app.Out)
			case "fish":
				return cmd.Root().GenFishCompletion(app.Out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(app.Out)
			}
			return nil
		},
	}

	return cmd
}
