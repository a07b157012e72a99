package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/internal/config"
	ghserrors "github.com/systmms/ghsecrets/internal/errors"
)

// NewConfigCommand edits the repository list interactively
func NewConfigCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Add, edit or remove configured repositories",
		Long: `Edit the repository list of the configuration file interactively and
save it back. The file found by the usual search (or --config) is edited;
when none exists one is created at that path.

Changes are validated before they are written. Other settings are kept,
but comments in the file are not preserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.Config.Path
			if path == "" {
				path = config.FindPath("")
			}

			if !app.interactive() {
				return ghserrors.UserError{
					Message:    "The config command needs an interactive terminal",
					Suggestion: fmt.Sprintf("Edit %s directly", path),
				}
			}

			def, err := editableDefinition(app, path)
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Err, "Editing %s\n", path)
			repos, save, err := app.prompter().EditRepositories(cmd.Context(), def.Repositories)
			if err != nil {
				return err
			}
			if !save {
				fmt.Fprintln(app.Out, "No changes saved")
				return nil
			}

			def.Repositories = repos
			if err := config.Save(path, def); err != nil {
				return err
			}
			app.Config.Path = path
			app.Config.Definition = def
			fmt.Fprintf(app.Out, "Saved %d repositories to %s\n", len(repos), path)
			return nil
		},
	}
}

// editableDefinition loads the file at path, or starts an empty definition
// when it does not exist yet. An invalid file is an error.
func editableDefinition(app *App, path string) (*config.Definition, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		app.logger().Info("No configuration at %s, a new file will be created", path)
		return &config.Definition{}, nil
	}

	cfg := &config.Config{Path: path, Logger: app.logger()}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg.Definition, nil
}
