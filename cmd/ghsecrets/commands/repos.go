package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewReposCommand lists the configured repositories
func NewReposCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.loadConfig(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tREPOSITORY\tALIAS")
			for i, repo := range app.Config.Definition.Repositories {
				alias := repo.Alias
				if alias == "" {
					alias = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, repo.Path(), alias)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			app.logger().Debug("Configuration: %s", app.Config.Path)
			return nil
		},
	}
}
