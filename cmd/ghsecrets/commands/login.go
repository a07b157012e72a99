package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/internal/config"
	ghserrors "github.com/systmms/ghsecrets/internal/errors"
	"github.com/systmms/ghsecrets/internal/github"
	"github.com/systmms/ghsecrets/internal/validation"
)

// NewLoginCommand stores a token in the OS keyring
func NewLoginCommand(app *App) *cobra.Command {
	var (
		apiURL   string
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a GitHub token in the OS keyring",
		Long: `Read a GitHub token without echo and store it in the OS keyring for the
configured API host.

The token needs the 'repo' scope (classic) or the 'Secrets: write'
repository permission (fine-grained).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def := loginDefinition(app, apiURL)
			host := github.Host(def.BaseURL())

			token, err := app.prompter().Token(ctx)
			if err != nil {
				return err
			}
			if err := validation.Token(token); err != nil {
				return ghserrors.UserError{Message: "Invalid token", Details: err.Error(), Err: err}
			}
			app.logger().RedactValues(token)

			if !noVerify {
				client, err := app.NewClient(def, token, app.newLimiter(def), app.logger())
				if err != nil {
					return err
				}
				status, err := client.RateLimit(ctx)
				if err != nil {
					return ghserrors.GitHubError("token verification", err)
				}
				app.logger().Debug("Token accepted, %d/%d requests remaining", status.Remaining, status.Limit)
			}

			if err := app.Tokens.Set(host, token); err != nil {
				return ghserrors.UserError{
					Message:    "Failed to store token",
					Details:    err.Error(),
					Suggestion: "Make sure a keyring service is running, or export GITHUB_TOKEN instead",
					Err:        err,
				}
			}
			fmt.Fprintf(app.Out, "Token stored for %s\n", host)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "GitHub API base URL (default from configuration)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Store the token without calling the API")
	return cmd
}

// NewLogoutCommand removes the stored token
func NewLogoutCommand(app *App) *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored GitHub token from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := github.Host(loginDefinition(app, apiURL).BaseURL())
			if err := app.Tokens.Delete(host); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Token removed for %s\n", host)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "GitHub API base URL (default from configuration)")
	return cmd
}

// loginDefinition uses the configuration when it loads, since login may
// run before a configuration file exists.
func loginDefinition(app *App, apiURL string) *config.Definition {
	def := &config.Definition{}
	if err := app.loadConfig(); err == nil {
		copied := *app.Config.Definition
		def = &copied
	} else {
		app.logger().Debug("No configuration loaded: %v", err)
	}
	if apiURL != "" {
		def.APIURL = apiURL
	}
	return def
}
