package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/internal/prompt"
	"github.com/systmms/ghsecrets/pkg/sealedbox"
)

// CheckResult is one line of the doctor report
type CheckResult struct {
	Name    string
	OK      bool
	Details string
}

// NewDoctorCommand checks configuration, token and repository access
func NewDoctorCommand(app *App) *cobra.Command {
	var tokenEnv string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, token and repository access",
		Long: `Verify that ghsecrets can do its job.

This command checks:
- Configuration file validity
- Token availability and validity
- Remaining API rate limit
- Public key access for every configured repository`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := app.logger()
			var results []CheckResult

			if err := app.loadConfig(); err != nil {
				logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			def := app.Config.Definition
			results = append(results, CheckResult{
				Name:    "configuration",
				OK:      true,
				Details: fmt.Sprintf("%s (%d repositories)", app.Config.Path, len(def.Repositories)),
			})

			client, err := app.connect(def, tokenEnv)
			if err != nil {
				results = append(results, CheckResult{Name: "token", Details: err.Error()})
				return reportChecks(app, results)
			}

			_, stop := prompt.StartSpinner(app.Err, "Contacting GitHub...", app.interactive() && !logger.DebugEnabled())

			status, err := client.RateLimit(ctx)
			if err != nil {
				results = append(results, CheckResult{Name: "token", Details: err.Error()})
				stop("")
				return reportChecks(app, results)
			}
			results = append(results,
				CheckResult{Name: "token", OK: true, Details: "accepted by " + def.BaseURL()},
				CheckResult{
					Name: "rate limit",
					OK:   status.Remaining > 0,
					Details: fmt.Sprintf("%d/%d remaining, resets %s",
						status.Remaining, status.Limit, humanize.Time(status.Reset)),
				},
			)

			for _, repo := range toRepositories(def.Repositories) {
				check := CheckResult{Name: repo.DisplayName()}
				key, err := client.GetPublicKey(ctx, repo.Owner, repo.Name)
				switch {
				case err != nil:
					check.Details = err.Error()
				default:
					if _, perr := sealedbox.ParsePublicKey(key.Key); perr != nil {
						check.Details = perr.Error()
					} else {
						check.OK = true
						check.Details = "public key " + key.KeyID
					}
				}
				results = append(results, check)
			}
			stop("")

			return reportChecks(app, results)
		},
	}

	cmd.Flags().StringVar(&tokenEnv, "token-env", "", "Environment variable holding the GitHub token")
	return cmd
}

func reportChecks(app *App, results []CheckResult) error {
	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tDETAILS")

	healthy := 0
	for _, r := range results {
		status := failMark("✗ failed")
		if r.OK {
			status = okMark("✓ ok")
			healthy++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Details)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "\nSummary: %d/%d checks passed (%s)\n", healthy, len(results), time.Now().Format(time.Kitchen))
	if healthy != len(results) {
		return fmt.Errorf("%d check(s) failed", len(results)-healthy)
	}
	return nil
}
