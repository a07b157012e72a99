package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/internal/history"
)

// NewHistoryCommand shows reports of previous batches
func NewHistoryCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [report-or-batch-id]",
		Short: "Show previous batch reports",
		Long: `List recent batch reports, or show one report in detail.

Reports record repositories, secret names and outcomes. Secret values are
never stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				report, err := app.History.Get(args[0])
				if err != nil {
					return err
				}
				return printReport(app, report)
			}

			reports, err := app.History.List(limit)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintf(app.Out, "No batch reports in %s\n", app.History.Dir())
				return nil
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tBATCH\tROUND\tTOTAL\tOK\tSKIPPED\tFAILED")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					humanize.Time(r.StartedAt), shortID(r.BatchID), r.Round,
					r.Totals.Total, r.Totals.Successful, r.Totals.Skipped, r.Totals.Failed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of reports to list (0 for all)")
	return cmd
}

func printReport(app *App, r *history.Report) error {
	fmt.Fprintf(app.Out, "Report %s (batch %s, round %d)\n", r.ID, r.BatchID, r.Round)
	fmt.Fprintf(app.Out, "Started %s, took %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt))
	if r.Aborted {
		fmt.Fprintln(app.Out, "Aborted after an authentication failure")
	}
	fmt.Fprintln(app.Out)

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tSECRET\tOUTCOME\tATTEMPT\tERROR")
	for _, e := range r.Entries {
		detail := "-"
		if e.ErrorKind != "" {
			detail = e.ErrorKind + ": " + e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Repository, e.SecretKey, e.Outcome, e.Attempt, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "\n%d total, %d successful, %d skipped, %d failed\n",
		r.Totals.Total, r.Totals.Successful, r.Totals.Skipped, r.Totals.Failed)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
