package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/update"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	skipMark = color.New(color.FgYellow).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	heading  = color.New(color.Bold).SprintFunc()
)

// progressPrinter prints one line per finished operation
type progressPrinter struct {
	out    io.Writer
	logger *logging.Logger
}

func (p *progressPrinter) StateChanged(repo update.Repository, key string, state update.State) {
	p.logger.Debug("%s %s: %s", repo.Path(), key, state)
}

func (p *progressPrinter) Completed(r update.OperationResult) {
	fmt.Fprintln(p.out, resultLine(r))
}

func resultLine(r update.OperationResult) string {
	target := fmt.Sprintf("%s %s", r.Repository.DisplayName(), r.SecretKey)
	switch r.Outcome {
	case update.OutcomeSuccess:
		verb := "created"
		if r.PreviouslyExisted {
			verb = "updated"
		}
		return fmt.Sprintf("%s %s: %s (%s)", okMark("✓"), target, verb, r.Duration.Round(time.Millisecond))
	case update.OutcomeSkipped:
		return fmt.Sprintf("%s %s: skipped, secret already exists", skipMark("-"), target)
	default:
		return fmt.Sprintf("%s %s: %s", failMark("✗"), target, r.Err)
	}
}

func printSummary(w io.Writer, results []update.OperationResult) update.Summary {
	s := update.Fold(results)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d total, %d successful, %d skipped, %d failed\n",
		heading("Summary:"), s.Total, s.Successful, s.Skipped, s.Failed)

	if len(s.Repositories) > 1 {
		for _, repo := range s.Repositories {
			c := s.PerRepository[repo]
			fmt.Fprintf(w, "  %s: %d successful, %d skipped, %d failed\n",
				repo.DisplayName(), c.Successful, c.Skipped, c.Failed)
		}
	}

	if failures := update.Failures(results); len(failures) > 0 {
		fmt.Fprintln(w, heading("Failed operations:"))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s %s: %s\n", f.Repository.DisplayName(), f.SecretKey, f.Err)
		}
	}
	return s
}
