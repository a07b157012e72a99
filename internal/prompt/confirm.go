package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/systmms/ghsecrets/internal/update"
)

// Confirmer asks on the terminal before an existing secret is overwritten
type Confirmer struct {
	p *Prompter
}

// Confirmer returns a confirmation source backed by p
func (p *Prompter) Confirmer() *Confirmer {
	return &Confirmer{p: p}
}

// Confirm implements update.ConfirmationSource. y approves, q aborts the
// round, anything else (including end of input) declines.
func (c *Confirmer) Confirm(ctx context.Context, req update.ConfirmationRequest) (update.Decision, error) {
	p := c.p
	msg := fmt.Sprintf("\n⚠ Secret '%s' already exists in %s", req.SecretKey, req.Repository.DisplayName())
	if req.PreviousUpdate != nil {
		msg += fmt.Sprintf(" (last updated %s)", FormatAge(*req.PreviousUpdate, p.now()))
	}
	fmt.Fprint(p.out, p.warn.Sprint(msg+". Overwrite? [y/N/q]: "))

	answer, err := p.readLine(ctx)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return update.Decline, nil
		}
		return update.Decline, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return update.Approve, nil
	case "q", "quit", "abort":
		return update.Abort, nil
	default:
		return update.Decline, nil
	}
}

// FormatAge renders t relative to now, e.g. "3 days ago"
func FormatAge(t, now time.Time) string {
	if now.Sub(t) < time.Minute && !t.After(now) {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

var _ update.ConfirmationSource = (*Confirmer)(nil)
