// Package ratelimit mirrors GitHub's per-token request budget on the
// client so a batch suspends at the window boundary instead of being
// rejected. One Limiter is created per batch and handed to every
// component that issues requests.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/systmms/ghsecrets/internal/logging"
)

// DefaultMaxWait bounds how long Acquire suspends for a window reset.
const DefaultMaxWait = 15 * time.Minute

// ErrBudgetExhausted is wrapped by errors returned when the budget cannot
// be restored within MaxWait.
var ErrBudgetExhausted = errors.New("rate limit budget exhausted")

// WaitTooLongError reports a reset that lies beyond MaxWait.
type WaitTooLongError struct {
	Wait    time.Duration
	MaxWait time.Duration
	Reset   time.Time
}

func (e *WaitTooLongError) Error() string {
	return fmt.Sprintf("rate limit resets in %s (at %s), longer than the %s maximum wait",
		e.Wait.Round(time.Second), e.Reset.Format(time.RFC3339), e.MaxWait)
}

func (e *WaitTooLongError) Unwrap() error {
	return ErrBudgetExhausted
}

// Options configures a Limiter. Zero values select defaults.
type Options struct {
	// MaxWait caps a single suspension. Zero means DefaultMaxWait.
	MaxWait time.Duration
	// RequestsPerSecond enables a steady pace on top of the window budget.
	// Zero disables pacing.
	RequestsPerSecond float64
	// OnWait is called before each suspension for a window reset.
	OnWait func(time.Duration)
	Logger *logging.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Budget is a point-in-time view of the limiter state.
type Budget struct {
	Known     bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter tracks the remaining request budget for the current window.
type Limiter struct {
	mu        sync.Mutex
	known     bool
	limit     int
	remaining int
	reset     time.Time

	maxWait time.Duration
	pacer   *rate.Limiter
	onWait  func(time.Duration)
	logger  *logging.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// New creates a limiter with an unknown budget. Calls are admitted until
// the first response reports the real one.
func New(opts Options) *Limiter {
	l := &Limiter{
		maxWait: opts.MaxWait,
		onWait:  opts.OnWait,
		logger:  opts.Logger,
		now:     opts.now,
		sleep:   opts.sleep,
	}
	if l.maxWait <= 0 {
		l.maxWait = DefaultMaxWait
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.sleep == nil {
		l.sleep = sleepContext
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		l.pacer = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return l
}

// Acquire takes one permit, suspending until the window resets when the
// budget is spent. It fails with a *WaitTooLongError when the reset is
// further away than MaxWait, or with the context error if ctx ends first.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		if !l.known || l.remaining > 0 {
			if l.known {
				l.remaining--
			}
			l.mu.Unlock()
			break
		}

		now := l.now()
		if !now.Before(l.reset) {
			l.refill()
			l.mu.Unlock()
			continue
		}

		wait := l.reset.Sub(now)
		reset := l.reset
		l.mu.Unlock()

		if wait > l.maxWait {
			return &WaitTooLongError{Wait: wait, MaxWait: l.maxWait, Reset: reset}
		}

		l.logger.Warn("Rate limit reached, waiting %s for reset", wait.Round(time.Second))
		if l.onWait != nil {
			l.onWait(wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if l.pacer != nil {
		return l.pacer.Wait(ctx)
	}
	return nil
}

// refill starts a new window after the reset time passed. Callers hold mu.
func (l *Limiter) refill() {
	if l.limit > 0 {
		l.remaining = l.limit
		return
	}
	// Limit never reported; admit calls until a response says otherwise.
	l.known = false
}

// Observe refreshes the budget from the rate-limit headers of a real
// response. Within one window the lower of the local and reported counts
// wins, so responses arriving out of order never widen the budget.
func (l *Limiter) Observe(h http.Header) {
	info, ok := ParseHeaders(h)
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if info.Limit > 0 {
		l.limit = info.Limit
	}
	if l.known && info.Reset.Equal(l.reset) && info.Remaining > l.remaining {
		return
	}
	if l.known && info.Reset.Before(l.reset) {
		return
	}
	l.known = true
	l.remaining = info.Remaining
	l.reset = info.Reset
	l.logger.Debug("Rate limit: %d/%d remaining, resets %s", l.remaining, l.limit, l.reset.Format(time.RFC3339))
}

// Throttle applies a rate-limit rejection from the provider. It overrides
// any local tracking.
func (l *Limiter) Throttle(remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	l.known = true
	l.remaining = remaining
	l.reset = reset
	l.logger.Debug("Rate limit rejection: %d remaining until %s", remaining, reset.Format(time.RFC3339))
}

// Snapshot returns the current budget.
func (l *Limiter) Snapshot() Budget {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Budget{Known: l.known, Limit: l.limit, Remaining: l.remaining, Reset: l.reset}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
