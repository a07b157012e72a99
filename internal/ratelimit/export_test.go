package ratelimit

import (
	"context"
	"time"
)

// WithClock swaps the time source and sleeper for tests.
func (o Options) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Options {
	o.now = now
	o.sleep = sleep
	return o
}
