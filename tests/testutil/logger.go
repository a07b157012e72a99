package testutil

import (
	"bytes"
	"sync"
	"testing"

	"github.com/systmms/ghsecrets/internal/logging"
)

// syncBuffer guards a bytes.Buffer for loggers shared across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestLogger is a colorless logging.Logger whose output can be inspected.
//
// Example usage:
//
//	logger := NewTestLogger(t, false)
//	logger.Info("token %s", token)
//	AssertSecretRedacted(t, logger.Output(), token)
type TestLogger struct {
	*logging.Logger
	out *syncBuffer
}

// NewTestLogger creates a logger capturing everything it writes.
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	out := &syncBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(out, debug, true),
		out:    out,
	}
}

// Output returns everything logged so far.
func (l *TestLogger) Output() string {
	return l.out.String()
}
