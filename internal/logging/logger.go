package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Logger writes human-oriented status lines with redaction support
type Logger struct {
	debug bool
	out   io.Writer
	mu    sync.Mutex

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	trace *color.Color

	redactions []string
}

// New creates a new logger writing to stderr
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger that writes to w
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	l := &Logger{
		debug: debug,
		out:   w,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		trace: color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{l.ok, l.warn, l.fail, l.trace} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{l.ok, l.warn, l.fail, l.trace} {
			c.EnableColor()
		}
	}
	return l
}

// Discard returns a logger that drops everything. Handy for tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false, true)
}

// RedactValues registers values that must never appear in output,
// such as the API token.
func (l *Logger) RedactValues(values ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redactions = append(l.redactions, values...)
}

// DebugEnabled reports whether debug output is on
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(l.ok.Sprint("✓"), format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(l.warn.Sprint("⚠"), format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(l.fail.Sprint("✗"), format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit(l.trace.Sprint("[DEBUG]"), format, args...)
}

func (l *Logger) emit(prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Redact(fmt.Sprintf(format, args...), l.redactions)
	fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
