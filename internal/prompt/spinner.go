package prompt

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StartSpinner shows message with a spinner on w until the returned stop
// function is called. stop prints final, if any, on its own line. When
// enabled is false nothing is drawn.
func StartSpinner(w io.Writer, message string, enabled bool) (*spinner.Spinner, func(final string)) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	_ = s.Color("cyan")

	if enabled {
		s.Start()
	}

	return s, func(final string) {
		if enabled {
			s.Stop()
		}
		if final != "" {
			_, _ = io.WriteString(w, final+"\n")
		}
	}
}
