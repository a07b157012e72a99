// Package prompt implements the line-oriented terminal interactions:
// repository selection, hidden secret entry and overwrite confirmation.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ErrCancelled is returned when input ends before a required answer
var ErrCancelled = errors.New("input cancelled")

// Prompter reads answers from in and writes questions to out
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// ReadHidden reads one line without echo. Nil falls back to the
	// terminal when in is one, otherwise to a plain line read.
	ReadHidden func() ([]byte, error)

	now  func() time.Time
	warn *color.Color
	info *color.Color
}

// New creates a prompter over in and out
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:   bufio.NewReader(in),
		out:  out,
		now:  time.Now,
		warn: color.New(color.FgYellow),
		info: color.New(color.FgCyan),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.ReadHidden = func() ([]byte, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return b, err
		}
	}
	return p
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrCancelled
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) readHidden(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ReadHidden != nil {
		return p.ReadHidden()
	}
	line, err := p.readLine(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// YesNo asks a y/N question. Anything but y or yes is no.
func (p *Prompter) YesNo(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.out, p.warn.Sprintf("%s (y/N): ", question))
	answer, err := p.readLine(ctx)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return false, nil
		}
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// ConfirmRetry asks whether failed operations should be retried
func (p *Prompter) ConfirmRetry(ctx context.Context, failures int) (bool, error) {
	noun := "operation"
	if failures != 1 {
		noun = "operations"
	}
	return p.YesNo(ctx, fmt.Sprintf("\nRetry %d failed %s?", failures, noun))
}

// Token reads an API token without echo
func (p *Prompter) Token(ctx context.Context) (string, error) {
	fmt.Fprint(p.out, "GitHub token: ")
	b, err := p.readHidden(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
