package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/systmms/ghsecrets/internal/update"
)

// ErrNoSelection is returned when no repository was chosen
var ErrNoSelection = errors.New("no repositories selected")

// SelectRepositories lists repos and reads a selection. A single
// repository is selected without asking.
func (p *Prompter) SelectRepositories(ctx context.Context, repos []update.Repository) ([]update.Repository, error) {
	if len(repos) == 0 {
		return nil, ErrNoSelection
	}
	if len(repos) == 1 {
		fmt.Fprintf(p.out, "%s %s\n", p.info.Sprint("Using repository:"), repos[0].DisplayName())
		return repos, nil
	}

	fmt.Fprintln(p.out, p.info.Sprint("Repositories:"))
	for i, repo := range repos {
		fmt.Fprintf(p.out, "  %2d. %s\n", i+1, repo.DisplayName())
	}

	for {
		fmt.Fprint(p.out, "Select repositories (e.g. 1,3-4 or a for all): ")
		line, err := p.readLine(ctx)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil, ErrNoSelection
			}
			return nil, err
		}

		indices, err := ParseSelection(line, len(repos))
		if err != nil {
			fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
			continue
		}

		selected := make([]update.Repository, 0, len(indices))
		for _, i := range indices {
			selected = append(selected, repos[i])
		}
		return selected, nil
	}
}

// ParseSelection turns "1,3-4" or "a" into zero-based indices in list
// order, without duplicates. n is the number of choices.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil, ErrNoSelection
	}
	if input == "a" || input == "all" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	chosen := make([]bool, n)
	for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if lo < 1 || hi > n || lo > hi {
			return nil, fmt.Errorf("selection %q is out of range 1-%d", part, n)
		}
		for i := lo; i <= hi; i++ {
			chosen[i-1] = true
		}
	}

	var indices []int
	for i, ok := range chosen {
		if ok {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, ErrNoSelection
	}
	return indices, nil
}

func parseRange(part string) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid selection %q", part)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid selection %q", part)
	}
	return lo, hi, nil
}
