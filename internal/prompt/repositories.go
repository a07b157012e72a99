package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/ghsecrets/internal/config"
	"github.com/systmms/ghsecrets/internal/validation"
)

const clearField = "-"

// EditRepositories runs an add / edit / remove menu over repos. It returns
// the edited list and true when the user saves, or the original list and
// false when they quit. End of input at the menu counts as quit.
func (p *Prompter) EditRepositories(ctx context.Context, repos []config.RepositoryConfig) ([]config.RepositoryConfig, bool, error) {
	edited := append([]config.RepositoryConfig(nil), repos...)

	for {
		p.listRepositories(edited)
		fmt.Fprint(p.out, "[a]dd, [e]dit, [r]emove, [s]ave, [q]uit: ")
		choice, err := p.readLine(ctx)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return repos, false, nil
			}
			return nil, false, err
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "a", "add":
			repo, err := p.readRepository(ctx, config.RepositoryConfig{})
			if err != nil {
				return nil, false, err
			}
			if conflict := findConflict(edited, repo, -1); conflict != "" {
				fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %s is already configured", conflict))
				continue
			}
			edited = append(edited, repo)
			fmt.Fprintf(p.out, "✓ Added %s\n", repo.DisplayName())

		case "e", "edit":
			i, ok, err := p.pickOne(ctx, edited, "Repository to edit")
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			repo, err := p.readRepository(ctx, edited[i])
			if err != nil {
				return nil, false, err
			}
			if conflict := findConflict(edited, repo, i); conflict != "" {
				fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %s is already configured", conflict))
				continue
			}
			edited[i] = repo
			fmt.Fprintf(p.out, "✓ Updated %s\n", repo.DisplayName())

		case "r", "remove":
			if len(edited) == 0 {
				fmt.Fprintln(p.out, p.warn.Sprint("⚠ Nothing to remove"))
				continue
			}
			fmt.Fprint(p.out, "Repositories to remove (e.g. 1,3-4): ")
			line, err := p.readLine(ctx)
			if err != nil {
				return nil, false, err
			}
			indices, err := ParseSelection(line, len(edited))
			if err != nil {
				fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
				continue
			}
			edited = removeIndices(edited, indices)
			fmt.Fprintf(p.out, "✓ Removed %d repositories\n", len(indices))

		case "s", "save":
			return edited, true, nil

		case "q", "quit":
			return repos, false, nil

		default:
			fmt.Fprintln(p.out, p.warn.Sprintf("⚠ Unknown choice %q", strings.TrimSpace(choice)))
		}
	}
}

func (p *Prompter) listRepositories(repos []config.RepositoryConfig) {
	fmt.Fprintln(p.out, p.info.Sprint("Configured repositories:"))
	if len(repos) == 0 {
		fmt.Fprintln(p.out, "  (none)")
		return
	}
	for i, repo := range repos {
		fmt.Fprintf(p.out, "  %2d. %s\n", i+1, repo.DisplayName())
	}
}

// pickOne reads a single entry number. ok is false after an invalid answer.
func (p *Prompter) pickOne(ctx context.Context, repos []config.RepositoryConfig, label string) (int, bool, error) {
	if len(repos) == 0 {
		fmt.Fprintln(p.out, p.warn.Sprint("⚠ No repositories configured"))
		return 0, false, nil
	}
	fmt.Fprintf(p.out, "%s (1-%d): ", label, len(repos))
	line, err := p.readLine(ctx)
	if err != nil {
		return 0, false, err
	}
	indices, err := ParseSelection(line, len(repos))
	if err == nil && len(indices) != 1 {
		err = errors.New("choose exactly one repository")
	}
	if err != nil {
		fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
		return 0, false, nil
	}
	return indices[0], true, nil
}

// readRepository asks for each field, offering current values as defaults
func (p *Prompter) readRepository(ctx context.Context, current config.RepositoryConfig) (config.RepositoryConfig, error) {
	owner, err := p.readField(ctx, "Owner", current.Owner, validation.Owner)
	if err != nil {
		return config.RepositoryConfig{}, err
	}
	name, err := p.readField(ctx, "Name", current.Name, validation.RepoName)
	if err != nil {
		return config.RepositoryConfig{}, err
	}
	alias, err := p.readField(ctx, "Alias (optional, - to clear)", current.Alias, nil)
	if err != nil {
		return config.RepositoryConfig{}, err
	}
	if alias == clearField {
		alias = ""
	}
	return config.RepositoryConfig{Owner: owner, Name: name, Alias: alias}, nil
}

func (p *Prompter) readField(ctx context.Context, label, current string, check func(string) error) (string, error) {
	for {
		if current != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", label, current)
		} else {
			fmt.Fprintf(p.out, "%s: ", label)
		}
		line, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}

		value := strings.TrimSpace(line)
		if value == "" {
			value = current
		}
		if check != nil {
			if err := check(value); err != nil {
				fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
				continue
			}
		}
		return value, nil
	}
}

// findConflict names the entry that repo would duplicate by path or alias,
// ignoring the entry at skip.
func findConflict(repos []config.RepositoryConfig, repo config.RepositoryConfig, skip int) string {
	for i, existing := range repos {
		if i == skip {
			continue
		}
		if existing.Path() == repo.Path() {
			return existing.Path()
		}
		if repo.Alias != "" && existing.Alias == repo.Alias {
			return fmt.Sprintf("alias %q", repo.Alias)
		}
	}
	return ""
}

func removeIndices(repos []config.RepositoryConfig, indices []int) []config.RepositoryConfig {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := make([]config.RepositoryConfig, 0, len(repos)-len(indices))
	for i, repo := range repos {
		if !drop[i] {
			kept = append(kept, repo)
		}
	}
	return kept
}
