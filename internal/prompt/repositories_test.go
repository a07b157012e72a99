package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/ghsecrets/internal/config"
)

var configuredRepos = []config.RepositoryConfig{
	{Owner: "acme", Name: "api", Alias: "API"},
	{Owner: "acme", Name: "web"},
	{Owner: "acme", Name: "ops"},
}

func TestEditRepositories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantSaved bool
		want      []config.RepositoryConfig
		wantOut   string
	}{
		{
			name:      "add",
			input:     "a\nacme\ncli\nCLI\ns\n",
			wantSaved: true,
			want:      append(append([]config.RepositoryConfig(nil), configuredRepos...), config.RepositoryConfig{Owner: "acme", Name: "cli", Alias: "CLI"}),
			wantOut:   "Added CLI (acme/cli)",
		},
		{
			name:      "add retries invalid owner",
			input:     "a\n" + strings.Repeat("o", 40) + "\nacme\ndocs\n\ns\n",
			wantSaved: true,
			want:      append(append([]config.RepositoryConfig(nil), configuredRepos...), config.RepositoryConfig{Owner: "acme", Name: "docs"}),
			wantOut:   "must be at most 39 characters",
		},
		{
			name:      "add duplicate is rejected",
			input:     "a\nacme\nweb\n\ns\n",
			wantSaved: true,
			want:      configuredRepos,
			wantOut:   "acme/web is already configured",
		},
		{
			name:      "add duplicate alias is rejected",
			input:     "a\nacme\nnew\nAPI\ns\n",
			wantSaved: true,
			want:      configuredRepos,
			wantOut:   `alias "API" is already configured`,
		},
		{
			name:      "edit keeps defaults and clears alias",
			input:     "e\n1\n\nbackend\n-\ns\n",
			wantSaved: true,
			want: []config.RepositoryConfig{
				{Owner: "acme", Name: "backend"},
				configuredRepos[1],
				configuredRepos[2],
			},
			wantOut: "Owner [acme]: ",
		},
		{
			name:      "edit needs exactly one entry",
			input:     "e\n1-2\ns\n",
			wantSaved: true,
			want:      configuredRepos,
			wantOut:   "choose exactly one repository",
		},
		{
			name:      "remove range",
			input:     "r\n1,3\ns\n",
			wantSaved: true,
			want:      []config.RepositoryConfig{configuredRepos[1]},
			wantOut:   "Removed 2 repositories",
		},
		{
			name:      "remove out of range",
			input:     "r\n9\ns\n",
			wantSaved: true,
			want:      configuredRepos,
			wantOut:   "out of range",
		},
		{
			name:      "quit discards changes",
			input:     "r\n1\nq\n",
			wantSaved: false,
			want:      configuredRepos,
		},
		{
			name:      "end of input discards changes",
			input:     "r\n1\n",
			wantSaved: false,
			want:      configuredRepos,
		},
		{
			name:      "unknown choice",
			input:     "x\ns\n",
			wantSaved: true,
			want:      configuredRepos,
			wantOut:   `Unknown choice "x"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, out := newTestPrompter(tt.input)
			got, saved, err := p.EditRepositories(context.Background(), configuredRepos)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSaved, saved)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), tt.wantOut)
			assert.Len(t, configuredRepos, 3)
		})
	}
}

func TestEditRepositoriesEmptyList(t *testing.T) {
	t.Parallel()

	p, out := newTestPrompter("r\ne\na\nacme\napi\n\ns\n")
	got, saved, err := p.EditRepositories(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, saved)
	assert.Equal(t, []config.RepositoryConfig{{Owner: "acme", Name: "api"}}, got)
	assert.Contains(t, out.String(), "(none)")
	assert.Contains(t, out.String(), "Nothing to remove")
	assert.Contains(t, out.String(), "No repositories configured")
}

func TestEditRepositoriesEndOfInputInField(t *testing.T) {
	t.Parallel()

	p, _ := newTestPrompter("a\nacme\n")
	_, _, err := p.EditRepositories(context.Background(), configuredRepos)
	assert.ErrorIs(t, err, ErrCancelled)
}
