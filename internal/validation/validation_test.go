package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "upper", input: "MY_SECRET"},
		{name: "lower", input: "api_key"},
		{name: "leading underscore", input: "_PRIVATE"},
		{name: "digits", input: "SECRET_KEY_123"},
		{name: "max length", input: strings.Repeat("A", MaxSecretNameLength)},
		{name: "empty", input: "", wantErr: "cannot be empty"},
		{name: "too long", input: strings.Repeat("A", MaxSecretNameLength+1), wantErr: "at most 100"},
		{name: "spaces", input: "secret with spaces", wantErr: "letters, digits and underscores"},
		{name: "symbol", input: "secret@invalid", wantErr: "letters, digits and underscores"},
		{name: "hyphen", input: "my-secret", wantErr: "letters, digits and underscores"},
		{name: "leading digit", input: "1SECRET", wantErr: "must not start with a digit"},
		{name: "reserved prefix", input: "GITHUB_TOKEN", wantErr: "reserved prefix"},
		{name: "reserved prefix lowercase", input: "github_token", wantErr: "reserved prefix"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := SecretName(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestSecretValue(t *testing.T) {
	t.Parallel()

	assert.NoError(t, SecretValue([]byte("x")))
	assert.Error(t, SecretValue(nil))
	assert.Error(t, SecretValue([]byte{}))
	assert.NoError(t, SecretValue(make([]byte, MaxSecretValueSize)))
	assert.Error(t, SecretValue(make([]byte, MaxSecretValueSize+1)))
}

func TestOwnerAndRepoName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Owner("acme"))
	assert.NoError(t, Owner(strings.Repeat("a", MaxOwnerLength)))
	assert.Error(t, Owner(""))
	assert.Error(t, Owner("   "))
	assert.Error(t, Owner(strings.Repeat("a", MaxOwnerLength+1)))
	assert.Error(t, Owner(" acme"))

	assert.NoError(t, RepoName("api"))
	assert.NoError(t, RepoName(strings.Repeat("r", MaxRepoNameLength)))
	assert.Error(t, RepoName(""))
	assert.Error(t, RepoName(strings.Repeat("r", MaxRepoNameLength+1)))
}

func TestToken(t *testing.T) {
	t.Parallel()

	valid := "ghp_" + strings.Repeat("a", 36)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "classic", token: valid},
		{name: "surrounding whitespace trimmed", token: "  " + valid + "\n"},
		{name: "empty", token: "", wantErr: true},
		{name: "too short", token: "abc123xyz", wantErr: true},
		{name: "too long", token: strings.Repeat("a", MaxTokenLength+1), wantErr: true},
		{name: "inner whitespace", token: "ghp_aaaaaaaaaa aaaaaaaaaaaaaaa", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Token(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				if tt.token != "" {
					assert.NotContains(t, err.Error(), strings.TrimSpace(tt.token))
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseRepository(t *testing.T) {
	t.Parallel()

	owner, name, err := ParseRepository("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", name)

	for _, bad := range []string{"", "acme", "acme/", "/api", "a/b/c"} {
		_, _, err := ParseRepository(bad)
		assert.Error(t, err, bad)
	}
}
