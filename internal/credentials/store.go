// Package credentials resolves the GitHub API token from the environment or
// the OS keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/ghsecrets/internal/validation"
)

// Service is the keyring service name tokens are stored under
const Service = "ghsecrets"

// Default token environment variables, checked in order
const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvGHToken     = "GH_TOKEN"
)

// ErrNoToken is returned when no token source yields a value
var ErrNoToken = errors.New("no GitHub token found")

// ErrTokenNotFound is returned when the keyring has no entry for a host
var ErrTokenNotFound = errors.New("token not found in keyring")

// Source names where a resolved token came from
type Source string

const (
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
)

// Store keeps one token per API host in the OS keyring
type Store struct {
	service string
}

// NewStore returns a keyring-backed token store
func NewStore() *Store {
	return &Store{service: Service}
}

// Get returns the token stored for host
func (s *Store) Get(host string) (string, error) {
	token, err := keyring.Get(s.service, host)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("keyring read failed: %w", err)
	}
	return token, nil
}

// Set validates and stores a token for host
func (s *Store) Set(host, token string) error {
	token = strings.TrimSpace(token)
	if err := validation.Token(token); err != nil {
		return err
	}
	if err := keyring.Set(s.service, host, token); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}
	return nil
}

// Delete removes the token for host. Deleting a missing entry is not an error.
func (s *Store) Delete(host string) error {
	if err := keyring.Delete(s.service, host); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}

// Resolver finds the token for a run
type Resolver struct {
	// EnvVar overrides the default environment variables when set
	EnvVar string
	Store  *Store
	Getenv func(string) string
}

// Resolve returns the token and where it was found. The named variable
// wins, then GITHUB_TOKEN and GH_TOKEN, then the keyring entry for host.
func (r *Resolver) Resolve(host string) (string, Source, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	vars := []string{EnvGitHubToken, EnvGHToken}
	if r.EnvVar != "" {
		vars = []string{r.EnvVar}
	}
	for _, name := range vars {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			if err := validation.Token(v); err != nil {
				return "", "", fmt.Errorf("%s: %w", name, err)
			}
			return v, SourceEnv, nil
		}
	}

	store := r.Store
	if store == nil {
		store = NewStore()
	}
	token, err := store.Get(host)
	if err == nil {
		if err := validation.Token(token); err != nil {
			return "", "", fmt.Errorf("keyring entry for %s: %w", host, err)
		}
		return token, SourceKeyring, nil
	}
	if errors.Is(err, ErrTokenNotFound) {
		return "", "", fmt.Errorf("%w for %s", ErrNoToken, host)
	}
	return "", "", err
}
