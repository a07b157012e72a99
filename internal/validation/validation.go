// Package validation checks user-supplied names before they reach the
// GitHub API.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxSecretNameLength = 100
	MinTokenLength      = 20
	MaxTokenLength      = 255
	MaxOwnerLength      = 39
	MaxRepoNameLength   = 100
	MaxSecretValueSize  = 48 * 1024
)

// ReservedSecretPrefix cannot start an Actions secret name.
const ReservedSecretPrefix = "GITHUB_"

var secretNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalid is wrapped by every error returned from this package.
var ErrInvalid = errors.New("invalid input")

// FieldError names the field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SecretName validates an Actions secret name: letters, digits and
// underscores, not starting with a digit or the GITHUB_ prefix.
func SecretName(name string) error {
	switch {
	case name == "":
		return invalid("secret name", "cannot be empty")
	case len(name) > MaxSecretNameLength:
		return invalid("secret name", "must be at most %d characters (got %d)", MaxSecretNameLength, len(name))
	case !secretNamePattern.MatchString(name):
		return invalid("secret name", "%q may only contain letters, digits and underscores and must not start with a digit", name)
	case strings.HasPrefix(strings.ToUpper(name), ReservedSecretPrefix):
		return invalid("secret name", "%q must not start with the reserved prefix %s", name, ReservedSecretPrefix)
	}
	return nil
}

// SecretValue rejects empty values and values over GitHub's 48 KB limit.
// The value never appears in the error.
func SecretValue(value []byte) error {
	if len(value) == 0 {
		return invalid("secret value", "cannot be empty")
	}
	if len(value) > MaxSecretValueSize {
		return invalid("secret value", "is %d bytes, larger than the %d byte limit", len(value), MaxSecretValueSize)
	}
	return nil
}

// Owner validates a user or organization login.
func Owner(owner string) error {
	return bounded("repository owner", owner, MaxOwnerLength)
}

// RepoName validates a repository name.
func RepoName(name string) error {
	return bounded("repository name", name, MaxRepoNameLength)
}

func bounded(field, value string, max int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return invalid(field, "cannot be empty")
	}
	if len(trimmed) > max {
		return invalid(field, "must be at most %d characters (got %d)", max, len(trimmed))
	}
	if trimmed != value {
		return invalid(field, "%q must not have leading or trailing whitespace", value)
	}
	return nil
}

// Token performs basic shape checks on a GitHub token. The value itself is
// never included in the error.
func Token(token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return invalid("token", "cannot be empty")
	}
	if len(trimmed) < MinTokenLength {
		return invalid("token", "is too short (minimum %d characters)", MinTokenLength)
	}
	if len(trimmed) > MaxTokenLength {
		return invalid("token", "is too long (maximum %d characters)", MaxTokenLength)
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return invalid("token", "must not contain whitespace")
	}
	return nil
}

// ParseRepository splits an "owner/name" reference and validates both parts.
func ParseRepository(ref string) (owner, name string, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return "", "", invalid("repository", "%q must be in owner/name form", ref)
	}
	if err := Owner(parts[0]); err != nil {
		return "", "", err
	}
	if err := RepoName(parts[1]); err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}
