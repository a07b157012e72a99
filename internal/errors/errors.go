package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// GitHubError wraps a GitHub API failure with a suggestion for the user.
// The message names the operation; err stays reachable through Unwrap.
func GitHubError(operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("GitHub API error during %s", operation),
		Details:    err.Error(),
		Suggestion: getGitHubSuggestion(err),
		Err:        err,
	}
}

// getGitHubSuggestion returns helpful suggestions based on the error text
func getGitHubSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "status 401"), strings.Contains(errStr, "bad credentials"):
		return "The token is invalid or expired. Run 'ghsecrets login' or export a fresh GITHUB_TOKEN"
	case strings.Contains(errStr, "saml"), strings.Contains(errStr, "sso"):
		return "Authorize the token for your organization's SAML SSO in GitHub settings"
	case strings.Contains(errStr, "resource not accessible"), strings.Contains(errStr, "status 403"):
		return "The token needs the 'repo' scope (classic) or 'Secrets: write' permission (fine-grained)"
	case strings.Contains(errStr, "status 404"), strings.Contains(errStr, "not found"):
		return "Verify the repository owner and name, and that the token can see the repository"
	case strings.Contains(errStr, "rate limit"):
		return "GitHub rate limit exceeded. Wait for the reset time shown above and retry"
	case strings.Contains(errStr, "timeout"):
		return "The request timed out. Check your network connection or raise timeout_ms"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return "Unable to reach the GitHub API. Check api_url and your network"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"too many requests",
		"bad gateway",
		"service unavailable",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	errStr := err.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
