package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GitHub sentinel errors
var (
	ErrUnauthorized = errors.New("github unauthorized")
	ErrForbidden    = errors.New("github forbidden")
	ErrNotFound     = errors.New("github resource not found")
	ErrValidation   = errors.New("github rejected the request")
	ErrRateLimited  = errors.New("github rate limited")
	ErrServer       = errors.New("github server error")
)

// APIError wraps a non-success GitHub response with context
type APIError struct {
	Op         string // Operation: "public key", "probe", "update", "rate limit"
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("github %s error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("github %s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("github %s error: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// sentinelFor maps a status code onto a sentinel. Rate-limit rejections are
// detected separately because GitHub reports some of them as 403.
func sentinelFor(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status >= 500:
		return ErrServer
	}
	return nil
}

// isRateLimitRejection reports whether a 403/429 response is GitHub's
// primary or secondary rate limit rather than a permission problem.
func isRateLimitRejection(resp *http.Response, message string) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	if resp.Header.Get("Retry-After") != "" {
		return true
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(message), "rate limit")
}
