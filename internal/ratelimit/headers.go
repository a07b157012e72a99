package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// HeaderInfo is the budget advertised on a response.
type HeaderInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// ParseHeaders reads the X-RateLimit-* headers. ok is false when the
// remaining count or reset time is missing or malformed.
func ParseHeaders(h http.Header) (HeaderInfo, bool) {
	var info HeaderInfo

	remaining, err := strconv.Atoi(strings.TrimSpace(h.Get(HeaderRemaining)))
	if err != nil || remaining < 0 {
		return info, false
	}
	resetUnix, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderReset)), 10, 64)
	if err != nil || resetUnix <= 0 {
		return info, false
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(h.Get(HeaderLimit))); err == nil && limit > 0 {
		info.Limit = limit
	}

	info.Remaining = remaining
	info.Reset = time.Unix(resetUnix, 0)
	return info, true
}

// RetryAfter parses a Retry-After header given either as delay seconds or
// as an HTTP date.
func RetryAfter(h http.Header, now time.Time) (time.Time, bool) {
	v := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if v == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// RejectionReset works out when a rate-limited request may be retried:
// Retry-After first, then X-RateLimit-Reset, then a one minute fallback
// as GitHub documents for secondary limits.
func RejectionReset(h http.Header, now time.Time) time.Time {
	if t, ok := RetryAfter(h, now); ok {
		return t
	}
	if info, ok := ParseHeaders(h); ok {
		return info.Reset
	}
	return now.Add(time.Minute)
}
