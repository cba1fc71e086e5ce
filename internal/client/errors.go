package client

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"smartassist/internal/config"
	"smartassist/internal/ratelimit"
	"smartassist/internal/security"
)

// ErrNotConfigured marks a backend that lacks its base URL or credential.
// Adapters degrade to an empty (or false) result instead of returning it.
var ErrNotConfigured = errors.New("backend not configured")

// TransportError represents a network or HTTP-level failure.
type TransportError struct {
	Backend    config.BackendID
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: API error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP error: %d", e.Backend, e.StatusCode)
	case e.Err != nil:
		return security.Redact(fmt.Sprintf("%s: request failed: %v", e.Backend, e.Err))
	default:
		return fmt.Sprintf("%s: request failed", e.Backend)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when a successful response lacks the
// expected field.
type MalformedResponseError struct {
	Backend config.BackendID
	Field   string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response, missing %s: %v", e.Backend, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: malformed response, missing %s", e.Backend, e.Field)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// UnsupportedBackendError is returned by the factory for unknown identifiers.
type UnsupportedBackendError struct {
	ID config.BackendID
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported backend: %q", e.ID)
}

// IsRateLimited reports whether err carries a rate-limit wait.
func IsRateLimited(err error) (time.Duration, bool) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded.WaitTime, true
	}
	return 0, false
}

// waitPattern matches provider messages such as
// "Rate limit reached ... Please try again in 20 seconds".
var waitPattern = regexp.MustCompile(`(?i)try again in (?:about )?(\d+) (\w+)`)

// defaultProviderWait is used when a provider rate-limits without saying for how long.
const defaultProviderWait = time.Hour

// ParseWaitTime extracts the wait requested in a provider rate-limit message.
// Unknown or missing durations yield one hour.
func ParseWaitTime(msg string) time.Duration {
	m := waitPattern.FindStringSubmatch(msg)
	if m == nil {
		return defaultProviderWait
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultProviderWait
	}

	switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
	case "second":
		return time.Duration(n) * time.Second
	case "minute":
		return time.Duration(n) * time.Minute
	case "hour":
		return time.Duration(n) * time.Hour
	default:
		return defaultProviderWait
	}
}

// retryAfter prefers the Retry-After header (seconds or HTTP date) and falls
// back to the message text.
func retryAfter(header http.Header, msg string) time.Duration {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	return ParseWaitTime(msg)
}

func mentionsRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "resource_exhausted")
}

// classifyStatus maps a failed provider response onto the adapter error
// taxonomy. Rate-limit signals become *ratelimit.ProviderLimitError so the
// limiter can penalize the key; everything else is a *TransportError.
func classifyStatus(backend config.BackendID, status int, header http.Header, body string) error {
	msg := truncate(security.Redact(strings.TrimSpace(body)), 512)
	if status == http.StatusTooManyRequests || mentionsRateLimit(msg) {
		return &ratelimit.ProviderLimitError{
			RetryAfter: retryAfter(header, msg),
			Message:    msg,
		}
	}
	return &TransportError{Backend: backend, StatusCode: status, Message: msg}
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
