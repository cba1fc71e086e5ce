package client

import (
	"time"

	"smartassist/internal/config"
)

// StatusCallback provides notifications about gateway operation status so a
// UI can show feedback during retries, rate limiting and fallback.
type StatusCallback interface {
	// OnRetry is called before a retry. attempt is 1-based; delay is the
	// time before the retry will be attempted.
	OnRetry(attempt, maxAttempts int, delay time.Duration, reason string)

	// OnRateLimit is called when a call is rejected for quota reasons.
	// waitTime is how long until the backend accepts requests again.
	OnRateLimit(backend config.BackendID, waitTime time.Duration)

	// OnFallback is called after the gateway switched away from a failing backend.
	OnFallback(from, to config.BackendID)

	// OnError is called when an error occurs.
	// recoverable indicates whether the call will be retried.
	OnError(err error, recoverable bool)
}

// DefaultStatusCallback is a no-op implementation of StatusCallback.
type DefaultStatusCallback struct{}

// OnRetry does nothing.
func (d *DefaultStatusCallback) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
}

// OnRateLimit does nothing.
func (d *DefaultStatusCallback) OnRateLimit(backend config.BackendID, waitTime time.Duration) {}

// OnFallback does nothing.
func (d *DefaultStatusCallback) OnFallback(from, to config.BackendID) {}

// OnError does nothing.
func (d *DefaultStatusCallback) OnError(err error, recoverable bool) {}
