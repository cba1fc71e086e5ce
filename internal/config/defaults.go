package config

import "time"

// Default configuration values.
const (
	DefaultBackend = BackendQianWen

	// Quota
	DefaultRequestsPerHour = 50
	DefaultResetInterval   = time.Hour

	// Retry
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultRetryMaxDelay  = 30 * time.Second

	// Fallback
	DefaultFailureThreshold = 3
	DefaultFallbackCooldown = time.Minute

	// Transport
	DefaultHTTPTimeout = 120 * time.Second
	DefaultMaxTokens   = 1024
)
