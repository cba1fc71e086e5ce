package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Gateway   GatewaySettings `yaml:"gateway"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Legacy single key applied to every backend without its own key.
	APIKey string `yaml:"api_key,omitempty"`

	// Runtime version information
	Version string `yaml:"-"`
}

// RateLimitConfig holds the per-backend quota settings.
type RateLimitConfig struct {
	RequestsPerHour int            `yaml:"requests_per_hour"`   // default 50
	ResetInterval   time.Duration  `yaml:"reset_interval"`      // default 1h
	Overrides       map[string]int `yaml:"overrides,omitempty"` // model id -> requests per window
}

// RetryConfig holds the gateway's retry policy for rate-limited calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // total attempts, default 3
	BaseDelay   time.Duration `yaml:"base_delay"`   // backoff is base * 2^attempt
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// FallbackConfig controls switching away from a persistently failing backend.
type FallbackConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// HTTPConfig holds transport settings shared by the HTTP backends.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"` // log to <dir>/smartassist.log when set
}

// DefaultConfig returns the default configuration. Backends are filled in by
// Load when the file does not define any.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewaySettings{
			CurrentBackend: DefaultBackend,
		},
		RateLimit: RateLimitConfig{
			RequestsPerHour: DefaultRequestsPerHour,
			ResetInterval:   DefaultResetInterval,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultRetryBaseDelay,
			MaxDelay:    DefaultRetryMaxDelay,
		},
		Fallback: FallbackConfig{
			Enabled:          true,
			FailureThreshold: DefaultFailureThreshold,
			Cooldown:         DefaultFallbackCooldown,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
