package config

import (
	"smartassist/internal/logging"
)

// MigrateConfig upgrades older configuration files: a top-level api_key is
// copied into every backend that has none, and backend entries without a
// type take it from their key (e.g. "gpt4" -> openai_gpt4).
func MigrateConfig(cfg *Config) {
	migrated := false

	for key, bc := range cfg.Gateway.Backends {
		if bc.Type == "" {
			if id, err := ParseBackendID(key); err == nil {
				bc.Type = id
				migrated = true
			}
		}
		if bc.APIKey == "" && cfg.APIKey != "" && bc.Type != BackendOllama {
			bc.APIKey = cfg.APIKey
			migrated = true
		}
		cfg.Gateway.Backends[key] = bc
	}

	if cfg.APIKey != "" {
		cfg.APIKey = ""
		migrated = true
	}

	if migrated {
		logging.Info("configuration migrated to per-backend format")
	}
}

// NormalizeConfig fills empty backend fields from their presets and
// defaults an unset current backend.
func NormalizeConfig(cfg *Config) {
	for key, bc := range cfg.Gateway.Backends {
		bc.ApplyPreset()
		cfg.Gateway.Backends[key] = bc
	}

	if cfg.Gateway.CurrentBackend == "" {
		cfg.Gateway.CurrentBackend = DefaultBackend
	}
}

// RateLimitFor returns the configured request limit for a model id.
func (c *Config) RateLimitFor(modelID string) int {
	if n, ok := c.RateLimit.Overrides[modelID]; ok && n > 0 {
		return n
	}
	return c.RateLimit.RequestsPerHour
}
