package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"smartassist/internal/fileutil"
)

// Load loads configuration from path, or from the default location when path
// is empty. A missing file is not an error. The credentials file, environment
// variables and backend presets are applied on top, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = getConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			// Config file is optional, don't fail if it doesn't exist
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if len(cfg.Gateway.Backends) == 0 {
		cfg.Gateway.Backends = DefaultBackends()
	}
	MigrateConfig(cfg)

	if cfg.Gateway.CredentialsPath != "" {
		if err := loadCredentials(cfg, cfg.Gateway.CredentialsPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	NormalizeConfig(cfg)
	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "smartassist", "config.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		appSupport := filepath.Join(homeDir, "Library", "Application Support", "smartassist", "config.yaml")
		if _, err := os.Stat(appSupport); err == nil {
			return appSupport
		}
	}

	return filepath.Join(homeDir, ".config", "smartassist", "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadCredentials reads a YAML mapping of backend key (or backend type) to
// API key and applies it to the matching backend entries.
func loadCredentials(cfg *Config, path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return err
	}

	var creds map[string]string
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	for name, key := range creds {
		if key == "" {
			continue
		}
		if bc, ok := cfg.Gateway.Backends[name]; ok {
			bc.APIKey = key
			cfg.Gateway.Backends[name] = bc
			continue
		}
		id, err := ParseBackendID(name)
		if err != nil {
			return fmt.Errorf("credentials file %s: %w", path, err)
		}
		setBackendField(cfg, id, func(bc *BackendConfig) { bc.APIKey = key })
	}
	return nil
}

// envKeys maps API key environment variables to the backends they apply to.
var envKeys = []struct {
	name     string
	backends []BackendID
}{
	{"OPENAI_API_KEY", []BackendID{BackendOpenAIGPT35, BackendOpenAIGPT4}},
	{"ANTHROPIC_API_KEY", []BackendID{BackendClaude}},
	{"DASHSCOPE_API_KEY", []BackendID{BackendQianWen}},
	{"GEMINI_API_KEY", []BackendID{BackendGemini}},
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) error {
	for _, ek := range envKeys {
		key := os.Getenv(ek.name)
		if key == "" {
			continue
		}
		for _, id := range ek.backends {
			setBackendField(cfg, id, func(bc *BackendConfig) { bc.APIKey = key })
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		setBackendField(cfg, BackendOllama, func(bc *BackendConfig) { bc.BaseURL = host })
	}

	if backend := os.Getenv("SMARTASSIST_BACKEND"); backend != "" {
		id, err := ParseBackendID(backend)
		if err != nil {
			return fmt.Errorf("SMARTASSIST_BACKEND: %w", err)
		}
		cfg.Gateway.CurrentBackend = id
	}

	if level := os.Getenv("SMARTASSIST_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

func setBackendField(cfg *Config, id BackendID, set func(*BackendConfig)) {
	for key, bc := range cfg.Gateway.Backends {
		if bc.Type == id {
			set(&bc)
			cfg.Gateway.Backends[key] = bc
		}
	}
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerHour <= 0 {
		return fmt.Errorf("%w: requests_per_hour must be positive", ErrInvalidLimits)
	}
	if c.RateLimit.ResetInterval <= 0 {
		return fmt.Errorf("%w: reset_interval must be positive", ErrInvalidLimits)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidLimits)
	}
	return nil
}

// Error types for configuration validation.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrNoBackends            ConfigError = "no backends configured"
	ErrInvalidBackend        ConfigError = "invalid backend"
	ErrDuplicateBackend      ConfigError = "duplicate backend"
	ErrUnknownCurrentBackend ConfigError = "current backend is not configured"
	ErrInvalidLimits         ConfigError = "invalid limits"
)

// GetConfigPath returns the path to the config file (exported for external use).
func GetConfigPath() string {
	return getConfigPath()
}

// Save writes the configuration to path, or to the default location when
// path is empty. Concurrent writers are serialized through a lock file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = getConfigPath()
	}
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may contain API keys
	err = fileutil.LockedUpdate(path, 0o600, func([]byte) ([]byte, error) {
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
