package gateway

import (
	"errors"
	"fmt"

	"smartassist/internal/config"
)

// ErrEmptyPrompt is returned for blank prompts before any backend is touched.
var ErrEmptyPrompt = errors.New("prompt is empty")

// ConfigNotFoundError is returned when switching to a backend that has no
// configuration entry.
type ConfigNotFoundError struct {
	ID config.BackendID
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no configuration found for backend %s", e.ID)
}

// InvalidConfigurationError is returned when gateway settings fail validation.
type InvalidConfigurationError struct {
	Err error
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid gateway configuration: %v", e.Err)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Err
}
