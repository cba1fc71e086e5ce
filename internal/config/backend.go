package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendID identifies a model backend. It selects both the adapter variant
// and the configuration entry used to build it.
type BackendID string

const (
	BackendOpenAIGPT35 BackendID = "openai_gpt35"
	BackendOpenAIGPT4  BackendID = "openai_gpt4"
	BackendClaude      BackendID = "claude"
	BackendQianWen     BackendID = "qianwen"
	BackendGemini      BackendID = "gemini"
	BackendOllama      BackendID = "ollama"
)

// AllBackends lists every known backend identifier in display order.
func AllBackends() []BackendID {
	return []BackendID{
		BackendOpenAIGPT35,
		BackendOpenAIGPT4,
		BackendClaude,
		BackendQianWen,
		BackendGemini,
		BackendOllama,
	}
}

// backendAliases maps legacy and shorthand names onto identifiers.
var backendAliases = map[string]BackendID{
	"gpt35":         BackendOpenAIGPT35,
	"gpt-3.5":       BackendOpenAIGPT35,
	"gpt-3.5-turbo": BackendOpenAIGPT35,
	"gpt4":          BackendOpenAIGPT4,
	"gpt-4":         BackendOpenAIGPT4,
	"anthropic":     BackendClaude,
	"qwen":          BackendQianWen,
	"dashscope":     BackendQianWen,
	"google":        BackendGemini,
	"local":         BackendOllama,
}

// ParseBackendID parses a backend name, case-insensitively, accepting the
// aliases used by older configuration files (e.g. "OpenAI_GPT4", "QianWen").
func ParseBackendID(s string) (BackendID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("empty backend name")
	}
	id := BackendID(name)
	if id.Valid() {
		return id, nil
	}
	if alias, ok := backendAliases[name]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("unknown backend %q (available: %s)", s, joinBackends(AllBackends()))
}

// Valid reports whether id is a known backend.
func (id BackendID) Valid() bool {
	return slices.Contains(AllBackends(), id)
}

func (id BackendID) String() string { return string(id) }

// UnmarshalYAML normalizes aliases while decoding.
func (id *BackendID) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseBackendID(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*id = parsed
	return nil
}

func joinBackends(ids []BackendID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

// BackendConfig configures a single model backend.
type BackendConfig struct {
	Type        BackendID `yaml:"type"`
	APIKey      string    `yaml:"api_key,omitempty"`
	ModelID     string    `yaml:"model_id"`
	MaxTokens   int32     `yaml:"max_tokens"`
	Temperature float32   `yaml:"temperature"`
	BaseURL     string    `yaml:"base_url,omitempty"`
}

// GatewaySettings is the full backend configuration owned by the gateway.
// Backends maps a friendly key (e.g. "gpt4") to its BackendConfig.
type GatewaySettings struct {
	CurrentBackend  BackendID                `yaml:"current_backend"`
	Backends        map[string]BackendConfig `yaml:"backends"`
	CredentialsPath string                   `yaml:"credentials_path,omitempty"`
	RuntimePath     string                   `yaml:"runtime_path,omitempty"`
}

// Clone returns a deep copy.
func (s GatewaySettings) Clone() GatewaySettings {
	out := s
	if s.Backends != nil {
		out.Backends = maps.Clone(s.Backends)
	}
	return out
}

// Keys returns the backend keys in sorted order.
func (s GatewaySettings) Keys() []string {
	return slices.Sorted(maps.Keys(s.Backends))
}

// Lookup finds the configuration whose Type is id.
func (s GatewaySettings) Lookup(id BackendID) (string, BackendConfig, bool) {
	for _, key := range s.Keys() {
		if bc := s.Backends[key]; bc.Type == id {
			return key, bc, true
		}
	}
	return "", BackendConfig{}, false
}

// Configured returns the backend identifiers present in the settings.
func (s GatewaySettings) Configured() []BackendID {
	ids := make([]BackendID, 0, len(s.Backends))
	for _, key := range s.Keys() {
		ids = append(ids, s.Backends[key].Type)
	}
	return ids
}

// Validate checks that at least one backend is configured, that every
// identifier appears exactly once, and that CurrentBackend is among them.
func (s GatewaySettings) Validate() error {
	if len(s.Backends) == 0 {
		return ErrNoBackends
	}

	seen := make(map[BackendID]string, len(s.Backends))
	for _, key := range s.Keys() {
		bc := s.Backends[key]
		if !bc.Type.Valid() {
			return fmt.Errorf("%w: backend %q has type %q", ErrInvalidBackend, key, bc.Type)
		}
		if prev, dup := seen[bc.Type]; dup {
			return fmt.Errorf("%w: %q and %q both configure %s", ErrDuplicateBackend, prev, key, bc.Type)
		}
		seen[bc.Type] = key
	}

	if _, ok := seen[s.CurrentBackend]; !ok {
		return fmt.Errorf("%w: %q (available: %s)", ErrUnknownCurrentBackend, s.CurrentBackend, joinBackends(s.Configured()))
	}
	return nil
}
