package config

// BackendPreset holds the defaults used for fields a backend entry leaves empty.
type BackendPreset struct {
	Key         string
	BaseURL     string
	ModelID     string
	MaxTokens   int32
	Temperature float32
}

// BackendPresets contains the defaults for each backend type.
var BackendPresets = map[BackendID]BackendPreset{
	BackendOpenAIGPT35: {
		Key:         "gpt35",
		BaseURL:     "https://api.openai.com",
		ModelID:     "gpt-3.5-turbo",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	},
	BackendOpenAIGPT4: {
		Key:         "gpt4",
		BaseURL:     "https://api.openai.com",
		ModelID:     "gpt-4",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	},
	BackendClaude: {
		Key:         "claude",
		BaseURL:     "https://api.anthropic.com",
		ModelID:     "claude-2.1",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	},
	BackendQianWen: {
		Key:         "qianwen",
		BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode",
		ModelID:     "qwen-turbo",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	},
	BackendGemini: {
		Key:         "gemini",
		ModelID:     "gemini-2.5-flash",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 1.0,
	},
	BackendOllama: {
		Key:         "ollama",
		BaseURL:     "http://localhost:11434",
		ModelID:     "llama3.2",
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	},
}

// ApplyPreset fills zero-valued fields from the preset for bc.Type.
// Returns false when the type has no preset.
func (bc *BackendConfig) ApplyPreset() bool {
	p, ok := BackendPresets[bc.Type]
	if !ok {
		return false
	}
	if bc.BaseURL == "" {
		bc.BaseURL = p.BaseURL
	}
	if bc.ModelID == "" {
		bc.ModelID = p.ModelID
	}
	if bc.MaxTokens == 0 {
		bc.MaxTokens = p.MaxTokens
	}
	if bc.Temperature == 0 {
		bc.Temperature = p.Temperature
	}
	return true
}

// DefaultBackends returns one entry per known backend, keyed by preset key.
func DefaultBackends() map[string]BackendConfig {
	out := make(map[string]BackendConfig, len(BackendPresets))
	for _, id := range AllBackends() {
		bc := BackendConfig{Type: id}
		bc.ApplyPreset()
		out[BackendPresets[id].Key] = bc
	}
	return out
}
