package client

import (
	"context"

	"smartassist/internal/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatCompletion performs a single-message chat-completions call, the wire
// shape shared by OpenAI and OpenAI-compatible providers.
func chatCompletion(ctx context.Context, t *httpTransport, url string, cfg config.BackendConfig, prompt string) (string, error) {
	req := chatRequest{
		Model:       cfg.ModelID,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var resp chatResponse
	if err := t.postJSON(ctx, url, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", &MalformedResponseError{Backend: t.backend, Field: "choices[0].message.content"}
	}
	return *resp.Choices[0].Message.Content, nil
}

// OpenAIBackend talks to the OpenAI chat-completions API. It serves both the
// GPT-3.5 and GPT-4 identifiers; the model id comes from the config.
type OpenAIBackend struct {
	adapter
	transport *httpTransport
	url       string
}

// NewOpenAIBackend creates an OpenAI backend. A missing API key leaves it
// soft-disabled.
func NewOpenAIBackend(_ context.Context, cfg config.BackendConfig, opts Options) (Backend, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	b := &OpenAIBackend{
		transport: &httpTransport{
			backend: cfg.Type,
			client:  opts.httpClient(),
			headers: map[string]string{"Authorization": "Bearer " + cfg.APIKey},
		},
		url: joinURL(baseURL, "/v1/chat/completions"),
	}
	b.adapter = newAdapter(cfg, opts, cfg.APIKey != "", b.complete)
	b.prompts = promptSet{
		intent:    "Analyze the user's intent from their input. Provide a brief description of what they want to do.\nInput: %s",
		validate:  "Validate if the given task is safe and appropriate to execute. Respond with 'true' or 'false'.\nTask: %s",
		decompose: defaultPrompts.decompose,
	}
	return b, nil
}

func (b *OpenAIBackend) complete(ctx context.Context, prompt string) (string, error) {
	return chatCompletion(ctx, b.transport, b.url, b.cfg, prompt)
}

// Close releases idle connections.
func (b *OpenAIBackend) Close() error {
	b.transport.close()
	return nil
}
