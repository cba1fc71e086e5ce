package client

import (
	"context"
	"fmt"

	"smartassist/internal/config"
)

const anthropicVersion = "2023-06-01"

type completeRequest struct {
	Model             string  `json:"model"`
	Prompt            string  `json:"prompt"`
	MaxTokensToSample int32   `json:"max_tokens_to_sample"`
	Temperature       float32 `json:"temperature"`
}

type completeResponse struct {
	Completion *string `json:"completion"`
}

// ClaudeBackend talks to Anthropic's text completions endpoint.
type ClaudeBackend struct {
	adapter
	transport *httpTransport
	url       string
}

// NewClaudeBackend creates a Claude backend. It is soft-disabled when the
// base URL or the key is missing.
func NewClaudeBackend(_ context.Context, cfg config.BackendConfig, opts Options) (Backend, error) {
	b := &ClaudeBackend{
		transport: &httpTransport{
			backend: cfg.Type,
			client:  opts.httpClient(),
			headers: map[string]string{
				"x-api-key":         cfg.APIKey,
				"anthropic-version": anthropicVersion,
			},
		},
		url: joinURL(cfg.BaseURL, "/v1/complete"),
	}
	b.adapter = newAdapter(cfg, opts, cfg.BaseURL != "" && cfg.APIKey != "", b.complete)
	return b, nil
}

func (b *ClaudeBackend) complete(ctx context.Context, prompt string) (string, error) {
	req := completeRequest{
		Model:             b.cfg.ModelID,
		Prompt:            fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
		MaxTokensToSample: b.cfg.MaxTokens,
		Temperature:       b.cfg.Temperature,
	}

	var resp completeResponse
	if err := b.transport.postJSON(ctx, b.url, req, &resp); err != nil {
		return "", err
	}
	if resp.Completion == nil {
		return "", &MalformedResponseError{Backend: b.id, Field: "completion"}
	}
	return *resp.Completion, nil
}

// Close releases idle connections.
func (b *ClaudeBackend) Close() error {
	b.transport.close()
	return nil
}
