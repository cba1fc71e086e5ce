package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"smartassist/internal/config"
	"smartassist/internal/logging"
)

// GeminiBackend talks to the Gemini API through the genai SDK.
type GeminiBackend struct {
	adapter
	client    *genai.Client
	genConfig *genai.GenerateContentConfig
}

// NewGeminiBackend creates a Gemini backend. A missing key leaves it
// soft-disabled without creating an SDK client. BaseURL, when set, overrides
// the API endpoint.
func NewGeminiBackend(ctx context.Context, cfg config.BackendConfig, opts Options) (Backend, error) {
	b := &GeminiBackend{
		genConfig: &genai.GenerateContentConfig{
			Temperature:     Ptr(cfg.Temperature),
			MaxOutputTokens: cfg.MaxTokens,
		},
	}
	b.adapter = newAdapter(cfg, opts, cfg.APIKey != "", b.complete)
	if cfg.APIKey == "" {
		return b, nil
	}

	clientConfig := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     cfg.APIKey,
		HTTPClient: opts.httpClient(),
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	b.client = client

	logging.Debug("created Gemini backend", "model", cfg.ModelID)
	return b, nil
}

func (b *GeminiBackend) complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctx, b.cfg.ModelID, contents, b.genConfig)
	if err != nil {
		return "", b.classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Backend: b.id, Field: "candidates"}
	}
	return resp.Text(), nil
}

// classify maps SDK errors onto the adapter error taxonomy.
func (b *GeminiBackend) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			msg = "rate limit: " + msg
		}
		return classifyStatus(b.id, apiErr.Code, http.Header{}, msg)
	}
	return &TransportError{Backend: b.id, Err: err}
}

// Close is a no-op; the SDK client holds no resources beyond its HTTP client.
func (b *GeminiBackend) Close() error {
	return nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
