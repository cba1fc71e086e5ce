package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"smartassist/internal/config"
	"smartassist/internal/logging"
)

// OllamaBackend talks to a local or remote Ollama server through its SDK.
type OllamaBackend struct {
	adapter
	client *api.Client
	http   *http.Client
}

// authTransport adds an Authorization header to every request.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(reqClone)
}

// NewOllamaBackend creates an Ollama backend. It is soft-disabled when the
// base URL is missing; the key is optional and only sent when set.
func NewOllamaBackend(_ context.Context, cfg config.BackendConfig, opts Options) (Backend, error) {
	b := &OllamaBackend{}
	b.adapter = newAdapter(cfg, opts, cfg.BaseURL != "", b.complete)
	if cfg.BaseURL == "" {
		return b, nil
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}

	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	httpClient := opts.httpClient()
	if cfg.APIKey != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient = &http.Client{
			Timeout:   httpClient.Timeout,
			Transport: &authTransport{base: base, apiKey: cfg.APIKey},
		}
	}

	b.http = httpClient
	b.client = api.NewClient(baseURL, httpClient)
	return b, nil
}

func (b *OllamaBackend) complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  b.cfg.ModelID,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": b.cfg.MaxTokens,
			"temperature": b.cfg.Temperature,
		},
	}

	var (
		text string
		done bool
	)
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		text += resp.Response
		done = done || resp.Done
		return nil
	})
	if err != nil {
		return "", b.classify(err)
	}
	if !done && text == "" {
		return "", &MalformedResponseError{Backend: b.id, Field: "response"}
	}
	return text, nil
}

func (b *OllamaBackend) classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(b.id, statusErr.StatusCode, http.Header{}, statusErr.ErrorMessage)
	}
	return &TransportError{Backend: b.id, Err: err}
}

// Close releases idle connections.
func (b *OllamaBackend) Close() error {
	if b.http != nil {
		b.http.CloseIdleConnections()
	}
	return nil
}
