package client

import (
	"context"

	"smartassist/internal/config"
)

// QianWenBackend talks to DashScope's OpenAI-compatible endpoint. The key is
// sent as the raw Authorization header value.
type QianWenBackend struct {
	adapter
	transport *httpTransport
	url       string
}

// NewQianWenBackend creates a QianWen backend. It is soft-disabled when the
// base URL or the key is missing.
func NewQianWenBackend(_ context.Context, cfg config.BackendConfig, opts Options) (Backend, error) {
	b := &QianWenBackend{
		transport: &httpTransport{
			backend: cfg.Type,
			client:  opts.httpClient(),
			headers: map[string]string{"Authorization": cfg.APIKey},
		},
		url: joinURL(cfg.BaseURL, "/v1/chat/completions"),
	}
	b.adapter = newAdapter(cfg, opts, cfg.BaseURL != "" && cfg.APIKey != "", b.complete)
	return b, nil
}

func (b *QianWenBackend) complete(ctx context.Context, prompt string) (string, error) {
	return chatCompletion(ctx, b.transport, b.url, b.cfg, prompt)
}

// Close releases idle connections.
func (b *QianWenBackend) Close() error {
	b.transport.close()
	return nil
}
