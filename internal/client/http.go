package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"smartassist/internal/config"
	"smartassist/internal/logging"
)

// httpTransport posts JSON to a provider and classifies failures.
type httpTransport struct {
	backend config.BackendID
	client  *http.Client
	headers map[string]string
}

// postJSON sends body to url and decodes a 2xx response into out.
func (t *httpTransport) postJSON(ctx context.Context, url string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	logging.Debug("provider request", "backend", t.backend, "url", url)

	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Backend: t.backend, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Backend: t.backend, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Warn("provider API error",
			"backend", t.backend,
			"status", resp.StatusCode,
			"body", truncate(string(data), 256))
		return classifyStatus(t.backend, resp.StatusCode, resp.Header, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedResponseError{Backend: t.backend, Field: "JSON body", Err: err}
	}
	return nil
}

func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
