package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartassist/internal/assistant"
	"smartassist/internal/config"
	"smartassist/internal/ratelimit"
	"smartassist/internal/tasks"
)

// fakeDashScope answers chat completions the way the assistant's prompts
// expect.
func fakeDashScope(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content

		reply := "Hello **there**"
		switch {
		case strings.Contains(prompt, "Break down this command"):
			reply = "open youtube\nset volume to 50\n"
		case strings.HasSuffix(prompt, "Task: open youtube"):
			reply = "browser"
		case strings.HasSuffix(prompt, "Task: set volume to 50"):
			reply = "system"
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupCLI(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, name := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DASHSCOPE_API_KEY", "GEMINI_API_KEY",
		"OLLAMA_HOST", "SMARTASSIST_BACKEND", "SMARTASSIST_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}

	runtime := filepath.Join(dir, "runtime")
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`gateway:
  current_backend: qianwen
  runtime_path: %s
  backends:
    qianwen:
      type: qianwen
      api_key: test-key
      base_url: %s
      model_id: qwen-turbo
retry:
  max_attempts: 1
`, runtime, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfgFile, backend, logLevel = path, "", "error"
	t.Cleanup(func() { cfgFile, backend, logLevel = "", "", "" })
	return runtime
}

func TestLines(t *testing.T) {
	got := slices.Collect(lines(strings.NewReader("one\n\n  two  \r\n\nthree")))
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestSessionEndToEnd(t *testing.T) {
	srv := fakeDashScope(t)
	runtime := setupCLI(t, srv.URL)

	a, err := newApp()
	require.NoError(t, err)

	input := strings.Join([]string{
		"hi",
		"COMMAND: open youtube and set volume to 50",
		"/models",
		"/limits",
		"/history",
		"/switch gemini",
		"/bogus",
		"/quit",
		"never processed",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runSession(context.Background(), a, strings.NewReader(input), &out, true))
	a.close()

	text := out.String()
	assert.Contains(t, text, "Hello **there**")
	assert.Contains(t, text, assistant.ReplyCommandSucceeded)
	assert.Contains(t, text, "qwen-turbo")
	assert.Contains(t, text, "admitted")
	assert.Contains(t, text, "set volume to 50")
	assert.Contains(t, text, "gemini")
	assert.Contains(t, text, "unknown command /bogus")
	assert.NotContains(t, text, "never processed")

	calls := a.executor.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "browser", calls[0].Op)
	assert.Equal(t, "system", calls[1].Op)

	records, err := tasks.LoadHistory(filepath.Join(runtime, tasks.HistoryFile))
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, tasks.StatusCompleted, rec.Status)
	}
}

func TestNewAppRejectsUnknownBackendFlag(t *testing.T) {
	setupCLI(t, "http://127.0.0.1:1")
	backend = "watson"

	_, err := newApp()
	assert.Error(t, err)
}

func TestNewAppBackendWithoutConfig(t *testing.T) {
	setupCLI(t, "http://127.0.0.1:1")
	backend = "claude"

	_, err := newApp()
	assert.Error(t, err)
}

func TestInitWritesStarterConfig(t *testing.T) {
	setupCLI(t, "http://127.0.0.1:1")
	cfgFile = filepath.Join(t.TempDir(), "smartassist", "config.yaml")
	backend = "ollama"

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newInitCmd()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run()
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+cfgFile)

	cfg, err := config.Load(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, config.BackendOllama, cfg.Gateway.CurrentBackend)
	assert.Len(t, cfg.Gateway.Backends, len(config.AllBackends()))

	_, err = run()
	assert.ErrorContains(t, err, "already exists")

	_, err = run("--force")
	require.NoError(t, err)
}

func TestApplyConfigKeepsRuntimeState(t *testing.T) {
	srv := fakeDashScope(t)
	setupCLI(t, srv.URL)

	a, err := newApp()
	require.NoError(t, err)
	t.Cleanup(a.close)
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	require.NoError(t, err)
	cfg.Gateway.Backends["ollama"] = config.BackendConfig{
		Type:    config.BackendOllama,
		BaseURL: "http://127.0.0.1:1",
		ModelID: "llama3.2",
	}
	cfg.RateLimit.Overrides = map[string]int{"qwen-turbo": 50}

	t.Run("runtime switch survives reload", func(t *testing.T) {
		require.NoError(t, a.applyConfig(ctx, cfg))
		require.NoError(t, a.gateway.SwitchModel(ctx, config.BackendOllama))

		require.NoError(t, a.applyConfig(ctx, cfg))
		assert.Equal(t, config.BackendOllama, a.gateway.CurrentBackend())
	})

	t.Run("changed file backend wins", func(t *testing.T) {
		require.NoError(t, a.gateway.SwitchModel(ctx, config.BackendQianWen))
		changed := *cfg
		changed.Gateway = cfg.Gateway.Clone()
		changed.Gateway.CurrentBackend = config.BackendOllama

		require.NoError(t, a.applyConfig(ctx, &changed))
		assert.Equal(t, config.BackendOllama, a.gateway.CurrentBackend())
	})

	t.Run("override keeps provider penalty", func(t *testing.T) {
		_, err := ratelimit.Do(ctx, a.limiter, "qwen-turbo", func(context.Context) (string, error) {
			return "", &ratelimit.ProviderLimitError{RetryAfter: 5 * time.Minute}
		})
		require.Error(t, err)

		require.NoError(t, a.applyConfig(ctx, cfg))

		called := false
		_, err = ratelimit.Do(ctx, a.limiter, "qwen-turbo", func(context.Context) (string, error) {
			called = true
			return "", nil
		})
		var exceeded *ratelimit.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.False(t, called)
	})
}
