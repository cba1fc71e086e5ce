package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smartassist/internal/config"
	"smartassist/internal/gateway"
	"smartassist/internal/ratelimit"
	"smartassist/internal/robustness"
	"smartassist/internal/tasks"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "now"},
		{-time.Second, "now"},
		{1500 * time.Millisecond, "2s"},
		{5 * time.Minute, "5m00s"},
		{50*time.Minute + 7*time.Second, "50m07s"},
		{2*time.Hour + 3*time.Minute, "2h03m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestRendererTables(t *testing.T) {
	r := NewRenderer(80)

	backends := r.Backends([]gateway.BackendInfo{
		{Key: "qianwen", ID: config.BackendQianWen, Model: "qwen-turbo", Current: true},
		{Key: "claude", ID: config.BackendClaude, Model: "claude-2.1", Breaker: robustness.StateOpen, Failures: 7},
	})
	assert.Contains(t, backends, "qwen-turbo")
	assert.Contains(t, backends, "claude-2.1")
	assert.Contains(t, backends, "open")
	assert.Contains(t, backends, "7")

	limits := r.Limits(ratelimit.Stats{
		Admitted: 3,
		Keys:     []ratelimit.KeyStats{{Key: "gpt-4", Limit: 50, Used: 3, Remaining: 47, ResetIn: time.Hour}},
	})
	assert.Contains(t, limits, "gpt-4")
	assert.Contains(t, limits, "47")
	assert.Contains(t, limits, "admitted 3, rejected 0, penalized 0")

	list := r.Tasks([]tasks.Record{
		{ID: "task-1", Type: tasks.TypeBrowser, Status: tasks.StatusCompleted, Description: "open youtube"},
	})
	assert.Contains(t, list, "task-1")
	assert.Contains(t, list, "completed")
	assert.Contains(t, list, "open youtube")
}

func TestRendererMarkdownAndResult(t *testing.T) {
	r := NewRenderer(80)
	assert.Contains(t, r.Markdown("**hello**"), "hello")
	assert.Contains(t, r.Result(true, "done"), "done")
	assert.Contains(t, r.Result(false, "broken"), "broken")
}

func TestStatusPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewStatusPrinter(&buf)

	p.OnRateLimit(config.BackendOpenAIGPT4, 5*time.Minute)
	p.OnRetry(1, 2, 2*time.Second, "rate limited")
	p.OnFallback(config.BackendClaude, config.BackendQianWen)
	p.OnError(errors.New("fallback from claude: backend qianwen is not configured"), true)
	p.OnError(errors.New("returned to caller"), false)

	out := buf.String()
	assert.Contains(t, out, "openai_gpt4 rate limited, available again in 5m00s")
	assert.Contains(t, out, "retry 1/2 in 2s")
	assert.Contains(t, out, "switched from claude to qianwen")
	assert.Contains(t, out, "fallback from claude: backend qianwen is not configured")
	assert.NotContains(t, out, "returned to caller")
}
