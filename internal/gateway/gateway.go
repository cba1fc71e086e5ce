package gateway

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"smartassist/internal/client"
	"smartassist/internal/config"
	"smartassist/internal/logging"
	"smartassist/internal/robustness"
)

// State is the gateway lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateSwitching
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateSwitching:
		return "switching"
	default:
		return "unknown"
	}
}

// BackendFactory builds backends by identifier.
type BackendFactory interface {
	Create(ctx context.Context, id config.BackendID, cfg config.BackendConfig) (client.Backend, error)
}

// Gateway owns the active model backend. It builds the backend lazily,
// switches between configured backends, retries rate-limited calls and falls
// back to another backend when the active one keeps failing.
type Gateway struct {
	factory  BackendFactory
	retry    client.RetryConfig
	fallback config.FallbackConfig
	status   client.StatusCallback

	// switchMu serializes initialization, switching and settings updates.
	switchMu sync.Mutex

	mu       sync.RWMutex
	settings config.GatewaySettings
	active   client.Backend
	state    State

	breakersMu sync.Mutex
	breakers   map[config.BackendID]*robustness.CircuitBreaker
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetry sets the retry policy for rate-limited calls.
func WithRetry(cfg client.RetryConfig) Option {
	return func(g *Gateway) { g.retry = cfg }
}

// WithFallback sets the fallback policy.
func WithFallback(cfg config.FallbackConfig) Option {
	return func(g *Gateway) { g.fallback = cfg }
}

// WithStatusCallback sets the status callback.
func WithStatusCallback(cb client.StatusCallback) Option {
	return func(g *Gateway) {
		if cb != nil {
			g.status = cb
		}
	}
}

// New creates a gateway. Settings are validated and copied; no backend is
// built until first use.
func New(settings config.GatewaySettings, factory BackendFactory, opts ...Option) (*Gateway, error) {
	if err := settings.Validate(); err != nil {
		return nil, &InvalidConfigurationError{Err: err}
	}

	g := &Gateway{
		factory: factory,
		retry:   client.DefaultRetryConfig(),
		fallback: config.FallbackConfig{
			Enabled:          true,
			FailureThreshold: config.DefaultFailureThreshold,
			Cooldown:         config.DefaultFallbackCooldown,
		},
		status:   &client.DefaultStatusCallback{},
		settings: settings.Clone(),
		breakers: make(map[config.BackendID]*robustness.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retry.MaxAttempts < 1 {
		g.retry.MaxAttempts = 1
	}
	return g, nil
}

// backend returns the active backend, building it on first use.
func (g *Gateway) backend(ctx context.Context) (client.Backend, error) {
	g.mu.RLock()
	b := g.active
	g.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	g.switchMu.Lock()
	defer g.switchMu.Unlock()

	g.mu.RLock()
	b = g.active
	id := g.settings.CurrentBackend
	_, cfg, ok := g.settings.Lookup(id)
	g.mu.RUnlock()
	if b != nil {
		return b, nil
	}
	if !ok {
		return nil, &ConfigNotFoundError{ID: id}
	}

	b, err := g.factory.Create(ctx, id, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize backend %s: %w", id, err)
	}

	g.mu.Lock()
	g.active = b
	g.state = StateReady
	g.mu.Unlock()

	logging.Info("backend initialized", "backend", id, "model", b.Model())
	return b, nil
}

// GenerateResponse sends prompt to the active backend, retrying rate-limited
// calls with exponential backoff.
func (g *Gateway) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	return withRetry(ctx, g, "generate response", func(ctx context.Context, b client.Backend) (string, error) {
		return b.GenerateResponse(ctx, prompt)
	})
}

// AnalyzeIntent describes what the user input asks for.
func (g *Gateway) AnalyzeIntent(ctx context.Context, input string) (string, error) {
	return withRetry(ctx, g, "analyze intent", func(ctx context.Context, b client.Backend) (string, error) {
		return b.AnalyzeIntent(ctx, input)
	})
}

// ValidateTask asks the active backend whether a task can be executed.
func (g *Gateway) ValidateTask(ctx context.Context, description string) (bool, error) {
	return withRetry(ctx, g, "validate task", func(ctx context.Context, b client.Backend) (bool, error) {
		return b.ValidateTask(ctx, description)
	})
}

// DecomposeCommand splits a compound command into sub-task descriptions.
func (g *Gateway) DecomposeCommand(ctx context.Context, command string) (iter.Seq[string], error) {
	return withRetry(ctx, g, "decompose command", func(ctx context.Context, b client.Backend) (iter.Seq[string], error) {
		return b.DecomposeCommand(ctx, command)
	})
}

const classifyPrompt = "Please analyze the following task and return the task type. " +
	"If the task involves browser operations (such as opening a website), return browser. " +
	"If the task involves system operations (such as adjusting volume or brightness), return system. " +
	"If the task involves file operations, return file. Task: %s"

// Classify asks the active backend for the task type of description. It
// returns "browser", "system", "file", or "" when the reply names none.
func (g *Gateway) Classify(ctx context.Context, description string) (string, error) {
	text, err := g.GenerateResponse(ctx, fmt.Sprintf(classifyPrompt, description))
	if err != nil {
		return "", err
	}

	reply := strings.ToLower(text)
	for _, label := range []string{"browser", "system", "file"} {
		if strings.Contains(reply, label) {
			return label, nil
		}
	}
	return "", nil
}

// withRetry runs fn on a snapshot of the active backend. Rate-limited
// failures are retried with backoff base*2^attempt; anything else is
// returned at once. Every outcome feeds the backend's circuit breaker.
// Returned errors are not reported through the status callback; the caller
// owns them.
func withRetry[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context, client.Backend) (T, error)) (T, error) {
	var zero T

	b, err := g.backend(ctx)
	if err != nil {
		return zero, err
	}

	maxAttempts := g.retry.MaxAttempts
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn(ctx, b)
		if err == nil {
			g.recordOutcome(b.ID(), nil)
			return result, nil
		}

		wait, limited := client.IsRateLimited(err)
		if !limited {
			g.recordOutcome(b.ID(), err)
			return zero, fmt.Errorf("%s with %s: %w", op, b.ID(), err)
		}

		lastErr = err
		g.status.OnRateLimit(b.ID(), wait)
		if attempt+1 >= maxAttempts {
			break
		}

		delay := client.CalculateBackoff(g.retry.BaseDelay, attempt+1, g.retry.MaxDelay)
		logging.Warn("rate limited, retrying",
			"backend", b.ID(),
			"attempt", attempt+1,
			"delay", delay,
			"wait", wait)
		g.status.OnRetry(attempt+1, maxAttempts-1, delay, err.Error())

		if err := client.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	g.recordOutcome(b.ID(), lastErr)
	return zero, fmt.Errorf("%s with %s: %w", op, b.ID(), lastErr)
}

// SwitchModel makes id the active backend. The previous backend stays active
// when id has no configuration or cannot be built. Callers already holding
// the previous backend finish their call on it. An explicit switch closes
// the circuit breaker of id.
func (g *Gateway) SwitchModel(ctx context.Context, id config.BackendID) error {
	if _, err := g.switchTo(ctx, id, false); err != nil {
		return err
	}
	g.breaker(id).Reset()
	return nil
}

func (g *Gateway) switchTo(ctx context.Context, id config.BackendID, requireConfigured bool) (client.Backend, error) {
	g.switchMu.Lock()
	defer g.switchMu.Unlock()

	g.mu.Lock()
	_, cfg, ok := g.settings.Lookup(id)
	if !ok {
		g.mu.Unlock()
		return nil, &ConfigNotFoundError{ID: id}
	}
	prevState := g.state
	g.state = StateSwitching
	g.mu.Unlock()

	b, err := g.factory.Create(ctx, id, cfg)
	if err == nil && requireConfigured && !b.Configured() {
		_ = b.Close()
		err = fmt.Errorf("backend %s is not configured", id)
	}
	if err != nil {
		g.mu.Lock()
		g.state = prevState
		g.mu.Unlock()
		return nil, fmt.Errorf("switch to %s: %w", id, err)
	}

	g.mu.Lock()
	old := g.active
	g.active = b
	g.settings.CurrentBackend = id
	g.state = StateReady
	g.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logging.Warn("failed to close previous backend", "backend", old.ID(), "error", err)
		}
	}

	logging.Info("switched backend", "backend", id, "model", b.Model())
	return b, nil
}

// UpdateSettings validates s and atomically replaces the gateway settings,
// rebuilding the backend for s.CurrentBackend. On failure nothing changes.
func (g *Gateway) UpdateSettings(ctx context.Context, s config.GatewaySettings) error {
	if err := s.Validate(); err != nil {
		return &InvalidConfigurationError{Err: err}
	}
	s = s.Clone()

	g.switchMu.Lock()
	defer g.switchMu.Unlock()

	_, cfg, _ := s.Lookup(s.CurrentBackend)
	b, err := g.factory.Create(ctx, s.CurrentBackend, cfg)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	g.mu.Lock()
	old := g.active
	g.settings = s
	g.active = b
	g.state = StateReady
	g.mu.Unlock()

	g.breakersMu.Lock()
	g.breakers = make(map[config.BackendID]*robustness.CircuitBreaker)
	g.breakersMu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	logging.Info("gateway settings updated", "backend", s.CurrentBackend, "backends", len(s.Backends))
	return nil
}

// CurrentBackend returns the identifier of the selected backend.
func (g *Gateway) CurrentBackend() config.BackendID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings.CurrentBackend
}

// ActiveBackend returns the active backend, or nil before first use.
func (g *Gateway) ActiveBackend() client.Backend {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// Settings returns a copy of the current settings.
func (g *Gateway) Settings() config.GatewaySettings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings.Clone()
}

// State returns the lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Close closes the active backend.
func (g *Gateway) Close() error {
	g.switchMu.Lock()
	defer g.switchMu.Unlock()

	g.mu.Lock()
	b := g.active
	g.active = nil
	g.state = StateUninitialized
	g.mu.Unlock()

	if b != nil {
		return b.Close()
	}
	return nil
}
