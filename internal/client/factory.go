package client

import (
	"context"
	"maps"
	"slices"
	"sync"

	"smartassist/internal/config"
	"smartassist/internal/logging"
	"smartassist/internal/security"
)

// Constructor builds a backend from its configuration. Constructors must not
// perform network calls.
type Constructor func(ctx context.Context, cfg config.BackendConfig, opts Options) (Backend, error)

// Factory creates backends by identifier from a registry of constructors.
type Factory struct {
	opts Options

	mu    sync.RWMutex
	ctors map[config.BackendID]Constructor
}

// NewFactory returns a factory with every built-in backend registered.
func NewFactory(opts Options) *Factory {
	if opts.Limiter == nil {
		opts.Limiter = opts.limiter()
	}

	f := &Factory{
		opts:  opts,
		ctors: make(map[config.BackendID]Constructor),
	}
	f.Register(config.BackendOpenAIGPT35, NewOpenAIBackend)
	f.Register(config.BackendOpenAIGPT4, NewOpenAIBackend)
	f.Register(config.BackendClaude, NewClaudeBackend)
	f.Register(config.BackendQianWen, NewQianWenBackend)
	f.Register(config.BackendGemini, NewGeminiBackend)
	f.Register(config.BackendOllama, NewOllamaBackend)
	return f
}

// Register adds or replaces the constructor for id.
func (f *Factory) Register(id config.BackendID, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[id] = ctor
}

// Supported lists the registered identifiers in sorted order.
func (f *Factory) Supported() []config.BackendID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.ctors))
}

// Create builds a new backend for id using cfg. Each call returns a fresh
// instance; only the rate limiter is shared between them.
func (f *Factory) Create(ctx context.Context, id config.BackendID, cfg config.BackendConfig) (Backend, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[id]
	f.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedBackendError{ID: id}
	}

	cfg.Type = id
	security.AddSecret(cfg.APIKey)
	b, err := ctor(ctx, cfg, f.opts)
	if err != nil {
		return nil, err
	}

	logging.Debug("created backend",
		"backend", id,
		"model", b.Model(),
		"configured", b.Configured())
	return b, nil
}
