package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"smartassist/internal/assistant"
	"smartassist/internal/automation"
	"smartassist/internal/client"
	"smartassist/internal/config"
	"smartassist/internal/gateway"
	"smartassist/internal/logging"
	"smartassist/internal/ratelimit"
	"smartassist/internal/tasks"
	"smartassist/internal/ui"
)

// historyLimit caps the persisted task history.
const historyLimit = 500

// app wires the configured components for one CLI invocation.
type app struct {
	cfg         *config.Config
	configPath  string
	// fileBackend is current_backend as last read from the config file.
	fileBackend config.BackendID

	limiter   *ratelimit.Limiter
	factory   *client.Factory
	gateway   *gateway.Gateway
	executor  *automation.DryRunExecutor
	router    *tasks.Router
	assistant *assistant.Assistant
	render    *ui.Renderer
}

func newApp() (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	fileBackend := cfg.Gateway.CurrentBackend
	if backend != "" {
		id, err := config.ParseBackendID(backend)
		if err != nil {
			return nil, err
		}
		cfg.Gateway.CurrentBackend = id
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		DefaultLimit:  cfg.RateLimit.RequestsPerHour,
		ResetInterval: cfg.RateLimit.ResetInterval,
		Limits:        cfg.RateLimit.Overrides,
	})
	factory := client.NewFactory(client.Options{
		Limiter: limiter,
		Timeout: cfg.HTTP.Timeout,
	})

	gw, err := gateway.New(cfg.Gateway, factory,
		gateway.WithRetry(client.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		gateway.WithFallback(cfg.Fallback),
		gateway.WithStatusCallback(ui.NewStatusPrinter(os.Stderr)),
	)
	if err != nil {
		return nil, err
	}

	executor := automation.NewDryRunExecutor()
	router := tasks.NewRouter(gw, executor)

	return &app{
		cfg:         cfg,
		configPath:  path,
		fileBackend: fileBackend,
		limiter:     limiter,
		factory:     factory,
		gateway:     gw,
		executor:    executor,
		router:      router,
		assistant:   assistant.New(gw, router),
		render:      ui.NewRenderer(100),
	}, nil
}

func setupLogging(cfg config.LoggingConfig) error {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Dir != "" {
		if err := logging.EnableFileLogging(cfg.Dir, level); err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
		return nil
	}
	// Only warnings and errors reach the terminal unless asked otherwise.
	if logLevel == "" && level == logging.LevelInfo {
		level = logging.LevelWarn
	}
	logging.Configure(level, os.Stderr)
	return nil
}

// historyPath returns where finished tasks are persisted.
func (a *app) historyPath() string {
	dir := a.cfg.Gateway.RuntimePath
	if dir == "" {
		dir = filepath.Dir(a.configPath)
	}
	return filepath.Join(dir, tasks.HistoryFile)
}

// watchConfig applies valid config file changes to the gateway until ctx is
// done.
func (a *app) watchConfig(ctx context.Context) {
	err := config.Watch(ctx, a.configPath, func(cfg *config.Config) {
		if err := a.applyConfig(ctx, cfg); err != nil {
			logging.Warn("config reload rejected", "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		logging.Warn("config watch stopped", "error", err)
	}
}

// applyConfig hands a reloaded config to the gateway and limiter. The backend
// chosen at runtime (--backend or /switch) is kept unless the file's
// current_backend itself changed.
func (a *app) applyConfig(ctx context.Context, cfg *config.Config) error {
	settings := cfg.Gateway.Clone()
	fromFile := settings.CurrentBackend
	if fromFile == a.fileBackend {
		current := a.gateway.CurrentBackend()
		if _, _, ok := settings.Lookup(current); ok {
			settings.CurrentBackend = current
		}
	}

	if err := a.gateway.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	a.fileBackend = fromFile
	for model, n := range cfg.RateLimit.Overrides {
		a.limiter.SetLimit(model, n)
	}
	logging.Info("config reloaded", "backend", settings.CurrentBackend)
	return nil
}

// limitStats returns the limiter snapshot with an entry for every configured
// model, used or not.
func (a *app) limitStats() ratelimit.Stats {
	st := a.limiter.Stats()
	seen := make(map[string]bool, len(st.Keys))
	for _, k := range st.Keys {
		seen[k.Key] = true
	}

	settings := a.gateway.Settings()
	for _, key := range settings.Keys() {
		model := settings.Backends[key].ModelID
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		n := a.limiter.Remaining(model)
		st.Keys = append(st.Keys, ratelimit.KeyStats{Key: model, Limit: n, Remaining: n})
	}
	return st
}

func (a *app) close() {
	if err := tasks.AppendHistory(a.historyPath(), a.router.HistoryRecords(), historyLimit); err != nil {
		logging.Warn("failed to save task history", "error", err)
	}
	if err := a.gateway.Close(); err != nil {
		logging.Warn("failed to close backend", "error", err)
	}
	logging.Close()
}
