package gateway

import (
	"context"
	"errors"
	"fmt"

	"smartassist/internal/config"
	"smartassist/internal/logging"
	"smartassist/internal/robustness"
)

// breaker returns the circuit breaker for id, creating it on first use.
func (g *Gateway) breaker(id config.BackendID) *robustness.CircuitBreaker {
	g.breakersMu.Lock()
	defer g.breakersMu.Unlock()

	cb, ok := g.breakers[id]
	if !ok {
		cb = robustness.NewCircuitBreaker(g.fallback.FailureThreshold, g.fallback.Cooldown)
		g.breakers[id] = cb
	}
	return cb
}

// recordOutcome feeds a call result to the backend's breaker and falls back
// once the breaker opens. Cancellation by the caller is not a backend failure.
func (g *Gateway) recordOutcome(id config.BackendID, err error) {
	if !g.fallback.Enabled {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	cb := g.breaker(id)
	cb.Record(err)
	if err != nil && cb.GetState() == robustness.StateOpen {
		g.tryFallback(id)
	}
}

// tryFallback switches from a persistently failing backend to the first other
// configured backend that is usable. It is best-effort: every failure is
// logged and swallowed so the caller only ever sees its original error.
// TODO: decide whether silent fallback should stay the production default or
// become opt-in once operators have seen the logs.
func (g *Gateway) tryFallback(from config.BackendID) {
	settings := g.Settings()
	if settings.CurrentBackend != from {
		return
	}

	for _, id := range settings.Configured() {
		if id == from || !g.breaker(id).Allow() {
			continue
		}
		if _, err := g.switchTo(context.Background(), id, true); err != nil {
			logging.Debug("fallback candidate rejected", "backend", id, "error", err)
			g.status.OnError(fmt.Errorf("fallback from %s: %w", from, err), true)
			continue
		}

		logging.Warn("falling back to alternate backend", "from", from, "to", id)
		g.status.OnFallback(from, id)
		return
	}

	logging.Warn("no fallback backend available", "from", from)
}

// BackendInfo describes one configured backend.
type BackendInfo struct {
	Key      string
	ID       config.BackendID
	Model    string
	Current  bool
	Breaker  robustness.State
	Failures int // consecutive failures seen by the breaker
}

// Backends lists the configured backends in key order.
func (g *Gateway) Backends() []BackendInfo {
	settings := g.Settings()

	infos := make([]BackendInfo, 0, len(settings.Backends))
	for _, key := range settings.Keys() {
		bc := settings.Backends[key]
		cb := g.breaker(bc.Type)
		infos = append(infos, BackendInfo{
			Key:      key,
			ID:       bc.Type,
			Model:    bc.ModelID,
			Current:  bc.Type == settings.CurrentBackend,
			Breaker:  cb.GetState(),
			Failures: cb.Failures(),
		})
	}
	return infos
}
