package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter enforces a per-key request quota over a rolling window and allows
// at most one in-flight call per key. Calls for different keys run
// concurrently. Keys are model identifiers.
type Limiter struct {
	cfg Config

	mu     sync.Mutex
	quotas map[string]*quota

	// Statistics
	admitted  atomic.Int64
	rejected  atomic.Int64
	penalized atomic.Int64
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultLimit  int
	ResetInterval time.Duration
	Limits        map[string]int // per-key overrides
	Now           func() time.Time
}

// DefaultConfig returns the default rate limiter configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:  50,
		ResetInterval: time.Hour,
	}
}

type quota struct {
	slot chan struct{} // one in-flight call per key

	mu           sync.Mutex
	windowStart  time.Time
	requestCount int
	limit        int
	baseLimit    int
	penalized    bool // limit clamped by the provider until the window resets
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = def.ResetInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Limits = maps.Clone(cfg.Limits)

	return &Limiter{
		cfg:    cfg,
		quotas: make(map[string]*quota),
	}
}

// Do runs action for key if the key's quota admits it. The call holds the
// key's slot for its whole duration, so actions for the same key never
// overlap. When the quota is spent, Do returns *ExceededError without
// invoking action. When action reports a provider-side limit through
// *ProviderLimitError, the key is penalized to one request per window and
// the returned *ExceededError carries the provider's wait.
func Do[T any](ctx context.Context, l *Limiter, key string, action func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	q := l.quota(key)

	select {
	case q.slot <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-q.slot }()

	// select picks randomly when both cases are ready.
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := l.admit(key, q); err != nil {
		return zero, err
	}

	result, err := action(ctx)
	if err != nil {
		var ple *ProviderLimitError
		if errors.As(err, &ple) {
			return zero, l.penalize(key, q, ple)
		}
		return zero, err
	}
	return result, nil
}

// quota returns the state for key, creating it on first use.
func (l *Limiter) quota(key string) *quota {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.quotas[key]
	if !ok {
		limit := l.baseLimitFor(key)
		q = &quota{
			slot:        make(chan struct{}, 1),
			windowStart: l.cfg.Now(),
			limit:       limit,
			baseLimit:   limit,
		}
		l.quotas[key] = q
	}
	return q
}

func (l *Limiter) baseLimitFor(key string) int {
	if n, ok := l.cfg.Limits[key]; ok && n > 0 {
		return n
	}
	return l.cfg.DefaultLimit
}

func (l *Limiter) admit(key string, q *quota) error {
	now := l.cfg.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	if now.Sub(q.windowStart) > l.cfg.ResetInterval {
		q.requestCount = 0
		q.windowStart = now
		q.limit = q.baseLimit
		q.penalized = false
	}

	if q.requestCount >= q.limit {
		l.rejected.Add(1)
		return &ExceededError{
			Key:      key,
			WaitTime: max(0, q.windowStart.Add(l.cfg.ResetInterval).Sub(now)),
		}
	}

	q.requestCount++
	// Rolling window: each admitted call restarts the window.
	q.windowStart = now
	l.admitted.Add(1)
	return nil
}

// penalize clamps the key to one request per window and shifts the window so
// the next rejection reports the provider's requested wait.
func (l *Limiter) penalize(key string, q *quota, ple *ProviderLimitError) error {
	now := l.cfg.Now()
	wait := ple.RetryAfter
	if wait <= 0 {
		wait = l.cfg.ResetInterval
	}

	q.mu.Lock()
	q.limit = 1
	q.penalized = true
	q.requestCount = max(q.requestCount, 1)
	q.windowStart = now.Add(wait - l.cfg.ResetInterval)
	q.mu.Unlock()

	l.penalized.Add(1)
	return &ExceededError{Key: key, WaitTime: wait, Err: ple}
}

// Remaining returns the number of requests key may still make in the current
// window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	q, ok := l.quotas[key]
	l.mu.Unlock()
	if !ok {
		return l.baseLimitFor(key)
	}

	now := l.cfg.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	if now.Sub(q.windowStart) > l.cfg.ResetInterval {
		return q.baseLimit
	}
	return max(0, q.limit-q.requestCount)
}

// TimeUntilReset returns how long until key's window resets. Zero for keys
// that have not been used.
func (l *Limiter) TimeUntilReset(key string) time.Duration {
	l.mu.Lock()
	q, ok := l.quotas[key]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	now := l.cfg.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	return max(0, q.windowStart.Add(l.cfg.ResetInterval).Sub(now))
}

// SetLimit overrides the request limit for key. The new value also becomes
// the limit restored after a window reset. A limit of 0 blocks the key;
// negative values are treated as 0. While the key is penalized after a
// provider-side limit, the current window keeps the lower of the two limits.
func (l *Limiter) SetLimit(key string, n int) {
	n = max(n, 0)
	q := l.quota(key)

	q.mu.Lock()
	q.baseLimit = n
	if q.penalized {
		q.limit = min(q.limit, n)
	} else {
		q.limit = n
	}
	q.mu.Unlock()
}

// KeyStats is a snapshot of one key's quota.
type KeyStats struct {
	Key       string
	Limit     int
	Used      int
	Remaining int
	ResetIn   time.Duration
}

// Stats holds limiter statistics.
type Stats struct {
	Admitted  int64
	Rejected  int64
	Penalized int64
	Keys      []KeyStats
}

// Stats returns a snapshot of the limiter, with keys sorted by name.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	keys := slices.Sorted(maps.Keys(l.quotas))
	l.mu.Unlock()

	st := Stats{
		Admitted:  l.admitted.Load(),
		Rejected:  l.rejected.Load(),
		Penalized: l.penalized.Load(),
		Keys:      make([]KeyStats, 0, len(keys)),
	}
	for _, key := range keys {
		l.mu.Lock()
		q := l.quotas[key]
		l.mu.Unlock()

		q.mu.Lock()
		ks := KeyStats{Key: key, Limit: q.limit, Used: q.requestCount}
		q.mu.Unlock()

		ks.Remaining = l.Remaining(key)
		ks.ResetIn = l.TimeUntilReset(key)
		st.Keys = append(st.Keys, ks)
	}
	return st
}

// ExceededError is returned when a key's quota is spent. WaitTime is how long
// the caller should wait before trying again.
type ExceededError struct {
	Key      string
	WaitTime time.Duration
	Err      error // provider signal, when the limit came from the provider
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, try again in %s", e.Key, e.WaitTime.Round(time.Second))
}

func (e *ExceededError) Unwrap() error {
	return e.Err
}

// ProviderLimitError reports that the provider itself rejected a request for
// rate-limit reasons. RetryAfter is the wait the provider asked for.
type ProviderLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *ProviderLimitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider rate limit, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("provider rate limit, retry after %s: %s", e.RetryAfter, e.Message)
}
