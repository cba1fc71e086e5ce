package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ok(context.Context) (string, error) { return "ok", nil }

func TestDoCountsDownRemaining(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{DefaultLimit: 3, ResetInterval: time.Hour, Now: clock.Now})
	ctx := context.Background()

	assert.Equal(t, 3, l.Remaining("gpt-4"))
	for want := 2; want >= 0; want-- {
		got, err := Do(ctx, l, "gpt-4", ok)
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, want, l.Remaining("gpt-4"))
	}
}

func TestDoRejectsWithoutInvokingAction(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{DefaultLimit: 1, ResetInterval: time.Hour, Now: clock.Now})
	ctx := context.Background()

	_, err := Do(ctx, l, "claude-2.1", ok)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	called := false
	_, err = Do(ctx, l, "claude-2.1", func(context.Context) (string, error) {
		called = true
		return "", nil
	})

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.False(t, called)
	assert.Equal(t, "claude-2.1", exceeded.Key)
	assert.Equal(t, 50*time.Minute, exceeded.WaitTime)
	assert.Equal(t, int64(1), l.Stats().Rejected)
}

func TestWindowResetRestoresQuota(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{DefaultLimit: 1, ResetInterval: time.Hour, Now: clock.Now})
	ctx := context.Background()

	_, err := Do(ctx, l, "k", ok)
	require.NoError(t, err)
	_, err = Do(ctx, l, "k", ok)
	require.Error(t, err)

	clock.Advance(time.Hour + time.Second)
	assert.Equal(t, 1, l.Remaining("k"))
	_, err = Do(ctx, l, "k", ok)
	require.NoError(t, err)
}

func TestDoSerializesSameKey(t *testing.T) {
	l := NewLimiter(Config{DefaultLimit: 100})
	ctx := context.Background()

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Do(ctx, l, "same", func(context.Context) (int, error) {
				n := inFlight.Add(1)
				for {
					m := maxInFlight.Load()
					if n <= m || maxInFlight.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return 0, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, 90, l.Remaining("same"))
}

func TestDoRunsDifferentKeysConcurrently(t *testing.T) {
	l := NewLimiter(Config{})
	ctx := context.Background()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(ctx, l, key, func(context.Context) (int, error) {
				entered <- struct{}{}
				<-release
				return 0, nil
			})
		}()
	}

	for range 2 {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("calls for different keys did not run concurrently")
		}
	}
	close(release)
	wg.Wait()
}

func TestDoHonorsContextWhileWaitingForSlot(t *testing.T) {
	l := NewLimiter(Config{})
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = Do(context.Background(), l, "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, l, "k", func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestProviderLimitPenalizesKey(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{DefaultLimit: 50, ResetInterval: time.Hour, Now: clock.Now})
	ctx := context.Background()

	_, err := Do(ctx, l, "qwen-turbo", func(context.Context) (string, error) {
		return "", &ProviderLimitError{RetryAfter: 5 * time.Minute, Message: "Rate limit reached"}
	})

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 5*time.Minute, exceeded.WaitTime)

	var ple *ProviderLimitError
	assert.True(t, errors.As(err, &ple))

	called := false
	_, err = Do(ctx, l, "qwen-turbo", func(context.Context) (string, error) {
		called = true
		return "", nil
	})
	require.ErrorAs(t, err, &exceeded)
	assert.False(t, called)
	assert.InDelta(t, float64(5*time.Minute), float64(exceeded.WaitTime), float64(time.Second))

	// After the provider's wait, a fresh window restores the configured limit.
	clock.Advance(5*time.Minute + time.Second)
	_, err = Do(ctx, l, "qwen-turbo", ok)
	require.NoError(t, err)
	assert.Equal(t, 49, l.Remaining("qwen-turbo"))
}

func TestOtherErrorsPassThrough(t *testing.T) {
	l := NewLimiter(Config{DefaultLimit: 2})
	boom := errors.New("boom")

	_, err := Do(context.Background(), l, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, l.Remaining("k"))
}

func TestSetLimitAndStats(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{
		DefaultLimit:  10,
		ResetInterval: time.Hour,
		Limits:        map[string]int{"gpt-4": 4},
		Now:           clock.Now,
	})
	ctx := context.Background()

	assert.Equal(t, 4, l.Remaining("gpt-4"))
	assert.Zero(t, l.TimeUntilReset("gpt-4"))

	l.SetLimit("claude-2.1", 2)
	_, err := Do(ctx, l, "claude-2.1", ok)
	require.NoError(t, err)
	_, err = Do(ctx, l, "gpt-4", ok)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	st := l.Stats()
	require.Len(t, st.Keys, 2)
	assert.Equal(t, int64(2), st.Admitted)

	assert.Equal(t, KeyStats{Key: "claude-2.1", Limit: 2, Used: 1, Remaining: 1, ResetIn: 45 * time.Minute}, st.Keys[0])
	assert.Equal(t, KeyStats{Key: "gpt-4", Limit: 4, Used: 1, Remaining: 3, ResetIn: 45 * time.Minute}, st.Keys[1])
}

func TestDoWithCancelledContextNeverRuns(t *testing.T) {
	l := NewLimiter(Config{DefaultLimit: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	for range 200 {
		_, err := Do(ctx, l, "gpt-4", func(context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1000, l.Remaining("gpt-4"))
}

func TestSetLimitKeepsProviderPenalty(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(Config{DefaultLimit: 10, ResetInterval: time.Hour, Now: clock.Now})
	ctx := context.Background()

	_, err := Do(ctx, l, "gpt-4", func(context.Context) (string, error) {
		return "", &ProviderLimitError{RetryAfter: 5 * time.Minute}
	})
	require.Error(t, err)

	l.SetLimit("gpt-4", 50)

	called := false
	_, err = Do(ctx, l, "gpt-4", func(context.Context) (string, error) {
		called = true
		return "", nil
	})
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.False(t, called)

	// The new limit applies once the penalty window is over.
	clock.Advance(5*time.Minute + time.Second)
	_, err = Do(ctx, l, "gpt-4", ok)
	require.NoError(t, err)
	assert.Equal(t, 49, l.Remaining("gpt-4"))
}

func TestSetLimitZeroBlocksKey(t *testing.T) {
	l := NewLimiter(Config{DefaultLimit: 5})

	l.SetLimit("claude-2.1", 0)
	called := false
	_, err := Do(context.Background(), l, "claude-2.1", func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.False(t, called)
	assert.Zero(t, l.Remaining("claude-2.1"))

	l.SetLimit("claude-2.1", -3)
	assert.Zero(t, l.Remaining("claude-2.1"))
}
