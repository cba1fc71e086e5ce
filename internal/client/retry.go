package client

import (
	"context"
	"time"
)

// RetryConfig holds the retry policy applied to rate-limited calls.
type RetryConfig struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay before retry n is BaseDelay * 2^n
	MaxDelay    time.Duration // Cap on a single delay (0 = no cap)
}

// DefaultRetryConfig returns the default policy: 3 attempts, 2s then 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// CalculateBackoff returns baseDelay * 2^attempt, capped at maxDelay when
// maxDelay is positive.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
