package client

import (
	"context"
	"iter"
	"net/http"
	"time"

	"smartassist/internal/config"
	"smartassist/internal/ratelimit"
)

// Backend is the capability set every model provider adapter offers.
type Backend interface {
	// GenerateResponse sends a single prompt and returns the reply text.
	// A backend that is not configured returns "" and a nil error.
	GenerateResponse(ctx context.Context, prompt string) (string, error)

	// AnalyzeIntent returns a short description of what the user wants.
	AnalyzeIntent(ctx context.Context, input string) (string, error)

	// ValidateTask asks the model whether a task can be executed.
	// Unparseable answers count as false.
	ValidateTask(ctx context.Context, description string) (bool, error)

	// DecomposeCommand splits a compound command into sub-task descriptions.
	// The returned sequence can be ranged over once.
	DecomposeCommand(ctx context.Context, command string) (iter.Seq[string], error)

	// ID returns the backend identifier.
	ID() config.BackendID

	// Model returns the model id, which is also the rate-limit key.
	Model() string

	// Configured reports whether the backend has what it needs to make calls.
	Configured() bool

	// Close releases resources held by the backend.
	Close() error
}

// Options holds dependencies shared by every backend the factory builds.
type Options struct {
	// Limiter is shared so quota for a model survives adapter replacement.
	Limiter *ratelimit.Limiter

	// HTTPClient overrides the client used by HTTP backends (tests).
	HTTPClient *http.Client

	// Timeout for HTTP requests when HTTPClient is nil. Default: 120s.
	Timeout time.Duration
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) limiter() *ratelimit.Limiter {
	if o.Limiter != nil {
		return o.Limiter
	}
	return ratelimit.NewLimiter(ratelimit.DefaultConfig())
}
