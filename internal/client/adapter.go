package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync/atomic"

	"smartassist/internal/config"
	"smartassist/internal/logging"
	"smartassist/internal/ratelimit"
)

// promptSet holds the instruction prefixes a backend uses for the derived
// operations.
type promptSet struct {
	intent    string
	validate  string
	decompose string
}

var defaultPrompts = promptSet{
	intent:    "Analyze the intent of this user input and provide a concise description: %s",
	validate:  "Can you execute this task? Answer only with 'true' or 'false': %s",
	decompose: "Break down this command into specific executable tasks. Format each task as a separate line:\nCommand: %s\nTasks:",
}

// callFunc performs one provider request. It runs inside the rate limiter.
type callFunc func(ctx context.Context, prompt string) (string, error)

// adapter implements the Backend operations shared by every variant on top
// of a provider-specific callFunc.
type adapter struct {
	id      config.BackendID
	cfg     config.BackendConfig
	limiter *ratelimit.Limiter
	prompts promptSet
	call    callFunc
	ready   bool
}

func newAdapter(cfg config.BackendConfig, opts Options, ready bool, call callFunc) adapter {
	return adapter{
		id:      cfg.Type,
		cfg:     cfg,
		limiter: opts.limiter(),
		prompts: defaultPrompts,
		call:    call,
		ready:   ready,
	}
}

func (a *adapter) ID() config.BackendID { return a.id }

func (a *adapter) Model() string {
	if a.cfg.ModelID != "" {
		return a.cfg.ModelID
	}
	return string(a.id)
}

func (a *adapter) Configured() bool { return a.ready }

func (a *adapter) generate(ctx context.Context, prompt string) (string, error) {
	if !a.ready {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, a.id)
	}
	return ratelimit.Do(ctx, a.limiter, a.Model(), func(ctx context.Context) (string, error) {
		return a.call(ctx, prompt)
	})
}

func (a *adapter) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	text, err := a.generate(ctx, prompt)
	if errors.Is(err, ErrNotConfigured) {
		logging.Warn("backend not configured, returning empty response",
			"backend", a.id,
			"model", a.Model())
		return "", nil
	}
	return text, err
}

func (a *adapter) AnalyzeIntent(ctx context.Context, input string) (string, error) {
	return a.GenerateResponse(ctx, fmt.Sprintf(a.prompts.intent, input))
}

func (a *adapter) ValidateTask(ctx context.Context, description string) (bool, error) {
	text, err := a.GenerateResponse(ctx, fmt.Sprintf(a.prompts.validate, description))
	if err != nil {
		return false, err
	}
	return parseVerdict(text), nil
}

func (a *adapter) DecomposeCommand(ctx context.Context, command string) (iter.Seq[string], error) {
	text, err := a.GenerateResponse(ctx, fmt.Sprintf(a.prompts.decompose, command))
	if err != nil {
		return nil, err
	}
	return SplitTasks(text), nil
}

// parseVerdict reads a yes/no answer. Anything but a boolean is false.
func parseVerdict(text string) bool {
	ok, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(text)))
	return err == nil && ok
}

// SplitTasks returns the non-blank lines of text, trimmed, as a sequence
// that yields values only the first time it is ranged over.
func SplitTasks(text string) iter.Seq[string] {
	var used atomic.Bool
	return func(yield func(string) bool) {
		if used.Swap(true) {
			return
		}
		for line := range strings.Lines(text) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}
