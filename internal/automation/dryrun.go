package automation

import (
	"context"
	"strings"
	"sync"
	"time"

	"smartassist/internal/logging"
)

var (
	_ Executor    = (*DryRunExecutor)(nil)
	_ Interpreter = (*DryRunExecutor)(nil)
)

// Invocation records one call made to a DryRunExecutor.
type Invocation struct {
	Op          string
	Description string
	At          time.Time
}

// DryRunExecutor is an Executor and Interpreter that performs nothing. It logs
// and records every call and reports success for non-blank input.
type DryRunExecutor struct {
	mu    sync.Mutex
	calls []Invocation
}

// NewDryRunExecutor creates a dry-run collaborator.
func NewDryRunExecutor() *DryRunExecutor {
	return &DryRunExecutor{}
}

func (d *DryRunExecutor) record(op, description string) bool {
	d.mu.Lock()
	d.calls = append(d.calls, Invocation{Op: op, Description: description, At: time.Now()})
	d.mu.Unlock()

	logging.Info("dry run", "op", op, "description", description)
	return strings.TrimSpace(description) != ""
}

func (d *DryRunExecutor) ExecuteBrowserTask(ctx context.Context, description string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &Error{Op: "browser", Err: err}
	}
	return d.record("browser", description), nil
}

func (d *DryRunExecutor) ExecuteSystemTask(ctx context.Context, description string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &Error{Op: "system", Err: err}
	}
	return d.record("system", description), nil
}

func (d *DryRunExecutor) ExecuteFileTask(ctx context.Context, description string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &Error{Op: "file", Err: err}
	}
	return d.record("file", description), nil
}

func (d *DryRunExecutor) ValidateTask(_ context.Context, description string) (bool, error) {
	return strings.TrimSpace(description) != "", nil
}

// RunCode records the script and returns no output.
func (d *DryRunExecutor) RunCode(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "script", Err: err}
	}
	d.record("script", code)
	return "", nil
}

// Calls returns the recorded invocations in order.
func (d *DryRunExecutor) Calls() []Invocation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Invocation, len(d.calls))
	copy(out, d.calls)
	return out
}
