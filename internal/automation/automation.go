// Package automation defines the boundary to the collaborators that carry out
// tasks: the automation executor (browser, system and file actions) and the
// embedded script interpreter.
package automation

import (
	"context"
	"fmt"
)

// Executor carries out a single task description. A false result with a nil
// error means the executor ran but the task did not succeed.
type Executor interface {
	ExecuteBrowserTask(ctx context.Context, description string) (bool, error)
	ExecuteSystemTask(ctx context.Context, description string) (bool, error)
	ExecuteFileTask(ctx context.Context, description string) (bool, error)
	ValidateTask(ctx context.Context, description string) (bool, error)
}

// Interpreter runs a script and returns its output.
type Interpreter interface {
	RunCode(ctx context.Context, code string) (string, error)
}

// Error is an opaque failure reported by an automation collaborator.
type Error struct {
	Op  string // e.g. "browser", "system", "file", "script"
	Msg string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("automation %s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("automation %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("automation %s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
