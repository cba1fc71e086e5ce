package tasks

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle status of a task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, c := range []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", text)
}

// Type is the automation category a task is dispatched to.
type Type string

const (
	TypeUnknown Type = ""
	TypeBrowser Type = "browser"
	TypeSystem  Type = "system"
	TypeFile    Type = "file"
)

// ParseType maps a classification label to a Type.
func ParseType(label string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(label))) {
	case TypeBrowser:
		return TypeBrowser
	case TypeSystem:
		return TypeSystem
	case TypeFile:
		return TypeFile
	default:
		return TypeUnknown
	}
}

// Record is the bookkeeping entry for one task.
type Record struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       string     `json:"result,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Duration returns how long the task ran, or zero while it is still active.
func (r Record) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r Record) clone() Record {
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

const commandPrefix = "COMMAND:"

// cutCommand reports whether input carries the case-insensitive COMMAND:
// prefix and returns the remainder.
func cutCommand(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if len(s) < len(commandPrefix) || !strings.EqualFold(s[:len(commandPrefix)], commandPrefix) {
		return input, false
	}
	return strings.TrimSpace(s[len(commandPrefix):]), true
}

// IsCommand reports whether input is a compound command.
func IsCommand(input string) bool {
	_, ok := cutCommand(input)
	return ok
}
