package tasks

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartassist/internal/automation"
	"smartassist/internal/logging"
)

// Gateway is the model access the router needs.
type Gateway interface {
	Classify(ctx context.Context, description string) (string, error)
	DecomposeCommand(ctx context.Context, command string) (iter.Seq[string], error)
}

// Router classifies task descriptions, dispatches them to the automation
// executor and keeps the task records.
type Router struct {
	gateway  Gateway
	executor automation.Executor

	active  map[string]*Record
	history []Record

	newID func() string
	now   func() time.Time

	mu sync.RWMutex
}

// NewRouter creates a task router.
func NewRouter(gw Gateway, exec automation.Executor) *Router {
	return &Router{
		gateway:  gw,
		executor: exec,
		active:   make(map[string]*Record),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// ExecuteTask runs a single task, or a compound command when description
// carries the COMMAND: prefix. It reports whether the task succeeded.
func (r *Router) ExecuteTask(ctx context.Context, description string) bool {
	if command, ok := cutCommand(description); ok {
		return r.ExecuteCommand(ctx, command)
	}
	return r.executeSingle(ctx, description)
}

// ExecuteCommand decomposes command into sub-tasks and runs them in order.
// Every sub-task runs even after a failure; the result is true only when all
// of them succeed.
func (r *Router) ExecuteCommand(ctx context.Context, command string) bool {
	seq, err := r.gateway.DecomposeCommand(ctx, command)
	if err != nil {
		logging.Error("command decomposition failed", "command", command, "error", err)
		return false
	}

	subtasks := slices.Collect(seq)
	if len(subtasks) == 0 {
		logging.Warn("command produced no tasks", "command", command)
		return false
	}

	logging.Info("executing command", "command", command, "tasks", len(subtasks))
	all := true
	for _, sub := range subtasks {
		// Sub-tasks are never decomposed again, even with a COMMAND: prefix.
		if !r.executeSingle(ctx, sub) {
			all = false
		}
	}
	return all
}

func (r *Router) executeSingle(ctx context.Context, description string) bool {
	rec := r.start(description)

	label, err := r.gateway.Classify(ctx, description)
	if err != nil {
		r.finish(rec.ID, false, fmt.Errorf("classify task: %w", err))
		return false
	}

	typ := ParseType(label)
	r.mu.Lock()
	if a, ok := r.active[rec.ID]; ok {
		a.Type = typ
	}
	r.mu.Unlock()

	ok, err := r.dispatch(ctx, typ, description)
	return r.finish(rec.ID, ok, err)
}

func (r *Router) dispatch(ctx context.Context, typ Type, description string) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, &automation.Error{Op: string(typ), Msg: fmt.Sprintf("panic: %v", p)}
		}
	}()

	switch typ {
	case TypeBrowser:
		return r.executor.ExecuteBrowserTask(ctx, description)
	case TypeSystem:
		return r.executor.ExecuteSystemTask(ctx, description)
	case TypeFile:
		return r.executor.ExecuteFileTask(ctx, description)
	default:
		return false, fmt.Errorf("unknown task type for %q", description)
	}
}

func (r *Router) start(description string) Record {
	now := r.now()
	rec := &Record{
		ID:          r.newID(),
		Description: description,
		Status:      StatusRunning,
		CreatedAt:   now,
		StartedAt:   now,
	}

	r.mu.Lock()
	r.active[rec.ID] = rec
	r.mu.Unlock()

	logging.Debug("task started", "id", rec.ID, "description", description)
	return *rec
}

// finish moves an active task to history. A task that is no longer active
// was cancelled, and its late result is dropped.
func (r *Router) finish(id string, ok bool, err error) bool {
	r.mu.Lock()
	rec, active := r.active[id]
	if !active || rec.Status.IsTerminal() {
		r.mu.Unlock()
		logging.Debug("dropping result for inactive task", "id", id, "success", ok)
		return false
	}

	completed := r.now()
	rec.CompletedAt = &completed
	switch {
	case err != nil:
		rec.Status = StatusFailed
		rec.ErrorMessage = err.Error()
	case ok:
		rec.Status = StatusCompleted
		rec.Result = "Task completed successfully"
	default:
		rec.Status = StatusFailed
		rec.Result = "Task failed"
	}
	delete(r.active, id)
	r.history = append(r.history, *rec)
	done := *rec
	r.mu.Unlock()

	if done.Status == StatusFailed {
		logging.Warn("task failed", "id", id, "type", done.Type, "error", done.ErrorMessage)
	} else {
		logging.Info("task completed", "id", id, "type", done.Type, "duration", done.Duration())
	}
	return done.Status == StatusCompleted
}

// TaskStatus returns the status of the task with the given id.
func (r *Router) TaskStatus(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.active[id]; ok {
		return rec.Status, true
	}
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ID == id {
			return r.history[i].Status, true
		}
	}
	return StatusPending, false
}

// CancelTask marks an active task as cancelled. It does not interrupt an
// executor call already in flight. Unknown ids are logged and ignored.
func (r *Router) CancelTask(id string) bool {
	r.mu.Lock()
	rec, ok := r.active[id]
	if !ok || rec.Status.IsTerminal() {
		r.mu.Unlock()
		logging.Warn("cancel: task not active", "id", id)
		return false
	}

	completed := r.now()
	rec.Status = StatusCancelled
	rec.CompletedAt = &completed
	delete(r.active, id)
	r.history = append(r.history, *rec)
	r.mu.Unlock()

	logging.Info("task cancelled", "id", id)
	return true
}

// History returns the finished tasks as JSON, oldest first.
func (r *Router) History() ([]byte, error) {
	data, err := json.MarshalIndent(r.HistoryRecords(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal task history: %w", err)
	}
	return data, nil
}

// HistoryRecords returns a copy of the finished tasks, oldest first.
func (r *Router) HistoryRecords() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.history))
	for i, rec := range r.history {
		out[i] = rec.clone()
	}
	return out
}

// Active returns a copy of the tasks still running, oldest first.
func (r *Router) Active() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.active))
	for _, rec := range r.active {
		out = append(out, rec.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}
