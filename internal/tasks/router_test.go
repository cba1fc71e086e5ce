package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartassist/internal/automation"
)

type stubGateway struct {
	labels       map[string]string
	subtasks     []string
	decomposeErr error
	classifyErr  error

	mu       sync.Mutex
	commands []string
}

func (g *stubGateway) Classify(_ context.Context, description string) (string, error) {
	if g.classifyErr != nil {
		return "", g.classifyErr
	}
	for keyword, label := range g.labels {
		if strings.Contains(description, keyword) {
			return label, nil
		}
	}
	return "", nil
}

func (g *stubGateway) DecomposeCommand(_ context.Context, command string) (iter.Seq[string], error) {
	g.mu.Lock()
	g.commands = append(g.commands, command)
	g.mu.Unlock()
	if g.decomposeErr != nil {
		return nil, g.decomposeErr
	}
	return slices.Values(g.subtasks), nil
}

type stubExecutor struct {
	results map[string]bool
	errs    map[string]error
	block   chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	calls map[string][]string
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		results: map[string]bool{"browser": true, "system": true, "file": true},
		errs:    map[string]error{},
		calls:   map[string][]string{},
	}
}

func (e *stubExecutor) run(ctx context.Context, op, description string) (bool, error) {
	e.mu.Lock()
	e.calls[op] = append(e.calls[op], description)
	e.mu.Unlock()

	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err := e.errs[op]; err != nil {
		return false, err
	}
	return e.results[op], nil
}

func (e *stubExecutor) ExecuteBrowserTask(ctx context.Context, d string) (bool, error) {
	return e.run(ctx, "browser", d)
}

func (e *stubExecutor) ExecuteSystemTask(ctx context.Context, d string) (bool, error) {
	return e.run(ctx, "system", d)
}

func (e *stubExecutor) ExecuteFileTask(ctx context.Context, d string) (bool, error) {
	if d == "panic" {
		panic("disk on fire")
	}
	return e.run(ctx, "file", d)
}

func (e *stubExecutor) ValidateTask(context.Context, string) (bool, error) {
	return true, nil
}

func (e *stubExecutor) callsFor(op string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls[op])
}

var defaultLabels = map[string]string{
	"youtube": "browser",
	"volume":  "system",
	"report":  "file",
}

func newTestRouter(gw *stubGateway, exec *stubExecutor) *Router {
	r := NewRouter(gw, exec)
	var n int
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	r.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("task-%d", n)
	}
	r.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return base.Add(time.Duration(n) * time.Second)
	}
	return r
}

func TestExecuteCommandEndToEnd(t *testing.T) {
	gw := &stubGateway{
		labels:   defaultLabels,
		subtasks: []string{"open youtube", "set volume to 50"},
	}
	exec := newStubExecutor()
	r := newTestRouter(gw, exec)

	ok := r.ExecuteTask(context.Background(), "COMMAND: open youtube and set volume to 50")
	require.True(t, ok)

	assert.Equal(t, []string{"open youtube and set volume to 50"}, gw.commands)
	assert.Equal(t, []string{"open youtube"}, exec.callsFor("browser"))
	assert.Equal(t, []string{"set volume to 50"}, exec.callsFor("system"))

	history := r.HistoryRecords()
	require.Len(t, history, 2)
	assert.Equal(t, TypeBrowser, history[0].Type)
	assert.Equal(t, TypeSystem, history[1].Type)
	for _, rec := range history {
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.NotNil(t, rec.CompletedAt)
	}
	assert.Empty(t, r.Active())
}

func TestExecuteCommandOneFailureRunsRest(t *testing.T) {
	gw := &stubGateway{
		labels:   defaultLabels,
		subtasks: []string{"set volume to 50", "open youtube"},
	}
	exec := newStubExecutor()
	exec.results["system"] = false
	r := newTestRouter(gw, exec)

	ok := r.ExecuteTask(context.Background(), "command: set volume to 50 then open youtube")
	assert.False(t, ok)

	assert.Len(t, exec.callsFor("system"), 1)
	assert.Len(t, exec.callsFor("browser"), 1)

	history := r.HistoryRecords()
	require.Len(t, history, 2)
	assert.Equal(t, StatusFailed, history[0].Status)
	assert.Equal(t, "Task failed", history[0].Result)
	assert.Equal(t, StatusCompleted, history[1].Status)
}

func TestExecuteCommandEmptyOrError(t *testing.T) {
	exec := newStubExecutor()

	r := newTestRouter(&stubGateway{labels: defaultLabels}, exec)
	assert.False(t, r.ExecuteCommand(context.Background(), "do nothing"))

	r = newTestRouter(&stubGateway{decomposeErr: errors.New("backend down")}, exec)
	assert.False(t, r.ExecuteCommand(context.Background(), "open youtube"))

	assert.Empty(t, r.HistoryRecords())
	assert.Empty(t, exec.callsFor("browser"))
}

func TestExecuteTaskFailures(t *testing.T) {
	t.Run("executor error", func(t *testing.T) {
		exec := newStubExecutor()
		exec.errs["browser"] = &automation.Error{Op: "browser", Msg: "page did not load"}
		r := newTestRouter(&stubGateway{labels: defaultLabels}, exec)

		assert.False(t, r.ExecuteTask(context.Background(), "open youtube"))

		status, ok := r.TaskStatus("task-1")
		require.True(t, ok)
		assert.Equal(t, StatusFailed, status)
		assert.Contains(t, r.HistoryRecords()[0].ErrorMessage, "page did not load")
	})

	t.Run("unknown type", func(t *testing.T) {
		exec := newStubExecutor()
		r := newTestRouter(&stubGateway{labels: defaultLabels}, exec)

		assert.False(t, r.ExecuteTask(context.Background(), "sing a song"))
		rec := r.HistoryRecords()[0]
		assert.Equal(t, TypeUnknown, rec.Type)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Contains(t, rec.ErrorMessage, "unknown task type")
	})

	t.Run("classify error", func(t *testing.T) {
		r := newTestRouter(&stubGateway{classifyErr: errors.New("quota exhausted")}, newStubExecutor())

		assert.False(t, r.ExecuteTask(context.Background(), "open youtube"))
		rec := r.HistoryRecords()[0]
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Contains(t, rec.ErrorMessage, "quota exhausted")
	})

	t.Run("executor panic", func(t *testing.T) {
		r := newTestRouter(&stubGateway{labels: map[string]string{"panic": "file"}}, newStubExecutor())

		assert.NotPanics(t, func() {
			assert.False(t, r.ExecuteTask(context.Background(), "panic"))
		})
		assert.Contains(t, r.HistoryRecords()[0].ErrorMessage, "disk on fire")
	})
}

func TestCancelTaskLifecycle(t *testing.T) {
	exec := newStubExecutor()
	exec.block = make(chan struct{})
	exec.entered = make(chan struct{}, 1)
	r := newTestRouter(&stubGateway{labels: defaultLabels}, exec)

	done := make(chan bool, 1)
	go func() {
		done <- r.ExecuteTask(context.Background(), "open youtube")
	}()
	<-exec.entered

	active := r.Active()
	require.Len(t, active, 1)
	id := active[0].ID
	status, ok := r.TaskStatus(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, status)

	require.True(t, r.CancelTask(id))
	status, ok = r.TaskStatus(id)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, status)

	// the executor finishes after the cancel and reports success
	close(exec.block)
	assert.False(t, <-done)

	status, _ = r.TaskStatus(id)
	assert.Equal(t, StatusCancelled, status)
	history := r.HistoryRecords()
	require.Len(t, history, 1)
	assert.Equal(t, StatusCancelled, history[0].Status)
	assert.NotNil(t, history[0].CompletedAt)
	assert.Empty(t, r.Active())
}

func TestCancelUnknownTask(t *testing.T) {
	r := newTestRouter(&stubGateway{}, newStubExecutor())
	assert.False(t, r.CancelTask("missing"))
	assert.Empty(t, r.HistoryRecords())

	_, ok := r.TaskStatus("missing")
	assert.False(t, ok)
}

func TestHistoryJSON(t *testing.T) {
	r := newTestRouter(&stubGateway{labels: defaultLabels}, newStubExecutor())
	require.True(t, r.ExecuteTask(context.Background(), "write the report"))

	data, err := r.History()
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "task-1", decoded[0]["id"])
	assert.Equal(t, "file", decoded[0]["type"])
	assert.Equal(t, "completed", decoded[0]["status"])
	assert.Equal(t, "write the report", decoded[0]["description"])
}

func TestHistoryIsCopied(t *testing.T) {
	r := newTestRouter(&stubGateway{labels: defaultLabels}, newStubExecutor())
	require.True(t, r.ExecuteTask(context.Background(), "open youtube"))

	history := r.HistoryRecords()
	history[0].Status = StatusFailed
	*history[0].CompletedAt = time.Time{}

	again := r.HistoryRecords()
	assert.Equal(t, StatusCompleted, again[0].Status)
	assert.False(t, again[0].CompletedAt.IsZero())
}

func TestCommandPrefix(t *testing.T) {
	tests := []struct {
		input string
		rest  string
		ok    bool
	}{
		{"COMMAND: open youtube", "open youtube", true},
		{"command:open youtube", "open youtube", true},
		{"  Command:  mute  ", "mute", true},
		{"open youtube", "open youtube", false},
		{"COMMAND", "COMMAND", false},
	}
	for _, tt := range tests {
		rest, ok := cutCommand(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.rest, rest, tt.input)
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	assert.Error(t, new(Status).UnmarshalText([]byte("bogus")))
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
}
