// Package assistant turns raw user input into a chat reply or an executed task.
package assistant

import (
	"context"
	"fmt"
	"iter"

	"smartassist/internal/logging"
	"smartassist/internal/tasks"
)

// Replies returned by ProcessInput.
const (
	ReplyCommandSucceeded = "The command was executed successfully."
	ReplyCommandFailed    = "An error occurred while executing the command."
	ReplyTaskSucceeded    = "The task was executed successfully."
	ReplyTaskFailed       = "An error occurred while executing the task."
	ReplyCannotPerform    = "Sorry, I cannot perform this task."
)

// Model is the language-model access the assistant needs.
type Model interface {
	GenerateResponse(ctx context.Context, prompt string) (string, error)
	AnalyzeIntent(ctx context.Context, input string) (string, error)
	ValidateTask(ctx context.Context, description string) (bool, error)
}

// Runner executes task descriptions.
type Runner interface {
	ExecuteTask(ctx context.Context, description string) bool
}

// Assistant routes user input between chat and task execution.
type Assistant struct {
	model  Model
	runner Runner
}

// New creates an assistant.
func New(model Model, runner Runner) *Assistant {
	return &Assistant{model: model, runner: runner}
}

// ProcessInput handles one line of user input. COMMAND: input is executed
// directly. Anything else is sent to the model as chat; when the model has
// no reply the input is analyzed as an intent, validated and executed.
func (a *Assistant) ProcessInput(ctx context.Context, input string) (string, error) {
	logging.Debug("processing input", "input", input)

	if tasks.IsCommand(input) {
		if a.runner.ExecuteTask(ctx, input) {
			return ReplyCommandSucceeded, nil
		}
		return ReplyCommandFailed, nil
	}

	reply, err := a.model.GenerateResponse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("process input: %w", err)
	}
	if reply != "" {
		return reply, nil
	}

	logging.Debug("no direct reply, analyzing intent")
	intent, err := a.model.AnalyzeIntent(ctx, input)
	if err != nil {
		return "", fmt.Errorf("analyze intent: %w", err)
	}
	logging.Info("analyzed intent", "intent", intent)

	valid, err := a.model.ValidateTask(ctx, intent)
	if err != nil {
		return "", fmt.Errorf("validate task: %w", err)
	}
	if !valid {
		return ReplyCannotPerform, nil
	}

	if a.runner.ExecuteTask(ctx, intent) {
		return ReplyTaskSucceeded, nil
	}
	return ReplyTaskFailed, nil
}

// Respond returns the model's chat reply to input.
func (a *Assistant) Respond(ctx context.Context, input string) (string, error) {
	return a.model.GenerateResponse(ctx, input)
}

// Session feeds every input to ProcessInput and yields the replies. It stops
// at the first error or when ctx is done.
func (a *Assistant) Session(ctx context.Context, inputs iter.Seq[string]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for input := range inputs {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			reply, err := a.ProcessInput(ctx, input)
			if !yield(reply, err) || err != nil {
				return
			}
		}
	}
}
