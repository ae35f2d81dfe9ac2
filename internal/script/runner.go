package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/keycastsh/keycast/internal/protocol"
)

// Actions is the slice of the protocol client a script drives.
// *client.Client implements it.
type Actions interface {
	OpenFile(path string) (string, error)
	CreateFile(path, content string) (string, error)
	SaveFile() (string, error)
	CloseFile(path string) (string, error)
	Type(params protocol.TypeParams) (protocol.TypeResult, error)
	RunCommand(command string, args []json.RawMessage) (json.RawMessage, error)
}

// Runner plays scripts step by step, in order, stopping at the first
// failure.
type Runner struct {
	actions Actions
	logger  *slog.Logger
}

// NewRunner returns a runner driving the given actions.
func NewRunner(actions Actions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{actions: actions, logger: logger}
}

// Run executes every step of s. A failing step aborts the rest; the error
// names the step. ctx cancels between steps and during pauses — a step
// already sent to the server runs to completion.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	if s.Name != "" {
		r.logger.Info("script: starting", "name", s.Name, "steps", len(s.Steps))
	}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		k, err := step.kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := r.runStep(ctx, step, k); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, k, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step, k kind) error {
	switch k {
	case kindOpen:
		r.logger.Info("script: open", "path", step.Open)
		_, err := r.actions.OpenFile(step.Open)
		return err

	case kindCreate:
		r.logger.Info("script: create", "path", step.Create, "bytes", len(step.Content))
		_, err := r.actions.CreateFile(step.Create, step.Content)
		return err

	case kindType:
		r.logger.Info("script: type", "chars", len(*step.Type), "quick", step.Quick)
		_, err := r.actions.Type(step.typeParams())
		return err

	case kindSave:
		r.logger.Info("script: save")
		_, err := r.actions.SaveFile()
		return err

	case kindClose:
		r.logger.Info("script: close", "path", *step.Close)
		_, err := r.actions.CloseFile(*step.Close)
		return err

	case kindExec:
		r.logger.Info("script: exec", "command", step.Exec)
		args, err := encodeArgs(step.Args)
		if err != nil {
			return err
		}
		_, err = r.actions.RunCommand(step.Exec, args)
		return err

	case kindPause:
		d, err := step.pauseDuration()
		if err != nil {
			return err
		}
		r.logger.Info("script: pause", "duration", d)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	return fmt.Errorf("unhandled step kind %v", k)
}

// encodeArgs converts the script's free-form exec arguments into the wire's
// raw JSON values.
func encodeArgs(args []any) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding arg %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}
