package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"templar.dev/pkg/templar/internal/adapter"
	m "templar.dev/pkg/templar/internal/model"
)

// Executor runs one program against the configured engine.
type Executor interface {
	Execute(ctx context.Context, source string) (m.Execution, error)
}

type executor struct {
	runner adapter.EngineRunnerAdapter
	spec   m.EngineSpec
	// fileLock serializes runs sharing one coverage file.
	fileLock *sync.Mutex
}

var coverageLocks sync.Map

// NewExecutor binds an engine spec to a runner.
func NewExecutor(runner adapter.EngineRunnerAdapter, spec m.EngineSpec) Executor {
	e := &executor{runner: runner, spec: spec}

	if spec.CoverageFile != "" {
		lock, _ := coverageLocks.LoadOrStore(spec.CoverageFile, &sync.Mutex{})
		e.fileLock = lock.(*sync.Mutex)
	}

	return e
}

func (e *executor) Execute(ctx context.Context, source string) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	if e.fileLock != nil {
		e.fileLock.Lock()
		defer e.fileLock.Unlock()
	}

	execution, err := e.runner.Run(ctx, e.spec, source)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Failed to run engine", "command", e.spec.Command, "error", err)
		}

		return execution, fmt.Errorf("run engine: %w", err)
	}

	return execution, nil
}

// Classify maps an execution to the sentinel describing its outcome, or nil
// for a normal run with a score.
func Classify(execution m.Execution) error {
	switch {
	case execution.Status == m.StatusTimeout:
		return ErrExecutionTimeout
	case execution.Status == m.StatusCrash:
		return ErrCrashDetected
	case !execution.HasScore:
		return ErrScoreUnavailable
	}

	return nil
}
