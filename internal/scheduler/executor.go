package scheduler

import (
	"context"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/runner"
)

// Process is a started engine process.
type Process interface {
	Wait() events.Completion
}

// Executor spawns engine processes. Cancelling the context passed to Start
// must stop the process.
type Executor interface {
	Start(ctx context.Context, req runner.Request) (Process, error)
	Running(jobID string) bool
}

// RunnerExecutor adapts *runner.Runner to Executor.
type RunnerExecutor struct {
	Runner *runner.Runner
}

func (e RunnerExecutor) Start(ctx context.Context, req runner.Request) (Process, error) {
	exec, err := e.Runner.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return exec, nil
}

func (e RunnerExecutor) Running(jobID string) bool {
	return e.Runner.Running(jobID)
}
