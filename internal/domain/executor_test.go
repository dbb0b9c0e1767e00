package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "templar.dev/pkg/templar/internal/model"
)

type failingRunner struct{}

func (failingRunner) Run(context.Context, m.EngineSpec, string) (m.Execution, error) {
	return m.Execution{}, errors.New("exec: no such file")
}

func (failingRunner) Validate(m.EngineSpec) error {
	return nil
}

func TestExecutor_Execute(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, m.EngineSpec{Command: "d8"})

	execution, err := exec.Execute(context.Background(), "a; b;")
	require.NoError(t, err)

	assert.Equal(t, m.StatusOK, execution.Status)
	assert.Equal(t, m.Score(2), execution.Score)
	assert.Equal(t, int64(1), runner.calls.Load())
}

func TestExecutor_CancelledContextSkipsRun(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, m.EngineSpec{Command: "d8", CoverageFile: "/tmp/cov-test"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, "a;")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runner.calls.Load())
}

func TestExecutor_WrapsRunnerErrors(t *testing.T) {
	_, err := NewExecutor(failingRunner{}, m.EngineSpec{Command: "d8"}).Execute(context.Background(), "a;")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run engine")
}

func TestExecutor_SharesCoverageFileLock(t *testing.T) {
	spec := m.EngineSpec{Command: "d8", CoverageFile: "/tmp/shared-cov"}

	a := NewExecutor(&fakeRunner{}, spec).(*executor)
	b := NewExecutor(&fakeRunner{}, spec).(*executor)
	c := NewExecutor(&fakeRunner{}, m.EngineSpec{Command: "d8"}).(*executor)

	assert.Same(t, a.fileLock, b.fileLock)
	assert.Nil(t, c.fileLock)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		exec m.Execution
		want error
	}{
		{name: "ok", exec: m.Execution{Status: m.StatusOK, HasScore: true, Score: 3}},
		{name: "timeout", exec: m.Execution{Status: m.StatusTimeout}, want: ErrExecutionTimeout},
		{name: "crash", exec: m.Execution{Status: m.StatusCrash, HasScore: true}, want: ErrCrashDetected},
		{name: "no score", exec: m.Execution{Status: m.StatusOK}, want: ErrScoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == nil {
				assert.NoError(t, Classify(tt.exec))
				return
			}

			assert.ErrorIs(t, Classify(tt.exec), tt.want)
		})
	}
}
