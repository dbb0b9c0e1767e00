package adapter

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "templar.dev/pkg/templar/internal/model"
)

func shellSpec(script string) m.EngineSpec {
	return m.EngineSpec{
		Command: "sh",
		Args:    []string{"-c", script, "sh"},
		Timeout: 5 * time.Second,
	}
}

func TestLocalEngineRunnerAdapter_Run_PassesProgramPath(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	execution, err := adapter.Run(context.Background(), shellSpec(`cat "$1"`), "print(1);\n")
	require.NoError(t, err)

	assert.Equal(t, m.StatusOK, execution.Status)
	assert.Equal(t, "print(1);\n", execution.Stdout)
	assert.False(t, execution.HasScore)

	_, statErr := os.Stat(execution.InputPath)
	assert.True(t, os.IsNotExist(statErr), "program file should be removed after the run")
}

func TestLocalEngineRunnerAdapter_Run_StreamScoreIsSummed(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	spec := shellSpec(`echo "COV 1_000"; echo "COV 5" >&2`)
	spec.ScorePattern = `COV (\d[\d_]*)`

	execution, err := adapter.Run(context.Background(), spec, "")
	require.NoError(t, err)

	assert.True(t, execution.HasScore)
	assert.Equal(t, m.Score(1005), execution.Score)
}

func TestLocalEngineRunnerAdapter_Run_FileScore(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()
	covPath := filepath.Join(t.TempDir(), "cov.txt")

	require.NoError(t, os.WriteFile(covPath, []byte("edges:999"), 0o600))

	spec := shellSpec(`echo "edges:7" > "` + covPath + `"`)
	spec.CoverageFile = covPath

	execution, err := adapter.Run(context.Background(), spec, "")
	require.NoError(t, err)

	assert.True(t, execution.HasScore)
	assert.Equal(t, m.Score(7), execution.Score)
}

func TestLocalEngineRunnerAdapter_Run_MissingCoverageFile(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	spec := shellSpec(`true`)
	spec.CoverageFile = filepath.Join(t.TempDir(), "never-written.txt")

	execution, err := adapter.Run(context.Background(), spec, "")
	require.NoError(t, err)

	assert.False(t, execution.HasScore)
}

func TestLocalEngineRunnerAdapter_Run_Crash(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	execution, err := adapter.Run(context.Background(), shellSpec(`echo "boom" >&2; exit 3`), "")
	require.NoError(t, err)

	assert.Equal(t, m.StatusCrash, execution.Status)
	assert.Equal(t, 3, execution.ExitCode)
	assert.Equal(t, "boom\n", execution.Stderr)
}

func TestLocalEngineRunnerAdapter_Run_Signal(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	execution, err := adapter.Run(context.Background(), shellSpec(`kill -SEGV $$`), "")
	require.NoError(t, err)

	assert.Equal(t, m.StatusCrash, execution.Status)
	assert.NotEmpty(t, execution.Signal)
}

func TestLocalEngineRunnerAdapter_Run_Timeout(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	spec := shellSpec(`echo "COV 10"; sleep 5`)
	spec.ScorePattern = `COV (\d+)`
	spec.Timeout = 100 * time.Millisecond

	execution, err := adapter.Run(context.Background(), spec, "")
	require.NoError(t, err)

	assert.Equal(t, m.StatusTimeout, execution.Status)
	assert.False(t, execution.HasScore)
}

func TestLocalEngineRunnerAdapter_Run_LaunchFailure(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	_, err := adapter.Run(context.Background(), m.EngineSpec{Command: "/nonexistent/engine"}, "")
	require.ErrorIs(t, err, ErrEngineLaunch)
}

func TestLocalEngineRunnerAdapter_Validate(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	tests := []struct {
		name     string
		spec     m.EngineSpec
		wantErr  bool
		isLaunch bool
	}{
		{name: "valid pattern", spec: m.EngineSpec{Command: "sh", ScorePattern: `edges:(\d+)`}},
		{name: "coverage file skips pattern", spec: m.EngineSpec{Command: "sh", ScorePattern: `(`, CoverageFile: "cov.txt"}},
		{name: "missing command", spec: m.EngineSpec{}, wantErr: true, isLaunch: true},
		{name: "unknown command", spec: m.EngineSpec{Command: "/nonexistent/engine"}, wantErr: true, isLaunch: true},
		{name: "bad pattern", spec: m.EngineSpec{Command: "sh", ScorePattern: `(`}, wantErr: true},
		{name: "no capture group", spec: m.EngineSpec{Command: "sh", ScorePattern: `edges:\d+`}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := adapter.Validate(tt.spec)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.isLaunch, errors.Is(err, ErrEngineLaunch))
		})
	}
}

func TestLocalEngineRunnerAdapter_Run_CapsOutput(t *testing.T) {
	adapter := NewLocalEngineRunnerAdapter()

	spec := shellSpec(`printf 'abcdefghij'`)
	spec.MaxOutput = 4

	execution, err := adapter.Run(context.Background(), spec, "")
	require.NoError(t, err)

	assert.Equal(t, "abcd", execution.Stdout)
}

func TestParseCoverageFile(t *testing.T) {
	tests := []struct {
		in    string
		want  m.Score
		valid bool
	}{
		{in: "edges:42\n", want: 42, valid: true},
		{in: "  17 ", want: 17, valid: true},
		{in: "edges: 1_024", want: 1024, valid: true},
		{in: "run 3 finished\nedges:99\nbye\n", want: 99, valid: true},
		{in: "[cov] edges:7 total", want: 7, valid: true},
		{in: "edges:-1", valid: false},
		{in: "lots", valid: false},
		{in: "", valid: false},
	}

	for _, tt := range tests {
		got, ok := ParseCoverageFile(tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCappedBuffer_IOCopyHonorsLimit(t *testing.T) {
	b := &cappedBuffer{limit: 8}

	n, err := io.Copy(b, strings.NewReader(strings.Repeat("x", 1<<16)))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<16), n)
	assert.Equal(t, "xxxxxxxx", b.String())
}

func TestSumScores_Saturates(t *testing.T) {
	score, ok := SumScores(regexp.MustCompile(`COV (\d+)`), "COV 18446744073709551615\nCOV 5\n")
	require.True(t, ok)
	assert.Equal(t, m.Score(math.MaxUint64), score)
}

func TestSumScores_NoMatch(t *testing.T) {
	score, ok := SumScores(regexp.MustCompile(`COV (\d+)`), "nothing here", "")
	assert.False(t, ok)
	assert.Equal(t, m.Score(0), score)
}
