package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"fortio.org/safecast"

	m "templar.dev/pkg/templar/internal/model"
)

// ErrEngineLaunch means the engine process could not be started at all.
var ErrEngineLaunch = errors.New("engine launch failed")

const defaultMaxOutput = 1 << 20

// EngineRunnerAdapter executes one program against a JavaScript engine.
type EngineRunnerAdapter interface {
	// Run writes source to a temporary file, invokes the engine on it and
	// classifies the outcome. Timeouts and crashes are reported through
	// Execution.Status; only a failure to launch returns an error.
	Run(ctx context.Context, spec m.EngineSpec, source string) (m.Execution, error)
	// Validate checks that the engine can be launched and the score
	// pattern compiles with exactly one capture group.
	Validate(spec m.EngineSpec) error
}

// LocalEngineRunnerAdapter runs engines as child processes.
type LocalEngineRunnerAdapter struct {
	tempDir  string
	patterns sync.Map
}

// NewLocalEngineRunnerAdapter writes programs under the system temp dir.
func NewLocalEngineRunnerAdapter() *LocalEngineRunnerAdapter {
	return &LocalEngineRunnerAdapter{tempDir: os.TempDir()}
}

// Run invokes spec.Command with spec.Args followed by the program path.
func (a *LocalEngineRunnerAdapter) Run(ctx context.Context, spec m.EngineSpec, source string) (m.Execution, error) {
	input, err := a.writeProgram(source)
	if err != nil {
		return m.Execution{}, err
	}
	defer os.Remove(input)

	if spec.CoverageFile != "" {
		if err := os.Remove(spec.CoverageFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return m.Execution{}, fmt.Errorf("reset coverage file: %w", err)
		}
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	limit := spec.MaxOutput
	if limit <= 0 {
		limit = defaultMaxOutput
	}

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}

	args := append(append([]string(nil), spec.Args...), input)
	cmd := exec.CommandContext(runCtx, spec.Command, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()

	execution := m.Execution{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		InputPath: input,
	}

	if ctx.Err() != nil {
		return execution, ctx.Err()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		execution.Status = m.StatusTimeout
		execution.ExitCode = -1

		return execution, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return execution, fmt.Errorf("%w: %s: %w", ErrEngineLaunch, spec.Command, runErr)
		}

		execution.Status = m.StatusCrash
		execution.ExitCode = exitErr.ExitCode()

		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			execution.Signal = status.Signal().String()
		}
	}

	a.score(spec, &execution)

	return execution, nil
}

// Validate implements EngineRunnerAdapter.
func (a *LocalEngineRunnerAdapter) Validate(spec m.EngineSpec) error {
	if spec.Command == "" {
		return fmt.Errorf("%w: no engine command configured", ErrEngineLaunch)
	}

	if _, err := exec.LookPath(spec.Command); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineLaunch, err)
	}

	if spec.CoverageFile != "" || spec.ScorePattern == "" {
		return nil
	}

	re, err := a.pattern(spec.ScorePattern)
	if err != nil {
		return fmt.Errorf("score pattern %q: %w", spec.ScorePattern, err)
	}

	if re.NumSubexp() != 1 {
		return fmt.Errorf("score pattern %q: want exactly one capture group, got %d", spec.ScorePattern, re.NumSubexp())
	}

	return nil
}

func (a *LocalEngineRunnerAdapter) writeProgram(source string) (string, error) {
	f, err := os.CreateTemp(a.tempDir, "templar-*.js")
	if err != nil {
		return "", fmt.Errorf("create program file: %w", err)
	}

	if _, err := f.WriteString(source); err != nil {
		f.Close()
		os.Remove(f.Name())

		return "", fmt.Errorf("write program file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close program file: %w", err)
	}

	return f.Name(), nil
}

// score reads the coverage channel. The file channel wins when configured.
func (a *LocalEngineRunnerAdapter) score(spec m.EngineSpec, execution *m.Execution) {
	if spec.CoverageFile != "" {
		data, err := os.ReadFile(spec.CoverageFile)
		if err != nil {
			return
		}

		if score, ok := ParseCoverageFile(string(data)); ok {
			execution.Score, execution.HasScore = score, true
		}

		return
	}

	if spec.ScorePattern == "" {
		return
	}

	re, err := a.pattern(spec.ScorePattern)
	if err != nil {
		return
	}

	score, ok := SumScores(re, execution.Stdout, execution.Stderr)
	execution.Score, execution.HasScore = score, ok
}

func (a *LocalEngineRunnerAdapter) pattern(expr string) (*regexp.Regexp, error) {
	if re, ok := a.patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	a.patterns.Store(expr, re)

	return re, nil
}

// SumScores adds the first capture group of every match of re, scanning
// stdout then stderr. Underscores inside numbers are ignored.
func SumScores(re *regexp.Regexp, streams ...string) (m.Score, bool) {
	var (
		total uint64
		found bool
	)

	for _, stream := range streams {
		for _, match := range re.FindAllStringSubmatch(stream, -1) {
			if len(match) < 2 {
				continue
			}

			n, err := strconv.ParseUint(strings.ReplaceAll(match[1], "_", ""), 10, 64)
			if err != nil {
				continue
			}

			if total > math.MaxUint64-n {
				total = math.MaxUint64
			} else {
				total += n
			}

			found = true
		}
	}

	return m.Score(total), found
}

var coverageFilePattern = regexp.MustCompile(`edges:\s*(\d[\d_]*)`)

// ParseCoverageFile reads the first "edges:N" in data. A file holding only a
// bare N is accepted too.
func ParseCoverageFile(data string) (m.Score, bool) {
	text := strings.TrimSpace(data)
	if match := coverageFilePattern.FindStringSubmatch(text); match != nil {
		text = match[1]
	}

	n, err := strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 10, 64)
	if err != nil {
		return 0, false
	}

	score, err := safecast.Conv[uint64](n)
	if err != nil {
		return 0, false
	}

	return m.Score(score), true
}

// cappedBuffer keeps the first limit bytes and silently drops the rest so a
// chatty engine cannot block on a full pipe.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(room, len(p))])
	}

	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
