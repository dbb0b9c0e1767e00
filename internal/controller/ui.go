// Package controller provides output adapters for displaying fuzzing progress and results.
package controller

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	m "templar.dev/pkg/templar/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeList StartMode = iota
	ModeFuzz
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode      StartMode
	total     uint64
	interrupt context.CancelFunc
}

// WithListMode sets the UI to show static listings.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithFuzzMode sets the UI to live fuzzing progress. total is the iteration
// count, 0 when the run is unbounded.
func WithFuzzMode(total uint64) StartOption {
	return func(c *StartConfig) {
		c.mode = ModeFuzz
		c.total = total
	}
}

// WithInterrupt registers the function called when the user asks an
// interactive UI to stop the run.
func WithInterrupt(cancel context.CancelFunc) StartOption {
	return func(c *StartConfig) {
		c.interrupt = cancel
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// RunInfo describes a fuzz run before it starts.
type RunInfo struct {
	RunID      string
	Engine     string
	Seeds      int
	Skipped    int
	Resumed    int
	Workers    int
	Iterations uint64
	Seed       uint64
	Gate       bool
	Output     m.Path
}

// Progress is a periodic snapshot of a running fuzz loop.
type Progress struct {
	Done       uint64
	Total      uint64
	Best       m.Score
	Corpus     int
	Crashes    uint64
	Timeouts   uint64
	Rejections uint64
	Elapsed    time.Duration
}

// MinimizeResult reports a standalone minimization.
type MinimizeResult struct {
	Input  m.Path
	Output m.Path
	Mode   m.MinimizeMode
	Stats  m.MinimizeStats
	Diff   string
}

// MergeResult reports a merge of output directories.
type MergeResult struct {
	Inputs  []m.Path
	Output  m.Path
	Crashes int
	Corpus  int
	Best    m.Score
}

// UI defines the interface for displaying fuzzing state.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplaySeeds(ctx context.Context, seeds []m.SeedSummary) error
	DisplayRunInfo(ctx context.Context, info RunInfo)
	DisplayProgress(ctx context.Context, progress Progress)
	DisplayNewCrash(ctx context.Context, record m.CrashRecord)
	DisplayStats(ctx context.Context, stats m.RunStats)
	DisplayCrashes(ctx context.Context, crashes []m.CrashArtifact) error
	DisplayMinimized(ctx context.Context, result MinimizeResult)
	DisplayMerged(ctx context.Context, result MergeResult)
}

// NewUI picks the interactive TUI for terminals and SimpleUI otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(os.Stdout)
	}

	return NewSimpleUI(cmd)
}
