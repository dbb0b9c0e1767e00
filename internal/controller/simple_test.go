package controller

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "templar.dev/pkg/templar/internal/model"
)

func newTestSimpleUI() (*SimpleUI, *bytes.Buffer) {
	var out bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	return NewSimpleUI(cmd), &out
}

func TestSimpleUI_DisplaySeeds(t *testing.T) {
	ui, out := newTestSimpleUI()

	err := ui.DisplaySeeds(context.Background(), []m.SeedSummary{
		{Path: "seeds/b.js", Units: 4, Identifiers: 3, Expressions: 2, Statements: 2},
		{Path: "seeds/a.js", ParseFailure: "unexpected token"},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "seeds/a.js")
	assert.Contains(t, text, "seeds/b.js")
	assert.Contains(t, text, "skipped: unexpected token")
	assert.Contains(t, text, "TOTAL SEEDS 2")
	assert.Contains(t, text, "USABLE 1")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("seeds/a.js")), bytes.Index(out.Bytes(), []byte("seeds/b.js")))
}

func TestSimpleUI_DisplayProgress(t *testing.T) {
	ui, out := newTestSimpleUI()

	ui.DisplayProgress(context.Background(), Progress{Done: 100, Total: 500, Best: 42, Corpus: 3, Crashes: 1, Elapsed: 3 * time.Second})

	assert.Equal(t, "[3s] iterations 100/500, best 42, corpus 3, crashes 1, timeouts 0, rejected 0\n", out.String())
}

func TestSimpleUI_DisplayNewCrash(t *testing.T) {
	ui, out := newTestSimpleUI()

	ui.DisplayNewCrash(context.Background(), m.CrashRecord{
		Signature:  "abcdef0123456789abcdef",
		Signal:     "segmentation fault",
		Normalized: "Received signal 11\n#0 ADDR",
	})

	assert.Contains(t, out.String(), "abcdef0123456789")
	assert.Contains(t, out.String(), "signal segmentation fault")
	assert.Contains(t, out.String(), "Received signal 11")
	assert.NotContains(t, out.String(), "#0 ADDR")
}

func TestSimpleUI_DisplayStats(t *testing.T) {
	ui, out := newTestSimpleUI()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ui.DisplayStats(context.Background(), m.RunStats{
		RunID:          "run-1",
		Started:        start,
		Finished:       start.Add(90 * time.Second),
		Iterations:     10,
		BestScore:      77,
		RejectionsByOp: map[m.Operator]uint64{m.OpFusion: 2, m.OpDeletion: 1},
	})

	text := out.String()
	assert.Contains(t, text, "RUN RUN-1")
	assert.Contains(t, text, "Best score")
	assert.Contains(t, text, "77")
	assert.Contains(t, text, "rejected deletion")
	assert.Contains(t, text, "rejected fusion")
	assert.Contains(t, text, "1M30S")
}

func TestSimpleUI_DisplayCrashes(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		ui, out := newTestSimpleUI()

		require.NoError(t, ui.DisplayCrashes(context.Background(), nil))
		assert.Equal(t, "No crashes recorded\n", out.String())
	})

	t.Run("table", func(t *testing.T) {
		ui, out := newTestSimpleUI()

		err := ui.DisplayCrashes(context.Background(), []m.CrashArtifact{
			{Record: m.CrashRecord{Signature: "1111111111111111aaaa", ExitCode: 134, Normalized: "abort: check failed", Count: 2}},
			{Record: m.CrashRecord{Signature: "2222222222222222bbbb", ExitCode: 1, Normalized: "ReferenceError: y is not defined", Boring: true, Count: 9}},
		})
		require.NoError(t, err)

		text := out.String()
		assert.Contains(t, text, "1111111111111111")
		assert.Contains(t, text, "exit 134")
		assert.Contains(t, text, "interesting")
		assert.Contains(t, text, "boring")
		assert.Contains(t, text, "CLASSES 2")
		assert.Contains(t, text, "INTERESTING 1")
	})
}

func TestSimpleUI_DisplayMinimized(t *testing.T) {
	t.Run("reduced", func(t *testing.T) {
		ui, out := newTestSimpleUI()

		ui.DisplayMinimized(context.Background(), MinimizeResult{
			Input:  "crash.js",
			Output: "out/crash.min.js",
			Mode:   m.MinimizeSignature,
			Stats:  m.MinimizeStats{OriginalUnits: 40, FinalUnits: 2, Attempts: 31, Passes: 2, Reduced: true},
			Diff:   "--- crash.js\n+++ crash.min.js\n-a;\n",
		})

		text := out.String()
		assert.Contains(t, text, "40 -> 2 unit(s)")
		assert.Contains(t, text, "Wrote out/crash.min.js")
		assert.Contains(t, text, "-a;")
	})

	t.Run("unchanged", func(t *testing.T) {
		ui, out := newTestSimpleUI()

		ui.DisplayMinimized(context.Background(), MinimizeResult{Input: "x.js", Stats: m.MinimizeStats{Attempts: 3}})
		assert.Equal(t, "x.js: nothing to remove after 3 attempt(s)\n", out.String())
	})
}

func TestSimpleUI_CancelledContext(t *testing.T) {
	ui, out := newTestSimpleUI()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, ui.Start(ctx))
	ui.DisplayProgress(ctx, Progress{Done: 1})
	ui.DisplayMerged(ctx, MergeResult{})
	require.Error(t, ui.DisplaySeeds(ctx, nil))

	assert.Empty(t, out.String())
}
