package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"templar.dev/pkg/templar/internal/adapter"
	"templar.dev/pkg/templar/internal/controller"
	m "templar.dev/pkg/templar/internal/model"
)

// FuzzArgs configures a fuzz run.
type FuzzArgs struct {
	Seeds  m.Path
	Output m.Path
	Engine m.EngineSpec
	// Iterations is the number of iterations to run; 0 runs until the
	// context is cancelled.
	Iterations uint64
	Workers    uint
	// Seed drives every random choice. 0 picks a seed from the clock.
	Seed           uint64
	Gate           bool
	MinimizeBy     m.MinimizeMode
	MinimizeBudget int
	FusionRate     float64
	CorpusCap      int
	Resume         bool
	MetricsAddr    string
	// BoringPatterns overrides the default boring crash patterns when
	// non-nil.
	BoringPatterns []string
}

// MinimizeArgs configures a standalone minimization.
type MinimizeArgs struct {
	Input  m.Path
	Output m.Path
	Engine m.EngineSpec
	Mode   m.MinimizeMode
	Budget int
}

// ExtractArgs configures a seed listing.
type ExtractArgs struct {
	Seeds m.Path
}

// CrashesArgs configures a crash listing.
type CrashesArgs struct {
	Output m.Path
}

// MergeArgs configures a merge of output directories.
type MergeArgs struct {
	Inputs []m.Path
	Output m.Path
}

// Workflow is the entry point used by the commands.
type Workflow interface {
	Fuzz(ctx context.Context, args FuzzArgs) error
	Minimize(ctx context.Context, args MinimizeArgs) error
	Extract(ctx context.Context, args ExtractArgs) error
	Crashes(ctx context.Context, args CrashesArgs) error
	Merge(ctx context.Context, args MergeArgs) error
}

type workflow struct {
	adapter.SeedFSAdapter
	adapter.ArtifactStore
	adapter.EngineRunnerAdapter
	adapter.MetricsAdapter
	controller.UI
	Mutator
	Concretizer
	extractor Extractor
	minimizer Minimizer
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SeedFSAdapter,
	store adapter.ArtifactStore,
	runner adapter.EngineRunnerAdapter,
	metrics adapter.MetricsAdapter,
	ui controller.UI,
	extractor Extractor,
	mutator Mutator,
	concretizer Concretizer,
	minimizer Minimizer,
) Workflow {
	return &workflow{
		SeedFSAdapter:       fsAdapter,
		ArtifactStore:       store,
		EngineRunnerAdapter: runner,
		MetricsAdapter:      metrics,
		UI:                  ui,
		Mutator:             mutator,
		Concretizer:         concretizer,
		extractor:           extractor,
		minimizer:           minimizer,
	}
}

// seed is one extracted seed program.
type seed struct {
	path     m.Path
	template *m.Template
}

// loadSeeds extracts every seed under root. Seeds that fail to parse are
// reported in the summaries and skipped.
func (w *workflow) loadSeeds(root m.Path) ([]seed, []m.SeedSummary, error) {
	paths, err := w.ListSeeds(root)
	if err != nil {
		return nil, nil, err
	}

	var (
		seeds     []seed
		summaries []m.SeedSummary
	)

	for _, path := range paths {
		data, err := w.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read seed %s: %w", path, err)
		}

		tpl, err := w.extractor.Extract(string(path), string(data))
		if err != nil {
			slog.Warn("Skipping seed", "path", path, "error", err)

			summaries = append(summaries, m.SeedSummary{Path: path, ParseFailure: err.Error()})

			continue
		}

		seeds = append(seeds, seed{path: path, template: tpl})
		summaries = append(summaries, Summarize(path, tpl))
	}

	return seeds, summaries, nil
}

// Extract lists the seeds with their placeholder counts.
func (w *workflow) Extract(ctx context.Context, args ExtractArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	_, summaries, err := w.loadSeeds(args.Seeds)
	if err != nil {
		w.Close(ctx)
		slog.Error("Failed to load seeds", "path", args.Seeds, "error", err)

		return fmt.Errorf("load seeds: %w", err)
	}

	if err := w.DisplaySeeds(ctx, summaries); err != nil {
		w.Close(ctx)
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

// Crashes lists the crash classes recorded in an output directory.
func (w *workflow) Crashes(ctx context.Context, args CrashesArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	crashes, err := w.LoadCrashes(args.Output)
	if err != nil {
		w.Close(ctx)
		slog.Error("Failed to load crashes", "path", args.Output, "error", err)

		return fmt.Errorf("load crashes: %w", err)
	}

	rankArtifacts(crashes)

	if err := w.DisplayCrashes(ctx, crashes); err != nil {
		w.Close(ctx)
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

func rankArtifacts(crashes []m.CrashArtifact) {
	records := make([]m.CrashRecord, len(crashes))
	bySig := make(map[m.Signature]m.CrashArtifact, len(crashes))

	for i, c := range crashes {
		records[i] = c.Record
		bySig[c.Record.Signature] = c
	}

	RankCrashes(records)

	for i, r := range records {
		crashes[i] = bySig[r.Signature]
	}
}

// Minimize reduces a single program while it keeps crashing the same way
// or keeps its coverage score.
func (w *workflow) Minimize(ctx context.Context, args MinimizeArgs) error {
	data, err := w.ReadFile(args.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	p := m.NewProgram(string(data), "", m.OpNone, string(args.Input))
	exec := NewExecutor(w.EngineRunnerAdapter, args.Engine)

	pred, err := w.reproduce(ctx, exec, p, args.Mode)
	if err != nil {
		return err
	}

	minimized, stats, err := w.minimizer.Minimize(ctx, p, pred, args.Budget)
	if err != nil {
		slog.Error("Failed to minimize", "path", args.Input, "error", err)
		return fmt.Errorf("minimize: %w", err)
	}

	if err := BudgetError(stats); err != nil {
		slog.Warn("Minimization stopped early", "path", args.Input, "attempts", stats.Attempts, "error", err)
	}

	name := strings.TrimSuffix(filepath.Base(string(args.Input)), filepath.Ext(string(args.Input))) + ".min.js"
	out := w.JoinPath(string(args.Output), name)

	if err := w.WriteFile(out, []byte(minimized.Source), 0o600); err != nil {
		slog.Error("Failed to write minimized program", "path", out, "error", err)
		return fmt.Errorf("write minimized program: %w", err)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(p.Source),
		B:        difflib.SplitLines(minimized.Source),
		FromFile: string(args.Input),
		ToFile:   string(out),
		Context:  1,
	})
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}

	w.DisplayMinimized(ctx, controller.MinimizeResult{
		Input:  args.Input,
		Output: out,
		Mode:   args.Mode,
		Stats:  stats,
		Diff:   diff,
	})

	return nil
}

// reproduce runs p once and builds the predicate for mode from the result.
func (w *workflow) reproduce(ctx context.Context, exec Executor, p m.Program, mode m.MinimizeMode) (Predicate, error) {
	first, err := exec.Execute(ctx, p.Source)
	if err != nil {
		return nil, err
	}

	switch mode {
	case m.MinimizeSignature:
		if first.Status != m.StatusCrash {
			return nil, fmt.Errorf("%w: engine finished with status %s", ErrNotReproducible, first.Status)
		}

		sig := CrashSignature(first, NormalizeCrash(first.Stderr, first.InputPath))

		return SignaturePredicate(exec, sig), nil
	case m.MinimizeCoverage:
		if first.Status == m.StatusTimeout || !first.HasScore {
			return nil, fmt.Errorf("%w: no coverage score reported", ErrNotReproducible)
		}

		return CoveragePredicate(exec, first.Score), nil
	case m.MinimizeNone:
		return nil, fmt.Errorf("minimization mode %q preserves nothing", mode)
	}

	return nil, fmt.Errorf("unknown minimization mode %q", mode)
}

// Merge combines several output directories. Crash classes are merged by
// signature, keeping the earliest sighting and summing counts; corpus
// programs are merged by id.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if len(args.Inputs) == 0 {
		return errors.New("merge: no input directories")
	}

	if err := w.Prepare(args.Output); err != nil {
		slog.Error("Failed to prepare output directory", "path", args.Output, "error", err)
		return err
	}

	var (
		mu      sync.Mutex
		crashes = make(map[m.Signature]m.CrashArtifact)
		order   []m.Signature
		corpus  = make(map[string]m.CorpusEntry)
		ids     []string
	)

	loaded := make([]struct {
		crashes []m.CrashArtifact
		corpus  []m.CorpusEntry
	}, len(args.Inputs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(args.Inputs))

	for i, dir := range args.Inputs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			c, err := w.LoadCrashes(dir)
			if err != nil {
				return fmt.Errorf("load crashes from %s: %w", dir, err)
			}

			entries, err := w.LoadCorpus(dir)
			if err != nil {
				return fmt.Errorf("load corpus from %s: %w", dir, err)
			}

			mu.Lock()
			loaded[i].crashes, loaded[i].corpus = c, entries
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		slog.Error("Failed to load output directories", "error", err)
		return err
	}

	for _, l := range loaded {
		for _, c := range l.crashes {
			prev, seen := crashes[c.Record.Signature]
			if !seen {
				crashes[c.Record.Signature] = c
				order = append(order, c.Record.Signature)

				continue
			}

			count := prev.Record.Count + c.Record.Count
			if c.Record.FirstSeen.Before(prev.Record.FirstSeen) {
				prev = c
			}

			prev.Record.Count = count
			crashes[c.Record.Signature] = prev
		}

		for _, e := range l.corpus {
			prev, seen := corpus[e.Program.ID]
			if !seen {
				corpus[e.Program.ID] = e
				ids = append(ids, e.Program.ID)

				continue
			}

			if e.Score > prev.Score {
				corpus[e.Program.ID] = e
			}
		}
	}

	for _, sig := range order {
		if err := w.SaveCrash(args.Output, crashes[sig]); err != nil {
			return err
		}
	}

	state := m.CorpusState{Gate: true}

	for i, id := range ids {
		entry := corpus[id]
		entry.Seq = i + 1
		state.Best = max(state.Best, entry.Score)
		state.Entries = append(state.Entries, entry)

		if err := w.SaveCorpusEntry(args.Output, entry); err != nil {
			return err
		}
	}

	if err := w.SaveSnapshot(args.Output, state); err != nil {
		return err
	}

	w.DisplayMerged(ctx, controller.MergeResult{
		Inputs:  args.Inputs,
		Output:  args.Output,
		Crashes: len(order),
		Corpus:  len(ids),
		Best:    state.Best,
	})

	return nil
}
