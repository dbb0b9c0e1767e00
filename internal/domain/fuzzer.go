package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"templar.dev/pkg/templar/internal/adapter"
	"templar.dev/pkg/templar/internal/controller"
	m "templar.dev/pkg/templar/internal/model"
	"templar.dev/pkg/templar/pkg"
)

const (
	// DefaultFusionRate is the probability that an iteration fuses two
	// templates instead of applying a single-template operator.
	DefaultFusionRate = 0.2

	progressEvery      = 100
	maxMutationRetries = 8
)

var syntaxErrorPattern = regexp.MustCompile(`\bSyntaxError\b`)

// pooled is a template available for mutation together with the corpus
// program it came from, if any.
type pooled struct {
	template  *m.Template
	programID string
}

type templatePool struct {
	mu    sync.RWMutex
	items []pooled
}

func (p *templatePool) add(tpl *m.Template, programID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append(p.items, pooled{template: tpl, programID: programID})
}

func (p *templatePool) pick(rng *rand.Rand) pooled {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.items[rng.IntN(len(p.items))]
}

func (p *templatePool) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.items)
}

// fuzzRun holds the state shared by the workers of one run.
type fuzzRun struct {
	*workflow
	args    FuzzArgs
	seed    uint64
	exec    Executor
	corpus  Corpus
	crashes CrashDeduper
	pool    *templatePool
	journal pkg.FileSpill[m.IterationRecord]
	started time.Time

	done       atomic.Uint64
	crashCount atomic.Uint64
	timeouts   atomic.Uint64
	rejections atomic.Uint64
}

// Fuzz runs the coverage-guided loop until the iteration count is reached
// or ctx is cancelled.
func (w *workflow) Fuzz(ctx context.Context, args FuzzArgs) error {
	if err := w.Validate(args.Engine); err != nil {
		slog.Error("Failed to validate engine", "command", args.Engine.Command, "error", err)
		return err
	}

	workers, err := safecast.Conv[int](args.Workers)
	if err != nil || workers < 1 {
		return fmt.Errorf("invalid worker count %d", args.Workers)
	}

	if err := w.Prepare(args.Output); err != nil {
		slog.Error("Failed to prepare output directory", "path", args.Output, "error", err)
		return err
	}

	seeds, summaries, err := w.loadSeeds(args.Seeds)
	if err != nil {
		slog.Error("Failed to load seeds", "path", args.Seeds, "error", err)
		return fmt.Errorf("load seeds: %w", err)
	}

	if len(seeds) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSeeds, args.Seeds)
	}

	crashes, err := NewCrashDeduper(args.BoringPatterns)
	if err != nil {
		return err
	}

	run := &fuzzRun{
		workflow: w,
		args:     args,
		seed:     args.Seed,
		exec:     NewExecutor(w.EngineRunnerAdapter, args.Engine),
		corpus:   NewCorpus(args.Gate, args.CorpusCap),
		crashes:  crashes,
		pool:     &templatePool{},
		started:  time.Now(),
	}

	if run.seed == 0 {
		run.seed = uint64(run.started.UnixNano())
	}

	if run.args.FusionRate < 0 {
		run.args.FusionRate = DefaultFusionRate
	}

	for _, s := range seeds {
		run.pool.add(s.template, "")
	}

	resumed := 0
	if args.Resume {
		if resumed, err = run.resume(); err != nil {
			return err
		}
	}

	run.journal, err = pkg.NewFileSpill[m.IterationRecord](string(w.JoinPath(string(args.Output), adapter.JournalFile)))
	if err != nil {
		slog.Error("Failed to create run journal", "error", err)
		return fmt.Errorf("create journal: %w", err)
	}

	defer func() {
		if err := run.journal.Close(); err != nil {
			slog.Error("Failed to close run journal", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.Start(ctx, controller.WithFuzzMode(args.Iterations), controller.WithInterrupt(cancel)); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.Close(context.WithoutCancel(ctx))

	if args.MetricsAddr != "" {
		go func() {
			if err := w.Serve(runCtx, args.MetricsAddr); err != nil {
				slog.Error("Failed to serve metrics", "addr", args.MetricsAddr, "error", err)
			}
		}()
	}

	runID := uuid.NewString()

	w.DisplayRunInfo(ctx, controller.RunInfo{
		RunID:      runID,
		Engine:     args.Engine.Command,
		Seeds:      len(seeds),
		Skipped:    len(summaries) - len(seeds),
		Resumed:    resumed,
		Workers:    workers,
		Iterations: args.Iterations,
		Seed:       run.seed,
		Gate:       args.Gate,
		Output:     args.Output,
	})

	slog.Info("Starting fuzz run", "run", runID, "seeds", len(seeds), "workers", workers, "seed", run.seed)

	w.SetCorpus(run.corpus.Len(), run.corpus.Best())

	loopErr := run.loop(runCtx, workers)

	stats, err := run.finish(runID)
	if err != nil {
		return err
	}

	w.DisplayStats(context.WithoutCancel(ctx), stats)
	w.Wait(ctx)

	if loopErr != nil {
		slog.Error("Fuzz run aborted", "run", runID, "error", loopErr)
		return loopErr
	}

	return nil
}

// resume restores the corpus snapshot and crash classes of a previous run
// in the same output directory.
func (r *fuzzRun) resume() (int, error) {
	state, err := r.LoadSnapshot(r.args.Output)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("No corpus snapshot to resume from", "path", r.args.Output)
		return 0, nil
	}

	if err != nil {
		slog.Error("Failed to load corpus snapshot", "path", r.args.Output, "error", err)
		return 0, fmt.Errorf("resume: %w", err)
	}

	r.corpus.Restore(state)

	for _, entry := range state.Entries {
		tpl, err := r.extractor.Extract(entry.Program.ID, entry.Program.Source)
		if err != nil {
			continue
		}

		r.pool.add(tpl, entry.Program.ID)
	}

	artifacts, err := r.LoadCrashes(r.args.Output)
	if err != nil {
		return 0, fmt.Errorf("resume: %w", err)
	}

	records := make([]m.CrashRecord, len(artifacts))
	for i, a := range artifacts {
		records[i] = a.Record
	}

	r.crashes.Restore(records)

	return len(state.Entries), nil
}

func (r *fuzzRun) loop(ctx context.Context, workers int) error {
	var next atomic.Uint64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for range workers {
		group.Go(func() error {
			for groupCtx.Err() == nil {
				i := next.Add(1) - 1
				if r.args.Iterations > 0 && i >= r.args.Iterations {
					return nil
				}

				rec, err := r.iterate(groupCtx, i)
				if err != nil {
					if groupCtx.Err() != nil {
						return nil
					}

					return err
				}

				if err := r.record(groupCtx, rec); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return group.Wait()
}

// pickOperator draws fusion with the configured rate, otherwise one of the
// single-template operators.
func (r *fuzzRun) pickOperator(rng *rand.Rand) m.Operator {
	if r.pool.len() > 1 && rng.Float64() < r.args.FusionRate {
		return m.OpFusion
	}

	return m.Operators[rng.IntN(len(m.Operators))]
}

// mutate retries with fresh operators until one is accepted. When all are
// rejected the target is re-concretized as is.
func (r *fuzzRun) mutate(rng *rand.Rand, rec *m.IterationRecord) (*m.Template, pooled, m.Operator) {
	target := r.pool.pick(rng)

	for range maxMutationRetries {
		op := r.pickOperator(rng)

		var donor *m.Template
		if op == m.OpFusion || rng.IntN(2) == 0 {
			donor = r.pool.pick(rng).template
		}

		out, err := r.Mutate(rng, op, target.template, donor)
		if err == nil {
			return out, target, op
		}

		rec.RejectedOps = append(rec.RejectedOps, op)
	}

	rec.Rejected = true

	return target.template, target, m.OpNone
}

func (r *fuzzRun) iterate(ctx context.Context, i uint64) (m.IterationRecord, error) {
	rng := rand.New(rand.NewPCG(r.seed, i))
	rec := m.IterationRecord{Index: i}

	tpl, target, op := r.mutate(rng, &rec)
	rec.Operator = op

	source := r.Concretize(rng, tpl, Analyze(tpl))
	p := m.NewProgram(source, target.programID, op, target.template.ID)
	rec.ProgramID = p.ID

	execution, err := r.exec.Execute(ctx, source)
	if err != nil {
		return rec, err
	}

	rec.Status = execution.Status
	rec.Score, rec.HasScore = execution.Score, execution.HasScore
	rec.Duration = execution.Duration

	switch err := Classify(execution); {
	case errors.Is(err, ErrExecutionTimeout):
		r.timeouts.Add(1)

		if err := r.SaveTimeout(r.args.Output, p, execution.Stderr); err != nil {
			slog.Error("Failed to save timeout", "program", p.ShortID(), "error", err)
		}

		return rec, nil
	case errors.Is(err, ErrCrashDetected):
		return rec, r.crash(ctx, execution, p, &rec)
	case errors.Is(err, ErrScoreUnavailable):
		slog.Debug("Execution reported no score", "program", p.ShortID())
	}

	return rec, r.admit(ctx, execution, p, &rec)
}

// crash routes a crashing execution to the deduplicator and stores new
// crash classes, minimized when they are interesting.
func (r *fuzzRun) crash(ctx context.Context, execution m.Execution, p m.Program, rec *m.IterationRecord) error {
	record, isNew := r.crashes.Observe(execution, p)

	rec.Signature = record.Signature
	rec.NewCrash = isNew
	rec.Boring = record.Boring
	rec.SyntaxError = syntaxErrorPattern.MatchString(record.Normalized)

	if !isNew {
		return nil
	}

	r.crashCount.Add(1)

	artifact := m.CrashArtifact{Record: record, Program: p, Stderr: execution.Stderr}

	if !record.Boring && r.args.MinimizeBy == m.MinimizeSignature {
		minimized, stats, err := r.minimizer.Minimize(ctx, p, SignaturePredicate(r.exec, record.Signature), r.args.MinimizeBudget)
		if err != nil && ctx.Err() != nil {
			return err
		}

		if err != nil {
			slog.Warn("Failed to minimize crash", "signature", record.Signature.Short(), "error", err)
		} else {
			artifact.Program = minimized
			artifact.Minimize = &stats
			rec.Minimized = stats.Reduced
			rec.Exhausted = stats.BudgetExhausted
			rec.Attempts = stats.Attempts
		}
	}

	if err := r.SaveCrash(r.args.Output, artifact); err != nil {
		slog.Error("Failed to save crash", "signature", record.Signature.Short(), "error", err)
	}

	slog.Info("New crash class", "signature", record.Signature.Short(), "boring", record.Boring, "title", record.Title())
	r.DisplayNewCrash(ctx, record)

	return nil
}

// admit offers a completed, non-crashing program to the corpus and stores
// what it keeps.
func (r *fuzzRun) admit(ctx context.Context, execution m.Execution, p m.Program, rec *m.IterationRecord) error {
	adm := r.corpus.Admit(p, execution.GateScore())
	if !adm.Admitted {
		return nil
	}

	rec.Admitted = true
	entry := adm.Entry

	if r.args.MinimizeBy == m.MinimizeCoverage {
		minimized, stats, err := r.minimizer.Minimize(ctx, p, CoveragePredicate(r.exec, entry.Score), r.args.MinimizeBudget)
		if err != nil && ctx.Err() != nil {
			return err
		}

		if err == nil && stats.Reduced && r.corpus.Replace(p.ID, minimized, true) {
			entry.Program, entry.Minimal = minimized, true
		}

		if err == nil {
			rec.Minimized = stats.Reduced
			rec.Exhausted = stats.BudgetExhausted
			rec.Attempts = stats.Attempts
		}
	}

	if err := r.SaveCorpusEntry(r.args.Output, entry); err != nil {
		slog.Error("Failed to save corpus entry", "program", entry.Program.ShortID(), "error", err)
	}

	if tpl, err := r.extractor.Extract(entry.Program.ID, entry.Program.Source); err == nil {
		r.pool.add(tpl, entry.Program.ID)
	}

	slog.Debug("Admitted program", "program", entry.Program.ShortID(), "score", entry.Score, "previous", adm.Previous)

	return nil
}

// record journals an iteration and refreshes counters, metrics and the UI.
func (r *fuzzRun) record(ctx context.Context, rec m.IterationRecord) error {
	if err := r.journal.Append(rec); err != nil {
		return fmt.Errorf("journal iteration %d: %w", rec.Index, err)
	}

	if rejected, err := safecast.Conv[uint64](len(rec.RejectedOps)); err == nil {
		r.rejections.Add(rejected)
	}

	r.ObserveIteration(rec)

	if rec.Admitted {
		r.SetCorpus(r.corpus.Len(), r.corpus.Best())
	}

	done := r.done.Add(1)
	if done%progressEvery != 0 {
		return nil
	}

	progress := controller.Progress{
		Done:       done,
		Total:      r.args.Iterations,
		Best:       r.corpus.Best(),
		Corpus:     r.corpus.Len(),
		Crashes:    r.crashCount.Load(),
		Timeouts:   r.timeouts.Load(),
		Rejections: r.rejections.Load(),
		Elapsed:    time.Since(r.started),
	}

	slog.Info("Fuzzing progress", "iterations", done, "best", progress.Best, "corpus", progress.Corpus, "crashes", progress.Crashes)
	r.DisplayProgress(ctx, progress)

	return nil
}

// finish writes the run summary and the tracker snapshot.
func (r *fuzzRun) finish(runID string) (m.RunStats, error) {
	stats := m.RunStats{RunID: runID, Seed: r.seed, Started: r.started}

	if err := SummarizeJournal(r.journal, &stats); err != nil {
		slog.Error("Failed to summarize run journal", "error", err)
		return stats, err
	}

	stats.BestScore = r.corpus.Best()
	stats.CorpusSize = r.corpus.Len()
	stats.Finished = time.Now()

	if err := r.SaveStats(r.args.Output, stats); err != nil {
		slog.Error("Failed to save run stats", "error", err)
		return stats, err
	}

	if err := r.SaveSnapshot(r.args.Output, r.corpus.Snapshot()); err != nil {
		slog.Error("Failed to save corpus snapshot", "error", err)
		return stats, err
	}

	return stats, nil
}
