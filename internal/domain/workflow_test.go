package domain_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"templar.dev/pkg/templar/internal/adapter"
	"templar.dev/pkg/templar/internal/controller"
	controllermocks "templar.dev/pkg/templar/internal/controller/mocks"
	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

// scriptedEngine crashes on CRASH, hangs on HANG and otherwise scores one
// edge per semicolon. hangAll makes every run time out; crashEdges is the
// score a crashing run reports.
type scriptedEngine struct {
	validateErr error
	hangAll     bool
	crashEdges  m.Score
}

func (e *scriptedEngine) Run(ctx context.Context, _ m.EngineSpec, source string) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	switch {
	case e.hangAll || strings.Contains(source, "HANG"):
		return m.Execution{Status: m.StatusTimeout, ExitCode: -1, Stderr: "killed\n"}, nil
	case strings.Contains(source, "CRASH"):
		return m.Execution{
			Status:   m.StatusCrash,
			ExitCode: 134,
			Stderr:   "abort: CRASH reached\n#0 0x41 in Runtime_Abort\n",
			Score:    e.crashEdges,
			HasScore: e.crashEdges > 0,
		}, nil
	}

	return m.Execution{Status: m.StatusOK, Score: m.Score(strings.Count(source, ";")), HasScore: true}, nil
}

func (e *scriptedEngine) Validate(m.EngineSpec) error {
	return e.validateErr
}

func newTestWorkflow(t *testing.T, engine adapter.EngineRunnerAdapter, ui controller.UI) domain.Workflow {
	t.Helper()

	syntax := adapter.NewLocalJSSyntaxAdapter()
	extractor := domain.NewExtractor(syntax)

	mutator, err := domain.NewMutator(syntax, extractor)
	require.NoError(t, err)

	return domain.NewWorkflow(
		adapter.NewLocalSeedFSAdapter(),
		adapter.NewArtifactStore(),
		engine,
		adapter.NewPrometheusMetricsAdapter(),
		ui,
		extractor,
		mutator,
		domain.NewConcretizer(),
		domain.NewMinimizer(syntax, extractor),
	)
}

func newBufferUI() (controller.UI, *bytes.Buffer) {
	var out bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	return controller.NewSimpleUI(cmd), &out
}

func writeSeeds(t *testing.T, seeds map[string]string) m.Path {
	t.Helper()

	dir := t.TempDir()
	for name, src := range seeds {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
	}

	return m.Path(dir)
}

const (
	seedA = "var total = 0;\nlet items = [1, 2, 3];\nfor (let i = 0; i < items.length; i++) {\n  total = total + items[i];\n}\nprint(total);\n"
	seedB = "function twice(x) {\n  return x * 2;\n}\nvar y = twice(21);\nif (y > 40) {\n  y = y - 1;\n}\n"
)

func fuzzArgs(seeds, out m.Path) domain.FuzzArgs {
	return domain.FuzzArgs{
		Seeds:      seeds,
		Output:     out,
		Engine:     m.EngineSpec{Command: "engine", Timeout: time.Second},
		Iterations: 60,
		Workers:    1,
		Seed:       7,
		Gate:       true,
		MinimizeBy: m.MinimizeNone,
		FusionRate: -1,
	}
}

func corpusIDs(t *testing.T, dir m.Path) []string {
	t.Helper()

	entries, err := adapter.NewArtifactStore().LoadCorpus(dir)
	require.NoError(t, err)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Program.ID
	}

	return ids
}

func TestWorkflow_Fuzz_DeterministicWithOneWorker(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA, "b.js": seedB})
	outA, outB := m.Path(t.TempDir()), m.Path(t.TempDir())

	for _, out := range []m.Path{outA, outB} {
		ui, _ := newBufferUI()
		require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Fuzz(context.Background(), fuzzArgs(seeds, out)))
	}

	idsA := corpusIDs(t, outA)
	require.NotEmpty(t, idsA)
	assert.Equal(t, idsA, corpusIDs(t, outB))

	stats, err := adapter.NewArtifactStore().LoadStats(outA)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), stats.Iterations)
	assert.Equal(t, uint64(7), stats.Seed)
	assert.Equal(t, len(idsA), stats.CorpusSize)
	assert.Equal(t, len(idsA), int(stats.Admitted))

	snapshot, err := adapter.NewArtifactStore().LoadSnapshot(outA)
	require.NoError(t, err)
	assert.Equal(t, stats.BestScore, snapshot.Best)

	for i := 1; i < len(snapshot.Entries); i++ {
		assert.Greater(t, snapshot.Entries[i].Score, snapshot.Entries[i-1].Score)
	}
}

func TestWorkflow_Fuzz_StoresCrashClasses(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"crash.js": "var a = 1;\nCRASH;\nprint(a);\n"})
	out := m.Path(t.TempDir())

	args := fuzzArgs(seeds, out)
	args.Iterations = 40
	args.MinimizeBy = m.MinimizeSignature

	ui, buf := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Fuzz(context.Background(), args))

	crashes, err := adapter.NewArtifactStore().LoadCrashes(out)
	require.NoError(t, err)
	require.Len(t, crashes, 1)

	assert.Contains(t, crashes[0].Program.Source, "CRASH")
	assert.False(t, crashes[0].Record.Boring)
	assert.NotNil(t, crashes[0].Minimize)
	assert.Contains(t, crashes[0].Stderr, "Runtime_Abort")

	stats, err := adapter.NewArtifactStore().LoadStats(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.UniqueCrashes)
	assert.Positive(t, stats.Crashes)

	assert.Contains(t, buf.String(), "abort")
}

func TestWorkflow_Fuzz_TimeoutsAreSavedNotAdmitted(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"hang.js": "HANG;\n"})
	out := m.Path(t.TempDir())

	args := fuzzArgs(seeds, out)
	args.Iterations = 10

	ui, _ := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{hangAll: true}, ui).Fuzz(context.Background(), args))

	assert.Empty(t, corpusIDs(t, out))

	timeouts, err := os.ReadDir(filepath.Join(string(out), adapter.TimeoutsDir))
	require.NoError(t, err)
	assert.NotEmpty(t, timeouts)

	stats, err := adapter.NewArtifactStore().LoadStats(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), stats.Timeouts)
	assert.Zero(t, stats.Admitted)
	assert.Zero(t, stats.BestScore)
}

func TestWorkflow_Fuzz_CrashesNeverEnterCorpus(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"boom.js": "CRASH;\n", "a.js": seedA})
	out := m.Path(t.TempDir())

	args := fuzzArgs(seeds, out)
	args.Iterations = 40

	ui, _ := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{crashEdges: 1000}, ui).Fuzz(context.Background(), args))

	snapshot, err := adapter.NewArtifactStore().LoadSnapshot(out)
	require.NoError(t, err)
	require.NotEmpty(t, snapshot.Entries)
	assert.Less(t, snapshot.Best, m.Score(1000))

	for _, e := range snapshot.Entries {
		assert.NotContains(t, e.Program.Source, "CRASH")
		assert.Nil(t, e.Crash)
	}

	crashes, err := adapter.NewArtifactStore().LoadCrashes(out)
	require.NoError(t, err)
	assert.NotEmpty(t, crashes)
}

func TestWorkflow_Fuzz_Resume(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA})
	out := m.Path(t.TempDir())

	ui, _ := newBufferUI()
	wf := newTestWorkflow(t, &scriptedEngine{}, ui)
	require.NoError(t, wf.Fuzz(context.Background(), fuzzArgs(seeds, out)))

	first, err := adapter.NewArtifactStore().LoadSnapshot(out)
	require.NoError(t, err)

	args := fuzzArgs(seeds, out)
	args.Resume = true
	args.Seed = 8
	require.NoError(t, wf.Fuzz(context.Background(), args))

	second, err := adapter.NewArtifactStore().LoadSnapshot(out)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, second.Best, first.Best)
	assert.GreaterOrEqual(t, len(second.Entries), len(first.Entries))
	assert.Equal(t, first.Entries[0].Program.ID, second.Entries[0].Program.ID)
}

func TestWorkflow_Fuzz_NoUsableSeeds(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"bad.js": "function (\n"})

	ui, _ := newBufferUI()
	err := newTestWorkflow(t, &scriptedEngine{}, ui).Fuzz(context.Background(), fuzzArgs(seeds, m.Path(t.TempDir())))

	require.ErrorIs(t, err, domain.ErrNoSeeds)
}

func TestWorkflow_Fuzz_EngineValidationFails(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA})
	engine := &scriptedEngine{validateErr: adapter.ErrEngineLaunch}

	ui, _ := newBufferUI()
	err := newTestWorkflow(t, engine, ui).Fuzz(context.Background(), fuzzArgs(seeds, m.Path(t.TempDir())))

	require.ErrorIs(t, err, adapter.ErrEngineLaunch)
}

func TestWorkflow_Fuzz_RejectsZeroWorkers(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA})

	args := fuzzArgs(seeds, m.Path(t.TempDir()))
	args.Workers = 0

	ui, _ := newBufferUI()
	require.Error(t, newTestWorkflow(t, &scriptedEngine{}, ui).Fuzz(context.Background(), args))
}

func TestWorkflow_Fuzz_StopsOnCancel(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA})
	out := m.Path(t.TempDir())

	args := fuzzArgs(seeds, out)
	args.Iterations = 0
	args.Workers = 4

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	ui, _ := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Fuzz(ctx, args))

	stats, err := adapter.NewArtifactStore().LoadStats(out)
	require.NoError(t, err)
	assert.Positive(t, stats.Iterations)
}

func TestWorkflow_Extract(t *testing.T) {
	seeds := writeSeeds(t, map[string]string{"a.js": seedA, "broken.js": "let = ;"})

	ui, buf := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Extract(context.Background(), domain.ExtractArgs{Seeds: seeds}))

	assert.Contains(t, buf.String(), "a.js")
	assert.Contains(t, buf.String(), "broken.js")
}

func TestWorkflow_Extract_StartError(t *testing.T) {
	ui := controllermocks.NewMockUI(t)
	ui.On("Start", mock.Anything, mock.Anything).Return(errors.New("no terminal"))

	err := newTestWorkflow(t, &scriptedEngine{}, ui).Extract(context.Background(), domain.ExtractArgs{Seeds: "unused"})
	require.EqualError(t, err, "no terminal")
}

func TestWorkflow_Extract_MissingDirectory(t *testing.T) {
	ui := controllermocks.NewMockUI(t)
	ui.On("Start", mock.Anything, mock.Anything).Return(nil)
	ui.On("Close", mock.Anything).Return()

	err := newTestWorkflow(t, &scriptedEngine{}, ui).Extract(context.Background(), domain.ExtractArgs{Seeds: m.Path(filepath.Join(t.TempDir(), "missing"))})
	require.Error(t, err)
}

func saveCrash(t *testing.T, dir m.Path, sig m.Signature, count int, seen time.Time, boring bool) {
	t.Helper()

	p := m.NewProgram("CRASH; // "+string(sig)+"\n", "", m.OpNone, "")
	require.NoError(t, adapter.NewArtifactStore().SaveCrash(dir, m.CrashArtifact{
		Record: m.CrashRecord{
			Signature:  sig,
			ExitCode:   134,
			Normalized: "crash " + string(sig),
			Boring:     boring,
			ProgramID:  p.ID,
			FirstSeen:  seen,
			Count:      count,
		},
		Program: p,
		Stderr:  "abort\n",
	}))
}

func TestWorkflow_Crashes(t *testing.T) {
	out := m.Path(t.TempDir())
	now := time.Now().UTC()

	saveCrash(t, out, "aaaaaaaaaaaaaaaaaaaa", 3, now, true)
	saveCrash(t, out, "bbbbbbbbbbbbbbbbbbbb", 1, now.Add(time.Minute), false)

	ui := controllermocks.NewMockUI(t)
	ui.On("Start", mock.Anything, mock.Anything).Return(nil)
	ui.On("DisplayCrashes", mock.Anything, mock.MatchedBy(func(crashes []m.CrashArtifact) bool {
		return len(crashes) == 2 && crashes[0].Record.Signature == "bbbbbbbbbbbbbbbbbbbb"
	})).Return(nil)
	ui.On("Wait", mock.Anything).Return()
	ui.On("Close", mock.Anything).Return()

	require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Crashes(context.Background(), domain.CrashesArgs{Output: out}))
}

func TestWorkflow_Merge(t *testing.T) {
	store := adapter.NewArtifactStore()
	dirA, dirB, out := m.Path(t.TempDir()), m.Path(t.TempDir()), m.Path(t.TempDir())
	now := time.Now().UTC()

	saveCrash(t, dirA, "cccccccccccccccccccc", 2, now, false)
	saveCrash(t, dirB, "cccccccccccccccccccc", 5, now.Add(-time.Hour), false)
	saveCrash(t, dirB, "dddddddddddddddddddd", 1, now, true)

	shared := m.NewProgram("a; b;", "", m.OpNone, "")
	require.NoError(t, store.SaveCorpusEntry(dirA, m.CorpusEntry{Program: shared, Score: 2, Seq: 1}))
	require.NoError(t, store.SaveCorpusEntry(dirB, m.CorpusEntry{Program: shared, Score: 4, Seq: 1}))
	require.NoError(t, store.SaveCorpusEntry(dirB, m.CorpusEntry{Program: m.NewProgram("a; b; c; d; e;", "", m.OpNone, ""), Score: 5, Seq: 2}))

	ui, buf := newBufferUI()
	require.NoError(t, newTestWorkflow(t, &scriptedEngine{}, ui).Merge(context.Background(), domain.MergeArgs{
		Inputs: []m.Path{dirA, dirB},
		Output: out,
	}))

	crashes, err := store.LoadCrashes(out)
	require.NoError(t, err)
	require.Len(t, crashes, 2)

	for _, c := range crashes {
		if c.Record.Signature == "cccccccccccccccccccc" {
			assert.Equal(t, 7, c.Record.Count)
			assert.True(t, c.Record.FirstSeen.Equal(now.Add(-time.Hour)))
		}
	}

	corpus, err := store.LoadCorpus(out)
	require.NoError(t, err)
	require.Len(t, corpus, 2)
	assert.Equal(t, m.Score(4), corpus[0].Score)
	assert.Equal(t, []int{1, 2}, []int{corpus[0].Seq, corpus[1].Seq})

	snapshot, err := store.LoadSnapshot(out)
	require.NoError(t, err)
	assert.Equal(t, m.Score(5), snapshot.Best)
	assert.True(t, snapshot.Gate)

	assert.NotEmpty(t, buf.String())
}

func TestWorkflow_Merge_NoInputs(t *testing.T) {
	ui, _ := newBufferUI()
	require.Error(t, newTestWorkflow(t, &scriptedEngine{}, ui).Merge(context.Background(), domain.MergeArgs{Output: m.Path(t.TempDir())}))
}

func TestWorkflow_Minimize(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "crash.js")

	var src strings.Builder
	for i := range 12 {
		if i == 5 {
			src.WriteString("CRASH;\n")
		}

		src.WriteString("print(" + strings.Repeat("1", i+1) + ");\n")
	}

	require.NoError(t, os.WriteFile(input, []byte(src.String()), 0o600))

	ui := controllermocks.NewMockUI(t)
	ui.On("DisplayMinimized", mock.Anything, mock.MatchedBy(func(r controller.MinimizeResult) bool {
		return r.Stats.Reduced && strings.Contains(r.Diff, "-print(1);")
	})).Return()

	err := newTestWorkflow(t, &scriptedEngine{}, ui).Minimize(context.Background(), domain.MinimizeArgs{
		Input:  m.Path(input),
		Output: m.Path(dir),
		Engine: m.EngineSpec{Command: "engine"},
		Mode:   m.MinimizeSignature,
	})
	require.NoError(t, err)

	minimized, err := os.ReadFile(filepath.Join(dir, "crash.min.js"))
	require.NoError(t, err)
	assert.Contains(t, string(minimized), "CRASH")
	assert.NotContains(t, string(minimized), "print")
}

func TestWorkflow_Minimize_NotReproducible(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "fine.js")
	require.NoError(t, os.WriteFile(input, []byte("print(1);\n"), 0o600))

	ui, _ := newBufferUI()
	err := newTestWorkflow(t, &scriptedEngine{}, ui).Minimize(context.Background(), domain.MinimizeArgs{
		Input:  m.Path(input),
		Output: m.Path(dir),
		Engine: m.EngineSpec{Command: "engine"},
		Mode:   m.MinimizeSignature,
	})

	require.ErrorIs(t, err, domain.ErrNotReproducible)
}
