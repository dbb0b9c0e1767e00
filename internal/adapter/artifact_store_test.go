package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "templar.dev/pkg/templar/internal/model"
)

func TestArtifactStore_Prepare(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(filepath.Join(t.TempDir(), "out"))

	require.NoError(t, store.Prepare(dir))

	for _, sub := range []string{CrashesDir, CorpusDir, TimeoutsDir} {
		info, err := os.Stat(filepath.Join(string(dir), sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestArtifactStore_Prepare_Unwritable(t *testing.T) {
	store := NewArtifactStore()

	file := filepath.Join(t.TempDir(), "file")
	writeTestFile(t, file, "x")

	err := store.Prepare(m.Path(filepath.Join(file, "out")))
	require.Error(t, err)
}

func TestArtifactStore_CrashRoundTrip(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(t.TempDir())

	p := m.NewProgram("boom();\n", "parent", m.OpInsertion, "seed.js")
	artifact := m.CrashArtifact{
		Record: m.CrashRecord{
			Signature:  m.Signature("0123456789abcdef0123"),
			ExitCode:   139,
			Signal:     "segmentation fault",
			Excerpt:    "Segmentation fault",
			Normalized: "Segmentation fault",
			ProgramID:  p.ID,
			FirstSeen:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Count:      3,
		},
		Program:  p,
		Minimize: &m.MinimizeStats{Attempts: 4, Reduced: true},
		Stderr:   "Segmentation fault\nat 0x1234\n",
	}

	require.NoError(t, store.SaveCrash(dir, artifact))

	base := CrashBase(dir, artifact.Record.Signature)
	assert.FileExists(t, base+".js")
	assert.FileExists(t, base+".yaml")
	assert.FileExists(t, base+".stderr.txt")
	assert.Equal(t, "crash-0123456789abcdef", filepath.Base(base))

	loaded, err := store.LoadCrashes(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	if diff := cmp.Diff(artifact, loaded[0]); diff != "" {
		t.Fatalf("crash artifact mismatch (-want +got):\n%s", diff)
	}
}

func TestArtifactStore_LoadCrashes_EmptyDir(t *testing.T) {
	store := NewArtifactStore()

	crashes, err := store.LoadCrashes(m.Path(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, crashes)
}

func TestArtifactStore_CorpusRoundTrip(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(t.TempDir())

	second := m.CorpusEntry{Program: m.NewProgram("b;\n", "", m.OpFusion, "t"), Score: 200, Reason: m.ReasonCoverage, Seq: 2}
	first := m.CorpusEntry{Program: m.NewProgram("a;\n", "", m.OpNone, "t"), Score: 150, Reason: m.ReasonCoverage, Seq: 1, Minimal: true}

	require.NoError(t, store.SaveCorpusEntry(dir, second))
	require.NoError(t, store.SaveCorpusEntry(dir, first))

	loaded, err := store.LoadCorpus(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, first, loaded[0])
	assert.Equal(t, second, loaded[1])
}

func TestArtifactStore_SaveTimeout(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(t.TempDir())

	p := m.NewProgram("while (true) {}\n", "", m.OpNone, "")
	require.NoError(t, store.SaveTimeout(dir, p, "killed"))

	data, err := os.ReadFile(TimeoutBase(dir, p) + ".js")
	require.NoError(t, err)
	assert.Equal(t, p.Source, string(data))

	data, err = os.ReadFile(TimeoutBase(dir, p) + ".stderr.txt")
	require.NoError(t, err)
	assert.Equal(t, "killed", string(data))
}

func TestArtifactStore_StatsRoundTrip(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(t.TempDir())

	stats := m.RunStats{
		RunID:          "run",
		Started:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Finished:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Iterations:     100,
		Admitted:       7,
		BestScore:      321,
		RejectionsByOp: map[m.Operator]uint64{m.OpDeletion: 2},
	}

	require.NoError(t, store.SaveStats(dir, stats))

	loaded, err := store.LoadStats(dir)
	require.NoError(t, err)
	assert.Equal(t, stats, loaded)
}

func TestArtifactStore_SnapshotRoundTrip(t *testing.T) {
	store := NewArtifactStore()
	dir := m.Path(t.TempDir())

	_, err := store.LoadSnapshot(dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	state := m.CorpusState{
		Best: 200,
		Gate: true,
		Entries: []m.CorpusEntry{
			{Program: m.NewProgram("x;\n", "", m.OpNone, "t"), Score: 200, Reason: m.ReasonCoverage, Seq: 1},
		},
		Saved: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	require.NoError(t, store.SaveSnapshot(dir, state))

	loaded, err := store.LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, state.Best, loaded.Best)
	assert.Equal(t, state.Gate, loaded.Gate)
	assert.Equal(t, state.Entries, loaded.Entries)
	assert.True(t, state.Saved.Equal(loaded.Saved))
}
