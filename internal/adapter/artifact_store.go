package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	m "templar.dev/pkg/templar/internal/model"
)

// Artifact directory and file names inside an output directory.
const (
	CrashesDir   = "crashes"
	CorpusDir    = "corpus"
	TimeoutsDir  = "timeouts"
	StatsFile    = "stats.yaml"
	SnapshotFile = "corpus.msgpack"
	JournalFile  = "journal.gob"
)

// ArtifactStore persists fuzzing results in an output directory.
type ArtifactStore interface {
	// Prepare creates the output layout and fails when dir is not writable.
	Prepare(dir m.Path) error

	SaveCrash(dir m.Path, artifact m.CrashArtifact) error
	LoadCrashes(dir m.Path) ([]m.CrashArtifact, error)

	SaveCorpusEntry(dir m.Path, entry m.CorpusEntry) error
	LoadCorpus(dir m.Path) ([]m.CorpusEntry, error)

	SaveTimeout(dir m.Path, p m.Program, stderr string) error

	SaveStats(dir m.Path, stats m.RunStats) error
	LoadStats(dir m.Path) (m.RunStats, error)

	// SaveSnapshot writes the tracker state; LoadSnapshot returns an error
	// wrapping os.ErrNotExist when no snapshot was written yet.
	SaveSnapshot(dir m.Path, state m.CorpusState) error
	LoadSnapshot(dir m.Path) (m.CorpusState, error)
}

type artifactStore struct{}

// NewArtifactStore returns the file-backed ArtifactStore.
func NewArtifactStore() ArtifactStore {
	return &artifactStore{}
}

func (s *artifactStore) Prepare(dir m.Path) error {
	for _, sub := range []string{CrashesDir, CorpusDir, TimeoutsDir} {
		if err := os.MkdirAll(filepath.Join(string(dir), sub), 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	probe, err := os.CreateTemp(string(dir), ".probe-*")
	if err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}

	name := probe.Name()
	_ = probe.Close()

	return os.Remove(name)
}

// CrashBase is the artifact path prefix of a crash class.
func CrashBase(dir m.Path, sig m.Signature) string {
	return filepath.Join(string(dir), CrashesDir, "crash-"+sig.Short())
}

// CorpusBase is the artifact path prefix of a corpus entry.
func CorpusBase(dir m.Path, p m.Program) string {
	return filepath.Join(string(dir), CorpusDir, "cov-"+p.ShortID())
}

// TimeoutBase is the artifact path prefix of a timed out program.
func TimeoutBase(dir m.Path, p m.Program) string {
	return filepath.Join(string(dir), TimeoutsDir, "timeout-"+p.ShortID())
}

func (s *artifactStore) SaveCrash(dir m.Path, artifact m.CrashArtifact) error {
	base := CrashBase(dir, artifact.Record.Signature)

	if err := writeFile(base+".js", []byte(artifact.Program.Source)); err != nil {
		return fmt.Errorf("save crash program: %w", err)
	}

	if err := writeFile(base+".stderr.txt", []byte(artifact.Stderr)); err != nil {
		return fmt.Errorf("save crash stderr: %w", err)
	}

	if err := writeYAML(base+".yaml", artifact); err != nil {
		return fmt.Errorf("save crash metadata: %w", err)
	}

	return nil
}

func (s *artifactStore) LoadCrashes(dir m.Path) ([]m.CrashArtifact, error) {
	metas, err := listMetadata(filepath.Join(string(dir), CrashesDir), "crash-")
	if err != nil {
		return nil, err
	}

	out := make([]m.CrashArtifact, 0, len(metas))

	for _, meta := range metas {
		var artifact m.CrashArtifact
		if err := readYAML(meta, &artifact); err != nil {
			return nil, fmt.Errorf("load crash %s: %w", meta, err)
		}

		base := strings.TrimSuffix(meta, ".yaml")

		source, err := os.ReadFile(base + ".js")
		if err != nil {
			return nil, fmt.Errorf("load crash program: %w", err)
		}

		artifact.Program.Source = string(source)

		if stderr, err := os.ReadFile(base + ".stderr.txt"); err == nil {
			artifact.Stderr = string(stderr)
		}

		out = append(out, artifact)
	}

	return out, nil
}

func (s *artifactStore) SaveCorpusEntry(dir m.Path, entry m.CorpusEntry) error {
	base := CorpusBase(dir, entry.Program)

	if err := writeFile(base+".js", []byte(entry.Program.Source)); err != nil {
		return fmt.Errorf("save corpus program: %w", err)
	}

	if err := writeYAML(base+".yaml", entry); err != nil {
		return fmt.Errorf("save corpus metadata: %w", err)
	}

	return nil
}

func (s *artifactStore) LoadCorpus(dir m.Path) ([]m.CorpusEntry, error) {
	metas, err := listMetadata(filepath.Join(string(dir), CorpusDir), "cov-")
	if err != nil {
		return nil, err
	}

	out := make([]m.CorpusEntry, 0, len(metas))

	for _, meta := range metas {
		var entry m.CorpusEntry
		if err := readYAML(meta, &entry); err != nil {
			return nil, fmt.Errorf("load corpus entry %s: %w", meta, err)
		}

		source, err := os.ReadFile(strings.TrimSuffix(meta, ".yaml") + ".js")
		if err != nil {
			return nil, fmt.Errorf("load corpus program: %w", err)
		}

		entry.Program.Source = string(source)
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	return out, nil
}

func (s *artifactStore) SaveTimeout(dir m.Path, p m.Program, stderr string) error {
	base := TimeoutBase(dir, p)

	if err := writeFile(base+".js", []byte(p.Source)); err != nil {
		return fmt.Errorf("save timeout program: %w", err)
	}

	if err := writeFile(base+".stderr.txt", []byte(stderr)); err != nil {
		return fmt.Errorf("save timeout stderr: %w", err)
	}

	return nil
}

func (s *artifactStore) SaveStats(dir m.Path, stats m.RunStats) error {
	if err := writeYAML(filepath.Join(string(dir), StatsFile), stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}

	return nil
}

func (s *artifactStore) LoadStats(dir m.Path) (m.RunStats, error) {
	var stats m.RunStats
	if err := readYAML(filepath.Join(string(dir), StatsFile), &stats); err != nil {
		return stats, fmt.Errorf("load stats: %w", err)
	}

	return stats, nil
}

func (s *artifactStore) SaveSnapshot(dir m.Path, state m.CorpusState) error {
	data, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := writeFile(filepath.Join(string(dir), SnapshotFile), data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

func (s *artifactStore) LoadSnapshot(dir m.Path) (m.CorpusState, error) {
	var state m.CorpusState

	data, err := os.ReadFile(filepath.Join(string(dir), SnapshotFile))
	if err != nil {
		return state, fmt.Errorf("load snapshot: %w", err)
	}

	if err := msgpack.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decode snapshot: %w", err)
	}

	return state, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	return writeFile(path, data)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, v)
}

// listMetadata returns the sorted .yaml files in dir starting with prefix.
// A missing directory yields no files.
func listMetadata(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []string

	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".yaml") {
			out = append(out, filepath.Join(dir, name))
		}
	}

	sort.Strings(out)

	return out, nil
}
