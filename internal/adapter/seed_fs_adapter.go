// Package adapter contains infrastructure adapters for the templar CLI.
package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	m "templar.dev/pkg/templar/internal/model"
)

// seedExtensions are the file suffixes treated as seed programs.
var seedExtensions = map[string]bool{".js": true, ".mjs": true, ".cjs": true}

// SeedFSAdapter hides filesystem access from the domain layer so seed
// loading and artifact writing can be tested without touching the disk.
type SeedFSAdapter interface {
	// Walk traverses root. When recursive is false only the root directory
	// itself is listed.
	Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error

	// ListSeeds returns the JavaScript files under root in lexical order. A
	// root that is a file is returned as the only seed.
	ListSeeds(root m.Path) ([]m.Path, error)

	ReadFile(path m.Path) ([]byte, error)
	WriteFile(path m.Path, content []byte, perm os.FileMode) error
	JoinPath(elem ...string) m.Path
}

// FilepathWalkFunc mirrors the callback shape used by filepath.Walk.
type FilepathWalkFunc func(path string, info os.FileInfo, err error) error

// LocalSeedFSAdapter is the os-backed SeedFSAdapter.
type LocalSeedFSAdapter struct{}

// NewLocalSeedFSAdapter constructs a LocalSeedFSAdapter.
func NewLocalSeedFSAdapter() *LocalSeedFSAdapter {
	return &LocalSeedFSAdapter{}
}

// Walk iterates over files under root, optionally descending into subdirectories.
func (a *LocalSeedFSAdapter) Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, info, err)
		}

		if info.IsDir() && !recursive && path != rootStr {
			return filepath.SkipDir
		}

		return fn(path, info, nil)
	})
}

// ListSeeds collects seed files, skipping hidden directories and node_modules.
func (a *LocalSeedFSAdapter) ListSeeds(root m.Path) ([]m.Path, error) {
	info, err := os.Stat(string(root))
	if err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}

	if !info.IsDir() {
		return []m.Path{root}, nil
	}

	var seeds []m.Path

	err = a.Walk(root, true, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if path != string(root) && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}

			return nil
		}

		if seedExtensions[strings.ToLower(filepath.Ext(path))] {
			seeds = append(seeds, m.Path(path))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk seeds: %w", err)
	}

	return seeds, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSeedFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content, creating parent directories as needed.
func (a *LocalSeedFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// JoinPath joins path elements into a single path.
func (a *LocalSeedFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
