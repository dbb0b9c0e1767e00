// Package pkg provides utilities shared by templar commands.
package pkg

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSpill is an append-only gob journal of items of type T kept on disk.
type FileSpill[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Get(index uint64) (T, error)
	Range(f func(index uint64, item T) error) error
	Close() error
}

type fileSpillImpl[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// Append implements FileSpill.
func (f *fileSpillImpl[T]) Append(item T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return fmt.Errorf("append to closed journal %s", f.path)
	}

	if err := f.encoder.Encode(item); err != nil {
		slog.Error("Failed to encode journal item", "path", f.path, "index", f.length, "error", err)
		return fmt.Errorf("encode item: %w", err)
	}

	f.length++

	return nil
}

// Path implements FileSpill.
func (f *fileSpillImpl[T]) Path() string {
	return f.path
}

// AppendBatch implements FileSpill.
func (f *fileSpillImpl[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := f.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Close implements FileSpill. The journal stays readable after Close.
func (f *fileSpillImpl[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	err := f.file.Close()
	f.file = nil

	if err != nil {
		slog.Error("Failed to close journal", "path", f.path, "error", err)
		return err
	}

	slog.Debug("Closed journal", "path", f.path, "length", f.length)

	return nil
}

// Get implements FileSpill.
func (f *fileSpillImpl[T]) Get(index uint64) (T, error) {
	var found T

	err := f.Range(func(i uint64, item T) error {
		if i == index {
			found = item
			return errStop
		}

		return nil
	})
	if errors.Is(err, errStop) {
		return found, nil
	}

	if err != nil {
		return found, err
	}

	return found, fmt.Errorf("index %d out of bounds (length %d)", index, f.Len())
}

var errStop = errors.New("stop")

// Len implements FileSpill.
func (f *fileSpillImpl[T]) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.length
}

// Range implements FileSpill. Items are decoded in append order.
func (f *fileSpillImpl[T]) Range(fn func(index uint64, item T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close journal reader", "path", f.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := range f.length {
		var item T
		if err := decoder.Decode(&item); err != nil {
			slog.Error("Failed to decode journal item", "path", f.path, "index", i, "error", err)
			return fmt.Errorf("decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// NewFileSpill creates a journal at path, truncating an existing file. An
// empty path creates a temporary file.
func NewFileSpill[T any](path string) (FileSpill[T], error) {
	var (
		file *os.File
		err  error
	)

	if path == "" {
		file, err = os.CreateTemp("", "templar-journal-*.gob")
	} else {
		if err = os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}

		file, err = os.Create(path)
	}

	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}

	slog.Debug("Created journal", "path", file.Name())

	return &fileSpillImpl[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// OpenFileSpill opens an existing journal read-only, counting its items.
func OpenFileSpill[T any](path string) (FileSpill[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	defer func() { _ = file.Close() }()

	decoder := gob.NewDecoder(file)

	var length uint64

	for {
		var item T

		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("decode item at index %d: %w", length, err)
		}

		length++
	}

	return &fileSpillImpl[T]{path: path, length: length}, nil
}
