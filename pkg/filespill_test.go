package pkg

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type journalEntry struct {
	Index    uint64
	Program  string
	Admitted bool
	Took     time.Duration
}

func TestFileSpill(t *testing.T) {
	t.Run("NewFileSpill with empty path uses a temp file", func(t *testing.T) {
		spill, err := NewFileSpill[int]("")
		require.NoError(t, err)
		defer spill.Close()

		require.Contains(t, filepath.Base(spill.Path()), "templar-journal-")
	})

	t.Run("NewFileSpill creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "journal.gob")

		spill, err := NewFileSpill[int](path)
		require.NoError(t, err)
		defer spill.Close()

		require.Equal(t, path, spill.Path())
		require.FileExists(t, path)
	})

	t.Run("Append and Get", func(t *testing.T) {
		spill, err := NewFileSpill[string](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.Append("first"))
		require.NoError(t, spill.Append("second"))

		val, err := spill.Get(0)
		require.NoError(t, err)
		require.Equal(t, "first", val)

		val, err = spill.Get(1)
		require.NoError(t, err)
		require.Equal(t, "second", val)

		val, err = spill.Get(3)
		require.Error(t, err)
		require.Empty(t, val)
	})

	t.Run("AppendBatch and Len", func(t *testing.T) {
		spill, err := NewFileSpill[int](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		require.Equal(t, uint64(0), spill.Len())
		require.NoError(t, spill.AppendBatch([]int{10, 20, 30}))
		require.Equal(t, uint64(3), spill.Len())
	})

	t.Run("Range visits structs in order", func(t *testing.T) {
		spill, err := NewFileSpill[journalEntry](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		for i := range uint64(5) {
			require.NoError(t, spill.Append(journalEntry{Index: i, Program: "p", Admitted: i%2 == 0, Took: time.Millisecond}))
		}

		var seen []uint64

		err = spill.Range(func(index uint64, item journalEntry) error {
			require.Equal(t, index, item.Index)
			seen = append(seen, item.Index)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 1, 2, 3, 4}, seen)
	})

	t.Run("Range stops on callback error", func(t *testing.T) {
		spill, err := NewFileSpill[int](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.AppendBatch([]int{1, 2, 3}))

		boom := errors.New("boom")
		calls := 0

		err = spill.Range(func(_ uint64, _ int) error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("concurrent appends are all recorded", func(t *testing.T) {
		spill, err := NewFileSpill[int](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		var wg sync.WaitGroup

		for i := range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()
				require.NoError(t, spill.Append(i))
			}()
		}

		wg.Wait()

		sum := 0
		require.NoError(t, spill.Range(func(_ uint64, v int) error {
			sum += v
			return nil
		}))
		require.Equal(t, 50*49/2, sum)
	})

	t.Run("Close keeps the journal readable and rejects appends", func(t *testing.T) {
		spill, err := NewFileSpill[int](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)

		require.NoError(t, spill.Append(7))
		require.NoError(t, spill.Close())
		require.NoError(t, spill.Close())

		val, err := spill.Get(0)
		require.NoError(t, err)
		require.Equal(t, 7, val)

		require.Error(t, spill.Append(8))
	})

	t.Run("OpenFileSpill counts existing items", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "j.gob")

		spill, err := NewFileSpill[journalEntry](path)
		require.NoError(t, err)
		require.NoError(t, spill.AppendBatch([]journalEntry{{Index: 1}, {Index: 2, Program: "x"}}))
		require.NoError(t, spill.Close())

		reopened, err := OpenFileSpill[journalEntry](path)
		require.NoError(t, err)
		require.Equal(t, uint64(2), reopened.Len())

		item, err := reopened.Get(1)
		require.NoError(t, err)
		require.Equal(t, "x", item.Program)
	})

	t.Run("OpenFileSpill missing file", func(t *testing.T) {
		_, err := OpenFileSpill[int](filepath.Join(t.TempDir(), "missing.gob"))
		require.Error(t, err)
	})
}

func BenchmarkAppend(b *testing.B) {
	spill, err := NewFileSpill[journalEntry](filepath.Join(b.TempDir(), "j.gob"))
	if err != nil {
		b.Fatal(err)
	}
	defer spill.Close()

	b.ResetTimer()

	for i := range b.N {
		if err := spill.Append(journalEntry{Index: uint64(i), Program: "abc"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRange(b *testing.B) {
	spill, err := NewFileSpill[journalEntry](filepath.Join(b.TempDir(), "j.gob"))
	if err != nil {
		b.Fatal(err)
	}
	defer spill.Close()

	for i := range 1000 {
		if err := spill.Append(journalEntry{Index: uint64(i)}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()

	for range b.N {
		if err := spill.Range(func(uint64, journalEntry) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

func FuzzAppendGet(f *testing.F) {
	f.Add("hello")
	f.Add("")
	f.Add("var x = 1;\n")

	f.Fuzz(func(t *testing.T, s string) {
		spill, err := NewFileSpill[string](filepath.Join(t.TempDir(), "j.gob"))
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.Append(s))

		got, err := spill.Get(0)
		require.NoError(t, err)
		require.Equal(t, s, got)
	})
}
