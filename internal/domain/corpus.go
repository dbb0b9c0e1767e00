package domain

import (
	"sync"
	"time"

	m "templar.dev/pkg/templar/internal/model"
)

// Admission is the outcome of offering a program to the corpus.
type Admission struct {
	Admitted bool
	Previous m.Score
	Best     m.Score
	Entry    m.CorpusEntry
}

// Corpus is the coverage tracker: it keeps the best score seen and the
// programs that raised it. It is safe for concurrent use.
type Corpus interface {
	// Admit offers a program with its gate score. With gating on, a program
	// is kept iff score exceeds the best so far, which then becomes score.
	Admit(p m.Program, score m.Score) Admission
	// Replace swaps the program of an admitted entry, keeping its score.
	Replace(id string, p m.Program, minimal bool) bool
	Best() m.Score
	Len() int
	Entries() []m.CorpusEntry
	Programs() []m.Program
	Snapshot() m.CorpusState
	Restore(state m.CorpusState)
}

type corpus struct {
	mu       sync.RWMutex
	gate     bool
	capacity int
	best     m.Score
	entries  []m.CorpusEntry
	index    map[string]int
	seq      int
}

// NewCorpus creates an empty tracker. When gate is false every program is
// retained, deduplicated by id, up to capacity entries (0 means unbounded).
func NewCorpus(gate bool, capacity int) Corpus {
	return &corpus{
		gate:     gate,
		capacity: capacity,
		index:    make(map[string]int),
	}
}

func (c *corpus) Admit(p m.Program, score m.Score) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()

	adm := Admission{Previous: c.best, Best: c.best}

	if c.gate {
		if score <= c.best {
			return adm
		}

		c.best = score
		adm.Best = score
		adm.Entry = c.appendLocked(p, score, m.ReasonCoverage)
		adm.Admitted = true

		return adm
	}

	if score > c.best {
		c.best = score
		adm.Best = score
	}

	if _, dup := c.index[p.ID]; dup {
		return adm
	}

	if c.capacity > 0 && len(c.entries) >= c.capacity {
		return adm
	}

	adm.Entry = c.appendLocked(p, score, m.ReasonRetained)
	adm.Admitted = true

	return adm
}

func (c *corpus) appendLocked(p m.Program, score m.Score, reason m.RetentionReason) m.CorpusEntry {
	c.seq++

	entry := m.CorpusEntry{Program: p, Score: score, Reason: reason, Seq: c.seq}
	c.index[p.ID] = len(c.entries)
	c.entries = append(c.entries, entry)

	return entry
}

func (c *corpus) Replace(id string, p m.Program, minimal bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}

	delete(c.index, id)

	c.entries[i].Program = p
	c.entries[i].Minimal = minimal
	c.index[p.ID] = i

	return true
}

func (c *corpus) Best() m.Score {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.best
}

func (c *corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func (c *corpus) Entries() []m.CorpusEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]m.CorpusEntry(nil), c.entries...)
}

func (c *corpus) Programs() []m.Program {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]m.Program, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Program
	}

	return out
}

func (c *corpus) Snapshot() m.CorpusState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return m.CorpusState{
		Best:    c.best,
		Gate:    c.gate,
		Entries: append([]m.CorpusEntry(nil), c.entries...),
		Saved:   time.Now(),
	}
}

// Restore replaces the tracker state, for resuming a run.
func (c *corpus) Restore(state m.CorpusState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.best = state.Best
	c.entries = append([]m.CorpusEntry(nil), state.Entries...)
	c.index = make(map[string]int, len(c.entries))
	c.seq = 0

	for i, e := range c.entries {
		c.index[e.Program.ID] = i
		c.seq = max(c.seq, e.Seq)
	}
}
