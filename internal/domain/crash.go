package domain

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	m "templar.dev/pkg/templar/internal/model"
)

const (
	maxSignatureLines = 16
	maxExcerptBytes   = 4096
)

// DefaultBoringPatterns match ordinary script-level exceptions: undefined
// references, syntax errors, calls of non-callables and stack overflow.
var DefaultBoringPatterns = []string{
	`\bReferenceError: \S+ is not defined\b`,
	`\bSyntaxError\b`,
	`\bTypeError: .* is not a (function|constructor)\b`,
	`\bRangeError: Maximum call stack size exceeded\b`,
}

// internalMarkers reveal that the engine itself failed. They override the
// boring patterns.
var internalMarkers = regexp.MustCompile(`(?im)^#\d+ |\babort(ed)?\b|\bassert(ion)?\b|segmentation fault|sanitizer|fatal error|check failed|dcheck|unreachable code|stack dump`)

var normalizers = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`), ""},
	{regexp.MustCompile(`/tmp/\S+?\.js`), "<input>"},
	{regexp.MustCompile(`0x[0-9a-fA-F]+`), "ADDR"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`), "TIME"},
	{regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}(\.\d+)?\b`), "TIME"},
	{regexp.MustCompile(`==\d+==`), "==PID=="},
	{regexp.MustCompile(`(?i)\b(pid|tid|thread)[ :=#]*\d+`), "$1 PID"},
	{regexp.MustCompile(`:\d+(:\d+)?\b`), ":N"},
	{regexp.MustCompile(`(?i)\bline \d+`), "line N"},
	{regexp.MustCompile(`[ \t]+`), " "},
}

// NormalizeCrash strips volatile substrings from crash output. inputPath is
// the file the program was written to, if any.
func NormalizeCrash(stderr, inputPath string) string {
	text := stderr
	if inputPath != "" {
		text = strings.ReplaceAll(text, inputPath, "<input>")
	}

	for _, n := range normalizers {
		text = n.re.ReplaceAllString(text, n.repl)
	}

	var lines []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lines = append(lines, line)
		if len(lines) == maxSignatureLines {
			break
		}
	}

	return strings.Join(lines, "\n")
}

// CrashSignature digests the normalized text together with the way the
// process died.
func CrashSignature(exec m.Execution, normalized string) m.Signature {
	status := fmt.Sprintf("exit %d", exec.ExitCode)
	if exec.Signal != "" {
		status = "signal " + exec.Signal
	}

	return m.Signature(fmt.Sprintf("%x", sha256.Sum256([]byte(status+"\n"+normalized))))
}

// CrashDeduper maps crash outputs to crash classes. It is safe for
// concurrent use.
type CrashDeduper interface {
	// Observe classifies a crashing execution. The returned record is the
	// first-seen record of its class with the current count; isNew is true
	// only the first time a signature is seen.
	Observe(exec m.Execution, p m.Program) (record m.CrashRecord, isNew bool)
	// Records lists crash classes, non-boring first, then by first sighting.
	Records() []m.CrashRecord
	// IsBoring reports whether normalized crash text is low value.
	IsBoring(normalized string) bool
	// Count is the number of sightings of sig, 0 when it was never seen.
	Count(sig m.Signature) int
	Restore(records []m.CrashRecord)
}

type crashDeduper struct {
	mu      sync.Mutex
	boring  []*regexp.Regexp
	records map[m.Signature]*m.CrashRecord
	order   []m.Signature
}

// NewCrashDeduper compiles the boring patterns. A nil slice selects
// DefaultBoringPatterns.
func NewCrashDeduper(boring []string) (CrashDeduper, error) {
	if boring == nil {
		boring = DefaultBoringPatterns
	}

	d := &crashDeduper{records: make(map[m.Signature]*m.CrashRecord)}

	for _, p := range boring {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("boring pattern %q: %w", p, err)
		}

		d.boring = append(d.boring, re)
	}

	return d, nil
}

func (d *crashDeduper) IsBoring(normalized string) bool {
	if internalMarkers.MatchString(normalized) {
		return false
	}

	for _, re := range d.boring {
		if re.MatchString(normalized) {
			return true
		}
	}

	return false
}

func (d *crashDeduper) Observe(exec m.Execution, p m.Program) (m.CrashRecord, bool) {
	normalized := NormalizeCrash(exec.Stderr, exec.InputPath)
	sig := CrashSignature(exec, normalized)

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.records[sig]; ok {
		rec.Count++
		return *rec, false
	}

	excerpt := exec.Stderr
	if len(excerpt) > maxExcerptBytes {
		excerpt = excerpt[:maxExcerptBytes]
	}

	rec := &m.CrashRecord{
		Signature:  sig,
		ExitCode:   exec.ExitCode,
		Signal:     exec.Signal,
		Excerpt:    excerpt,
		Normalized: normalized,
		Boring:     d.IsBoring(normalized),
		ProgramID:  p.ID,
		FirstSeen:  time.Now(),
		Count:      1,
	}

	d.records[sig] = rec
	d.order = append(d.order, sig)

	return *rec, true
}

func (d *crashDeduper) Records() []m.CrashRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]m.CrashRecord, 0, len(d.order))
	for _, sig := range d.order {
		out = append(out, *d.records[sig])
	}

	RankCrashes(out)

	return out
}

func (d *crashDeduper) Count(sig m.Signature) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.records[sig]; ok {
		return rec.Count
	}

	return 0
}

func (d *crashDeduper) Restore(records []m.CrashRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		if _, ok := d.records[r.Signature]; ok {
			continue
		}

		rec := r
		d.records[r.Signature] = &rec
		d.order = append(d.order, r.Signature)
	}
}

// RankCrashes orders records for triage: non-boring first, then by first
// sighting.
func RankCrashes(records []m.CrashRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Boring != records[j].Boring {
			return !records[i].Boring
		}

		return records[i].FirstSeen.Before(records[j].FirstSeen)
	})
}
