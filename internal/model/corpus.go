package model

import "time"

// RetentionReason explains why a corpus entry was kept.
type RetentionReason string

// Available retention reasons.
const (
	ReasonCoverage RetentionReason = "coverage"
	ReasonRetained RetentionReason = "retained"
)

// CorpusEntry is one retained program.
type CorpusEntry struct {
	Program Program         `yaml:"program" msgpack:"program"`
	Score   Score           `yaml:"score" msgpack:"score"`
	// Crash stays nil for entries admitted by the fuzz loop, which only
	// offers completed runs without a crash.
	Crash   *CrashRecord    `yaml:"crash,omitempty" msgpack:"crash"`
	Reason  RetentionReason `yaml:"reason" msgpack:"reason"`
	Seq     int             `yaml:"seq" msgpack:"seq"`
	Minimal bool            `yaml:"minimized" msgpack:"minimized"`
}

// CorpusState is the persisted form of the tracker.
type CorpusState struct {
	Best    Score         `msgpack:"best"`
	Gate    bool          `msgpack:"gate"`
	Entries []CorpusEntry `msgpack:"entries"`
	Saved   time.Time     `msgpack:"saved"`
}
