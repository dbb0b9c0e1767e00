package model

import "time"

// IterationRecord is one fuzz iteration as written to the run journal.
type IterationRecord struct {
	Index       uint64
	ProgramID   string
	Operator    Operator
	Rejected    bool
	RejectedOps []Operator
	Status      ExecStatus
	Score       Score
	HasScore    bool
	Admitted    bool
	Signature   Signature
	NewCrash    bool
	Boring      bool
	SyntaxError bool
	Minimized   bool
	Exhausted   bool
	Attempts    int
	Duration    time.Duration
}

// RunStats summarizes a fuzz run.
type RunStats struct {
	RunID            string              `yaml:"run_id"`
	Seed             uint64              `yaml:"seed"`
	Started          time.Time           `yaml:"started"`
	Finished         time.Time           `yaml:"finished"`
	Iterations       uint64              `yaml:"iterations"`
	Executions       uint64              `yaml:"executions"`
	Admitted         uint64              `yaml:"admitted"`
	Crashes          uint64              `yaml:"crashes"`
	UniqueCrashes    uint64              `yaml:"unique_crashes"`
	BoringCrashes    uint64              `yaml:"boring_crashes"`
	SyntaxErrors     uint64              `yaml:"syntax_errors"`
	Timeouts         uint64              `yaml:"timeouts"`
	ScoreUnavailable uint64              `yaml:"score_unavailable"`
	Rejections       uint64              `yaml:"rejections"`
	RejectionsByOp   map[Operator]uint64 `yaml:"rejections_by_operator,omitempty"`
	BestScore        Score               `yaml:"best_score"`
	CorpusSize       int                 `yaml:"corpus_size"`
	MinimizeAttempts uint64              `yaml:"minimize_attempts"`
	BudgetExhausted  uint64              `yaml:"budget_exhausted"`
}

// SeedSummary describes one seed for the extract listing.
type SeedSummary struct {
	Path         Path
	Units        int
	Identifiers  int
	Expressions  int
	Statements   int
	Scopes       int
	ParseFailure string
}
