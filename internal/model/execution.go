package model

import (
	"fmt"
	"time"
)

// ExecStatus classifies one engine execution.
type ExecStatus int

const (
	// StatusOK is a normal completion.
	StatusOK ExecStatus = iota
	// StatusCrash is a nonzero exit or a signal not caused by the timeout.
	StatusCrash
	// StatusTimeout means the process exceeded its deadline and was killed.
	StatusTimeout
)

func (s ExecStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCrash:
		return "crash"
	case StatusTimeout:
		return "timeout"
	}

	return fmt.Sprintf("ExecStatus(%d)", int(s))
}

// Score is a coverage edge count.
type Score uint64

// EngineSpec carries the engine invocation parameters.
type EngineSpec struct {
	Command      string
	Args         []string
	Timeout      time.Duration
	ScorePattern string
	CoverageFile string
	MaxOutput    int
}

// Execution is the outcome of running one Program.
type Execution struct {
	Status    ExecStatus
	ExitCode  int
	Signal    string
	Stdout    string
	Stderr    string
	Score     Score
	HasScore  bool
	Duration  time.Duration
	InputPath string
}

// GateScore is the score used for admission; a missing score counts as 0.
func (e Execution) GateScore() Score {
	if !e.HasScore {
		return 0
	}

	return e.Score
}
