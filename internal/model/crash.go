package model

import (
	"fmt"
	"strings"
	"time"
)

// Signature identifies a crash class. Equal signatures mean the same bug.
type Signature string

// Short is the signature prefix used in artifact names.
func (s Signature) Short() string {
	return shortHash(string(s))
}

// CrashRecord is created once per crash class and never modified.
type CrashRecord struct {
	Signature  Signature `yaml:"signature" msgpack:"signature"`
	ExitCode   int       `yaml:"exit_code" msgpack:"exit_code"`
	Signal     string    `yaml:"signal,omitempty" msgpack:"signal"`
	Excerpt    string    `yaml:"excerpt" msgpack:"excerpt"`
	Normalized string    `yaml:"normalized" msgpack:"normalized"`
	Boring     bool      `yaml:"boring" msgpack:"boring"`
	ProgramID  string    `yaml:"program_id" msgpack:"program_id"`
	FirstSeen  time.Time `yaml:"first_seen" msgpack:"first_seen"`
	Count      int       `yaml:"count" msgpack:"count"`
}

// Title is the first normalized line, used in tables.
func (c CrashRecord) Title() string {
	title, _, _ := strings.Cut(c.Normalized, "\n")
	return title
}

// MinimizeMode selects the minimizer predicate.
type MinimizeMode string

// Available minimization modes.
const (
	MinimizeSignature MinimizeMode = "signature"
	MinimizeCoverage  MinimizeMode = "coverage"
	MinimizeNone      MinimizeMode = "none"
)

// ParseMinimizeMode validates a --minimize-by value.
func ParseMinimizeMode(value string) (MinimizeMode, error) {
	switch mode := MinimizeMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case MinimizeSignature, MinimizeCoverage, MinimizeNone:
		return mode, nil
	case "":
		return MinimizeSignature, nil
	default:
		return "", fmt.Errorf("unknown minimization mode %q (want signature, coverage or none)", value)
	}
}

// MinimizeStats summarizes one minimization.
type MinimizeStats struct {
	Attempts        int  `yaml:"attempts"`
	Skipped         int  `yaml:"skipped"`
	OriginalUnits   int  `yaml:"original_units"`
	FinalUnits      int  `yaml:"final_units"`
	Passes          int  `yaml:"passes"`
	Reduced         bool `yaml:"reduced"`
	BudgetExhausted bool `yaml:"budget_exhausted"`
}

// CrashArtifact is a crash class as stored in the output directory.
type CrashArtifact struct {
	Record   CrashRecord    `yaml:"crash"`
	Program  Program        `yaml:"program"`
	Minimize *MinimizeStats `yaml:"minimize,omitempty"`
	Stderr   string         `yaml:"-"`
}
