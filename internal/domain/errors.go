package domain

import "errors"

var (
	// ErrParse marks a seed that is not valid source or cannot be turned
	// into a well-formed template. The seed is skipped.
	ErrParse = errors.New("parse error")

	// ErrMutationRejected means the operator found no compatible site or
	// produced a template that failed validation. The caller retries.
	ErrMutationRejected = errors.New("mutation rejected")

	// ErrExecutionTimeout marks an execution killed at its deadline.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrScoreUnavailable marks an execution without a coverage score.
	ErrScoreUnavailable = errors.New("score unavailable")

	// ErrCrashDetected marks an execution that exited with a crash status.
	ErrCrashDetected = errors.New("crash detected")

	// ErrMinimizationBudgetExhausted is reported through MinimizeStats and
	// never returned to callers of Minimize.
	ErrMinimizationBudgetExhausted = errors.New("minimization budget exhausted")

	// ErrNoSeeds is fatal: the seed directory yielded no usable template.
	ErrNoSeeds = errors.New("no usable seeds")

	// ErrNotReproducible is returned when a program given for minimization
	// does not satisfy the requested predicate in the first place.
	ErrNotReproducible = errors.New("program does not reproduce")
)
