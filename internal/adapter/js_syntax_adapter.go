package adapter

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// JSSyntaxAdapter answers whether a string is syntactically valid JavaScript.
// It is the single source of truth for well-formedness checks.
type JSSyntaxAdapter interface {
	// Validate returns nil when src parses, or the parser's error.
	Validate(src string) error
}

// LocalJSSyntaxAdapter validates source with the tdewolff JavaScript parser.
type LocalJSSyntaxAdapter struct{}

// NewLocalJSSyntaxAdapter constructs a LocalJSSyntaxAdapter.
func NewLocalJSSyntaxAdapter() *LocalJSSyntaxAdapter {
	return &LocalJSSyntaxAdapter{}
}

// Validate parses src and discards the AST.
func (a *LocalJSSyntaxAdapter) Validate(src string) (err error) {
	// The parser panics on a few pathological inputs; treat those as invalid.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("javascript parser panic: %v", r)
		}
	}()

	if _, err := js.Parse(parse.NewInputString(src), js.Options{}); err != nil {
		return fmt.Errorf("invalid javascript: %w", err)
	}

	return nil
}
