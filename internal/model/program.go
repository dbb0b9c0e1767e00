package model

import (
	"crypto/sha256"
	"fmt"
)

// Path represents a file system path.
type Path string

// Operator names the mutation applied to produce a Program.
type Operator string

// Available operators.
const (
	OpNone         Operator = "none"
	OpInsertion    Operator = "insertion"
	OpDeletion     Operator = "deletion"
	OpSubstitution Operator = "substitution"
	OpFusion       Operator = "fusion"
)

// Operators lists the single-template mutation operators.
var Operators = []Operator{OpInsertion, OpDeletion, OpSubstitution}

// Program is concrete source text plus provenance. It is never modified
// after creation.
type Program struct {
	ID         string   `yaml:"id" msgpack:"id"`
	Source     string   `yaml:"-" msgpack:"source"`
	ParentID   string   `yaml:"parent_id,omitempty" msgpack:"parent_id"`
	Operator   Operator `yaml:"operator" msgpack:"operator"`
	TemplateID string   `yaml:"template_id,omitempty" msgpack:"template_id"`
}

// NewProgram builds a Program whose id is the SHA-256 of its source.
func NewProgram(source, parentID string, op Operator, templateID string) Program {
	return Program{
		ID:         HashSource(source),
		Source:     source,
		ParentID:   parentID,
		Operator:   op,
		TemplateID: templateID,
	}
}

// ShortID is the id prefix used in artifact names.
func (p Program) ShortID() string {
	return shortHash(p.ID)
}

// HashSource returns the hex SHA-256 digest of source.
func HashSource(source string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(source)))
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}

	return h
}
