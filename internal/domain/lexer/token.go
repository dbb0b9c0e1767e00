// Package lexer splits JavaScript source into tokens with leading trivia.
package lexer

import "fmt"

// Kind classifies a token.
type Kind uint8

// Token kinds.
const (
	EOF Kind = iota
	Ident
	PrivateName
	Keyword
	Number
	String
	Template
	RegExp
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case PrivateName:
		return "PrivateName"
	case Keyword:
		return "Keyword"
	case Number:
		return "Number"
	case String:
		return "String"
	case Template:
		return "Template"
	case RegExp:
		return "RegExp"
	case Punct:
		return "Punct"
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Token is one significant token. Leading holds the whitespace and comments
// that precede it, so concatenating Leading+Text of every token reproduces
// the input.
type Token struct {
	Kind          Kind
	Text          string
	Leading       string
	NewlineBefore bool
	Offset        int
	Line          int
}

// Is reports whether the token is the punctuator or keyword text.
func (t Token) Is(text string) bool {
	return (t.Kind == Punct || t.Kind == Keyword || t.Kind == Ident) && t.Text == text
}

// IsLiteral reports whether the token is a literal value.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case Number, String, RegExp:
		return true
	case Keyword:
		return t.Text == "true" || t.Text == "false" || t.Text == "null"
	case EOF, Ident, PrivateName, Template, Punct:
		return false
	}

	return false
}

// IsName reports whether the token can be used as a property or binding name.
func (t Token) IsName() bool {
	return t.Kind == Ident || t.Kind == Keyword
}

var reserved = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {},
	"export": {}, "extends": {}, "false": {}, "finally": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "in": {}, "instanceof": {}, "new": {}, "null": {},
	"return": {}, "super": {}, "switch": {}, "this": {}, "throw": {}, "true": {},
	"try": {}, "typeof": {}, "var": {}, "void": {}, "while": {}, "with": {},
}

var contextual = map[string]struct{}{
	"let": {}, "static": {}, "yield": {}, "await": {}, "async": {}, "of": {},
	"get": {}, "set": {}, "as": {}, "from": {}, "target": {}, "meta": {},
	"implements": {}, "interface": {}, "package": {}, "private": {},
	"protected": {}, "public": {}, "undefined": {}, "eval": {}, "arguments": {},
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

// IsContextual reports whether name has a context-dependent meaning and so
// must never be introduced or replaced by the fuzzer.
func IsContextual(name string) bool {
	_, ok := contextual[name]
	return ok
}

// punctuators ordered longest first.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@",
}
