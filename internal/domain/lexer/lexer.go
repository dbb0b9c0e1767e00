package lexer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnterminated is returned for strings, comments, templates and regular
// expressions that run off the end of their line or of the input.
var ErrUnterminated = errors.New("unterminated literal")

// ErrUnexpectedChar is returned when no token can start at the cursor.
var ErrUnexpectedChar = errors.New("unexpected character")

// Lexer scans one source string.
type Lexer struct {
	src  string
	pos  int
	line int
	prev Token
	err  error
}

// New creates a lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, prev: Token{Kind: EOF}}
}

// Tokenize scans the whole input. The final token is EOF and carries the
// trailing trivia.
func Tokenize(src string) ([]Token, error) {
	lx := New(src)

	var out []Token

	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}

		out = append(out, tok)

		if tok.Kind == EOF {
			return out, nil
		}
	}
}

// Next returns the next significant token with its leading trivia.
func (lx *Lexer) Next() (Token, error) {
	if lx.err != nil {
		return Token{}, lx.err
	}

	start := lx.pos

	newline, err := lx.skipTrivia()
	if err != nil {
		lx.err = err
		return Token{}, err
	}

	tok := Token{
		Leading:       lx.src[start:lx.pos],
		NewlineBefore: newline,
		Offset:        lx.pos,
		Line:          lx.line,
	}

	if lx.pos >= len(lx.src) {
		tok.Kind = EOF
		return tok, nil
	}

	if err := lx.scan(&tok); err != nil {
		lx.err = fmt.Errorf("line %d: %w", tok.Line, err)
		return Token{}, lx.err
	}

	lx.prev = tok

	return tok, nil
}

func (lx *Lexer) scan(tok *Token) error {
	begin := lx.pos
	ch, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])

	switch {
	case isIdentStart(ch) || ch == '\\':
		lx.scanIdent()

		tok.Kind = Ident
		if IsReserved(lx.src[begin:lx.pos]) {
			tok.Kind = Keyword
		}
	case ch == '#':
		lx.pos++
		if lx.pos >= len(lx.src) {
			return ErrUnexpectedChar
		}

		lx.scanIdent()

		tok.Kind = PrivateName
	case isDigit(ch) || (ch == '.' && lx.pos+1 < len(lx.src) && isDigit(rune(lx.src[lx.pos+1]))):
		lx.scanNumber()

		tok.Kind = Number
	case ch == '"' || ch == '\'':
		if err := lx.scanString(byte(ch)); err != nil {
			return err
		}

		tok.Kind = String
	case ch == '`':
		if err := lx.scanTemplate(); err != nil {
			return err
		}

		tok.Kind = Template
	case ch == '/' && lx.regexAllowed():
		if err := lx.scanRegExp(); err != nil {
			return err
		}

		tok.Kind = RegExp
	default:
		if !lx.scanPunct() {
			return fmt.Errorf("%w %q", ErrUnexpectedChar, ch)
		}

		tok.Kind = Punct
	}

	tok.Text = lx.src[begin:lx.pos]

	return nil
}

// skipTrivia consumes whitespace and comments and reports whether a line
// terminator was crossed.
func (lx *Lexer) skipTrivia() (bool, error) {
	newline := false

	if lx.pos == 0 && strings.HasPrefix(lx.src, "#!") {
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.pos++
		}
	}

	for lx.pos < len(lx.src) {
		ch, size := utf8.DecodeRuneInString(lx.src[lx.pos:])

		switch {
		case isLineTerminator(ch):
			newline = true
			lx.line++
			lx.pos += size
		case unicode.IsSpace(ch) || ch == '\uFEFF':
			lx.pos += size
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			for lx.pos < len(lx.src) {
				r, n := utf8.DecodeRuneInString(lx.src[lx.pos:])
				if isLineTerminator(r) {
					break
				}

				lx.pos += n
			}
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return newline, fmt.Errorf("line %d: comment: %w", lx.line, ErrUnterminated)
			}

			body := lx.src[lx.pos : lx.pos+2+end+2]
			if n := strings.Count(body, "\n"); n > 0 {
				newline = true
				lx.line += n
			}

			lx.pos += len(body)
		default:
			return newline, nil
		}
	}

	return newline, nil
}

func (lx *Lexer) scanIdent() {
	for lx.pos < len(lx.src) {
		ch, size := utf8.DecodeRuneInString(lx.src[lx.pos:])

		switch {
		case ch == '\\':
			lx.pos++
			if lx.pos < len(lx.src) && lx.src[lx.pos] == 'u' {
				lx.pos++
				if lx.pos < len(lx.src) && lx.src[lx.pos] == '{' {
					for lx.pos < len(lx.src) && lx.src[lx.pos] != '}' {
						lx.pos++
					}

					lx.pos++
				} else {
					lx.pos += min(4, len(lx.src)-lx.pos)
				}
			}
		case isIdentPart(ch):
			lx.pos += size
		default:
			return
		}
	}
}

func (lx *Lexer) scanNumber() {
	if lx.src[lx.pos] == '0' && lx.pos+1 < len(lx.src) && strings.ContainsRune("xXoObB", rune(lx.src[lx.pos+1])) {
		lx.pos += 2
		for lx.pos < len(lx.src) && (isHex(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.pos++
		}

		lx.eat('n')

		return
	}

	lx.digits()

	if lx.eat('.') {
		lx.digits()
	}

	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		lx.pos++
		if !lx.eat('+') {
			lx.eat('-')
		}

		lx.digits()
	}

	lx.eat('n')
}

func (lx *Lexer) digits() {
	for lx.pos < len(lx.src) && (isDigit(rune(lx.src[lx.pos])) || lx.src[lx.pos] == '_') {
		lx.pos++
	}
}

func (lx *Lexer) eat(b byte) bool {
	if lx.pos < len(lx.src) && lx.src[lx.pos] == b {
		lx.pos++
		return true
	}

	return false
}

func (lx *Lexer) scanString(quote byte) error {
	lx.pos++

	for lx.pos < len(lx.src) {
		switch c := lx.src[lx.pos]; c {
		case '\\':
			if strings.HasPrefix(lx.src[lx.pos+1:], "\r\n") {
				lx.pos++
			}

			lx.pos += 2
		case quote:
			lx.pos++
			return nil
		case '\n', '\r':
			return fmt.Errorf("string: %w", ErrUnterminated)
		default:
			lx.pos++
		}
	}

	return fmt.Errorf("string: %w", ErrUnterminated)
}

// scanTemplate consumes a whole template literal, including substitutions.
func (lx *Lexer) scanTemplate() error {
	lx.pos++

	for lx.pos < len(lx.src) {
		switch c := lx.src[lx.pos]; {
		case c == '\\':
			lx.pos += 2
		case c == '`':
			lx.pos++
			return nil
		case c == '$' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '{':
			lx.pos += 2
			if err := lx.skipSubstitution(); err != nil {
				return err
			}
		default:
			if c == '\n' {
				lx.line++
			}

			lx.pos++
		}
	}

	return fmt.Errorf("template: %w", ErrUnterminated)
}

// skipSubstitution scans tokens up to the brace closing a ${ substitution.
func (lx *Lexer) skipSubstitution() error {
	saved := lx.prev
	lx.prev = Token{Kind: Punct, Text: "{"}

	defer func() { lx.prev = saved }()

	depth := 0

	for {
		if _, err := lx.skipTrivia(); err != nil {
			return err
		}

		if lx.pos >= len(lx.src) {
			return fmt.Errorf("template substitution: %w", ErrUnterminated)
		}

		if lx.src[lx.pos] == '}' && depth == 0 {
			lx.pos++
			return nil
		}

		var tok Token
		if err := lx.scan(&tok); err != nil {
			return err
		}

		switch tok.Text {
		case "{":
			depth++
		case "}":
			depth--
		}

		lx.prev = tok
	}
}

func (lx *Lexer) scanRegExp() error {
	lx.pos++

	inClass := false

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]

		switch {
		case c == '\\':
			lx.pos += 2
			continue
		case c == '\n' || c == '\r':
			return fmt.Errorf("regular expression: %w", ErrUnterminated)
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			lx.pos++
			for lx.pos < len(lx.src) {
				r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
				if !isIdentPart(r) {
					break
				}

				lx.pos += size
			}

			return nil
		}

		lx.pos++
	}

	return fmt.Errorf("regular expression: %w", ErrUnterminated)
}

func (lx *Lexer) scanPunct() bool {
	rest := lx.src[lx.pos:]

	for _, p := range punctuators {
		if !strings.HasPrefix(rest, p) {
			continue
		}

		// a?.5:b is a conditional, not optional chaining.
		if p == "?." && len(rest) > 2 && isDigit(rune(rest[2])) {
			continue
		}

		lx.pos += len(p)

		return true
	}

	return false
}

// regexAllowed decides between a regular expression and division from the
// previous significant token.
func (lx *Lexer) regexAllowed() bool {
	switch lx.prev.Kind {
	case EOF:
		return true
	case Punct:
		switch lx.prev.Text {
		case ")", "]", "++", "--":
			return false
		}

		return true
	case Keyword:
		switch lx.prev.Text {
		case "this", "super", "null", "true", "false":
			return false
		}

		return true
	case Ident, PrivateName, Number, String, Template, RegExp:
		return false
	}

	return false
}

func isLineTerminator(ch rune) bool {
	return ch == '\n' || ch == '\r' || ch == '\u2028' || ch == '\u2029'
}

func isIdentStart(ch rune) bool {
	return ch == '$' || ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= utf8.RuneSelf && unicode.IsLetter(ch))
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '\u200C' || ch == '\u200D' ||
		(ch >= utf8.RuneSelf && (unicode.IsDigit(ch) || unicode.Is(unicode.Mn, ch) || unicode.Is(unicode.Mc, ch)))
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
