package domain

import (
	"fmt"
	"slices"
	"strings"

	"templar.dev/pkg/templar/internal/adapter"
	"templar.dev/pkg/templar/internal/domain/lexer"
	m "templar.dev/pkg/templar/internal/model"
)

// markerPrefix marks free references in built-in fragments. Any identifier
// starting with it becomes an identifier placeholder even though it is never
// declared.
const markerPrefix = "__ref"

// Extractor turns source programs into templates.
type Extractor interface {
	// Extract parses a seed and places identifier, expression and statement
	// placeholders. The result is guaranteed to be well formed.
	Extract(id, source string) (*m.Template, error)

	// Fragment extracts a snippet whose free references are spelled with the
	// __ref prefix.
	Fragment(source string) (*m.Template, error)
}

type extractor struct {
	adapter.JSSyntaxAdapter
}

// NewExtractor returns an Extractor validating through syntax.
func NewExtractor(syntax adapter.JSSyntaxAdapter) Extractor {
	return &extractor{JSSyntaxAdapter: syntax}
}

// siteRules selects which placeholder kinds the parser may place. Statement
// holes are always placed.
type siteRules struct {
	identifiers bool
	literals    bool
}

// extractLevels are tried in order until the canonical rendering validates.
var extractLevels = []siteRules{
	{identifiers: true, literals: true},
	{identifiers: true},
	{},
}

func (e *extractor) Extract(id, source string) (*m.Template, error) {
	if err := e.Validate(source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return e.extract(id, source, false)
}

func (e *extractor) Fragment(source string) (*m.Template, error) {
	return e.extract("fragment:"+m.HashSource(source)[:8], source, true)
}

func (e *extractor) extract(id, source string, markers bool) (*m.Template, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var lastErr error

	for _, rules := range extractLevels {
		tpl, err := build(id, toks, rules, markers)
		if err != nil {
			return nil, err
		}

		if err := e.Validate(tpl.Render(m.CanonicalFill)); err != nil {
			lastErr = err
			continue
		}

		return tpl, nil
	}

	return nil, fmt.Errorf("%w: template is not well formed: %w", ErrParse, lastErr)
}

// Summarize describes an extracted seed for listings.
func Summarize(path m.Path, tpl *m.Template) m.SeedSummary {
	counts := tpl.CountPlaceholders()

	return m.SeedSummary{
		Path:        path,
		Units:       len(tpl.Units()),
		Identifiers: counts[m.PlaceholderIdentifier],
		Expressions: counts[m.PlaceholderExpression],
		Statements:  counts[m.PlaceholderStatement],
		Scopes:      len(tpl.Scopes),
	}
}

type mode uint8

const (
	modeExpr mode = iota
	modeObject
	modeClass
)

// stopSet ends a token sequence.
type stopSet struct {
	puncts []string
	// statement consumes a terminating semicolon and stops before a closing
	// brace or where automatic semicolon insertion ends the statement.
	statement bool
	// asi stops at automatic semicolon insertion points only.
	asi bool
}

func until(puncts ...string) stopSet {
	return stopSet{puncts: puncts}
}

var (
	stopStatement  = stopSet{statement: true}
	stopDeclarator = stopSet{puncts: []string{","}, statement: true}
	stopArrowBody  = stopSet{puncts: []string{",", ")", "]", "}", ";", ":"}, asi: true}
)

type parseFailure struct {
	msg string
}

// parser is a structural JavaScript parser. It recognizes statements,
// blocks, functions, classes and binding patterns, and treats expressions as
// flat token runs with balanced brackets.
type parser struct {
	toks     []lexer.Token
	pos      int
	tpl      *m.Template
	rules    siteRules
	markers  bool
	opaque   int
	stmtHead int
	declared map[string]struct{}
	refs     []*m.Node
}

func build(id string, toks []lexer.Token, rules siteRules, markers bool) (tpl *m.Template, err error) {
	p := &parser{
		toks:     toks,
		tpl:      m.NewTemplate(id),
		rules:    rules,
		markers:  markers,
		stmtHead: -1,
		declared: make(map[string]struct{}),
	}

	defer func() {
		if r := recover(); r != nil {
			pf, ok := r.(parseFailure)
			if !ok {
				panic(r)
			}

			tpl, err = nil, fmt.Errorf("%w: %s", ErrParse, pf.msg)
		}
	}()

	root := p.tpl.Root
	p.statementList(root, 0)

	if p.cur().Kind != lexer.EOF {
		p.fail("unexpected %q", p.cur().Text)
	}

	root.Trailing = p.cur().Leading

	p.bindRefs()
	p.tpl.Reindex()

	return p.tpl, nil
}

func (p *parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) peek(k int) lexer.Token {
	i := p.pos + k
	if i < 0 {
		return lexer.Token{Kind: lexer.EOF}
	}

	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}

	return p.toks[i]
}

func (p *parser) prev() lexer.Token {
	return p.peek(-1)
}

func (p *parser) advance() lexer.Token {
	tok := p.toks[p.pos]
	if tok.Kind != lexer.EOF {
		p.pos++
	}

	return tok
}

func (p *parser) fail(format string, args ...any) {
	panic(parseFailure{msg: fmt.Sprintf("line %d: ", p.cur().Line) + fmt.Sprintf(format, args...)})
}

func (p *parser) expect(text string) lexer.Token {
	if !p.cur().Is(text) {
		p.fail("expected %q, found %q", text, p.cur().Text)
	}

	return p.advance()
}

// emit consumes the current token into parent.
func (p *parser) emit(parent *m.Node, scope m.ScopeID) *m.Node {
	tok := p.advance()
	if tok.Kind == lexer.EOF {
		p.fail("unexpected end of input")
	}

	kind := m.NodeToken
	if tok.Kind == lexer.Ident || tok.Kind == lexer.PrivateName {
		kind = m.NodeIdentifier
	}

	n := &m.Node{Kind: kind, Text: tok.Text, Leading: tok.Leading, Scope: scope}
	parent.Children = append(parent.Children, n)

	return n
}

func (p *parser) emitExpect(parent *m.Node, scope m.ScopeID, text string) {
	if !p.cur().Is(text) {
		p.fail("expected %q, found %q", text, p.cur().Text)
	}

	p.emit(parent, scope)
}

func (p *parser) statementList(container *m.Node, scope m.ScopeID) {
	for {
		tok := p.cur()
		if tok.Kind == lexer.EOF || (tok.Is("}") && container.Kind == m.NodeBlock) {
			break
		}

		if tok.Is("}") {
			p.fail("unexpected %q", tok.Text)
		}

		start := p.pos
		container.Children = append(container.Children, p.statement(scope))

		if p.pos == start {
			p.fail("no progress at %q", tok.Text)
		}
	}

	container.Children = append(container.Children, &m.Node{
		Kind:  m.NodePlaceholder,
		Scope: scope,
		Hole:  &m.Placeholder{Type: m.PlaceholderStatement},
	})
}

func (p *parser) block(parent *m.Node, scope m.ScopeID) {
	open := p.expect("{")
	blk := &m.Node{Kind: m.NodeBlock, Leading: open.Leading, Scope: scope}

	opaque := p.opaque
	p.opaque = 0
	p.statementList(blk, scope)
	p.opaque = opaque

	closing := p.expect("}")
	blk.Trailing = closing.Leading
	parent.Children = append(parent.Children, blk)
}

func (p *parser) statement(scope m.ScopeID) *m.Node {
	stmt := &m.Node{Kind: m.NodeStatement, Scope: scope}
	p.stmtHead = p.pos

	tok, next := p.cur(), p.peek(1)

	switch {
	case tok.Is("{"):
		p.block(stmt, p.tpl.NewScope(scope, m.ScopeBlock))
	case tok.Is(";"):
		p.emit(stmt, scope)
	case tok.Kind == lexer.Keyword:
		p.keywordStatement(stmt, scope)
	case tok.Is("let") && isBindingStart(next):
		p.declaration(stmt, scope, m.DeclLet, false)
	case tok.Is("async") && next.Is("function") && !next.NewlineBefore:
		p.emit(stmt, scope)
		p.function(stmt, scope, true)
	case tok.Kind == lexer.Ident && next.Is(":"):
		p.emit(stmt, scope)
		p.emit(stmt, scope)
		stmt.Children = append(stmt.Children, p.statement(scope))
	default:
		p.sequence(stmt, scope, modeExpr, stopStatement)
	}

	return stmt
}

func (p *parser) keywordStatement(stmt *m.Node, scope m.ScopeID) {
	tok, next := p.cur(), p.peek(1)

	switch tok.Text {
	case "if":
		p.emit(stmt, scope)
		p.condition(stmt, scope)
		p.body(stmt, scope)

		if p.cur().Is("else") {
			p.emit(stmt, scope)
			p.body(stmt, scope)
		}
	case "for":
		p.emit(stmt, scope)

		if p.cur().Is("await") {
			p.emit(stmt, scope)
		}

		head := p.tpl.NewScope(scope, m.ScopeBlock)
		p.forHead(stmt, head)
		p.body(stmt, head)
	case "while", "with":
		p.emit(stmt, scope)
		p.condition(stmt, scope)
		p.body(stmt, scope)
	case "do":
		p.emit(stmt, scope)
		p.body(stmt, scope)
		p.emitExpect(stmt, scope, "while")
		p.condition(stmt, scope)
		p.terminate(stmt, scope)
	case "try":
		p.tryStatement(stmt, scope)
	case "switch":
		p.emit(stmt, scope)
		p.condition(stmt, scope)
		p.switchBody(stmt, scope)
	case "function":
		p.function(stmt, scope, true)
	case "class":
		p.class(stmt, scope, true)
	case "var":
		p.declaration(stmt, scope, m.DeclVar, false)
	case "const":
		p.declaration(stmt, scope, m.DeclConst, false)
	case "return", "throw":
		p.emit(stmt, scope)

		if c := p.cur(); c.NewlineBefore || c.Is("}") || c.Kind == lexer.EOF {
			return
		}

		p.sequence(stmt, scope, modeExpr, stopStatement)
	case "break", "continue":
		p.emit(stmt, scope)

		if c := p.cur(); c.Kind == lexer.Ident && !c.NewlineBefore {
			p.emit(stmt, scope)
		}

		p.terminate(stmt, scope)
	case "debugger":
		p.emit(stmt, scope)
		p.terminate(stmt, scope)
	case "import", "export":
		if tok.Text == "import" && (next.Is("(") || next.Is(".")) {
			p.sequence(stmt, scope, modeExpr, stopStatement)
			return
		}

		p.opaque++
		p.sequence(stmt, scope, modeExpr, stopStatement)
		p.opaque--
	default:
		p.sequence(stmt, scope, modeExpr, stopStatement)
	}
}

func (p *parser) tryStatement(stmt *m.Node, scope m.ScopeID) {
	p.emit(stmt, scope)
	p.block(stmt, p.tpl.NewScope(scope, m.ScopeBlock))

	if p.cur().Is("catch") {
		p.emit(stmt, scope)

		param := p.tpl.NewScope(scope, m.ScopeBlock)
		if p.cur().Is("(") {
			p.emit(stmt, scope)
			p.pattern(stmt, param, m.DeclCatch)
			p.emitExpect(stmt, scope, ")")
		}

		p.block(stmt, param)
	}

	if p.cur().Is("finally") {
		p.emit(stmt, scope)
		p.block(stmt, p.tpl.NewScope(scope, m.ScopeBlock))
	}
}

func (p *parser) switchBody(stmt *m.Node, scope m.ScopeID) {
	inner := p.tpl.NewScope(scope, m.ScopeBlock)
	p.emitExpect(stmt, scope, "{")

	for !p.cur().Is("}") {
		switch tok := p.cur(); {
		case tok.Kind == lexer.EOF:
			p.fail("unterminated switch")
		case tok.Is("case"):
			p.emit(stmt, inner)
			p.sequence(stmt, inner, modeExpr, until(":"))
			p.emitExpect(stmt, inner, ":")
		case tok.Is("default"):
			p.emit(stmt, inner)
			p.emitExpect(stmt, inner, ":")
		default:
			start := p.pos
			stmt.Children = append(stmt.Children, p.statement(inner))

			if p.pos == start {
				p.fail("no progress at %q", tok.Text)
			}
		}
	}

	p.emitExpect(stmt, scope, "}")
}

func (p *parser) condition(stmt *m.Node, scope m.ScopeID) {
	p.emitExpect(stmt, scope, "(")
	p.sequence(stmt, scope, modeExpr, until(")"))
	p.emitExpect(stmt, scope, ")")
}

// body parses the statement controlled by if, for, while and friends.
func (p *parser) body(stmt *m.Node, scope m.ScopeID) {
	if p.cur().Is("{") {
		p.block(stmt, p.tpl.NewScope(scope, m.ScopeBlock))
		return
	}

	stmt.Children = append(stmt.Children, p.statement(scope))
}

func (p *parser) forHead(stmt *m.Node, head m.ScopeID) {
	p.emitExpect(stmt, head, "(")

	tok, next := p.cur(), p.peek(1)

	switch {
	case tok.Is("var"):
		p.declaration(stmt, head, m.DeclVar, true)
	case tok.Is("const"):
		p.declaration(stmt, head, m.DeclConst, true)
	case tok.Is("let") && isBindingStart(next):
		p.declaration(stmt, head, m.DeclLet, true)
	}

	p.sequence(stmt, head, modeExpr, until(")"))
	p.emitExpect(stmt, head, ")")
}

func (p *parser) terminate(stmt *m.Node, scope m.ScopeID) {
	if p.cur().Is(";") {
		p.emit(stmt, scope)
	}
}

func (p *parser) declaration(stmt *m.Node, scope m.ScopeID, kind m.DeclKind, inHead bool) {
	p.emit(stmt, scope)

	for {
		p.pattern(stmt, scope, kind)

		if p.cur().Is("=") {
			p.emit(stmt, scope)

			if inHead {
				p.sequence(stmt, scope, modeExpr, until(",", ";", ")"))
			} else if p.sequence(stmt, scope, modeExpr, stopDeclarator) {
				return
			}
		}

		if !p.cur().Is(",") {
			break
		}

		p.emit(stmt, scope)
	}

	if !inHead {
		p.terminate(stmt, scope)
	}
}

// declare consumes a binding identifier.
func (p *parser) declare(parent *m.Node, scope m.ScopeID, kind m.DeclKind) {
	tok := p.cur()
	if tok.Kind != lexer.Ident {
		p.fail("expected binding name, found %q", tok.Text)
	}

	n := p.emit(parent, scope)
	if lexer.IsContextual(tok.Text) || p.opaque > 0 {
		return
	}

	n.Decl = kind
	p.declared[tok.Text] = struct{}{}
}

// pattern consumes a binding identifier or a destructuring pattern.
func (p *parser) pattern(parent *m.Node, scope m.ScopeID, kind m.DeclKind) {
	switch tok := p.cur(); {
	case tok.Kind == lexer.Ident:
		p.declare(parent, scope, kind)
	case tok.Is("["):
		p.emit(parent, scope)

		for !p.cur().Is("]") {
			if p.cur().Is(",") {
				p.emit(parent, scope)
				continue
			}

			if p.cur().Is("...") {
				p.emit(parent, scope)
			}

			p.pattern(parent, scope, kind)
			p.initializer(parent, scope, "]")

			if p.cur().Is(",") {
				p.emit(parent, scope)
			}
		}

		p.emitExpect(parent, scope, "]")
	case tok.Is("{"):
		p.emit(parent, scope)

		for !p.cur().Is("}") {
			cur, next := p.cur(), p.peek(1)

			switch {
			case cur.Is("..."):
				p.emit(parent, scope)
				p.pattern(parent, scope, kind)
			case cur.Is("["):
				p.emit(parent, scope)
				p.sequence(parent, scope, modeExpr, until("]"))
				p.emitExpect(parent, scope, "]")
				p.emitExpect(parent, scope, ":")
				p.pattern(parent, scope, kind)
			case next.Is(":") && (cur.IsName() || cur.Kind == lexer.Number || cur.Kind == lexer.String):
				p.emit(parent, scope)
				p.emit(parent, scope)
				p.pattern(parent, scope, kind)
			default:
				p.declare(parent, scope, kind)
			}

			p.initializer(parent, scope, "}")

			if !p.cur().Is(",") {
				break
			}

			p.emit(parent, scope)
		}

		p.emitExpect(parent, scope, "}")
	default:
		p.fail("unexpected %q in binding pattern", tok.Text)
	}
}

func (p *parser) initializer(parent *m.Node, scope m.ScopeID, closer string) {
	if !p.cur().Is("=") {
		return
	}

	p.emit(parent, scope)
	p.sequence(parent, scope, modeExpr, until(",", closer))
}

// params consumes a formal parameter list up to, not including, ")".
func (p *parser) params(parent *m.Node, fn m.ScopeID) {
	for !p.cur().Is(")") {
		if p.cur().Is("...") {
			p.emit(parent, fn)
		}

		p.pattern(parent, fn, m.DeclParam)
		p.initializer(parent, fn, ")")

		if !p.cur().Is(",") {
			break
		}

		p.emit(parent, fn)
	}
}

func (p *parser) function(parent *m.Node, scope m.ScopeID, declaration bool) {
	p.emitExpect(parent, scope, "function")

	if p.cur().Is("*") {
		p.emit(parent, scope)
	}

	fn := p.tpl.NewScope(scope, m.ScopeFunction)

	if p.cur().Kind == lexer.Ident {
		if declaration {
			p.declare(parent, scope, m.DeclFunction)
		} else {
			p.declare(parent, fn, m.DeclFunction)
		}
	}

	p.emitExpect(parent, scope, "(")
	p.params(parent, fn)
	p.emitExpect(parent, scope, ")")
	p.block(parent, fn)
}

func (p *parser) class(parent *m.Node, scope m.ScopeID, declaration bool) {
	p.emitExpect(parent, scope, "class")

	if p.cur().Kind == lexer.Ident {
		if declaration {
			p.declare(parent, scope, m.DeclClass)
		} else {
			p.emit(parent, scope)
		}
	}

	if p.cur().Is("extends") {
		p.emit(parent, scope)
		p.sequence(parent, scope, modeExpr, until("{"))
	}

	p.emitExpect(parent, scope, "{")
	p.sequence(parent, scope, modeClass, until("}"))
	p.emitExpect(parent, scope, "}")
}

// method consumes "(params) { body }" of an object or class method.
func (p *parser) method(parent *m.Node, scope m.ScopeID) {
	fn := p.tpl.NewScope(scope, m.ScopeFunction)

	p.emitExpect(parent, scope, "(")
	p.params(parent, fn)
	p.emitExpect(parent, scope, ")")
	p.block(parent, fn)
}

func (p *parser) arrow(parent *m.Node, scope m.ScopeID, parenthesized bool) {
	fn := p.tpl.NewScope(scope, m.ScopeFunction)

	if parenthesized {
		p.emitExpect(parent, scope, "(")
		p.params(parent, fn)
		p.emitExpect(parent, scope, ")")
	} else {
		p.declare(parent, fn, m.DeclParam)
	}

	p.emitExpect(parent, scope, "=>")

	if p.cur().Is("{") {
		p.block(parent, fn)
		return
	}

	p.sequence(parent, fn, modeExpr, stopArrowBody)
}

// sequence consumes elements until stop matches. It reports whether a
// terminating semicolon was consumed.
func (p *parser) sequence(parent *m.Node, scope m.ScopeID, md mode, stop stopSet) bool {
	start := p.pos

	for {
		tok := p.cur()

		switch {
		case tok.Kind == lexer.EOF:
			return false
		case tok.Kind == lexer.Punct && slices.Contains(stop.puncts, tok.Text):
			return false
		case stop.statement && tok.Is(";"):
			p.emit(parent, scope)
			return true
		case stop.statement && tok.Is("}"):
			return false
		case (stop.statement || stop.asi) && p.pos != start && p.lineEnds():
			return false
		}

		p.element(parent, scope, md)
	}
}

// element consumes one token or one bracketed group.
func (p *parser) element(parent *m.Node, scope m.ScopeID, md mode) {
	tok, prev, next := p.cur(), p.prev(), p.peek(1)
	member := md == modeObject || md == modeClass

	switch {
	case tok.IsName() && (prev.Is(".") || prev.Is("?.")):
		p.emit(parent, scope)
	case tok.Kind == lexer.Keyword && member && (next.Is(":") || next.Is("(")):
		p.emit(parent, scope)
	case tok.Is("("):
		after := p.toks[p.matching(p.pos)+1]

		switch {
		case after.Is("=>") && !after.NewlineBefore:
			p.arrow(parent, scope, true)
		case member && after.Is("{"):
			p.method(parent, scope)
		default:
			p.emit(parent, scope)
			p.sequence(parent, scope, modeExpr, until(")"))
			p.emitExpect(parent, scope, ")")
		}
	case tok.Is("["):
		p.emit(parent, scope)
		p.sequence(parent, scope, modeExpr, until("]"))
		p.emitExpect(parent, scope, "]")
	case tok.Is("{"):
		if md == modeClass {
			p.block(parent, p.tpl.NewScope(scope, m.ScopeBlock))
			return
		}

		p.emit(parent, scope)
		p.sequence(parent, scope, modeObject, until("}"))
		p.emitExpect(parent, scope, "}")
	case tok.Is("function"):
		p.function(parent, scope, false)
	case tok.Is("class"):
		p.class(parent, scope, false)
	case tok.Kind == lexer.Ident && next.Is("=>") && !next.NewlineBefore:
		p.arrow(parent, scope, false)
	case tok.Kind == lexer.Ident:
		p.identifier(parent, scope, md)
	case tok.IsLiteral():
		p.literal(parent, scope, md)
	case tok.Is(")") || tok.Is("]") || tok.Is("}"):
		p.fail("unexpected %q", tok.Text)
	default:
		p.emit(parent, scope)
	}
}

func (p *parser) identifier(parent *m.Node, scope m.ScopeID, md mode) {
	tok, prev, next := p.cur(), p.prev(), p.peek(1)
	n := p.emit(parent, scope)

	if !p.rules.identifiers || p.opaque > 0 || md == modeClass || lexer.IsContextual(tok.Text) {
		return
	}

	if md == modeObject && isKeyPosition(prev) && (next.Is(":") || next.Is("(")) {
		return
	}

	n.Assign = isAssignOp(next)
	p.refs = append(p.refs, n)
}

func (p *parser) literal(parent *m.Node, scope m.ScopeID, md mode) {
	tok, prev, next := p.cur(), p.prev(), p.peek(1)

	eligible := p.rules.literals && p.opaque == 0 && md != modeClass && p.pos != p.stmtHead &&
		!next.Is("(") &&
		(!next.Is(":") || prev.Is("?") || prev.Is("case")) &&
		!prev.Is("import") && !prev.Is("from") && !prev.Is("export")

	if !eligible {
		p.emit(parent, scope)
		return
	}

	p.advance()
	parent.Children = append(parent.Children, &m.Node{
		Kind:    m.NodePlaceholder,
		Leading: tok.Leading,
		Scope:   scope,
		Hole: &m.Placeholder{
			Type:     m.PlaceholderExpression,
			Original: tok.Text,
			Seed:     tok.Text,
		},
	})
}

// bindRefs turns references to names declared somewhere in the program into
// identifier placeholders.
func (p *parser) bindRefs() {
	for _, n := range p.refs {
		_, declared := p.declared[n.Text]
		if !declared && !(p.markers && strings.HasPrefix(n.Text, markerPrefix)) {
			continue
		}

		n.Kind = m.NodePlaceholder
		n.Hole = &m.Placeholder{
			Type:     m.PlaceholderIdentifier,
			Binding:  n.Text,
			Original: n.Text,
		}
	}
}

// matching returns the index of the bracket closing the one at open.
func (p *parser) matching(open int) int {
	depth := 0

	for i := open; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.Kind != lexer.Punct {
			continue
		}

		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	p.fail("unbalanced %q", p.toks[open].Text)

	return -1
}

// lineEnds reports whether automatic semicolon insertion ends the statement
// before the current token.
func (p *parser) lineEnds() bool {
	tok := p.cur()

	return tok.NewlineBefore && canEnd(p.prev()) && !continues(tok)
}

func canEnd(tok lexer.Token) bool {
	switch tok.Kind {
	case lexer.Ident, lexer.PrivateName, lexer.Number, lexer.String, lexer.Template, lexer.RegExp:
		return true
	case lexer.Keyword:
		switch tok.Text {
		case "this", "super", "null", "true", "false":
			return true
		}
	case lexer.Punct:
		switch tok.Text {
		case ")", "]", "}", "++", "--":
			return true
		}
	case lexer.EOF:
	}

	return false
}

func continues(tok lexer.Token) bool {
	switch tok.Kind {
	case lexer.Punct:
		switch tok.Text {
		case "++", "--", "!", "~", "{", "}", ";", "...", "@":
			return false
		}

		return true
	case lexer.Keyword:
		return tok.Text == "in" || tok.Text == "instanceof"
	case lexer.Template:
		return true
	case lexer.EOF, lexer.Ident, lexer.PrivateName, lexer.Number, lexer.String, lexer.RegExp:
	}

	return false
}

func isBindingStart(tok lexer.Token) bool {
	return tok.Kind == lexer.Ident || tok.Is("[") || tok.Is("{")
}

func isKeyPosition(prev lexer.Token) bool {
	if prev.Is("{") || prev.Is(",") || prev.Is("*") {
		return true
	}

	if prev.Kind != lexer.Ident {
		return false
	}

	switch prev.Text {
	case "get", "set", "async", "static":
		return true
	}

	return false
}

var assignOps = []string{
	"=", "+=", "-=", "*=", "/=", "%=", "**=", "<<=", ">>=", ">>>=",
	"&=", "|=", "^=", "&&=", "||=", "??=",
}

func isAssignOp(tok lexer.Token) bool {
	return tok.Kind == lexer.Punct && slices.Contains(assignOps, tok.Text)
}
