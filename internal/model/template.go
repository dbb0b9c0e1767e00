// Package model defines the data structures shared by the fuzzing engine.
package model

import (
	"fmt"
	"strings"
)

// NodeKind is the closed set of template node kinds.
type NodeKind uint8

const (
	// NodeProgram is the template root. Its children are statement units,
	// placeholders (statement holes) and nothing else.
	NodeProgram NodeKind = iota
	// NodeStatement is one statement. Its children are tokens, identifiers,
	// placeholders, blocks and nested statements (non-block bodies).
	NodeStatement
	// NodeBlock is a braced statement list opening a lexical scope.
	NodeBlock
	// NodeToken is a concrete syntax fragment (keyword, punctuator, literal).
	NodeToken
	// NodeIdentifier is a concrete identifier that is not a substitution point.
	NodeIdentifier
	// NodePlaceholder is a typed substitution point.
	NodePlaceholder
)

func (k NodeKind) String() string {
	switch k {
	case NodeProgram:
		return "program"
	case NodeStatement:
		return "statement"
	case NodeBlock:
		return "block"
	case NodeToken:
		return "token"
	case NodeIdentifier:
		return "identifier"
	case NodePlaceholder:
		return "placeholder"
	}

	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// ScopeID identifies a lexical scope inside one Template.
type ScopeID int

// NoScope is the parent of the program scope.
const NoScope ScopeID = -1

// ScopeKind distinguishes function scopes (var hoisting targets) from blocks.
type ScopeKind uint8

// Available ScopeKind values.
const (
	ScopeProgram ScopeKind = iota
	ScopeBlock
	ScopeFunction
)

// Scope is one entry of a Template's scope table.
type Scope struct {
	ID     ScopeID
	Parent ScopeID
	Depth  int
	Kind   ScopeKind
}

// PlaceholderType constrains what a placeholder may be filled with.
type PlaceholderType uint8

// Available PlaceholderType values.
const (
	PlaceholderIdentifier PlaceholderType = iota
	PlaceholderExpression
	PlaceholderStatement
)

func (p PlaceholderType) String() string {
	switch p {
	case PlaceholderIdentifier:
		return "identifier"
	case PlaceholderExpression:
		return "expression"
	case PlaceholderStatement:
		return "statement"
	}

	return fmt.Sprintf("PlaceholderType(%d)", uint8(p))
}

// DeclKind records how an identifier introduces a binding.
type DeclKind uint8

// Available DeclKind values.
const (
	DeclNone DeclKind = iota
	DeclVar
	DeclLet
	DeclConst
	DeclFunction
	DeclClass
	DeclParam
	DeclCatch
)

// Hoisted reports whether the binding is visible before its declaration site.
func (d DeclKind) Hoisted() bool {
	return d == DeclVar || d == DeclFunction
}

// Mutable reports whether plain assignment to the binding is allowed.
func (d DeclKind) Mutable() bool {
	return d != DeclNone && d != DeclConst && d != DeclClass
}

// Placeholder describes one substitution point.
type Placeholder struct {
	ID       int
	Type     PlaceholderType
	Scope    ScopeID
	Binding  string
	Original string
	// Seed is the preferred expression text. It starts as Original and is
	// replaced by the substitution operator.
	Seed string
	Bias map[string]float64
}

// Node is one element of a Template tree.
type Node struct {
	Kind     NodeKind
	Text     string
	Leading  string
	Trailing string
	Children []*Node
	Parent   *Node
	Scope    ScopeID
	Depth    int
	Decl     DeclKind
	Assign   bool
	Hole     *Placeholder
}

// Template is a parsed program skeleton with its placeholders.
type Template struct {
	ID           string
	Root         *Node
	Scopes       []Scope
	Placeholders []*Node
}

// NewTemplate creates an empty template with only the program scope.
func NewTemplate(id string) *Template {
	t := &Template{ID: id}
	t.Scopes = []Scope{{ID: 0, Parent: NoScope, Depth: 0, Kind: ScopeProgram}}
	t.Root = &Node{Kind: NodeProgram, Scope: 0}

	return t
}

// NewScope appends a scope nested in parent and returns its id.
func (t *Template) NewScope(parent ScopeID, kind ScopeKind) ScopeID {
	id := ScopeID(len(t.Scopes))
	depth := 0

	if parent != NoScope {
		depth = t.Scopes[parent].Depth + 1
	}

	t.Scopes = append(t.Scopes, Scope{ID: id, Parent: parent, Depth: depth, Kind: kind})

	return id
}

// Distance returns how many scope hops separate inner from outer, or -1 when
// outer does not enclose inner.
func (t *Template) Distance(outer, inner ScopeID) int {
	hops := 0

	for s := inner; s != NoScope; s = t.Scopes[s].Parent {
		if s == outer {
			return hops
		}

		hops++
	}

	return -1
}

// Encloses reports whether outer is inner or one of its ancestors.
func (t *Template) Encloses(outer, inner ScopeID) bool {
	return t.Distance(outer, inner) >= 0
}

// FunctionScope returns the nearest enclosing function or program scope.
func (t *Template) FunctionScope(s ScopeID) ScopeID {
	for s != NoScope {
		if t.Scopes[s].Kind != ScopeBlock {
			return s
		}

		s = t.Scopes[s].Parent
	}

	return 0
}

// Reindex restores parent links, scope depths and placeholder ids after
// the tree was edited. Placeholders are numbered in pre-order.
func (t *Template) Reindex() {
	t.Placeholders = t.Placeholders[:0]

	var walk func(n, parent *Node)

	walk = func(n, parent *Node) {
		n.Parent = parent
		if int(n.Scope) < len(t.Scopes) && n.Scope >= 0 {
			n.Depth = t.Scopes[n.Scope].Depth
		}

		if n.Kind == NodePlaceholder && n.Hole != nil {
			n.Hole.ID = len(t.Placeholders)
			n.Hole.Scope = n.Scope
			t.Placeholders = append(t.Placeholders, n)
		}

		for _, c := range n.Children {
			walk(c, n)
		}
	}

	walk(t.Root, nil)
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := &Template{ID: t.ID}
	c.Scopes = append([]Scope(nil), t.Scopes...)
	c.Root = CloneNode(t.Root)
	c.Reindex()

	return c
}

// CloneNode deep-copies a subtree. Parent links are left for Reindex.
func CloneNode(n *Node) *Node {
	c := *n
	c.Parent = nil

	if n.Hole != nil {
		h := *n.Hole
		if n.Hole.Bias != nil {
			h.Bias = make(map[string]float64, len(n.Hole.Bias))
			for k, v := range n.Hole.Bias {
				h.Bias[k] = v
			}
		}

		c.Hole = &h
	}

	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = CloneNode(child)
		}
	}

	return &c
}

// Walk visits the subtree in pre-order. Returning false skips the children.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}

	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// IsContainer reports whether the node holds a statement list.
func (n *Node) IsContainer() bool {
	return n.Kind == NodeProgram || n.Kind == NodeBlock
}

// IsUnit reports whether the node is a reducible statement unit.
func (n *Node) IsUnit() bool {
	return n.Kind == NodeStatement && n.Parent != nil && n.Parent.IsContainer()
}

// Units lists the statement units of the template in pre-order.
func (t *Template) Units() []*Node {
	var units []*Node

	Walk(t.Root, func(n *Node) bool {
		if n.IsUnit() {
			units = append(units, n)
		}

		return true
	})

	return units
}

// Containers lists the program node and every block in pre-order.
func (t *Template) Containers() []*Node {
	var out []*Node

	Walk(t.Root, func(n *Node) bool {
		if n.IsContainer() {
			out = append(out, n)
		}

		return true
	})

	return out
}

// TopLevelUnits lists the statement units directly under the program.
func (t *Template) TopLevelUnits() []*Node {
	var out []*Node

	for _, c := range t.Root.Children {
		if c.Kind == NodeStatement {
			out = append(out, c)
		}
	}

	return out
}

// CountPlaceholders returns the number of placeholders of each type.
func (t *Template) CountPlaceholders() map[PlaceholderType]int {
	counts := make(map[PlaceholderType]int, 3)
	for _, p := range t.Placeholders {
		counts[p.Hole.Type]++
	}

	return counts
}

// Names collects every identifier spelling used in the template.
func (t *Template) Names() map[string]struct{} {
	names := make(map[string]struct{})

	Walk(t.Root, func(n *Node) bool {
		switch n.Kind {
		case NodeIdentifier:
			names[n.Text] = struct{}{}
		case NodePlaceholder:
			if n.Hole.Type == PlaceholderIdentifier {
				names[n.Hole.Binding] = struct{}{}
				names[n.Hole.Original] = struct{}{}
			}
		case NodeProgram, NodeStatement, NodeBlock, NodeToken:
		}

		return true
	})

	return names
}

// FreshName returns a v<N> name absent from used and records it there.
func FreshName(used map[string]struct{}) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("v%d", i)
		if _, taken := used[name]; !taken {
			used[name] = struct{}{}
			return name
		}
	}
}

// Render writes the template, asking fill for every placeholder's text.
func (t *Template) Render(fill func(*Node) string) string {
	var b strings.Builder

	renderNode(&b, t.Root, fill, nil)

	return b.String()
}

// RenderPruned renders the template leaving out the nodes in skip.
func (t *Template) RenderPruned(skip map[*Node]bool, fill func(*Node) string) string {
	var b strings.Builder

	renderNode(&b, t.Root, fill, skip)

	return b.String()
}

// RenderSubtree renders a single node with the given fill.
func RenderSubtree(n *Node, fill func(*Node) string) string {
	var b strings.Builder

	renderNode(&b, n, fill, nil)

	return b.String()
}

func renderNode(b *strings.Builder, n *Node, fill func(*Node) string, skip map[*Node]bool) {
	if skip[n] {
		return
	}

	switch n.Kind {
	case NodeProgram:
		for _, c := range n.Children {
			renderNode(b, c, fill, skip)
		}

		b.WriteString(n.Trailing)
	case NodeStatement:
		for _, c := range n.Children {
			renderNode(b, c, fill, skip)
		}
	case NodeBlock:
		b.WriteString(n.Leading)
		b.WriteString("{")

		for _, c := range n.Children {
			renderNode(b, c, fill, skip)
		}

		b.WriteString(n.Trailing)
		b.WriteString("}")
	case NodeToken, NodeIdentifier:
		b.WriteString(n.Leading)
		b.WriteString(n.Text)
	case NodePlaceholder:
		b.WriteString(n.Leading)
		b.WriteString(fill(n))
	default:
		panic(fmt.Sprintf("render: unsupported node kind %s", n.Kind))
	}
}

// CanonicalFill fills identifiers with their original name, expressions with
// a parenthesized zero and statement holes with an empty statement on its
// own line. A
// template is well formed iff its canonical rendering is valid source.
func CanonicalFill(n *Node) string {
	switch n.Hole.Type {
	case PlaceholderIdentifier:
		return n.Hole.Original
	case PlaceholderExpression:
		return "(0)"
	case PlaceholderStatement:
		return "\n;"
	}

	panic(fmt.Sprintf("canonical fill: unsupported placeholder type %s", n.Hole.Type))
}

// OriginalFill reproduces the extracted source: original names and
// literals, empty statement holes.
func OriginalFill(n *Node) string {
	switch n.Hole.Type {
	case PlaceholderIdentifier, PlaceholderExpression:
		return n.Hole.Original
	case PlaceholderStatement:
		return ""
	}

	panic(fmt.Sprintf("original fill: unsupported placeholder type %s", n.Hole.Type))
}
