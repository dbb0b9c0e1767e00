package domain

import (
	"sort"

	"templar.dev/pkg/templar/internal/domain/lexer"
	m "templar.dev/pkg/templar/internal/model"
)

// DefSite is a point where a name receives a value: a declaration or an
// assignment through an identifier placeholder.
type DefSite struct {
	Name string
	// Scope is where the binding is visible. For var declarations this is
	// the enclosing function scope.
	Scope  m.ScopeID
	Kind   m.DeclKind
	Assign bool
	Pos    int
	Node   *m.Node
}

// UseSite is an identifier placeholder.
type UseSite struct {
	Name  string
	Scope m.ScopeID
	Pos   int
	Node  *m.Node
}

// Edge links a def site to a use site it may reach.
type Edge struct {
	Def    int
	Use    int
	Weight float64
}

// Candidate is a name usable at a placeholder, with its sampling weight.
type Candidate struct {
	Name   string
	Kind   m.DeclKind
	Weight float64
}

// DataflowGraph is the def-use relation of one template. It is derived and
// must be rebuilt after every template edit.
type DataflowGraph struct {
	tpl   *m.Template
	Defs  []DefSite
	Uses  []UseSite
	Edges []Edge

	freq      map[string]int
	positions map[*m.Node]int
	spans     map[*m.Node][2]int
	byHole    map[int][]Candidate
	dependent map[int][]int
}

// Analyze computes def-use edges and the candidate names of every identifier
// placeholder. The candidates are also stored as each placeholder's Bias.
func Analyze(tpl *m.Template) *DataflowGraph {
	g := &DataflowGraph{
		tpl:       tpl,
		freq:      make(map[string]int),
		positions: make(map[*m.Node]int),
		spans:     make(map[*m.Node][2]int),
		byHole:    make(map[int][]Candidate),
		dependent: make(map[int][]int),
	}

	pos := 0
	g.collect(tpl.Root, &pos)

	for _, u := range g.Uses {
		g.freq[u.Name]++
	}

	for ui, u := range g.Uses {
		for di, d := range g.Defs {
			if d.Name != u.Name || !g.reaches(d, u.Scope, u.Pos) {
				continue
			}

			g.Edges = append(g.Edges, Edge{Def: di, Use: ui, Weight: g.weight(d, u.Scope)})
			g.dependent[d.Pos] = append(g.dependent[d.Pos], u.Pos)
		}
	}

	for _, u := range g.Uses {
		cands := g.candidates(u.Scope, u.Pos, u.Node.Assign)
		g.byHole[u.Node.Hole.ID] = cands

		bias := make(map[string]float64, len(cands))
		for _, c := range cands {
			bias[c.Name] = c.Weight
		}

		u.Node.Hole.Bias = bias
	}

	return g
}

// collect numbers leaves in pre-order and records def and use sites.
func (g *DataflowGraph) collect(n *m.Node, pos *int) {
	lo := *pos

	switch n.Kind {
	case m.NodeIdentifier:
		if n.Decl != m.DeclNone {
			g.Defs = append(g.Defs, DefSite{
				Name:  n.Text,
				Scope: g.bindingScope(n),
				Kind:  n.Decl,
				Pos:   *pos,
				Node:  n,
			})
		}
	case m.NodePlaceholder:
		if n.Hole.Type == m.PlaceholderIdentifier {
			g.Uses = append(g.Uses, UseSite{Name: n.Hole.Binding, Scope: n.Scope, Pos: *pos, Node: n})

			if n.Assign {
				g.Defs = append(g.Defs, DefSite{
					Name:   n.Hole.Binding,
					Scope:  n.Scope,
					Assign: true,
					Pos:    *pos,
					Node:   n,
				})
			}
		}
	case m.NodeProgram, m.NodeStatement, m.NodeBlock, m.NodeToken:
	}

	if len(n.Children) == 0 {
		g.positions[n] = *pos
		*pos++
	}

	for _, c := range n.Children {
		g.collect(c, pos)
	}

	g.spans[n] = [2]int{lo, *pos}
}

func (g *DataflowGraph) bindingScope(n *m.Node) m.ScopeID {
	if n.Decl == m.DeclVar {
		return g.tpl.FunctionScope(n.Scope)
	}

	return n.Scope
}

// reaches reports whether d is visible at a use in scope at pos.
func (g *DataflowGraph) reaches(d DefSite, scope m.ScopeID, pos int) bool {
	if !g.tpl.Encloses(d.Scope, scope) {
		return false
	}

	return d.Pos < pos || d.Kind.Hoisted()
}

func (g *DataflowGraph) weight(d DefSite, scope m.ScopeID) float64 {
	return float64(1+g.freq[d.Name]) / float64(1+g.tpl.Distance(d.Scope, scope))
}

func (g *DataflowGraph) candidates(scope m.ScopeID, pos int, mutable bool) []Candidate {
	best := make(map[string]Candidate)

	for _, d := range g.Defs {
		if d.Assign || lexer.IsContextual(d.Name) || !g.reaches(d, scope, pos) {
			continue
		}

		if mutable && !d.Kind.Mutable() {
			continue
		}

		w := g.weight(d, scope)
		if c, ok := best[d.Name]; !ok || w > c.Weight {
			best[d.Name] = Candidate{Name: d.Name, Kind: d.Kind, Weight: w}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}

		return out[i].Name < out[j].Name
	})

	return out
}

// Candidates returns the ranked names for an identifier placeholder.
func (g *DataflowGraph) Candidates(hole int) []Candidate {
	return g.byHole[hole]
}

// Visible returns the declared names usable at node n, ranked.
func (g *DataflowGraph) Visible(n *m.Node) []Candidate {
	return g.candidates(n.Scope, g.positions[n], false)
}

// Mutable returns the visible names that may be assigned at node n.
func (g *DataflowGraph) Mutable(n *m.Node) []Candidate {
	return g.candidates(n.Scope, g.positions[n], true)
}

// Span returns the half-open leaf position range covered by n.
func (g *DataflowGraph) Span(n *m.Node) (int, int) {
	s := g.spans[n]
	return s[0], s[1]
}

// DependentUses lists the positions of uses outside [lo, hi) reached by a
// def inside it.
func (g *DataflowGraph) DependentUses(lo, hi int) []int {
	var out []int

	for _, d := range g.Defs {
		if d.Pos < lo || d.Pos >= hi {
			continue
		}

		for _, u := range g.dependent[d.Pos] {
			if u < lo || u >= hi {
				out = append(out, u)
			}
		}
	}

	return out
}

// HasDependents reports whether another part of the program uses a name
// defined inside n.
func (g *DataflowGraph) HasDependents(n *m.Node) bool {
	lo, hi := g.Span(n)
	return len(g.DependentUses(lo, hi)) > 0
}
