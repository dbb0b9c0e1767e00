package domain

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"templar.dev/pkg/templar/internal/adapter"
	m "templar.dev/pkg/templar/internal/model"
)

// maxFusedUnits bounds the donor slice copied by fusion.
const maxFusedUnits = 8

// Mutator applies structural operators to templates.
type Mutator interface {
	// Mutate applies op to a copy of target. donor may be nil for
	// insertion, deletion and substitution, in which case built-in
	// fragments or target itself serve as the donor. The inputs are never
	// modified. ErrMutationRejected is returned when no compatible site
	// exists or the result is not well formed.
	Mutate(rng *rand.Rand, op m.Operator, target, donor *m.Template) (*m.Template, error)
}

type mutator struct {
	adapter.JSSyntaxAdapter
	fragments []*m.Template
}

// NewMutator builds a Mutator. The fragment library is extracted up front.
func NewMutator(syntax adapter.JSSyntaxAdapter, extractor Extractor) (Mutator, error) {
	mu := &mutator{JSSyntaxAdapter: syntax}

	for _, src := range fragmentLibrary {
		tpl, err := extractor.Fragment(src)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", src, err)
		}

		mu.fragments = append(mu.fragments, tpl)
	}

	return mu, nil
}

func (mu *mutator) Mutate(rng *rand.Rand, op m.Operator, target, donor *m.Template) (*m.Template, error) {
	out := target.Clone()

	var err error

	switch op {
	case m.OpInsertion:
		err = mu.insert(rng, out, donor)
	case m.OpDeletion:
		err = mu.delete(rng, out)
	case m.OpSubstitution:
		err = mu.substitute(rng, out, donor)
	case m.OpFusion:
		if donor == nil {
			donor = target
		}

		err = mu.fuse(rng, out, donor)
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrMutationRejected, op)
	}

	if err != nil {
		return nil, err
	}

	out.Reindex()

	if err := mu.Validate(out.Render(m.CanonicalFill)); err != nil {
		return nil, fmt.Errorf("%w: %s produced invalid template: %w", ErrMutationRejected, op, err)
	}

	return out, nil
}

func rejectf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMutationRejected, fmt.Sprintf(format, args...))
}

func (mu *mutator) insert(rng *rand.Rand, out, donor *m.Template) error {
	site, index := pickSite(rng, out)

	if donor != nil && rng.IntN(3) != 0 {
		if units := portableUnits(donor, donor.Units()); len(units) > 0 {
			unit := units[rng.IntN(len(units))]
			graft(out, site, index, donor, []*m.Node{unit})

			return nil
		}
	}

	frag := mu.fragments[rng.IntN(len(mu.fragments))]
	graft(out, site, index, frag, frag.TopLevelUnits())

	return nil
}

func (mu *mutator) delete(rng *rand.Rand, out *m.Template) error {
	units := out.Units()
	if len(units) == 0 {
		return rejectf("deletion: no statement units")
	}

	unit := units[rng.IntN(len(units))]
	container := unit.Parent
	graph := Analyze(out)

	removed := map[*m.Node]bool{unit: true}
	queue := []*m.Node{unit}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		lo, hi := graph.Span(r)
		for _, use := range graph.DependentUses(lo, hi) {
			for _, sib := range container.Children {
				if sib.Kind != m.NodeStatement || removed[sib] {
					continue
				}

				if slo, shi := graph.Span(sib); use >= slo && use < shi {
					removed[sib] = true
					queue = append(queue, sib)
				}
			}
		}
	}

	container.Children = slices.DeleteFunc(container.Children, func(n *m.Node) bool { return removed[n] })

	if !slices.ContainsFunc(out.Root.Children, func(n *m.Node) bool { return n.Kind == m.NodeStatement }) {
		return rejectf("deletion would empty the program")
	}

	return nil
}

func (mu *mutator) substitute(rng *rand.Rand, out, donor *m.Template) error {
	swaps := []func() bool{
		func() bool { return mu.swapExpression(rng, out, donor) },
		func() bool { return mu.swapStatement(rng, out, donor) },
	}

	if rng.IntN(2) == 1 {
		swaps[0], swaps[1] = swaps[1], swaps[0]
	}

	for _, swap := range swaps {
		if swap() {
			return nil
		}
	}

	return rejectf("substitution: no compatible site")
}

// swapExpression replaces the seed of one expression placeholder with the
// original text of another.
func (mu *mutator) swapExpression(rng *rand.Rand, out, donor *m.Template) bool {
	source := donor
	if source == nil {
		source = out
	}

	var targets, pool []*m.Node

	for _, n := range out.Placeholders {
		if n.Hole.Type == m.PlaceholderExpression {
			targets = append(targets, n)
		}
	}

	for _, n := range source.Placeholders {
		if n.Hole.Type == m.PlaceholderExpression {
			pool = append(pool, n)
		}
	}

	if len(targets) == 0 || len(pool) == 0 {
		return false
	}

	t := targets[rng.IntN(len(targets))]

	var choices []string

	for _, n := range pool {
		if n.Hole.Original != t.Hole.Seed {
			choices = append(choices, n.Hole.Original)
		}
	}

	if len(choices) == 0 {
		return false
	}

	t.Hole.Seed = choices[rng.IntN(len(choices))]

	return true
}

// swapStatement replaces a unit nobody depends on with a donor unit.
func (mu *mutator) swapStatement(rng *rand.Rand, out, donor *m.Template) bool {
	graph := Analyze(out)

	var free []*m.Node

	for _, u := range out.Units() {
		if !graph.HasDependents(u) {
			free = append(free, u)
		}
	}

	if len(free) == 0 {
		return false
	}

	victim := free[rng.IntN(len(free))]
	container := victim.Parent
	index := slices.Index(container.Children, victim)

	source := donor
	var nodes []*m.Node

	if source != nil {
		if units := portableUnits(source, source.Units()); len(units) > 0 {
			nodes = []*m.Node{units[rng.IntN(len(units))]}
		}
	}

	if nodes == nil {
		source = mu.fragments[rng.IntN(len(mu.fragments))]
		nodes = source.TopLevelUnits()
	}

	container.Children = slices.Delete(container.Children, index, index+1)
	graft(out, container, index, source, nodes)

	return true
}

func (mu *mutator) fuse(rng *rand.Rand, out, donor *m.Template) error {
	units := donor.TopLevelUnits()
	if len(units) == 0 {
		return rejectf("fusion: donor has no statements")
	}

	i := rng.IntN(len(units))
	j := i + 1 + rng.IntN(min(len(units)-i, maxFusedUnits))

	if len(portableUnits(donor, units[i:j])) != j-i {
		return rejectf("fusion: donor slice jumps out of its statements")
	}

	site, index := pickSite(rng, out)
	graft(out, site, index, donor, units[i:j])

	return nil
}

// portableUnits keeps the units that can be moved to another statement
// list: they must not return, break or continue past their own end, nor use
// yield, await or super outside a function of their own.
func portableUnits(tpl *m.Template, units []*m.Node) []*m.Node {
	var out []*m.Node

	for _, u := range units {
		if portable(tpl, u, false) {
			out = append(out, u)
		}
	}

	return out
}

func portable(tpl *m.Template, n *m.Node, loop bool) bool {
	switch n.Kind {
	case m.NodeBlock:
		if n.Scope >= 0 && int(n.Scope) < len(tpl.Scopes) && tpl.Scopes[n.Scope].Kind == m.ScopeFunction {
			return true
		}
	case m.NodeStatement:
		if len(n.Children) > 0 {
			switch n.Children[0].Text {
			case "for", "while", "do", "switch":
				loop = true
			}
		}
	case m.NodeToken, m.NodeIdentifier:
		switch n.Text {
		case "return", "yield", "await", "super":
			return false
		case "break", "continue":
			return loop
		}
	case m.NodeProgram, m.NodePlaceholder:
	}

	for _, c := range n.Children {
		if !portable(tpl, c, loop) {
			return false
		}
	}

	return true
}

// pickSite chooses a container and a statement position before its
// trailing hole.
func pickSite(rng *rand.Rand, out *m.Template) (*m.Node, int) {
	containers := out.Containers()
	site := containers[rng.IntN(len(containers))]

	return site, rng.IntN(len(site.Children))
}

// graft copies sibling nodes from donor into site at index. Names the donor
// declares that clash with names in out are renamed, and donor scopes are
// re-created under the site's scope.
func graft(out *m.Template, site *m.Node, index int, donor *m.Template, nodes []*m.Node) {
	if len(nodes) == 0 {
		return
	}

	clones := make([]*m.Node, len(nodes))
	for i, n := range nodes {
		clones[i] = m.CloneNode(n)
	}

	rename(out, donor, clones)

	scopes := map[m.ScopeID]m.ScopeID{nodes[0].Scope: site.Scope}

	var remap func(s m.ScopeID) m.ScopeID

	remap = func(s m.ScopeID) m.ScopeID {
		if mapped, ok := scopes[s]; ok {
			return mapped
		}

		parent := donor.Scopes[s].Parent
		if parent == m.NoScope {
			scopes[s] = site.Scope
			return site.Scope
		}

		mapped := out.NewScope(remap(parent), donor.Scopes[s].Kind)
		scopes[s] = mapped

		return mapped
	}

	for _, c := range clones {
		m.Walk(c, func(n *m.Node) bool {
			n.Scope = remap(n.Scope)
			if n.Hole != nil {
				n.Hole.Bias = nil
			}

			return true
		})
	}

	index = min(index, len(site.Children))
	site.Children = slices.Insert(site.Children, index, clones...)
}

// rename gives fresh names to bindings declared in clones whose spelling is
// already used in out.
func rename(out, donor *m.Template, clones []*m.Node) {
	taken := out.Names()
	used := out.Names()

	for name := range donor.Names() {
		used[name] = struct{}{}
	}

	mapping := make(map[string]string)

	for _, c := range clones {
		m.Walk(c, func(n *m.Node) bool {
			if n.Kind != m.NodeIdentifier || n.Decl == m.DeclNone {
				return true
			}

			if _, clash := taken[n.Text]; clash {
				if _, done := mapping[n.Text]; !done {
					mapping[n.Text] = m.FreshName(used)
				}
			}

			return true
		})
	}

	if len(mapping) == 0 {
		return
	}

	for _, c := range clones {
		m.Walk(c, func(n *m.Node) bool {
			switch {
			case n.Kind == m.NodeIdentifier && n.Decl != m.DeclNone:
				if to, ok := mapping[n.Text]; ok {
					n.Text = to
				}
			case n.Kind == m.NodePlaceholder && n.Hole.Type == m.PlaceholderIdentifier:
				if to, ok := mapping[n.Hole.Binding]; ok {
					n.Hole.Binding = to
					n.Hole.Original = to
					n.Text = to
				}
			}

			return true
		})
	}
}
