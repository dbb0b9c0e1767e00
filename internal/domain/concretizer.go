package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"

	m "templar.dev/pkg/templar/internal/model"
)

// Concretizer fills every placeholder of a template to produce source text.
type Concretizer interface {
	// Concretize renders tpl with randomized fills drawn from rng. graph
	// must come from Analyze(tpl). Equal rng state yields equal output.
	Concretize(rng *rand.Rand, tpl *m.Template, graph *DataflowGraph) string
}

type concretizer struct {
	keepSeed float64
	maxDepth int
}

// NewConcretizer returns the default Concretizer.
func NewConcretizer() Concretizer {
	return &concretizer{keepSeed: 0.5, maxDepth: 2}
}

var boundaryNumbers = []string{
	"0", "-0", "1", "-1", "0.1", "-0.5", "1e308", "-1e308", "5e-324",
	"2147483647", "-2147483648", "4294967295", "4294967296",
	"1073741823", "1073741824", "9007199254740991", "9007199254740992",
	"0x7fffffff", "NaN", "Infinity", "-Infinity",
}

var interestingStrings = []string{
	`""`, `"a"`, `"0"`, `"-1"`, `"\u0000"`, `"\ud800"`, `"__proto__"`, `"length"`,
	`"constructor"`, `"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"`,
}

var atoms = []string{
	"null", "undefined", "true", "false", "this", "[]", "{}", "[1, 2, 3]", "[, 1]",
	"new Array(16)", "Symbol()", "10n", "/a|b/g", "function () {}", "() => 0",
	"{ valueOf() { return 1; } }", "new Proxy({}, {})",
}

var binaryOps = []string{
	"+", "-", "*", "/", "%", "|", "&", "^", "<<", ">>", ">>>",
	"<", ">", "<=", "==", "===", "!=", "&&", "||", "??", ",",
}

var unaryOps = []string{"- ", "!", "~", "typeof ", "void "}

// fill carries per-render state.
type fill struct {
	*concretizer
	rng     *rand.Rand
	graph   *DataflowGraph
	used    map[string]struct{}
	memo    map[memoKey]string
	prelude []string
}

type memoKey struct {
	scope   m.ScopeID
	binding string
}

func (c *concretizer) Concretize(rng *rand.Rand, tpl *m.Template, graph *DataflowGraph) string {
	f := &fill{
		concretizer: c,
		rng:         rng,
		graph:       graph,
		used:        tpl.Names(),
		memo:        make(map[memoKey]string),
	}

	// Pre-order resolution keeps the draw sequence independent of map order.
	texts := make(map[*m.Node]string, len(tpl.Placeholders))
	for _, n := range tpl.Placeholders {
		texts[n] = f.resolve(n)
	}

	src := tpl.Render(func(n *m.Node) string { return texts[n] })

	if len(f.prelude) == 0 {
		return src
	}

	decl := "var " + strings.Join(f.prelude, ", ") + ";\n"

	if strings.HasPrefix(src, "#!") {
		line, rest, _ := strings.Cut(src, "\n")
		return line + "\n" + decl + rest
	}

	return decl + src
}

func (f *fill) resolve(n *m.Node) string {
	switch n.Hole.Type {
	case m.PlaceholderIdentifier:
		return f.identifier(n)
	case m.PlaceholderExpression:
		return f.expression(n)
	case m.PlaceholderStatement:
		return "\n" + f.statement(n)
	}

	panic(fmt.Sprintf("concretize: unsupported placeholder type %s", n.Hole.Type))
}

func (f *fill) identifier(n *m.Node) string {
	key := memoKey{scope: n.Scope, binding: n.Hole.Binding}
	if name, ok := f.memo[key]; ok {
		return name
	}

	var name string
	if cands := f.graph.Candidates(n.Hole.ID); len(cands) > 0 {
		name = pick(f.rng, cands)
	} else {
		name = m.FreshName(f.used)
		f.prelude = append(f.prelude, name)
	}

	f.memo[key] = name

	return name
}

func (f *fill) expression(n *m.Node) string {
	if f.rng.Float64() < f.keepSeed {
		if n.Hole.Seed == n.Hole.Original {
			return n.Hole.Original
		}

		return "(" + n.Hole.Seed + ")"
	}

	return "(" + f.generate(f.graph.Visible(n), 0) + ")"
}

// generate builds a random expression from a small safe grammar.
func (f *fill) generate(visible []Candidate, depth int) string {
	choices := 5
	if depth < f.maxDepth {
		choices = 7
	}

	switch f.rng.IntN(choices) {
	case 0:
		return boundaryNumbers[f.rng.IntN(len(boundaryNumbers))]
	case 1:
		return interestingStrings[f.rng.IntN(len(interestingStrings))]
	case 2:
		return "(" + atoms[f.rng.IntN(len(atoms))] + ")"
	case 3, 4:
		if len(visible) > 0 {
			return pick(f.rng, visible)
		}

		return boundaryNumbers[f.rng.IntN(len(boundaryNumbers))]
	case 5:
		op := binaryOps[f.rng.IntN(len(binaryOps))]
		return "(" + f.generate(visible, depth+1) + " " + op + " " + f.generate(visible, depth+1) + ")"
	default:
		op := unaryOps[f.rng.IntN(len(unaryOps))]
		return "(" + op + f.generate(visible, depth+1) + ")"
	}
}

func (f *fill) statement(n *m.Node) string {
	visible := f.graph.Visible(n)

	switch f.rng.IntN(6) {
	case 0:
		return ";"
	case 1:
		if mutable := f.graph.Mutable(n); len(mutable) > 0 {
			return pick(f.rng, mutable) + " = (" + f.generate(visible, 0) + ");"
		}

		return "void (" + f.generate(visible, 0) + ");"
	case 2:
		callee := f.generate(visible, f.maxDepth)
		return "try { (" + callee + ")(); } catch (e) {}"
	case 3:
		return "void (" + f.generate(visible, 0) + ");"
	case 4:
		name := m.FreshName(f.used)
		return "{ let " + name + " = (" + f.generate(visible, 0) + "); }"
	default:
		return "if ((" + f.generate(visible, 0) + ")) { ; }"
	}
}

// pick draws a candidate with probability proportional to its weight.
func pick(rng *rand.Rand, cands []Candidate) string {
	total := 0.0
	for _, c := range cands {
		total += c.Weight
	}

	r := rng.Float64() * total
	for _, c := range cands {
		r -= c.Weight
		if r < 0 {
			return c.Name
		}
	}

	return cands[len(cands)-1].Name
}
