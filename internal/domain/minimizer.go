package domain

import (
	"context"
	"strings"

	"templar.dev/pkg/templar/internal/adapter"
	m "templar.dev/pkg/templar/internal/model"
)

// Predicate decides whether a candidate source still shows the behaviour
// being preserved.
type Predicate func(ctx context.Context, source string) (bool, error)

// Minimizer reduces programs while a predicate keeps holding.
type Minimizer interface {
	// Minimize returns a smaller program satisfying pred, or p itself when
	// nothing could be removed. budget caps predicate evaluations; 0 means
	// unbounded.
	Minimize(ctx context.Context, p m.Program, pred Predicate, budget int) (m.Program, m.MinimizeStats, error)
}

type minimizer struct {
	adapter.JSSyntaxAdapter
	extractor Extractor
}

// NewMinimizer reduces by statement units when the program parses and by
// lines otherwise.
func NewMinimizer(syntax adapter.JSSyntaxAdapter, extractor Extractor) Minimizer {
	return &minimizer{JSSyntaxAdapter: syntax, extractor: extractor}
}

// SignaturePredicate holds while the program crashes with signature sig.
func SignaturePredicate(exec Executor, sig m.Signature) Predicate {
	return func(ctx context.Context, source string) (bool, error) {
		execution, err := exec.Execute(ctx, source)
		if err != nil {
			return false, err
		}

		if execution.Status != m.StatusCrash {
			return false, nil
		}

		return CrashSignature(execution, NormalizeCrash(execution.Stderr, execution.InputPath)) == sig, nil
	}
}

// CoveragePredicate holds while the program scores at least threshold
// without timing out.
func CoveragePredicate(exec Executor, threshold m.Score) Predicate {
	return func(ctx context.Context, source string) (bool, error) {
		execution, err := exec.Execute(ctx, source)
		if err != nil {
			return false, err
		}

		return execution.Status != m.StatusTimeout && execution.HasScore && execution.Score >= threshold, nil
	}
}

// reduction is a flat list of removable units. parent[i] is the nearest
// enclosing unit of i, or -1.
type reduction struct {
	parent []int
	render func(removed []bool) string
	// checked reports whether a rendering must pass the syntax oracle.
	checked bool
}

func (r *reduction) live(removed []bool, i int) bool {
	for ; i >= 0; i = r.parent[i] {
		if removed[i] {
			return false
		}
	}

	return true
}

func (r *reduction) liveUnits(removed []bool) []int {
	var out []int

	for i := range r.parent {
		if r.live(removed, i) {
			out = append(out, i)
		}
	}

	return out
}

func (mz *minimizer) Minimize(ctx context.Context, p m.Program, pred Predicate, budget int) (m.Program, m.MinimizeStats, error) {
	red := mz.reductionFor(p)
	removed := make([]bool, len(red.parent))

	stats := m.MinimizeStats{OriginalUnits: len(red.parent)}
	reducedAny := false

	for {
		stats.Passes++

		changed, err := mz.pass(ctx, red, removed, pred, budget, &stats)
		if err != nil {
			return p, stats, err
		}

		reducedAny = reducedAny || changed

		if !changed || stats.BudgetExhausted {
			break
		}
	}

	stats.FinalUnits = len(red.liveUnits(removed))

	if !reducedAny {
		stats.FinalUnits = stats.OriginalUnits
		return p, stats, nil
	}

	stats.Reduced = true
	out := m.NewProgram(red.render(removed), p.ParentID, p.Operator, p.TemplateID)

	return out, stats, nil
}

// pass runs one delta-debugging sweep and reports whether anything was
// removed.
func (mz *minimizer) pass(ctx context.Context, red *reduction, removed []bool, pred Predicate, budget int, stats *m.MinimizeStats) (bool, error) {
	changed := false
	live := red.liveUnits(removed)
	n := 2

	for len(live) > 0 {
		n = min(n, len(live))
		chunk := (len(live) + n - 1) / n
		progressed := false

		for start := 0; start < len(live); start += chunk {
			if err := ctx.Err(); err != nil {
				return changed, err
			}

			trial := append([]bool(nil), removed...)
			for _, i := range live[start:min(start+chunk, len(live))] {
				trial[i] = true
			}

			src := red.render(trial)
			if red.checked && mz.Validate(src) != nil {
				stats.Skipped++
				continue
			}

			if budget > 0 && stats.Attempts >= budget {
				stats.BudgetExhausted = true
				return changed, nil
			}

			stats.Attempts++

			ok, err := pred(ctx, src)
			if err != nil {
				return changed, err
			}

			if ok {
				copy(removed, trial)

				progressed, changed = true, true

				break
			}
		}

		if progressed {
			live = red.liveUnits(removed)
			n = max(n-1, 2)

			continue
		}

		if chunk == 1 {
			break
		}

		n *= 2
	}

	return changed, nil
}

func (mz *minimizer) reductionFor(p m.Program) *reduction {
	tpl, err := mz.extractor.Extract(p.ID, p.Source)
	if err == nil {
		return templateReduction(tpl)
	}

	return lineReduction(p.Source)
}

func templateReduction(tpl *m.Template) *reduction {
	units := tpl.Units()
	index := make(map[*m.Node]int, len(units))

	for i, u := range units {
		index[u] = i
	}

	parent := make([]int, len(units))

	for i, u := range units {
		parent[i] = -1

		for a := u.Parent; a != nil; a = a.Parent {
			if j, ok := index[a]; ok {
				parent[i] = j
				break
			}
		}
	}

	return &reduction{
		parent:  parent,
		checked: true,
		render: func(removed []bool) string {
			skip := make(map[*m.Node]bool)

			for i, gone := range removed {
				if gone {
					skip[units[i]] = true
				}
			}

			return tpl.RenderPruned(skip, m.OriginalFill)
		},
	}
}

func lineReduction(source string) *reduction {
	lines := strings.SplitAfter(source, "\n")
	parent := make([]int, len(lines))

	for i := range parent {
		parent[i] = -1
	}

	return &reduction{
		parent: parent,
		render: func(removed []bool) string {
			var b strings.Builder

			for i, line := range lines {
				if !removed[i] {
					b.WriteString(line)
				}
			}

			return b.String()
		},
	}
}

// BudgetError returns ErrMinimizationBudgetExhausted for a partial result.
func BudgetError(stats m.MinimizeStats) error {
	if stats.BudgetExhausted {
		return ErrMinimizationBudgetExhausted
	}

	return nil
}
