package domain

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"templar.dev/pkg/templar/internal/adapter"
	m "templar.dev/pkg/templar/internal/model"
)

const richSeed = `var total = 0;
let items = [1, 2, 3];
function add(a, b) {
  return a + b;
}
for (let i = 0; i < items.length; i++) {
  total = add(total, items[i]);
}
if (total > 5) {
  items.push(total);
}
const label = "sum";
print(label, total);
`

func newTestSyntax() adapter.JSSyntaxAdapter {
	return adapter.NewLocalJSSyntaxAdapter()
}

func newTestExtractor() Extractor {
	return NewExtractor(newTestSyntax())
}

func mustExtract(t *testing.T, src string) *m.Template {
	t.Helper()

	tpl, err := newTestExtractor().Extract("test", src)
	require.NoError(t, err)

	return tpl
}

// fakeRun stands in for an engine: programs containing HANG time out,
// programs containing CRASH abort, everything else scores one edge per
// semicolon.
func fakeRun(source string) m.Execution {
	switch {
	case strings.Contains(source, "HANG"):
		return m.Execution{Status: m.StatusTimeout, ExitCode: -1}
	case strings.Contains(source, "CRASH"):
		return m.Execution{
			Status:   m.StatusCrash,
			ExitCode: 134,
			Stderr:   "abort: CRASH reached\n#0 0x55d1c0 in Runtime_Abort\n",
		}
	}

	score := m.Score(strings.Count(source, ";"))

	return m.Execution{Status: m.StatusOK, Score: score, HasScore: true, Stdout: fmt.Sprintf("edges:%d\n", score)}
}

type fakeExecutor struct {
	calls atomic.Int64
}

func (f *fakeExecutor) Execute(ctx context.Context, source string) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	f.calls.Add(1)

	return fakeRun(source), nil
}

type fakeRunner struct {
	calls atomic.Int64
}

func (f *fakeRunner) Run(ctx context.Context, _ m.EngineSpec, source string) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	f.calls.Add(1)

	return fakeRun(source), nil
}

func (f *fakeRunner) Validate(m.EngineSpec) error {
	return nil
}
