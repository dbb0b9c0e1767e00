package domain

import (
	m "templar.dev/pkg/templar/internal/model"
	pkg "templar.dev/pkg/templar/pkg"
)

// SummarizeJournal folds the iteration journal into stats. Corpus-level
// fields (best score, size) and timestamps are left to the caller.
func SummarizeJournal(journal pkg.FileSpill[m.IterationRecord], stats *m.RunStats) error {
	return journal.Range(func(_ uint64, rec m.IterationRecord) error {
		stats.Iterations++

		for _, op := range rec.RejectedOps {
			if stats.RejectionsByOp == nil {
				stats.RejectionsByOp = make(map[m.Operator]uint64)
			}

			stats.RejectionsByOp[op]++
			stats.Rejections++
		}

		stats.Executions++

		switch rec.Status {
		case m.StatusTimeout:
			stats.Timeouts++
		case m.StatusCrash:
			stats.Crashes++

			if rec.NewCrash {
				stats.UniqueCrashes++
			}

			if rec.Boring {
				stats.BoringCrashes++
			}

			if rec.SyntaxError {
				stats.SyntaxErrors++
			}
		case m.StatusOK:
			// Normal runs only matter through their score.
		}

		if rec.Status != m.StatusTimeout && !rec.HasScore {
			stats.ScoreUnavailable++
		}

		if rec.Admitted {
			stats.Admitted++
		}

		if rec.Attempts > 0 {
			stats.MinimizeAttempts += uint64(rec.Attempts)
		}

		if rec.Exhausted {
			stats.BudgetExhausted++
		}

		return nil
	})
}
