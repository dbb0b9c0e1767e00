package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "templar.dev/pkg/templar/internal/model"
)

var (
	crashLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
	boringLabel = color.New(color.FgYellow).SprintFunc()
	okLabel     = color.New(color.FgGreen).SprintFunc()
	faintLabel  = color.New(color.Faint).SprintFunc()
)

const maxTitleWidth = 60

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplaySeeds prints the extracted seeds as a table.
func (s *SimpleUI) DisplaySeeds(ctx context.Context, seeds []m.SeedSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderSeedTable(seeds))

	return nil
}

func renderSeedTable(seeds []m.SeedSummary) string {
	sorted := append([]m.SeedSummary(nil), seeds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Seed", "Units", "Identifiers", "Expressions", "Statements", "Status"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	usable := 0
	holes := 0

	for _, seed := range sorted {
		if seed.ParseFailure != "" {
			table.Append([]string{string(seed.Path), "-", "-", "-", "-", crashLabel("skipped: " + truncate(seed.ParseFailure, maxTitleWidth))})
			continue
		}

		usable++
		holes += seed.Identifiers + seed.Expressions + seed.Statements

		table.Append([]string{
			string(seed.Path),
			strconv.Itoa(seed.Units),
			strconv.Itoa(seed.Identifiers),
			strconv.Itoa(seed.Expressions),
			strconv.Itoa(seed.Statements),
			okLabel("ok"),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Seeds %d", len(sorted)),
		"", "", "",
		fmt.Sprintf("Holes %d", holes),
		fmt.Sprintf("Usable %d", usable),
	})

	table.Render()

	return tableBuffer.String()
}

// DisplayRunInfo prints the run parameters.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, info RunInfo) {
	if err := ctx.Err(); err != nil {
		return
	}

	iterations := "unbounded"
	if info.Iterations > 0 {
		iterations = strconv.FormatUint(info.Iterations, 10)
	}

	s.printf("Run %s: %d seed(s) (%d skipped), %d resumed, %d worker(s), %s iterations, seed %d, gate %t\n",
		info.RunID, info.Seeds, info.Skipped, info.Resumed, info.Workers, iterations, info.Seed, info.Gate)
	s.printf("Engine: %s\nOutput: %s\n", info.Engine, info.Output)
}

// DisplayProgress prints one progress line.
func (s *SimpleUI) DisplayProgress(ctx context.Context, progress Progress) {
	if err := ctx.Err(); err != nil {
		return
	}

	done := strconv.FormatUint(progress.Done, 10)
	if progress.Total > 0 {
		done = fmt.Sprintf("%d/%d", progress.Done, progress.Total)
	}

	s.printf("[%s] iterations %s, best %d, corpus %d, crashes %d, timeouts %d, rejected %d\n",
		progress.Elapsed.Truncate(time.Second), done, progress.Best, progress.Corpus,
		progress.Crashes, progress.Timeouts, progress.Rejections)
}

// DisplayNewCrash announces a new crash class.
func (s *SimpleUI) DisplayNewCrash(ctx context.Context, record m.CrashRecord) {
	if err := ctx.Err(); err != nil {
		return
	}

	label := crashLabel("new crash")
	if record.Boring {
		label = boringLabel("new boring crash")
	}

	s.printf("%s %s (%s): %s\n", label, record.Signature.Short(), exitLabel(record), truncate(record.Title(), maxTitleWidth))
}

// DisplayStats prints the final run summary.
func (s *SimpleUI) DisplayStats(ctx context.Context, stats m.RunStats) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("\n%s", renderStatsTable(stats))
}

func renderStatsTable(stats m.RunStats) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Run " + stats.RunID, "Value"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	rows := [][2]string{
		{"Iterations", strconv.FormatUint(stats.Iterations, 10)},
		{"Executions", strconv.FormatUint(stats.Executions, 10)},
		{"Admitted", strconv.FormatUint(stats.Admitted, 10)},
		{"Best score", strconv.FormatUint(uint64(stats.BestScore), 10)},
		{"Corpus size", strconv.Itoa(stats.CorpusSize)},
		{"Crashes", strconv.FormatUint(stats.Crashes, 10)},
		{"Unique crashes", strconv.FormatUint(stats.UniqueCrashes, 10)},
		{"Boring crashes", strconv.FormatUint(stats.BoringCrashes, 10)},
		{"Syntax errors", strconv.FormatUint(stats.SyntaxErrors, 10)},
		{"Timeouts", strconv.FormatUint(stats.Timeouts, 10)},
		{"Score unavailable", strconv.FormatUint(stats.ScoreUnavailable, 10)},
		{"Rejected mutations", strconv.FormatUint(stats.Rejections, 10)},
		{"Minimize attempts", strconv.FormatUint(stats.MinimizeAttempts, 10)},
		{"Budget exhausted", strconv.FormatUint(stats.BudgetExhausted, 10)},
	}

	for _, row := range rows {
		table.Append(row[:])
	}

	ops := make([]string, 0, len(stats.RejectionsByOp))
	for op := range stats.RejectionsByOp {
		ops = append(ops, string(op))
	}

	sort.Strings(ops)

	for _, op := range ops {
		table.Append([]string{"  rejected " + op, strconv.FormatUint(stats.RejectionsByOp[m.Operator(op)], 10)})
	}

	table.SetFooter([]string{"Duration", stats.Finished.Sub(stats.Started).Truncate(time.Millisecond).String()})
	table.Render()

	return tableBuffer.String()
}

// DisplayCrashes prints recorded crash classes, non-boring first.
func (s *SimpleUI) DisplayCrashes(ctx context.Context, crashes []m.CrashArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(crashes) == 0 {
		s.printf("No crashes recorded\n")
		return nil
	}

	s.printf("\n%s", renderCrashTable(crashes))

	return nil
}

func renderCrashTable(crashes []m.CrashArtifact) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Signature", "Kind", "Status", "Count", "First Seen", "Title"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	interesting := 0

	for _, c := range crashes {
		kind := crashLabel("interesting")
		if c.Record.Boring {
			kind = faintLabel("boring")
		} else {
			interesting++
		}

		table.Append([]string{
			c.Record.Signature.Short(),
			kind,
			exitLabel(c.Record),
			strconv.Itoa(c.Record.Count),
			c.Record.FirstSeen.Format(time.DateTime),
			truncate(c.Record.Title(), maxTitleWidth),
		})
	}

	table.SetFooter([]string{fmt.Sprintf("Classes %d", len(crashes)), fmt.Sprintf("Interesting %d", interesting), "", "", "", ""})
	table.Render()

	return tableBuffer.String()
}

// DisplayMinimized prints the minimization summary and diff.
func (s *SimpleUI) DisplayMinimized(ctx context.Context, result MinimizeResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	if !result.Stats.Reduced {
		s.printf("%s: nothing to remove after %d attempt(s)\n", result.Input, result.Stats.Attempts)
		return
	}

	s.printf("Minimized %s by %s: %d -> %d unit(s) in %d attempt(s), %d pass(es)\n",
		result.Input, result.Mode, result.Stats.OriginalUnits, result.Stats.FinalUnits,
		result.Stats.Attempts, result.Stats.Passes)

	if result.Stats.BudgetExhausted {
		s.printf("%s\n", boringLabel("attempt budget exhausted, result is partial"))
	}

	s.printf("Wrote %s\n", result.Output)

	if result.Diff != "" {
		s.printf("\n%s", result.Diff)
	}
}

// DisplayMerged prints the merge summary.
func (s *SimpleUI) DisplayMerged(ctx context.Context, result MergeResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Merged %d director(ies) into %s: %d crash class(es), %d corpus program(s), best score %d\n",
		len(result.Inputs), result.Output, result.Crashes, result.Corpus, result.Best)
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func exitLabel(record m.CrashRecord) string {
	if record.Signal != "" {
		return "signal " + record.Signal
	}

	return fmt.Sprintf("exit %d", record.ExitCode)
}
