package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	m "templar.dev/pkg/templar/internal/model"
)

const recentCrashes = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	crashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boringStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer
	input  io.Reader

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI reading keys from stdin when output is a terminal.
func NewTUI(output io.Writer) *TUI {
	t := &TUI{output: output}

	if _, _, ok := terminalSize(output); ok {
		t.input = os.Stdin
	}

	return t
}

// Start launches the live view in fuzz mode. List mode renders on demand.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := newStartConfig(options)
	if cfg.mode != ModeFuzz {
		return nil
	}

	model := newFuzzModel(cfg.total, cfg.interrupt)
	if width, _, ok := terminalSize(t.output); ok {
		model.setWidth(width)
	}

	program := tea.NewProgram(model, tea.WithOutput(t.output), tea.WithInput(t.input))
	done := make(chan struct{})

	t.mu.Lock()
	t.program = program
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil {
			_, _ = fmt.Fprintf(t.output, "tui: %v\n", err)
		}
	}()

	return nil
}

// Close stops the live view if it is still running.
func (t *TUI) Close(_ context.Context) {
	t.mu.Lock()
	program, done := t.program, t.done
	t.program, t.done = nil, nil
	t.mu.Unlock()

	if program == nil {
		return
	}

	program.Quit()
	<-done
}

// Wait blocks until the live view has exited.
func (t *TUI) Wait(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

// DisplaySeeds shows the seed table, paginated when it does not fit.
func (t *TUI) DisplaySeeds(ctx context.Context, seeds []m.SeedSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.page(header("Seeds") + renderSeedTable(seeds))
}

// DisplayRunInfo updates the live view header.
func (t *TUI) DisplayRunInfo(_ context.Context, info RunInfo) {
	t.send(infoMsg(info))
}

// DisplayProgress updates the live counters.
func (t *TUI) DisplayProgress(_ context.Context, p Progress) {
	t.send(progressMsg(p))
}

// DisplayNewCrash adds a crash class to the recent list.
func (t *TUI) DisplayNewCrash(_ context.Context, record m.CrashRecord) {
	t.send(crashMsg(record))
}

// DisplayStats shows the final summary and ends the live view.
func (t *TUI) DisplayStats(ctx context.Context, stats m.RunStats) {
	t.mu.Lock()
	running := t.program != nil
	t.mu.Unlock()

	if running {
		t.send(statsMsg(stats))
		return
	}

	if ctx.Err() == nil {
		_, _ = fmt.Fprint(t.output, header("Run summary")+renderStatsTable(stats))
	}
}

// DisplayCrashes shows the crash table, paginated when it does not fit.
func (t *TUI) DisplayCrashes(ctx context.Context, crashes []m.CrashArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(crashes) == 0 {
		_, err := fmt.Fprint(t.output, header("Crashes")+mutedStyle.Render("  No crashes recorded")+"\n")
		return err
	}

	return t.page(header("Crashes") + renderCrashTable(crashes))
}

// DisplayMinimized prints the minimization summary and a colored diff.
func (t *TUI) DisplayMinimized(ctx context.Context, result MinimizeResult) {
	if ctx.Err() != nil {
		return
	}

	var b strings.Builder

	b.WriteString(header("Minimize " + string(result.Input)))

	if !result.Stats.Reduced {
		fmt.Fprintf(&b, "  nothing to remove after %d attempt(s)\n", result.Stats.Attempts)
		_, _ = fmt.Fprint(t.output, b.String())

		return
	}

	fmt.Fprintf(&b, "  %s %d -> %d unit(s), %d attempt(s), %d pass(es)\n",
		goodStyle.Render(string(result.Mode)), result.Stats.OriginalUnits, result.Stats.FinalUnits,
		result.Stats.Attempts, result.Stats.Passes)

	if result.Stats.BudgetExhausted {
		b.WriteString("  " + boringStyle.Render("attempt budget exhausted, result is partial") + "\n")
	}

	fmt.Fprintf(&b, "  wrote %s\n\n", result.Output)

	for _, line := range strings.SplitAfter(result.Diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(titleStyle.Render(strings.TrimSuffix(line, "\n")) + "\n")
		case strings.HasPrefix(line, "+"):
			b.WriteString(goodStyle.Render(strings.TrimSuffix(line, "\n")) + "\n")
		case strings.HasPrefix(line, "-"):
			b.WriteString(crashStyle.Render(strings.TrimSuffix(line, "\n")) + "\n")
		default:
			b.WriteString(line)
		}
	}

	_, _ = fmt.Fprint(t.output, b.String())
}

// DisplayMerged prints the merge summary.
func (t *TUI) DisplayMerged(ctx context.Context, result MergeResult) {
	if ctx.Err() != nil {
		return
	}

	_, _ = fmt.Fprintf(t.output, "%s  %d director(ies) -> %s\n  %d crash class(es), %d corpus program(s), best score %d\n",
		header("Merge"), len(result.Inputs), result.Output, result.Crashes, result.Corpus, result.Best)
}

// page prints content, or opens a scrollable view when it is taller than
// the terminal.
func (t *TUI) page(content string) error {
	model := newPagerModel(content)
	if width, height, ok := terminalSize(t.output); ok {
		model.width, model.height = width, height
	}

	if !model.needsPagination() {
		_, err := fmt.Fprint(t.output, content)
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(t.output), tea.WithInput(t.input), tea.WithAltScreen())
	_, err := program.Run()

	return err
}

func header(title string) string {
	return titleStyle.Render("templar · "+title) + "\n\n"
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}

	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}

	return runewidth.Truncate(value, width, "...")
}

type (
	infoMsg     RunInfo
	progressMsg Progress
	crashMsg    m.CrashRecord
	statsMsg    m.RunStats
)

// fuzzModel renders live fuzzing progress.
type fuzzModel struct {
	spinner   spinner.Model
	prog      progress.Model
	info      RunInfo
	progress  Progress
	crashes   []m.CrashRecord
	stats     *m.RunStats
	width     int
	total     uint64
	interrupt context.CancelFunc
	stopping  bool
}

func newFuzzModel(total uint64, interrupt context.CancelFunc) fuzzModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return fuzzModel{
		spinner:   sp,
		prog:      prog,
		width:     80,
		total:     total,
		interrupt: interrupt,
		progress:  Progress{Total: total},
	}
}

func (fm *fuzzModel) setWidth(width int) {
	if width > 0 {
		fm.width = width
		fm.prog.Width = max(width-4, 10)
	}
}

func (fm fuzzModel) Init() tea.Cmd {
	return fm.spinner.Tick
}

func (fm fuzzModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case infoMsg:
		fm.info = RunInfo(msg)
		return fm, nil

	case progressMsg:
		fm.progress = Progress(msg)
		if fm.total > 0 {
			return fm, fm.prog.SetPercent(float64(min(fm.progress.Done, fm.total)) / float64(fm.total))
		}

		return fm, nil

	case crashMsg:
		fm.crashes = append(fm.crashes, m.CrashRecord(msg))
		if len(fm.crashes) > recentCrashes {
			fm.crashes = fm.crashes[len(fm.crashes)-recentCrashes:]
		}

		return fm, nil

	case statsMsg:
		stats := m.RunStats(msg)
		fm.stats = &stats

		return fm, tea.Quit

	case tea.KeyMsg:
		return fm.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		fm.setWidth(msg.Width)
		return fm, nil

	case spinner.TickMsg:
		if fm.stats != nil {
			return fm, nil
		}

		var cmd tea.Cmd
		fm.spinner, cmd = fm.spinner.Update(msg)

		return fm, cmd

	case progress.FrameMsg:
		model, cmd := fm.prog.Update(msg)
		fm.prog = model.(progress.Model)

		return fm, cmd
	}

	return fm, nil
}

func (fm fuzzModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if fm.interrupt == nil {
			return fm, tea.Quit
		}

		if !fm.stopping {
			fm.stopping = true
			fm.interrupt()
		}
	}

	return fm, nil
}

func (fm fuzzModel) View() string {
	var b strings.Builder

	title := "fuzzing"
	if fm.info.RunID != "" {
		title = "fuzzing run " + fm.info.RunID
	}

	switch {
	case fm.stats != nil:
		b.WriteString(titleStyle.Render("done: "+title) + "\n\n")
		b.WriteString(renderStatsTable(*fm.stats))

		return b.String()
	case fm.stopping:
		b.WriteString(titleStyle.Render(fm.spinner.View()+" stopping: "+title) + "\n\n")
	default:
		b.WriteString(titleStyle.Render(fm.spinner.View()+" "+title) + "\n\n")
	}

	if fm.info.Engine != "" {
		b.WriteString(mutedStyle.Render(truncate(fmt.Sprintf("  engine %s, %d seed(s), %d worker(s), seed %d",
			fm.info.Engine, fm.info.Seeds, fm.info.Workers, fm.info.Seed), fm.width)) + "\n\n")
	}

	p := fm.progress
	done := fmt.Sprintf("%d", p.Done)
	if fm.total > 0 {
		done = fmt.Sprintf("%d/%d", p.Done, fm.total)
	}

	fmt.Fprintf(&b, "  iterations %s   elapsed %s\n", done, p.Elapsed.Truncate(time.Second))
	fmt.Fprintf(&b, "  best score %s   corpus %d\n", goodStyle.Render(fmt.Sprintf("%d", p.Best)), p.Corpus)
	fmt.Fprintf(&b, "  crashes %s   timeouts %d   rejected %d\n",
		crashStyle.Render(fmt.Sprintf("%d", p.Crashes)), p.Timeouts, p.Rejections)

	if len(fm.crashes) > 0 {
		b.WriteString("\n  recent crash classes:\n")

		for _, c := range fm.crashes {
			style := crashStyle
			if c.Boring {
				style = boringStyle
			}

			line := fmt.Sprintf("%s %s", c.Signature.Short(), c.Title())
			b.WriteString("    " + style.Render(truncate(line, max(fm.width-4, 20))) + "\n")
		}
	}

	if fm.total > 0 {
		b.WriteString("\n" + fm.prog.View() + "\n")
	}

	b.WriteString("\n" + mutedStyle.Render("  q: stop") + "\n")

	return b.String()
}

// pagerModel scrolls through pre-rendered content.
type pagerModel struct {
	lines  []string
	height int
	width  int
	offset int
}

func newPagerModel(content string) pagerModel {
	return pagerModel{lines: strings.Split(strings.TrimRight(content, "\n"), "\n")}
}

func (pm pagerModel) Init() tea.Cmd {
	return nil
}

func (pm pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pm.height = msg.Height
		pm.width = msg.Width
		pm.offset = min(pm.offset, pm.maxOffset())

		return pm, nil

	case tea.KeyMsg:
		return pm.handleKeyPress(msg)
	}

	return pm, nil
}

//nolint:cyclop // Key handling requires multiple cases for UI navigation
func (pm pagerModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return pm, tea.Quit
	case "down", "j":
		pm.offset = min(pm.offset+1, pm.maxOffset())
	case "up", "k":
		pm.offset = max(pm.offset-1, 0)
	case "g", "home":
		pm.offset = 0
	case "G", "end":
		pm.offset = pm.maxOffset()
	case "d", "pgdown":
		pm.offset = min(pm.offset+pm.linesPerPage(), pm.maxOffset())
	case "u", "pgup":
		pm.offset = max(pm.offset-pm.linesPerPage(), 0)
	}

	return pm, nil
}

// linesPerPage leaves two lines for the footer.
func (pm pagerModel) linesPerPage() int {
	if pm.height == 0 {
		return 10
	}

	return max(pm.height-2, 1)
}

func (pm pagerModel) maxOffset() int {
	return max(len(pm.lines)-pm.linesPerPage(), 0)
}

func (pm pagerModel) needsPagination() bool {
	return pm.height > 0 && len(pm.lines) > pm.linesPerPage()
}

func (pm pagerModel) View() string {
	if !pm.needsPagination() {
		return strings.Join(pm.lines, "\n") + "\n"
	}

	perPage := pm.linesPerPage()
	end := min(pm.offset+perPage, len(pm.lines))

	var b strings.Builder

	b.WriteString(strings.Join(pm.lines[pm.offset:end], "\n"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("lines %d-%d of %d | ↑/k ↓/j g/G d/u | q: quit",
		pm.offset+1, end, len(pm.lines))))

	return b.String()
}
