// Package tui prints run summaries for humans at a terminal.
// Simple, streaming output; machine consumers read the logs instead.
package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/pmdiscover/pkg/discovery"
	"github.com/logflow/pmdiscover/pkg/job"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	warning = lipgloss.Color("#FFAA00")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// PrintHeader prints the tool banner.
func PrintHeader(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  PMDISCOVER")+mutedStyle.Render(" v"+version))
	fmt.Fprintln(w, mutedStyle.Render("  Spot-to-invoice process model discovery"))
	fmt.Fprintln(w)
}

// PrintSummary prints the outcome of a discovery run.
func PrintSummary(w io.Writer, r *job.Report) {
	fmt.Fprintln(w)
	switch r.Status {
	case job.StatusCompleted:
		fmt.Fprintln(w, successStyle.Render("  ✓ MODEL PUBLISHED"))
	case job.StatusDegraded:
		fmt.Fprintln(w, warningStyle.Render("  ! MODEL PUBLISHED WITH WARNINGS"))
	case job.StatusSkippedEmpty:
		fmt.Fprintln(w, mutedStyle.Render("  ○ NO EVENTS IN WINDOW, NOTHING PUBLISHED"))
	}
	fmt.Fprintln(w)

	row(w, "Run:", r.RunID)
	row(w, "Events:", fmt.Sprintf("%s in %s cases", formatNumber(int64(r.Rows)), formatNumber(int64(r.Cases))))
	if r.Dropped > 0 {
		row(w, "Dropped:", formatNumber(int64(r.Dropped)))
	}
	if r.Status != job.StatusSkippedEmpty {
		row(w, "Tasks:", fmt.Sprintf("%d (%s)", r.Tasks, r.Path))
	}
	row(w, "Time:", formatDuration(r.Duration))

	if len(r.URIs) > 0 {
		fmt.Fprintln(w)
		for _, uri := range r.URIs {
			fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("→"), codeStyle.Render(uri))
		}
	}
	for _, p := range r.LocalPaths {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("⤓"), codeStyle.Render(p))
	}

	for _, e := range []error{r.PNGErr, r.MirrorErr, r.SnapshotErr} {
		if e != nil {
			fmt.Fprintf(w, "  %s %s\n", accentStyle.Render("✗"), mutedStyle.Render(e.Error()))
		}
	}
	fmt.Fprintln(w)
}

// PrintDFG prints a directly-follows report as a table.
func PrintDFG(w io.Writer, r *discovery.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render("▸ DIRECTLY-FOLLOWS"))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  last %d days, min freq %d, top %d", r.Meta.SinceDays, r.Meta.MinFreq, r.Meta.Limit)))
	fmt.Fprintln(w)

	if len(r.Edges) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no edges"))
		fmt.Fprintln(w)
		return
	}

	fromWidth := len("FROM")
	for _, e := range r.Edges {
		if len(e.From) > fromWidth {
			fromWidth = len(e.From)
		}
	}
	col := lipgloss.NewStyle().Width(fromWidth + 2)

	fmt.Fprintf(w, "  %s%s\n", col.Render(mutedStyle.Render("FROM")), mutedStyle.Render("TO  FREQ  P50"))
	for _, e := range r.Edges {
		fmt.Fprintf(w, "  %s%s  %s  %s\n",
			col.Render(e.From),
			titleStyle.Render(e.To),
			formatNumber(e.Freq),
			mutedStyle.Render(formatMinutes(e.P50Min)))
	}
	fmt.Fprintln(w)
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(label), titleStyle.Render(value))
}

// Progress shows a spinner naming the current stage of a run.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a spinner writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

// Stage advances the spinner and relabels it.
func (p *Progress) Stage(name string) {
	p.bar.Describe("  " + name)
	_ = p.bar.Add(1)
}

// Done clears the spinner.
func (p *Progress) Done() {
	_ = p.bar.Finish()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatMinutes(m int64) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	if m < 24*60 {
		return fmt.Sprintf("%dh%02dm", m/60, m%60)
	}
	return fmt.Sprintf("%dd%dh", m/(24*60), (m%(24*60))/60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
