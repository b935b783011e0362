// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/specialistvlad/stepgridgo/internal/history"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorError   = lipgloss.Color("#E74C3C")
	colorWarning = lipgloss.Color("#F4D03F")
	colorMuted   = lipgloss.Color("#6C7A80")
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconSkipped = "○"
	iconPending = "…"
)

type styles struct {
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	skipped lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(re *lipgloss.Renderer, color bool) styles {
	s := styles{
		title:   re.NewStyle().Bold(true),
		success: re.NewStyle(),
		failure: re.NewStyle(),
		skipped: re.NewStyle(),
		muted:   re.NewStyle(),
	}
	if color {
		s.success = s.success.Foreground(colorSuccess)
		s.failure = s.failure.Foreground(colorError)
		s.skipped = s.skipped.Foreground(colorWarning)
		s.muted = s.muted.Foreground(colorMuted)
	}
	return s
}

// Summary counts a run's outcomes.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	// NotRun counts steps without an outcome, which only happens when the
	// run was interrupted.
	NotRun int
}

// OK reports whether every step succeeded.
func (s Summary) OK() bool {
	return s.Succeeded == s.Total
}

// Summarize counts the outcomes recorded on steps.
func Summarize(steps []*step.Step) Summary {
	sum := Summary{Total: len(steps)}
	for _, s := range steps {
		switch {
		case s.Outcome == nil:
			sum.NotRun++
		case s.Outcome.Skipped():
			sum.Skipped++
		case s.Outcome.Failed():
			sum.Failed++
		default:
			sum.Succeeded++
		}
	}
	return sum
}

// Renderer writes styled reports to w. Colors are only emitted when w is a
// terminal that supports them and noColor is false.
type Renderer struct {
	w  io.Writer
	re *lipgloss.Renderer
	st styles
}

// New creates a Renderer writing to w.
func New(w io.Writer, noColor bool) *Renderer {
	re := lipgloss.NewRenderer(w)
	return &Renderer{w: w, re: re, st: newStyles(re, !noColor)}
}

// Steps writes one line per step in index order followed by a summary line,
// and returns the summary.
func (r *Renderer) Steps(steps []*step.Step) (Summary, error) {
	width := 0
	for _, s := range steps {
		width = max(width, lipgloss.Width(s.Name))
	}
	name := r.re.NewStyle().Width(width)

	var b strings.Builder
	for _, s := range steps {
		b.WriteString(r.stepLine(name.Render(s.Name), s.Outcome))
		b.WriteByte('\n')
	}

	sum := Summarize(steps)
	b.WriteString(r.summaryLine(sum))
	b.WriteByte('\n')

	_, err := io.WriteString(r.w, b.String())
	return sum, err
}

func (r *Renderer) stepLine(name string, o *step.Outcome) string {
	switch {
	case o == nil:
		return fmt.Sprintf("%s %s  %s", r.st.muted.Render(iconPending), name, r.st.muted.Render("not run"))
	case o.Skipped():
		return fmt.Sprintf("%s %s  %s", r.st.skipped.Render(iconSkipped), name, r.st.skipped.Render("skipped: "+o.Err.Error()))
	case o.Failed():
		return fmt.Sprintf("%s %s  %s  %s", r.st.failure.Render(iconError), name,
			r.st.muted.Render(formatDuration(o.Duration)), r.st.failure.Render(firstLine(o.Err.Error())))
	default:
		return fmt.Sprintf("%s %s  %s", r.st.success.Render(iconSuccess), name, r.st.muted.Render(formatDuration(o.Duration)))
	}
}

func (r *Renderer) summaryLine(sum Summary) string {
	parts := []string{
		r.st.success.Render(fmt.Sprintf("%d succeeded", sum.Succeeded)),
		r.st.failure.Render(fmt.Sprintf("%d failed", sum.Failed)),
		r.st.skipped.Render(fmt.Sprintf("%d skipped", sum.Skipped)),
	}
	if sum.NotRun > 0 {
		parts = append(parts, r.st.muted.Render(fmt.Sprintf("%d not run", sum.NotRun)))
	}
	return r.st.title.Render(fmt.Sprintf("%d steps:", sum.Total)) + " " + strings.Join(parts, ", ")
}

// Runs writes a table of recorded runs.
func (r *Renderer) Runs(runs []*history.Run) error {
	if len(runs) == 0 {
		_, err := io.WriteString(r.w, r.st.muted.Render("No runs recorded.")+"\n")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.st.muted).
		Headers("RUN", "STARTED", "STATUS", "STEPS", "FAILED", "SKIPPED", "WORKFLOW").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.st.title.Padding(0, 1)
			}
			return r.re.NewStyle().Padding(0, 1)
		})

	for _, run := range runs {
		t.Row(
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			r.runStatus(run.Status),
			strconv.Itoa(run.Steps),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
			run.Workflow,
		)
	}

	_, err := io.WriteString(r.w, t.Render()+"\n")
	return err
}

func (r *Renderer) runStatus(s history.RunStatus) string {
	switch s {
	case history.RunSucceeded:
		return r.st.success.Render(string(s))
	case history.RunFailed, history.RunErrored:
		return r.st.failure.Render(string(s))
	default:
		return r.st.skipped.Render(string(s))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
