package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type summaryStyles struct {
	header lipgloss.Style
	muted  lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
}

func newSummaryStyles(color bool) summaryStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return summaryStyles{header: plain, muted: plain, pass: plain, fail: plain}
	}
	return summaryStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		pass:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		fail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Summary prints one line per cell and a closing verdict. Colors are used
// only when w is a terminal.
func Summary(w io.Writer, data *Data) error {
	st := newSummaryStyles(isTerminal(w))

	width := len("scenario")
	for _, r := range data.FlatResults {
		width = max(width, len(r.Scenario.Name())+len(r.Viewport.Name)+1)
	}

	var sb strings.Builder
	title := data.Title
	if title == "" {
		title = "regress"
	}
	sb.WriteString(st.header.Render(title))
	sb.WriteString("\n")
	sb.WriteString(st.muted.Render(fmt.Sprintf("  %-*s %10s  %s", width, "scenario", "mismatch", "size")))
	sb.WriteString("\n")

	for _, r := range data.FlatResults {
		name := r.Scenario.Name() + "/" + r.Viewport.Name
		line := fmt.Sprintf("%-*s %9s%%  %s", width, name, r.Mismatch(), r.Viewport.Size())
		mark, style := "✓", st.pass
		if data.IsFailed(r) {
			mark, style = "✗", st.fail
		}
		sb.WriteString(style.Render(mark + " " + line))
		sb.WriteString("\n")
	}

	verdict := fmt.Sprintf("%d cells, average %s%%, %d above %s%%",
		len(data.FlatResults), data.Average(), data.Failed, formatPercent(data.Threshold))
	if data.Passed() {
		sb.WriteString(st.pass.Render(verdict))
	} else {
		sb.WriteString(st.fail.Render(verdict))
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
