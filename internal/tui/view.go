package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/mfenderov/citedoc/internal/viewer"
	"github.com/mfenderov/citedoc/pkg/models"
)

const (
	maxAnswerLines = 6
	minWrapWidth   = 20
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pageInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("147"))
	ruleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	helperStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// wrapWidth is the line width of page text at the given zoom. Zooming in
// shortens lines; the result never exceeds the viewport.
func wrapWidth(viewportWidth int, scale float64) int {
	if scale <= 0 {
		scale = 1
	}
	w := int(float64(viewportWidth) * 0.8 / scale)
	if w > viewportWidth {
		w = viewportWidth
	}
	return max(w, minWrapWidth)
}

func wrapPage(text string, width int) string {
	return wordwrap.String(strings.TrimSpace(text), width)
}

func (m *model) View() string {
	width := max(m.width, 40)
	rule := ruleStyle.Render(strings.Repeat("─", width))

	var b strings.Builder
	b.WriteString(m.headerView(width))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(m.answerView(width))
	b.WriteString(m.citationsView(width))
	b.WriteString(m.inputView())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(helperStyle.Render("tab focus · enter ask/open · pgup/pgdn page · +/- zoom · esc quit"))
	return b.String()
}

func (m *model) headerView(width int) string {
	name := "citedoc"
	if m.doc != nil {
		name = m.doc.FileName
	}
	info := pageInfo(m.cursor)
	title := truncate.StringWithTail(name, uint(max(width-lipgloss.Width(info)-2, 10)), "…")
	return titleStyle.Render(title) + "  " + pageInfoStyle.Render(info)
}

func pageInfo(c *viewer.Cursor) string {
	if !c.Loaded() {
		return fmt.Sprintf("loading · %d%%", zoomPercent(c))
	}
	prev, next := " ", " "
	if c.CanPrev() {
		prev = "‹"
	}
	if c.CanNext() {
		next = "›"
	}
	info := fmt.Sprintf("%s Page %d of %d %s · %d%%", prev, c.Page(), c.TotalPages(), next, zoomPercent(c))
	if c.Pending() {
		info += fmt.Sprintf(" · page %d requested", c.Target())
	}
	return info
}

func zoomPercent(c *viewer.Cursor) int {
	return int(math.Round(c.Scale() * 100))
}

func (m *model) answerView(width int) string {
	if m.result == nil {
		return "\n"
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(truncate.StringWithTail("Q: "+m.question, uint(width), "…")))
	b.WriteString("\n")
	lines := strings.Split(wordwrap.String(m.result.Answer, width), "\n")
	if len(lines) > maxAnswerLines {
		lines = append(lines[:maxAnswerLines-1], "…")
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	if m.result.Truncated {
		b.WriteString(helperStyle.Render("(the document was too long and only its beginning was read)"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) citationsView(width int) string {
	citations := m.citations()
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Citations"))
	b.WriteString("\n")
	for i, c := range citations {
		line := truncate.StringWithTail(citationLine(c), uint(max(width-2, 10)), "…")
		if m.focus == focusCitations && i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func citationLine(c models.Citation) string {
	if c.Snippet == "" {
		return c.Text
	}
	return c.Text + ": " + strings.Join(strings.Fields(c.Snippet), " ")
}

func (m *model) inputView() string {
	if m.pending {
		return m.spinner.View() + " Answering…"
	}
	return m.input.View()
}

func (m *model) statusView() string {
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	return helperStyle.Render(m.status)
}
