package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/coral-mesh/calltree/internal/render"
)

const (
	cellWidth = 16
	// chrome is the number of lines around the tree: title, column
	// header, status and help.
	chrome = 5
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	cursorStyle = lipgloss.NewStyle().
			Reverse(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI (Bubbletea interface).
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s | %s view", m.exp.Name, m.opts.Views[m.view])))
	b.WriteString("\n")

	nameWidth := max(20, m.width-cellWidth*len(m.opts.Metrics))
	b.WriteString(headerStyle.Render(fit("Scope", nameWidth)))
	for _, mt := range m.opts.Metrics {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%*s", cellWidth, fit(mt.DisplayName, cellWidth-1))))
	}
	b.WriteString("\n")

	end := min(len(m.rows), m.offset+m.pageSize())
	for i := m.offset; i < end; i++ {
		line := m.renderRow(i, nameWidth)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch {
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Error: %v", m.lastErr)))
	case m.status != "":
		b.WriteString(hintStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRow(i, nameWidth int) string {
	r := m.rows[i]
	glyph := "  "
	switch {
	case r.expanded:
		glyph = "▾ "
	case r.leaf:
	case !m.exp.IsExpanded(r.scope.ID()):
		// callers not looked up yet
		glyph = "▹ "
	default:
		glyph = "▸ "
	}
	name := strings.Repeat("  ", r.depth) + glyph + m.exp.DisplayName(r.scope)

	var b strings.Builder
	b.WriteString(fit(name, nameWidth))
	for _, mt := range m.opts.Metrics {
		c := render.NewCell(mt, m.exp.Value(m.ctx, r.scope, mt), m.opts.Percent)
		b.WriteString(fmt.Sprintf("%*s", cellWidth, c.Text))
	}
	return b.String()
}

func (m Model) pageSize() int {
	return max(1, m.height-chrome)
}

// fit pads or truncates s to width cells.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}
