package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	columnWidth = 20
	maxName     = 60
)

type styles struct {
	header    lipgloss.Style
	procedure lipgloss.Style
	callsite  lipgloss.Style
	loop      lipgloss.Style
	line      lipgloss.Style
	root      lipgloss.Style
	value     lipgloss.Style
	guide     lipgloss.Style
}

// newStyles builds styles for w; writers that are not color terminals get
// plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:    r.NewStyle().Bold(true).Underline(true),
		procedure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		callsite:  r.NewStyle().Foreground(lipgloss.Color("12")),
		loop:      r.NewStyle().Foreground(lipgloss.Color("11")),
		line:      r.NewStyle().Foreground(lipgloss.Color("241")),
		root:      r.NewStyle().Bold(true),
		value:     r.NewStyle().Width(columnWidth).Align(lipgloss.Right),
		guide:     r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (s styles) name(kind string) lipgloss.Style {
	switch kind {
	case "procedure":
		return s.procedure
	case "callsite":
		return s.callsite
	case "loop":
		return s.loop
	case "line":
		return s.line
	default:
		return s.root
	}
}

// Text writes the tree at n as an indented table, one scope per line.
func Text(w io.Writer, n *Node) error {
	st := newStyles(w)
	nameWidth := 0
	n.Walk(func(c *Node, depth int) {
		nameWidth = max(nameWidth, min(maxName, len(c.Name))+2*depth+2)
	})

	var b strings.Builder
	b.WriteString(st.header.Render(pad("Scope", nameWidth)))
	for _, c := range n.Cells {
		b.WriteString(st.header.Render(fmt.Sprintf("%*s", columnWidth, truncate(c.Metric, columnWidth-1))))
	}
	b.WriteString("\n")

	n.Walk(func(c *Node, depth int) {
		prefix := strings.Repeat("  ", depth)
		glyph := "  "
		if len(c.Children) > 0 {
			glyph = "▾ "
		} else if c.Truncated {
			glyph = "▸ "
		}
		name := truncate(c.Name, maxName)
		plain := prefix + glyph + name
		b.WriteString(st.guide.Render(prefix + glyph))
		b.WriteString(st.name(c.Kind).Render(name))
		b.WriteString(strings.Repeat(" ", max(0, nameWidth-lipgloss.Width(plain))))
		for _, cell := range c.Cells {
			b.WriteString(st.value.Render(cell.Text))
		}
		b.WriteString("\n")
	})

	_, err := io.WriteString(w, b.String())
	return err
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
