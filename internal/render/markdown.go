package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Markdown returns the tree at n as a markdown report: a title and a table
// with the scope path depth shown by indentation.
func Markdown(title string, n *Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	b.WriteString("| Scope |")
	for _, c := range n.Cells {
		fmt.Fprintf(&b, " %s |", escape(c.Metric))
	}
	b.WriteString("\n|---|")
	for range n.Cells {
		b.WriteString("---:|")
	}
	b.WriteString("\n")

	n.Walk(func(c *Node, depth int) {
		fmt.Fprintf(&b, "| %s%s |", strings.Repeat("&nbsp;&nbsp;", depth), escape(c.Name))
		for _, cell := range c.Cells {
			fmt.Fprintf(&b, " %s |", escape(cell.Text))
		}
		b.WriteString("\n")
	})
	return b.String()
}

// WriteMarkdown writes a markdown report, styled when w is a terminal.
func WriteMarkdown(w io.Writer, md string) error {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		_, err := io.WriteString(w, md)
		return err
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(0)}
	if os.Getenv("NO_COLOR") != "" {
		opts = append(opts, glamour.WithStylePath("notty"))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`).Replace(s)
}
