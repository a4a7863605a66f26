// Package browse is an interactive terminal browser over the views of an
// experiment. Callers-view scopes are expanded as they are opened.
package browse

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/coral-mesh/calltree/internal/experiment"
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Options configure the browser.
type Options struct {
	// Views are cycled through with tab; the first one is shown first.
	Views     []scope.RootType
	Metrics   []*metric.Metric
	SortBy    *metric.Metric
	Threshold float64
	Percent   bool
}

// row is one visible line of the tree.
type row struct {
	scope    *scope.Scope
	depth    int
	expanded bool
	leaf     bool
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx  context.Context
	exp  *experiment.Experiment
	opts Options
	view int

	rows   []row
	cursor int
	offset int

	help   help.Model
	keys   keyMap
	width  int
	height int

	status   string
	lastErr  error
	quitting bool
}

// NewModel opens the first view of opts.Views.
func NewModel(ctx context.Context, exp *experiment.Experiment, opts Options) (Model, error) {
	if len(opts.Views) == 0 {
		opts.Views = []scope.RootType{scope.RootCallingContextTree, scope.RootCallerTree, scope.RootFlat}
	}
	m := Model{
		ctx:    ctx,
		exp:    exp,
		opts:   opts,
		help:   help.New(),
		keys:   keys,
		width:  100,
		height: 24,
	}
	if err := m.load(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Init initializes the model (Bubbletea interface).
func (m Model) Init() tea.Cmd {
	return nil
}

// load shows the current view with its root expanded.
func (m *Model) load() error {
	rt := m.opts.Views[m.view]
	id, err := m.exp.ViewRoot(rt)
	if err != nil {
		return fmt.Errorf("%s view: %w", rt, err)
	}
	root, err := m.exp.Scope(id)
	if err != nil {
		return err
	}
	m.rows = []row{{scope: root, leaf: !m.exp.HasChildren(id)}}
	m.cursor, m.offset = 0, 0
	return m.expand(0)
}

// expand inserts the children of row i below it.
func (m *Model) expand(i int) error {
	r := m.rows[i]
	if r.expanded || r.leaf {
		return nil
	}
	children, err := m.exp.Children(r.scope.ID())
	if err != nil {
		return err
	}
	children = m.sorted(children)

	added := make([]row, len(children))
	for j, c := range children {
		added[j] = row{scope: c, depth: r.depth + 1, leaf: !m.exp.HasChildren(c.ID())}
	}
	m.rows[i].expanded = true
	m.rows = slices.Insert(m.rows, i+1, added...)
	return nil
}

// collapse hides the subtree of row i, or moves to the parent row when it
// is already collapsed.
func (m *Model) collapse(i int) {
	r := m.rows[i]
	if !r.expanded {
		for j := i - 1; j >= 0; j-- {
			if m.rows[j].depth < r.depth {
				m.cursor = j
				return
			}
		}
		return
	}
	end := i + 1
	for end < len(m.rows) && m.rows[end].depth > r.depth {
		end++
	}
	m.rows = slices.Delete(m.rows, i+1, end)
	m.rows[i].expanded = false
}

// followHotPath expands the hot call path below the cursor and moves the
// cursor to its end.
func (m *Model) followHotPath() error {
	if m.opts.SortBy == nil {
		return fmt.Errorf("no metric to follow")
	}
	start := m.rows[m.cursor].scope.ID()
	path, found, err := m.exp.HotPath(m.ctx, start, m.opts.SortBy, m.opts.Threshold)
	if err != nil {
		return err
	}
	i := m.cursor
	for _, s := range path[1:] {
		if err := m.expand(i); err != nil {
			return err
		}
		next := m.childRow(i, s.ID())
		if next < 0 {
			break
		}
		i = next
	}
	m.cursor = i
	if found {
		m.status = fmt.Sprintf("hot path: %d steps", len(path)-1)
	} else {
		m.status = "no child above the hot path threshold"
	}
	return nil
}

// childRow returns the index of the child of row i with the given id.
func (m *Model) childRow(i int, id scope.ID) int {
	depth := m.rows[i].depth + 1
	for j := i + 1; j < len(m.rows) && m.rows[j].depth >= depth; j++ {
		if m.rows[j].depth == depth && m.rows[j].scope.ID() == id {
			return j
		}
	}
	return -1
}

func (m *Model) sorted(children []*scope.Scope) []*scope.Scope {
	if m.opts.SortBy == nil {
		return children
	}
	children = slices.Clone(children)
	values := make(map[scope.ID]float64, len(children))
	for _, c := range children {
		values[c.ID()] = m.exp.Value(m.ctx, c, m.opts.SortBy).Float()
	}
	slices.SortStableFunc(children, func(a, b *scope.Scope) int {
		return cmp.Compare(values[b.ID()], values[a.ID()])
	})
	return children
}
