// Package render prints experiment views as text, JSON or markdown.
package render

import (
	"cmp"
	"context"
	"slices"

	"github.com/coral-mesh/calltree/internal/experiment"
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Options select what is rendered.
type Options struct {
	// Metrics are the columns to print, in order.
	Metrics []*metric.Metric
	// SortBy orders children by descending value; nil keeps tree order.
	SortBy *metric.Metric
	// Depth limits the levels below the start scope; 0 means unlimited.
	Depth int
	// Percent prints percent annotations.
	Percent bool
}

// Cell is one metric value of a node.
type Cell struct {
	Metric  string   `json:"metric"`
	Value   *float64 `json:"value,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
	Text    string   `json:"text"`
}

// Node is a rendered scope with its resolved values.
type Node struct {
	ID       scope.ID `json:"id"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Cells    []Cell   `json:"cells"`
	Children []*Node  `json:"children,omitempty"`
	// Truncated is set when children exist below the depth limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Collect resolves the subtree at start. Callers-view scopes are expanded
// as they are reached.
func Collect(ctx context.Context, e *experiment.Experiment, start scope.ID, opts Options) (*Node, error) {
	s, err := e.Scope(start)
	if err != nil {
		return nil, err
	}
	return collect(ctx, e, s, opts, 0)
}

func collect(ctx context.Context, e *experiment.Experiment, s *scope.Scope, opts Options, depth int) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := newNode(ctx, e, s, opts)
	if opts.Depth > 0 && depth >= opts.Depth {
		n.Truncated = e.HasChildren(s.ID())
		return n, nil
	}
	children, err := e.Children(s.ID())
	if err != nil {
		return nil, err
	}
	if opts.SortBy != nil {
		children = slices.Clone(children)
		values := make(map[scope.ID]float64, len(children))
		for _, c := range children {
			values[c.ID()] = e.Value(ctx, c, opts.SortBy).Float()
		}
		slices.SortStableFunc(children, func(a, b *scope.Scope) int {
			return cmp.Compare(values[b.ID()], values[a.ID()])
		})
	}
	for _, c := range children {
		child, err := collect(ctx, e, c, opts, depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func newNode(ctx context.Context, e *experiment.Experiment, s *scope.Scope, opts Options) *Node {
	n := &Node{
		ID:   s.ID(),
		Name: e.DisplayName(s),
		Kind: s.Kind().String(),
		File: s.File,
		Line: s.Line,
	}
	for _, m := range opts.Metrics {
		n.Cells = append(n.Cells, NewCell(m, e.Value(ctx, s, m), opts.Percent))
	}
	return n
}

// NewCell formats v for metric m; percent annotations are dropped unless
// percent is set.
func NewCell(m *metric.Metric, v metric.Value, percent bool) Cell {
	c := Cell{Metric: m.DisplayName}
	if v.IsAvailable() {
		f := v.Float()
		c.Value = &f
		if a, ok := v.Annotation(); ok && percent && m.Annotation == metric.AnnotationPercent {
			c.Percent = &a
		}
	}
	if !percent && m.Annotation == metric.AnnotationPercent {
		v = v.WithoutAnnotation()
	}
	c.Text = m.TextValue(v)
	return c
}

// Walk calls fn for n and every descendant in pre-order with its depth.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(n *Node, depth int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Path renders a scope path, such as a hot call path, as a chain of nodes.
func Path(ctx context.Context, e *experiment.Experiment, path []*scope.Scope, opts Options) *Node {
	var head, tail *Node
	for _, s := range path {
		n := newNode(ctx, e, s, opts)
		if head == nil {
			head = n
		} else {
			tail.Children = []*Node{n}
		}
		tail = n
	}
	return head
}
