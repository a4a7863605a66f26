package visitor

import (
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/propagation"
	"github.com/coral-mesh/calltree/internal/scope"
)

// instance ties a callers-view scope to one calling context: origin is the
// CCT frame whose cost the scope reports, cursor the CCT frame the scope
// stands for on the rotated path.
type instance struct {
	origin scope.ID
	cursor scope.ID
}

type callerNode struct {
	instances []instance
	expanded  bool
}

// Callers builds the bottom-up view of a calling context tree. Top-level
// scopes (one per procedure) are created by Build; the callers of a scope
// are materialized on first access and memoized.
type Callers struct {
	tree     *scope.Tree
	metrics  *metric.Table
	cctRoot  scope.ID
	root     scope.ID
	nodes    map[scope.ID]*callerNode
	onExpand func()
}

// NewCallers prepares a builder for the callers view rooted at root.
// onExpand, if set, is called every time a scope is expanded.
func NewCallers(t *scope.Tree, metrics *metric.Table, cctRoot, root scope.ID, onExpand func()) *Callers {
	return &Callers{
		tree:     t,
		metrics:  metrics,
		cctRoot:  cctRoot,
		root:     root,
		nodes:    make(map[scope.ID]*callerNode),
		onExpand: onExpand,
	}
}

// Root returns the callers-view root.
func (c *Callers) Root() scope.ID {
	return c.root
}

// Build creates one top-level scope per procedure found in the calling
// context tree and copies the CCT root values into the callers root.
func (c *Callers) Build() error {
	r := c.tree.Get(c.root)
	cct := c.tree.Get(c.cctRoot)
	if r == nil || cct == nil {
		return scope.ErrUnknownScope
	}
	r.ResetValues()
	propagation.CopyAll(r, cct, propagation.Empty{})

	var order []uint64
	groups := make(map[uint64][]instance)
	c.tree.Walk(c.cctRoot, func(s *scope.Scope, _, _ int) scope.Action {
		if !s.Kind().IsFrame() {
			return scope.Continue
		}
		k := ProcedureKey(s)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], instance{origin: s.ID(), cursor: s.ID()})
		return scope.Continue
	}, nil)

	for _, k := range order {
		first := c.tree.Get(groups[k][0].origin)
		if _, err := c.create(c.root, scope.KindProcedure, first, groups[k]); err != nil {
			return err
		}
	}
	c.nodes[c.root] = &callerNode{expanded: true}
	return nil
}

// IsExpanded reports whether the callers of id have been materialized.
// Scopes that do not belong to the callers view always report true.
func (c *Callers) IsExpanded(id scope.ID) bool {
	n, ok := c.nodes[id]
	return !ok || n.expanded
}

// HasCallers reports whether expanding id would produce children, without
// expanding it.
func (c *Callers) HasCallers(id scope.ID) bool {
	s := c.tree.Get(id)
	if s == nil {
		return false
	}
	n, ok := c.nodes[id]
	if !ok || n.expanded {
		return s.ChildCount() > 0
	}
	for _, in := range n.instances {
		if NearestFrame(c.tree, in.cursor) != nil {
			return true
		}
	}
	return false
}

// Children returns the children of id, expanding it first when it is a
// callers scope that was not expanded yet.
func (c *Callers) Children(id scope.ID) ([]*scope.Scope, error) {
	n, ok := c.nodes[id]
	if ok && !n.expanded {
		if err := c.expand(id, n); err != nil {
			return nil, err
		}
	}
	return c.tree.Children(id), nil
}

// expand groups the instances of a scope by the caller of their cursor and
// creates one child per calling procedure.
func (c *Callers) expand(id scope.ID, n *callerNode) error {
	var order []uint64
	groups := make(map[uint64][]instance)
	callers := make(map[uint64]*scope.Scope)
	for _, in := range n.instances {
		caller := NearestFrame(c.tree, in.cursor)
		if caller == nil {
			continue
		}
		k := ProcedureKey(caller)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			callers[k] = caller
		}
		groups[k] = append(groups[k], instance{origin: in.origin, cursor: caller.ID()})
	}
	for _, k := range order {
		if _, err := c.create(id, scope.KindCallSite, callers[k], groups[k]); err != nil {
			return err
		}
	}
	n.expanded = true
	if c.onExpand != nil {
		c.onExpand()
	}
	return nil
}

func (c *Callers) create(parent scope.ID, kind scope.Kind, frame *scope.Scope, instances []instance) (scope.ID, error) {
	id, err := c.tree.Add(parent, scope.Spec{
		Name:     frame.Name(),
		Kind:     kind,
		File:     frame.File,
		Line:     frame.Line,
		CCTIndex: frame.CCTIndex(),
		Source:   frame.ID(),
	})
	if err != nil {
		return scope.NoID, err
	}
	c.nodes[id] = &callerNode{instances: instances}
	c.fill(c.tree.Get(id), instances)
	if r := c.tree.Get(c.root); r != nil {
		Annotate(c.tree.Get(id), r, c.metrics)
	}
	return id, nil
}

// fill sums the cost of every origin into s. Inclusive columns skip origins
// nested in another origin of the same scope so that recursive calls are
// counted once.
func (c *Callers) fill(s *scope.Scope, instances []instance) {
	origins := make(map[scope.ID]bool, len(instances))
	for _, in := range instances {
		origins[in.origin] = true
	}
	for _, in := range instances {
		o := c.tree.Get(in.origin)
		if o == nil {
			continue
		}
		nested := c.nestedIn(o.ID(), origins)
		c.tree.AddOrigin(s.ID(), metric.Origin{CCTIndex: o.CCTIndex(), Exclusive: true, Inclusive: !nested})
		f := propagation.FilterFunc(func(_, _ *scope.Scope, slot, _ int) bool {
			m := c.metrics.Get(slot)
			if m == nil || m.Kind == metric.KindDerived {
				return false
			}
			return !nested || m.Type != metric.TypeInclusive
		})
		propagation.AccumulateAll(s, o, f)
	}
}

func (c *Callers) nestedIn(id scope.ID, origins map[scope.ID]bool) bool {
	for p := c.tree.Parent(id); p != nil; p = c.tree.Parent(p.ID()) {
		if origins[p.ID()] {
			return true
		}
	}
	return false
}
