package scope

import (
	"errors"
	"fmt"
	"slices"

	"github.com/coral-mesh/calltree/internal/metric"
)

// ErrUnknownScope is returned for an ID that does not name a live scope.
var ErrUnknownScope = errors.New("unknown scope")

// Spec describes a scope to create.
type Spec struct {
	Name     string
	Kind     Kind
	RootType RootType
	File     string
	Line     int
	// CCTIndex is the 1-based calling context position, 0 for none.
	CCTIndex int
	// Source is the scope a derived-view scope stands for.
	Source ID
}

// Tree is the arena holding every scope of an experiment.
//
// Every scope carries exactly MetricCount value slots; AddMetricSlot grows
// all of them in lock-step. Tree is not safe for concurrent use.
type Tree struct {
	scopes     []*Scope
	numMetrics int
	cctRoot    ID
}

// NewTree creates an empty arena for numMetrics metric columns.
func NewTree(numMetrics int) *Tree {
	return &Tree{numMetrics: numMetrics, cctRoot: NoID}
}

// Len returns the number of scopes ever created, detached ones included.
func (t *Tree) Len() int {
	return len(t.scopes)
}

// MetricCount returns the number of value slots of every scope.
func (t *Tree) MetricCount() int {
	return t.numMetrics
}

// CCTRoot returns the calling context tree root, NoID if none was created.
func (t *Tree) CCTRoot() ID {
	return t.cctRoot
}

// NewRoot creates a parentless root scope.
func (t *Tree) NewRoot(name string, rt RootType) ID {
	return t.create(NoID, Spec{Name: name, Kind: KindRoot, RootType: rt, Source: NoID})
}

// Add creates a scope as the last child of parent.
func (t *Tree) Add(parent ID, spec Spec) (ID, error) {
	p := t.Get(parent)
	if p == nil {
		return NoID, fmt.Errorf("add %q: parent %d: %w", spec.Name, parent, ErrUnknownScope)
	}
	id := t.create(parent, spec)
	p.children = append(p.children, id)
	return id, nil
}

// MustAdd is Add for builders whose parent is known to exist.
func (t *Tree) MustAdd(parent ID, spec Spec) ID {
	id, err := t.Add(parent, spec)
	if err != nil {
		panic(err)
	}
	return id
}

func (t *Tree) create(parent ID, spec Spec) ID {
	id := ID(len(t.scopes))
	s := &Scope{
		id:       id,
		name:     spec.Name,
		kind:     spec.Kind,
		rootType: spec.RootType,
		parent:   parent,
		values:   make([]metric.Value, t.numMetrics),
		File:     spec.File,
		Line:     spec.Line,
		cctIndex: spec.CCTIndex,
		source:   spec.Source,
	}
	if spec.Kind != KindRoot {
		s.rootType = RootInvisible
	}
	t.scopes = append(t.scopes, s)
	if spec.Kind == KindRoot && spec.RootType == RootCallingContextTree && t.cctRoot == NoID {
		t.cctRoot = id
	}
	return id
}

// Get returns the live scope with the given ID, or nil.
func (t *Tree) Get(id ID) *Scope {
	if id < 0 || int(id) >= len(t.scopes) {
		return nil
	}
	s := t.scopes[id]
	if s.detached {
		return nil
	}
	return s
}

// Parent returns the parent scope, nil for a top root.
func (t *Tree) Parent(id ID) *Scope {
	s := t.Get(id)
	if s == nil {
		return nil
	}
	return t.Get(s.parent)
}

// Children returns the child scopes in order.
func (t *Tree) Children(id ID) []*Scope {
	s := t.Get(id)
	if s == nil {
		return nil
	}
	out := make([]*Scope, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, t.scopes[c])
	}
	return out
}

// ViewRoot returns the nearest root ancestor (or the scope itself) that
// heads a view, i.e. is not the invisible experiment root.
func (t *Tree) ViewRoot(id ID) ID {
	for s := t.Get(id); s != nil; s = t.Get(s.parent) {
		if s.kind == KindRoot && s.rootType != RootInvisible {
			return s.id
		}
	}
	return NoID
}

// Path returns the IDs from the top root down to id.
func (t *Tree) Path(id ID) []ID {
	var path []ID
	for s := t.Get(id); s != nil; s = t.Get(s.parent) {
		path = append(path, s.id)
	}
	slices.Reverse(path)
	return path
}

// Depth returns the number of ancestors of id.
func (t *Tree) Depth(id ID) int {
	return len(t.Path(id)) - 1
}

// Detach removes the subtree at id from its parent. The scopes stay in the
// arena but are no longer reachable or returned by Get.
func (t *Tree) Detach(id ID) error {
	s := t.Get(id)
	if s == nil {
		return fmt.Errorf("detach %d: %w", id, ErrUnknownScope)
	}
	if p := t.Get(s.parent); p != nil {
		p.children = slices.DeleteFunc(p.children, func(c ID) bool { return c == id })
	}
	if id == t.cctRoot {
		t.cctRoot = NoID
	}
	t.markDetached(s)
	return nil
}

func (t *Tree) markDetached(s *Scope) {
	s.detached = true
	for _, c := range s.children {
		t.markDetached(t.scopes[c])
	}
}

// AddMetricSlot grows the value array of every scope by one slot and
// returns the new slot index.
func (t *Tree) AddMetricSlot() int {
	slot := t.numMetrics
	t.numMetrics++
	for _, s := range t.scopes {
		s.values = append(s.values, metric.None)
	}
	return slot
}

// Clone returns an independent copy of the arena.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		scopes:     make([]*Scope, len(t.scopes)),
		numMetrics: t.numMetrics,
		cctRoot:    t.cctRoot,
	}
	for i, s := range t.scopes {
		cp := *s
		cp.children = slices.Clone(s.children)
		cp.values = slices.Clone(s.values)
		cp.origins = slices.Clone(s.origins)
		c.scopes[i] = &cp
	}
	return c
}

// AddOrigin records a calling context whose cost the derived view scope id
// includes.
func (t *Tree) AddOrigin(id ID, o metric.Origin) {
	if s := t.Get(id); s != nil {
		s.origins = append(s.origins, o)
	}
}

// Source adapts a scope for metric value resolution.
func (t *Tree) Source(id ID) metric.Source {
	s := t.Get(id)
	if s == nil {
		return emptySource{}
	}
	return source{tree: t, scope: s}
}

type source struct {
	tree  *Tree
	scope *Scope
}

func (s source) StoredValue(slot int) metric.Value { return s.scope.Value(slot) }
func (s source) StoredValues() []metric.Value      { return s.scope.values }
func (s source) CCTIndex() int                     { return s.scope.cctIndex }
func (s source) IsRoot() bool                      { return s.scope.IsRoot() }
func (s source) Origins() []metric.Origin          { return s.scope.origins }

func (s source) RootCCTIndex() int {
	if r := s.tree.Get(s.tree.cctRoot); r != nil {
		return r.cctIndex
	}
	return 0
}

type emptySource struct{}

func (emptySource) StoredValue(int) metric.Value { return metric.None }
func (emptySource) StoredValues() []metric.Value { return nil }
func (emptySource) CCTIndex() int                { return 0 }
func (emptySource) IsRoot() bool                 { return false }
func (emptySource) RootCCTIndex() int            { return 0 }
func (emptySource) Origins() []metric.Origin     { return nil }
