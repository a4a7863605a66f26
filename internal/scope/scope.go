// Package scope implements the scope tree shared by the calling context,
// callers and flat views.
//
// Scopes live in an arena owned by a Tree. Children are held by ID and the
// parent link is a plain ID, so the structure has no ownership cycle and
// cloning is a copy of the arena.
package scope

import (
	"github.com/coral-mesh/calltree/internal/metric"
)

// ID identifies a scope within one Tree. IDs are assigned at creation and
// never reused.
type ID int32

// NoID is the ID of a missing scope (the parent of a top root).
const NoID ID = -1

// Kind is the structural kind of a scope.
type Kind int

const (
	KindRoot Kind = iota
	KindProcedure
	KindCallSite
	KindLoop
	KindLine
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindProcedure:
		return "procedure"
	case KindCallSite:
		return "callsite"
	case KindLoop:
		return "loop"
	case KindLine:
		return "line"
	default:
		return "unknown"
	}
}

// IsFrame reports whether scopes of this kind stand for a procedure
// activation (as opposed to a loop or a statement inside one).
func (k Kind) IsFrame() bool {
	return k == KindProcedure || k == KindCallSite
}

// RootType names the tree variant a root scope heads.
type RootType int

const (
	// RootInvisible is the experiment-level root holding the view roots.
	RootInvisible RootType = iota
	RootCallingContextTree
	RootCallerTree
	RootFlat
)

// String returns the root type name.
func (r RootType) String() string {
	switch r {
	case RootCallingContextTree:
		return "cct"
	case RootCallerTree:
		return "callers"
	case RootFlat:
		return "flat"
	default:
		return "invisible"
	}
}

// Scope is one node of a tree.
type Scope struct {
	id       ID
	name     string
	kind     Kind
	rootType RootType
	parent   ID
	children []ID
	values   []metric.Value

	// File and Line locate the scope in source, when known.
	File string
	Line int

	cctIndex int
	source   ID
	origins  []metric.Origin
	detached bool
}

// Origins returns the calling contexts recorded with Tree.AddOrigin.
func (s *Scope) Origins() []metric.Origin { return s.origins }

// ID returns the scope identifier.
func (s *Scope) ID() ID { return s.id }

// Name returns the display name.
func (s *Scope) Name() string { return s.name }

// Kind returns the structural kind.
func (s *Scope) Kind() Kind { return s.kind }

// RootType returns the tree variant of a root scope.
func (s *Scope) RootType() RootType { return s.rootType }

// IsRoot reports whether the scope is a root of any kind.
func (s *Scope) IsRoot() bool { return s.kind == KindRoot }

// ParentID returns the parent, NoID for a top root.
func (s *Scope) ParentID() ID { return s.parent }

// ChildIDs returns the children in traversal order. The slice must not be
// modified.
func (s *Scope) ChildIDs() []ID { return s.children }

// ChildCount returns the number of children.
func (s *Scope) ChildCount() int { return len(s.children) }

// CCTIndex returns the 1-based position of the scope in the calling context
// tree, used to address thread-level data. Derived views carry the index of
// the CCT scope they were created from.
func (s *Scope) CCTIndex() int { return s.cctIndex }

// Source returns the scope a derived-view scope was created from, NoID for
// calling context scopes.
func (s *Scope) Source() ID { return s.source }

// Value returns the stored value of a metric slot.
func (s *Scope) Value(slot int) metric.Value {
	if slot < 0 || slot >= len(s.values) {
		return metric.None
	}
	return s.values[slot]
}

// SetValue stores the value of a metric slot.
func (s *Scope) SetValue(slot int, v metric.Value) {
	if slot < 0 || slot >= len(s.values) {
		return
	}
	s.values[slot] = v
}

// Values returns the stored metric slots.
func (s *Scope) Values() []metric.Value { return s.values }

// ResetValues sets every slot to None.
func (s *Scope) ResetValues() {
	for i := range s.values {
		s.values[i] = metric.None
	}
}
