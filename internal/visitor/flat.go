package visitor

import (
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/propagation"
	"github.com/coral-mesh/calltree/internal/scope"
)

type flatKey struct {
	parent scope.ID
	kind   scope.Kind
	key    uint64
}

type flatBuilder struct {
	tree      *scope.Tree
	metrics   *metric.Table
	pairs     []Pair
	own       propagation.Filter
	root      scope.ID
	procs     map[uint64]scope.ID
	order     []scope.ID
	statement map[flatKey]scope.ID
}

// Flat populates the flat view under root from the calling context tree at
// cctRoot.
//
// Every CCT frame contributes its exclusive cost to one top-level scope per
// procedure. Loops and lines inside a frame are mirrored below that scope,
// and each call out of the frame becomes a call site leaf carrying the
// callee's inclusive cost as its own. Inclusive values are then computed
// within each procedure subtree, and root receives the CCT root's values.
func Flat(t *scope.Tree, metrics *metric.Table, cctRoot, root scope.ID) error {
	r := t.Get(root)
	cct := t.Get(cctRoot)
	if r == nil || cct == nil {
		return scope.ErrUnknownScope
	}
	b := &flatBuilder{
		tree:      t,
		metrics:   metrics,
		pairs:     Pairs(metrics),
		own:       propagation.ExclusiveOnly{Metrics: metrics},
		root:      root,
		procs:     make(map[uint64]scope.ID),
		statement: make(map[flatKey]scope.ID),
	}

	var err error
	t.Walk(cctRoot, func(s *scope.Scope, _, _ int) scope.Action {
		if !s.Kind().IsFrame() {
			return scope.Continue
		}
		var proc *scope.Scope
		if proc, err = b.procedure(s); err != nil {
			return scope.Stop
		}
		propagation.AccumulateAll(proc, s, b.own)
		t.AddOrigin(proc.ID(), metric.Origin{CCTIndex: s.CCTIndex(), Exclusive: true, Inclusive: true})
		if err = b.mirror(s, proc); err != nil {
			return scope.Stop
		}
		return scope.Continue
	}, nil)
	if err != nil {
		return err
	}

	for _, id := range b.order {
		Inclusive(t, metrics, id)
		Exclusive(t, metrics, id)
	}
	r.ResetValues()
	propagation.CopyAll(r, cct, propagation.Empty{})
	return nil
}

func (b *flatBuilder) procedure(frame *scope.Scope) (*scope.Scope, error) {
	k := ProcedureKey(frame)
	if id, ok := b.procs[k]; ok {
		return b.tree.Get(id), nil
	}
	id, err := b.tree.Add(b.root, scope.Spec{
		Name:     frame.Name(),
		Kind:     scope.KindProcedure,
		File:     frame.File,
		Line:     frame.Line,
		CCTIndex: frame.CCTIndex(),
		Source:   frame.ID(),
	})
	if err != nil {
		return nil, err
	}
	b.procs[k] = id
	b.order = append(b.order, id)
	return b.tree.Get(id), nil
}

// mirror copies the body of src (everything up to the next frames) below dst.
func (b *flatBuilder) mirror(src, dst *scope.Scope) error {
	for _, c := range b.tree.Children(src.ID()) {
		if c.Kind().IsFrame() {
			leaf, err := b.child(dst, c, scope.KindCallSite, ProcedureKey(c))
			if err != nil {
				return err
			}
			for _, p := range b.pairs {
				propagation.Accumulate(leaf, c, p.Inclusive, p.Exclusive, propagation.Empty{})
			}
			b.tree.AddOrigin(leaf.ID(), metric.Origin{CCTIndex: c.CCTIndex(), Exclusive: true, Inclusive: true, Callee: true})
			continue
		}
		stmt, err := b.child(dst, c, c.Kind(), statementKey(c))
		if err != nil {
			return err
		}
		propagation.AccumulateAll(stmt, c, b.own)
		b.tree.AddOrigin(stmt.ID(), metric.Origin{CCTIndex: c.CCTIndex(), Exclusive: true, Inclusive: true})
		if err := b.mirror(c, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *flatBuilder) child(parent, like *scope.Scope, kind scope.Kind, key uint64) (*scope.Scope, error) {
	fk := flatKey{parent: parent.ID(), kind: kind, key: key}
	if id, ok := b.statement[fk]; ok {
		return b.tree.Get(id), nil
	}
	id, err := b.tree.Add(parent.ID(), scope.Spec{
		Name:     like.Name(),
		Kind:     kind,
		File:     like.File,
		Line:     like.Line,
		CCTIndex: like.CCTIndex(),
		Source:   like.ID(),
	})
	if err != nil {
		return nil, err
	}
	b.statement[fk] = id
	return b.tree.Get(id), nil
}
