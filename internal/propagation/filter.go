// Package propagation decides whether and how a metric value flows from one
// scope to another.
package propagation

import (
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Filter approves propagation of source's sourceSlot into target's
// targetSlot.
type Filter interface {
	ShouldPropagate(source, target *scope.Scope, sourceSlot, targetSlot int) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(source, target *scope.Scope, sourceSlot, targetSlot int) bool

// ShouldPropagate implements Filter.
func (f FilterFunc) ShouldPropagate(source, target *scope.Scope, sourceSlot, targetSlot int) bool {
	return f(source, target, sourceSlot, targetSlot)
}

// Empty approves everything; it is used for plain copies.
type Empty struct{}

// ShouldPropagate implements Filter.
func (Empty) ShouldPropagate(_, _ *scope.Scope, _, _ int) bool { return true }

// InclusiveOnly approves the inclusive column of accumulable metric pairs.
// Unpaired inclusive metrics are taken as already inclusive, and aggregate,
// final or expression metrics are never summed, so running the inclusive
// pass again does not change anything.
type InclusiveOnly struct {
	Metrics *metric.Table
}

// ShouldPropagate implements Filter.
func (f InclusiveOnly) ShouldPropagate(_, _ *scope.Scope, sourceSlot, _ int) bool {
	m := f.Metrics.Get(sourceSlot)
	if m == nil || !m.Accumulable() || m.Type != metric.TypeInclusive {
		return false
	}
	p, ok := f.Metrics.Partner(m)
	return ok && p.Type == metric.TypeExclusive
}

// ExclusiveOnly approves columns that hold cost attributed to the scope
// itself: exclusive metrics and every column that is not part of an
// accumulable pair. Flat and callers builders use it to gather per-scope
// cost before recomputing inclusive values.
type ExclusiveOnly struct {
	Metrics *metric.Table
}

// ShouldPropagate implements Filter.
func (f ExclusiveOnly) ShouldPropagate(source, target *scope.Scope, sourceSlot, targetSlot int) bool {
	m := f.Metrics.Get(sourceSlot)
	if m == nil || m.Kind == metric.KindDerived {
		return false
	}
	return !(InclusiveOnly(f)).ShouldPropagate(source, target, sourceSlot, targetSlot)
}
