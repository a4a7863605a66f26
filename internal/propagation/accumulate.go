package propagation

import (
	"github.com/coral-mesh/calltree/internal/scope"
)

// Accumulate adds source's value at sourceSlot into target's value at
// targetSlot when the filter approves and the value is present and
// non-zero. Otherwise target is left unchanged.
func Accumulate(target, source *scope.Scope, sourceSlot, targetSlot int, f Filter) {
	if !f.ShouldPropagate(source, target, sourceSlot, targetSlot) {
		return
	}
	v := source.Value(sourceSlot)
	if v.IsZero() {
		return
	}
	target.SetValue(targetSlot, target.Value(targetSlot).Add(v))
}

// AccumulateAll accumulates every slot of source into the same slot of
// target.
func AccumulateAll(target, source *scope.Scope, f Filter) {
	for i := range source.Values() {
		Accumulate(target, source, i, i, f)
	}
}

// Copy replaces target's value at targetSlot with source's value at
// sourceSlot when the filter approves and the value is present and
// non-zero.
func Copy(target, source *scope.Scope, sourceSlot, targetSlot int, f Filter) {
	if !f.ShouldPropagate(source, target, sourceSlot, targetSlot) {
		return
	}
	v := source.Value(sourceSlot)
	if v.IsZero() {
		return
	}
	target.SetValue(targetSlot, v.WithoutAnnotation())
}

// CopyAll copies every slot of source into the same slot of target.
func CopyAll(target, source *scope.Scope, f Filter) {
	for i := range source.Values() {
		Copy(target, source, i, i, f)
	}
}
