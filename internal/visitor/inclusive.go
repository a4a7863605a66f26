package visitor

import (
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/propagation"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Inclusive computes inclusive values below and including start.
//
// Each inclusive column of an accumulable pair is rebuilt post-order as the
// node's own exclusive value plus the inclusive values of its children; a
// root holds only the sum of its children. Rebuilding from the exclusive
// column makes a second run a no-op. Loop and line children are folded
// before their parent since the walk is post-order.
func Inclusive(t *scope.Tree, metrics *metric.Table, start scope.ID) {
	pairs := Pairs(metrics)
	if len(pairs) == 0 {
		return
	}
	f := propagation.InclusiveOnly{Metrics: metrics}
	t.PostOrder(start, func(s *scope.Scope) {
		children := t.Children(s.ID())
		for _, p := range pairs {
			if s.IsRoot() {
				s.SetValue(p.Inclusive, metric.None)
			} else {
				s.SetValue(p.Inclusive, s.Value(p.Exclusive).WithoutAnnotation())
			}
			for _, c := range children {
				propagation.Accumulate(s, c, p.Inclusive, p.Inclusive, f)
			}
		}
	})
}

// Exclusive derives the exclusive column of every pair as the node's
// inclusive value minus the inclusive values of its children. It must run
// after Inclusive has completed for the whole subtree. Roots are left to
// CopyPartners.
func Exclusive(t *scope.Tree, metrics *metric.Table, start scope.ID) {
	pairs := Pairs(metrics)
	if len(pairs) == 0 {
		return
	}
	t.Walk(start, func(s *scope.Scope, _, _ int) scope.Action {
		if s.IsRoot() {
			return scope.Continue
		}
		children := t.Children(s.ID())
		for _, p := range pairs {
			v := s.Value(p.Inclusive)
			for _, c := range children {
				v = v.Sub(c.Value(p.Inclusive))
			}
			if v.IsZero() {
				v = metric.None
			}
			s.SetValue(p.Exclusive, v)
		}
		return scope.Continue
	}, nil)
}
