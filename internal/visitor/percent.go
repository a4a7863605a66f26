package visitor

import (
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Percent annotates every stored percent metric of the subtree at root with
// the fraction of root's value. A zero root value leaves the values without
// annotation.
func Percent(t *scope.Tree, metrics *metric.Table, root scope.ID) {
	r := t.Get(root)
	if r == nil {
		return
	}
	t.Walk(root, func(s *scope.Scope, _, _ int) scope.Action {
		Annotate(s, r, metrics)
		return scope.Continue
	}, nil)
}

// Annotate sets the percent annotation of one scope relative to root.
func Annotate(s, root *scope.Scope, metrics *metric.Table) {
	for _, m := range metrics.All() {
		if m.Annotation != metric.AnnotationPercent || m.Kind == metric.KindDerived || m.Kind == metric.KindRaw {
			continue
		}
		v := s.Value(m.Index)
		if !v.IsAvailable() {
			continue
		}
		base := root.Value(m.Index).Float()
		if base == 0 {
			s.SetValue(m.Index, v.WithoutAnnotation())
			continue
		}
		s.SetValue(m.Index, v.WithAnnotation(v.Float()/base))
	}
}
