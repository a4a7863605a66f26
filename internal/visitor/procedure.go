// Package visitor implements the passes run over a scope tree: inclusive and
// exclusive computation, partner copy, percent annotation, and the builders
// of the callers and flat views.
package visitor

import (
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/propagation"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Pair is an exclusive/inclusive metric pair that the inclusive pass sums.
type Pair struct {
	Exclusive int
	Inclusive int
}

// Pairs returns the accumulable metric pairs of a table in slot order of
// their inclusive column.
func Pairs(metrics *metric.Table) []Pair {
	f := propagation.InclusiveOnly{Metrics: metrics}
	var pairs []Pair
	for _, m := range metrics.All() {
		if !f.ShouldPropagate(nil, nil, m.Index, m.Index) {
			continue
		}
		p, _ := metrics.Partner(m)
		pairs = append(pairs, Pair{Exclusive: p.Index, Inclusive: m.Index})
	}
	return pairs
}

// ProcedureKey identifies the procedure a frame scope stands for. Two calling
// contexts of the same function in the same file share a key.
func ProcedureKey(s *scope.Scope) uint64 {
	return xxh3.HashString(s.Name() + "\x00" + s.File)
}

// statementKey identifies a loop or line within its enclosing procedure.
func statementKey(s *scope.Scope) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(s.Kind().String())
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(s.Name())
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(s.File)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.Itoa(s.Line))
	return h.Sum64()
}

// NearestFrame returns the closest proper ancestor of id that is a frame,
// skipping loops and lines. It returns nil at the top of the tree.
func NearestFrame(t *scope.Tree, id scope.ID) *scope.Scope {
	for p := t.Parent(id); p != nil; p = t.Parent(p.ID()) {
		if p.IsRoot() {
			return nil
		}
		if p.Kind().IsFrame() {
			return p
		}
	}
	return nil
}
