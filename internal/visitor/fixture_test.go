package visitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
	"github.com/coral-mesh/calltree/internal/testutil"
)

const (
	slotE = 0
	slotI = 1
)

// fixture is a calling context tree with one ordinary exclusive/inclusive
// pair in slots 0 and 1.
type fixture struct {
	t       *testing.T
	tree    *scope.Tree
	metrics *metric.Table
	cct     scope.ID
	next    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics := metric.NewTable(
		metric.NewOrdinary("0", "time (E)", metric.TypeExclusive, slotI, metric.AnnotationPercent),
		metric.NewOrdinary("1", "time (I)", metric.TypeInclusive, slotE, metric.AnnotationPercent),
	)
	tree := scope.NewTree(metrics.Len())
	inv := tree.NewRoot("experiment", scope.RootInvisible)
	cct := tree.MustAdd(inv, scope.Spec{
		Name:     "cct",
		Kind:     scope.KindRoot,
		RootType: scope.RootCallingContextTree,
		CCTIndex: 1,
		Source:   scope.NoID,
	})
	return &fixture{t: t, tree: tree, metrics: metrics, cct: cct, next: 2}
}

// add creates a scope with an exclusive cost (0 for none).
func (f *fixture) add(parent scope.ID, name string, kind scope.Kind, excl float64) scope.ID {
	f.t.Helper()
	id, err := f.tree.Add(parent, scope.Spec{
		Name:     name,
		Kind:     kind,
		File:     name + ".go",
		CCTIndex: f.next,
		Source:   scope.NoID,
	})
	require.NoError(f.t, err)
	f.next++
	f.tree.Get(id).SetValue(slotE, metric.FromFloat(excl))
	return id
}

func (f *fixture) call(parent scope.ID, name string, excl float64) scope.ID {
	f.t.Helper()
	kind := scope.KindCallSite
	if parent == f.cct {
		kind = scope.KindProcedure
	}
	return f.add(parent, name, kind, excl)
}

// process runs the calling context passes.
func (f *fixture) process() {
	Inclusive(f.tree, f.metrics, f.cct)
	Exclusive(f.tree, f.metrics, f.cct)
	CopyPartners(f.tree, f.metrics, f.cct, testutil.NewTestLogger())
	Percent(f.tree, f.metrics, f.cct)
}

func (f *fixture) value(id scope.ID, slot int) float64 {
	f.t.Helper()
	s := f.tree.Get(id)
	require.NotNil(f.t, s)
	return s.Value(slot).Float()
}

// child returns the child of parent with the given name.
func (f *fixture) child(parent scope.ID, name string) scope.ID {
	f.t.Helper()
	for _, c := range f.tree.Children(parent) {
		if c.Name() == name {
			return c.ID()
		}
	}
	require.Failf(f.t, "missing child", "%s has no child %s", f.tree.Get(parent).Name(), name)
	return scope.NoID
}
