package visitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/calltree/internal/scope"
)

func (f *fixture) callers() (*Callers, *int) {
	f.t.Helper()
	root, err := f.tree.Add(f.tree.Get(f.cct).ParentID(), scope.Spec{
		Name: "callers", Kind: scope.KindRoot, RootType: scope.RootCallerTree, Source: f.cct,
	})
	require.NoError(f.t, err)
	expansions := 0
	c := NewCallers(f.tree, f.metrics, f.cct, root, func() { expansions++ })
	require.NoError(f.t, c.Build())
	return c, &expansions
}

func TestCallers_TopLevel(t *testing.T) {
	f := newFixture(t)
	a := f.call(f.cct, "a", 10)
	f.call(a, "b", 5)
	c := f.call(f.cct, "c", 2)
	f.call(c, "b", 3)
	f.process()

	cv, _ := f.callers()
	root := cv.Root()
	names := []string{}
	for _, s := range f.tree.Children(root) {
		names = append(names, s.Name())
		assert.Equal(t, scope.KindProcedure, s.Kind())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	b := f.child(root, "b")
	assert.Equal(t, 8.0, f.value(b, slotE))
	assert.Equal(t, 8.0, f.value(b, slotI))
	ann, ok := f.tree.Get(b).Value(slotI).Annotation()
	require.True(t, ok)
	assert.InDelta(t, 0.4, ann, 1e-12)

	fa := f.child(root, "a")
	assert.Equal(t, 10.0, f.value(fa, slotE))
	assert.Equal(t, 15.0, f.value(fa, slotI))

	assert.Equal(t, 20.0, f.value(root, slotI))
	assert.Equal(t, 20.0, f.value(root, slotE))
}

func TestCallers_LazyExpansion(t *testing.T) {
	f := newFixture(t)
	a := f.call(f.cct, "a", 10)
	f.call(a, "b", 5)
	c := f.call(f.cct, "c", 2)
	f.call(c, "b", 3)
	f.process()

	cv, expansions := f.callers()
	b := f.child(cv.Root(), "b")
	fa := f.child(cv.Root(), "a")

	assert.False(t, cv.IsExpanded(b))
	assert.True(t, cv.HasCallers(b))
	assert.False(t, cv.HasCallers(fa), "a is only called from the root")
	assert.Empty(t, f.tree.Children(b), "nothing is materialized before access")

	kids, err := cv.Children(b)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.True(t, cv.IsExpanded(b))
	assert.Equal(t, 1, *expansions)

	byName := map[string]*scope.Scope{}
	for _, k := range kids {
		byName[k.Name()] = k
		assert.Equal(t, scope.KindCallSite, k.Kind())
	}
	assert.Equal(t, 5.0, byName["a"].Value(slotI).Float())
	assert.Equal(t, 5.0, byName["a"].Value(slotE).Float())
	assert.Equal(t, 3.0, byName["c"].Value(slotI).Float())
	assert.Equal(t, a, byName["a"].Source())

	again, err := cv.Children(b)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, *expansions, "expansion is memoized")

	top, err := cv.Children(byName["a"].ID())
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.True(t, cv.IsExpanded(cv.Root()))
}

func TestCallers_RecursionCountedOnce(t *testing.T) {
	f := newFixture(t)
	f1 := f.call(f.cct, "f", 1)
	f2 := f.call(f1, "f", 2)
	f.call(f2, "f", 3)
	f.process()

	cv, _ := f.callers()
	top := f.child(cv.Root(), "f")
	assert.Equal(t, 6.0, f.value(top, slotE), "exclusive cost of every activation")
	assert.Equal(t, 6.0, f.value(top, slotI), "inclusive cost of the outermost activation only")

	kids, err := cv.Children(top)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, 5.0, kids[0].Value(slotE).Float())
	assert.Equal(t, 5.0, kids[0].Value(slotI).Float())

	deeper, err := cv.Children(kids[0].ID())
	require.NoError(t, err)
	require.Len(t, deeper, 1)
	assert.Equal(t, 3.0, deeper[0].Value(slotI).Float())
}

func TestCallers_SkipsLoopsToFindCaller(t *testing.T) {
	f := newFixture(t)
	main := f.call(f.cct, "main", 1)
	loop := f.add(main, "loop", scope.KindLoop, 0)
	f.call(loop, "work", 4)
	f.process()

	cv, _ := f.callers()
	work := f.child(cv.Root(), "work")
	kids, err := cv.Children(work)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "main", kids[0].Name())
	assert.Equal(t, 4.0, kids[0].Value(slotI).Float())
}

func TestCallers_ChildrenOfForeignScope(t *testing.T) {
	f := newFixture(t)
	a := f.call(f.cct, "a", 1)
	f.process()

	cv, _ := f.callers()
	kids, err := cv.Children(f.cct)
	require.NoError(t, err)
	assert.Len(t, kids, 1)
	assert.Equal(t, a, kids[0].ID())
	assert.True(t, cv.IsExpanded(f.cct))
}

func TestCallers_BuildUnknownRoot(t *testing.T) {
	f := newFixture(t)
	c := NewCallers(f.tree, f.metrics, f.cct, 999, nil)
	assert.ErrorIs(t, c.Build(), scope.ErrUnknownScope)
}
