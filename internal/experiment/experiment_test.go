package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
	cttest "github.com/coral-mesh/calltree/internal/testutil"
	"github.com/coral-mesh/calltree/internal/threaddata"
)

const (
	slotE = 0
	slotI = 1
)

type ExperimentSuite struct {
	suite.Suite
	ctx   context.Context
	reg   *prometheus.Registry
	stats *PipelineMetrics
	exp   *Experiment
	mem   *threaddata.Memory
	ids   map[string]scope.ID
}

func TestExperimentSuite(t *testing.T) {
	suite.Run(t, new(ExperimentSuite))
}

// SetupTest loads
//
//	main(1) -> work(2) -> encode(7)
//	main    -> runtime.gc(4)
//	hpcrun_special_IDLE(6)
//
// with thread-level inclusive values for two threads.
func (s *ExperimentSuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = prometheus.NewRegistry()
	s.stats = NewPipelineMetrics(s.reg)
	s.ids = map[string]scope.ID{}

	metrics := metric.NewTable(
		metric.NewOrdinary("0", "time (E)", metric.TypeExclusive, slotI, metric.AnnotationPercent),
		metric.NewOrdinary("1", "time (I)", metric.TypeInclusive, slotE, metric.AnnotationPercent),
	)
	tree := scope.NewTree(metrics.Len())
	root := tree.NewRoot("Experiment", scope.RootInvisible)
	cct := tree.MustAdd(root, scope.Spec{
		Name: "Aggregate", Kind: scope.KindRoot, RootType: scope.RootCallingContextTree, CCTIndex: 1, Source: scope.NoID,
	})
	s.ids["cct"] = cct
	next := 2
	add := func(parent scope.ID, name string, excl float64) scope.ID {
		kind := scope.KindCallSite
		if parent == cct {
			kind = scope.KindProcedure
		}
		id := tree.MustAdd(parent, scope.Spec{Name: name, Kind: kind, File: "main.go", CCTIndex: next, Source: scope.NoID})
		next++
		tree.Get(id).SetValue(slotE, metric.FromFloat(excl))
		s.ids[name] = id
		return id
	}
	main := add(cct, "main", 1)
	work := add(main, "work", 2)
	add(work, "encode", 7)
	add(main, "runtime.gc", 4)
	add(cct, IdleProcedure, 6)

	rawE := metric.NewRaw(0, "time (E)", "", 0, 1, metric.TypeExclusive, 2)
	rawI := metric.NewRaw(1, "time (I)", "", 1, 0, metric.TypeInclusive, 2)
	rawE.SetRawPartner(rawI)
	rawI.SetRawPartner(rawE)

	exp, err := New(tree, root, metrics,
		WithName("test"),
		WithPipelineMetrics(s.stats),
		WithRawMetrics(metric.NewTable(rawE, rawI)),
	)
	s.Require().NoError(err)

	mem := threaddata.NewMemory("t0", "t1")
	for _, v := range []struct {
		thread, cct int
		value       float64
	}{
		{0, 1, 8}, {1, 1, 32},
		{0, 5, 4}, {1, 5, 10},
	} {
		s.Require().NoError(mem.Set(v.thread, 1, v.cct, v.value))
	}
	exp.SetThreadData(mem)
	s.exp = exp
	s.mem = mem
}

func (s *ExperimentSuite) value(id scope.ID, slot int) float64 {
	return s.valueIn(s.exp, id, slot)
}

func (s *ExperimentSuite) valueIn(exp *Experiment, id scope.ID, slot int) float64 {
	sc, err := exp.Scope(id)
	s.Require().NoError(err)
	return sc.Value(slot).Float()
}

func (s *ExperimentSuite) names(id scope.ID) []string {
	return s.namesIn(s.exp, id)
}

func (s *ExperimentSuite) namesIn(exp *Experiment, id scope.ID) []string {
	kids, err := exp.Children(id)
	s.Require().NoError(err)
	out := make([]string, len(kids))
	for i, k := range kids {
		out[i] = k.Name()
	}
	return out
}

func (s *ExperimentSuite) childNamed(parent scope.ID, name string) *scope.Scope {
	return s.childNamedIn(s.exp, parent, name)
}

func (s *ExperimentSuite) childNamedIn(exp *Experiment, parent scope.ID, name string) *scope.Scope {
	kids, err := exp.Children(parent)
	s.Require().NoError(err)
	for _, k := range kids {
		if k.Name() == name {
			return k
		}
	}
	s.FailNowf("missing child", "no child %s", name)
	return nil
}

func (s *ExperimentSuite) TestNewRejectsSlotMismatch() {
	tree := scope.NewTree(3)
	root := tree.NewRoot("Experiment", scope.RootInvisible)
	_, err := New(tree, root, metric.NewTable())
	s.Error(err)

	_, err = New(tree, 42, metric.NewTable())
	s.ErrorIs(err, scope.ErrUnknownScope)
}

func (s *ExperimentSuite) TestPostprocessComputesValues() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))

	s.Equal(14.0, s.value(s.ids["main"], slotI))
	s.Equal(9.0, s.value(s.ids["work"], slotI))
	s.Equal(1.0, s.value(s.ids["main"], slotE))
	s.Equal(20.0, s.value(s.ids["cct"], slotI))
	s.Equal(20.0, s.value(s.ids["cct"], slotE))

	main, err := s.exp.Scope(s.ids["main"])
	s.Require().NoError(err)
	a, ok := main.Value(slotI).Annotation()
	s.True(ok)
	s.InDelta(0.7, a, 1e-12)
	s.Equal("1.40e+01  70.0%", s.exp.Text(s.ctx, main, s.exp.Metrics().Get(slotI)))
}

func (s *ExperimentSuite) TestPostprocessIsRepeatable() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	callers, err := s.exp.ViewRoot(scope.RootCallerTree)
	s.Require().NoError(err)

	s.Require().NoError(s.exp.Postprocess(s.ctx))
	s.Equal(14.0, s.value(s.ids["main"], slotI))
	s.Equal(20.0, s.value(s.ids["cct"], slotE))

	again, err := s.exp.ViewRoot(scope.RootCallerTree)
	s.Require().NoError(err)
	s.NotEqual(callers, again, "views are rebuilt")
	_, err = s.exp.Scope(callers)
	s.ErrorIs(err, scope.ErrUnknownScope)
}

func (s *ExperimentSuite) TestPostprocessRecordsPhases() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	// inclusive, exclusive, partner, percent, callers
	s.Equal(5, testutil.CollectAndCount(s.stats.PhaseDuration))

	_, err := s.exp.ViewRoot(scope.RootFlat)
	s.Require().NoError(err)
	s.Equal(6, testutil.CollectAndCount(s.stats.PhaseDuration))
}

func (s *ExperimentSuite) TestPostprocessCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.ErrorIs(s.exp.Postprocess(ctx), context.Canceled)
}

func (s *ExperimentSuite) TestCallersView() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	root, err := s.exp.ViewRoot(scope.RootCallerTree)
	s.Require().NoError(err)

	s.Equal([]string{"main", "work", "encode", "runtime.gc", IdleProcedure}, s.names(root))
	s.Equal(20.0, s.value(root, slotI))

	encode := s.childNamed(root, "encode")
	s.True(s.exp.HasChildren(encode.ID()))
	s.Equal(0.0, testutil.ToFloat64(s.stats.CallersExpansions))

	s.Equal([]string{"work"}, s.names(encode.ID()))
	s.Equal(1.0, testutil.ToFloat64(s.stats.CallersExpansions))

	work := s.childNamed(encode.ID(), "work")
	s.Equal(7.0, work.Value(slotI).Float())
	s.Equal([]string{"main"}, s.names(work.ID()))
	s.Equal(2.0, testutil.ToFloat64(s.stats.CallersExpansions))
	s.Equal(s.ids["work"], work.Source())
}

func (s *ExperimentSuite) TestFlatViewIsLazy() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	s.Equal(5, testutil.CollectAndCount(s.stats.PhaseDuration))

	root, err := s.exp.ViewRoot(scope.RootFlat)
	s.Require().NoError(err)
	s.Equal([]string{"main", "work", "encode", "runtime.gc", IdleProcedure}, s.names(root))

	main := s.childNamed(root, "main")
	s.Equal(1.0, main.Value(slotE).Float())
	s.Equal(14.0, main.Value(slotI).Float())
	a, ok := main.Value(slotI).Annotation()
	s.True(ok)
	s.InDelta(0.7, a, 1e-12)
	s.Equal(20.0, s.value(root, slotI))
}

func (s *ExperimentSuite) TestNotCallingContextTreeOnlyAnnotates() {
	metrics := metric.NewTable(metric.NewOrdinary("0", "time", metric.TypeExclusive, metric.PartnerUnknown, metric.AnnotationPercent))
	tree := scope.NewTree(1)
	root := tree.NewRoot("Experiment", scope.RootInvisible)
	flat := tree.MustAdd(root, scope.Spec{Name: "flat", Kind: scope.KindRoot, RootType: scope.RootFlat, Source: scope.NoID})
	tree.Get(flat).SetValue(0, metric.NewValue(10))
	p := tree.MustAdd(flat, scope.Spec{Name: "p", Kind: scope.KindProcedure, Source: scope.NoID})
	tree.Get(p).SetValue(0, metric.NewValue(4))

	exp, err := New(tree, root, metrics)
	s.Require().NoError(err)
	s.Require().NoError(exp.Postprocess(s.ctx))

	a, ok := tree.Get(p).Value(0).Annotation()
	s.True(ok)
	s.InDelta(0.4, a, 1e-12)
	_, err = exp.ViewRoot(scope.RootCallerTree)
	s.Error(err)
	got, err := exp.ViewRoot(scope.RootFlat)
	s.Require().NoError(err)
	s.Equal(flat, got)
	_, err = exp.CCTRoot()
	s.ErrorIs(err, ErrNoCallingContextTree)
	s.ErrorIs(exp.Filter(func(*scope.Scope) bool { return true }), ErrNoCallingContextTree)
}

func (s *ExperimentSuite) TestEmptyExperiment() {
	tree := scope.NewTree(0)
	exp, err := New(tree, tree.NewRoot("Experiment", scope.RootInvisible), metric.NewTable())
	s.Require().NoError(err)
	s.NoError(exp.Postprocess(s.ctx))
}

func (s *ExperimentSuite) TestFilter() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	keep := func(sc *scope.Scope) bool { return sc.Name() != "runtime.gc" }

	s.Require().NoError(s.exp.Filter(keep))

	_, err := s.exp.Scope(s.ids["runtime.gc"])
	s.ErrorIs(err, scope.ErrUnknownScope)
	s.Equal([]string{"work"}, s.names(s.ids["main"]))
	s.Equal(14.0, s.value(s.ids["main"], slotI), "values are not recomputed")

	// every remaining scope of every view passes the predicate
	for _, rt := range []scope.RootType{scope.RootCallingContextTree, scope.RootCallerTree, scope.RootFlat} {
		root, err := s.exp.ViewRoot(rt)
		s.Require().NoError(err)
		var visit func(id scope.ID)
		visit = func(id scope.ID) {
			kids, err := s.exp.Children(id)
			s.Require().NoError(err)
			for _, k := range kids {
				s.True(keep(k), "%s view keeps %s", rt, k.Name())
				visit(k.ID())
			}
		}
		visit(root)
	}

	inv, err := s.exp.ViewRoot(scope.RootInvisible)
	s.Require().NoError(err)
	s.Len(s.names(inv), 3, "cct, callers and flat roots")

	// procedure rows sum the retained contexts
	for rt, want := range map[scope.RootType]map[string][2]float64{
		scope.RootFlat: {
			"main": {1, 10}, "work": {2, 9}, "encode": {7, 7}, IdleProcedure: {6, 6},
		},
		scope.RootCallerTree: {
			"main": {1, 14}, "work": {2, 9}, "encode": {7, 7}, IdleProcedure: {6, 6},
		},
	} {
		root, err := s.exp.ViewRoot(rt)
		s.Require().NoError(err)
		s.ElementsMatch([]string{"main", "work", "encode", IdleProcedure}, s.names(root), "%s view", rt)
		for name, v := range want {
			p := s.childNamed(root, name)
			s.Equal(v[0], p.Value(slotE).Float(), "%s view %s (E)", rt, name)
			s.Equal(v[1], p.Value(slotI).Float(), "%s view %s (I)", rt, name)
		}
	}

	flat, err := s.exp.ViewRoot(scope.RootFlat)
	s.Require().NoError(err)
	s.Equal([]string{"work"}, s.names(s.childNamed(flat, "main").ID()))
	var check func(id scope.ID)
	check = func(id scope.ID) {
		kids, err := s.exp.Children(id)
		s.Require().NoError(err)
		if len(kids) == 0 {
			return
		}
		sum := s.value(id, slotE)
		for _, k := range kids {
			sum += k.Value(slotI).Float()
			check(k.ID())
		}
		s.Equal(sum, s.value(id, slotI), "flat %d: inclusive is exclusive plus children", id)
	}
	for _, p := range s.names(flat) {
		check(s.childNamed(flat, p).ID())
	}
}

func (s *ExperimentSuite) TestHotPath() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	path, found, err := s.exp.HotPath(s.ctx, s.ids["cct"], s.exp.Metrics().Get(slotI), 0.5)
	s.Require().NoError(err)
	s.True(found)

	names := make([]string, len(path))
	for i, sc := range path {
		names[i] = sc.Name()
	}
	s.Equal([]string{"Aggregate", "main", "work", "encode"}, names)

	_, _, err = s.exp.HotPath(s.ctx, 999, s.exp.Metrics().Get(slotI), 0.5)
	s.ErrorIs(err, scope.ErrUnknownScope)
}

func (s *ExperimentSuite) TestDisplayNameUsesAliases() {
	idle, err := s.exp.Scope(s.ids[IdleProcedure])
	s.Require().NoError(err)
	s.Equal("... IDLE ...", s.exp.DisplayName(idle))

	s.exp.Aliases().Put("main", "entry")
	main, err := s.exp.Scope(s.ids["main"])
	s.Require().NoError(err)
	s.Equal("entry", s.exp.DisplayName(main))
}

func (s *ExperimentSuite) TestDerivedMetric() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	callers, err := s.exp.ViewRoot(scope.RootCallerTree)
	s.Require().NoError(err)

	m, err := s.exp.AddDerivedMetric("double", "$1 * 2.0", true)
	s.Require().NoError(err)
	s.Equal(2, m.Index)
	s.Equal(3, s.exp.MetricCount())
	s.Equal(3, s.exp.Tree().MetricCount())

	main, err := s.exp.Scope(s.ids["main"])
	s.Require().NoError(err)
	v := s.exp.Value(s.ctx, main, m)
	s.Equal(28.0, v.Float())
	a, ok := v.Annotation()
	s.True(ok)
	s.InDelta(0.7, a, 1e-12)

	// views created before the metric carry the slot as well
	top := s.childNamed(callers, "main")
	s.Len(top.Values(), 3)
	s.Equal(28.0, s.exp.Value(s.ctx, top, m).Float())

	_, err = s.exp.AddDerivedMetric("bad", "$1 *", false)
	s.ErrorIs(err, metric.ErrInvalidExpression)
	s.Equal(3, s.exp.MetricCount())
}

func (s *ExperimentSuite) TestRawMetricsFollowThreadSelection() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	rawI := s.exp.RawMetrics().Get(1)
	gc, err := s.exp.Scope(s.ids["runtime.gc"])
	s.Require().NoError(err)

	s.Equal(metric.None, s.exp.Value(s.ctx, gc, rawI), "no selection")

	s.exp.SetThreads([]int{0, 1})
	s.Equal([]int{0, 1}, s.exp.Threads())
	v := s.exp.Value(s.ctx, gc, rawI)
	s.Equal(7.0, v.Float())
	a, ok := v.Annotation()
	s.True(ok)
	s.InDelta(0.35, a, 1e-12)

	s.exp.SetThreads([]int{1})
	v = s.exp.Value(s.ctx, gc, rawI)
	s.Equal(10.0, v.Float())
	a, _ = v.Annotation()
	s.InDelta(0.3125, a, 1e-12)

	root, err := s.exp.Scope(s.ids["cct"])
	s.Require().NoError(err)
	s.Equal(32.0, s.exp.Value(s.ctx, root, s.exp.RawMetrics().Get(0)).Float(), "exclusive root falls back to inclusive")

	labels, err := s.exp.RankLabels(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"t0", "t1"}, labels)
}

func (s *ExperimentSuite) TestRawMetricsFromStore() {
	s.exp.SetThreadData(cttest.NewTestStore(s.T(), s.mem))
	s.exp.SetThreads([]int{0, 1})
	gc, err := s.exp.Scope(s.ids["runtime.gc"])
	s.Require().NoError(err)

	v := s.exp.Value(s.ctx, gc, s.exp.RawMetrics().Get(1))
	s.Equal(7.0, v.Float())
	a, ok := v.Annotation()
	s.True(ok)
	s.InDelta(0.35, a, 1e-12)
	s.Zero(testutil.ToFloat64(s.stats.RawFetchErrors))
}

type failingProvider struct{}

func (failingProvider) Metrics(context.Context, int, int, int) ([]float64, error) {
	return nil, errors.New("database gone")
}

func (failingProvider) ScopeMetrics(context.Context, int, int, int) ([]float64, error) {
	return nil, errors.New("database gone")
}

func (failingProvider) RankLabels(context.Context) ([]string, error) {
	return nil, errors.New("database gone")
}

func (s *ExperimentSuite) TestRawFetchErrorsAreCounted() {
	s.exp.SetThreadData(failingProvider{})
	s.exp.SetThreads([]int{0, 1})
	gc, err := s.exp.Scope(s.ids["runtime.gc"])
	s.Require().NoError(err)

	s.Equal(metric.None, s.exp.Value(s.ctx, gc, s.exp.RawMetrics().Get(1)))
	s.Positive(testutil.ToFloat64(s.stats.RawFetchErrors))

	_, err = s.exp.RankLabels(s.ctx)
	s.Error(err)
}

func (s *ExperimentSuite) TestDuplicate() {
	s.Require().NoError(s.exp.Postprocess(s.ctx))
	s.exp.SetThreads([]int{1})
	dup, err := s.exp.Duplicate()
	s.Require().NoError(err)

	s.NotEqual(s.exp.ID, dup.ID)
	s.Equal(s.exp.Name, dup.Name)
	s.NotSame(s.exp.Tree(), dup.Tree())

	cct, err := dup.CCTRoot()
	s.Require().NoError(err)
	s.Equal(s.ids["cct"], cct)
	main, err := dup.Scope(s.ids["main"])
	s.Require().NoError(err)
	s.Equal(14.0, main.Value(slotI).Float())

	callers, err := dup.ViewRoot(scope.RootCallerTree)
	s.Require().NoError(err)
	gc := s.childNamedIn(dup, callers, "runtime.gc")
	s.Equal(4.0, gc.Value(slotI).Float())
	s.Equal([]string{"main"}, s.namesIn(dup, gc.ID()))
	s.Equal(10.0, dup.Value(s.ctx, gc, dup.RawMetrics().Get(1)).Float())

	flat, err := dup.ViewRoot(scope.RootFlat)
	s.Require().NoError(err)
	s.Equal(9.0, s.childNamedIn(dup, flat, "work").Value(slotI).Float())

	inv, err := dup.ViewRoot(scope.RootInvisible)
	s.Require().NoError(err)
	s.Len(s.namesIn(dup, inv), 3, "cct, callers and flat roots")

	// the copy postprocesses on its own
	dup.Tree().Get(s.ids["encode"]).SetValue(slotE, metric.FromFloat(17))
	s.Require().NoError(dup.Postprocess(s.ctx))
	s.Equal(24.0, main.Value(slotI).Float())
	s.Equal(14.0, s.value(s.ids["main"], slotI))
	s.Len(s.namesIn(dup, inv), 3)

	s.Require().NoError(dup.Filter(func(sc *scope.Scope) bool { return sc.Name() != "work" }))
	s.Equal([]string{"work", "runtime.gc"}, s.names(s.ids["main"]))

	s.Equal(s.exp.MetricCount(), dup.MetricCount())
	s.NotSame(s.exp.Metrics().Get(0), dup.Metrics().Get(0))
	s.Equal(s.exp.Metrics().Get(0).DisplayName, dup.Metrics().Get(0).DisplayName)
	s.NotSame(s.exp.RawMetrics().Get(0), dup.RawMetrics().Get(0))
	s.Same(dup.RawMetrics().Get(1), dup.RawMetrics().Get(0).RawPartner())
	s.Equal([]int{1}, dup.Threads())
	s.Equal([]int{1}, dup.RawMetrics().Get(1).Threads())

	dup.Aliases().Put("main", "entry")
	s.Equal("main", s.exp.Aliases().Resolve("main"))

	labels, err := dup.RankLabels(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"t0", "t1"}, labels)
}

func (s *ExperimentSuite) TestDuplicateBeforePostprocess() {
	dup, err := s.exp.Duplicate()
	s.Require().NoError(err)
	_, err = dup.ViewRoot(scope.RootCallerTree)
	s.ErrorIs(err, scope.ErrUnknownScope)

	s.Require().NoError(dup.Postprocess(s.ctx))
	s.Equal(14.0, s.valueIn(dup, s.ids["main"], slotI))
	s.Equal(metric.None, s.exp.Tree().Get(s.ids["main"]).Value(slotI), "original untouched")
}

// TestRawMetricsOnDerivedViews loads
//
//	main(1) -> f(4)
//	main    -> g(2) -> f(6)
//
// so that f is reached from two calling contexts.
func TestRawMetricsOnDerivedViews(t *testing.T) {
	ctx := context.Background()
	metrics := metric.NewTable(
		metric.NewOrdinary("0", "time (E)", metric.TypeExclusive, slotI, metric.AnnotationPercent),
		metric.NewOrdinary("1", "time (I)", metric.TypeInclusive, slotE, metric.AnnotationPercent),
	)
	tree := scope.NewTree(metrics.Len())
	root := tree.NewRoot("Experiment", scope.RootInvisible)
	cct := tree.MustAdd(root, scope.Spec{
		Name: "Aggregate", Kind: scope.KindRoot, RootType: scope.RootCallingContextTree, CCTIndex: 1, Source: scope.NoID,
	})
	add := func(parent scope.ID, name string, kind scope.Kind, index int, excl float64) scope.ID {
		id := tree.MustAdd(parent, scope.Spec{Name: name, Kind: kind, File: "main.go", CCTIndex: index, Source: scope.NoID})
		tree.Get(id).SetValue(slotE, metric.FromFloat(excl))
		return id
	}
	main := add(cct, "main", scope.KindProcedure, 2, 1)
	add(main, "f", scope.KindCallSite, 3, 4)
	g := add(main, "g", scope.KindCallSite, 4, 2)
	add(g, "f", scope.KindCallSite, 5, 6)

	rawE := metric.NewRaw(0, "time (E)", "", 0, 1, metric.TypeExclusive, 2)
	rawI := metric.NewRaw(1, "time (I)", "", 1, 0, metric.TypeInclusive, 2)
	rawE.SetRawPartner(rawI)
	rawI.SetRawPartner(rawE)
	exp, err := New(tree, root, metrics, WithRawMetrics(metric.NewTable(rawE, rawI)))
	require.NoError(t, err)
	require.NoError(t, exp.Postprocess(ctx))

	// the second thread spent twice as much everywhere
	mem := threaddata.NewMemory("t0", "t1")
	for thread, scale := range []float64{1, 2} {
		for cctIndex, v := range map[int]float64{2: 1, 3: 4, 4: 2, 5: 6} {
			require.NoError(t, mem.Set(thread, 0, cctIndex, v*scale))
		}
		for cctIndex, v := range map[int]float64{1: 13, 2: 13, 3: 4, 4: 8, 5: 6} {
			require.NoError(t, mem.Set(thread, 1, cctIndex, v*scale))
		}
	}
	exp.SetThreadData(mem)
	exp.SetThreads([]int{0})

	child := func(parent scope.ID, name string) *scope.Scope {
		t.Helper()
		kids, err := exp.Children(parent)
		require.NoError(t, err)
		for _, k := range kids {
			if k.Name() == name {
				return k
			}
		}
		require.FailNowf(t, "missing child", "no child %s", name)
		return nil
	}
	raw := func(s *scope.Scope) [2]float64 {
		return [2]float64{exp.Value(ctx, s, rawE).Float(), exp.Value(ctx, s, rawI).Float()}
	}

	flat, err := exp.ViewRoot(scope.RootFlat)
	require.NoError(t, err)
	f := child(flat, "f")
	require.Equal(t, 10.0, f.Value(slotI).Float())
	require.Equal(t, [2]float64{10, 10}, raw(f), "flat f sums both contexts")
	a, ok := exp.Value(ctx, f, rawI).Annotation()
	require.True(t, ok)
	require.InDelta(t, 10.0/13, a, 1e-12)

	flatMain := child(flat, "main")
	require.Equal(t, [2]float64{1, 13}, raw(flatMain))
	require.Equal(t, [2]float64{4, 4}, raw(child(flatMain.ID(), "f")), "call site carries the callee cost")
	require.Equal(t, [2]float64{8, 8}, raw(child(flatMain.ID(), "g")))
	require.Equal(t, [2]float64{6, 6}, raw(child(child(flat, "g").ID(), "f")))

	callers, err := exp.ViewRoot(scope.RootCallerTree)
	require.NoError(t, err)
	cf := child(callers, "f")
	require.Equal(t, [2]float64{10, 10}, raw(cf), "callers f sums both contexts")
	require.Equal(t, 4.0, exp.Value(ctx, child(cf.ID(), "main"), rawI).Float())
	require.Equal(t, 6.0, exp.Value(ctx, child(cf.ID(), "g"), rawI).Float())

	exp.SetThreads([]int{0, 1})
	require.Equal(t, [2]float64{15, 15}, raw(f))
	callersRoot, err := exp.Scope(callers)
	require.NoError(t, err)
	require.Equal(t, [2]float64{19.5, 19.5}, raw(callersRoot), "derived roots read the CCT root")
}

func TestAliasMap(t *testing.T) {
	a := NewAliasMap()
	require.Equal(t, 1, a.Len())
	require.Equal(t, "... IDLE ...", a.Resolve(IdleProcedure))
	require.Equal(t, "other", a.Resolve("other"))

	c := a.Clone()
	c.Put("x", "y")
	require.Equal(t, 1, a.Len())
	require.Equal(t, 2, c.Len())
}
