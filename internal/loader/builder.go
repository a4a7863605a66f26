package loader

import (
	"fmt"
	"strconv"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/calltree/internal/experiment"
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
	"github.com/coral-mesh/calltree/internal/threaddata"
)

const (
	experimentRootName = "Experiment"
	cctRootName        = "Experiment Aggregate Metrics"
)

type stackFrame struct {
	name string
	file string
	line int
}

type nodeKey struct {
	parent scope.ID
	kind   scope.Kind
	hash   uint64
}

type builder struct {
	profiles []*profile.Profile
	labels   []string
	logger   zerolog.Logger
	types    []*profile.ValueType

	tree    *scope.Tree
	root    scope.ID
	cct     scope.ID
	nodes   map[nodeKey]scope.ID
	nextCCT int

	// exclusive cost per thread, scope and sample type
	exclusive []map[scope.ID][]float64
}

func newBuilder(profiles []*profile.Profile, labels []string, logger zerolog.Logger) (*builder, error) {
	types := profiles[0].SampleType
	if len(types) == 0 {
		return nil, fmt.Errorf("%s: profile has no sample types", labels[0])
	}
	for i, p := range profiles[1:] {
		if len(p.SampleType) != len(types) {
			return nil, fmt.Errorf("%s: %d sample types, expected %d", labels[i+1], len(p.SampleType), len(types))
		}
		for j, st := range p.SampleType {
			if st.Type != types[j].Type {
				return nil, fmt.Errorf("%s: sample type %d is %q, expected %q", labels[i+1], j, st.Type, types[j].Type)
			}
		}
	}
	return &builder{
		profiles:  profiles,
		labels:    labels,
		logger:    logger,
		types:     types,
		nodes:     make(map[nodeKey]scope.ID),
		exclusive: make([]map[scope.ID][]float64, len(profiles)),
	}, nil
}

func (b *builder) build(name string, opts []experiment.Option) (*Result, error) {
	n := len(b.types)
	b.tree = scope.NewTree(2 * n)
	b.root = b.tree.NewRoot(experimentRootName, scope.RootInvisible)
	b.nextCCT = 1
	b.cct = b.tree.MustAdd(b.root, scope.Spec{
		Name:     cctRootName,
		Kind:     scope.KindRoot,
		RootType: scope.RootCallingContextTree,
		CCTIndex: b.next(),
		Source:   scope.NoID,
	})

	for t, p := range b.profiles {
		b.exclusive[t] = make(map[scope.ID][]float64)
		for _, s := range p.Sample {
			b.addSample(t, s)
		}
	}
	b.storeTotals()

	metrics, raw := b.metricTables()
	threads, err := b.threadData()
	if err != nil {
		return nil, err
	}

	all := append([]experiment.Option{
		experiment.WithName(name),
		experiment.WithRawMetrics(raw),
		experiment.WithLogger(b.logger),
	}, opts...)
	e, err := experiment.New(b.tree, b.root, metrics, all...)
	if err != nil {
		return nil, err
	}
	e.SetThreadData(threads)

	b.logger.Debug().
		Int("threads", len(b.profiles)).
		Int("scopes", b.tree.Len()).
		Int("sample_types", n).
		Msg("Loaded profiles")
	return &Result{Experiment: e, Threads: threads}, nil
}

func (b *builder) next() int {
	c := b.nextCCT
	b.nextCCT++
	return c
}

// stack returns the frames of a sample from the outermost caller down,
// inlined functions expanded.
func stack(s *profile.Sample) []stackFrame {
	var frames []stackFrame
	for i := len(s.Location) - 1; i >= 0; i-- {
		loc := s.Location[i]
		if len(loc.Line) == 0 {
			frames = append(frames, stackFrame{name: fmt.Sprintf("0x%x", loc.Address)})
			continue
		}
		for j := len(loc.Line) - 1; j >= 0; j-- {
			ln := loc.Line[j]
			f := stackFrame{line: int(ln.Line)}
			if ln.Function != nil {
				f.name, f.file = ln.Function.Name, ln.Function.Filename
			}
			frames = append(frames, f)
		}
	}
	return frames
}

func (b *builder) addSample(thread int, s *profile.Sample) {
	frames := stack(s)
	if len(frames) == 0 {
		return
	}
	parent := b.cct
	for _, f := range frames {
		kind := scope.KindCallSite
		if parent == b.cct {
			kind = scope.KindProcedure
		}
		parent = b.node(parent, kind, f)
	}
	// Self cost belongs to the leaf frame so that procedure rows of the
	// callers and flat views carry it.
	costs := b.exclusive[thread][parent]
	if costs == nil {
		costs = make([]float64, len(b.types))
		b.exclusive[thread][parent] = costs
	}
	for i := range b.types {
		if i < len(s.Value) {
			costs[i] += float64(s.Value[i])
		}
	}
}

func (b *builder) node(parent scope.ID, kind scope.Kind, f stackFrame) scope.ID {
	key := nodeKey{parent: parent, kind: kind, hash: xxh3.HashString(f.name + "\x00" + f.file)}
	if id, ok := b.nodes[key]; ok {
		return id
	}
	id := b.tree.MustAdd(parent, scope.Spec{
		Name:     f.name,
		Kind:     kind,
		File:     f.file,
		Line:     f.line,
		CCTIndex: b.next(),
		Source:   scope.NoID,
	})
	b.nodes[key] = id
	return id
}

// storeTotals sums exclusive cost over threads into the stored columns.
// Inclusive columns are left to postprocessing.
func (b *builder) storeTotals() {
	totals := make(map[scope.ID][]float64)
	for _, perScope := range b.exclusive {
		for id, costs := range perScope {
			sum := totals[id]
			if sum == nil {
				sum = make([]float64, len(b.types))
				totals[id] = sum
			}
			for i, c := range costs {
				sum[i] += c
			}
		}
	}
	for id, sum := range totals {
		s := b.tree.Get(id)
		for i, v := range sum {
			s.SetValue(2*i, metric.FromFloat(v))
		}
	}
}

func typeName(vt *profile.ValueType) string {
	if vt.Unit == "" || vt.Unit == "count" {
		return vt.Type
	}
	return fmt.Sprintf("%s (%s)", vt.Type, vt.Unit)
}

// metricTables returns one exclusive/inclusive pair per sample type, both as
// stored columns and as thread-level metrics.
func (b *builder) metricTables() (*metric.Table, *metric.Table) {
	n := len(b.types)
	metrics := metric.NewTable()
	raw := metric.NewTable()
	for i, vt := range b.types {
		excl, incl := 2*i, 2*i+1
		name := typeName(vt)

		e := metric.NewOrdinary(strconv.Itoa(excl), name+" (E)", metric.TypeExclusive, incl, metric.AnnotationPercent)
		in := metric.NewOrdinary(strconv.Itoa(incl), name+" (I)", metric.TypeInclusive, excl, metric.AnnotationPercent)
		e.NativeName, in.NativeName = vt.Type, vt.Type
		e.SamplePeriod = b.samplePeriod(vt)
		in.SamplePeriod = e.SamplePeriod
		metrics.Add(e)
		metrics.Add(in)

		re := metric.NewRaw(excl, name+" (E)", "", excl, incl, metric.TypeExclusive, 2*n)
		ri := metric.NewRaw(incl, name+" (I)", "", incl, excl, metric.TypeInclusive, 2*n)
		re.SetRawPartner(ri)
		ri.SetRawPartner(re)
		raw.Add(re)
		raw.Add(ri)
	}
	return metrics, raw
}

// samplePeriod is the profile period when vt is the sampled type. Other
// types count events and have a period of 1.
func (b *builder) samplePeriod(vt *profile.ValueType) float64 {
	p := b.profiles[0]
	if p.PeriodType == nil || p.PeriodType.Type != vt.Type || p.Period <= 0 {
		period, _ := metric.ParseSamplePeriod("", 'e')
		return period
	}
	period, ok := metric.ParseSamplePeriod(strconv.FormatInt(p.Period, 10), 0)
	if !ok {
		b.logger.Warn().Int64("period", p.Period).Str("type", vt.Type).Msg("Unparsable sample period")
	}
	return period
}

// threadData records every thread's exclusive and inclusive cost per scope.
func (b *builder) threadData() (*threaddata.Memory, error) {
	mem := threaddata.NewMemory(b.labels...)
	for t, perScope := range b.exclusive {
		inclusive := make(map[scope.ID][]float64)
		var err error
		b.tree.PostOrder(b.cct, func(s *scope.Scope) {
			incl := make([]float64, len(b.types))
			if costs, ok := perScope[s.ID()]; ok {
				copy(incl, costs)
			}
			for _, c := range s.ChildIDs() {
				for i, v := range inclusive[c] {
					incl[i] += v
				}
			}
			inclusive[s.ID()] = incl
			for i := range b.types {
				if costs, ok := perScope[s.ID()]; ok && costs[i] != 0 && err == nil {
					err = mem.Set(t, 2*i, s.CCTIndex(), costs[i])
				}
				if incl[i] != 0 && err == nil {
					err = mem.Set(t, 2*i+1, s.CCTIndex(), incl[i])
				}
			}
		})
		if err != nil {
			return nil, fmt.Errorf("thread %s: %w", b.labels[t], err)
		}
	}
	return mem, nil
}
