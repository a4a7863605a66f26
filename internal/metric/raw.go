package metric

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// ThreadData supplies thread-level (raw) metric values. Implementations may
// perform blocking reads.
type ThreadData interface {
	// Metrics returns one value per thread for the scope at cctIndex.
	Metrics(ctx context.Context, cctIndex, metric, numMetrics int) ([]float64, error)
	// ScopeMetrics returns one value per CCT scope of a thread; the value of
	// the scope at cctIndex is at position cctIndex-1.
	ScopeMetrics(ctx context.Context, thread, metric, numMetrics int) ([]float64, error)
}

type rawState struct {
	id         int
	glob       string
	numMetrics int
	data       ThreadData
	partner    *Metric
	logger     zerolog.Logger
	onError    func(error)

	threads []int

	// whole-thread cache used when exactly one thread is selected
	cacheThread int
	cache       []float64

	// root value memo for percent annotation, valid for one selection
	root      Value
	rootKnown bool
}

// NewRaw creates a thread-level metric. id is the identifier of the metric
// in the thread database and rawIndex its position among raw metrics.
func NewRaw(id int, displayName, glob string, rawIndex, partner int, typ Type, numMetrics int) *Metric {
	m := newMetric(KindRaw, fmt.Sprintf("%d", id), displayName, typ, partner, AnnotationPercent)
	m.Index = rawIndex
	m.raw = &rawState{
		id:          id,
		glob:        glob,
		numMetrics:  numMetrics,
		logger:      zerolog.Nop(),
		cacheThread: -1,
	}
	return m
}

// RawID returns the thread database id of a raw metric, -1 for other kinds.
func (m *Metric) RawID() int {
	if m.raw == nil {
		return -1
	}
	return m.raw.id
}

// Glob returns the file pattern of the raw metric database.
func (m *Metric) Glob() string {
	if m.raw == nil {
		return ""
	}
	return m.raw.glob
}

// SetThreadData injects the provider of a raw metric.
func (m *Metric) SetThreadData(d ThreadData) {
	if m.raw == nil {
		return
	}
	m.raw.data = d
	m.raw.invalidate()
}

// SetRawLogger sets the logger used to report provider failures.
func (m *Metric) SetRawLogger(l zerolog.Logger) {
	if m.raw != nil {
		m.raw.logger = l
	}
}

// SetRawErrorHook registers a callback invoked on each provider failure.
func (m *Metric) SetRawErrorHook(fn func(error)) {
	if m.raw != nil {
		m.raw.onError = fn
	}
}

// SetRawPartner links a raw metric to its raw partner (exclusive to
// inclusive). It is used for root-level fallbacks.
func (m *Metric) SetRawPartner(p *Metric) {
	if m.raw != nil {
		m.raw.partner = p
	}
}

// RawPartner returns the linked raw partner, if any.
func (m *Metric) RawPartner() *Metric {
	if m.raw == nil {
		return nil
	}
	return m.raw.partner
}

// SetThreads selects the threads whose values are resolved. A new selection
// implies a new root baseline, so the memo and caches are dropped.
func (m *Metric) SetThreads(threads []int) {
	if m.raw == nil {
		return
	}
	m.raw.threads = slices.Clone(threads)
	m.raw.invalidate()
}

// Threads returns the current selection.
func (m *Metric) Threads() []int {
	if m.raw == nil {
		return nil
	}
	return slices.Clone(m.raw.threads)
}

func (r *rawState) invalidate() {
	r.cache = nil
	r.cacheThread = -1
	r.root = None
	r.rootKnown = false
}

func (r *rawState) duplicate() *rawState {
	return &rawState{
		id:          r.id,
		glob:        r.glob,
		numMetrics:  r.numMetrics,
		data:        r.data,
		logger:      r.logger,
		onError:     r.onError,
		cacheThread: -1,
	}
}

func (m *Metric) rawValue(ctx context.Context, src Source) Value {
	r := m.raw
	if r == nil || r.data == nil || len(r.threads) == 0 {
		return None
	}

	var v Value
	if origins := src.Origins(); origins != nil {
		v = m.fetchOrigins(ctx, origins, r.threads)
	} else {
		v = m.fetch(ctx, src.CCTIndex(), src.IsRoot(), r.threads)
	}

	if !r.rootKnown && v.IsAvailable() {
		switch {
		case src.IsRoot():
			r.root, r.rootKnown = v, true
		case m.Type != TypeExclusive:
			r.root, r.rootKnown = m.fetch(ctx, src.RootCCTIndex(), true, r.threads), true
		case r.partner != nil:
			r.root, r.rootKnown = r.partner.fetch(ctx, src.RootCCTIndex(), true, r.threads), true
		}
	}

	if r.rootKnown && r.root.IsAvailable() && !r.root.IsZero() && v.IsAvailable() {
		v = v.WithAnnotation(v.Float() / r.root.Float())
	}
	return v
}

// fetchOrigins sums the values of the calling contexts behind a derived
// view scope.
func (m *Metric) fetchOrigins(ctx context.Context, origins []Origin, threads []int) Value {
	sum := None
	for _, o := range origins {
		from := m
		switch m.Type {
		case TypeInclusive:
			if !o.Inclusive {
				continue
			}
		case TypeExclusive:
			if !o.Exclusive {
				continue
			}
			if o.Callee {
				if from = m.raw.partner; from == nil {
					continue
				}
			}
		}
		sum = sum.Add(from.fetch(ctx, o.CCTIndex, false, threads))
	}
	if sum.IsZero() {
		return None
	}
	return sum
}

// fetch resolves the value at a CCT position for a thread selection. An
// exclusive metric with no value at the root falls back to its inclusive
// partner, which is equal there and present even in sparse databases.
func (m *Metric) fetch(ctx context.Context, cct int, isRoot bool, threads []int) Value {
	r := m.raw
	if r == nil || r.data == nil {
		return None
	}

	var (
		v   Value
		err error
	)
	switch {
	case len(threads) > 1:
		v, err = m.average(ctx, cct, threads)
	case len(threads) == 1:
		v, err = m.specific(ctx, cct, threads[0])
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Int("cct", cct).
			Int("metric", r.id).
			Ints("threads", threads).
			Msg("Failed to read thread-level metric")
		if r.onError != nil {
			r.onError(err)
		}
		v = None
	}

	if !v.IsAvailable() && isRoot && m.Type == TypeExclusive && r.partner != nil && r.partner != m {
		v = r.partner.fetch(ctx, cct, isRoot, threads)
	}
	return v
}

// average returns the arithmetic mean over the selected threads, each
// weighted equally.
func (m *Metric) average(ctx context.Context, cct int, threads []int) (Value, error) {
	values, err := m.raw.data.Metrics(ctx, cct, m.raw.id, m.raw.numMetrics)
	if err != nil {
		return None, fmt.Errorf("read metrics of scope %d: %w", cct, err)
	}
	divider := 1.0 / float64(len(threads))
	mean := 0.0
	for _, t := range threads {
		if t < 0 || t >= len(values) {
			return None, fmt.Errorf("thread %d out of range (%d threads)", t, len(values))
		}
		mean += values[t] * divider
	}
	return FromFloat(mean), nil
}

// specific returns the value of one thread. The whole thread row is read
// once and cached for subsequent scopes.
func (m *Metric) specific(ctx context.Context, cct, thread int) (Value, error) {
	r := m.raw
	if r.cache == nil || r.cacheThread != thread {
		values, err := r.data.ScopeMetrics(ctx, thread, r.id, r.numMetrics)
		if err != nil {
			return None, fmt.Errorf("read scope metrics of thread %d: %w", thread, err)
		}
		r.cache, r.cacheThread = values, thread
	}
	idx := cct - 1
	if idx < 0 || idx >= len(r.cache) {
		return None, nil
	}
	return FromFloat(r.cache[idx]), nil
}
