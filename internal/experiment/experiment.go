// Package experiment orchestrates the processing of one profiled run: it
// owns the scope arena, the metric tables and the thread-level data, derives
// the callers and flat views from the calling context tree, and filters.
//
// An Experiment is not safe for concurrent use.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/scope"
	"github.com/coral-mesh/calltree/internal/visitor"
)

// ErrNoCallingContextTree is returned by operations that need a calling
// context tree when the experiment has none.
var ErrNoCallingContextTree = errors.New("experiment has no calling context tree")

// ThreadProvider supplies thread-level metric values and the labels of the
// threads (ranks) they were recorded on.
type ThreadProvider interface {
	metric.ThreadData
	RankLabels(ctx context.Context) ([]string, error)
}

// Experiment is one loaded profile with its views.
type Experiment struct {
	ID   uuid.UUID
	Name string

	tree    *scope.Tree
	root    scope.ID
	metrics *metric.Table
	raw     *metric.Table
	data    ThreadProvider
	threads []int

	aliases *AliasMap
	base    zerolog.Logger
	logger  zerolog.Logger
	stats   *PipelineMetrics

	callers     *visitor.Callers
	callersRoot scope.ID
	flatRoot    scope.ID
	flatBuilt   bool
}

// Option configures an Experiment.
type Option func(*Experiment)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithPipelineMetrics sets the collectors the pipeline reports to.
func WithPipelineMetrics(m *PipelineMetrics) Option {
	return func(e *Experiment) { e.stats = m }
}

// WithAliases sets the procedure alias map.
func WithAliases(a *AliasMap) Option {
	return func(e *Experiment) { e.aliases = a }
}

// WithRawMetrics sets the thread-level metric descriptors.
func WithRawMetrics(raw *metric.Table) Option {
	return func(e *Experiment) { e.raw = raw }
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(e *Experiment) { e.Name = name }
}

// New creates an experiment over a loaded tree. root is the invisible root
// whose children are the view roots; metrics must describe exactly the
// value slots of tree.
func New(tree *scope.Tree, root scope.ID, metrics *metric.Table, opts ...Option) (*Experiment, error) {
	r := tree.Get(root)
	if r == nil {
		return nil, fmt.Errorf("experiment root %d: %w", root, scope.ErrUnknownScope)
	}
	if tree.MetricCount() != metrics.Len() {
		return nil, fmt.Errorf("tree has %d metric slots, table describes %d", tree.MetricCount(), metrics.Len())
	}
	e := &Experiment{
		ID:          uuid.New(),
		tree:        tree,
		root:        root,
		metrics:     metrics,
		raw:         metric.NewTable(),
		aliases:     NewAliasMap(),
		logger:      zerolog.Nop(),
		callersRoot: scope.NoID,
		flatRoot:    scope.NoID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stats == nil {
		e.stats = NewPipelineMetrics(nil)
	}
	e.base = e.logger
	e.logger = e.base.With().Str("experiment", e.ID.String()).Logger()
	for _, issue := range metrics.CheckPartners() {
		e.logger.Debug().
			Str("metric", issue.Metric.ShortName).
			Msg("Partner metadata ignored: " + issue.Message)
	}
	return e, nil
}

// Tree returns the scope arena.
func (e *Experiment) Tree() *scope.Tree { return e.tree }

// Root returns the invisible experiment root.
func (e *Experiment) Root() scope.ID { return e.root }

// Metrics returns the metric columns.
func (e *Experiment) Metrics() *metric.Table { return e.metrics }

// MetricCount returns the number of metric columns.
func (e *Experiment) MetricCount() int { return e.metrics.Len() }

// RawMetrics returns the thread-level metric descriptors.
func (e *Experiment) RawMetrics() *metric.Table { return e.raw }

// Aliases returns the procedure alias map.
func (e *Experiment) Aliases() *AliasMap { return e.aliases }

// Logger returns the experiment logger.
func (e *Experiment) Logger() zerolog.Logger { return e.logger }

// CCTRoot returns the calling context tree root.
func (e *Experiment) CCTRoot() (scope.ID, error) {
	id := e.tree.CCTRoot()
	if e.tree.Get(id) == nil {
		return scope.NoID, ErrNoCallingContextTree
	}
	return id, nil
}

// ViewRoot returns the root of a view. The flat view is populated on first
// request.
func (e *Experiment) ViewRoot(rt scope.RootType) (scope.ID, error) {
	switch rt {
	case scope.RootCallingContextTree:
		return e.CCTRoot()
	case scope.RootCallerTree:
		if e.tree.Get(e.callersRoot) != nil {
			return e.callersRoot, nil
		}
	case scope.RootFlat:
		if e.tree.Get(e.flatRoot) != nil {
			if err := e.ensureFlat(); err != nil {
				return scope.NoID, err
			}
			return e.flatRoot, nil
		}
		// flat-only experiments carry their flat root as loaded
		for _, c := range e.tree.Children(e.root) {
			if c.RootType() == scope.RootFlat {
				return c.ID(), nil
			}
		}
	case scope.RootInvisible:
		return e.root, nil
	}
	return scope.NoID, fmt.Errorf("%s view: %w", rt, scope.ErrUnknownScope)
}

// Scope returns a live scope.
func (e *Experiment) Scope(id scope.ID) (*scope.Scope, error) {
	s := e.tree.Get(id)
	if s == nil {
		return nil, fmt.Errorf("scope %d: %w", id, scope.ErrUnknownScope)
	}
	return s, nil
}

// Parent returns the parent of id, nil at the top.
func (e *Experiment) Parent(id scope.ID) *scope.Scope {
	return e.tree.Parent(id)
}

// Children returns the children of id. Callers-view scopes are expanded and
// the flat view is populated on first access.
func (e *Experiment) Children(id scope.ID) ([]*scope.Scope, error) {
	if id == e.flatRoot {
		if err := e.ensureFlat(); err != nil {
			return nil, err
		}
	}
	if e.callers != nil {
		return e.callers.Children(id)
	}
	if e.tree.Get(id) == nil {
		return nil, fmt.Errorf("children of %d: %w", id, scope.ErrUnknownScope)
	}
	return e.tree.Children(id), nil
}

// HasChildren reports whether id has (or would have, once expanded)
// children.
func (e *Experiment) HasChildren(id scope.ID) bool {
	if id == e.flatRoot && !e.flatBuilt {
		return true
	}
	if e.callers != nil {
		return e.callers.HasCallers(id)
	}
	s := e.tree.Get(id)
	return s != nil && s.ChildCount() > 0
}

// IsExpanded reports whether the children of id already exist. Only
// callers-view scopes are materialized on demand.
func (e *Experiment) IsExpanded(id scope.ID) bool {
	return e.callers == nil || e.callers.IsExpanded(id)
}

// DisplayName returns the aliased name of a scope.
func (e *Experiment) DisplayName(s *scope.Scope) string {
	return e.aliases.Resolve(s.Name())
}

// Value resolves the value of metric m at s. Thread-level metrics may block
// on the thread provider.
func (e *Experiment) Value(ctx context.Context, s *scope.Scope, m *metric.Metric) metric.Value {
	return m.ValueContext(ctx, e.tree.Source(s.ID()))
}

// Text returns the formatted value of metric m at s.
func (e *Experiment) Text(ctx context.Context, s *scope.Scope, m *metric.Metric) string {
	return m.TextValue(e.Value(ctx, s, m))
}

// HotPath follows the dominant child from start for metric m.
func (e *Experiment) HotPath(ctx context.Context, start scope.ID, m *metric.Metric, threshold float64) ([]*scope.Scope, bool, error) {
	s, err := e.Scope(start)
	if err != nil {
		return nil, false, err
	}
	var childErr error
	children := func(id scope.ID) []*scope.Scope {
		kids, err := e.Children(id)
		if err != nil && childErr == nil {
			childErr = err
		}
		return kids
	}
	value := func(s *scope.Scope) float64 {
		return e.Value(ctx, s, m).Float()
	}
	path, found := visitor.HotPath(s, children, value, threshold)
	if childErr != nil {
		return nil, false, childErr
	}
	return path, found, nil
}

// Duplicate returns an independent experiment with a copy of the scope
// tree, the metric descriptors (copied) and the thread provider. The copy
// gets its own identity; when the original has been postprocessed, the
// callers and flat views of the copy are rebuilt from the copied calling
// context tree.
func (e *Experiment) Duplicate() (*Experiment, error) {
	dup := &Experiment{
		ID:          uuid.New(),
		Name:        e.Name,
		tree:        e.tree.Clone(),
		root:        e.root,
		metrics:     e.metrics.Duplicate(),
		raw:         e.raw.Duplicate(),
		data:        e.data,
		aliases:     e.aliases.Clone(),
		base:        e.base,
		stats:       e.stats,
		// copied view roots are replaced by rebuildViews
		callersRoot: e.callersRoot,
		flatRoot:    e.flatRoot,
	}
	dup.logger = e.base.With().Str("experiment", dup.ID.String()).Logger()
	if e.data != nil {
		dup.SetThreadData(e.data)
	}
	if len(e.threads) > 0 {
		dup.SetThreads(e.threads)
	}
	if e.callers == nil {
		return dup, nil
	}
	cct, err := dup.CCTRoot()
	if err != nil {
		return nil, err
	}
	if err := dup.rebuildViews(cct); err != nil {
		return nil, fmt.Errorf("duplicate views: %w", err)
	}
	return dup, nil
}
