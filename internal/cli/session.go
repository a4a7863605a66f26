package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/calltree/internal/config"
	cterrors "github.com/coral-mesh/calltree/internal/errors"
	"github.com/coral-mesh/calltree/internal/experiment"
	"github.com/coral-mesh/calltree/internal/filter"
	"github.com/coral-mesh/calltree/internal/loader"
	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/threaddata"
)

// session is a loaded and postprocessed experiment ready to be viewed.
type session struct {
	exp    *experiment.Experiment
	store  *threaddata.Store
	logger zerolog.Logger
}

// openSession loads the profiles at paths and runs the pipeline configured
// by cfg: postprocess, thread store, derived metrics, thread selection and
// filter.
func openSession(ctx context.Context, cfg *config.Config, paths []string) (*session, error) {
	aliases := experiment.NewAliasMap()
	for name, alias := range cfg.Aliases {
		aliases.Put(name, alias)
	}
	res, err := loader.Load(ctx, loader.Files(paths...), loader.Options{
		Logger: g.logger,
		Experiment: []experiment.Option{
			experiment.WithLogger(g.logger),
			experiment.WithAliases(aliases),
			experiment.WithPipelineMetrics(experiment.NewPipelineMetrics(g.registry)),
		},
	})
	if err != nil {
		return nil, err
	}
	s := &session{exp: res.Experiment, logger: g.logger}

	if err := s.exp.Postprocess(ctx); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}

	if cfg.ThreadStore.DSN != "" {
		if err := s.attachStore(ctx, cfg.ThreadStore.DSN, res.Threads); err != nil {
			return nil, err
		}
	}

	for _, d := range cfg.Derived {
		if _, err := s.exp.AddDerivedMetric(d.Name, d.Expression, d.Percent); err != nil {
			s.Close()
			return nil, fmt.Errorf("derived metric %s: %w", d.Name, err)
		}
	}

	if len(cfg.Threads.Selection) > 0 {
		s.exp.SetThreads(cfg.Threads.Selection)
	}

	if len(cfg.Filter.Patterns) > 0 {
		if err := s.applyFilter(cfg.Filter); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.logger.Debug().
		Str("experiment", s.exp.ID.String()).
		Int("profiles", len(paths)).
		Int("metrics", s.exp.MetricCount()).
		Msg("Session ready")
	return s, nil
}

// attachStore moves the thread-level data into a DuckDB store and serves
// raw metrics from it.
func (s *session) attachStore(ctx context.Context, dsn string, mem *threaddata.Memory) error {
	db, err := threaddata.OpenDB(dsn)
	if err != nil {
		return err
	}
	store, err := threaddata.NewStore(ctx, db)
	if err != nil {
		cterrors.DeferClose(s.logger, db, "failed to close thread database")
		return err
	}
	labels, err := mem.RankLabels(ctx)
	if err != nil {
		cterrors.DeferClose(s.logger, store, "failed to close thread store")
		return err
	}
	if err := store.Ingest(ctx, labels, mem.Samples()); err != nil {
		cterrors.DeferClose(s.logger, store, "failed to close thread store")
		return err
	}
	s.store = store
	s.exp.SetThreadData(store)
	s.logger.Debug().Str("dsn", dsn).Int("threads", len(labels)).Msg("Thread data stored")
	return nil
}

func (s *session) applyFilter(fc config.FilterConfig) error {
	mode, err := filter.ParseMode(fc.Mode)
	if err != nil {
		return err
	}
	set, err := filter.New(mode, fc.Patterns...)
	if err != nil {
		return err
	}
	cct, err := s.exp.CCTRoot()
	if err != nil {
		return err
	}
	if err := s.exp.Filter(set.Predicate(s.exp.Tree(), cct)); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	return nil
}

// Close releases the thread store.
func (s *session) Close() {
	if s.store != nil {
		cterrors.DeferClose(s.logger, s.store, "failed to close thread store")
	}
}

// columns resolves the metrics to print and the one to sort by. An empty
// name selects every metric, sorted by the first inclusive one.
func (s *session) columns(name string, raw bool) ([]*metric.Metric, *metric.Metric, error) {
	table := s.exp.Metrics()
	var cols []*metric.Metric
	var sortBy *metric.Metric

	if name != "" {
		m, err := lookupMetric(table, name)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, m)
		if p, ok := table.Partner(m); ok {
			cols = append(cols, p)
		}
		sortBy = m
	} else {
		for _, m := range table.All() {
			if !m.Displayed {
				continue
			}
			cols = append(cols, m)
			if sortBy == nil && m.Type == metric.TypeInclusive {
				sortBy = m
			}
		}
		if sortBy == nil && len(cols) > 0 {
			sortBy = cols[0]
		}
	}

	if raw {
		for _, m := range s.exp.RawMetrics().All() {
			if name == "" || m.DisplayName == sortBy.DisplayName {
				cols = append(cols, m)
			}
		}
	}
	return cols, sortBy, nil
}

// lookupMetric finds a metric by short name, then by display name.
func lookupMetric(table *metric.Table, name string) (*metric.Metric, error) {
	m, err := table.ByShortName(name)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, metric.ErrMetricNotFound) {
		return nil, err
	}
	for _, m := range table.All() {
		if m.DisplayName == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q: %w", name, metric.ErrMetricNotFound)
}
