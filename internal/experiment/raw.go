package experiment

import (
	"context"
	"fmt"
	"slices"
)

// SetThreadData injects the thread-level provider into every raw metric.
// Provider failures are logged and counted; they resolve to no value.
func (e *Experiment) SetThreadData(d ThreadProvider) {
	e.data = d
	logger := e.logger.With().Str("component", "raw").Logger()
	for _, m := range e.raw.All() {
		m.SetThreadData(d)
		m.SetRawLogger(logger)
		m.SetRawErrorHook(func(error) { e.stats.RawFetchErrors.Inc() })
	}
}

// SetThreads selects the threads raw metrics are resolved for. More than one
// thread resolves to their mean. Root baselines and caches are dropped.
func (e *Experiment) SetThreads(threads []int) {
	e.threads = slices.Clone(threads)
	for _, m := range e.raw.All() {
		m.SetThreads(e.threads)
	}
}

// Threads returns the current thread selection.
func (e *Experiment) Threads() []int {
	return slices.Clone(e.threads)
}

// RankLabels lists the threads known to the provider, indexed by thread id.
func (e *Experiment) RankLabels(ctx context.Context) ([]string, error) {
	if e.data == nil {
		return nil, nil
	}
	labels, err := e.data.RankLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("rank labels: %w", err)
	}
	return labels, nil
}
