// Package threaddata provides thread-level (raw) metric values to an
// experiment: an in-memory provider and a DuckDB-backed store.
package threaddata

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnavailable is returned when the requested thread-level data does not
// exist.
var ErrUnavailable = errors.New("thread data unavailable")

// Memory holds thread-level values in memory, indexed as
// values[thread][metric][cctIndex-1].
type Memory struct {
	labels []string
	values [][][]float64
}

// NewMemory creates an empty provider for the given thread labels.
func NewMemory(labels ...string) *Memory {
	return &Memory{
		labels: slices.Clone(labels),
		values: make([][][]float64, len(labels)),
	}
}

// Set stores the value of metric at cctIndex for thread.
func (m *Memory) Set(thread, metric, cctIndex int, v float64) error {
	if thread < 0 || thread >= len(m.values) {
		return fmt.Errorf("thread %d: %w", thread, ErrUnavailable)
	}
	if metric < 0 || cctIndex < 1 {
		return fmt.Errorf("metric %d at %d: invalid position", metric, cctIndex)
	}
	for len(m.values[thread]) <= metric {
		m.values[thread] = append(m.values[thread], nil)
	}
	row := m.values[thread][metric]
	for len(row) < cctIndex {
		row = append(row, 0)
	}
	row[cctIndex-1] = v
	m.values[thread][metric] = row
	return nil
}

// Metrics returns the value of every thread at cctIndex.
func (m *Memory) Metrics(_ context.Context, cctIndex, metric, _ int) ([]float64, error) {
	if cctIndex < 1 {
		return nil, fmt.Errorf("scope %d: %w", cctIndex, ErrUnavailable)
	}
	out := make([]float64, len(m.values))
	for t := range m.values {
		if metric < len(m.values[t]) && cctIndex <= len(m.values[t][metric]) {
			out[t] = m.values[t][metric][cctIndex-1]
		}
	}
	return out, nil
}

// ScopeMetrics returns every scope's value of metric for thread.
func (m *Memory) ScopeMetrics(_ context.Context, thread, metric, _ int) ([]float64, error) {
	if thread < 0 || thread >= len(m.values) {
		return nil, fmt.Errorf("thread %d: %w", thread, ErrUnavailable)
	}
	if metric < 0 || metric >= len(m.values[thread]) {
		return nil, nil
	}
	return slices.Clone(m.values[thread][metric]), nil
}

// RankLabels returns the thread labels.
func (m *Memory) RankLabels(context.Context) ([]string, error) {
	return slices.Clone(m.labels), nil
}

// Samples returns every non-zero value as a sample, for copying into a
// Store.
func (m *Memory) Samples() []Sample {
	var out []Sample
	for t, metrics := range m.values {
		for id, row := range metrics {
			for i, v := range row {
				if v != 0 {
					out = append(out, Sample{Thread: t, Metric: id, CCTIndex: i + 1, Value: v})
				}
			}
		}
	}
	return out
}
