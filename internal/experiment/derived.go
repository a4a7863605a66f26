package experiment

import (
	"strconv"

	"github.com/coral-mesh/calltree/internal/metric"
)

// AddDerivedMetric appends a metric computed from other columns with a
// formula such as "$0 / $1". Every scope gets a new value slot. With
// percent, values are annotated relative to the calling context root.
func (e *Experiment) AddDerivedMetric(name, formula string, percent bool) (*metric.Metric, error) {
	m, err := metric.NewDerived(strconv.Itoa(e.metrics.Len()), name, formula, percent)
	if err != nil {
		return nil, err
	}
	e.tree.AddMetricSlot()
	e.metrics.Add(m)
	if cct, err := e.CCTRoot(); err == nil {
		m.SetDerivedRoot(e.tree.Source(cct))
	}
	e.logger.Debug().
		Str("metric", name).
		Str("formula", formula).
		Int("slot", m.Index).
		Msg("Added derived metric")
	return m, nil
}
