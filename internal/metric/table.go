package metric

import (
	"errors"
	"strconv"
)

// ErrMetricNotFound is returned when a metric lookup fails.
var ErrMetricNotFound = errors.New("metric not found")

// Table is the ordered list of metric columns of an experiment.
type Table struct {
	metrics []*Metric
	byShort map[string]*Metric
}

// NewTable creates a table from metrics, assigning slot indices in order.
func NewTable(metrics ...*Metric) *Table {
	t := &Table{byShort: make(map[string]*Metric)}
	for _, m := range metrics {
		t.Add(m)
	}
	return t
}

// Add appends a metric and returns its slot index.
func (t *Table) Add(m *Metric) int {
	m.Index = len(t.metrics)
	t.metrics = append(t.metrics, m)
	if m.ShortName != "" {
		t.byShort[m.ShortName] = m
	}
	return m.Index
}

// Len returns the number of metric columns.
func (t *Table) Len() int {
	return len(t.metrics)
}

// Get returns the metric at slot i, or nil.
func (t *Table) Get(i int) *Metric {
	if i < 0 || i >= len(t.metrics) {
		return nil
	}
	return t.metrics[i]
}

// All returns the metrics in slot order.
func (t *Table) All() []*Metric {
	return t.metrics
}

// ByShortName looks up a metric by its stable short name.
func (t *Table) ByShortName(name string) (*Metric, error) {
	m, ok := t.byShort[name]
	if !ok {
		return nil, ErrMetricNotFound
	}
	return m, nil
}

// Partner resolves the partner of m. Ordinary and derived metrics pair by
// slot index; aggregate metrics pair by parsing the partner id as a short
// name, and a miss (legacy schema) means no partner. Raw and final metrics
// are terminal.
func (t *Table) Partner(m *Metric) (*Metric, bool) {
	switch m.Kind {
	case KindOrdinary, KindDerived:
		p := t.Get(m.Partner)
		if p == nil || p == m {
			return nil, false
		}
		return p, true
	case KindAggregate:
		if !m.HasPartner() {
			return nil, false
		}
		p, err := t.ByShortName(strconv.Itoa(m.Partner))
		if err != nil || p == m {
			return nil, false
		}
		return p, true
	default:
		return nil, false
	}
}

// InclusiveNeeded reports whether any column still needs the inclusive
// accumulation pass, i.e. is neither final nor aggregate.
func (t *Table) InclusiveNeeded() bool {
	for _, m := range t.metrics {
		if m.Kind != KindFinal && m.Kind != KindAggregate {
			return true
		}
	}
	return false
}

// PartnerIssue describes a partner declaration that does not hold.
type PartnerIssue struct {
	Metric  *Metric
	Message string
}

// CheckPartners reports asymmetric or mistyped ordinary partners. Issues
// are diagnostics only: a metric with a broken partner just gets no
// partner copy.
func (t *Table) CheckPartners() []PartnerIssue {
	var issues []PartnerIssue
	for _, m := range t.metrics {
		if m.Kind != KindOrdinary || !m.HasPartner() {
			continue
		}
		p, ok := t.Partner(m)
		switch {
		case !ok:
			issues = append(issues, PartnerIssue{Metric: m, Message: "partner index out of range"})
		case p.Partner != m.Index:
			issues = append(issues, PartnerIssue{Metric: m, Message: "partner is not symmetric"})
		case p.Type == m.Type:
			issues = append(issues, PartnerIssue{Metric: m, Message: "partner has the same type"})
		}
	}
	return issues
}

// Duplicate returns a table of duplicated descriptors, raw partner links
// re-pointed into the copy.
func (t *Table) Duplicate() *Table {
	dup := &Table{byShort: make(map[string]*Metric, len(t.byShort))}
	index := make(map[*Metric]*Metric, len(t.metrics))
	for _, m := range t.metrics {
		c := m.Duplicate()
		dup.metrics = append(dup.metrics, c)
		if c.ShortName != "" {
			dup.byShort[c.ShortName] = c
		}
		index[m] = c
	}
	for _, m := range t.metrics {
		if p := m.RawPartner(); p != nil {
			if c, ok := index[p]; ok {
				index[m].SetRawPartner(c)
			}
		}
	}
	return dup
}
