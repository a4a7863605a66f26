package metric

import (
	"context"
	"strings"
)

// PartnerUnknown marks a metric without an inclusive/exclusive partner.
const PartnerUnknown = -1

// Source is the view of a scope a metric needs to resolve its value.
type Source interface {
	// StoredValue returns the value held in the scope's metric slot.
	StoredValue(slot int) Value
	// StoredValues returns all slots of the scope.
	StoredValues() []Value
	// CCTIndex is the scope's position in the calling context tree
	// (1-based, 0 when the scope has none).
	CCTIndex() int
	// IsRoot reports whether the scope is a tree root.
	IsRoot() bool
	// RootCCTIndex is the CCT position of the tree's root.
	RootCCTIndex() int
	// Origins lists the calling contexts a callers or flat view scope
	// aggregates. It is nil for calling context tree scopes.
	Origins() []Origin
}

// Origin is a calling context scope whose cost a derived view scope
// includes.
type Origin struct {
	CCTIndex int
	// Exclusive and Inclusive select the columns the origin adds to.
	Exclusive bool
	Inclusive bool
	// Callee makes the exclusive column take the inclusive cost of the
	// origin, as call sites of the flat view do.
	Callee bool
}

// Metric describes one metric column. It is a closed tagged variant: Kind
// selects the behavior and the kind-specific payload (raw or expr).
type Metric struct {
	ShortName    string
	NativeName   string
	DisplayName  string
	Displayed    bool
	Index        int
	Partner      int
	Kind         Kind
	Type         Type
	Annotation   Annotation
	Format       Format
	SamplePeriod float64

	raw  *rawState
	expr *derivedState
}

// NewOrdinary creates a stored metric paired with partner by slot index.
func NewOrdinary(shortName, displayName string, typ Type, partner int, annotation Annotation) *Metric {
	return newMetric(KindOrdinary, shortName, displayName, typ, partner, annotation)
}

// NewAggregate creates a summary metric. Its partner is looked up by short
// name, so older schemas that lack the partner simply have none.
func NewAggregate(shortName, displayName string, typ Type, partner int, annotation Annotation) *Metric {
	return newMetric(KindAggregate, shortName, displayName, typ, partner, annotation)
}

// NewFinal creates a finalized metric without partner.
func NewFinal(shortName, displayName string, typ Type, annotation Annotation) *Metric {
	return newMetric(KindFinal, shortName, displayName, typ, PartnerUnknown, annotation)
}

func newMetric(kind Kind, shortName, displayName string, typ Type, partner int, annotation Annotation) *Metric {
	return &Metric{
		ShortName:    shortName,
		DisplayName:  strings.TrimSpace(displayName),
		Displayed:    true,
		Index:        -1,
		Partner:      partner,
		Kind:         kind,
		Type:         typ,
		Annotation:   annotation,
		Format:       FormatFor(annotation),
		SamplePeriod: 1.0,
	}
}

// HasPartner reports whether the metric declares a partner at all.
func (m *Metric) HasPartner() bool {
	return m.Partner >= 0
}

// SetAnnotation changes the annotation kind and the matching format.
func (m *Metric) SetAnnotation(a Annotation) {
	m.Annotation = a
	m.Format = FormatFor(a)
}

// Accumulable reports whether values of this metric are summed child to
// parent by the inclusive pass. Aggregate and final metrics are already
// finalized and expression metrics are computed on read.
func (m *Metric) Accumulable() bool {
	switch m.Kind {
	case KindOrdinary, KindRaw:
		return true
	default:
		return false
	}
}

// Value resolves the metric value for a scope.
func (m *Metric) Value(src Source) Value {
	return m.ValueContext(context.Background(), src)
}

// ValueContext is Value with a context for raw metrics, whose provider
// may block on I/O.
func (m *Metric) ValueContext(ctx context.Context, src Source) Value {
	switch m.Kind {
	case KindRaw:
		return m.rawValue(ctx, src)
	case KindDerived:
		if m.expr != nil {
			return m.derivedValue(src)
		}
		return src.StoredValue(m.Index)
	default:
		return src.StoredValue(m.Index)
	}
}

// Text returns the display text of the metric for a scope.
func (m *Metric) Text(src Source) string {
	return m.TextValue(m.Value(src))
}

// TextValue returns the display text for a value of this metric.
func (m *Metric) TextValue(v Value) string {
	return Text(m.Format, v)
}

// Duplicate returns an independent copy of the descriptor. Raw metrics keep
// their provider but start with a fresh thread selection and root memo.
func (m *Metric) Duplicate() *Metric {
	dup := *m
	if m.raw != nil {
		dup.raw = m.raw.duplicate()
	}
	if m.expr != nil {
		e := *m.expr
		dup.expr = &e
	}
	return &dup
}
