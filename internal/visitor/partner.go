package visitor

import (
	"github.com/rs/zerolog"

	"github.com/coral-mesh/calltree/internal/metric"
	"github.com/coral-mesh/calltree/internal/propagation"
	"github.com/coral-mesh/calltree/internal/scope"
)

// CopyPartners fills the partner column of root from its computed column:
// ordinary inclusive metrics copy into their exclusive partner, aggregate
// exclusive metrics into their inclusive partner. Root is the aggregate row
// of a view, where exclusive and inclusive cost coincide.
//
// A partner that cannot be resolved disables the copy for that metric.
func CopyPartners(t *scope.Tree, metrics *metric.Table, root scope.ID, logger zerolog.Logger) {
	r := t.Get(root)
	if r == nil {
		return
	}
	for _, m := range metrics.All() {
		switch {
		case m.Kind == metric.KindOrdinary && m.Type == metric.TypeInclusive:
		case m.Kind == metric.KindAggregate && m.Type == metric.TypeExclusive:
		default:
			continue
		}
		p, ok := metrics.Partner(m)
		if !ok {
			if m.HasPartner() {
				logger.Debug().
					Str("metric", m.ShortName).
					Int("partner", m.Partner).
					Msg("Partner not resolved, skipping partner copy")
			}
			continue
		}
		propagation.Copy(r, r, m.Index, p.Index, propagation.Empty{})
	}
}
