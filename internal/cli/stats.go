package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// writeStats prints every sample gathered from reg, one per line.
func writeStats(w io.Writer, reg prometheus.Gatherer) error {
	if reg == nil {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather pipeline metrics: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + labels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				_, err = fmt.Fprintf(tw, "%s\t%g\n", name, m.GetCounter().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				_, err = fmt.Fprintf(tw, "%s\t%d calls\t%.3fs\n", name, h.GetSampleCount(), h.GetSampleSum())
			case dto.MetricType_GAUGE:
				_, err = fmt.Fprintf(tw, "%s\t%g\n", name, m.GetGauge().GetValue())
			}
			if err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

func labels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
