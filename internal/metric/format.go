package metric

import (
	"fmt"
	"math"
	"strconv"
)

// Format renders an available, finite, non-zero value.
type Format interface {
	Format(v Value) string
}

// DefaultFormat prints the value in scientific notation followed by the
// annotation as a percentage when present.
type DefaultFormat struct{}

// Format implements Format.
func (DefaultFormat) Format(v Value) string {
	s := fmt.Sprintf("%.2e", v.Float())
	if a, ok := v.Annotation(); ok {
		s += fmt.Sprintf(" %5.1f%%", a*100)
	}
	return s
}

// ProcessFormat prints the value followed by the process number annotation.
type ProcessFormat struct{}

// Format implements Format.
func (ProcessFormat) Format(v Value) string {
	s := fmt.Sprintf("%.2e", v.Float())
	if a, ok := v.Annotation(); ok {
		s += fmt.Sprintf(" <%d>", int(a))
	}
	return s
}

// PatternFormat applies a printf pattern to the value, e.g. "%8.2f".
type PatternFormat struct {
	Pattern string
}

// Format implements Format.
func (p PatternFormat) Format(v Value) string {
	return fmt.Sprintf(p.Pattern, v.Float())
}

// FormatFor returns the display format matching an annotation kind.
func FormatFor(a Annotation) Format {
	if a == AnnotationProcess {
		return ProcessFormat{}
	}
	return DefaultFormat{}
}

// Text renders v for display using f. None, zero and unavailable values
// render as the empty string; out-of-range values are clamped first.
func Text(f Format, v Value) string {
	if !v.IsAvailable() {
		return ""
	}
	v = v.Clamp()
	x := v.Float()
	switch {
	case x == 0:
		return ""
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case math.IsNaN(x):
		return "NaN"
	}
	if f == nil {
		f = DefaultFormat{}
	}
	return f.Format(v)
}

// ParseSamplePeriod converts a sample period attribute into a number.
// Event units ('e') always have a period of 1. An empty or malformed
// period falls back to 1; ok is false only for the malformed case.
func ParseSamplePeriod(s string, unit rune) (period float64, ok bool) {
	if unit == 'e' || s == "" {
		return 1.0, true
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0, false
	}
	return p, true
}
