package metric

import "math"

// Value is a metric value of one scope in one metric column.
//
// The zero Value is None: "not computed / not applicable". None is distinct
// from a numeric zero for display purposes but counts as zero in arithmetic.
type Value struct {
	v          float64
	annotation float64
	available  bool
	annotated  bool
}

// None is the sentinel for an unavailable value.
var None = Value{}

// NewValue returns an available value.
func NewValue(v float64) Value {
	return Value{v: v, available: true}
}

// NewAnnotatedValue returns an available value carrying an annotation
// (a fraction of the root value, or a process number).
func NewAnnotatedValue(v, annotation float64) Value {
	return Value{v: v, annotation: annotation, available: true, annotated: true}
}

// IsAvailable reports whether the value was computed.
func (v Value) IsAvailable() bool {
	return v.available
}

// Float returns the numeric value, 0 for None.
func (v Value) Float() float64 {
	if !v.available {
		return 0
	}
	return v.v
}

// IsZero reports whether the value is None or numerically zero.
func (v Value) IsZero() bool {
	return !v.available || v.v == 0
}

// Annotation returns the annotation and whether one is present.
func (v Value) Annotation() (float64, bool) {
	return v.annotation, v.annotated
}

// WithAnnotation returns a copy of v annotated with a. None stays None.
func (v Value) WithAnnotation(a float64) Value {
	if !v.available {
		return v
	}
	v.annotation = a
	v.annotated = true
	return v
}

// WithoutAnnotation returns a copy of v with the annotation dropped.
func (v Value) WithoutAnnotation() Value {
	v.annotation = 0
	v.annotated = false
	return v
}

// Add sums two values. None + None is None; otherwise None counts as zero.
// The annotation of the result is dropped since it no longer applies.
func (v Value) Add(o Value) Value {
	if !v.available && !o.available {
		return None
	}
	return NewValue(v.Float() + o.Float())
}

// Sub subtracts o from v with the same None rules as Add.
func (v Value) Sub(o Value) Value {
	if !v.available && !o.available {
		return None
	}
	return NewValue(v.Float() - o.Float())
}

// Clamp enforces presentation bounds: beyond +-9.99e99 becomes signed
// infinity and magnitudes below 1e-99 become zero.
func (v Value) Clamp() Value {
	if !v.available {
		return v
	}
	switch {
	case v.v > 9.99e99:
		v.v = math.Inf(1)
	case v.v < -9.99e99:
		v.v = math.Inf(-1)
	case math.Abs(v.v) < 1.00e-99:
		v.v = 0
	}
	return v
}

// FromFloat converts a raw number into a Value, mapping zero to None so that
// "no cost" reads as "not sampled".
func FromFloat(f float64) Value {
	if f == 0 {
		return None
	}
	return NewValue(f)
}
