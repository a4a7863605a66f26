package metric

// Kind is the closed set of metric descriptor variants.
type Kind int

const (
	// KindOrdinary is a stored metric paired exclusive/inclusive by index.
	KindOrdinary Kind = iota
	// KindDerived is an ordinary metric whose values come from an expression
	// over other columns.
	KindDerived
	// KindAggregate is a summary metric paired through a short-name id.
	KindAggregate
	// KindFinal is a terminal, already-finalized metric with no partner.
	KindFinal
	// KindRaw is a thread-level metric resolved through a ThreadData provider.
	KindRaw
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOrdinary:
		return "ordinary"
	case KindDerived:
		return "derived"
	case KindAggregate:
		return "aggregate"
	case KindFinal:
		return "final"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Type says whether a metric column holds exclusive or inclusive cost.
type Type int

const (
	TypeExclusive Type = iota
	TypeInclusive
	// TypeDerived is used by expression metrics, which are neither.
	TypeDerived
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeExclusive:
		return "exclusive"
	case TypeInclusive:
		return "inclusive"
	case TypeDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// Annotation selects what is displayed next to a value.
type Annotation int

const (
	AnnotationNone Annotation = iota
	AnnotationPercent
	AnnotationProcess
)

// String returns the annotation name.
func (a Annotation) String() string {
	switch a {
	case AnnotationPercent:
		return "percent"
	case AnnotationProcess:
		return "process"
	default:
		return "none"
	}
}
