package metric

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
)

// ErrInvalidExpression is returned when a derived metric formula does not
// compile.
var ErrInvalidExpression = errors.New("invalid derived metric expression")

// columnRef matches "$N" column references in a formula.
var columnRef = regexp.MustCompile(`\$(\d+)`)

type derivedState struct {
	source  string
	program cel.Program
	percent bool
	root    float64
}

// CompileExpression compiles a formula over metric columns. Columns are
// referenced as $N (N being the metric slot) and values are doubles, e.g.
// "$0 / ($1 + 1.0)".
func CompileExpression(formula string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("m", cel.ListType(cel.DoubleType)))
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	src := columnRef.ReplaceAllString(formula, "m[$1]")
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, formula, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, formula, err)
	}
	return prg, nil
}

// NewDerived creates an expression metric. When percent is set, values are
// annotated relative to the root value registered with SetDerivedRoot.
func NewDerived(shortName, displayName, formula string, percent bool) (*Metric, error) {
	prg, err := CompileExpression(formula)
	if err != nil {
		return nil, err
	}
	annotation := AnnotationNone
	if percent {
		annotation = AnnotationPercent
	}
	m := newMetric(KindDerived, shortName, displayName, TypeDerived, PartnerUnknown, annotation)
	m.expr = &derivedState{source: formula, program: prg, percent: percent}
	return m, nil
}

// Expression returns the formula of a derived metric.
func (m *Metric) Expression() string {
	if m.expr == nil {
		return ""
	}
	return m.expr.source
}

// SetDerivedRoot records the root value used for percent annotations.
func (m *Metric) SetDerivedRoot(src Source) {
	if m.expr == nil {
		return
	}
	m.expr.root = m.evaluate(src)
}

func (m *Metric) derivedValue(src Source) Value {
	x := m.evaluate(src)
	v := FromFloat(x)
	if m.expr.percent && m.expr.root != 0 {
		v = v.WithAnnotation(x / m.expr.root)
	}
	return v
}

// evaluate runs the formula; evaluation errors (bad column, type mismatch)
// yield zero, which displays as an empty cell.
func (m *Metric) evaluate(src Source) float64 {
	stored := src.StoredValues()
	cols := make([]float64, len(stored))
	for i, v := range stored {
		cols[i] = v.Float()
	}
	out, _, err := m.expr.program.Eval(map[string]any{"m": cols})
	if err != nil {
		return 0
	}
	switch x := out.Value().(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return 0
	}
}
