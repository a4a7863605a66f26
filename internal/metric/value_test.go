package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_None(t *testing.T) {
	assert.False(t, None.IsAvailable())
	assert.True(t, None.IsZero())
	assert.Equal(t, 0.0, None.Float())

	v := None.WithAnnotation(0.5)
	_, ok := v.Annotation()
	assert.False(t, ok, "None never carries an annotation")
}

func TestValue_Arithmetic(t *testing.T) {
	tests := []struct {
		name      string
		got       Value
		want      float64
		available bool
	}{
		{name: "none plus none", got: None.Add(None), available: false},
		{name: "none plus value", got: None.Add(NewValue(3)), want: 3, available: true},
		{name: "value plus value", got: NewValue(2).Add(NewValue(3)), want: 5, available: true},
		{name: "none minus none", got: None.Sub(None), available: false},
		{name: "value minus none", got: NewValue(2).Sub(None), want: 2, available: true},
		{name: "none minus value", got: None.Sub(NewValue(2)), want: -2, available: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.available, tt.got.IsAvailable())
			assert.Equal(t, tt.want, tt.got.Float())
		})
	}
}

func TestValue_AddDropsAnnotation(t *testing.T) {
	v := NewAnnotatedValue(2, 0.4).Add(NewValue(1))
	_, ok := v.Annotation()
	assert.False(t, ok)
	assert.Equal(t, 3.0, v.Float())
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, None, FromFloat(0))
	assert.Equal(t, NewValue(1.5), FromFloat(1.5))
}

func TestValue_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "huge", in: 1e100, want: math.Inf(1)},
		{name: "huge negative", in: -1e100, want: math.Inf(-1)},
		{name: "tiny", in: 1e-100, want: 0},
		{name: "in range", in: 42, want: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewValue(tt.in).Clamp().Float())
		})
	}
	assert.Equal(t, None, None.Clamp())
}
