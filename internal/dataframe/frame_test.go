package dataframe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	a := &Column{Name: "a", DType: Float64, Floats: []float64{1, 2}}
	b := &Column{Name: "b", DType: Float64, Floats: []float64{1}}

	_, err := New(a, b)
	assert.Error(t, err)

	_, err = New(a, a)
	assert.Error(t, err)

	f, err := New(a)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NRows())
	_, ok := f.Column("missing")
	assert.False(t, ok)
}

func TestFrame_MissingAndMemory(t *testing.T) {
	num := &Column{Name: "n", DType: Int64, Floats: []float64{1, 2, 3}}
	flt := &Column{Name: "f", DType: Float64, Floats: []float64{1, math.NaN(), 3}}
	flag := &Column{Name: "b", DType: Bool, Floats: []float64{1, 0, 1}}
	obj := &Column{
		Name:    "s",
		DType:   Object,
		Strings: []string{"ab", "", "c"},
		Missing: []bool{false, true, false},
	}
	f, err := New(num, flt, flag, obj)
	require.NoError(t, err)

	assert.Equal(t, 2, f.MissingCells())
	assert.Equal(t, 2, obj.Unique())
	assert.Equal(t, 2, flt.Unique())

	// index + two 8-byte columns + bools + three object cells
	want := int64(indexBytes + 24 + 24 + 3 + (8 + 51) + (8 + 24) + (8 + 50))
	assert.Equal(t, want, f.MemoryUsage())
}

func TestDType_IsNumeric(t *testing.T) {
	assert.True(t, Int64.IsNumeric())
	assert.True(t, Float64.IsNumeric())
	assert.True(t, Bool.IsNumeric())
	assert.False(t, Object.IsNumeric())
}
