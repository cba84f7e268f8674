package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeEquality(t *testing.T) {
	a := NewShape(2, 3)
	b := NewShape(2, 3).WithDType(Int32)
	c := Shape{Dims: []int{2, 3}, DType: Float64}

	// reflexive, symmetric, transitive; dtype ignored
	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.True(t, b.Equal(c))
	assert.True(t, a.Equal(c))

	assert.False(t, a.Equal(NewShape(3, 2)))
	assert.False(t, a.Equal(NewShape(2, 3, 1)))

	assert.True(t, a.DotEqual(NewShape(2, 3)))
	assert.False(t, a.DotEqual(b))
}

func TestShapeOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
		want int
	}{
		{"lower rank first", NewShape(100), NewShape(1, 1), -1},
		{"same rank by count", NewShape(2, 3), NewShape(3, 3), -1},
		{"equal", NewShape(2, 3), NewShape(3, 2), 0},
		{"greater", NewShape(4, 4, 4), NewShape(2, 2), 1},
		{"scalar smallest", ScalarShape(Float32), NewShape(1), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}

	best, ok := MaxShape(NewShape(3), NewShape(2, 2), NewShape(1, 3))
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, best.Dims)

	_, ok = MaxShape()
	assert.False(t, ok)
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, NewShape(1, 2, 3).Validate())
	assert.NoError(t, ScalarShape(Float32).Validate())
	assert.Error(t, NewShape(2, 0).Validate())
	assert.Error(t, NewShape(-1).Validate())
}

func TestShapeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, NewShape(2, 3, 4).ComputeStrides())
	assert.Empty(t, ScalarShape(Float32).ComputeStrides())
	assert.Equal(t, 1, ScalarShape(Float32).NumElements())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      []int
		broadcast bool
		wantErr   bool
	}{
		{"same", NewShape(3, 5), NewShape(3, 5), []int{3, 5}, false, false},
		{"column", NewShape(3, 1), NewShape(3, 5), []int{3, 5}, true, false},
		{"row", NewShape(1, 5), NewShape(3, 5), []int{3, 5}, true, false},
		{"rank", NewShape(5), NewShape(2, 3, 5), []int{2, 3, 5}, true, false},
		{"scalar", ScalarShape(Float32), NewShape(2, 2), []int{2, 2}, true, false},
		{"incompatible", NewShape(3, 4), NewShape(3, 5), nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, needs, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dims)
			assert.Equal(t, tt.broadcast, needs)
		})
	}
}

func TestBroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{1, 0}, BroadcastStrides(NewShape(3, 1), NewShape(3, 5)))
	assert.Equal(t, []int{0, 0, 1}, BroadcastStrides(NewShape(5), NewShape(2, 3, 5)))
	assert.Equal(t, []int{0, 0}, BroadcastStrides(ScalarShape(Float32), NewShape(2, 2)))
}
