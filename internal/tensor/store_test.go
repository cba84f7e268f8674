package tensor

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forEachIndex(shape Shape, f func(idx []int)) {
	idx := make([]int, shape.Rank())
	for n := 0; n < shape.NumElements(); n++ {
		f(idx)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}

func TestAllocateFill(t *testing.T) {
	shapes := []Shape{
		ScalarShape(Float32),
		NewShape(7),
		NewShape(2, 3),
		NewShape(3, 4, 5),
		NewShape(1, 1, 1, 9),
	}
	for _, shape := range shapes {
		s, err := Allocate(shape, 1.5)
		require.NoError(t, err)

		forEachIndex(shape, func(idx []int) {
			assert.Equal(t, float32(1.5), s.At(idx...), "index %v of %s", idx, shape)
		})
		assert.GreaterOrEqual(t, s.Capacity(), shape.NumElements())
		assert.Zero(t, s.AllocatedBytes()%pageSize)
		assert.Zero(t, int(s.BaseAddress())%pageSize, "root storage must be page aligned")
		s.Release()
	}
}

func TestAllocateInvalidShape(t *testing.T) {
	_, err := Allocate(NewShape(2, 0), 0)
	assert.Error(t, err)
	assert.Panics(t, func() { MustAllocate(NewShape(-3), 0) })
}

func TestAlignedCapacity(t *testing.T) {
	perPage := pageSize / elementSize
	assert.Equal(t, perPage, alignedCapacity(1))
	assert.Equal(t, perPage, alignedCapacity(perPage))
	assert.Equal(t, 2*perPage, alignedCapacity(perPage+1))
}

func TestRowMajorAccess(t *testing.T) {
	s, err := FromSlice([]float32{0, 1, 2, 3, 4, 5}, NewShape(2, 3))
	require.NoError(t, err)

	assert.Equal(t, float32(1), s.At(0, 1))
	assert.Equal(t, float32(3), s.At(1, 0))
	assert.Equal(t, float32(5), s.AtUnchecked(1, 2))

	s.Set(42, 1, 1)
	assert.Equal(t, float32(42), s.Data()[4])
	s.SetUnchecked(7, 0, 0)
	assert.Equal(t, float32(7), s.Data()[0])

	assert.PanicsWithError(t, "tensor: index [2 0] out of range for shape "+s.Shape().String(), func() { s.At(2, 0) })
	assert.Panics(t, func() { s.At(0) })
	assert.Panics(t, func() { s.Set(1, 0, -1) })

	assert.Equal(t, float32(-1), s.ValueOrDefault(-1, 5, 5))
	assert.Equal(t, float32(42), s.ValueOrDefault(-1, 1, 1))

	assert.Equal(t, []any{[]any{float32(7), float32(1), float32(2)}, []any{float32(3), float32(42), float32(5)}}, s.Nested())
}

func TestFromSliceLengthMismatch(t *testing.T) {
	_, err := FromSlice([]float32{1, 2}, NewShape(3))
	assert.Error(t, err)
}

func TestSliceAliasing(t *testing.T) {
	root := Zeros(NewShape(3, 4, 5))
	defer root.Release()
	forEachIndex(root.Shape(), func(idx []int) {
		root.Set(float32(idx[0]*100+idx[1]*10+idx[2]), idx...)
	})

	view, err := root.Slice(2, 1)
	require.NoError(t, err)
	defer view.Release()

	assert.True(t, view.IsSlice())
	assert.Same(t, root, view.Root())
	assert.Equal(t, []int{5}, view.Shape().Dims)
	assert.Equal(t, []int{2, 1}, view.SliceIndex())
	assert.Equal(t, (2*20+1*5)*elementSize, view.ByteOffset())

	for k := 0; k < 5; k++ {
		assert.Equal(t, root.At(2, 1, k), view.At(k))
	}

	// writes propagate both ways
	view.Set(-1, 3)
	assert.Equal(t, float32(-1), root.At(2, 1, 3))
	root.Set(-2, 2, 1, 0)
	assert.Equal(t, float32(-2), view.At(0))
}

func TestSliceOfSlice(t *testing.T) {
	root := Zeros(NewShape(2, 3, 4))
	defer root.Release()

	outer := root.MustSlice(1)
	inner := outer.MustSlice(2)
	defer outer.Release()
	defer inner.Release()

	assert.Same(t, root, inner.Root())
	assert.Equal(t, []int{1, 2}, inner.SliceIndex())
	assert.Equal(t, root.MustSlice(1, 2).Offset(), inner.Offset())

	inner.Set(9, 1)
	assert.Equal(t, float32(9), root.At(1, 2, 1))
}

func TestSliceInvalid(t *testing.T) {
	root := Zeros(NewShape(2, 3))
	defer root.Release()

	_, err := root.Slice()
	assert.Error(t, err)
	_, err = root.Slice(0, 0, 0)
	assert.Error(t, err)
	_, err = root.Slice(2)
	assert.Error(t, err)
	_, err = root.Slice(0, 3)
	assert.Error(t, err)
	assert.Panics(t, func() { root.MustSlice(-1) })
}

func TestReshape(t *testing.T) {
	s := Zeros(NewShape(10, 10))
	defer s.Release()

	require.NoError(t, s.Reshape(NewShape(5, 5)))
	assert.Equal(t, []int{5, 5}, s.Shape().Dims)
	assert.Len(t, s.Data(), 25)

	err := s.Reshape(NewShape(s.Capacity() + 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))
	assert.Equal(t, []int{5, 5}, s.Shape().Dims, "failed reshape must not change the shape")
}

func TestStorageIdentity(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3}, NewShape(3))
	require.NoError(t, err)
	b, err := FromSlice([]float32{1, 2, 3}, NewShape(3))
	require.NoError(t, err)

	assert.True(t, a.Same(a))
	assert.False(t, a.Same(b), "equal content is not identity")

	m := Zeros(NewShape(2, 3))
	first := m.MustSlice(0)
	second := m.MustSlice(1)
	assert.True(t, first.Same(m))
	assert.False(t, second.Same(m))
}

func TestReleaseKeepsSliceMemory(t *testing.T) {
	root := MustAllocate(NewShape(4, 4), 3)
	view := root.MustSlice(1)

	root.Release()
	assert.Equal(t, float32(3), view.At(0), "slice keeps the buffer alive")

	view.Release()
	assert.Zero(t, view.BaseAddress())
}

func TestReleaseTwice(t *testing.T) {
	root := MustAllocate(NewShape(2, 3), 1)
	view := root.MustSlice(0)

	view.Release()
	view.Release()
	assert.Equal(t, float32(1), root.At(1, 2), "root still holds its reference")
	assert.NotZero(t, root.BaseAddress())

	root.Release()
	root.Release()
	assert.Zero(t, root.BaseAddress())
}

func TestFillClearCopy(t *testing.T) {
	a := Zeros(NewShape(2, 2))
	a.Fill(4)
	assert.Equal(t, []float32{4, 4, 4, 4}, a.Floats())

	b := Zeros(NewShape(4))
	require.NoError(t, b.CopyFrom(a))
	assert.Equal(t, []float32{4, 4, 4, 4}, b.Floats())

	a.Clear()
	assert.Equal(t, []float32{0, 0, 0, 0}, a.Floats())
	assert.Error(t, b.CopyFrom(Zeros(NewShape(3))))
}

func TestRandom(t *testing.T) {
	s, err := Random(NewShape(64), -1, 1, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	for _, v := range s.Data() {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}
