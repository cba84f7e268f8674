package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Shape is an ordered list of positive dimension sizes plus a data type tag.
// A Shape with no dimensions describes a scalar.
type Shape struct {
	Dims  []int
	DType DataType
}

// NewShape returns a float32 shape with the given dimensions.
func NewShape(dims ...int) Shape {
	return Shape{Dims: append([]int(nil), dims...), DType: Float32}
}

// ScalarShape returns the rank-0 shape for dtype.
func ScalarShape(dtype DataType) Shape {
	return Shape{DType: dtype}
}

// WithDType returns a copy of the shape tagged with dtype.
func (s Shape) WithDType(dtype DataType) Shape {
	c := s.Clone()
	c.DType = dtype
	return c
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s.Dims)
}

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s.Dims {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s.Dims {
		if dim <= 0 {
			return errors.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
// The data type is ignored; see DotEqual.
func (s Shape) Equal(other Shape) bool {
	if len(s.Dims) != len(other.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

// DotEqual reports whether both shapes have the same dimensions and data type.
func (s Shape) DotEqual(other Shape) bool {
	return s.DType == other.DType && s.Equal(other)
}

// Compare orders shapes by rank, then by element count.
// It returns -1, 0 or +1.
func (s Shape) Compare(other Shape) int {
	switch {
	case s.Rank() < other.Rank():
		return -1
	case s.Rank() > other.Rank():
		return 1
	}
	a, b := s.NumElements(), other.NumElements()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Less reports whether s orders before other.
func (s Shape) Less(other Shape) bool {
	return s.Compare(other) < 0
}

// MaxShape returns the greatest shape under Compare, the broadcast target
// for a group of operands. It returns false for an empty list.
func MaxShape(shapes ...Shape) (Shape, bool) {
	if len(shapes) == 0 {
		return Shape{}, false
	}
	best := shapes[0]
	for _, s := range shapes[1:] {
		if best.Less(s) {
			best = s
		}
	}
	return best, true
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dims: append([]int(nil), s.Dims...), DType: s.DType}
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s.Dims))
	if len(s.Dims) == 0 {
		return strides
	}
	strides[len(s.Dims)-1] = 1
	for i := len(s.Dims) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s.Dims[i+1]
	}
	return strides
}

// String formats the shape as [d0 d1 ...]:dtype.
func (s Shape) String() string {
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " ") + "]:" + s.DType.String()
}

// BroadcastShapes implements NumPy-style broadcasting.
//
// Shapes are compared right to left; dimensions are compatible when they are
// equal or one of them is 1, and missing dimensions count as 1. The result
// carries a's data type. The flag reports whether any expansion is needed.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a.Dims), len(b.Dims))
	dims := make([]int, n)
	needsBroadcast := len(a.Dims) != len(b.Dims)

	for i := 0; i < n; i++ {
		aDim, bDim := 1, 1
		if j := len(a.Dims) - 1 - i; j >= 0 {
			aDim = a.Dims[j]
		}
		if j := len(b.Dims) - 1 - i; j >= 0 {
			bDim = b.Dims[j]
		}

		switch {
		case aDim == bDim:
			dims[n-1-i] = aDim
		case aDim == 1:
			dims[n-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			dims[n-1-i] = aDim
			needsBroadcast = true
		default:
			return Shape{}, false, errors.Errorf("shapes not compatible for broadcasting: %s vs %s (dimension %d: %d vs %d)",
				a, b, n-1-i, aDim, bDim)
		}
	}
	return Shape{Dims: dims, DType: a.DType}, needsBroadcast, nil
}

// BroadcastStrides returns strides for reading a tensor of shape in as if it
// had shape out. Broadcast dimensions get stride 0.
func BroadcastStrides(in, out Shape) []int {
	inStrides := in.ComputeStrides()
	strides := make([]int, out.Rank())
	shift := out.Rank() - in.Rank()
	for i := range strides {
		j := i - shift
		if j < 0 || in.Dims[j] == 1 {
			continue
		}
		strides[i] = inStrides[j]
	}
	return strides
}
