package tensor

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrCapacity is returned by Reshape when a shape needs more elements than the
// store can hold.
var ErrCapacity = errors.New("tensor: insufficient capacity")

// Store is a tensor backed by page-aligned float32 memory.
//
// A root store owns its buffer. A slice is a view into the buffer of its root
// at a row-major offset, with the leading indexed dimensions removed from its
// shape. Stores are compared by storage identity (see Same), never by content.
type Store struct {
	buf      *storeBuffer
	root     *Store // nil for roots
	index    []int  // index path from the root, nil for roots
	offset   int    // element offset within the root buffer
	shape    Shape
	capacity int // elements addressable from offset
	released atomic.Bool
}

// Allocate creates a root store of the given shape with every slot set to fill.
// The capacity is rounded up so that the byte size is a whole number of pages.
func Allocate(shape Shape, fill float32) (*Store, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "tensor: allocate")
	}
	capacity := alignedCapacity(shape.NumElements())
	s := &Store{
		buf:      newStoreBuffer(capacity),
		shape:    shape.Clone(),
		capacity: capacity,
	}
	if fill != 0 {
		for i := range s.buf.data {
			s.buf.data[i] = fill
		}
	}
	return s, nil
}

// MustAllocate is Allocate that panics on an invalid shape.
func MustAllocate(shape Shape, fill float32) *Store {
	s, err := Allocate(shape, fill)
	if err != nil {
		panic(err)
	}
	return s
}

// Zeros allocates a zero-filled root store.
func Zeros(shape Shape) *Store {
	return MustAllocate(shape, 0)
}

// FromSlice allocates a root store and copies data into it.
func FromSlice(data []float32, shape Shape) (*Store, error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Errorf("tensor: %d values do not fill shape %s", len(data), shape)
	}
	s, err := Allocate(shape, 0)
	if err != nil {
		return nil, err
	}
	copy(s.Data(), data)
	return s, nil
}

// Random allocates a root store filled with uniform values in [low, high).
func Random(shape Shape, low, high float32, rng *rand.Rand) (*Store, error) {
	s, err := Allocate(shape, 0)
	if err != nil {
		return nil, err
	}
	data := s.Data()
	for i := range data {
		data[i] = low + (high-low)*rng.Float32()
	}
	return s, nil
}

// Shape returns the store's current shape.
func (s *Store) Shape() Shape {
	return s.shape
}

// DType returns the data type tag of the shape.
func (s *Store) DType() DataType {
	return s.shape.DType
}

// NumElements returns the element count of the current shape.
func (s *Store) NumElements() int {
	return s.shape.NumElements()
}

// Capacity returns how many elements the store can address without reallocation.
func (s *Store) Capacity() int {
	return s.capacity
}

// AllocatedBytes returns the byte size of the addressable region.
func (s *Store) AllocatedBytes() int {
	return s.capacity * elementSize
}

// IsSlice reports whether the store is a non-owning view.
func (s *Store) IsSlice() bool {
	return s.root != nil
}

// Root returns the store owning the memory; a root returns itself.
func (s *Store) Root() *Store {
	if s.root == nil {
		return s
	}
	return s.root
}

// SliceIndex returns the index path from the root, or nil for a root.
func (s *Store) SliceIndex() []int {
	return append([]int(nil), s.index...)
}

// Offset returns the element offset of the store within its root.
func (s *Store) Offset() int {
	return s.offset
}

// ByteOffset returns the byte offset of the store within its root.
func (s *Store) ByteOffset() int {
	return s.offset * elementSize
}

// BaseAddress returns the address of the first element, or 0 after release.
func (s *Store) BaseAddress() uintptr {
	if !s.buf.live() || len(s.buf.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s.buf.data[s.offset]))
}

// Same reports storage identity: both stores start at the same address.
// A slice at offset 0 is therefore the same as its root.
func (s *Store) Same(other *Store) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.buf == other.buf && s.offset == other.offset
}

// Data returns the live elements of the current shape, sharing memory.
func (s *Store) Data() []float32 {
	n := s.shape.NumElements()
	return s.buf.data[s.offset : s.offset+n : s.offset+n]
}

// Region returns all addressable elements, sharing memory.
func (s *Store) Region() []float32 {
	return s.buf.data[s.offset : s.offset+s.capacity : s.offset+s.capacity]
}

// Slice returns a view at the leading indices. The view's shape is the store's
// shape without the indexed dimensions. Slicing a slice yields another view on
// the same root.
func (s *Store) Slice(indices ...int) (*Store, error) {
	if len(indices) == 0 || len(indices) > s.shape.Rank() {
		return nil, errors.Errorf("tensor: slice index %v invalid for shape %s", indices, s.shape)
	}
	strides := s.shape.ComputeStrides()
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= s.shape.Dims[i] {
			return nil, errors.Errorf("tensor: slice index %v out of bounds for shape %s", indices, s.shape)
		}
		offset += idx * strides[i]
	}

	sub := Shape{Dims: append([]int(nil), s.shape.Dims[len(indices):]...), DType: s.shape.DType}
	root := s.Root()
	root.buf.addRef()

	return &Store{
		buf:      root.buf,
		root:     root,
		index:    append(append([]int(nil), s.index...), indices...),
		offset:   s.offset + offset,
		shape:    sub,
		capacity: sub.NumElements(),
	}, nil
}

// MustSlice is Slice that panics on invalid indices.
func (s *Store) MustSlice(indices ...int) *Store {
	v, err := s.Slice(indices...)
	if err != nil {
		panic(err)
	}
	return v
}

// Reshape changes the shape metadata when the capacity suffices.
// The data type tag is taken from shape.
func (s *Store) Reshape(shape Shape) error {
	if err := shape.Validate(); err != nil {
		return errors.Wrap(err, "tensor: reshape")
	}
	if shape.NumElements() > s.capacity {
		return errors.Wrapf(ErrCapacity, "reshape to %s needs %d elements, capacity %d",
			shape, shape.NumElements(), s.capacity)
	}
	s.shape = shape.Clone()
	return nil
}

// Fill sets every live element to v.
func (s *Store) Fill(v float32) {
	data := s.Data()
	for i := range data {
		data[i] = v
	}
}

// Clear sets every live element to zero.
func (s *Store) Clear() {
	clear(s.Data())
}

// CopyFrom copies the live elements of src. Element counts must match.
func (s *Store) CopyFrom(src *Store) error {
	if src.NumElements() != s.NumElements() {
		return errors.Errorf("tensor: copy %s into %s", src.shape, s.shape)
	}
	copy(s.Data(), src.Data())
	return nil
}

// Floats returns a copy of the live elements.
func (s *Store) Floats() []float32 {
	return append([]float32(nil), s.Data()...)
}

// Nested returns the live elements as nested []any following the shape.
// A scalar returns its float32 value.
func (s *Store) Nested() any {
	data := s.Data()
	var build func(dim, off int) any
	build = func(dim, off int) any {
		if dim == s.shape.Rank() {
			return data[off]
		}
		strides := s.shape.ComputeStrides()
		out := make([]any, s.shape.Dims[dim])
		for i := range out {
			out[i] = build(dim+1, off+i*strides[dim])
		}
		return out
	}
	return build(0, 0)
}

// Release drops this store's reference to the memory. The memory is freed
// once the root and all of its slices are released. Releasing a store again
// is a no-op.
func (s *Store) Release() {
	if s.buf == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.buf.release()
}

// String returns a short description of the store.
func (s *Store) String() string {
	if s.IsSlice() {
		return fmt.Sprintf("Store(slice %v of %p, %s)", s.index, s.root, s.shape)
	}
	return fmt.Sprintf("Store(%p, %s, cap=%d)", s, s.shape, s.capacity)
}
