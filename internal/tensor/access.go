package tensor

import "github.com/pkg/errors"

// IndexValid reports whether indices address an element of the current shape.
func (s *Store) IndexValid(indices ...int) bool {
	if len(indices) != s.shape.Rank() {
		return false
	}
	for i, idx := range indices {
		if idx < 0 || idx >= s.shape.Dims[i] {
			return false
		}
	}
	return true
}

// flatIndex converts row-major indices to an offset relative to the store.
// The last dimension varies fastest.
func (s *Store) flatIndex(indices []int) int {
	off := 0
	for i, idx := range indices {
		off = off*s.shape.Dims[i] + idx
	}
	return off
}

// At returns the element at indices. It panics on out-of-range indices.
func (s *Store) At(indices ...int) float32 {
	if !s.IndexValid(indices...) {
		panic(errors.Errorf("tensor: index %v out of range for shape %s", indices, s.shape))
	}
	return s.buf.data[s.offset+s.flatIndex(indices)]
}

// Set writes v at indices. It panics on out-of-range indices.
func (s *Store) Set(v float32, indices ...int) {
	if !s.IndexValid(indices...) {
		panic(errors.Errorf("tensor: index %v out of range for shape %s", indices, s.shape))
	}
	s.buf.data[s.offset+s.flatIndex(indices)] = v
}

// AtUnchecked reads without validating indices. Callers must have validated them.
func (s *Store) AtUnchecked(indices ...int) float32 {
	return s.buf.data[s.offset+s.flatIndex(indices)]
}

// SetUnchecked writes without validating indices.
func (s *Store) SetUnchecked(v float32, indices ...int) {
	s.buf.data[s.offset+s.flatIndex(indices)] = v
}

// ValueOrDefault returns the element at indices, or missing when they are invalid.
func (s *Store) ValueOrDefault(missing float32, indices ...int) float32 {
	if !s.IndexValid(indices...) {
		return missing
	}
	return s.AtUnchecked(indices...)
}
