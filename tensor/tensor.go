// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/graphcore/internal/tensor"
)

// Store is a tensor: a root allocation or a slice view into one.
type Store = tensor.Store

// Shape is a dimension list plus a data type tag.
type Shape = tensor.Shape

// DataType tags the element type of a shape.
type DataType = tensor.DataType

// Data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
)

// ErrCapacity is returned when a reshape needs more elements than allocated.
var ErrCapacity = tensor.ErrCapacity

// NewShape creates a float32 shape.
func NewShape(dims ...int) Shape {
	return tensor.NewShape(dims...)
}

// ScalarShape returns the rank-0 shape of dtype.
func ScalarShape(dtype DataType) Shape {
	return tensor.ScalarShape(dtype)
}

// BroadcastShapes returns the broadcast shape of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// Allocate creates a root tensor with every element set to fill.
//
// Example:
//
//	x, err := tensor.Allocate(tensor.NewShape(4, 4), 0.5)
func Allocate(shape Shape, fill float32) (*Store, error) {
	return tensor.Allocate(shape, fill)
}

// MustAllocate is Allocate that panics on error.
func MustAllocate(shape Shape, fill float32) *Store {
	return tensor.MustAllocate(shape, fill)
}

// Zeros creates a zero-filled root tensor.
func Zeros(shape Shape) *Store {
	return tensor.Zeros(shape)
}

// FromSlice copies data into a new root tensor of shape.
func FromSlice(data []float32, shape Shape) (*Store, error) {
	return tensor.FromSlice(data, shape)
}

// Random fills a new tensor with values drawn uniformly from [low, high).
func Random(shape Shape, low, high float32, rng *rand.Rand) (*Store, error) {
	return tensor.Random(shape, low, high, rng)
}
