package graph

import (
	"github.com/born-ml/graphcore/internal/tensor"
)

// Value is a value bound to a data symbol. It is implemented only by
// TensorValue and ScalarValue; resolve it with a type switch.
type Value interface {
	Shape() tensor.Shape
	isValue()
}

// TensorValue binds tensor storage.
type TensorValue struct {
	Store *tensor.Store
}

// Shape returns the store's shape.
func (v TensorValue) Shape() tensor.Shape { return v.Store.Shape() }

func (TensorValue) isValue() {}

// ScalarValue binds a single number.
type ScalarValue float32

// Shape returns the rank-0 float32 shape.
func (ScalarValue) Shape() tensor.Shape { return tensor.ScalarShape(tensor.Float32) }

func (ScalarValue) isValue() {}
