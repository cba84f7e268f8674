// Package tensor provides the page-aligned tensor storage used by the graph core.
package tensor

// DataType is the element type tag carried by a Shape.
//
// Payload storage is always float32; the tag describes how the values are
// interpreted and is compared by Shape.DotEqual.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
)

// elementSize is the byte size of every stored element.
const elementSize = 4

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}
