// Package device defines the compute-backend contract of the graph core and
// ships a CPU fallback device plus a WebGPU device.
package device

import (
	"unsafe"

	"github.com/pkg/errors"
)

var (
	// ErrKernelNotFound is returned by LoadKernel for an unknown kernel name.
	ErrKernelNotFound = errors.New("device: kernel not found")

	// ErrNoDevice is returned when no compute device is available.
	ErrNoDevice = errors.New("device: no compute device available")

	// ErrForeignBuffer is returned when work references a buffer that was not
	// created by the executing device.
	ErrForeignBuffer = errors.New("device: buffer not created by this device")
)

// Kernel is a loaded compute kernel.
type Kernel interface {
	Name() string
}

// Buffer is a device buffer handle.
type Buffer interface {
	// Len returns the buffer size in bytes.
	Len() int
	Release()
}

// Binding describes where a kernel argument lives: a buffer plus a byte offset.
type Binding struct {
	Buffer Buffer
	Offset int
}

// Work is one encoded kernel dispatch. The last binding receives the result;
// the others are read-only arguments. Elements is the number of output
// elements to compute.
type Work struct {
	Kernel   Kernel
	Bindings []Binding
	Elements int
}

// Device is the contract the core needs from a compute backend.
type Device interface {
	Name() string
	LoadKernel(name string) (Kernel, error)
	// NewBuffer returns a buffer over data. Host-visible devices do not copy.
	NewBuffer(data []float32) (Buffer, error)
	// Execute runs the work in order and blocks until it has completed.
	Execute(work ...Work) error
	Release()
}

// hostBuffer is a device buffer that aliases host memory.
type hostBuffer struct {
	owner any
	data  []float32
}

func (b *hostBuffer) Len() int {
	return len(b.data) * 4
}

func (b *hostBuffer) Release() {
	b.data = nil
}

// resolve returns the float32 view of a binding, checking ownership and bounds.
func resolve(owner any, bind Binding, elements int) ([]float32, error) {
	hb, ok := bind.Buffer.(*hostBuffer)
	if !ok || hb.owner != owner {
		return nil, ErrForeignBuffer
	}
	if bind.Offset%4 != 0 {
		return nil, errors.Errorf("device: binding offset %d is not float32 aligned", bind.Offset)
	}
	start := bind.Offset / 4
	if start+elements > len(hb.data) {
		return nil, errors.Errorf("device: binding of %d elements at offset %d overruns %d byte buffer",
			elements, bind.Offset, hb.Len())
	}
	return hb.data[start : start+elements], nil
}

// asBytes reinterprets float32 data as bytes without copying.
func asBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy view of the same memory
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}
