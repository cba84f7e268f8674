package tensor

import (
	"os"
	"sync"
	"sync/atomic"
	"unsafe"
)

// pageSize is the allocation granularity of root storage.
var pageSize = os.Getpagesize()

// alignedCapacity returns the number of float32 slots needed to hold n
// elements when the byte size is rounded up to a whole number of pages.
func alignedCapacity(n int) int {
	bytes := max(n, 1) * elementSize
	pages := (bytes + pageSize - 1) / pageSize
	return pages * pageSize / elementSize
}

// storeBuffer is the reference-counted, page-aligned backing memory of a root
// store. The root and each of its slices hold one reference.
type storeBuffer struct {
	data     []float32
	refCount atomic.Int32
	mu       sync.Mutex
}

// newStoreBuffer allocates capacity float32 slots starting on a page boundary.
func newStoreBuffer(capacity int) *storeBuffer {
	padding := pageSize / elementSize
	raw := make([]float32, capacity+padding)

	//nolint:gosec // address arithmetic only, the slice keeps raw alive
	addr := uintptr(unsafe.Pointer(&raw[0]))
	shift := 0
	if rem := int(addr % uintptr(pageSize)); rem != 0 {
		shift = (pageSize - rem) / elementSize
	}

	buf := &storeBuffer{data: raw[shift : shift+capacity : shift+capacity]}
	buf.refCount.Store(1)
	return buf
}

func (b *storeBuffer) addRef() {
	b.refCount.Add(1)
}

// release drops one reference and frees the memory with the last one.
func (b *storeBuffer) release() {
	if b.refCount.Add(-1) == 0 {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.data = nil
	}
}

func (b *storeBuffer) live() bool {
	return b.refCount.Load() > 0
}
