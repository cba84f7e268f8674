// Package resource pools tensor storage and device-buffer bindings for the
// graph scheduler.
package resource

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/tensor"
)

// ErrNoDevice is returned by AllocateDeviceBufferResources on a manager
// without a device.
var ErrNoDevice = errors.New("resource: manager has no device")

// Status is the occupancy state of a pooled tensor.
type Status int

// Occupancy states.
const (
	Idle Status = iota
	Occupied
)

// String returns "idle" or "occupied".
func (s Status) String() string {
	if s == Idle {
		return "idle"
	}
	return "occupied"
}

// Stats reports pool usage.
type Stats struct {
	Managed     int
	Idle        int
	DeviceBound int
	Fresh       uint64 // allocations that created new storage
	Reused      uint64 // allocations served from an idle tensor
}

// Manager pools root tensors and their device buffers.
//
// All map access happens under one mutex so no caller observes the occupancy
// and buffer maps half updated. Tensor payloads are not guarded.
type Manager struct {
	label  string
	device device.Device
	logger *slog.Logger

	mu      sync.Mutex
	order   []*tensor.Store // registration order for first-fit reuse
	status  map[*tensor.Store]Status
	buffers map[*tensor.Store]device.Buffer
	fresh   uint64
	reused  uint64
}

// NewManager returns an empty manager. dev may be nil; logger defaults to
// slog.Default.
func NewManager(label string, dev device.Device, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		label:   label,
		device:  dev,
		logger:  logger.With("manager", label),
		status:  make(map[*tensor.Store]Status),
		buffers: make(map[*tensor.Store]device.Buffer),
	}
}

// Label returns the manager's label.
func (m *Manager) Label() string {
	return m.label
}

// AllocateTensors returns one Occupied tensor per shape. An Idle tensor whose
// capacity covers the request is reused and reshaped; otherwise fresh storage
// is allocated and, when a device is configured, bound to a device buffer.
// It panics on an invalid shape.
func (m *Manager) AllocateTensors(shapes ...tensor.Shape) []*tensor.Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*tensor.Store, len(shapes))
	for i, shape := range shapes {
		out[i] = m.allocateLocked(shape)
	}
	return out
}

// AllocateTensor allocates a single managed tensor.
func (m *Manager) AllocateTensor(shape tensor.Shape) *tensor.Store {
	return m.AllocateTensors(shape)[0]
}

func (m *Manager) allocateLocked(shape tensor.Shape) *tensor.Store {
	need := shape.NumElements()
	for _, t := range m.order {
		if m.status[t] != Idle || t.Capacity() < need {
			continue
		}
		if err := t.Reshape(shape); err != nil {
			panic(errors.WithMessagef(err, "resource: reshape pooled tensor to %s", shape))
		}
		m.status[t] = Occupied
		m.reused++
		m.logger.Debug("reused pooled tensor", "shape", shape.String(), "capacity", t.Capacity())
		return t
	}

	t := tensor.MustAllocate(shape, 0)
	m.order = append(m.order, t)
	m.status[t] = Occupied
	m.fresh++
	if m.device != nil {
		buf, err := m.device.NewBuffer(t.Region())
		if err != nil {
			m.logger.Warn("eager device buffer binding failed, will retry on demand",
				"shape", shape.String(), "error", err)
		} else {
			m.buffers[t] = buf
		}
	}
	m.logger.Debug("allocated tensor", "shape", shape.String(), "bytes", t.AllocatedBytes())
	return t
}

// AllocateUnmanagedTensors returns zero-filled tensors that the manager does
// not track.
func (m *Manager) AllocateUnmanagedTensors(shapes ...tensor.Shape) []*tensor.Store {
	out := make([]*tensor.Store, len(shapes))
	for i, shape := range shapes {
		out[i] = tensor.Zeros(shape)
	}
	return out
}

// AllocateUnmanagedTensor allocates a single unmanaged tensor.
func (m *Manager) AllocateUnmanagedTensor(shape tensor.Shape) *tensor.Store {
	return tensor.Zeros(shape)
}

// ReturnTensors marks managed roots Idle so later allocations may reuse them.
// Slices and tensors the manager does not own are ignored with a warning.
func (m *Manager) ReturnTensors(ts ...*tensor.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range ts {
		if !m.acceptLocked("return", t) {
			continue
		}
		m.status[t] = Idle
	}
}

// ReleaseTensors stops tracking managed roots and drops their device buffers.
// The memory is freed once nothing else references it. Slices and foreign
// tensors are ignored with a warning.
func (m *Manager) ReleaseTensors(ts ...*tensor.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range ts {
		if !m.acceptLocked("release", t) {
			continue
		}
		m.removeLocked(t)
	}
}

func (m *Manager) acceptLocked(op string, t *tensor.Store) bool {
	if t == nil {
		m.logger.Warn("ignoring nil tensor", "op", op)
		return false
	}
	if t.IsSlice() {
		m.logger.Warn("ignoring slice tensor, only roots are pooled", "op", op, "index", t.SliceIndex())
		return false
	}
	if _, ok := m.status[t]; !ok {
		m.logger.Warn("ignoring tensor not managed here", "op", op, "shape", t.Shape().String())
		return false
	}
	return true
}

func (m *Manager) removeLocked(t *tensor.Store) {
	if buf, ok := m.buffers[t]; ok {
		buf.Release()
		delete(m.buffers, t)
	}
	delete(m.status, t)
	for i, o := range m.order {
		if o == t {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// IsManagingTensor reports whether the root of t is tracked by the manager.
func (m *Manager) IsManagingTensor(t *tensor.Store) bool {
	if t == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.status[t.Root()]
	return ok
}

// IsTensorAvailable reports whether the root of t is tracked and Idle.
// Asking about an unmanaged tensor logs a warning and returns false.
func (m *Manager) IsTensorAvailable(t *tensor.Store) bool {
	if t == nil {
		m.logger.Warn("availability queried for nil tensor")
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[t.Root()]
	if !ok {
		m.logger.Warn("availability queried for tensor not managed here", "shape", t.Shape().String())
		return false
	}
	return st == Idle
}

// AllocateDeviceBufferResources returns a device binding per tensor.
// Unmanaged tensors get a fresh buffer over their own memory at offset 0.
// Managed tensors share the buffer of their root, created on first use, at
// the tensor's byte offset within that root.
func (m *Manager) AllocateDeviceBufferResources(ts ...*tensor.Store) ([]device.Binding, error) {
	if m.device == nil {
		return nil, ErrNoDevice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]device.Binding, len(ts))
	for i, t := range ts {
		root := t.Root()
		if _, managed := m.status[root]; !managed {
			buf, err := m.device.NewBuffer(t.Region())
			if err != nil {
				return nil, errors.WithMessagef(err, "resource: buffer for unmanaged tensor %d", i)
			}
			out[i] = device.Binding{Buffer: buf}
			continue
		}

		buf, ok := m.buffers[root]
		if !ok {
			var err error
			buf, err = m.device.NewBuffer(root.Region())
			if err != nil {
				return nil, errors.WithMessagef(err, "resource: buffer for managed tensor %d", i)
			}
			m.buffers[root] = buf
		}
		out[i] = device.Binding{Buffer: buf, Offset: t.ByteOffset()}
	}
	return out, nil
}

// ReleaseAllResources forgets every tracked tensor and releases their device
// buffers in one step. Memory is reclaimed once no other references remain.
func (m *Manager) ReleaseAllResources() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, buf := range m.buffers {
		buf.Release()
	}
	n := len(m.status)
	m.buffers = make(map[*tensor.Store]device.Buffer)
	m.status = make(map[*tensor.Store]Status)
	m.order = nil
	m.logger.Info("released all resources", "tensors", n)
}

// Stats returns a snapshot of pool usage.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Managed:     len(m.status),
		DeviceBound: len(m.buffers),
		Fresh:       m.fresh,
		Reused:      m.reused,
	}
	for _, st := range m.status {
		if st == Idle {
			s.Idle++
		}
	}
	return s
}
