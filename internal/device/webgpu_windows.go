//go:build windows

package device

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// WebGPU runs kernels on a GPU through go-webgpu.
//
// Buffers handed out by NewBuffer alias host memory like the CPU device does;
// Execute uploads the argument ranges, dispatches the kernel and writes the
// result range back into host memory before returning.
type WebGPU struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline

	pool *BufferPool
}

type gpuKernel struct {
	name     string
	pipeline *wgpu.ComputePipeline
}

func (k *gpuKernel) Name() string { return k.name }

// NewWebGPU opens the high-performance adapter. It returns ErrNoDevice when the
// native library or an adapter is missing.
func NewWebGPU() (dev Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = errors.Wrapf(ErrNoDevice, "webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(ErrNoDevice, "webgpu: request adapter: %v", err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(ErrNoDevice, "webgpu: request device: %v", err)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrNoDevice, "webgpu: no queue")
	}

	return &WebGPU{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		pool:      NewBufferPool(device),
	}, nil
}

// Name returns "webgpu".
func (g *WebGPU) Name() string { return "webgpu" }

// LoadKernel compiles the named kernel once and caches its pipeline.
func (g *WebGPU) LoadKernel(name string) (Kernel, error) {
	g.mu.RLock()
	pipeline, ok := g.pipelines[name]
	g.mu.RUnlock()
	if ok {
		return &gpuKernel{name: name, pipeline: pipeline}, nil
	}

	src, ok := gpuKernelSources[name]
	if !ok {
		return nil, errors.Wrapf(ErrKernelNotFound, "webgpu: %q", name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if pipeline, ok := g.pipelines[name]; ok {
		return &gpuKernel{name: name, pipeline: pipeline}, nil
	}
	shader := g.device.CreateShaderModuleWGSL(src)
	pipeline = g.device.CreateComputePipelineSimple(nil, shader, "main")
	g.shaders[name] = shader
	g.pipelines[name] = pipeline
	return &gpuKernel{name: name, pipeline: pipeline}, nil
}

// NewBuffer wraps host data without copying.
func (g *WebGPU) NewBuffer(data []float32) (Buffer, error) {
	return &hostBuffer{owner: g, data: data}, nil
}

// Execute dispatches each work item and waits for its result.
func (g *WebGPU) Execute(work ...Work) error {
	for _, w := range work {
		if err := g.execute(w); err != nil {
			return err
		}
	}
	return nil
}

func (g *WebGPU) execute(w Work) error {
	k, ok := w.Kernel.(*gpuKernel)
	if !ok {
		return errors.Errorf("webgpu: kernel %T was not loaded by this device", w.Kernel)
	}
	if len(w.Bindings) < 1 || w.Elements == 0 {
		return nil
	}

	views := make([][]float32, len(w.Bindings))
	for i, b := range w.Bindings {
		view, err := resolve(g, b, w.Elements)
		if err != nil {
			return errors.WithMessagef(err, "webgpu: kernel %q binding %d", k.name, i)
		}
		views[i] = view
	}

	size := uint64(w.Elements) * 4 //nolint:gosec // G115: element count is non-negative
	last := len(views) - 1

	entries := make([]wgpu.BindGroupEntry, 0, len(views)+1)
	for i, view := range views[:last] {
		buf := g.upload(asBytes(view), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
		defer buf.Release()
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buf, 0, size)) //nolint:gosec // G115
	}

	resultUsage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	result := g.pool.Acquire(size, resultUsage)
	defer g.pool.Put(result, size, resultUsage)
	entries = append(entries, wgpu.BufferBindingEntry(uint32(last), result, 0, size)) //nolint:gosec // G115

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(w.Elements)) //nolint:gosec // G115
	uniform := g.upload(params, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	defer uniform.Release()
	entries = append(entries, wgpu.BufferBindingEntry(uint32(last+1), uniform, 0, 16)) //nolint:gosec // G115

	bindGroup := g.device.CreateBindGroupSimple(k.pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := g.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((w.Elements+workgroupSize-1)/workgroupSize), 1, 1) //nolint:gosec // G115
	pass.End()
	g.queue.Submit(encoder.Finish(nil))

	return g.readInto(result, asBytes(views[last]))
}

// upload creates a buffer initialized with data.
func (g *WebGPU) upload(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mapped), size), data)
	buffer.Unmap()
	return buffer
}

// readInto copies src back into dst through a pooled staging buffer.
func (g *WebGPU) readInto(src *wgpu.Buffer, dst []byte) error {
	size := uint64(len(dst))
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	staging := g.pool.Acquire(size, usage)
	defer g.pool.Put(staging, size, usage)

	encoder := g.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	g.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(g.device, wgpu.MapModeRead, 0, size); err != nil {
		return errors.Wrap(err, "webgpu: map staging buffer")
	}
	mapped := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(dst, unsafe.Slice((*byte)(mapped), size))
	staging.Unmap()
	return nil
}

// PoolStats returns statistics of the result/staging buffer pool.
func (g *WebGPU) PoolStats() PoolStats {
	return g.pool.Stats()
}

// Release frees every GPU object owned by the device.
func (g *WebGPU) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pool.Clear()
	for name, p := range g.pipelines {
		p.Release()
		delete(g.pipelines, name)
	}
	for name, s := range g.shaders {
		s.Release()
		delete(g.shaders, name)
	}
	if g.queue != nil {
		g.queue.Release()
		g.queue = nil
	}
	if g.device != nil {
		g.device.Release()
		g.device = nil
	}
	if g.adapter != nil {
		g.adapter.Release()
		g.adapter = nil
	}
	if g.instance != nil {
		g.instance.Release()
		g.instance = nil
	}
}
