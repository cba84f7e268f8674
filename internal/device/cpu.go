package device

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/parallel"
)

// KernelFunc computes n output elements. args holds one view per binding, each
// starting at the binding offset; the last view is the output.
type KernelFunc func(args [][]float32, n int, cfg parallel.Config)

type cpuKernel struct {
	name string
	fn   KernelFunc
}

func (k *cpuKernel) Name() string { return k.name }

// CPU is a host-memory device. Its buffers alias the tensor memory they were
// created over, so kernels read and write tensors in place.
type CPU struct {
	cfg     parallel.Config
	mu      sync.RWMutex
	kernels map[string]*cpuKernel
}

// NewCPU returns a CPU device with the elementwise kernels registered.
func NewCPU(cfg parallel.Config) *CPU {
	c := &CPU{cfg: cfg, kernels: make(map[string]*cpuKernel)}
	for name, fn := range elementwiseKernels {
		c.Register(name, fn)
	}
	return c
}

// Name returns "cpu".
func (c *CPU) Name() string { return "cpu" }

// Register adds or replaces a kernel.
func (c *CPU) Register(name string, fn KernelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kernels[name] = &cpuKernel{name: name, fn: fn}
}

// LoadKernel returns the registered kernel called name.
func (c *CPU) LoadKernel(name string) (Kernel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kernels[name]
	if !ok {
		return nil, errors.Wrapf(ErrKernelNotFound, "cpu: %q", name)
	}
	return k, nil
}

// NewBuffer wraps data without copying.
func (c *CPU) NewBuffer(data []float32) (Buffer, error) {
	return &hostBuffer{owner: c, data: data}, nil
}

// Execute runs each work item synchronously.
func (c *CPU) Execute(work ...Work) error {
	for _, w := range work {
		k, ok := w.Kernel.(*cpuKernel)
		if !ok {
			return errors.Errorf("cpu: kernel %T was not loaded by this device", w.Kernel)
		}
		args := make([][]float32, len(w.Bindings))
		for i, b := range w.Bindings {
			view, err := resolve(c, b, w.Elements)
			if err != nil {
				return errors.WithMessagef(err, "cpu: kernel %q binding %d", k.name, i)
			}
			args[i] = view
		}
		k.fn(args, w.Elements, c.cfg)
	}
	return nil
}

// Release is a no-op; host buffers are owned by their tensors.
func (c *CPU) Release() {}

var elementwiseKernels = map[string]KernelFunc{
	"add": binary(func(a, b float32) float32 { return a + b }),
	"sub": binary(func(a, b float32) float32 { return a - b }),
	"mul": binary(func(a, b float32) float32 { return a * b }),
	"div": binary(func(a, b float32) float32 { return a / b }),
}

func binary(op func(a, b float32) float32) KernelFunc {
	return func(args [][]float32, n int, cfg parallel.Config) {
		a, b, out := args[0], args[1], args[2]
		parallel.For(n, func(i int) {
			out[i] = op(a[i], b[i])
		}, cfg)
	}
}
