// Package ops provides reference operators implementing graph.Operator.
//
// Operators are stateless between passes: the graph assigns their tensors
// during verification and calls Compute and GradCompute from its workers.
package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/tensor"
)

// base carries the state every operator shares.
type base struct {
	eng   *engine.Engine
	label string

	inputs  []*tensor.Store
	outputs []*tensor.Store
	params  []*graph.Symbol

	delegate      graph.Delegate
	checkDisabled bool
}

func (b *base) Label() string                       { return b.label }
func (b *base) SetInputs(in []*tensor.Store)        { b.inputs = in }
func (b *base) SetOutputs(out []*tensor.Store)      { b.outputs = out }
func (b *base) Inputs() []*tensor.Store             { return b.inputs }
func (b *base) Outputs() []*tensor.Store            { return b.outputs }
func (b *base) BindParamSymbols(ps []*graph.Symbol) { b.params = ps }
func (b *base) ParamSymbols() []graph.ParamSpec     { return nil }
func (b *base) SetDelegate(d graph.Delegate)        { b.delegate = d }
func (b *base) DisableCheck(disabled bool)          { b.checkDisabled = disabled }

// computeAsync runs compute on a new goroutine and reports to the delegate.
func (b *base) computeAsync(self graph.Operator, mode engine.Mode, compute func(engine.Mode)) {
	d := b.delegate
	if d == nil {
		b.eng.Logger().Warn("asynchronous compute without a delegate, completion is unobservable", "op", b.label)
		d = graph.DelegateFuncs{}
	}
	go func() {
		d.OnComputeStart(self)
		compute(mode)
		d.OnComputeEnd(self, b.outputs)
	}()
}

// gradCompute wraps grad with the delegate's gradient callbacks.
func (b *base) gradCompute(self graph.Operator, grad func() map[string]graph.Value) map[string]graph.Value {
	if b.delegate != nil {
		b.delegate.OnGradStart(self)
	}
	grads := grad()
	if b.delegate != nil {
		b.delegate.OnGradEnd(self, grads)
	}
	return grads
}

// param returns the bound parameter symbol called label.
func (b *base) param(label string) *graph.Symbol {
	for _, p := range b.params {
		if p.Label() == label {
			return p
		}
	}
	panic(errors.Errorf("ops: %s has no parameter %q bound", b.label, label))
}

// runKernel executes a device kernel over the given tensors; the last tensor
// receives the result. Backend errors are fatal.
func (b *base) runKernel(name string, tensors ...*tensor.Store) {
	dev := b.eng.Device()
	k, err := dev.LoadKernel(name)
	if err != nil {
		panic(errors.WithMessagef(err, "ops: %s", b.label))
	}
	binds, err := b.eng.Resources().AllocateDeviceBufferResources(tensors...)
	if err != nil {
		panic(errors.WithMessagef(err, "ops: %s", b.label))
	}
	out := tensors[len(tensors)-1]
	err = dev.Execute(device.Work{Kernel: k, Bindings: binds, Elements: out.NumElements()})
	if err != nil {
		panic(errors.WithMessagef(err, "ops: %s", b.label))
	}
}

// checkArity validates tensor counts and is shared by CheckTensors methods.
func (b *base) checkArity(inputs, outputs int) (bool, string) {
	if len(b.inputs) != inputs {
		return false, errors.Errorf("%s expects %d inputs, got %d", b.label, inputs, len(b.inputs)).Error()
	}
	if len(b.outputs) != outputs {
		return false, errors.Errorf("%s expects %d outputs, got %d", b.label, outputs, len(b.outputs)).Error()
	}
	return true, ""
}
