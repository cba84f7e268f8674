package graph

import (
	"strconv"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/tensor"
)

// InputGradLabel returns the gradient label of the i-th declared input.
func InputGradLabel(i int) string {
	return "input_" + strconv.Itoa(i)
}

// ParamSpec declares a parameter an operator needs when it is added to a graph.
type ParamSpec struct {
	Label string
	Kind  Kind         // KindTensor or KindScalar
	Shape tensor.Shape // ignored for scalars
	Init  float32      // fill value used when the graph allocates the parameter
}

// Operator is a stateless computation the scheduler drives.
//
// The graph assigns concrete inputs, outputs and parameter symbols during
// verification; Compute then reads the inputs and writes the pre-bound outputs.
type Operator interface {
	Label() string

	// OutputShape derives output shapes from input shapes.
	OutputShape(inputs []tensor.Shape) ([]tensor.Shape, error)

	SetInputs(inputs []*tensor.Store)
	SetOutputs(outputs []*tensor.Store)
	Inputs() []*tensor.Store
	Outputs() []*tensor.Store

	// CheckTensors validates the assigned tensors, returning a reason on failure.
	CheckTensors() (ok bool, msg string)

	// Compute runs synchronously.
	Compute(mode engine.Mode)
	// ComputeAsync returns immediately and reports through the delegate.
	ComputeAsync(mode engine.Mode)

	// GradCompute returns local gradients of the outputs, shaped like the
	// outputs, keyed InputGradLabel(i) or by parameter label.
	GradCompute(mode engine.Mode) map[string]Value

	BindParamSymbols(params []*Symbol)
	ParamSymbols() []ParamSpec

	SetDelegate(d Delegate)
	DisableCheck(disabled bool)
}

// Delegate observes operator execution.
type Delegate interface {
	OnComputeStart(op Operator)
	OnComputeEnd(op Operator, outputs []*tensor.Store)
	OnGradStart(op Operator)
	OnGradEnd(op Operator, grads map[string]Value)
}

// DelegateFuncs adapts optional callbacks to Delegate. Nil fields are skipped.
type DelegateFuncs struct {
	ComputeStart func(op Operator)
	ComputeEnd   func(op Operator, outputs []*tensor.Store)
	GradStart    func(op Operator)
	GradEnd      func(op Operator, grads map[string]Value)
}

// OnComputeStart implements Delegate.
func (d DelegateFuncs) OnComputeStart(op Operator) {
	if d.ComputeStart != nil {
		d.ComputeStart(op)
	}
}

// OnComputeEnd implements Delegate.
func (d DelegateFuncs) OnComputeEnd(op Operator, outputs []*tensor.Store) {
	if d.ComputeEnd != nil {
		d.ComputeEnd(op, outputs)
	}
}

// OnGradStart implements Delegate.
func (d DelegateFuncs) OnGradStart(op Operator) {
	if d.GradStart != nil {
		d.GradStart(op)
	}
}

// OnGradEnd implements Delegate.
func (d DelegateFuncs) OnGradEnd(op Operator, grads map[string]Value) {
	if d.GradEnd != nil {
		d.GradEnd(op, grads)
	}
}

// Optimizer applies gradients to updatable symbols during Backward.
type Optimizer interface {
	// Prepare runs once per backward pass before any update.
	Prepare(g *Graph)
	// UpdateParameter applies grad to sym's value. The scheduler holds sym's
	// lock for the duration of the call.
	UpdateParameter(sym *Symbol, grad Value)
}
