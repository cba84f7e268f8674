package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/tensor"
)

// arith describes one binary arithmetic operation.
type arith struct {
	kernel string
	fn     func(a, b float32) float32
	// grad fills the local gradients with respect to a and b at one element.
	grad func(a, b float32) (da, db float32)
}

var (
	addArith = arith{
		kernel: "add",
		fn:     func(a, b float32) float32 { return a + b },
		grad:   func(_, _ float32) (float32, float32) { return 1, 1 },
	}
	subArith = arith{
		kernel: "sub",
		fn:     func(a, b float32) float32 { return a - b },
		grad:   func(_, _ float32) (float32, float32) { return 1, -1 },
	}
	mulArith = arith{
		kernel: "mul",
		fn:     func(a, b float32) float32 { return a * b },
		grad:   func(a, b float32) (float32, float32) { return b, a },
	}
	divArith = arith{
		kernel: "div",
		fn:     func(a, b float32) float32 { return a / b },
		grad:   func(a, b float32) (float32, float32) { return 1 / b, -a / (b * b) },
	}
)

// Elementwise applies a binary operation to two tensors of equal shape.
type Elementwise struct {
	base
	arith arith
}

// NewAdd returns an elementwise addition operator.
func NewAdd(eng *engine.Engine) *Elementwise { return newElementwise(eng, addArith) }

// NewSub returns an elementwise subtraction operator.
func NewSub(eng *engine.Engine) *Elementwise { return newElementwise(eng, subArith) }

// NewMul returns an elementwise multiplication operator.
func NewMul(eng *engine.Engine) *Elementwise { return newElementwise(eng, mulArith) }

// NewDiv returns an elementwise division operator.
func NewDiv(eng *engine.Engine) *Elementwise { return newElementwise(eng, divArith) }

func newElementwise(eng *engine.Engine, a arith) *Elementwise {
	return &Elementwise{base: base{eng: eng, label: a.kernel}, arith: a}
}

// OutputShape requires two equal shapes and returns one output of that shape.
func (e *Elementwise) OutputShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) != 2 {
		return nil, errors.Errorf("%s: expected 2 inputs, got %d", e.label, len(in))
	}
	if !in[0].Equal(in[1]) {
		return nil, errors.Errorf("%s: shapes %s and %s differ", e.label, in[0], in[1])
	}
	return []tensor.Shape{in[0].Clone()}, nil
}

// CheckTensors verifies arity and that all three tensors have the same shape.
func (e *Elementwise) CheckTensors() (bool, string) {
	if e.checkDisabled {
		return true, ""
	}
	if ok, msg := e.checkArity(2, 1); !ok {
		return false, msg
	}
	a, b, out := e.inputs[0].Shape(), e.inputs[1].Shape(), e.outputs[0].Shape()
	if !a.Equal(b) || !a.Equal(out) {
		return false, errors.Errorf("%s: shapes %s, %s -> %s differ", e.label, a, b, out).Error()
	}
	return true, ""
}

// Compute writes the result into the output. In GPU mode the device kernel
// of the same name runs over the resource manager's bindings.
func (e *Elementwise) Compute(mode engine.Mode) {
	a, b, out := e.inputs[0], e.inputs[1], e.outputs[0]
	if mode == engine.ModeGPU && e.eng.HasDevice() {
		e.runKernel(e.arith.kernel, a, b, out)
		return
	}
	ad, bd, od := a.Data(), b.Data(), out.Data()
	fn := e.arith.fn
	parallel.For(len(od), func(i int) {
		od[i] = fn(ad[i], bd[i])
	}, e.eng.Parallel())
}

// ComputeAsync runs Compute on its own goroutine.
func (e *Elementwise) ComputeAsync(mode engine.Mode) {
	e.computeAsync(e, mode, e.Compute)
}

// GradCompute returns d out / d input_i. Addition and subtraction have
// constant gradients and return scalars.
func (e *Elementwise) GradCompute(engine.Mode) map[string]graph.Value {
	return e.gradCompute(e, func() map[string]graph.Value {
		switch e.arith.kernel {
		case "add":
			return map[string]graph.Value{graph.InputGradLabel(0): graph.ScalarValue(1), graph.InputGradLabel(1): graph.ScalarValue(1)}
		case "sub":
			return map[string]graph.Value{graph.InputGradLabel(0): graph.ScalarValue(1), graph.InputGradLabel(1): graph.ScalarValue(-1)}
		}
		a, b := e.inputs[0], e.inputs[1]
		return localGrads(e.arith, a.Data(), b.Data(), a.Shape(), e.eng.Parallel())
	})
}

// localGrads evaluates arith.grad over aligned operands of the given shape.
func localGrads(ar arith, a, b []float32, shape tensor.Shape, cfg parallel.Config) map[string]graph.Value {
	da, db := tensor.Zeros(shape), tensor.Zeros(shape)
	dad, dbd := da.Data(), db.Data()
	parallel.For(len(dad), func(i int) {
		dad[i], dbd[i] = ar.grad(a[i], b[i])
	}, cfg)
	return map[string]graph.Value{
		graph.InputGradLabel(0): graph.TensorValue{Store: da},
		graph.InputGradLabel(1): graph.TensorValue{Store: db},
	}
}
