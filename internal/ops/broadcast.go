package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/tensor"
)

// Broadcast applies a binary operation with NumPy broadcasting: trailing
// dimensions are aligned and size-1 dimensions stretch to match.
type Broadcast struct {
	base
	arith arith
}

// NewBroadcastAdd returns a broadcasting addition operator.
func NewBroadcastAdd(eng *engine.Engine) *Broadcast { return newBroadcast(eng, addArith) }

// NewBroadcastSub returns a broadcasting subtraction operator.
func NewBroadcastSub(eng *engine.Engine) *Broadcast { return newBroadcast(eng, subArith) }

// NewBroadcastMul returns a broadcasting multiplication operator.
func NewBroadcastMul(eng *engine.Engine) *Broadcast { return newBroadcast(eng, mulArith) }

// NewBroadcastDiv returns a broadcasting division operator.
func NewBroadcastDiv(eng *engine.Engine) *Broadcast { return newBroadcast(eng, divArith) }

func newBroadcast(eng *engine.Engine, a arith) *Broadcast {
	return &Broadcast{base: base{eng: eng, label: "broadcast_" + a.kernel}, arith: a}
}

// OutputShape returns the broadcast shape of the two inputs.
func (o *Broadcast) OutputShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) != 2 {
		return nil, errors.Errorf("%s: expected 2 inputs, got %d", o.label, len(in))
	}
	out, _, err := tensor.BroadcastShapes(in[0], in[1])
	if err != nil {
		return nil, errors.WithMessage(err, o.label)
	}
	return []tensor.Shape{out}, nil
}

// CheckTensors verifies the output holds the broadcast shape of the inputs.
func (o *Broadcast) CheckTensors() (bool, string) {
	if o.checkDisabled {
		return true, ""
	}
	if ok, msg := o.checkArity(2, 1); !ok {
		return false, msg
	}
	want, _, err := tensor.BroadcastShapes(o.inputs[0].Shape(), o.inputs[1].Shape())
	if err != nil {
		return false, errors.WithMessage(err, o.label).Error()
	}
	if got := o.outputs[0].Shape(); !got.Equal(want) {
		return false, errors.Errorf("%s: output %s, want %s", o.label, got, want).Error()
	}
	return true, ""
}

// Compute writes the broadcast result. GPU mode materializes both operands
// at the output shape and runs the elementwise kernel.
func (o *Broadcast) Compute(mode engine.Mode) {
	a, b, out := o.inputs[0], o.inputs[1], o.outputs[0]
	if mode == engine.ModeGPU && o.eng.HasDevice() {
		res := o.eng.Resources()
		ea := res.AllocateUnmanagedTensor(out.Shape())
		eb := res.AllocateUnmanagedTensor(out.Shape())
		expandInto(ea, a)
		expandInto(eb, b)
		o.runKernel(o.arith.kernel, ea, eb, out)
		return
	}

	shape := out.Shape()
	ad, bd, od := a.Data(), b.Data(), out.Data()
	fn := o.arith.fn
	rank := shape.Rank()
	if rank == 0 {
		od[0] = fn(ad[0], bd[0])
		return
	}

	// rows are the leading dimensions, channels the last one
	sa := tensor.BroadcastStrides(a.Shape(), shape)
	sb := tensor.BroadcastStrides(b.Shape(), shape)
	cols := shape.Dims[rank-1]
	rows := shape.NumElements() / cols
	rowA, rowB := make([]int, rows), make([]int, rows)
	idx := make([]int, rank)
	for r := 0; r < rows; r++ {
		rowA[r], rowB[r] = offset(idx, sa), offset(idx, sb)
		for d := rank - 2; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	ca, cb := sa[rank-1], sb[rank-1]
	parallel.ForBatch(rows, cols, func(r, c int) {
		od[r*cols+c] = fn(ad[rowA[r]+c*ca], bd[rowB[r]+c*cb])
	}, o.eng.Parallel())
}

// ComputeAsync runs Compute on its own goroutine.
func (o *Broadcast) ComputeAsync(mode engine.Mode) {
	o.computeAsync(o, mode, o.Compute)
}

// GradCompute returns gradients shaped like the output; the scheduler sums
// them back over the broadcast dimensions of each input.
func (o *Broadcast) GradCompute(engine.Mode) map[string]graph.Value {
	return o.gradCompute(o, func() map[string]graph.Value {
		shape := o.outputs[0].Shape()
		ea, eb := tensor.Zeros(shape), tensor.Zeros(shape)
		expandInto(ea, o.inputs[0])
		expandInto(eb, o.inputs[1])
		return localGrads(o.arith, ea.Data(), eb.Data(), shape, o.eng.Parallel())
	})
}

// expandInto writes src broadcast to dst's shape.
func expandInto(dst, src *tensor.Store) {
	strides := tensor.BroadcastStrides(src.Shape(), dst.Shape())
	sd, dd := src.Data(), dst.Data()
	forEachIndex(dst.Shape(), func(i int, idx []int) {
		dd[i] = sd[offset(idx, strides)]
	})
}

// forEachIndex visits every index of shape in row-major order.
func forEachIndex(shape tensor.Shape, f func(flat int, idx []int)) {
	n := shape.NumElements()
	idx := make([]int, shape.Rank())
	for i := 0; i < n; i++ {
		f(i, idx)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}

func offset(idx, strides []int) int {
	off := 0
	for d, i := range idx {
		off += i * strides[d]
	}
	return off
}
