package graph

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/tensor"
)

// Forward runs every stage in ascending order and returns the values of the
// data symbols in the deepest stage holding data. The graph is prepared first
// unless it is already verified.
//
// Operators of one stage run concurrently on the engine's pool; the next
// stage starts only after all of them returned. A panicking operator aborts
// the pass by re-panicking on the caller's goroutine.
func (g *Graph) Forward(mode engine.Mode) []Value {
	if g.state != StateVerified && g.state != StateDone {
		g.ForwardPrepare()
	}
	mode = g.eng.Resolve(mode)
	pool := g.eng.Pool()

	g.state = StateExecuting
	for i := range g.stages {
		g.currentStage = i
		ops := g.stageOps(i)
		if len(ops) == 0 {
			continue
		}
		g.reshapeStage(ops)

		grp := pool.Group()
		for _, opSym := range ops {
			grp.Go(func() { opSym.op.Compute(mode) })
		}
		grp.Wait()
	}
	g.state = StateDone
	g.logger.Debug("forward done", "mode", mode.String(), "stages", len(g.stages))

	return g.results()
}

// reshapeStage restores symbol shapes on shared storage before a stage runs.
// It runs on the calling goroutine so operators never race on metadata.
func (g *Graph) reshapeStage(ops []*Symbol) {
	if g.shared == nil {
		return
	}
	for _, opSym := range ops {
		for _, id := range append(opSym.Inputs(), opSym.outbound...) {
			if err := g.shapeShared(g.symbols[id]); err != nil {
				panic(err)
			}
		}
	}
}

func (g *Graph) results() []Value {
	for i := len(g.stages) - 1; i >= 0; i-- {
		var out []Value
		for _, id := range g.stages[i] {
			if s := g.symbols[id]; s.IsData() {
				out = append(out, s.value)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Backward runs stages in descending order. For every operator it computes
// local gradients, chains them with the gradients already accumulated on the
// operator's outputs, adds the result to the gradient slot of each updatable
// target and hands it to the optimizer. The epoch counter grows by one.
//
// It panics unless the graph is trainable, has an optimizer, does not share
// computed storage, and has completed a forward pass.
func (g *Graph) Backward(mode engine.Mode) {
	switch {
	case !g.cfg.Trainable:
		panic(errors.Errorf("graph %q: backward on a graph that is not trainable", g.cfg.Label))
	case g.optimizer == nil:
		panic(errors.Errorf("graph %q: backward without an optimizer", g.cfg.Label))
	case g.cfg.ShareComputed:
		panic(errors.Errorf("graph %q: backward needs unshared computed storage", g.cfg.Label))
	case g.state != StateDone:
		panic(errors.Errorf("graph %q: backward before a completed forward pass (state %s)", g.cfg.Label, g.state))
	}
	mode = g.eng.Resolve(mode)

	g.resetGrads()
	g.optimizer.Prepare(g)

	pool := g.eng.Pool()
	g.state = StateExecuting
	for i := len(g.stages) - 1; i >= 0; i-- {
		g.currentStage = i
		ops := g.stageOps(i)
		if len(ops) == 0 {
			continue
		}
		grp := pool.Group()
		for _, opSym := range ops {
			grp.Go(func() { g.backwardOp(opSym, mode) })
		}
		grp.Wait()
	}

	g.epoch++
	g.state = StateDone
	g.logger.Debug("backward done", "epoch", g.epoch)
}

// resetGrads allocates gradient slots for updatable symbols on first use and
// zeroes them on every pass.
func (g *Graph) resetGrads() {
	res := g.eng.Resources()
	for _, s := range g.symbols {
		if !s.IsData() || !s.updatable {
			continue
		}
		switch {
		case s.kind == KindScalar:
			s.grad = ScalarValue(0)
		case s.grad == nil:
			s.grad = TensorValue{Store: res.AllocateUnmanagedTensor(s.shape)}
		default:
			s.grad.(TensorValue).Store.Clear()
		}
	}
}

func (g *Graph) backwardOp(opSym *Symbol, mode engine.Mode) {
	grads := opSym.op.GradCompute(mode)
	if len(grads) == 0 {
		return
	}
	upstream := g.upstreamGrad(opSym)

	for label, local := range grads {
		target := g.gradTarget(opSym, label)
		if !target.updatable {
			continue
		}
		outShape := target.shape
		if len(opSym.outbound) > 0 {
			outShape = g.symbols[opSym.outbound[0]].shape
		}
		contrib := chain(local, upstream, outShape, target.shape)

		target.mu.Lock()
		accumulate(target, contrib)
		g.optimizer.UpdateParameter(target, contrib)
		target.mu.Unlock()
	}
}

// gradTarget maps a gradient label to the symbol it differentiates.
func (g *Graph) gradTarget(opSym *Symbol, label string) *Symbol {
	for i, id := range opSym.inputs {
		if InputGradLabel(i) == label {
			return g.symbols[id]
		}
	}
	for _, id := range opSym.inbound {
		if s := g.symbols[id]; s.label == label {
			return s
		}
	}
	panic(errors.Errorf("graph %q: operator %s returned gradient %q for no input or parameter",
		g.cfg.Label, opSym, label))
}

// upstreamGrad sums the gradients accumulated on the operator's outputs.
// Outputs without a gradient slot contribute nothing; nil means none has one.
func (g *Graph) upstreamGrad(opSym *Symbol) *tensor.Store {
	var sum *tensor.Store
	for _, id := range opSym.outbound {
		out := g.symbols[id]
		tv, ok := out.grad.(TensorValue)
		if !ok {
			continue
		}
		if sum == nil {
			sum = tensor.Zeros(out.shape)
		}
		if sum.NumElements() != tv.Store.NumElements() {
			panic(errors.Errorf("graph %q: operator %s outputs have differing shapes, cannot sum gradients",
				g.cfg.Label, opSym))
		}
		data := sum.Data()
		for i, v := range tv.Store.Data() {
			data[i] += v
		}
	}
	return sum
}

// chain multiplies a local gradient, shaped like the operator output, with the
// upstream gradient and reduces the product to the target's shape by summing
// over broadcast dimensions. A scalar local gradient stands for a tensor of
// outShape filled with that value; a nil upstream stands for ones.
func chain(local Value, upstream *tensor.Store, outShape, target tensor.Shape) Value {
	var prod []float32
	switch v := local.(type) {
	case TensorValue:
		outShape = v.Shape()
		prod = v.Store.Floats()
	case ScalarValue:
		prod = make([]float32, outShape.NumElements())
		for i := range prod {
			prod[i] = float32(v)
		}
	default:
		panic(errors.Errorf("graph: unsupported gradient value %T", local))
	}

	if upstream != nil {
		up := upstream.Data()
		if len(up) != len(prod) {
			panic(errors.Errorf("graph: local gradient %s does not match upstream gradient %s",
				outShape, upstream.Shape()))
		}
		for i := range prod {
			prod[i] *= up[i]
		}
	}

	if target.Rank() == 0 {
		var total float32
		for _, v := range prod {
			total += v
		}
		return ScalarValue(total)
	}

	out := tensor.Zeros(target)
	if target.Equal(outShape) {
		copy(out.Data(), prod)
		return TensorValue{Store: out}
	}
	if bs, _, err := tensor.BroadcastShapes(target, outShape); err != nil || !bs.Equal(outShape) {
		panic(errors.Errorf("graph: cannot reduce gradient %s to %s", outShape, target))
	}
	reduceBroadcast(out.Data(), tensor.BroadcastStrides(target, outShape), prod, outShape)
	return TensorValue{Store: out}
}

// reduceBroadcast sums src, laid out in shape, into dst addressed by strides.
func reduceBroadcast(dst []float32, strides []int, src []float32, shape tensor.Shape) {
	idx := make([]int, shape.Rank())
	for _, v := range src {
		off := 0
		for d, i := range idx {
			off += i * strides[d]
		}
		dst[off] += v
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// accumulate adds contrib into the symbol's gradient slot.
func accumulate(s *Symbol, contrib Value) {
	switch slot := s.grad.(type) {
	case ScalarValue:
		switch c := contrib.(type) {
		case ScalarValue:
			s.grad = slot + c
		case TensorValue:
			var total float32
			for _, v := range c.Store.Data() {
				total += v
			}
			s.grad = slot + ScalarValue(total)
		}
	case TensorValue:
		data := slot.Store.Data()
		switch c := contrib.(type) {
		case ScalarValue:
			for i := range data {
				data[i] += float32(c)
			}
		case TensorValue:
			for i, v := range c.Store.Data() {
				data[i] += v
			}
		}
	}
}
