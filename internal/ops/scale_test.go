package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/tensor"
)

func scaleGraph(t *testing.T, eng *engine.Engine, lr float32) (*graph.Graph, *graph.Symbol, []*graph.Symbol) {
	t.Helper()
	g := graph.New(eng, graph.Config{Label: "affine", Trainable: true})
	x := g.Tensor("x", tensor.NewShape(4))
	outs, _, params := g.Operation("scale", []*graph.Symbol{x}, NewScale(eng, 2, 1))
	g.SetUpdatable(true, params...)
	g.SetOptimizer(&sgd{lr: lr})
	require.NoError(t, g.Bind(x, graph.TensorValue{Store: store(t, []float32{1, 2, 3, 4}, 4)}))
	return g, outs[0], params
}

func TestScaleDeclaresParameters(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()
	_, _, params := scaleGraph(t, eng, 0)

	require.Len(t, params, 2)
	assert.Equal(t, WeightParam, params[0].Label())
	assert.Equal(t, BiasParam, params[1].Label())
	for _, p := range params {
		assert.Equal(t, graph.KindScalar, p.Kind())
		assert.Equal(t, graph.SourceParameter, p.Source())
	}
}

func TestScaleForward(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()
	g, out, params := scaleGraph(t, eng, 0)

	res := g.Forward(engine.ModeCPU)
	assert.Equal(t, []float32{3, 5, 7, 9}, res[0].(graph.TensorValue).Store.Floats())
	assert.Same(t, out.Store(), res[0].(graph.TensorValue).Store)
	assert.Equal(t, graph.ScalarValue(2), params[0].Value())
	assert.Equal(t, graph.ScalarValue(1), params[1].Value())
}

func TestScaleBackward(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()
	g, _, params := scaleGraph(t, eng, 0.01)

	g.Forward(engine.ModeCPU)
	g.Backward(engine.ModeCPU)

	// d/dw sum(w*x+b) = sum(x), d/db = number of elements
	assert.Equal(t, graph.ScalarValue(10), params[0].Grad())
	assert.Equal(t, graph.ScalarValue(4), params[1].Grad())
	assert.InDelta(t, 1.9, float64(params[0].Value().(graph.ScalarValue)), 1e-6)
	assert.InDelta(t, 0.96, float64(params[1].Value().(graph.ScalarValue)), 1e-6)

	res := g.Forward(engine.ModeCPU)
	assert.InDeltaSlice(t, []float32{2.86, 4.76, 6.66, 8.56}, res[0].(graph.TensorValue).Store.Floats(), 1e-5)
}

func TestScaleCheckTensors(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()
	op := NewScale(eng, 1, 0)
	op.SetInputs([]*tensor.Store{tensor.Zeros(tensor.NewShape(2))})
	op.SetOutputs([]*tensor.Store{tensor.Zeros(tensor.NewShape(2))})

	ok, msg := op.CheckTensors()
	assert.False(t, ok)
	assert.Contains(t, msg, "parameters")
	assert.Panics(t, func() { op.Compute(engine.ModeCPU) })
}
