package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/tensor"
)

// chainGraph builds z = (x + c) * d with x and y = x + c updatable.
func chainGraph(t *testing.T, eng *engine.Engine, opt Optimizer) (g *Graph, x, c, y, d, z *Symbol) {
	t.Helper()
	g = New(eng, Config{Label: "chain", Trainable: true})
	shape := tensor.NewShape(3)

	x = g.Tensor("x", shape)
	c = g.Tensor("c", shape)
	ys, _, _ := g.Operation("add", []*Symbol{x, c}, addOp())
	y = ys[0]
	d = g.Tensor("d", shape)
	zs, _, _ := g.Operation("mul", []*Symbol{y, d}, mulOp())
	z = zs[0]

	g.SetUpdatable(true, x, y)
	g.SetOptimizer(opt)
	require.NoError(t, g.Bind(x, filled(shape, 1)))
	require.NoError(t, g.Bind(c, filled(shape, 2)))
	require.NoError(t, g.Bind(d, filled(shape, 4)))
	return g, x, c, y, d, z
}

func TestBackwardChainsGradients(t *testing.T) {
	eng, _ := newTestEngine()
	defer eng.Close()
	opt := &recordingOptimizer{}
	g, x, c, y, d, z := chainGraph(t, eng, opt)

	out := g.Forward(engine.ModeCPU)[0].(TensorValue).Store
	assert.Equal(t, []float32{12, 12, 12}, out.Floats())

	g.Backward(engine.ModeCPU)
	assert.Equal(t, 1, g.Epoch())
	assert.Equal(t, 1, opt.prepared)

	// dz/dy = d, dz/dx = dz/dy * dy/dx = d
	assert.Equal(t, []float32{4, 4, 4}, y.Grad().(TensorValue).Store.Floats())
	assert.Equal(t, []float32{4, 4, 4}, x.Grad().(TensorValue).Store.Floats())

	// symbols that are not updatable never get a gradient slot
	assert.Nil(t, c.Grad())
	assert.Nil(t, d.Grad())
	assert.Nil(t, z.Grad())
	assert.Len(t, opt.updates, 2)
	assert.NotContains(t, opt.updates, c.ID())
}

func TestBackwardEpochAndReset(t *testing.T) {
	eng, _ := newTestEngine()
	defer eng.Close()
	g, x, _, _, _, _ := chainGraph(t, eng, &recordingOptimizer{})

	for epoch := 1; epoch <= 3; epoch++ {
		g.Forward(engine.ModeCPU)
		g.Backward(engine.ModeCPU)
		assert.Equal(t, epoch, g.Epoch())
		assert.Equal(t, []float32{4, 4, 4}, x.Grad().(TensorValue).Store.Floats(), "gradients do not leak across passes")
	}
}

func TestBackwardAppliesUpdates(t *testing.T) {
	eng, _ := newTestEngine()
	defer eng.Close()
	g, x, _, y, _, _ := chainGraph(t, eng, &recordingOptimizer{lr: 0.1})

	g.Forward(engine.ModeCPU)
	g.Backward(engine.ModeCPU)

	assert.InDeltaSlice(t, []float32{0.6, 0.6, 0.6}, x.Store().Floats(), 1e-6)
	assert.InDeltaSlice(t, []float32{2.6, 2.6, 2.6}, y.Store().Floats(), 1e-6)
}

func TestBackwardScalarParameter(t *testing.T) {
	eng, _ := newTestEngine()
	defer eng.Close()
	g := New(eng, Config{Trainable: true})

	op := addOp()
	op.specs = []ParamSpec{{Label: "bias", Kind: KindScalar, Init: 0.5}}
	op.grad = func(_, _ *tensor.Store) map[string]Value {
		return map[string]Value{"input_0": ScalarValue(1), "input_1": ScalarValue(1), "bias": ScalarValue(1)}
	}
	x := g.Tensor("x", tensor.NewShape(2))
	_, _, params := g.Operation("add", []*Symbol{x, x}, op)
	bias := params[0]
	g.SetUpdatable(true, bias)
	g.SetOptimizer(&recordingOptimizer{lr: 0.5})
	require.NoError(t, g.Bind(x, filled(tensor.NewShape(2), 1)))

	g.Forward(engine.ModeCPU)
	g.Backward(engine.ModeCPU)

	// the scalar gradient sums over both output elements
	assert.Equal(t, ScalarValue(2), bias.Grad())
	assert.Equal(t, ScalarValue(-0.5), bias.Value())
	assert.Nil(t, x.Grad())
}

func TestBackwardPreconditions(t *testing.T) {
	eng, _ := newTestEngine()
	defer eng.Close()

	build := func(cfg Config, opt Optimizer) *Graph {
		g := New(eng, cfg)
		x := g.Tensor("x", tensor.NewShape(2))
		g.Operation("add", []*Symbol{x, x}, addOp())
		require.NoError(t, g.Bind(x, filled(tensor.NewShape(2), 1)))
		if opt != nil {
			g.SetOptimizer(opt)
		}
		return g
	}

	g := build(Config{}, &recordingOptimizer{})
	g.Forward(engine.ModeCPU)
	assert.Panics(t, func() { g.Backward(engine.ModeCPU) }, "not trainable")

	g = build(Config{Trainable: true}, nil)
	g.Forward(engine.ModeCPU)
	assert.Panics(t, func() { g.Backward(engine.ModeCPU) }, "no optimizer")

	g = build(Config{Trainable: true}, &recordingOptimizer{})
	assert.Panics(t, func() { g.Backward(engine.ModeCPU) }, "no forward pass")

	g = build(Config{Trainable: true, ShareComputed: true}, &recordingOptimizer{})
	g.Forward(engine.ModeCPU)
	assert.Panics(t, func() { g.Backward(engine.ModeCPU) }, "shared storage")
	assert.Equal(t, 0, g.Epoch())
}

func TestChainReducesBroadcast(t *testing.T) {
	got := chain(ScalarValue(1), nil, tensor.NewShape(2, 3), tensor.NewShape(3))
	assert.Equal(t, []float32{2, 2, 2}, got.(TensorValue).Store.Floats())

	local, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(2, 3))
	require.NoError(t, err)
	up := tensor.MustAllocate(tensor.NewShape(2, 3), 2)
	got = chain(TensorValue{Store: local}, up, tensor.Shape{}, tensor.NewShape(2, 1))
	assert.Equal(t, []float32{12, 30}, got.(TensorValue).Store.Floats())

	got = chain(TensorValue{Store: local}, nil, tensor.Shape{}, tensor.ScalarShape(tensor.Float32))
	assert.Equal(t, ScalarValue(21), got)

	assert.Panics(t, func() { chain(TensorValue{Store: local}, nil, tensor.Shape{}, tensor.NewShape(4)) })
}
