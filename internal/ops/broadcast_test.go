package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/tensor"
)

func TestBroadcastCompute(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()

	tests := []struct {
		name   string
		op     *Broadcast
		a, b   *tensor.Store
		dims   []int
		expect []float32
	}{
		{
			name:   "row vector",
			op:     NewBroadcastAdd(eng),
			a:      store(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3),
			b:      store(t, []float32{10, 20, 30}, 3),
			dims:   []int{2, 3},
			expect: []float32{11, 22, 33, 14, 25, 36},
		},
		{
			name:   "outer product",
			op:     NewBroadcastMul(eng),
			a:      store(t, []float32{1, 2}, 2, 1),
			b:      store(t, []float32{3, 4, 5}, 1, 3),
			dims:   []int{2, 3},
			expect: []float32{3, 4, 5, 6, 8, 10},
		},
		{
			name:   "column",
			op:     NewBroadcastSub(eng),
			a:      store(t, []float32{1, 2, 3, 4}, 2, 2),
			b:      store(t, []float32{1, 2}, 2, 1),
			dims:   []int{2, 2},
			expect: []float32{0, 1, 1, 2},
		},
		{
			name:   "same shape",
			op:     NewBroadcastDiv(eng),
			a:      store(t, []float32{2, 4}, 2),
			b:      store(t, []float32{2, 2}, 2),
			dims:   []int{2},
			expect: []float32{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shapes, err := tt.op.OutputShape([]tensor.Shape{tt.a.Shape(), tt.b.Shape()})
			require.NoError(t, err)
			require.Equal(t, tt.dims, shapes[0].Dims)

			out := tensor.Zeros(shapes[0])
			tt.op.SetInputs([]*tensor.Store{tt.a, tt.b})
			tt.op.SetOutputs([]*tensor.Store{out})
			ok, msg := tt.op.CheckTensors()
			require.True(t, ok, msg)

			tt.op.Compute(engine.ModeCPU)
			assert.Equal(t, tt.expect, out.Floats())
		})
	}
}

func TestBroadcastIncompatible(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()
	op := NewBroadcastAdd(eng)

	_, err := op.OutputShape([]tensor.Shape{tensor.NewShape(3, 4), tensor.NewShape(3, 5)})
	assert.Error(t, err)

	op.SetInputs([]*tensor.Store{tensor.Zeros(tensor.NewShape(2, 3)), tensor.Zeros(tensor.NewShape(3))})
	op.SetOutputs([]*tensor.Store{tensor.Zeros(tensor.NewShape(3))})
	ok, msg := op.CheckTensors()
	assert.False(t, ok)
	assert.Contains(t, msg, "want")
}

func TestBroadcastGPUMatchesCPU(t *testing.T) {
	gpu, _ := newEngine(device.NewCPU(parallel.Sequential()))
	defer gpu.Close()

	a := store(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := store(t, []float32{2, 4, 8}, 3)
	for _, mk := range []func(*engine.Engine) *Broadcast{NewBroadcastAdd, NewBroadcastSub, NewBroadcastMul, NewBroadcastDiv} {
		cpuOut := tensor.Zeros(tensor.NewShape(2, 3))
		gpuOut := gpu.Resources().AllocateTensor(tensor.NewShape(2, 3))

		op := mk(gpu)
		op.SetInputs([]*tensor.Store{a, b})
		op.SetOutputs([]*tensor.Store{cpuOut})
		op.Compute(engine.ModeCPU)
		op.SetOutputs([]*tensor.Store{gpuOut})
		op.Compute(engine.ModeGPU)

		assert.Equal(t, cpuOut.Floats(), gpuOut.Floats(), op.Label())
	}
}

func TestBroadcastBackwardReducesToInputShape(t *testing.T) {
	eng, _ := newEngine(nil)
	defer eng.Close()

	g := graph.New(eng, graph.Config{Trainable: true})
	x := g.Tensor("x", tensor.NewShape(2, 3))
	bias := g.Tensor("bias", tensor.NewShape(3))
	scale := g.Tensor("scale", tensor.NewShape(3))
	shifted, _, _ := g.Operation("shift", []*graph.Symbol{x, bias}, NewBroadcastAdd(eng))
	g.Operation("stretch", []*graph.Symbol{shifted[0], scale}, NewBroadcastMul(eng))

	// gradients reach bias only through an updatable intermediate
	g.SetUpdatable(true, bias, scale, shifted[0])
	opt := &sgd{}
	g.SetOptimizer(opt)
	require.NoError(t, g.Bind(x, graph.TensorValue{Store: store(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)}))
	require.NoError(t, g.Bind(bias, graph.TensorValue{Store: tensor.Zeros(tensor.NewShape(3))}))
	require.NoError(t, g.Bind(scale, graph.TensorValue{Store: tensor.MustAllocate(tensor.NewShape(3), 2)}))

	res := g.Forward(engine.ModeCPU)
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12}, res[0].(graph.TensorValue).Store.Floats())

	g.Backward(engine.ModeCPU)
	// d out / d scale sums the shifted rows; d out / d bias sums the scale over rows
	assert.Equal(t, []float32{5, 7, 9}, scale.Grad().(graph.TensorValue).Store.Floats())
	assert.Equal(t, []float32{4, 4, 4}, bias.Grad().(graph.TensorValue).Store.Floats())
	assert.Equal(t, tensor.NewShape(3).Dims, bias.Grad().Shape().Dims)
}
