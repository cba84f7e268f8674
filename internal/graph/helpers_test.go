package graph

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/tensor"
)

func newTestEngine() (*engine.Engine, *bytes.Buffer) {
	var logs bytes.Buffer
	eng := engine.New(engine.Config{
		Label:    "test",
		Mode:     engine.ModeCPU,
		Logger:   slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
	})
	return eng, &logs
}

// binaryOp is a same-shape elementwise operator used to drive the scheduler.
type binaryOp struct {
	label string
	fn    func(a, b float32) float32
	grad  func(a, b *tensor.Store) map[string]Value
	specs []ParamSpec

	ins, outs []*tensor.Store
	params    []*Symbol
	computes  atomic.Int32
	panicMsg  string
}

func addOp() *binaryOp {
	return &binaryOp{
		label: "add",
		fn:    func(a, b float32) float32 { return a + b },
		grad: func(_, _ *tensor.Store) map[string]Value {
			return map[string]Value{"input_0": ScalarValue(1), "input_1": ScalarValue(1)}
		},
	}
}

func mulOp() *binaryOp {
	return &binaryOp{
		label: "mul",
		fn:    func(a, b float32) float32 { return a * b },
		grad: func(a, b *tensor.Store) map[string]Value {
			return map[string]Value{
				"input_0": TensorValue{Store: copyOf(b)},
				"input_1": TensorValue{Store: copyOf(a)},
			}
		},
	}
}

func (o *binaryOp) Label() string { return o.label }

func (o *binaryOp) OutputShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) != 2 || !in[0].Equal(in[1]) {
		return nil, errors.Errorf("%s: need two equal shapes, got %v", o.label, in)
	}
	return []tensor.Shape{in[0]}, nil
}

func (o *binaryOp) SetInputs(in []*tensor.Store)   { o.ins = in }
func (o *binaryOp) SetOutputs(out []*tensor.Store) { o.outs = out }
func (o *binaryOp) Inputs() []*tensor.Store        { return o.ins }
func (o *binaryOp) Outputs() []*tensor.Store       { return o.outs }

func (o *binaryOp) CheckTensors() (bool, string) {
	if len(o.ins) != 2 || len(o.outs) != 1 {
		return false, "arity"
	}
	if !o.ins[0].Shape().Equal(o.outs[0].Shape()) {
		return false, "shape"
	}
	return true, ""
}

func (o *binaryOp) Compute(engine.Mode) {
	if o.panicMsg != "" {
		panic(o.panicMsg)
	}
	o.computes.Add(1)
	a, b, out := o.ins[0].Data(), o.ins[1].Data(), o.outs[0].Data()
	for i := range out {
		out[i] = o.fn(a[i], b[i])
	}
}

func (o *binaryOp) ComputeAsync(mode engine.Mode) { go o.Compute(mode) }

func (o *binaryOp) GradCompute(engine.Mode) map[string]Value {
	return o.grad(o.ins[0], o.ins[1])
}

func (o *binaryOp) BindParamSymbols(p []*Symbol) { o.params = p }
func (o *binaryOp) ParamSymbols() []ParamSpec    { return o.specs }
func (o *binaryOp) SetDelegate(Delegate)         {}
func (o *binaryOp) DisableCheck(bool)            {}

// recordingOptimizer keeps every update and optionally applies plain SGD.
type recordingOptimizer struct {
	lr       float32
	mu       sync.Mutex
	prepared int
	updates  map[SymbolID][]Value
}

func (r *recordingOptimizer) Prepare(*Graph) {
	r.prepared++
	if r.updates == nil {
		r.updates = make(map[SymbolID][]Value)
	}
}

func (r *recordingOptimizer) UpdateParameter(s *Symbol, g Value) {
	r.mu.Lock()
	r.updates[s.ID()] = append(r.updates[s.ID()], g)
	r.mu.Unlock()

	switch gv := g.(type) {
	case TensorValue:
		data := s.Store().Data()
		for i, v := range gv.Store.Data() {
			data[i] -= r.lr * v
		}
	case ScalarValue:
		if sv, ok := s.Value().(ScalarValue); ok {
			s.SetValue(sv - ScalarValue(r.lr)*gv)
		}
	}
}

func filled(shape tensor.Shape, v float32) TensorValue {
	return TensorValue{Store: tensor.MustAllocate(shape, v)}
}

func copyOf(s *tensor.Store) *tensor.Store {
	c := tensor.Zeros(s.Shape())
	if err := c.CopyFrom(s); err != nil {
		panic(err)
	}
	return c
}
