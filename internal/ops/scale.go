package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/tensor"
)

// Parameter labels declared by Scale.
const (
	WeightParam = "weight"
	BiasParam   = "bias"
)

// Scale computes y = weight*x + bias with two trainable scalar parameters.
// It has no device kernel and always runs on the host.
type Scale struct {
	base
	weight, bias float32
}

// NewScale returns a scale operator whose parameters start at weight and bias.
func NewScale(eng *engine.Engine, weight, bias float32) *Scale {
	return &Scale{base: base{eng: eng, label: "scale"}, weight: weight, bias: bias}
}

// OutputShape passes the single input shape through.
func (s *Scale) OutputShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) != 1 {
		return nil, errors.Errorf("%s: expected 1 input, got %d", s.label, len(in))
	}
	return []tensor.Shape{in[0].Clone()}, nil
}

// ParamSymbols declares the weight and bias scalars.
func (s *Scale) ParamSymbols() []graph.ParamSpec {
	scalar := tensor.ScalarShape(tensor.Float32)
	return []graph.ParamSpec{
		{Label: WeightParam, Kind: graph.KindScalar, Shape: scalar, Init: s.weight},
		{Label: BiasParam, Kind: graph.KindScalar, Shape: scalar, Init: s.bias},
	}
}

// CheckTensors verifies arity, shapes and that both parameters are bound.
func (s *Scale) CheckTensors() (bool, string) {
	if s.checkDisabled {
		return true, ""
	}
	if ok, msg := s.checkArity(1, 1); !ok {
		return false, msg
	}
	if in, out := s.inputs[0].Shape(), s.outputs[0].Shape(); !in.Equal(out) {
		return false, errors.Errorf("%s: input %s, output %s", s.label, in, out).Error()
	}
	if len(s.params) != 2 {
		return false, errors.Errorf("%s: expected 2 parameters, got %d", s.label, len(s.params)).Error()
	}
	return true, ""
}

// Compute writes weight*x + bias.
func (s *Scale) Compute(engine.Mode) {
	w, b := s.scalar(WeightParam), s.scalar(BiasParam)
	in, out := s.inputs[0].Data(), s.outputs[0].Data()
	parallel.For(len(out), func(i int) {
		out[i] = w*in[i] + b
	}, s.eng.Parallel())
}

// ComputeAsync runs Compute on its own goroutine.
func (s *Scale) ComputeAsync(mode engine.Mode) {
	s.computeAsync(s, mode, s.Compute)
}

// GradCompute returns weight for the input, x for the weight and one for
// the bias.
func (s *Scale) GradCompute(engine.Mode) map[string]graph.Value {
	return s.gradCompute(s, func() map[string]graph.Value {
		x := tensor.Zeros(s.inputs[0].Shape())
		if err := x.CopyFrom(s.inputs[0]); err != nil {
			panic(errors.WithMessage(err, s.label))
		}
		return map[string]graph.Value{
			graph.InputGradLabel(0): graph.ScalarValue(s.scalar(WeightParam)),
			WeightParam:             graph.TensorValue{Store: x},
			BiasParam:               graph.ScalarValue(1),
		}
	})
}

func (s *Scale) scalar(label string) float32 {
	v, ok := s.param(label).Value().(graph.ScalarValue)
	if !ok {
		panic(errors.Errorf("ops: %s parameter %q holds no scalar", s.label, label))
	}
	return float32(v)
}
