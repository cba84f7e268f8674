// Package graph implements the symbolic dataflow graph and its scheduler.
//
// A Graph owns an arena of symbols: tensor and scalar data symbols connected
// through operator symbols. Declaring symbols is independent of executing
// them. Before the first forward pass the graph is staged by topological
// depth, allocated through the engine's resource manager and verified; the
// forward pass then runs every operator of a stage concurrently on the
// engine's worker pool, with a barrier between stages. Trainable graphs run a
// backward pass that hands gradients to an Optimizer.
//
// Configuration errors and contract violations panic with an error naming the
// offending symbol. Verify offers the same checks as an error return.
package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/tensor"
)

// State is the lifecycle state of a graph.
type State int

// Graph states. Declaring a symbol returns the graph to StateUnsorted.
const (
	StateUnsorted State = iota
	StateSorted
	StateVerified
	StateExecuting
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnsorted:
		return "unsorted"
	case StateSorted:
		return "sorted"
	case StateVerified:
		return "verified"
	case StateExecuting:
		return "executing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config configures a Graph.
type Config struct {
	Label string

	// Trainable enables Backward.
	Trainable bool

	// ShareComputed lets computed tensors whose lifetimes do not overlap share
	// storage. Such graphs cannot run Backward.
	ShareComputed bool
}

// Graph is a dataflow graph of symbols. It is not safe for concurrent
// declaration; execution is internally parallel.
type Graph struct {
	cfg    Config
	eng    *engine.Engine
	logger *slog.Logger

	symbols []*Symbol

	state        State
	stages       [][]SymbolID
	depth        []int
	currentStage int

	allocated []*tensor.Store // managed stores to return on Release
	shared    *sharedPlan

	optimizer Optimizer
	epoch     int
}

// New creates an empty graph executing on eng.
func New(eng *engine.Engine, cfg Config) *Graph {
	if cfg.Label == "" {
		cfg.Label = "graph"
	}
	return &Graph{
		cfg:    cfg,
		eng:    eng,
		logger: eng.Logger().With("graph", cfg.Label),
	}
}

// Label returns the graph label.
func (g *Graph) Label() string { return g.cfg.Label }

// Engine returns the engine the graph executes on.
func (g *Graph) Engine() *engine.Engine { return g.eng }

// State returns the lifecycle state.
func (g *Graph) State() State { return g.state }

// CurrentStage returns the stage being executed, or the last one executed.
func (g *Graph) CurrentStage() int { return g.currentStage }

// Epoch returns the number of completed backward passes.
func (g *Graph) Epoch() int { return g.epoch }

// Trainable reports whether Backward is allowed.
func (g *Graph) Trainable() bool { return g.cfg.Trainable }

// SetOptimizer attaches the optimizer used by Backward.
func (g *Graph) SetOptimizer(opt Optimizer) { g.optimizer = opt }

// Symbol returns the symbol with the given id. It panics on an unknown id.
func (g *Graph) Symbol(id SymbolID) *Symbol {
	if id < 0 || int(id) >= len(g.symbols) {
		panic(errors.Errorf("graph %q: unknown symbol id %d", g.cfg.Label, id))
	}
	return g.symbols[id]
}

// Symbols returns every symbol in declaration order.
func (g *Graph) Symbols() []*Symbol {
	return append([]*Symbol(nil), g.symbols...)
}

// DataSymbols returns every tensor and scalar symbol.
func (g *Graph) DataSymbols() []*Symbol {
	var out []*Symbol
	for _, s := range g.symbols {
		if s.IsData() {
			out = append(out, s)
		}
	}
	return out
}

// OpSymbols returns every operator symbol.
func (g *Graph) OpSymbols() []*Symbol {
	var out []*Symbol
	for _, s := range g.symbols {
		if !s.IsData() {
			out = append(out, s)
		}
	}
	return out
}

func (g *Graph) register(s *Symbol) *Symbol {
	s.id = SymbolID(len(g.symbols))
	if s.label == "" {
		s.label = fmt.Sprintf("%s_%d", s.kind, s.id)
	}
	g.symbols = append(g.symbols, s)
	g.state = StateUnsorted
	return s
}

// Tensor declares a user-fed tensor symbol.
func (g *Graph) Tensor(label string, shape tensor.Shape) *Symbol {
	if err := shape.Validate(); err != nil {
		panic(errors.WithMessagef(err, "graph %q: tensor symbol %q", g.cfg.Label, label))
	}
	return g.register(&Symbol{label: label, kind: KindTensor, source: SourceUser, shape: shape.Clone()})
}

// Scalar declares a user-fed scalar symbol.
func (g *Graph) Scalar(label string, dtype tensor.DataType) *Symbol {
	return g.register(&Symbol{label: label, kind: KindScalar, source: SourceUser, shape: tensor.ScalarShape(dtype)})
}

// Default declares a tensor symbol the graph allocates and fills with init.
func (g *Graph) Default(label string, shape tensor.Shape, init float32) *Symbol {
	s := g.Tensor(label, shape)
	s.source = SourceDefault
	s.init = init
	return s
}

// Operation adds op applied to inputs. It creates the output symbols, shaped by
// op.OutputShape, and one parameter symbol per op.ParamSymbols entry. It
// panics when the operator rejects the input shapes.
func (g *Graph) Operation(label string, inputs []*Symbol, op Operator) (outputs []*Symbol, opSym *Symbol, params []*Symbol) {
	if label == "" {
		label = op.Label()
	}
	opSym = g.register(&Symbol{label: label, kind: KindOperator, op: op})

	shapes := make([]tensor.Shape, len(inputs))
	for i, in := range inputs {
		if in.kind != KindTensor {
			panic(errors.Errorf("graph %q: operator %s input %d (%s) is a %s, operator inputs must be tensors",
				g.cfg.Label, opSym, i, in, in.kind))
		}
		shapes[i] = in.shape
		opSym.inputs = append(opSym.inputs, in.id)
		in.addOutbound(opSym.id)
		opSym.addInbound(in.id)
	}

	outShapes, err := op.OutputShape(shapes)
	if err != nil {
		panic(errors.WithMessagef(err, "graph %q: operator %s rejects input shapes", g.cfg.Label, opSym))
	}
	for i, shape := range outShapes {
		out := g.register(&Symbol{
			label:  fmt.Sprintf("%s_out_%d", label, i),
			kind:   KindTensor,
			source: SourceComputed,
			shape:  shape.Clone(),
		})
		opSym.addOutbound(out.id)
		out.addInbound(opSym.id)
		outputs = append(outputs, out)
	}

	for _, spec := range op.ParamSymbols() {
		p := &Symbol{label: spec.Label, kind: spec.Kind, source: SourceParameter, init: spec.Init}
		switch spec.Kind {
		case KindTensor:
			p.shape = spec.Shape.Clone()
		case KindScalar:
			p.shape = tensor.ScalarShape(spec.Shape.DType)
		default:
			panic(errors.Errorf("graph %q: operator %s declares parameter %q of kind %s",
				g.cfg.Label, opSym, spec.Label, spec.Kind))
		}
		g.register(p)
		p.addOutbound(opSym.id)
		opSym.addInbound(p.id)
		opSym.params = append(opSym.params, p.id)
		params = append(params, p)
	}

	g.logger.Debug("declared operation", "op", opSym.String(), "inputs", len(inputs),
		"outputs", len(outputs), "params", len(params))
	return outputs, opSym, params
}

// SetUpdatable marks data symbols as updated by Backward.
func (g *Graph) SetUpdatable(updatable bool, syms ...*Symbol) {
	for _, s := range syms {
		if !s.IsData() {
			panic(errors.Errorf("graph %q: operator symbol %s cannot be updatable", g.cfg.Label, s))
		}
		s.updatable = updatable
	}
}

// Bind attaches a value to a data symbol. Tensors need a TensorValue whose
// shape matches the symbol's shape and data type; scalars need a ScalarValue.
// Binding on a verified graph sends it back to StateSorted so the next Forward
// hands the new value to the operators.
func (g *Graph) Bind(s *Symbol, v Value) error {
	switch s.kind {
	case KindTensor:
		tv, ok := v.(TensorValue)
		if !ok || tv.Store == nil {
			return errors.Errorf("graph %q: tensor symbol %s needs a tensor value, got %T", g.cfg.Label, s, v)
		}
		if !tv.Shape().DotEqual(s.shape) {
			return errors.Errorf("graph %q: symbol %s has shape %s, value has %s",
				g.cfg.Label, s, s.shape, tv.Shape())
		}
	case KindScalar:
		if _, ok := v.(ScalarValue); !ok {
			return errors.Errorf("graph %q: scalar symbol %s needs a scalar value, got %T", g.cfg.Label, s, v)
		}
	default:
		return errors.Errorf("graph %q: cannot bind data to operator symbol %s", g.cfg.Label, s)
	}
	s.value = v
	if g.state == StateVerified || g.state == StateDone {
		g.state = StateSorted
	}
	return nil
}

// BindData binds values by symbol id. Unknown ids are skipped with a warning;
// binding to an operator symbol or a mismatched value panics.
func (g *Graph) BindData(data map[SymbolID]Value) {
	for id, v := range data {
		if id < 0 || int(id) >= len(g.symbols) {
			g.logger.Warn("binding skipped, no such symbol", "id", int(id))
			continue
		}
		if err := g.Bind(g.symbols[id], v); err != nil {
			panic(err)
		}
	}
}

// String returns a one-line summary per stage.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q (%s, %d symbols, epoch %d)\n", g.cfg.Label, g.state, len(g.symbols), g.epoch)
	for i, stage := range g.stages {
		names := make([]string, len(stage))
		for j, id := range stage {
			names[j] = g.symbols[id].String()
		}
		fmt.Fprintf(&b, "  stage %d: %s\n", i, strings.Join(names, " "))
	}
	return b.String()
}
