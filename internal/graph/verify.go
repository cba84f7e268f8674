package graph

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/tensor"
)

// ErrNotSorted is returned by Verify before Sort has run.
var ErrNotSorted = errors.New("graph: not staged")

// Verify checks that the graph can execute: it is staged, every data symbol
// has a value, and every operator accepts its assigned tensors. On success the
// operators hold their inputs, outputs and parameters and the graph becomes
// verified.
func (g *Graph) Verify() error {
	if g.state == StateUnsorted {
		return errors.Wrapf(ErrNotSorted, "graph %q", g.cfg.Label)
	}

	for _, s := range g.symbols {
		if s.IsData() && s.value == nil {
			return errors.Errorf("graph %q: data symbol %s (%s) has no bound value", g.cfg.Label, s, s.source)
		}
	}

	if g.shared != nil {
		if err := g.shared.check(); err != nil {
			return errors.WithMessagef(err, "graph %q", g.cfg.Label)
		}
	}

	for _, opSym := range g.OpSymbols() {
		if err := g.assign(opSym); err != nil {
			return err
		}
		if ok, msg := opSym.op.CheckTensors(); !ok {
			return errors.Errorf("graph %q: operator %s rejected its tensors: %s", g.cfg.Label, opSym, msg)
		}
	}

	g.state = StateVerified
	return nil
}

// assign hands an operator its concrete inputs, outputs and parameters.
// Inputs follow the declared input list, outputs the outbound relations and
// parameters are the inbound symbols that are not declared inputs.
func (g *Graph) assign(opSym *Symbol) error {
	inputs := make([]*tensor.Store, len(opSym.inputs))
	for i, id := range opSym.inputs {
		s := g.symbols[id]
		st := s.Store()
		if st == nil {
			return errors.Errorf("graph %q: operator %s input %s holds no tensor", g.cfg.Label, opSym, s)
		}
		if err := g.shapeShared(s); err != nil {
			return err
		}
		inputs[i] = st
	}

	outputs := make([]*tensor.Store, len(opSym.outbound))
	for i, id := range opSym.outbound {
		s := g.symbols[id]
		st := s.Store()
		if st == nil {
			return errors.Errorf("graph %q: operator %s output %s holds no tensor", g.cfg.Label, opSym, s)
		}
		if err := g.shapeShared(s); err != nil {
			return err
		}
		outputs[i] = st
	}

	var params []*Symbol
	for _, id := range opSym.inbound {
		if !slices.Contains(opSym.inputs, id) {
			params = append(params, g.symbols[id])
		}
	}

	opSym.op.SetInputs(inputs)
	opSym.op.SetOutputs(outputs)
	opSym.op.BindParamSymbols(params)
	return nil
}

// shapeShared restores the symbol's shape on storage shared with other symbols.
func (g *Graph) shapeShared(s *Symbol) error {
	if g.shared == nil || !g.shared.has(s.id) {
		return nil
	}
	if err := s.Store().Reshape(s.shape); err != nil {
		return errors.WithMessagef(err, "graph %q: shared storage of %s", g.cfg.Label, s)
	}
	return nil
}

// ForwardPrepare stages, allocates and verifies the graph. It panics if
// verification fails.
func (g *Graph) ForwardPrepare() {
	g.Sort()
	g.AllocateTensors()
	if err := g.Verify(); err != nil {
		panic(err)
	}
	g.logger.Info("graph prepared", "symbols", len(g.symbols), "stages", len(g.stages))
}
