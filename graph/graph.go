// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the symbolic dataflow graph and its scheduler.
//
// # Overview
//
// A graph holds tensor and scalar data symbols connected by operator
// symbols. Forward stages the graph by dependency depth, allocates storage,
// verifies every operator and then runs each stage concurrently. Backward
// runs the stages in reverse, chains local gradients and hands them to an
// optimizer.
//
// # Basic Usage
//
//	eng := engine.New(engine.DefaultConfig())
//	defer eng.Close()
//
//	g := graph.New(eng, graph.Config{Label: "sum"})
//	x := g.Tensor("x", tensor.NewShape(2, 3))
//	y := g.Tensor("y", tensor.NewShape(2, 3))
//	g.Operation("add", []*graph.Symbol{x, y}, ops.NewAdd(eng))
//	g.BindData(map[graph.SymbolID]graph.Value{x.ID(): xv, y.ID(): yv})
//
//	results := g.Forward(engine.ModeAuto)
package graph

import (
	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/graph"
)

// Graph is a dataflow graph bound to an engine.
type Graph = graph.Graph

// Config configures a Graph.
type Config = graph.Config

// State is the lifecycle state of a graph.
type State = graph.State

// Symbol is a node of the graph.
type Symbol = graph.Symbol

// SymbolID identifies a symbol within its graph.
type SymbolID = graph.SymbolID

// Kind distinguishes tensor, scalar and operator symbols.
type Kind = graph.Kind

// DataSource records where a data symbol's value comes from.
type DataSource = graph.DataSource

// Value is a value bound to a data symbol.
type Value = graph.Value

// TensorValue binds tensor storage.
type TensorValue = graph.TensorValue

// ScalarValue binds a single number.
type ScalarValue = graph.ScalarValue

// Operator is a computation the scheduler drives.
type Operator = graph.Operator

// ParamSpec declares an operator parameter.
type ParamSpec = graph.ParamSpec

// Delegate observes operator execution.
type Delegate = graph.Delegate

// DelegateFuncs adapts optional callbacks to Delegate.
type DelegateFuncs = graph.DelegateFuncs

// Optimizer applies gradients during Backward.
type Optimizer = graph.Optimizer

// Symbol kinds.
const (
	KindTensor   = graph.KindTensor
	KindScalar   = graph.KindScalar
	KindOperator = graph.KindOperator
)

// Data sources.
const (
	SourceUser      = graph.SourceUser
	SourceComputed  = graph.SourceComputed
	SourceParameter = graph.SourceParameter
	SourceDefault   = graph.SourceDefault
)

// Graph states.
const (
	StateUnsorted  = graph.StateUnsorted
	StateSorted    = graph.StateSorted
	StateVerified  = graph.StateVerified
	StateExecuting = graph.StateExecuting
	StateDone      = graph.StateDone
)

// InvalidSymbolID is never assigned to a symbol.
const InvalidSymbolID = graph.InvalidSymbolID

// ErrNotSorted is returned by Verify before the graph is staged.
var ErrNotSorted = graph.ErrNotSorted

// New creates an empty graph on eng.
func New(eng *engine.Engine, cfg Config) *Graph {
	return graph.New(eng, cfg)
}

// InputGradLabel returns the gradient label of an operator's i-th input.
func InputGradLabel(i int) string {
	return graph.InputGradLabel(i)
}
