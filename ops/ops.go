// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the reference operators.
//
// Elementwise operators need equal input shapes; broadcast operators follow
// NumPy rules. Scale is an affine map with trainable scalar weight and bias.
//
// Example:
//
//	x := g.Tensor("x", tensor.NewShape(2, 3))
//	b := g.Tensor("b", tensor.NewShape(3))
//	out, _, _ := g.Operation("shift", []*graph.Symbol{x, b}, ops.NewBroadcastAdd(eng))
package ops

import (
	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/ops"
)

// Elementwise applies a binary operation to equally shaped tensors.
type Elementwise = ops.Elementwise

// Broadcast applies a binary operation with broadcasting.
type Broadcast = ops.Broadcast

// Scale computes weight*x + bias.
type Scale = ops.Scale

// Parameter labels declared by Scale.
const (
	WeightParam = ops.WeightParam
	BiasParam   = ops.BiasParam
)

// NewAdd returns an elementwise addition operator.
func NewAdd(eng *engine.Engine) *Elementwise { return ops.NewAdd(eng) }

// NewSub returns an elementwise subtraction operator.
func NewSub(eng *engine.Engine) *Elementwise { return ops.NewSub(eng) }

// NewMul returns an elementwise multiplication operator.
func NewMul(eng *engine.Engine) *Elementwise { return ops.NewMul(eng) }

// NewDiv returns an elementwise division operator.
func NewDiv(eng *engine.Engine) *Elementwise { return ops.NewDiv(eng) }

// NewBroadcastAdd returns a broadcasting addition operator.
func NewBroadcastAdd(eng *engine.Engine) *Broadcast { return ops.NewBroadcastAdd(eng) }

// NewBroadcastSub returns a broadcasting subtraction operator.
func NewBroadcastSub(eng *engine.Engine) *Broadcast { return ops.NewBroadcastSub(eng) }

// NewBroadcastMul returns a broadcasting multiplication operator.
func NewBroadcastMul(eng *engine.Engine) *Broadcast { return ops.NewBroadcastMul(eng) }

// NewBroadcastDiv returns a broadcasting division operator.
func NewBroadcastDiv(eng *engine.Engine) *Broadcast { return ops.NewBroadcastDiv(eng) }

// NewScale returns an affine operator with initial weight and bias.
func NewScale(eng *engine.Engine, weight, bias float32) *Scale { return ops.NewScale(eng, weight, bias) }
