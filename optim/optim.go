// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/optim"
)

// Optimizer applies gradients during a backward pass.
type Optimizer = graph.Optimizer

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// DecayMethod selects the learning rate schedule.
type DecayMethod = optim.DecayMethod

// Decay methods.
const (
	DecayStep        = optim.DecayStep
	DecayExponential = optim.DecayExponential
	DecayInverse     = optim.DecayInverse
)

// Compile-time check that SGD implements Optimizer.
var _ Optimizer = (*SGD)(nil)

// DefaultSGDConfig returns plain SGD with learning rate 0.01.
func DefaultSGDConfig() SGDConfig {
	return optim.DefaultSGDConfig()
}

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(cfg SGDConfig) *SGD {
	return optim.NewSGD(cfg)
}
