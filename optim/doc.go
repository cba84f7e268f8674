// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for graph training.
//
// # Overview
//
// This package contains SGD with momentum, Nesterov acceleration and
// learning rate decay. Any type implementing Optimizer can be attached to a
// trainable graph.
//
// # Basic Usage
//
//	opt := optim.NewSGD(optim.SGDConfig{
//	    LR:          0.05,
//	    Momentum:    0.9,
//	    Decay:       0.1,
//	    DecayMethod: optim.DecayInverse,
//	})
//	g.SetOptimizer(opt)
//
//	for range epochs {
//	    g.Forward(engine.ModeAuto)
//	    g.Backward(engine.ModeAuto)
//	}
package optim
