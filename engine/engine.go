// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the execution context shared by graphs and
// operators: compute mode, optional device, worker pool and resource manager.
//
// Example:
//
//	eng := engine.New(engine.DefaultConfig())
//	defer eng.Close()
package engine

import (
	"github.com/born-ml/graphcore/internal/engine"
	"github.com/born-ml/graphcore/internal/resource"
)

// Engine is the execution context.
type Engine = engine.Engine

// Config configures an Engine.
type Config = engine.Config

// Mode selects where operators compute.
type Mode = engine.Mode

// ResourceManager pools tensor storage and device buffers for an engine.
type ResourceManager = resource.Manager

// ResourceStats summarizes a resource manager.
type ResourceStats = resource.Stats

// Compute modes.
const (
	ModeCPU  = engine.ModeCPU
	ModeGPU  = engine.ModeGPU
	ModeAuto = engine.ModeAuto
)

// DefaultConfig returns a CPU engine config using every core.
func DefaultConfig() Config {
	return engine.DefaultConfig()
}

// New builds an engine. GPU mode without a device falls back to CPU.
func New(cfg Config) *Engine {
	return engine.New(cfg)
}
