// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host compute device.
//
// # Overview
//
// The CPU device executes the elementwise kernels ("add", "sub", "mul",
// "div") over host memory. Its buffers alias tensor storage without copying,
// so results land directly in the bound tensors.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/graphcore/backend/cpu"
//	    "github.com/born-ml/graphcore/engine"
//	)
//
//	func main() {
//	    cfg := engine.DefaultConfig()
//	    cfg.Device = cpu.New()
//	    eng := engine.New(cfg)
//	    defer eng.Close()
//	}
//
// Custom kernels can be added with Register before the device is used.
package cpu
