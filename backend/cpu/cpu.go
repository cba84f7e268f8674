// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/parallel"
)

// Device is the host compute device.
type Device = device.CPU

// KernelFunc computes n output elements from the bound views.
type KernelFunc = device.KernelFunc

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

// New creates a CPU device that splits kernels across every core.
func New() *Device {
	return device.NewCPU(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU device with explicit parallelism.
func NewWithConfig(cfg parallel.Config) *Device {
	return device.NewCPU(cfg)
}
