// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU compute device.
//
// WebGPU is available on Windows through the wgpu native library. On other
// platforms New returns an error wrapping device.ErrNoDevice, and engines fall
// back to the CPU.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Printf("no GPU: %v", err)
//	}
//	eng := engine.New(engine.Config{Mode: engine.ModeAuto, Device: gpu})
package webgpu

import (
	"github.com/born-ml/graphcore/internal/device"
)

// ErrNoDevice is returned when no adapter can be acquired.
var ErrNoDevice = device.ErrNoDevice

// New initializes the WebGPU device. Call Release when done.
func New() (device.Device, error) {
	return device.NewWebGPU()
}

// IsAvailable reports whether a WebGPU device can be created.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    cfg.Device = gpu
//	}
func IsAvailable() bool {
	dev, err := device.NewWebGPU()
	if err != nil {
		return false
	}
	dev.Release()
	return true
}
