// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides page-aligned float32 tensor storage.
//
// # Overview
//
// A Store is either a root tensor that owns its memory or a slice view that
// aliases a contiguous region of a root. This package provides:
//   - Page-aligned allocation sized for zero-copy device buffers
//   - Row-major element access with checked and unchecked variants
//   - Zero-copy slicing along leading dimensions
//   - Reshape within the allocated capacity
//   - NumPy-style broadcast shape rules
//
// # Basic Usage
//
//	x, err := tensor.Allocate(tensor.NewShape(2, 3), 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	row := x.MustSlice(1)   // shares memory with x
//	row.Set(5, 2)           // x.At(1, 2) == 5
//
// # Data Types
//
// Payloads are always float32. The data type carried by a Shape is a tag used
// when shapes are compared with DotEqual.
package tensor
