// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package depthproc implements the CPU reference depth image formation
// pipeline: 11-bit sample unpack, three-frequency IQ demodulation, an
// optional joint bilateral prefilter, phase unwrapping, and an optional
// edge-aware postfilter.
//
// Two other back-ends exist in the device this driver targets (OpenCL
// variants, one of them using KDE-based phase unwrapping) that must
// produce numerically equivalent output; only the CPU reference is
// implemented here.
package depthproc
