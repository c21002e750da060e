// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package calib derives the per-pixel X/Z projection tables and the
// 11-to-16-bit sample lookup table from factory IR intrinsics.
//
// Everything here is a pure function of IrParams; the tables it produces
// are immutable for the life of a session once derived.
package calib
