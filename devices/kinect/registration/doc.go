// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package registration maps the depth image onto the color camera's pixel
// grid (and back), using the factory intrinsics/extrinsics the calibration
// package derives tables from.
//
// This is a lightly specified boundary component: it only needs to produce
// a depth-sized color image and a depth image corrected for the IR
// camera's own lens distortion, using the same Brown-Conrady model and a
// bivariate cubic polynomial fit the factory calibration stores for the
// depth-to-color mapping.
package registration
