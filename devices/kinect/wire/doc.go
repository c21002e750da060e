// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package wire declares the little-endian, packed wire structures used by
// the Kinect v2 command protocol and calibration payloads, and the
// functions that encode and decode them.
//
// Everything in this package is pure: no I/O, no USB, just byte layouts.
package wire
