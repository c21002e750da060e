// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package parser reassembles the color and depth bulk/isochronous USB
// transfers into complete frame.ColorPacket and frame.DepthPacket values.
//
// Each transfer arrives as an independent byte slice with no guarantee it
// aligns to a frame boundary; the parsers accumulate transfers into an
// internal buffer and only emit a packet once a validated footer confirms
// the buffer holds exactly one complete frame.
package parser
