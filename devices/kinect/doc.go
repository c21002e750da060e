// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package kinect drives the Kinect v2 RGB-D sensor: USB discovery and
// protocol negotiation, the command/response transaction layer, device
// lifecycle, and the pull loop that turns raw USB transfers into paired
// color and depth frames.
//
// The device lifecycle is a typestate: Closed and Opened are distinct Go
// types rather than one struct with a nullable handle, so a caller cannot
// accidentally stream from, or issue commands to, a device that was never
// opened.
//
// More details
//
// See https://periph.io/device/kinect/ for more details about the device.
package kinect
