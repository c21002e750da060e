// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package command implements the Kinect v2 control-channel transaction
// protocol: a framed request/response exchange carried over a pair of bulk
// endpoints, with an optional payload response sandwiched between the
// request and a fixed 16-byte completion acknowledgement.
//
// This protocol configures and queries the sensor; it is not used to read
// the color or depth image streams, which arrive on separate bulk/isochronous
// endpoints handled by the parser package.
package command
