// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sync pairs color and depth packets by timestamp.
//
// The color and depth streams are read off independent endpoints and
// arrive at different rates; Synchroniser buffers the most recent color
// packet and a short run of depth packets and emits the nearest-following
// depth packet once one arrives whose timestamp has caught up to the held
// color packet's.
package sync
