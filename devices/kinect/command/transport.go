// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package command

import "time"

// Transport abstracts the pair of bulk endpoints a Transaction speaks over.
// The USB adapter in devices/kinect implements this against a real
// gousb.Device; tests implement it against an in-memory fake, the same way
// the rest of this codebase fakes its transport layer for unit testing.
type Transport interface {
	// WriteBulkOut writes b to the command-out endpoint and returns the
	// number of bytes actually written.
	WriteBulkOut(b []byte, timeout time.Duration) (int, error)
	// ReadBulkIn reads into b from the command-in endpoint and returns the
	// number of bytes actually read.
	ReadBulkIn(b []byte, timeout time.Duration) (int, error)
	// ClearHaltOut clears a stall condition on the command-out endpoint.
	ClearHaltOut() error
	// ClearHaltIn clears a stall condition on the command-in endpoint.
	ClearHaltIn() error
}
