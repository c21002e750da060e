// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequestRoundTrip(t *testing.T) {
	req := EncodeRequest(42, 0x200, 0x16, []uint32{1, 2, 3})
	require.Len(t, req, HeaderSize+12)

	hdr := DecodeHeader(req)
	assert.Equal(t, RequestMagic, hdr.Magic)
	assert.Equal(t, uint32(42), hdr.Sequence)
	assert.Equal(t, uint32(0x200), hdr.MaxResponseLen)
	assert.Equal(t, uint32(0x16), hdr.CommandID)
	assert.Equal(t, uint32(0), hdr.Reserved)
	assert.True(t, IsRequestMagic(req))
}

func TestEncodeCompletionRoundTrip(t *testing.T) {
	b := EncodeCompletion(9)
	require.Len(t, b, CompletionSize)
	assert.True(t, IsCompletionMagic(b))

	c := DecodeCompletion(b)
	assert.Equal(t, CompletionMagic, c.Magic)
	assert.Equal(t, uint32(9), c.Sequence)
}

func TestIsRequestMagicRejectsShortOrWrongBuffers(t *testing.T) {
	assert.False(t, IsRequestMagic(nil))
	assert.False(t, IsRequestMagic([]byte{1, 2, 3}))
	assert.False(t, IsRequestMagic(EncodeCompletion(1)))
}

func TestIsCompletionMagicRejectsRequestBuffer(t *testing.T) {
	req := EncodeRequest(1, 0, 0, nil)
	assert.False(t, IsCompletionMagic(req))
}
