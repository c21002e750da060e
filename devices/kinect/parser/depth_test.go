// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package parser

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDepthChunk(sequence, subsequence, timestamp uint32, fill byte) []byte {
	payload := make([]byte, depthWorkerCapacity)
	for i := range payload {
		payload[i] = fill
	}

	footer := make([]byte, depthSubPacketFooterSize)
	le := binary.LittleEndian
	le.PutUint32(footer[0:4], 0x12345678)
	le.PutUint32(footer[4:8], 0x9abcdef0)
	le.PutUint32(footer[8:12], timestamp)
	le.PutUint32(footer[12:16], sequence)
	le.PutUint32(footer[16:20], subsequence)
	le.PutUint32(footer[20:24], uint32(depthWorkerCapacity))

	return append(payload, footer...)
}

func TestDepthStreamParserEmitsOnSequenceRollover(t *testing.T) {
	p := NewDepthStreamParser()

	for sub := uint32(0); sub < 10; sub++ {
		pkt := p.Parse(buildDepthChunk(1, sub, 1000+sub, byte(sub)))
		assert.Nil(t, pkt)
	}

	// The first chunk of sequence 2 triggers emission of sequence 1, using
	// sequence 1's identity but sequence 2's footer timestamp.
	pkt := p.Parse(buildDepthChunk(2, 0, 2000, 0xAA))
	require.NotNil(t, pkt)
	assert.Equal(t, uint32(1), pkt.Sequence)
	assert.Equal(t, uint32(2000), pkt.Timestamp)
	assert.Len(t, pkt.Buffer, depthMemoryCapacity)
	assert.Equal(t, byte(0), pkt.Buffer[0])
	assert.Equal(t, byte(9), pkt.Buffer[9*depthWorkerCapacity])
}

func TestDepthStreamParserIncompleteSequenceNeverEmits(t *testing.T) {
	p := NewDepthStreamParser()
	for sub := uint32(0); sub < 9; sub++ {
		assert.Nil(t, p.Parse(buildDepthChunk(5, sub, 100, 0)))
	}
	// Missing subsequence 9: rollover to sequence 6 must not emit, since
	// the subsequence bitmask never reached all ten bits set.
	assert.Nil(t, p.Parse(buildDepthChunk(6, 0, 200, 0)))
}

func TestDepthStreamParserEmptyBufferResetsWorker(t *testing.T) {
	p := NewDepthStreamParser()
	p.worker = append(p.worker, 1, 2, 3)
	assert.Nil(t, p.Parse(nil))
	assert.Empty(t, p.worker)
}

func TestDepthStreamParserLengthMismatchResets(t *testing.T) {
	p := NewDepthStreamParser()
	chunk := buildDepthChunk(1, 0, 100, 0)
	// Corrupt the footer's declared length field so it no longer matches
	// the accumulated worker buffer.
	binary.LittleEndian.PutUint32(chunk[len(chunk)-depthSubPacketFooterSize+20:], 1)
	assert.Nil(t, p.Parse(chunk))
	assert.Empty(t, p.worker)
}
