// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package parser

import (
	"encoding/binary"

	"periph.io/x/kinectv2/devices/kinect/frame"
)

// depthSubPacketFooter trails each of the ten worker-sized chunks that make
// up one depth frame. The 32 trailing fields word are reserved/unused and
// not decoded.
type depthSubPacketFooter struct {
	magic0      uint32
	magic1      uint32
	timestamp   uint32
	sequence    uint32
	subsequence uint32
	length      uint32
}

const depthSubPacketFooterSize = 6*4 + 32*4

func decodeDepthSubPacketFooter(b []byte) depthSubPacketFooter {
	le := binary.LittleEndian
	return depthSubPacketFooter{
		magic0:      le.Uint32(b[0:4]),
		magic1:      le.Uint32(b[4:8]),
		timestamp:   le.Uint32(b[8:12]),
		sequence:    le.Uint32(b[12:16]),
		subsequence: le.Uint32(b[16:20]),
		length:      le.Uint32(b[20:24]),
	}
}

const (
	depthWorkerCapacity = frame.DepthSubImageStride
	depthMemoryCapacity = depthWorkerCapacity * 10
	depthAllSubsequences = 0x3ff
)

// DepthStreamParser reassembles the depth bulk transfer stream into
// complete ten-sub-image depth frames. It is not safe for concurrent use.
type DepthStreamParser struct {
	memory             []byte
	worker             []byte
	haveProcessedCount bool
	processedCount     uint32
	currentSequence    uint32
	currentSubsequence uint32
}

// NewDepthStreamParser returns a parser with its accumulation buffers
// pre-sized to one full ten-sub-image frame.
func NewDepthStreamParser() *DepthStreamParser {
	return &DepthStreamParser{
		memory: make([]byte, depthMemoryCapacity),
		worker: make([]byte, 0, depthWorkerCapacity),
	}
}

// Parse feeds one USB transfer's payload into the parser. It returns a
// complete DepthPacket when a sequence rollover is observed with all ten
// sub-images present, and nil otherwise.
//
// A packet is emitted using the sequence number that was just superseded
// and the timestamp carried by the footer that triggered the rollover,
// matching the sensor's own framing: by the time subsequence 0 of the next
// frame arrives, every sub-image of the previous frame is already resident
// in memory.
func (p *DepthStreamParser) Parse(buf []byte) *frame.DepthPacket {
	if len(buf) == 0 {
		p.worker = p.worker[:0]
		return nil
	}

	var footer *depthSubPacketFooter
	if len(p.worker)+len(buf) == depthWorkerCapacity+depthSubPacketFooterSize {
		f := decodeDepthSubPacketFooter(buf[len(buf)-depthSubPacketFooterSize:])
		footer = &f
		buf = buf[:len(buf)-depthSubPacketFooterSize]
	}

	if len(p.worker)+len(buf) > depthWorkerCapacity {
		p.worker = p.worker[:0]
		return nil
	}
	p.worker = append(p.worker, buf...)

	if footer == nil {
		return nil
	}
	if int(footer.length) != len(p.worker) {
		p.worker = p.worker[:0]
		return nil
	}

	var result *frame.DepthPacket

	if p.currentSequence != footer.sequence {
		if p.currentSubsequence == depthAllSubsequences {
			result = &frame.DepthPacket{
				Sequence:  p.currentSequence,
				Timestamp: footer.timestamp,
				Buffer:    append([]byte(nil), p.memory...),
			}

			if !p.haveProcessedCount {
				p.processedCount = p.currentSequence
				p.haveProcessedCount = true
			} else {
				const interval = 30
				diff := p.currentSequence - p.processedCount
				if (p.currentSequence%interval == 0 && diff != 0) || diff >= interval {
					p.processedCount = p.currentSequence
				}
			}
		}

		p.currentSequence = footer.sequence
		p.currentSubsequence = 0
	}

	p.currentSubsequence |= 1 << footer.subsequence

	start := int(footer.subsequence) * int(footer.length)
	if start+int(footer.length) <= depthMemoryCapacity {
		copy(p.memory[start:start+int(footer.length)], p.worker)
	}

	p.worker = p.worker[:0]
	return result
}
