// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package parser

import (
	"encoding/binary"
	"math"

	"periph.io/x/kinectv2/devices/kinect/frame"
)

const (
	colorCapacity     = 2 * 1024 * 1024
	colorHeaderSize   = 8  // sequence uint32, magic uint32
	colorFooterSize   = 56 // see colorFooter field layout below
	colorFooterMagic  = 0x39393939
	colorFooterMagic2 = 0x42424242
)

// colorFooter is the trailer appended after the JPEG EOI marker (plus an
// alignment pad and a filler run), little-endian packed:
//
//	magicHeader, sequence, fillerLength, _, _, timestamp uint32
//	exposure, gain float32
//	magicFooter, packetSize uint32
//	gamma float32
//	_, _, _ uint32
type colorFooter struct {
	magicHeader  uint32
	sequence     uint32
	fillerLength uint32
	timestamp    uint32
	exposure     float32
	gain         float32
	magicFooter  uint32
	packetSize   uint32
	gamma        float32
}

func decodeColorFooter(b []byte) colorFooter {
	le := binary.LittleEndian
	return colorFooter{
		magicHeader:  le.Uint32(b[0:4]),
		sequence:     le.Uint32(b[4:8]),
		fillerLength: le.Uint32(b[8:12]),
		// b[12:16], b[16:20] are reserved/unknown and always zero.
		timestamp: le.Uint32(b[20:24]),
		exposure:  math.Float32frombits(le.Uint32(b[24:28])),
		gain:      math.Float32frombits(le.Uint32(b[28:32])),
		magicFooter: le.Uint32(b[32:36]),
		packetSize:  le.Uint32(b[36:40]),
		gamma:       math.Float32frombits(le.Uint32(b[40:44])),
		// b[44:56] hold three reserved/unknown uint32s, always zero.
	}
}

// ColorStreamParser reassembles the color bulk transfer stream into
// complete JPEG frames. It is not safe for concurrent use; callers feed it
// from a single reader goroutine.
type ColorStreamParser struct {
	memory []byte
}

// NewColorStreamParser returns a parser with its accumulation buffer
// pre-sized to the largest frame the sensor can produce.
func NewColorStreamParser() *ColorStreamParser {
	return &ColorStreamParser{memory: make([]byte, 0, colorCapacity)}
}

// Parse feeds one USB transfer's payload into the parser. It returns a
// complete ColorPacket once a validated frame boundary is found, and nil
// otherwise. Any framing inconsistency — a length mismatch, a missing EOI
// marker, or simply overflowing the capacity — discards the accumulated
// buffer and resumes from empty, exactly as the device resynchronizes
// after a dropped transfer.
func (p *ColorStreamParser) Parse(buf []byte) *frame.ColorPacket {
	if len(p.memory)+len(buf) > colorCapacity {
		p.memory = p.memory[:0]
		return nil
	}
	p.memory = append(p.memory, buf...)

	if len(p.memory) <= colorHeaderSize+colorFooterSize {
		return nil
	}

	footer := decodeColorFooter(p.memory[len(p.memory)-colorFooterSize:])
	if footer.magicHeader != colorFooterMagic || footer.magicFooter != colorFooterMagic2 {
		return nil
	}

	sequence := binary.LittleEndian.Uint32(p.memory[0:4])

	bodyLen := len(p.memory) - colorHeaderSize - colorFooterSize
	if len(p.memory) != int(footer.packetSize) || sequence != footer.sequence || bodyLen < int(footer.fillerLength) {
		p.memory = p.memory[:0]
		return nil
	}

	jpegBuf := p.memory[colorHeaderSize:]
	lengthNoFiller := bodyLen - int(footer.fillerLength)

	jpegLength := 0
	for index := 0; index < 4; index++ {
		if lengthNoFiller < index+2 {
			break
		}
		eoi := lengthNoFiller - index
		if jpegBuf[eoi-2] == 0xff && jpegBuf[eoi-1] == 0xd9 {
			jpegLength = eoi
		}
	}
	if jpegLength == 0 {
		p.memory = p.memory[:0]
		return nil
	}

	packet := &frame.ColorPacket{
		Sequence:  sequence,
		Timestamp: footer.timestamp,
		Exposure:  footer.exposure,
		Gain:      footer.gain,
		Gamma:     footer.gamma,
		JPEGBytes: append([]byte(nil), jpegBuf[:jpegLength]...),
	}
	p.memory = p.memory[:0]
	return packet
}
