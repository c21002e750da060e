// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package wire

import "encoding/binary"

// RequestMagic leads every command request sent on the control-out endpoint.
const RequestMagic uint32 = 0x06022009

// CompletionMagic leads every 16-byte completion response.
const CompletionMagic uint32 = 0x0a6fe000

// HeaderSize is the fixed portion of a command request, before parameters.
const HeaderSize = 20

// CompletionSize is the fixed size of a completion response.
const CompletionSize = 16

// Header is the fixed prefix of a command request: magic, sequence, the
// caller's declared max response length, the command id, and a reserved
// zero word. Parameters follow immediately after in the wire encoding and
// are carried separately here since their count varies per command.
type Header struct {
	Magic          uint32
	Sequence       uint32
	MaxResponseLen uint32
	CommandID      uint32
	Reserved       uint32
}

// EncodeRequest serializes a full command request: header followed by
// little-endian uint32 parameters.
func EncodeRequest(sequence, maxResponseLen, commandID uint32, params []uint32) []byte {
	buf := make([]byte, HeaderSize+4*len(params))
	binary.LittleEndian.PutUint32(buf[0:4], RequestMagic)
	binary.LittleEndian.PutUint32(buf[4:8], sequence)
	binary.LittleEndian.PutUint32(buf[8:12], maxResponseLen)
	binary.LittleEndian.PutUint32(buf[12:16], commandID)
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	for i, p := range params {
		binary.LittleEndian.PutUint32(buf[HeaderSize+4*i:HeaderSize+4*i+4], p)
	}
	return buf
}

// DecodeHeader parses the fixed prefix of a request buffer. It does not
// validate the magic; callers that care use IsRequestMagic.
func DecodeHeader(b []byte) Header {
	return Header{
		Magic:          binary.LittleEndian.Uint32(b[0:4]),
		Sequence:       binary.LittleEndian.Uint32(b[4:8]),
		MaxResponseLen: binary.LittleEndian.Uint32(b[8:12]),
		CommandID:      binary.LittleEndian.Uint32(b[12:16]),
		Reserved:       binary.LittleEndian.Uint32(b[16:20]),
	}
}

// Completion is the fixed 16-byte completion response: a magic prefix and
// the sequence number of the request it completes.
type Completion struct {
	Magic    uint32
	Sequence uint32
}

// DecodeCompletion parses a 16-byte completion buffer. The caller is
// expected to have already checked len(b) == CompletionSize.
func DecodeCompletion(b []byte) Completion {
	return Completion{
		Magic:    binary.LittleEndian.Uint32(b[0:4]),
		Sequence: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// EncodeCompletion serializes a completion response, used by tests and
// fake transports standing in for the device.
func EncodeCompletion(sequence uint32) []byte {
	buf := make([]byte, CompletionSize)
	binary.LittleEndian.PutUint32(buf[0:4], CompletionMagic)
	binary.LittleEndian.PutUint32(buf[4:8], sequence)
	return buf
}

// IsRequestMagic reports whether b starts with the request magic.
func IsRequestMagic(b []byte) bool {
	return len(b) >= 4 && binary.LittleEndian.Uint32(b[0:4]) == RequestMagic
}

// IsCompletionMagic reports whether b starts with the completion magic.
func IsCompletionMagic(b []byte) bool {
	return len(b) >= 4 && binary.LittleEndian.Uint32(b[0:4]) == CompletionMagic
}
