// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package frame declares the packet and image types that flow between the
// stream parsers, the depth pipeline, the packet synchroniser, and
// registration. Its only dependency is wire, for the image dimensions, so
// every other kinect subpackage can depend on it without risk of an import
// cycle.
package frame

import "periph.io/x/kinectv2/devices/kinect/wire"

// DepthSubImageStride is the byte length of one of the ten sub-images
// packed into a DepthPacket's buffer: 512*424 samples at 11 bits each.
const DepthSubImageStride = wire.DepthWidth * wire.DepthHeight * 11 / 8

// DepthPacket is one reassembled depth frame: ten sub-images of packed
// 11-bit samples, keyed by the sequence number the sensor tagged them
// with.
type DepthPacket struct {
	Sequence  uint32
	Timestamp uint32
	Buffer    []byte // len == DepthSubImageStride * 10
}

// ColorPacket is one reassembled color frame: a JPEG byte stream plus the
// exposure metadata carried in the stream footer.
type ColorPacket struct {
	Sequence  uint32
	Timestamp uint32
	Exposure  float32
	Gain      float32
	Gamma     float32
	JPEGBytes []byte
}

// IrFrame is the per-pixel active-brightness image the depth pipeline
// derives alongside DepthFrame.
type IrFrame struct {
	Width, Height int
	Buffer        []float32 // len == Width*Height
	Sequence      uint32
	Timestamp     uint32
}

// DepthFrame is the per-pixel range image, in millimetres, the depth
// pipeline derives from a DepthPacket.
type DepthFrame struct {
	Width, Height int
	Buffer        []float32 // len == Width*Height
	Sequence      uint32
	Timestamp     uint32
}

// ColorFrame is a decoded color image, produced by handing a ColorPacket's
// JPEGBytes to a JPEG decoder.
type ColorFrame struct {
	Width, Height int
	// Pix holds interleaved 8-bit RGB triples, row-major, matching
	// image.RGBA's Pix layout without the alpha byte.
	Pix       []byte
	Sequence  uint32
	Timestamp uint32
}
