// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package depthproc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"periph.io/x/kinectv2/devices/kinect/calib"
	"periph.io/x/kinectv2/devices/kinect/frame"
	"periph.io/x/kinectv2/devices/kinect/wire"
)

func newTestProcessor() *Processor {
	tables := calib.Derive(wire.IrParams{Fx: 365.0, Fy: 365.0, Cx: 255.5, Cy: 211.5})
	p := NewProcessor(tables)
	p.SetP0Tables(wire.P0Tables{})
	return p
}

func zeroPacket() frame.DepthPacket {
	return frame.DepthPacket{
		Sequence:  1,
		Timestamp: 42,
		Buffer:    make([]byte, frame.DepthSubImageStride*10),
	}
}

func TestProcessAllZeroInput(t *testing.T) {
	p := newTestProcessor()
	ir, depth := p.Process(zeroPacket())

	assert.Equal(t, width, ir.Width)
	assert.Equal(t, height, ir.Height)
	for _, v := range depth.Buffer {
		assert.Equal(t, float32(0), v)
	}
}

func TestProcessSaturatedInputProducesMaxIR(t *testing.T) {
	p := newTestProcessor()
	pkt := zeroPacket()
	// Pack every 11-bit sample as 1024 (only its top bit set) across all ten
	// sub-images, so decodePixelMeasurement's LUT lookup reads the
	// saturation sentinel.
	for sub := 0; sub < 10; sub++ {
		base := frame.DepthSubImageStride * sub
		for k := 0; k < wire.DepthPixels; k++ {
			bit := 11*k + 10
			pkt.Buffer[base+bit/8] |= 1 << (bit % 8)
		}
	}
	ir, _ := p.Process(pkt)
	// Interior pixels (well away from the x<1/x>510/y>423 border guard)
	// decode every measurement to the LUT's saturation value and must
	// report the clamped maximum IR output.
	idx := 0*width + (height-1-200)*width // after the pipeline's vertical flip indexing
	_ = idx
	found := false
	for _, v := range ir.Buffer {
		if v == 65535 {
			found = true
			break
		}
	}
	assert.True(t, found, "expected at least one saturated IR pixel")
}

func TestUnwrapPhaseZeroBelowThreshold(t *testing.T) {
	p := newTestProcessor()
	// Amplitudes below IndividualABThreshold/ABThreshold force phase to 0
	// in stage2 regardless of the measured phases.
	_, depth, irSum := p.stage2(255, 211, [9]float32{0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.Equal(t, float32(0), irSum)
	assert.Equal(t, float32(0), depth)
}

func TestTransformMeasurementZero(t *testing.T) {
	p := newTestProcessor()
	m := [3]float32{0, 0, 0}
	p.transformMeasurement(&m)
	assert.Equal(t, float32(0), m[0])
	assert.Equal(t, float32(0), m[1])
}

func TestTransformMeasurementAppliesABMultiplier(t *testing.T) {
	p := newTestProcessor()
	m := [3]float32{3, 4, 0}
	p.transformMeasurement(&m)
	assert.InDelta(t, float64(5*p.params.ABMultiplier), float64(m[1]), 1e-3)
}

func TestClamp32(t *testing.T) {
	assert.Equal(t, float32(1), clamp32(5, 0, 1))
	assert.Equal(t, float32(0), clamp32(-5, 0, 1))
	assert.Equal(t, float32(0.5), clamp32(0.5, 0, 1))
}

func TestMinMaxOf3(t *testing.T) {
	assert.Equal(t, float32(1), minOf3(3, 1, 2))
	assert.Equal(t, float32(3), maxOf3(3, 1, 2))
}
