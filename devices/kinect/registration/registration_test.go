// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/kinectv2/devices/kinect/frame"
	"periph.io/x/kinectv2/devices/kinect/wire"
)

func testParams() (wire.IrParams, wire.ColorParams) {
	ir := wire.IrParams{Fx: 365.0, Fy: 365.0, Cx: 255.5, Cy: 211.5}
	color := wire.ColorParams{F: 1081.37, Cx: 959.5, Cy: 539.5, ShiftD: 863.0, ShiftM: 52.0}
	color.MX[9] = 1.0 // x0y0 constant term only, a flat identity-ish mapping
	return ir, color
}

func TestDistortZeroAtPrincipalPoint(t *testing.T) {
	ir, color := testParams()
	r := New(ir, color)
	mx, my := r.Distort(int(ir.Cx), int(ir.Cy))
	// With zero distortion coefficients Distort is the identity on the
	// integer pixel it is given.
	assert.InDelta(t, float32(int(ir.Cx)), mx, 1e-3)
	assert.InDelta(t, float32(int(ir.Cy)), my, 1e-3)
}

func TestUndistortDepthIsIdentityWithZeroDistortion(t *testing.T) {
	ir, color := testParams()
	r := New(ir, color)

	buf := make([]float32, depthSize)
	for i := range buf {
		buf[i] = float32(i % 4000)
	}
	in := frame.DepthFrame{Width: depthWidth, Height: depthHeight, Buffer: buf}
	out := r.UndistortDepth(in)

	idx := 255 + 211*depthWidth
	assert.InDelta(t, buf[idx], out.Buffer[idx], 1.0)
}

func TestUndistortDepthAndColorSkipsInvalidDepth(t *testing.T) {
	ir, color := testParams()
	r := New(ir, color)

	depthBuf := make([]float32, depthSize) // all zero: every depth sample invalid
	colorPix := make([]byte, colorSize*bytesPerPixel)
	for i := range colorPix {
		colorPix[i] = 0xFF
	}

	colorFrame := frame.ColorFrame{Width: colorWidth, Height: colorHeight, Pix: colorPix}
	depthFrame := frame.DepthFrame{Width: depthWidth, Height: depthHeight, Buffer: depthBuf}

	registered, undistorted := r.UndistortDepthAndColor(colorFrame, depthFrame, true)
	require.Len(t, undistorted.Buffer, depthSize)
	for _, v := range registered.Pix {
		assert.Equal(t, byte(0), v, "no depth pixel is valid, so no color pixel should be copied")
	}
}
