// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"periph.io/x/kinectv2/devices/kinect/wire"
)

func TestDeriveZeroDistortion(t *testing.T) {
	p := wire.IrParams{Fx: 365.0, Fy: 365.0, Cx: 255.5, Cy: 211.5}
	tbl := Derive(p)
	i := 255 + 211*depthWidth
	assert.InDelta(t, 0.0, tbl.X[i], 1e-4)
	assert.InDelta(t, 2083.333, tbl.Z[i], 1e-2)
}

func TestDeriveRoundTrip(t *testing.T) {
	p := wire.IrParams{Fx: 365.4, Fy: 365.4, Cx: 254.8, Cy: 205.4, K1: 0.09, K2: -0.27, K3: 0.09, P1: 0.0002, P2: -0.0003}
	for _, px := range []struct{ x, y int }{{0, 0}, {128, 90}, {400, 320}, {511, 423}} {
		xd := (float32(px.x) + 0.5 - p.Cx) / p.Fx
		yd := (float32(px.y) + 0.5 - p.Cy) / p.Fy
		xu, yu := undistort(p, xd, yd)
		r2 := xu*xu + yu*yu
		radial := 1 + p.K1*r2 + p.K2*r2*r2 + p.K3*r2*r2*r2
		xdRedist := xu*radial + 2*p.P1*xu*yu + p.P2*(r2+2*xu*xu)
		ydRedist := yu*radial + p.P1*(r2+2*yu*yu) + 2*p.P2*xu*yu
		assert.InDelta(t, float64(xd), float64(xdRedist), 1e-4)
		assert.InDelta(t, float64(yd), float64(ydRedist), 1e-4)
	}
}

func TestBuildLUT11to16(t *testing.T) {
	lut := BuildLUT11to16()
	assert.Equal(t, int16(0), lut[0])
	assert.Equal(t, int16(32767), lut[1024])
	for x := 1; x < 1024; x++ {
		assert.Equal(t, -lut[x], lut[1024+x])
	}
	// Monotonic non-decreasing ramp over the positive half.
	for x := 1; x < 1024; x++ {
		assert.True(t, lut[x] >= lut[x-1])
	}
}

func TestAbs32(t *testing.T) {
	assert.Equal(t, float32(3), abs32(-3))
	assert.Equal(t, float32(3), abs32(3))
	assert.False(t, math.Signbit(float64(abs32(-0.5))))
}
