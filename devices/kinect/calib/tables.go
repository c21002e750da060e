// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package calib

import (
	"math"

	"periph.io/x/kinectv2/devices/kinect/wire"
)

const (
	depthWidth  = wire.DepthWidth
	depthHeight = wire.DepthHeight
	depthPixels = wire.DepthPixels
)

// newtonMaxSteps bounds the undistortion fixed-point iteration.
const newtonMaxSteps = 100

// newtonEpsilon is 16 machine epsilons for float32, the convergence
// threshold on both axes.
const newtonEpsilon = 16 * 1.1920929e-7

// Tables holds the per-pixel calibration state derived once from IrParams
// at the start of a session: the undistorted-ray X projection, the Z
// (range) scale, and the 11-to-16-bit sample lookup table.
type Tables struct {
	X   [depthPixels]float32
	Z   [depthPixels]float32
	LUT [2048]int16
}

// Derive computes X/Z tables and the sample LUT from IR intrinsics. It is
// deterministic: the same IrParams always yields the same tables, and it
// must be called again whenever IrParams changes.
func Derive(p wire.IrParams) Tables {
	var t Tables
	for y := 0; y < depthHeight; y++ {
		for x := 0; x < depthWidth; x++ {
			xd := (float32(x) + 0.5 - p.Cx) / p.Fx
			yd := (float32(y) + 0.5 - p.Cy) / p.Fy
			xu, yu := undistort(p, xd, yd)
			i := y*depthWidth + x
			t.X[i] = 8192 * xu
			t.Z[i] = (6250.0 / 3.0) / float32(math.Sqrt(float64(xu*xu+yu*yu+1)))
		}
	}
	t.LUT = BuildLUT11to16()
	return t
}

// undistort inverts the Brown-Conrady distortion model by fixed-point
// iteration: starting from the distorted coordinate, repeatedly solve for
// the undistorted coordinate that would re-distort to it, until the
// correction falls below newtonEpsilon or newtonMaxSteps is reached.
func undistort(p wire.IrParams, xd, yd float32) (float32, float32) {
	xu, yu := xd, yd
	for i := 0; i < newtonMaxSteps; i++ {
		r2 := xu*xu + yu*yu
		icdist := 1 / (1 + p.K1*r2 + p.K2*r2*r2 + p.K3*r2*r2*r2)
		deltaX := 2*p.P1*xu*yu + p.P2*(r2+2*xu*xu)
		deltaY := p.P1*(r2+2*yu*yu) + 2*p.P2*xu*yu
		nxu := (xd - deltaX) * icdist
		nyu := (yd - deltaY) * icdist
		dx := nxu - xu
		dy := nyu - yu
		xu, yu = nxu, nyu
		if abs32(dx) <= newtonEpsilon && abs32(dy) <= newtonEpsilon {
			break
		}
	}
	return xu, yu
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// BuildLUT11to16 constructs the 2048-entry table mapping an 11-bit packed
// ADC sample to its signed 16-bit decoded value: a piecewise-linear ramp
// over [0,1024) whose step size doubles every 128 entries, mirrored with
// a sign flip into [1024,2048), with entry 1024 saturated to mark an
// out-of-range (overflow) sample.
func BuildLUT11to16() [2048]int16 {
	var lut [2048]int16
	value := int16(0)
	step := int16(1)
	for x := 0; x < 1024; x++ {
		if x != 0 && x%128 == 0 {
			step *= 2
		}
		lut[x] = value
		value += step
	}
	for x := 0; x < 1024; x++ {
		lut[1024+x] = -lut[x]
	}
	lut[1024] = 32767
	return lut
}
