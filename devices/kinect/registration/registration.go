// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package registration

import (
	"math"

	"periph.io/x/kinectv2/devices/kinect/frame"
	"periph.io/x/kinectv2/devices/kinect/wire"
)

const (
	depthWidth  = wire.DepthWidth
	depthHeight = wire.DepthHeight
	depthSize   = depthWidth * depthHeight

	colorWidth  = 1920
	colorHeight = 1080
	colorSize   = colorWidth * colorHeight

	bytesPerPixel = 3 // interleaved 8-bit RGB, matching frame.ColorFrame.Pix

	filterWidthHalf  = 2
	filterHeightHalf = 1
	filterTolerance  = 0.01

	// Hardcoded by the factory SDK; not derivable from any other
	// calibration field.
	depthQ = 0.01
	colorQ = 0.002199
)

// Registration maps depth pixels onto the color camera's grid, using
// precomputed per-depth-pixel tables so the per-frame work is a handful of
// table lookups and one scalar division.
type Registration struct {
	ir    wire.IrParams
	color wire.ColorParams

	distortMap       []int
	depthToColorMapX []float32
	depthToColorMapY []float32
	depthToColorMapYi []uint32
}

// New builds a Registration from the sensor's factory IR and color
// parameters, precomputing the depth-to-color lookup tables.
func New(ir wire.IrParams, color wire.ColorParams) *Registration {
	r := &Registration{
		ir:                ir,
		color:             color,
		distortMap:        make([]int, depthSize),
		depthToColorMapX:  make([]float32, depthSize),
		depthToColorMapY:  make([]float32, depthSize),
		depthToColorMapYi: make([]uint32, depthSize),
	}
	r.fillDepthToColorMap()
	return r
}

func (r *Registration) fillDepthToColorMap() {
	for y := 0; y < depthHeight; y++ {
		for x := 0; x < depthWidth; x++ {
			offset := x + y*depthWidth

			mx, my := r.Distort(x, y)
			ix := uint32(mx + 0.5)
			iy := uint32(my + 0.5)
			r.distortMap[offset] = int(iy)*depthWidth + int(ix)

			rx, ry := r.DepthToColor(float32(x), float32(y))
			r.depthToColorMapX[offset] = rx
			r.depthToColorMapY[offset] = ry
			r.depthToColorMapYi[offset] = uint32(ry + 0.5)
		}
	}
}

// Distort maps an undistorted depth-camera pixel (mx,my) onto the
// distorted coordinate the IR sensor actually measured, using the
// Brown-Conrady forward model. See http://en.wikipedia.org/wiki/Distortion_(optics).
func (r *Registration) Distort(mx, my int) (float32, float32) {
	p := r.ir
	dx := (float32(mx) - p.Cx) / p.Fx
	dy := (float32(my) - p.Cy) / p.Fy
	dx2 := dx * dx
	dy2 := dy * dy
	r2 := dx2 + dy2
	dxdy2 := 2 * dx * dy
	kr := 1 + ((p.K3*r2+p.K2)*r2+p.K1)*r2

	ox := p.Fx*(dx*kr+p.P2*(r2+2*dx2)+p.P1*dxdy2) + p.Cx
	oy := p.Fy*(dy*kr+p.P1*(r2+2*dy2)+p.P2*dxdy2) + p.Cy
	return ox, oy
}

// DepthToColor maps an IR-camera pixel coordinate onto the corresponding
// column/row on the color sensor using the factory-fit bivariate cubic
// polynomials.
func (r *Registration) DepthToColor(mx, my float32) (float32, float32) {
	p := r.color
	mx = (mx - r.ir.Cx) * depthQ
	my = (my - r.ir.Cy) * depthQ

	wx := mx*mx*mx*p.MX[0] + my*my*my*p.MX[1] + mx*mx*my*p.MX[2] + my*my*mx*p.MX[3] +
		mx*mx*p.MX[4] + my*my*p.MX[5] + mx*my*p.MX[6] + mx*p.MX[7] + my*p.MX[8] + p.MX[9]
	wy := mx*mx*mx*p.MY[0] + my*my*my*p.MY[1] + mx*mx*my*p.MY[2] + my*my*mx*p.MY[3] +
		mx*mx*p.MY[4] + my*my*p.MY[5] + mx*my*p.MY[6] + mx*p.MY[7] + my*p.MY[8] + p.MY[9]

	rx := wx/(p.F*colorQ) - p.ShiftM/p.ShiftD
	ry := wy/colorQ + p.Cy
	return rx, ry
}

// UndistortDepth corrects depth_frame for the IR camera's own lens
// distortion, without touching color.
func (r *Registration) UndistortDepth(depth frame.DepthFrame) frame.DepthFrame {
	out := frame.DepthFrame{
		Width: depthWidth, Height: depthHeight,
		Buffer:    make([]float32, depthSize),
		Sequence:  depth.Sequence,
		Timestamp: depth.Timestamp,
	}
	for i := 0; i < depthSize; i++ {
		out.Buffer[i] = depth.Buffer[r.distortMap[i]]
	}
	return out
}

// UndistortDepthAndColor jointly corrects depth for IR lens distortion and
// reprojects color onto the depth camera's grid, producing a depth-sized
// color image. When enableFilter is set, color pixels whose nearest depth
// sample disagrees with the sampled window's minimum depth by more than
// filterTolerance are blanked, suppressing the duplicate-pixel artifact
// that comes from the two cameras viewing the scene from different
// vantage points.
func (r *Registration) UndistortDepthAndColor(color frame.ColorFrame, depth frame.DepthFrame, enableFilter bool) (frame.ColorFrame, frame.DepthFrame) {
	registered := frame.ColorFrame{
		Width: depthWidth, Height: depthHeight,
		Pix:       make([]byte, depthSize*bytesPerPixel),
		Sequence:  color.Sequence,
		Timestamp: color.Timestamp,
	}
	undistorted := frame.DepthFrame{
		Width: depthWidth, Height: depthHeight,
		Buffer:    make([]float32, depthSize),
		Sequence:  depth.Sequence,
		Timestamp: depth.Timestamp,
	}

	colorCx := r.color.Cx + 0.5 // 0.5 added here for later rounding

	sizeFilterMap := colorSize + colorWidth*filterHeightHalf*2
	offsetFilterMap := colorWidth * filterHeightHalf

	filterMap := make([]float32, sizeFilterMap)
	if enableFilter {
		for i := range filterMap {
			filterMap[i] = float32(math.Inf(1))
		}
	}

	depthToCOff := make([]int, depthSize)
	for i := range depthToCOff {
		depthToCOff[i] = -1
	}

	for i := 0; i < depthSize; i++ {
		index := r.distortMap[i]
		z := depth.Buffer[index]
		undistorted.Buffer[i] = z

		if z <= 0 {
			continue
		}

		rx := (r.depthToColorMapX[i]+r.color.ShiftM/z)*r.color.F + colorCx
		cx := rx
		cy := r.depthToColorMapYi[i]
		cOff := int(cx) + int(cy)*colorWidth

		if cOff < 0 || cOff >= colorSize {
			continue
		}
		depthToCOff[i] = cOff

		if !enableFilter {
			continue
		}

		yi := (int(cy)-filterHeightHalf)*colorWidth + int(cx) - filterWidthHalf
		for row := -filterHeightHalf; row <= filterHeightHalf; row++ {
			it := offsetFilterMap + yi
			for col := -filterWidthHalf; col <= filterWidthHalf; col++ {
				if z < filterMap[it] {
					filterMap[it] = z
				}
				it++
			}
			yi += colorWidth
		}
	}

	for i := 0; i < depthSize; i++ {
		cOff := depthToCOff[i]
		dst := registered.Pix[i*bytesPerPixel : i*bytesPerPixel+bytesPerPixel]
		if cOff < 0 {
			continue
		}
		if enableFilter {
			minZ := filterMap[offsetFilterMap+cOff]
			z := undistorted.Buffer[i]
			if (z-minZ)/z > filterTolerance {
				continue
			}
		}
		copy(dst, color.Pix[cOff*bytesPerPixel:cOff*bytesPerPixel+bytesPerPixel])
	}

	return registered, undistorted
}
