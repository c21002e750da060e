// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package depthproc

import (
	"math"

	"periph.io/x/kinectv2/devices/kinect/calib"
	"periph.io/x/kinectv2/devices/kinect/frame"
	"periph.io/x/kinectv2/devices/kinect/wire"
)

const (
	width  = wire.DepthWidth
	height = wire.DepthHeight

	twoPi    = 2 * math.Pi
	invNine  = 1.0 / 9.0
)

// Processor runs the CPU reference depth pipeline. It holds the
// calibration tables and precomputed trig tables; these are immutable for
// the life of a session once loaded, matching the read-only-after-derive
// contract the rest of the driver relies on.
type Processor struct {
	params Params
	config Config
	tables calib.Tables

	flipPTables bool

	// trig[f][0..3] = cos(phaseBias + phaseInRad[k]), trig[f][3..6] = sin(-(phaseBias + phaseInRad[k]))
	trig [3][6][]float32
}

// NewProcessor builds a pipeline with the factory params and the given
// calibration tables. SetP0Tables must be called once before Process.
func NewProcessor(tables calib.Tables) *Processor {
	return &Processor{
		params:      DefaultParams(),
		config:      DefaultConfig(),
		tables:      tables,
		flipPTables: true,
	}
}

// SetConfig applies caller-facing tuning (depth range, filter toggles).
func (p *Processor) SetConfig(c Config) {
	p.config = c
	p.params.Apply(c)
}

// SetP0Tables precomputes the per-pixel trig tables from the factory P0
// phase-bias planes. The planes are horizontally flipped first unless
// disabled, since the factory tables are mirror-imaged relative to the
// sensor's scan direction.
func (p *Processor) SetP0Tables(tables wire.P0Tables) {
	planes := [3]*[wire.DepthPixels]uint16{&tables.Table0, &tables.Table1, &tables.Table2}
	for f, plane := range planes {
		src := plane
		if p.flipPTables {
			flipped := horizontalFlip(*plane)
			src = &flipped
		}
		p.trig[f] = fillTrigTable(p.params.PhaseInRad, src)
	}
}

func horizontalFlip(plane [wire.DepthPixels]uint16) [wire.DepthPixels]uint16 {
	var out [wire.DepthPixels]uint16
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = plane[y*width+(width-1-x)]
		}
	}
	return out
}

func fillTrigTable(phaseInRad [3]float32, p0 *[wire.DepthPixels]uint16) [6][]float32 {
	var t [6][]float32
	for i := range t {
		t[i] = make([]float32, wire.DepthPixels)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := y*width + x
			p0bias := -float64(p0[off]) * 0.000031 * math.Pi
			tmp := [3]float64{
				p0bias + float64(phaseInRad[0]),
				p0bias + float64(phaseInRad[1]),
				p0bias + float64(phaseInRad[2]),
			}
			t[0][off] = float32(math.Cos(tmp[0]))
			t[1][off] = float32(math.Cos(tmp[1]))
			t[2][off] = float32(math.Cos(tmp[2]))
			t[3][off] = float32(math.Sin(-tmp[0]))
			t[4][off] = float32(math.Sin(-tmp[1]))
			t[5][off] = float32(math.Sin(-tmp[2]))
		}
	}
	return t
}

// decodePixelMeasurement unpacks sub-image sub's sample at (x,y) through
// the 11-bit LUT. Out-of-bounds pixels read lut[0].
func (p *Processor) decodePixelMeasurement(data []byte, sub, x, y int) int16 {
	if x < 1 || x > 510 || y > 423 {
		return p.tables.LUT[0]
	}
	r1zi := ((x >> 2) + ((x & 3) << 7)) * 11
	base := frame.DepthSubImageStride * sub
	i := y + 212
	if y >= 212 {
		i = 423 - y
	}
	wordOff := base + 2*352*i
	r1yi := r1zi >> 4
	r1zi &= 15

	w1 := uint16(data[wordOff+2*r1yi]) | uint16(data[wordOff+2*r1yi+1])<<8
	w2 := uint16(data[wordOff+2*(r1yi+1)]) | uint16(data[wordOff+2*(r1yi+1)+1])<<8

	i1 := int(w1) >> r1zi
	i2 := int(w2) << (16 - r1zi)
	return p.tables.LUT[(i1|i2)&2047]
}

// stage1 computes the 9-float IQ vector [I0,Q0,A0, I1,Q1,A1, I2,Q2,A2] for
// one pixel from the raw packed sub-images.
func (p *Processor) stage1(data []byte, x, y int) [9]float32 {
	var out [9]float32
	for f := 0; f < 3; f++ {
		m0 := int32(p.decodePixelMeasurement(data, 3*f+0, x, y))
		m1 := int32(p.decodePixelMeasurement(data, 3*f+1, x, y))
		m2 := int32(p.decodePixelMeasurement(data, 3*f+2, x, y))
		i, q, a := p.measurementTriple(f, x, y, m0, m1, m2)
		out[3*f+0] = i
		out[3*f+1] = q
		out[3*f+2] = a
	}
	return out
}

func (p *Processor) measurementTriple(f, x, y int, m0, m1, m2 int32) (i, q, a float32) {
	idx := y*width + x
	if p.tables.Z[idx] <= 0 {
		return 0, 0, 0
	}
	if m0 == 32767 || m1 == 32767 || m2 == 32767 {
		return 0, 0, 65535
	}
	trig := p.trig[f]
	mult := p.params.ABMultiplierPerFrq[f]
	ia := (trig[0][idx]*float32(m0) + trig[1][idx]*float32(m1) + trig[2][idx]*float32(m2)) * mult
	ib := (trig[3][idx]*float32(m0) + trig[4][idx]*float32(m1) + trig[5][idx]*float32(m2)) * mult
	amp := float32(math.Sqrt(float64(ia*ia+ib*ib))) * p.params.ABMultiplier
	return ia, ib, amp
}

// filterPixelStage1 applies the joint bilateral prefilter at (x,y) given
// the full unfiltered 9-float field m. It reports whether the pixel
// passes the cumulative edge-distance test across all three frequencies.
func (p *Processor) filterPixelStage1(m [][9]float32, x, y int) ([9]float32, bool) {
	center := m[y*width+x]
	if x < 1 || y < 1 || x > 510 || y > 422 {
		return center, true
	}
	var out [9]float32
	edgeOK := true
	threshold := float32(math.Max(float64(p.params.JointBilateralABThreshold*p.params.JointBilateralABThreshold/(p.params.ABMultiplier*p.params.ABMultiplier)), 0))
	offset := 0
	for f := 0; f < 3; f++ {
		norm2 := center[offset]*center[offset] + center[offset+1]*center[offset+1]
		var invNorm float32
		if norm2 > 0 {
			invNorm = 1 / float32(math.Sqrt(float64(norm2)))
		} else {
			invNorm = float32(math.Inf(1))
		}
		normX := center[offset] * invNorm
		normY := center[offset+1] * invNorm

		jbExp := float32(0)
		if norm2 >= threshold {
			jbExp = p.params.JointBilateralExp
		}
		expFactor := -1.442695 * jbExp

		var weightAcc, accX, accY, distAcc float32
		j := 0
		for yi := -1; yi <= 1; yi++ {
			for xi := -1; xi <= 1; xi++ {
				kw := p.params.GaussianKernel[j]
				if yi == 0 && xi == 0 {
					weightAcc += kw
					accX += kw * center[offset]
					accY += kw * center[offset+1]
					j++
					continue
				}
				other := m[(y+yi)*width+(x+xi)]
				oNorm2 := other[offset]*other[offset] + other[offset+1]*other[offset+1]
				var oInv float32
				if oNorm2 > 0 {
					oInv = 1 / float32(math.Sqrt(float64(oNorm2)))
				} else {
					oInv = float32(math.Inf(1))
				}
				dist := (-(other[offset]*oInv*normX + other[offset+1]*oInv*normY) + 1) * 0.5

				var weight float32
				if oNorm2 >= threshold {
					weight = kw * float32(math.Exp(float64(expFactor*dist)))
					distAcc += dist
				}
				accX += weight * other[offset]
				accY += weight * other[offset+1]
				weightAcc += weight
				j++
			}
		}
		edgeOK = edgeOK && distAcc < p.params.JointBilateralMaxEdge

		var recip float32
		if weightAcc > 0 {
			recip = 1 / weightAcc
		}
		out[offset] = accX * recip
		out[offset+1] = accY * recip
		out[offset+2] = center[offset+2]
		offset += 3
	}
	return out, edgeOK
}

// transformMeasurement replaces an (I,Q) pair with (phase, amplitude).
// Amplitude is scaled by ABMultiplier, matching cpu.rs:356.
func (p *Processor) transformMeasurement(m *[3]float32) {
	i, q := m[0], m[1]
	ph := float32(math.Atan2(float64(q), float64(i)))
	if ph < 0 {
		ph += twoPi
	}
	if math.IsNaN(float64(ph)) {
		ph = 0
	}
	amp := float32(math.Sqrt(float64(i*i+q*q))) * p.params.ABMultiplier
	m[0] = ph
	m[1] = amp
}

// stage2 unwraps phase and computes final IR/depth values for one pixel.
// It returns (irOutput, depth, irSum).
func (p *Processor) stage2(x, y int, m [9]float32) (float32, float32, float32) {
	var m0, m1, m2 [3]float32
	copy(m0[:], m[0:3])
	copy(m1[:], m[3:6])
	copy(m2[:], m[6:9])
	p.transformMeasurement(&m0)
	p.transformMeasurement(&m1)
	p.transformMeasurement(&m2)

	irSum := m0[1] + m1[1] + m2[1]
	irMin := minOf3(m0[1], m1[1], m2[1])

	var phase float32
	if irMin < p.params.IndividualABThreshold || irSum < p.params.ABThreshold {
		phase = 0
	} else {
		phase = p.unwrapPhase(m0[0], m1[0], m2[0], m0[1], m1[1], m2[1])
	}

	if phase > 0 {
		phase += p.params.PhaseOffset
	}

	idx := y*width + x
	depthLinear := p.tables.Z[idx] * phase
	maxDepth := phase * p.params.UnambiguousDist * 2

	var depth float32
	if depthLinear > 0 && maxDepth > 0 {
		depth = depthLinear / (-depthLinear*((p.tables.X[idx]*90)/(maxDepth*maxDepth*8192)) + 1)
		if depth < 0 {
			depth = 0
		}
	} else {
		depth = depthLinear
	}

	ir := (m0[2] + m1[2] + m2[2]) * 0.3333333 * p.params.ABOutputMultiplier
	if ir > 65535 {
		ir = 65535
	}
	return ir, depth, irSum
}

func (p *Processor) unwrapPhase(phi0, phi1, phi2, a0, a1, a2 float32) float32 {
	t0 := phi0 / twoPi * 3
	t1 := phi1 / twoPi * 15
	t2 := phi2 / twoPi * 2

	t5 := float32(math.Floor(float64((t1-t0)*0.333333+0.5))*3) + t0
	t3 := -t2 + t5
	t4 := t3 * 2

	sign := float32(-0.5)
	if !math.Signbit(float64(t4)) {
		sign = 0.5
	}
	t3 = t3 * sign
	sign2 := float32(-2.0)
	if !math.Signbit(float64(t4)) {
		sign2 = 2.0
	}
	t3 = (t3 - float32(math.Floor(float64(t3)))) * sign2

	c2 := 0.5 < abs32(t3) && abs32(t3) < 1.5

	t6 := t5
	t7 := t1
	if c2 {
		t6 = t5 + 15
		t7 = t1 + 15
	}

	t8 := (float32(math.Floor(float64((-t2+t6)*0.5+0.5)))*2 + t2) * 0.5

	t6 = t6 * 0.333333
	t7 = t7 * 0.066667

	t9 := t8 + t6 + t7

	t6 *= twoPi
	t7 *= twoPi
	t8 *= twoPi

	t8New := t7*0.826977 - t8*0.110264
	t6New := t8*0.551318 - t6*0.826977
	t7New := t6*0.110264 - t7*0.551318

	norm := t8New*t8New + t6New*t6New + t7New*t7New

	var extreme float32
	if p.params.ABConfidenceSlope > 0 {
		extreme = minOf3(a0, a1, a2)
	} else {
		extreme = maxOf3(a0, a1, a2)
	}
	irX := float32(math.Exp(float64((math.Log(float64(extreme))*float64(p.params.ABConfidenceSlope)*0.301030 + float64(p.params.ABConfidenceOffset)) * 3.321928)))
	irX = clamp32(irX, p.params.MinDealiasConfidence, p.params.MaxDealiasConfidence)
	irX = irX * irX

	if t9 >= 0 && irX >= norm {
		return t9 * 0.333333
	}
	return 0
}

// filterPixelStage2 applies the edge-aware postfilter. raw is the stage2
// depth at every pixel, edgeOK is the stage1 cumulative edge test, irSum
// the stage2 IR sum; it returns the filtered depth for (x,y).
func (p *Processor) filterPixelStage2(raw, rawEdgeGated, irSum []float32, edgeOK []bool, x, y int) float32 {
	idx := y*width + x
	rawDepth := raw[idx]
	sum := irSum[idx]

	if rawDepth < p.params.MinDepth || rawDepth > p.params.MaxDepth {
		return 0
	}
	if x < 1 || y < 1 || x > 510 || y > 422 {
		return rawDepth
	}

	irSumAcc := sum
	sqIrSumAcc := sum * sum
	minDepth := rawDepth
	maxDepth := rawDepth

	for yi := -1; yi <= 1; yi++ {
		for xi := -1; xi <= 1; xi++ {
			if yi == 0 && xi == 0 {
				continue
			}
			oi := (y+yi)*width + (x + xi)
			irSumAcc += irSum[oi]
			sqIrSumAcc += irSum[oi] * irSum[oi]
			if rawEdgeGated[oi] > 0 {
				if rawEdgeGated[oi] < minDepth {
					minDepth = rawEdgeGated[oi]
				}
				if rawEdgeGated[oi] > maxDepth {
					maxDepth = rawEdgeGated[oi]
				}
			}
		}
	}

	tmp0 := float32(math.Sqrt(float64(sqIrSumAcc*9-irSumAcc*irSumAcc))) * invNine
	denom := irSumAcc * invNine
	if denom < p.params.EdgeABAvgMinValue {
		denom = p.params.EdgeABAvgMinValue
	}
	tmp0 /= denom

	absMinDiff := abs32(rawDepth - minDepth)
	absMaxDiff := abs32(rawDepth - maxDepth)
	avgDiff := (absMinDiff + absMaxDiff) * 0.5
	maxAbsDiff := absMinDiff
	if absMaxDiff > maxAbsDiff {
		maxAbsDiff = absMaxDiff
	}

	cond0 := rawDepth > 0 &&
		tmp0 >= p.params.EdgeABStdDevThreshold &&
		p.params.EdgeCloseDeltaThreshold < absMinDiff &&
		p.params.EdgeFarDeltaThreshold < absMaxDiff &&
		p.params.EdgeMaxDeltaThreshold < maxAbsDiff &&
		p.params.EdgeAvgDeltaThreshold < avgDiff

	if cond0 || (edgeOK[idx] && p.params.MaxEdgeCount < 0) {
		return 0
	}
	return rawDepth
}

// Process runs the full pipeline over one reassembled depth packet.
func (p *Processor) Process(pkt frame.DepthPacket) (frame.IrFrame, frame.DepthFrame) {
	m := make([][9]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m[y*width+x] = p.stage1(pkt.Buffer, x, y)
		}
	}

	edgeOK := make([]bool, width*height)
	if p.config.EnableBilateralFilter {
		filtered := make([][9]float32, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out, ok := p.filterPixelStage1(m, x, y)
				filtered[y*width+x] = out
				edgeOK[y*width+x] = ok
			}
		}
		m = filtered
	} else {
		for i := range edgeOK {
			edgeOK[i] = true
		}
	}

	outIR := make([]float32, width*height)
	outDepth := make([]float32, width*height)

	if p.config.EnableEdgeAwareFilter {
		raw := make([]float32, width*height)
		rawGated := make([]float32, width*height)
		irSum := make([]float32, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				ir, d, sum := p.stage2(x, y, m[y*width+x])
				outIR[x+(height-1-y)*width] = ir
				raw[y*width+x] = d
				if edgeOK[y*width+x] {
					rawGated[y*width+x] = d
				}
				irSum[y*width+x] = sum
			}
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				outDepth[x+(height-1-y)*width] = p.filterPixelStage2(raw, rawGated, irSum, edgeOK, x, y)
			}
		}
	} else {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				ir, d, _ := p.stage2(x, y, m[y*width+x])
				outIR[x+(height-1-y)*width] = ir
				outDepth[x+(height-1-y)*width] = d
			}
		}
	}

	return frame.IrFrame{
			Width: width, Height: height, Buffer: outIR,
			Sequence: pkt.Sequence, Timestamp: pkt.Timestamp,
		}, frame.DepthFrame{
			Width: width, Height: height, Buffer: outDepth,
			Sequence: pkt.Sequence, Timestamp: pkt.Timestamp,
		}
}

func minOf3(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func maxOf3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
