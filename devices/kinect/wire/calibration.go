// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DepthWidth and DepthHeight are the fixed dimensions of every IR/depth
// image the sensor produces.
const (
	DepthWidth  = 512
	DepthHeight = 424
	DepthPixels = DepthWidth * DepthHeight
)

// ColorParams is the RGB camera's intrinsics and its mapping onto the
// depth camera's pixel grid, as read from READ_DATA_PAGE subpage 4.
type ColorParams struct {
	F, Cx, Cy      float32
	ShiftD, ShiftM float32

	// MX/MY are the coefficients of two bivariate cubic polynomials mapping
	// a depth-camera ray to a column/row on the color sensor. Order matches
	// the wire layout: x3y0, x0y3, x2y1, x1y2, x2y0, x0y2, x1y1, x1y0, x0y1, x0y0.
	MX [10]float32
	MY [10]float32
}

// rgbParamsTableID is the single observed value of the leading byte of the
// RGB params blob. It is not otherwise interpreted.
const rgbParamsTableID = 1

// rgbParamsSize is sizeof(RgbParamsResponse): 1 + 3*4 + 2*4 + 20*4 bytes of
// named fields, plus the two opaque tables (28*23*4 and 28*23 floats).
const rgbParamsSize = 1 + 3*4 + 2*4 + 20*4 + 28*23*4*4 + 28*23*4

// DecodeColorParams parses the RGB parameters blob returned by
// READ_DATA_PAGE(subpage=4). The two trailing opaque tables are present in
// the wire format (and validated for length) but not otherwise consumed;
// nothing downstream of calibration needs them.
func DecodeColorParams(b []byte) (ColorParams, error) {
	if len(b) < rgbParamsSize {
		return ColorParams{}, fmt.Errorf("wire: rgb params blob too short: got %d want %d", len(b), rgbParamsSize)
	}
	p := b[1:]
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(p[4*i : 4*i+4])) }
	var cp ColorParams
	cp.F = f(0)
	cp.Cx = f(1)
	cp.Cy = f(2)
	cp.ShiftD = f(3)
	cp.ShiftM = f(4)
	for i := 0; i < 10; i++ {
		cp.MX[i] = f(5 + i)
	}
	for i := 0; i < 10; i++ {
		cp.MY[i] = f(15 + i)
	}
	return cp, nil
}

// IrParams is the IR camera's intrinsic and Brown-Conrady distortion
// coefficients, as read from READ_DATA_PAGE subpage 3.
type IrParams struct {
	Fx, Fy, Cx, Cy float32
	K1, K2, K3     float32
	P1, P2         float32
}

// depthParamsSize is sizeof(DepthParamsResponse): fx,fy,unknown0,cx,cy,k1,k2,p1,p2,k3
// (10 floats) plus 13 trailing unknown floats.
const depthParamsSize = (10 + 13) * 4

// DecodeIrParams parses the depth parameters blob returned by
// READ_DATA_PAGE(subpage=3). Field order on the wire is fx, fy, (unused),
// cx, cy, k1, k2, p1, p2, k3 — note k3 trails p1/p2 on the wire though it
// is the third radial coefficient.
func DecodeIrParams(b []byte) (IrParams, error) {
	if len(b) < depthParamsSize {
		return IrParams{}, fmt.Errorf("wire: depth params blob too short: got %d want %d", len(b), depthParamsSize)
	}
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[4*i : 4*i+4])) }
	return IrParams{
		Fx: f(0),
		Fy: f(1),
		Cx: f(3),
		Cy: f(4),
		K1: f(5),
		K2: f(6),
		P1: f(7),
		P2: f(8),
		K3: f(9),
	}, nil
}

// P0Tables holds the three factory per-pixel phase-bias planes, one per
// modulation frequency, each DepthWidth*DepthHeight entries.
type P0Tables struct {
	Table0, Table1, Table2 [DepthPixels]uint16
}

// p0RowEndMarker is the constant value observed at the start and end of
// each P0 plane's row; distinct per plane, used to validate which plane
// was parsed rather than merely documented as a fact.
var p0RowEndMarker = [3]uint16{0x2c9a, 0x08ec, 0x42e8}

// p0TablesSize is sizeof(P0TablesResponse): 8 header words, then three
// planes each wrapped in a leading+trailing u16, each plane DepthPixels
// u16 entries.
const p0TablesSize = 8*4 + 3*(2+DepthPixels)*2

// DecodeP0Tables parses the P0 tables blob returned by
// READ_DATA_PAGE(subpage=2).
func DecodeP0Tables(b []byte) (P0Tables, error) {
	if len(b) < p0TablesSize {
		return P0Tables{}, fmt.Errorf("wire: p0 tables blob too short: got %d want %d", len(b), p0TablesSize)
	}
	off := 8 * 4
	var out P0Tables
	planes := [3]*[DepthPixels]uint16{&out.Table0, &out.Table1, &out.Table2}
	for i, plane := range planes {
		off += 2 // leading unknown u16
		if got := binary.LittleEndian.Uint16(b[off : off+2]); got != p0RowEndMarker[i] {
			return P0Tables{}, fmt.Errorf("wire: p0 table %d row-end marker mismatch: got 0x%04x want 0x%04x", i, got, p0RowEndMarker[i])
		}
		for x := 0; x < DepthPixels; x++ {
			plane[x] = binary.LittleEndian.Uint16(b[off+2*x : off+2*x+2])
		}
		off += DepthPixels * 2
		if got := binary.LittleEndian.Uint16(b[off : off+2]); got != p0RowEndMarker[i] {
			return P0Tables{}, fmt.Errorf("wire: p0 table %d trailing marker mismatch: got 0x%04x want 0x%04x", i, got, p0RowEndMarker[i])
		}
		off += 2 // trailing unknown u16
	}
	return out, nil
}

// FirmwareVersion is one entry of the firmware versions table; the device
// reports several, one per onboard component.
type FirmwareVersion struct {
	Major, Minor      uint16
	Revision, Build   uint32
}

// firmwareVersionSize is sizeof(FirmwareVersionResponse).
const firmwareVersionSize = 2 + 2 + 4 + 4 + 4

// DecodeFirmwareVersion parses one firmware version entry. Note the wire
// order is minor, then major — an easy detail to get backwards.
func DecodeFirmwareVersion(b []byte) (FirmwareVersion, error) {
	if len(b) < firmwareVersionSize {
		return FirmwareVersion{}, fmt.Errorf("wire: firmware version entry too short: got %d want %d", len(b), firmwareVersionSize)
	}
	return FirmwareVersion{
		Minor:    binary.LittleEndian.Uint16(b[0:2]),
		Major:    binary.LittleEndian.Uint16(b[2:4]),
		Revision: binary.LittleEndian.Uint32(b[4:8]),
		Build:    binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Revision, v.Build)
}

// ColorSettingResponseDataOffset is the byte offset of the single data
// word inside a ColorSettingResponse, confirmed from the original source:
// two status words, a per-command status word, then the data word.
const ColorSettingResponseDataOffset = 12

// DecodeColorSettingResponse extracts the data word from an RGB_SETTING
// response payload.
func DecodeColorSettingResponse(b []byte) (uint32, error) {
	if len(b) < ColorSettingResponseDataOffset+4 {
		return 0, fmt.Errorf("wire: color setting response too short: got %d", len(b))
	}
	return binary.LittleEndian.Uint32(b[ColorSettingResponseDataOffset : ColorSettingResponseDataOffset+4]), nil
}
