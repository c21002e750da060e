// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package depthproc

// Params holds the tuning constants for the depth pipeline. DefaultParams
// carries the factory values; callers override min/max depth and the
// filter toggles through Config, not by mutating Params fields directly.
type Params struct {
	ABMultiplier        float32
	ABMultiplierPerFrq  [3]float32
	ABOutputMultiplier  float32

	PhaseInRad [3]float32

	JointBilateralABThreshold float32
	JointBilateralMaxEdge     float32
	JointBilateralExp         float32
	GaussianKernel            [9]float32

	PhaseOffset           float32
	UnambiguousDist       float32
	IndividualABThreshold float32
	ABThreshold           float32
	ABConfidenceSlope     float32
	ABConfidenceOffset    float32
	MinDealiasConfidence  float32
	MaxDealiasConfidence  float32

	EdgeABAvgMinValue       float32
	EdgeABStdDevThreshold   float32
	EdgeCloseDeltaThreshold float32
	EdgeFarDeltaThreshold   float32
	EdgeMaxDeltaThreshold   float32
	EdgeAvgDeltaThreshold   float32
	MaxEdgeCount            float32

	MinDepth float32
	MaxDepth float32
}

// DefaultParams returns the factory tuning constants.
func DefaultParams() Params {
	return Params{
		ABMultiplier:       0.6666667,
		ABMultiplierPerFrq: [3]float32{1.322581, 1.0, 1.612903},
		ABOutputMultiplier: 16.0,

		PhaseInRad: [3]float32{0.0, 2.094395, 4.18879},

		JointBilateralABThreshold: 3.0,
		JointBilateralMaxEdge:     2.5,
		JointBilateralExp:         5.0,
		GaussianKernel: [9]float32{
			0.1069973, 0.1131098, 0.1069973,
			0.1131098, 0.1195716, 0.1131098,
			0.1069973, 0.1131098, 0.1069973,
		},

		PhaseOffset:           0.0,
		UnambiguousDist:       2083.333,
		IndividualABThreshold: 3.0,
		ABThreshold:           10.0,
		ABConfidenceSlope:     -0.5330578,
		ABConfidenceOffset:    0.7694894,
		MinDealiasConfidence:  0.3490659,
		MaxDealiasConfidence:  0.6108653,

		EdgeABAvgMinValue:       50.0,
		EdgeABStdDevThreshold:   0.05,
		EdgeCloseDeltaThreshold: 50.0,
		EdgeFarDeltaThreshold:   30.0,
		EdgeMaxDeltaThreshold:   100.0,
		EdgeAvgDeltaThreshold:   0.0,
		MaxEdgeCount:            5.0,

		MinDepth: 500.0,
		MaxDepth: 4500.0,
	}
}

// Config are the caller-facing knobs; MinDepth/MaxDepth are in metres and
// scaled ×1000 onto Params to match the device-native millimetre scale.
type Config struct {
	MinDepth               float64
	MaxDepth               float64
	EnableBilateralFilter  bool
	EnableEdgeAwareFilter  bool
}

// DefaultConfig mirrors the factory Params' min/max depth, with both
// filters enabled.
func DefaultConfig() Config {
	return Config{
		MinDepth:              0.5,
		MaxDepth:              4.5,
		EnableBilateralFilter: true,
		EnableEdgeAwareFilter: true,
	}
}

// Apply folds a Config into Params, scaling metres to the millimetre
// scale the pipeline works in internally.
func (p *Params) Apply(c Config) {
	p.MinDepth = float32(c.MinDepth * 1000)
	p.MaxDepth = float32(c.MaxDepth * 1000)
}
