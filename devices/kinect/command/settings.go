// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package command

import "time"

// ColorSettingCommandType selects the sub-operation carried by an
// RGB_SETTING command. Values were found by reverse engineering the
// Microsoft-released MixedRealityCompanionKit NuiSensor library.
type ColorSettingCommandType uint32

// Valid values for ColorSettingCommandType. Only a subset of these have
// known uses; the rest are kept so a caller can issue an undocumented
// sub-command deliberately.
const (
	SetExposureMode     ColorSettingCommandType = 0
	SetIntegrationTime  ColorSettingCommandType = 1
	GetIntegrationTime  ColorSettingCommandType = 2
	SetWhiteBalanceMode ColorSettingCommandType = 10
	SetRedChannelGain   ColorSettingCommandType = 11
	SetGreenChannelGain ColorSettingCommandType = 12
	SetBlueChannelGain  ColorSettingCommandType = 13
	GetRedChannelGain   ColorSettingCommandType = 14
	GetGreenChannelGain ColorSettingCommandType = 15
	GetBlueChannelGain  ColorSettingCommandType = 16
	SetExposureTimeMs   ColorSettingCommandType = 17
	GetExposureTimeMs   ColorSettingCommandType = 18
	SetDigitalGain      ColorSettingCommandType = 19
	GetDigitalGain      ColorSettingCommandType = 20
	SetAnalogGain       ColorSettingCommandType = 21
	GetAnalogGain       ColorSettingCommandType = 22

	SetExposureCompensation ColorSettingCommandType = 23
	GetExposureCompensation ColorSettingCommandType = 24
	SetAcs                  ColorSettingCommandType = 25
	GetAcs                  ColorSettingCommandType = 26

	SetExposureMeteringMode ColorSettingCommandType = 27
	SetExposureMeteringZones ColorSettingCommandType = 28

	SetMaxAnalogGainCap     ColorSettingCommandType = 77
	SetMaxDigitalGainCap    ColorSettingCommandType = 78
	SetFlickerFreeFrequency ColorSettingCommandType = 79
	GetExposureMode         ColorSettingCommandType = 80
	GetWhiteBalanceMode     ColorSettingCommandType = 81
	SetFrameRate            ColorSettingCommandType = 82
	GetFrameRate            ColorSettingCommandType = 83
)

// ExposureMeteringZoneWeight returns the ColorSettingCommandType that sets
// the metering weight for zone n (0..47), covering the 48 contiguous
// per-zone sub-commands the device exposes.
func ExposureMeteringZoneWeight(n int) ColorSettingCommandType {
	return ColorSettingCommandType(29 + n)
}

// LedID selects which of the sensor's two status LEDs a LedSettings
// targets.
type LedID uint16

// Valid values for LedID.
const (
	LedPrimary   LedID = 0
	LedSecondary LedID = 1
)

// LedMode selects whether a LedSettings holds the light at a constant
// level or blinks between two levels.
type LedMode uint16

// Valid values for LedMode.
const (
	LedConstant LedMode = 0
	LedBlink    LedMode = 1
)

// LedSettings describes one LED_SETTING command's payload. Build one with
// ConstantLed or BlinkingLed; Params clamps the level fields to the
// device's valid range when it packs them into the command's parameter
// words.
//
// Debugging the original vendor library's assembly showed this struct's
// original name was _PETRA_LED_STATE.
type LedSettings struct {
	id         LedID
	mode       LedMode
	startLevel uint16
	stopLevel  uint16
	interval   time.Duration
}

// ConstantLed holds the LED at a fixed intensity in [0, 1000].
func ConstantLed(id LedID, level uint16) LedSettings {
	return LedSettings{id: id, mode: LedConstant, startLevel: level}
}

// BlinkingLed blinks the LED between start and stop intensity, both
// clamped to [0, 1000], once per interval.
func BlinkingLed(id LedID, start, stop uint16, interval time.Duration) LedSettings {
	return LedSettings{id: id, mode: LedBlink, startLevel: start, stopLevel: stop, interval: interval}
}

func clampLevel(v uint16) uint16 {
	if v > 1000 {
		return 1000
	}
	return v
}

// Params returns the four parameter words for a LED_SETTING command.
func (l LedSettings) Params() []uint32 {
	return []uint32{
		uint32(l.id) + uint32(l.mode)<<16,
		uint32(clampLevel(l.startLevel)) + uint32(clampLevel(l.stopLevel))<<16,
		uint32(l.interval / time.Millisecond),
		0,
	}
}
