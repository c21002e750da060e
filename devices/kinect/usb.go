// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package kinect

import (
	"encoding/binary"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"

	"periph.io/x/kinectv2/devices/kinect/command"
)

// USB identity and endpoint addresses, fixed by the device.
const (
	VendorID       = 0x045e
	ProductIDV1    = 0x02c4
	ProductIDV2    = 0x02d8
	configuration  = 1
	interfaceColor = 0
	interfaceIR    = 1

	controlInEndpoint = 0x81
	controlOutEndpoint = 0x02
	colorInEndpoint    = 0x83
	irInEndpoint       = 0x84

	minIsoMaxPacketSize = 0x8400

	dtSsEndpointCompanion = 0x30
	requestSetIsochDelay  = 0x31
	requestSetSel         = 0x30
	requestSetFeature     = 0x03

	featureU1Enable         = 48
	featureU2Enable         = 49
	featureFunctionSuspend  = 0
)

// usbController is everything Opened needs from a live device session: the
// command.Transport endpoints, the power-state/alt-setting control
// requests issued around Start/Stop, the stream endpoint readers, and
// teardown. usbLink is the real implementation; tests substitute a fake so
// the lifecycle state machine in kinect.go can be exercised without a
// physical sensor.
type usbController interface {
	command.Transport
	setIRAltSetting(enabled bool) error
	setFunctionSuspend(enabled bool) error
	readColor(buf []byte) (int, error)
	readIR(buf []byte) (int, error)
	Close() error
}

// usbLink owns the claimed interfaces and endpoints for one device session.
// It implements command.Transport directly, and exposes the color and IR
// bulk/isochronous endpoints for the stream readers.
type usbLink struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	ifColor *gousb.Interface
	ifIR    *gousb.Interface

	controlOut *gousb.OutEndpoint
	controlIn  *gousb.InEndpoint
	colorIn    *gousb.InEndpoint
	irIn       *gousb.InEndpoint
}

// openUSB discovers the sensor on the bus, selects its configuration,
// claims both interfaces, and performs the fixed sequence of standard
// control requests the protocol requires at open time. It returns the
// live link and the device's descriptor-reported serial number.
func openUSB() (*usbLink, string, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(VendorID), gousb.ID(ProductIDV2))
	if err == nil && dev == nil {
		dev, err = ctx.OpenDeviceWithVIDPID(gousb.ID(VendorID), gousb.ID(ProductIDV1))
	}
	if err != nil {
		ctx.Close()
		return nil, "", errors.Wrap(err, "kinect: opening USB device")
	}
	if dev == nil {
		ctx.Close()
		return nil, "", errors.New("kinect: no Kinect v2 sensor found on the USB bus")
	}

	dev.SetAutoDetach(true)

	serial, _ := dev.SerialNumber()

	cfg, err := dev.Config(configuration)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, "", errors.Wrap(err, "kinect: selecting configuration 1")
	}

	ifColor, err := cfg.Interface(interfaceColor, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, "", errors.Wrap(err, "kinect: claiming control+color interface")
	}
	ifIR, err := cfg.Interface(interfaceIR, 0)
	if err != nil {
		ifColor.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, "", errors.Wrap(err, "kinect: claiming IR interface")
	}

	controlOut, err := ifColor.OutEndpoint(controlOutEndpoint)
	if err != nil {
		return nil, "", errors.Wrap(err, "kinect: opening control-out endpoint")
	}
	controlIn, err := ifColor.InEndpoint(controlInEndpoint)
	if err != nil {
		return nil, "", errors.Wrap(err, "kinect: opening control-in endpoint")
	}
	colorIn, err := ifColor.InEndpoint(colorInEndpoint)
	if err != nil {
		return nil, "", errors.Wrap(err, "kinect: opening color bulk-in endpoint")
	}

	l := &usbLink{
		ctx: ctx, dev: dev, cfg: cfg, ifColor: ifColor, ifIR: ifIR,
		controlOut: controlOut, controlIn: controlIn, colorIn: colorIn,
	}

	if err := l.setIsochDelay(40); err != nil {
		l.Close()
		return nil, "", err
	}
	if err := l.setSel([]byte{0x55, 0, 0x55, 0, 0, 0}); err != nil {
		l.Close()
		return nil, "", err
	}
	if err := l.setIRAltSetting(false); err != nil {
		l.Close()
		return nil, "", err
	}
	if err := l.setFeature(featureU1Enable); err != nil {
		l.Close()
		return nil, "", err
	}
	if err := l.setFeature(featureU2Enable); err != nil {
		l.Close()
		return nil, "", err
	}
	if err := l.setFunctionSuspend(false); err != nil {
		l.Close()
		return nil, "", err
	}

	maxPacket, ok := l.maxIsoPacketSize()
	if ok && maxPacket < minIsoMaxPacketSize {
		l.Close()
		return nil, "", errors.Errorf("kinect: IR endpoint SuperSpeed max packet size 0x%x below minimum 0x%x", maxPacket, minIsoMaxPacketSize)
	}

	return l, serial, nil
}

// Close releases every claimed interface and the underlying device and
// context handles, in reverse acquisition order.
func (l *usbLink) Close() error {
	if l.ifIR != nil {
		l.ifIR.Close()
	}
	if l.ifColor != nil {
		l.ifColor.Close()
	}
	if l.cfg != nil {
		l.cfg.Close()
	}
	var err error
	if l.dev != nil {
		err = l.dev.Close()
	}
	if l.ctx != nil {
		l.ctx.Close()
	}
	return err
}

// setIRAltSetting switches the IR interface's alternate setting: alt 0
// streams isochronous IR data, alt 1 disables it — the alt setting index
// is the boolean inverse of enabled.
func (l *usbLink) setIRAltSetting(enabled bool) error {
	alt := 1
	if enabled {
		alt = 0
	}
	intf, err := l.cfg.Interface(interfaceIR, alt)
	if err != nil {
		return errors.Wrap(err, "kinect: setting IR alt setting")
	}
	if enabled {
		irIn, err := intf.InEndpoint(irInEndpoint)
		if err != nil {
			return errors.Wrap(err, "kinect: opening IR isochronous-in endpoint")
		}
		l.irIn = irIn
	} else {
		l.irIn = nil
	}
	l.ifIR = intf
	return nil
}

func (l *usbLink) setIsochDelay(delay uint16) error {
	_, err := l.dev.Control(0x00, requestSetIsochDelay, delay, 0, nil)
	return errors.Wrap(err, "kinect: SET_ISOCH_DELAY")
}

func (l *usbLink) setSel(data []byte) error {
	_, err := l.dev.Control(0x00, requestSetSel, 0, 0, data)
	return errors.Wrap(err, "kinect: SET_SEL")
}

func (l *usbLink) setFeature(feature uint16) error {
	recipient := uint8(0x00) // device
	_, err := l.dev.Control(recipient, requestSetFeature, feature, 0, nil)
	return errors.Wrap(err, "kinect: SET_FEATURE")
}

func (l *usbLink) setFunctionSuspend(enabled bool) error {
	lowPowerSuspend := !enabled
	functionRemoteWake := !enabled
	var options uint16
	if lowPowerSuspend {
		options |= 1
	}
	if functionRemoteWake {
		options |= 2
	}
	recipient := uint8(0x01) // interface
	index := options<<8 | uint16(interfaceIR)
	_, err := l.dev.Control(recipient, requestSetFeature, featureFunctionSuspend, index, nil)
	return errors.Wrap(err, "kinect: SET_FEATURE(function suspend)")
}

// maxIsoPacketSize walks the raw configuration descriptor looking for the
// IR isochronous endpoint's SuperSpeed Endpoint Companion descriptor and
// returns its max_burst-scaled max packet size (bytes 4-5 of the
// companion, as wMaxPacketSize * (max_burst+1)).
func (l *usbLink) maxIsoPacketSize() (uint16, bool) {
	raw, err := l.rawConfigDescriptor()
	if err != nil {
		return 0, false
	}
	const dtEndpoint = 0x05
	inIREndpoint := false
	for i := 0; i+1 < len(raw); {
		length := int(raw[i])
		if length == 0 || i+length > len(raw) {
			break
		}
		descType := raw[i+1]
		if descType == dtEndpoint && length >= 3 {
			inIREndpoint = raw[i+2] == irInEndpoint
		}
		if descType == dtSsEndpointCompanion && inIREndpoint && i+6 <= len(raw) {
			return binary.LittleEndian.Uint16(raw[i+4 : i+6]), true
		}
		i += length
	}
	return 0, false
}

// rawConfigDescriptor issues a standard GET_DESCRIPTOR(CONFIGURATION)
// control request, first reading the 9-byte header to learn the total
// length, then reading the full descriptor.
func (l *usbLink) rawConfigDescriptor() ([]byte, error) {
	const getDescriptor = 0x06
	const configurationType = 0x02
	recipient := uint8(0x80) // device-to-host, standard, device

	header := make([]byte, 9)
	if _, err := l.dev.Control(recipient, getDescriptor, uint16(configurationType)<<8, 0, header); err != nil {
		return nil, err
	}
	total := binary.LittleEndian.Uint16(header[2:4])
	full := make([]byte, total)
	if _, err := l.dev.Control(recipient, getDescriptor, uint16(configurationType)<<8, 0, full); err != nil {
		return nil, err
	}
	return full, nil
}

// WriteBulkOut implements command.Transport. The timeout argument is not
// applied; the write blocks until the transfer completes or fails.
func (l *usbLink) WriteBulkOut(b []byte, timeout time.Duration) (int, error) {
	return l.controlOut.Write(b)
}

// ReadBulkIn implements command.Transport. The timeout argument is not
// applied; the read blocks until the transfer completes or fails.
func (l *usbLink) ReadBulkIn(b []byte, timeout time.Duration) (int, error) {
	return l.controlIn.Read(b)
}

// ClearHaltOut implements command.Transport.
func (l *usbLink) ClearHaltOut() error {
	return l.clearHalt(controlOutEndpoint)
}

// ClearHaltIn implements command.Transport.
func (l *usbLink) ClearHaltIn() error {
	return l.clearHalt(controlInEndpoint)
}

func (l *usbLink) clearHalt(endpoint uint8) error {
	const clearFeature = 0x01
	const endpointHalt = 0x00
	recipient := uint8(0x02) // host-to-device, standard, endpoint
	_, err := l.dev.Control(recipient, clearFeature, endpointHalt, uint16(endpoint), nil)
	return err
}

// readColor reads one bulk transfer's worth of color data.
func (l *usbLink) readColor(buf []byte) (int, error) {
	return l.colorIn.Read(buf)
}

// readIR reads one isochronous transfer's worth of IR/depth data.
func (l *usbLink) readIR(buf []byte) (int, error) {
	if l.irIn == nil {
		return 0, errors.New("kinect: IR endpoint not open, stream not started")
	}
	return l.irIn.Read(buf)
}
