// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package kinect

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"periph.io/x/kinectv2/devices/kinect/calib"
	"periph.io/x/kinectv2/devices/kinect/command"
	"periph.io/x/kinectv2/devices/kinect/depthproc"
	"periph.io/x/kinectv2/devices/kinect/frame"
	"periph.io/x/kinectv2/devices/kinect/parser"
	"periph.io/x/kinectv2/devices/kinect/registration"
	syncpkg "periph.io/x/kinectv2/devices/kinect/sync"
	"periph.io/x/kinectv2/devices/kinect/wire"
)

const (
	colorTransferSize = 0x4000
	irTransferSize    = 0x4000

	readStatusPollInterval = 100 * time.Millisecond
	readStatusMaxPolls     = 50
	readStatusSelector     = 0x090000
)

// Closed represents a discovered Kinect v2 that has not yet been opened.
type Closed struct{}

// Discover finds a single Kinect v2 sensor on the USB bus and returns a
// Closed handle to it. It opens and immediately releases the device,
// since proving the sensor exists is all a Closed handle needs; Open
// claims fresh interfaces of its own.
func Discover() (*Closed, error) {
	link, _, err := openUSB()
	if err != nil {
		return nil, err
	}
	if err := link.Close(); err != nil {
		return nil, err
	}
	return &Closed{}, nil
}

// Open claims the device's interfaces, negotiates SuperSpeed power-state
// features, and validates the IR endpoint's isochronous packet size. It
// returns an Opened device ready for Start.
func (*Closed) Open() (*Opened, error) {
	link, serial, err := openUSB()
	if err != nil {
		return nil, err
	}
	return &Opened{
		link:        link,
		tx:          command.NewTransaction(link),
		usbSerial:   serial,
		colorParser: parser.NewColorStreamParser(),
		depthParser: parser.NewDepthStreamParser(),
		sync:        syncpkg.New(),
		depthConfig: depthproc.DefaultConfig(),
	}, nil
}

// Opened is a Kinect v2 with its interfaces claimed. running tracks
// whether the device is actively streaming; most configuration operations
// are only valid while it is false, most streaming operations only while
// it is true.
type Opened struct {
	link      usbController
	tx        *command.Transaction
	usbSerial string

	running bool

	irParams    wire.IrParams
	colorParams wire.ColorParams
	tables      calib.Tables
	p0          wire.P0Tables

	depthProc   *depthproc.Processor
	depthConfig depthproc.Config
	reg         *registration.Registration

	colorParser *parser.ColorStreamParser
	depthParser *parser.DepthStreamParser
	sync        *syncpkg.Synchroniser
}

// Start verifies the device's protocol-reported serial number, fetches
// calibration, and enables both streams. It is idempotent while already
// running.
func (d *Opened) Start() error {
	if d.running {
		return nil
	}

	if err := d.link.setFunctionSuspend(true); err != nil {
		return err
	}

	protocolSerial, err := d.readSerialNumber()
	if err != nil {
		return err
	}
	if protocolSerial != d.usbSerial {
		return errors.Errorf("kinect: protocol serial %q does not match USB descriptor serial %q", protocolSerial, d.usbSerial)
	}

	irParamsBytes, err := d.tx.Execute(command.ReadDataPage.WithMaxResponseLen(command.DataPageMaxRequestLen), []uint32{command.DataPageDepthParams})
	if err != nil {
		return errors.Wrap(err, "kinect: reading depth params")
	}
	d.irParams, err = wire.DecodeIrParams(irParamsBytes)
	if err != nil {
		return errors.Wrap(err, "kinect: decoding IR params")
	}

	p0Bytes, err := d.tx.Execute(command.ReadDataPage.WithMaxResponseLen(command.DataPageMaxRequestLen), []uint32{command.DataPageP0Tables})
	if err != nil {
		return errors.Wrap(err, "kinect: reading P0 tables")
	}
	d.p0, err = wire.DecodeP0Tables(p0Bytes)
	if err != nil {
		return errors.Wrap(err, "kinect: decoding P0 tables")
	}

	colorBytes, err := d.tx.Execute(command.ReadDataPage.WithMaxResponseLen(command.DataPageMaxRequestLen), []uint32{command.DataPageRgbParams})
	if err != nil {
		return errors.Wrap(err, "kinect: reading RGB params")
	}
	d.colorParams, err = wire.DecodeColorParams(colorBytes)
	if err != nil {
		return errors.Wrap(err, "kinect: decoding RGB params")
	}

	d.tables = calib.Derive(d.irParams)
	d.depthProc = depthproc.NewProcessor(d.tables)
	d.depthProc.SetP0Tables(d.p0)
	d.depthProc.SetConfig(d.depthConfig)
	d.reg = registration.New(d.irParams, d.colorParams)

	if _, err := d.tx.Execute(command.SetMode, []uint32{1, 0x00640064, 0, 0}); err != nil {
		return errors.Wrap(err, "kinect: SET_MODE(true, 0x00640064)")
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{0, 0, 0, 0}); err != nil {
		return errors.Wrap(err, "kinect: SET_MODE(false, 0)")
	}

	if err := d.waitReady(); err != nil {
		return err
	}

	if _, err := d.tx.Execute(command.InitStreams, nil); err != nil {
		return errors.Wrap(err, "kinect: INIT_STREAMS")
	}
	if err := d.link.setIRAltSetting(true); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetStreaming, []uint32{1}); err != nil {
		return errors.Wrap(err, "kinect: SET_STREAMING(true)")
	}

	d.running = true
	log.Info("kinect: streaming started", "serial", d.usbSerial)
	return nil
}

// waitReady polls READ_STATUS until the device reports its low status bit
// set, or gives up after readStatusMaxPolls attempts.
func (d *Opened) waitReady() error {
	for i := 0; i < readStatusMaxPolls; i++ {
		body, err := d.tx.Execute(command.ReadStatus, []uint32{readStatusSelector})
		if err != nil {
			return errors.Wrap(err, "kinect: READ_STATUS")
		}
		if len(body) >= 1 && body[0]&1 != 0 {
			return nil
		}
		time.Sleep(readStatusPollInterval)
	}
	return errors.New("kinect: device did not report ready within 50 status polls")
}

func (d *Opened) readSerialNumber() (string, error) {
	body, err := d.tx.Execute(command.ReadDataPage.WithResponseLen(command.SerialNumberResponseLen), []uint32{command.DataPageSerialNumber})
	if err != nil {
		return "", errors.Wrap(err, "kinect: READ_DATA_PAGE(serial number)")
	}
	return string(bytes.TrimRight(body, "\x00")), nil
}

// GetFirmwareVersions reports the firmware version of every onboard
// component the sensor tracks.
func (d *Opened) GetFirmwareVersions() ([]wire.FirmwareVersion, error) {
	body, err := d.tx.Execute(command.ReadFirmwareVersions, nil)
	if err != nil {
		return nil, err
	}
	const entrySize = 16
	out := make([]wire.FirmwareVersion, 0, len(body)/entrySize)
	for i := 0; i+entrySize <= len(body); i += entrySize {
		v, err := wire.DecodeFirmwareVersion(body[i : i+entrySize])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetColorParams returns the color camera parameters currently in effect.
// It is only valid after Start.
func (d *Opened) GetColorParams() wire.ColorParams { return d.colorParams }

// GetIrParams returns the IR camera parameters currently in effect. It is
// only valid after Start.
func (d *Opened) GetIrParams() wire.IrParams { return d.irParams }

// SetConfig updates the depth pipeline's tuning. It must only be called
// before Start or after Stop, since the pipeline derives its working
// parameters once when streaming begins.
func (d *Opened) SetConfig(c depthproc.Config) error {
	if d.running {
		return errors.New("kinect: cannot change configuration while running")
	}
	d.depthConfig = c
	if d.depthProc != nil {
		d.depthProc.SetConfig(c)
	}
	return nil
}

// SetColorSetting issues a single RGB_SETTING sub-command with a raw
// value. It is only valid while running, since the color sensor only
// accepts these while streaming.
func (d *Opened) SetColorSetting(cmd command.ColorSettingCommandType, value uint32) error {
	if !d.running {
		return errors.New("kinect: color settings require a running device")
	}
	_, err := d.tx.Execute(command.RgbSetting, []uint32{1, 0, uint32(cmd), value})
	return err
}

// GetColorSetting reads back a single RGB_SETTING sub-command's value.
func (d *Opened) GetColorSetting(cmd command.ColorSettingCommandType) (uint32, error) {
	if !d.running {
		return 0, errors.New("kinect: color settings require a running device")
	}
	body, err := d.tx.Execute(command.RgbSetting, []uint32{1, 0, uint32(cmd), 0})
	if err != nil {
		return 0, err
	}
	return wire.DecodeColorSettingResponse(body)
}

// SetLedStatus sets one of the sensor's two status LEDs. Unlike color
// settings, this works whether or not the device is streaming.
func (d *Opened) SetLedStatus(settings command.LedSettings) error {
	_, err := d.tx.Execute(command.LedSetting, settings.Params())
	return err
}

// Stop halts both streams and returns the device to an idle, still-opened
// state. It is idempotent.
func (d *Opened) Stop() error {
	if !d.running {
		return nil
	}
	if err := d.link.setIRAltSetting(false); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{1, 0x00640064, 0, 0}); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{0, 0, 0, 0}); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.Stop, nil); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetStreaming, []uint32{0}); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{1, 0, 0, 0}); err != nil {
		return err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{0, 0, 0, 0}); err != nil {
		return err
	}
	if err := d.link.setFunctionSuspend(false); err != nil {
		return err
	}
	d.running = false
	d.sync.Clear()
	return nil
}

// Close stops the device if running, issues the final shutdown sequence,
// and releases the USB interfaces, returning a Closed handle.
func (d *Opened) Close() (*Closed, error) {
	if err := d.Stop(); err != nil {
		return nil, err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{1, 0x00640064, 0, 0}); err != nil {
		return nil, err
	}
	if _, err := d.tx.Execute(command.SetMode, []uint32{0, 0, 0, 0}); err != nil {
		return nil, err
	}
	if _, err := d.tx.Execute(command.Shutdown, nil); err != nil {
		return nil, err
	}
	if err := d.link.Close(); err != nil {
		return nil, err
	}
	return &Closed{}, nil
}

// Pair is one timestamp-matched color/depth frame, fully processed:
// decoded JPEG color, unwrapped depth, and active-brightness IR.
type Pair struct {
	Color frame.ColorFrame
	IR    frame.IrFrame
	Depth frame.DepthFrame
}

// ReadPair runs the device's pull loop: alternating reads off the color
// and IR endpoints, feeding the stream parsers, and polling the
// synchroniser, until a matched pair is ready or ctx is cancelled. It
// must only be called while the device is running, and by a single
// goroutine — the claimed interfaces are exclusively owned by this Opened
// value.
func (d *Opened) ReadPair(ctx context.Context) (Pair, error) {
	if !d.running {
		return Pair{}, errors.New("kinect: device is not running")
	}
	colorBuf := make([]byte, colorTransferSize)
	irBuf := make([]byte, irTransferSize)

	for {
		select {
		case <-ctx.Done():
			return Pair{}, ctx.Err()
		default:
		}

		if n, err := d.link.readColor(colorBuf); err == nil && n > 0 {
			if pkt := d.colorParser.Parse(colorBuf[:n]); pkt != nil {
				d.sync.PushColor(*pkt)
			}
		}
		if n, err := d.link.readIR(irBuf); err == nil && n > 0 {
			if pkt := d.depthParser.Parse(irBuf[:n]); pkt != nil {
				d.sync.PushDepth(*pkt)
			}
		}

		matched, ok := d.sync.Poll()
		if !ok {
			continue
		}

		colorFrame, err := decodeJPEG(matched.Color)
		if err != nil {
			return Pair{}, errors.Wrap(err, "kinect: decoding color JPEG")
		}
		ir, depth := d.depthProc.Process(matched.Depth)
		return Pair{Color: colorFrame, IR: ir, Depth: depth}, nil
	}
}

// decodeJPEG hands a ColorPacket's JPEG bytes to the standard library
// JPEG decoder and repacks the result into the interleaved RGB layout the
// rest of this package uses.
func decodeJPEG(pkt frame.ColorPacket) (frame.ColorFrame, error) {
	img, err := jpeg.Decode(bytes.NewReader(pkt.JPEGBytes))
	if err != nil {
		return frame.ColorFrame{}, err
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]byte, w*h*3)
	for i, px := 0, 0; i < len(rgba.Pix); i, px = i+4, px+3 {
		pix[px], pix[px+1], pix[px+2] = rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
	}
	return frame.ColorFrame{
		Width: w, Height: h, Pix: pix,
		Sequence: pkt.Sequence, Timestamp: pkt.Timestamp,
	}, nil
}

// Registration exposes the depth/color alignment component, only
// available once Start has fetched the sensor's factory calibration.
func (d *Opened) Registration() *registration.Registration { return d.reg }
