// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// kinect-record discovers a Kinect v2 sensor, streams a handful of color and
// depth frames and saves them as PNG files, or prints device information.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"periph.io/x/kinectv2/conn/physic"
	"periph.io/x/kinectv2/devices/kinect"
	"periph.io/x/kinectv2/devices/kinect/command"
	"periph.io/x/kinectv2/devices/kinect/depthproc"
	"periph.io/x/kinectv2/devices/kinect/frame"
)

// distanceFlag adapts physic.Distance, which implements flag.Value, to
// pflag.Value by adding the Type method pflag requires.
type distanceFlag struct {
	physic.Distance
}

func (distanceFlag) Type() string { return "distance" }

func depthToGray(f frame.DepthFrame) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	const maxDepth = 4500.0 // millimetres
	for i, d := range f.Buffer {
		v := d
		if v < 0 {
			v = 0
		} else if v > maxDepth {
			v = maxDepth
		}
		img.Pix[i] = uint8(255 - uint32(v*255/maxDepth))
	}
	return img
}

func colorToRGBA(f frame.ColorFrame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * 3
			img.Set(x, y, color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 255})
		}
	}
	return img
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// query prints firmware and calibration information about an opened device.
func query(dev *kinect.Opened) error {
	fw, err := dev.GetFirmwareVersions()
	if err != nil {
		return err
	}
	for _, v := range fw {
		fmt.Printf("Firmware:          %s\n", v.String())
	}
	ir := dev.GetIrParams()
	fmt.Printf("IrParams.Fx:       %g\n", ir.Fx)
	fmt.Printf("IrParams.Fy:       %g\n", ir.Fy)
	fmt.Printf("IrParams.Cx:       %g\n", ir.Cx)
	fmt.Printf("IrParams.Cy:       %g\n", ir.Cy)
	rgb := dev.GetColorParams()
	fmt.Printf("ColorParams.F:     %g\n", rgb.F)
	fmt.Printf("ColorParams.Cx:    %g\n", rgb.Cx)
	fmt.Printf("ColorParams.Cy:    %g\n", rgb.Cy)
	return nil
}

// record streams count frame pairs and saves each to outDir, stopping early
// if ctx is cancelled.
func record(ctx context.Context, dev *kinect.Opened, outDir string, count int, registered bool) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		pair, err := dev.ReadPair(ctx)
		if err != nil {
			return fmt.Errorf("reading frame pair %d: %w", i, err)
		}
		colorFrame, depthFrame := pair.Color, pair.Depth
		if registered {
			colorFrame, depthFrame = dev.Registration().UndistortDepthAndColor(colorFrame, depthFrame, true)
		}
		if err := savePNG(filepath.Join(outDir, fmt.Sprintf("color-%03d.png", i)), colorToRGBA(colorFrame)); err != nil {
			return err
		}
		if err := savePNG(filepath.Join(outDir, fmt.Sprintf("depth-%03d.png", i)), depthToGray(depthFrame)); err != nil {
			return err
		}
		charmlog.Info("saved frame pair", "index", i, "color_seq", colorFrame.Sequence, "depth_seq", depthFrame.Sequence)
	}
	return nil
}

func mainImpl() error {
	outDir := pflag.StringP("out", "o", "", "directory to save color-NNN.png/depth-NNN.png into")
	count := pflag.IntP("count", "n", 10, "number of frame pairs to capture")
	registered := pflag.Bool("registered", false, "align color and depth frames before saving")
	queryOnly := pflag.Bool("query", false, "print firmware and calibration info and exit")
	verbose := pflag.BoolP("verbose", "v", false, "verbose logging")
	exposureMs := pflag.Uint32("exposure-ms", 0, "set the color exposure time in milliseconds before recording (0: leave default)")
	minDepth := &distanceFlag{500 * physic.MilliMetre}
	maxDepth := &distanceFlag{4500 * physic.MilliMetre}
	pflag.Var(minDepth, "min-depth", "depths closer than this are reported as invalid")
	pflag.Var(maxDepth, "max-depth", "depths farther than this are reported as invalid")
	pflag.Parse()
	if pflag.NArg() != 0 {
		return errors.New("unsupported arguments")
	}
	if !*queryOnly && len(*outDir) == 0 {
		return errors.New("-out is required unless -query is set")
	}
	if !*verbose {
		charmlog.SetLevel(charmlog.WarnLevel)
	}

	closed, err := kinect.Discover()
	if err != nil {
		return err
	}
	dev, err := closed.Open()
	if err != nil {
		return err
	}
	defer dev.Close()

	if *queryOnly {
		return query(dev)
	}

	cfg := depthproc.DefaultConfig()
	cfg.MinDepth = float64(minDepth.Distance) / float64(physic.Metre)
	cfg.MaxDepth = float64(maxDepth.Distance) / float64(physic.Metre)
	if err := dev.SetConfig(cfg); err != nil {
		return fmt.Errorf("setting depth range: %w", err)
	}

	if err := dev.Start(); err != nil {
		return fmt.Errorf("starting streams: %w", err)
	}
	defer dev.Stop()

	if *exposureMs != 0 {
		if err := dev.SetColorSetting(command.SetExposureTimeMs, *exposureMs); err != nil {
			return fmt.Errorf("setting exposure: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return record(ctx, dev, *outDir, *count, *registered)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nkinect-record: %s.\n", err)
		os.Exit(1)
	}
}
