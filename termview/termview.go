// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termview implements a display.Drawer that renders RGB565 frames to
// a terminal (stdout) using ANSI color codes.
//
// Useful to develop output for a TFT panel on a machine that does not have
// one attached: it accepts the exact byte stream the panel would and shows
// an approximation of it, one colored block per pixel.
package termview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/tftlabs/devices/ili9341/image565"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	// Width and Height of the emulated panel, in pixels.
	Width  int
	Height int
	// Palette used to map colors to terminal codes. Defaults to
	// ansi256.Default.
	Palette *ansi256.Palette
}

// Dev is a 2D TFT panel emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette

	img *image565.Image
	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	return NewWriter(colorable.NewColorableStdout(), opts)
}

// NewWriter returns a Dev that writes its ANSI output to w.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Dev{
		w:       w,
		palette: *p,
		img:     image565.New(image.Rect(0, 0, opts.Width, opts.Height)),
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("TermView{%dx%d}", d.img.Rect.Dx(), d.img.Rect.Dy())
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes so the shell is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image565.ColorModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Rect
}

// Write accepts a full frame of raw big-endian RGB565 pixels, exactly as a
// panel would receive it, and renders it.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels) != len(d.img.Pix) {
		return 0, errors.New("termview: invalid RGB565 stream length")
	}
	copy(d.img.Pix, pixels)
	if err := d.refresh(); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	draw.Src.Draw(d.img, r, src, sp)
	return d.refresh()
}

func (d *Dev) refresh() error {
	// Minimize per-call allocations; the frame is rebuilt into one buffer and
	// written in a single call.
	d.buf.Reset()
	b := d.img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		_, _ = d.buf.WriteString("\033[0m")
		for x := b.Min.X; x < b.Max.X; x++ {
			r16, g16, b16, _ := d.img.RGB565At(x, y).RGBA()
			c := color.NRGBA{uint8(r16 >> 8), uint8(g16 >> 8), uint8(b16 >> 8), 255}
			_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
