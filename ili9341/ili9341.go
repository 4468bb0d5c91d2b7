// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ili9341

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"iter"
	"time"

	"github.com/tftlabs/devices/ili9341/image565"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Commands
const (
	softwareReset           byte = 0x01
	sleepOut                byte = 0x11
	displayInversionOff     byte = 0x20
	displayInversionOn      byte = 0x21
	gammaSet                byte = 0x26
	displayOff              byte = 0x28
	displayOn               byte = 0x29
	columnAddressSet        byte = 0x2A
	pageAddressSet          byte = 0x2B
	memoryWrite             byte = 0x2C
	memoryAccessControl     byte = 0x36
	pixelFormatSet          byte = 0x3A
	frameRateControlNormal  byte = 0xB1
	displayFunctionControl  byte = 0xB6
	powerControl1           byte = 0xC0
	powerControl2           byte = 0xC1
	vcomControl1            byte = 0xC5
	vcomControl2            byte = 0xC7
	powerControlA           byte = 0xCB
	powerControlB           byte = 0xCF
	positiveGammaCorrection byte = 0xE0
	negativeGammaCorrection byte = 0xE1
	driverTimingControlA    byte = 0xE8
	driverTimingControlB    byte = 0xEA
	powerOnSequenceControl  byte = 0xED
	enable3Gamma            byte = 0xF2
	pumpRatioControl        byte = 0xF7
)

// Memory access control bits. See datasheet section 8.2.29.
const (
	madctlMY  byte = 0x80 // row address order
	madctlMX  byte = 0x40 // column address order
	madctlMV  byte = 0x20 // row / column exchange
	madctlBGR byte = 0x08 // BGR subpixel order
)

// Native panel size before any rotation.
const (
	nativeWidth  = 240
	nativeHeight = 320
)

// Orientation is the rotation of the panel relative to its native portrait
// layout.
type Orientation int

// Valid Orientation.
const (
	Portrait Orientation = iota
	Landscape
	PortraitFlipped
	LandscapeFlipped
)

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "Portrait"
	case Landscape:
		return "Landscape"
	case PortraitFlipped:
		return "PortraitFlipped"
	case LandscapeFlipped:
		return "LandscapeFlipped"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// madctl returns the memory access control register value and whether the
// logical width and height are swapped relative to the native panel.
func (o Orientation) madctl() (byte, bool, error) {
	switch o {
	case Portrait:
		return madctlMX | madctlBGR, false, nil
	case Landscape:
		return madctlMV | madctlBGR, true, nil
	case PortraitFlipped:
		return madctlMY | madctlBGR, false, nil
	case LandscapeFlipped:
		return madctlMX | madctlMY | madctlMV | madctlBGR, true, nil
	}
	return 0, false, fmt.Errorf("ili9341: invalid orientation %d", int(o))
}

// Error is returned on any failure to drive the display. Op identifies the
// line that failed: "bus" for the SPI connection, otherwise the name of the
// GPIO line ("cs", "dc" or "reset").
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ili9341: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Orientation: Portrait,
}

// Opts defines the options for the device.
type Opts struct {
	// Orientation of the panel. The logical size reported by Bounds() follows
	// it: 240x320 for portrait variants, 320x240 for landscape variants.
	Orientation Orientation
}

// initOp is one step of the power-on register script.
type initOp struct {
	cmd  byte
	data []byte
}

// initSequence is the calibration script mandated by the panel vendor. The
// values and their order come straight from the datasheet application notes;
// do not reorder.
var initSequence = []initOp{
	{powerControlA, []byte{0x39, 0x2C, 0x00, 0x34, 0x02}},
	{powerControlB, []byte{0x00, 0xC1, 0x30}},
	{driverTimingControlA, []byte{0x85, 0x00, 0x78}},
	{driverTimingControlB, []byte{0x00, 0x00}},
	{powerOnSequenceControl, []byte{0x64, 0x03, 0x12, 0x81}},
	{pumpRatioControl, []byte{0x20}},
	{powerControl1, []byte{0x23}},
	{powerControl2, []byte{0x10}},
	{vcomControl1, []byte{0x3E, 0x28}},
	{vcomControl2, []byte{0x86}},
	{memoryAccessControl, []byte{madctlMX | madctlBGR}},
	{pixelFormatSet, []byte{0x55}},
	{frameRateControlNormal, []byte{0x00, 0x18}},
	{displayFunctionControl, []byte{0x08, 0x82, 0x27}},
	{enable3Gamma, []byte{0x00}},
	{gammaSet, []byte{0x01}},
	{positiveGammaCorrection, []byte{0x0F, 0x31, 0x2B, 0x0C, 0x0E, 0x08, 0x4E, 0xF1, 0x37, 0x07, 0x10, 0x03, 0x0E, 0x09, 0x00}},
	{negativeGammaCorrection, []byte{0x00, 0x0E, 0x14, 0x03, 0x11, 0x07, 0x31, 0xC1, 0x48, 0x08, 0x0F, 0x0C, 0x31, 0x36, 0x0F}},
}

// Dev is an open handle to the display controller.
type Dev struct {
	// Communication
	c   conn.Conn
	dc  gpio.PinOut
	cs  gpio.PinOut
	rst gpio.PinOut

	// sleep is time.Sleep except in tests.
	sleep func(time.Duration)

	maxTxSize int

	// Logical size under the current orientation.
	width  int
	height int
}

// New opens a handle to an ILI9341 display controller on the given SPI port.
//
// The dc pin selects between command (low) and data (high) bytes, cs frames
// every transaction and rst is the active-low hardware reset line. All three
// are driven by this driver and must not be shared.
//
// New performs the hardware reset and the full power-on sequence; it blocks
// for slightly over a second while the panel settles.
func New(p spi.Port, dc, cs, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	return newDev(c, dc, cs, rst, opts, time.Sleep)
}

// newDev is the initialization code shared between New and the tests, which
// substitute the sleep function.
func newDev(c conn.Conn, dc, cs, rst gpio.PinOut, opts *Opts, sleep func(time.Duration)) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096 // Conservative default.
	}
	d := &Dev{
		c:         c,
		dc:        dc,
		cs:        cs,
		rst:       rst,
		sleep:     sleep,
		maxTxSize: maxTxSize,
		width:     nativeWidth,
		height:    nativeHeight,
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	if opts.Orientation != Portrait {
		if err := d.SetOrientation(opts.Orientation); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// init drives the hardware reset line and issues the power-on script. There
// is no rollback on failure; the panel is left in whatever state it reached
// and only another hardware reset can recover it.
func (d *Dev) init() error {
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.command(softwareReset); err != nil {
		return err
	}
	// The controller refuses further commands while it reinitializes.
	d.sleep(200 * time.Millisecond)
	for _, op := range initSequence {
		if err := d.command(op.cmd, op.data...); err != nil {
			return err
		}
	}
	if err := d.command(sleepOut); err != nil {
		return err
	}
	d.sleep(120 * time.Millisecond)
	return d.command(displayOn)
}

// reset pulses the hardware reset line.
func (d *Dev) reset() error {
	eh := errorHandler{d: d}

	eh.rstOut(gpio.High)
	d.sleep(200 * time.Millisecond)
	eh.rstOut(gpio.Low)
	d.sleep(200 * time.Millisecond)
	eh.rstOut(gpio.High)
	d.sleep(200 * time.Millisecond)

	return eh.err
}

// command sends a single opcode followed by its arguments, framed by the
// chip select line.
func (d *Dev) command(cmd byte, args ...byte) error {
	eh := errorHandler{d: d}

	eh.csOut(gpio.Low)
	eh.dcOut(gpio.Low)
	eh.cTx([]byte{cmd})
	if len(args) != 0 {
		eh.dcOut(gpio.High)
		eh.cTx(args)
	}
	eh.csOut(gpio.High)

	return eh.err
}

// setWindow programs the drawing window, inclusive on all four bounds, and
// resets the controller's write cursor to its top left corner. Coordinates
// are passed through unchecked; the panel clamps out of range values on its
// own terms.
func (d *Dev) setWindow(x0, y0, x1, y1 int) error {
	if err := d.command(columnAddressSet, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return d.command(pageAddressSet, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
}

// DrawRaw streams raw pixel data into the rectangle with top-left corner
// (x0, y0) and bottom-right corner (x1, y1), borders included.
//
// Every pair of bytes is one RGB565 pixel, high byte first. The controller
// places pixels left to right, top to bottom, wrapping rows on its own; no
// check is made that len(pix) matches the window, a mismatch garbles the
// output without failing.
func (d *Dev) DrawRaw(x0, y0, x1, y1 int, pix []byte) error {
	if err := d.setWindow(x0, y0, x1, y1); err != nil {
		return err
	}
	eh := errorHandler{d: d}

	eh.csOut(gpio.Low)
	eh.dcOut(gpio.Low)
	eh.cTx([]byte{memoryWrite})
	eh.dcOut(gpio.High)
	for len(pix) != 0 && eh.err == nil {
		chunk := pix
		if len(chunk) > d.maxTxSize {
			chunk = chunk[:d.maxTxSize]
		}
		eh.cTx(chunk)
		pix = pix[len(chunk):]
	}
	eh.csOut(gpio.High)

	return eh.err
}

// DrawIter streams lazily produced RGB565 values into the rectangle with
// top-left corner (x0, y0) and bottom-right corner (x1, y1), borders
// included.
//
// Values must come in raster order (left to right, top to bottom) to line up
// with the controller's write cursor. Compared to DrawRaw this avoids
// holding a full rectangle in memory.
func (d *Dev) DrawIter(x0, y0, x1, y1 int, colors iter.Seq[uint16]) error {
	if err := d.setWindow(x0, y0, x1, y1); err != nil {
		return err
	}
	eh := errorHandler{d: d}

	eh.csOut(gpio.Low)
	eh.dcOut(gpio.Low)
	eh.cTx([]byte{memoryWrite})
	eh.dcOut(gpio.High)
	var stage [128]byte
	n := 0
	for c := range colors {
		if eh.err != nil {
			break
		}
		stage[n] = byte(c >> 8)
		stage[n+1] = byte(c)
		n += 2
		if n == len(stage) {
			eh.cTx(stage[:n])
			n = 0
		}
	}
	if n != 0 {
		eh.cTx(stage[:n])
	}
	eh.csOut(gpio.High)

	return eh.err
}

// Write writes a full frame of raw big-endian RGB565 pixels to the display.
//
// It implements io.Writer; len(pixels) must be exactly twice the pixel count
// of the current Bounds().
func (d *Dev) Write(pixels []byte) (int, error) {
	if expected := 2 * d.width * d.height; len(pixels) != expected {
		return 0, fmt.Errorf("ili9341: invalid pixel stream length; expected %d bytes, got %d bytes", expected, len(pixels))
	}
	if err := d.DrawRaw(0, 0, d.width-1, d.height-1, pixels); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// SetOrientation rotates the panel by selecting one of the four memory scan
// orders. It takes effect immediately; window coordinates given to
// subsequent draws are interpreted in the new orientation.
func (d *Dev) SetOrientation(o Orientation) error {
	reg, swapped, err := o.madctl()
	if err != nil {
		return err
	}
	if err := d.command(memoryAccessControl, reg); err != nil {
		return err
	}
	d.width, d.height = nativeWidth, nativeHeight
	if swapped {
		d.width, d.height = nativeHeight, nativeWidth
	}
	return nil
}

// Invert the display (black on white vs white on black).
func (d *Dev) Invert(blackOnWhite bool) error {
	if blackOnWhite {
		return d.command(displayInversionOn)
	}
	return d.command(displayInversionOff)
}

// ColorModel implements display.Drawer.
//
// The panel is driven in 16 bit RGB565 mode, as implemented by
// image565.Color.
func (d *Dev) ColorModel() color.Model {
	return image565.ColorModel
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}. The size
// follows the current orientation.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

// Draw implements display.Drawer.
//
// It draws synchronously; once this function returns the panel shows the new
// content.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	if img, ok := src.(*image565.Image); ok && sp == (image.Point{}) && img.Rect == r && img.Stride == 2*r.Dx() {
		// Already in wire format and contiguous: fast path.
		return d.DrawRaw(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, img.Pix)
	}
	next := image565.New(r)
	draw.Src.Draw(next, r, src, sp)
	return d.DrawRaw(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, next.Pix)
}

// Halt turns the display panel off. The controller keeps its configuration
// and frame memory; a later displayOn command would show the old content
// again, but this driver does not expose one.
func (d *Dev) Halt() error {
	return d.command(displayOff)
}

func (d *Dev) String() string {
	return fmt.Sprintf("ili9341.Dev{%s, %s, %dx%d}", d.c, d.dc, d.width, d.height)
}

var _ display.Drawer = &Dev{}
var _ conn.Resource = &Dev{}
var _ fmt.Stringer = &Dev{}
