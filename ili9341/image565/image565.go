// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package image565 implements the RGB565 color model and framebuffer layout
// used by 16 bit TFT panels.
//
// Pixels are stored the way the controller expects them on the wire: two
// bytes per pixel, high byte first, rows packed left to right, top to
// bottom. An *Image can therefore be streamed to the panel without any
// conversion.
package image565

import (
	"image"
	"image/color"
	"image/draw"
)

// Color is a 16 bit color in RGB565 encoding: 5 bits red, 6 bits green, 5
// bits blue.
type Color uint16

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8 := uint32(c>>11) & 0x1F
	r8 = r8<<3 | r8>>2
	g8 := uint32(c>>5) & 0x3F
	g8 = g8<<2 | g8>>4
	b8 := uint32(c) & 0x1F
	b8 = b8<<3 | b8>>2
	return r8 * 0x101, g8 * 0x101, b8 * 0x101, 0xFFFF
}

// From converts any color to its closest RGB565 representation.
func From(c color.Color) Color {
	if col, ok := c.(Color); ok {
		return col
	}
	r, g, b, _ := c.RGBA()
	return FromRGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// FromRGB packs 8 bit channels into RGB565, truncating the low bits.
func FromRGB(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// ColorModel converts colors to Color.
var ColorModel = color.ModelFunc(func(c color.Color) color.Color {
	return From(c)
})

// Image is an in-memory RGB565 frame in wire byte order.
type Image struct {
	// Pix holds the pixels as big-endian RGB565, two bytes per pixel.
	Pix []byte
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// New returns an initialized (all black) Image of the given bounds.
func New(r image.Rectangle) *Image {
	return &Image{
		Pix:    make([]byte, 2*r.Dx()*r.Dy()),
		Stride: 2 * r.Dx(),
		Rect:   r,
	}
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return ColorModel
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return i.Rect
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	return i.RGB565At(x, y)
}

// RGB565At is the specialized version of At.
func (i *Image) RGB565At(x, y int) Color {
	if !(image.Point{x, y}).In(i.Rect) {
		return 0
	}
	o := i.PixOffset(x, y)
	return Color(uint16(i.Pix[o])<<8 | uint16(i.Pix[o+1]))
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (i *Image) PixOffset(x, y int) int {
	return (y-i.Rect.Min.Y)*i.Stride + 2*(x-i.Rect.Min.X)
}

// Set implements draw.Image.
func (i *Image) Set(x, y int, c color.Color) {
	i.SetRGB565(x, y, From(c))
}

// SetRGB565 is the specialized version of Set.
func (i *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{x, y}).In(i.Rect) {
		return
	}
	o := i.PixOffset(x, y)
	i.Pix[o] = byte(c >> 8)
	i.Pix[o+1] = byte(c)
}

var _ draw.Image = &Image{}
