// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ili9341

import (
	"image"
	"image/color"
	"iter"

	"github.com/tftlabs/devices/ili9341/image565"
)

// runBufBytes bounds the memory used to batch one horizontal run of pixels
// before it is written out. 64 bytes is 32 pixels; longer runs are split
// into consecutive writes.
const runBufBytes = 64

// rawDrawer is the part of Dev the run coalescer needs. Narrowed to an
// interface so tests can record the emitted writes.
type rawDrawer interface {
	DrawRaw(x0, y0, x1, y1 int, pix []byte) error
}

// DrawPixels consumes a finite stream of individually colored points and
// writes them to the panel.
//
// Points outside the current Bounds() are dropped. Horizontally contiguous
// same-row points are coalesced into single windowed writes, so streams that
// keep same-row pixels adjacent and in ascending x order (as rasterized
// lines, glyphs and outlines naturally do) cost a handful of bus
// transactions instead of one per pixel. Any order is still rendered
// correctly; a break in contiguity merely starts a new run.
func (d *Dev) DrawPixels(pixels iter.Seq2[image.Point, color.Color]) error {
	return drawRuns(d, d.width, d.height, pixels)
}

func drawRuns(dst rawDrawer, width, height int, pixels iter.Seq2[image.Point, color.Color]) error {
	var run [runBufBytes]byte
	i := 0
	startX, endX, lastY := 0, 0, 0

	for pos, c := range pixels {
		if pos.X < 0 || pos.Y < 0 || pos.X >= width || pos.Y >= height {
			continue
		}
		if i == 0 {
			// First pixel of a fresh run.
			startX = pos.X
		} else if pos.Y != lastY || pos.X != endX+1 || i >= runBufBytes-1 {
			// Contiguity broke or the buffer is full: emit the completed run
			// and restart with this pixel.
			if err := dst.DrawRaw(startX, lastY, endX, lastY, run[:i]); err != nil {
				return err
			}
			i = 0
			startX = pos.X
		}
		rgb := uint16(image565.From(c))
		run[i] = byte(rgb >> 8)
		run[i+1] = byte(rgb)
		i += 2
		lastY = pos.Y
		endX = pos.X
	}
	if i > 0 {
		return dst.DrawRaw(startX, lastY, endX, lastY, run[:i])
	}
	return nil
}
