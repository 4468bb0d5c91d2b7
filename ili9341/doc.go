// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ili9341 controls a 240x320 color TFT panel via an ILI9341
// controller over 4-wire SPI.
//
// The controller exposes its frame memory through a rectangular drawing
// window: the host programs the window corners, issues a memory write and
// then streams RGB565 pixels while an internal cursor advances left to
// right, top to bottom. This driver offers that model directly (DrawRaw,
// DrawIter), implements display.Drawer on top of it, and provides
// DrawPixels, which coalesces an arbitrary stream of colored points into
// windowed writes of maximal horizontal runs.
//
// Besides the SPI port the driver owns three GPIO lines: data/command
// select, chip select and the active-low hardware reset. The display is
// assumed to be exclusively owned; concurrent use must be serialized by the
// caller.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/ILI9341.pdf
package ili9341
