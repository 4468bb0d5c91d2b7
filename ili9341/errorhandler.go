// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ili9341

import (
	"periph.io/x/conn/v3/gpio"
)

// errorHandler is a wrapper for error management: after the first failure
// all further operations are skipped and the error, tagged with the line
// that failed, is kept for the caller.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	if err := eh.d.rst.Out(l); err != nil {
		eh.err = &Error{Op: "reset", Err: err}
	}
}

func (eh *errorHandler) csOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	if err := eh.d.cs.Out(l); err != nil {
		eh.err = &Error{Op: "cs", Err: err}
	}
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	if err := eh.d.dc.Out(l); err != nil {
		eh.err = &Error{Op: "dc", Err: err}
	}
}

func (eh *errorHandler) cTx(w []byte) {
	if eh.err != nil {
		return
	}
	if err := eh.d.c.Tx(w, nil); err != nil {
		eh.err = &Error{Op: "bus", Err: err}
	}
}
