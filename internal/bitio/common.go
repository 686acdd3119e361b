// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package bitio implements a single-direction, byte-buffer-backed bit
// stream with a 64-bit accumulator. Bits are packed LSB-first, and the
// on-disk byte order is little-endian: multi-byte refills/flushes always
// treat the stream as a sequence of little-endian uint64 words.
//
// A Writer and a Reader never share a buffer concurrently: the block
// writer fully flushes and hands the bytes off before anything reads them
// back, matching the "single-direction" bit stream described for this
// format.
package bitio

import "runtime"

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "bitio: " + string(e) }

// ErrShortBuffer is the panic value raised when fewer bits remain than
// were requested.
const ErrShortBuffer = Error("short buffer")

// errRecover converts a panic raised by Read/ReadLong into a returned
// error at the caller's call-site boundary.
func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
	case runtime.Error:
		panic(ex)
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

func mask64(k uint) uint64 {
	if k >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << k) - 1
}
