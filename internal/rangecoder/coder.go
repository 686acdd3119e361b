// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package rangecoder

import "github.com/hoang-dt/binomial-coding/internal/bitio"

// codeBits is the width of the coder's working register. 33 bits leaves
// one bit of headroom above the 32-bit Count domain so that span*High
// never needs more precision than a uint64 division can recover cleanly.
const codeBits = 33

const (
	top          = uint64(1) << codeBits
	half         = top / 2
	quarter      = top / 4
	threeQuarter = 3 * quarter
)

// Encoder is a carryless (E1/E2/E3) binary arithmetic coder. Every
// symbol, whether it comes from a CDF table or from the centered-minimal
// bit path, is fed through Encode so a single coder instance produces
// one contiguous output bitstream per block.
type Encoder struct {
	w         *bitio.Writer
	low, high uint64
	pending   uint
}

// NewEncoder returns an Encoder that appends its output to w.
func NewEncoder(w *bitio.Writer) *Encoder {
	return &Encoder{w: w, low: 0, high: top - 1}
}

// Encode narrows the coder's [low, high) interval to the sub-interval
// described by p and renormalizes, emitting bits to the underlying
// Writer as the interval's leading bits settle.
func (e *Encoder) Encode(p Prob) {
	if p.Count == 0 || p.Low >= p.High || p.High > p.Count {
		panic(Error("invalid probability interval"))
	}
	span := e.high - e.low + 1
	total := uint64(p.Count)
	e.high = e.low + span*uint64(p.High)/total - 1
	e.low = e.low + span*uint64(p.Low)/total
	for {
		switch {
		case e.high < half:
			e.emit(0)
		case e.low >= half:
			e.emit(1)
			e.low -= half
			e.high -= half
		case e.low >= quarter && e.high < threeQuarter:
			e.pending++
			e.low -= quarter
			e.high -= quarter
		default:
			return
		}
		e.low <<= 1
		e.high = (e.high << 1) | 1
	}
}

func (e *Encoder) emit(bit uint64) {
	e.w.WriteBit(bit != 0)
	for ; e.pending > 0; e.pending-- {
		e.w.WriteBit(bit == 0)
	}
}

// Finish flushes the coder's remaining state, disambiguating low from
// high with two bits. Callers must call Finish exactly once, after the
// last Encode call for a block.
func (e *Encoder) Finish() {
	e.pending++
	if e.low < quarter {
		e.emit(0)
	} else {
		e.emit(1)
	}
}

// Decoder is the Encoder's counterpart: it mirrors the encoder's
// low/high interval bookkeeping while tracking the code value read off
// the bitstream so far.
type Decoder struct {
	r         *bitio.Reader
	low, high uint64
	value     uint64
}

// NewDecoder returns a Decoder reading from r, priming its value
// register with the first codeBits bits of the stream.
func NewDecoder(r *bitio.Reader) *Decoder {
	d := &Decoder{r: r, low: 0, high: top - 1}
	for i := 0; i < codeBits; i++ {
		d.value = (d.value << 1) | d.nextBit()
	}
	return d
}

func (d *Decoder) nextBit() uint64 {
	if d.r.Len() == 0 {
		return 0
	}
	if d.r.ReadBit() {
		return 1
	}
	return 0
}

// GetFreq maps the decoder's current code value into [0, count), the
// cumulative-frequency domain the caller's CDF table is built over. The
// caller looks up the symbol whose [Low, High) interval contains the
// result, then must call Decode with that symbol's Prob.
func (d *Decoder) GetFreq(count uint32) uint32 {
	span := d.high - d.low + 1
	total := uint64(count)
	f := ((d.value-d.low+1)*total - 1) / span
	if f >= total {
		f = total - 1
	}
	return uint32(f)
}

// Decode narrows the decoder's interval to match the symbol p previously
// looked up via GetFreq, mirroring Encoder.Encode bit for bit.
func (d *Decoder) Decode(p Prob) {
	span := d.high - d.low + 1
	total := uint64(p.Count)
	d.high = d.low + span*uint64(p.High)/total - 1
	d.low = d.low + span*uint64(p.Low)/total
	for {
		switch {
		case d.high < half:
		case d.low >= half:
			d.low -= half
			d.high -= half
			d.value -= half
		case d.low >= quarter && d.high < threeQuarter:
			d.low -= quarter
			d.high -= quarter
			d.value -= quarter
		default:
			return
		}
		d.low <<= 1
		d.high = (d.high << 1) | 1
		d.value = (d.value << 1) | d.nextBit()
	}
}
