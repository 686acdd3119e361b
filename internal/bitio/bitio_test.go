// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario E: a fixed, spec-given sequence of (value, width) pairs must
// round-trip through a Writer/Reader pair unchanged.
func TestScenarioE_FixedTupleRoundTrip(t *testing.T) {
	type chunk struct {
		val uint64
		k   uint
	}
	chunks := []chunk{
		{0b10110, 5},
		{0xFFFFFFFF, 32},
		{0, 7},
		{0xDEADBEEFCAFEBABE, 64},
	}

	w := NewWriter(16)
	for _, c := range chunks {
		if c.k <= 57 {
			w.Write(c.val, c.k)
		} else {
			w.WriteLong(c.val, c.k)
		}
	}
	buf := w.Flush()

	r := NewReader(buf)
	for _, c := range chunks {
		var got uint64
		if c.k <= 57 {
			got = r.Read(c.k)
		} else {
			got = r.ReadLong(c.k)
		}
		require.Equal(t, c.val&mask64(c.k), got, "chunk k=%d", c.k)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	type chunk struct {
		val uint64
		k   uint
	}
	chunks := []chunk{
		{0x1, 1}, {0x0, 1}, {0x3, 2}, {0x2a, 6},
		{0x1ff, 9}, {0xdeadbeef, 32}, {0x1234567890abcdef, 64},
		{0, 57}, {^uint64(0), 57}, {0x7, 3},
	}

	w := NewWriter(16)
	for _, c := range chunks {
		if c.k <= 57 {
			w.Write(c.val, c.k)
		} else {
			w.WriteLong(c.val, c.k)
		}
	}
	buf := w.Flush()

	r := NewReader(buf)
	for _, c := range chunks {
		var got uint64
		if c.k <= 57 {
			got = r.Read(c.k)
		} else {
			got = r.ReadLong(c.k)
		}
		want := c.val & mask64(c.k)
		require.Equal(t, want, got, "chunk k=%d", c.k)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	w := NewWriter(4)
	w.Write(0x5a, 8)
	w.Write(0x3, 2)
	buf := w.Flush()

	r := NewReader(buf)
	p1 := r.Peek(8)
	p2 := r.Peek(8)
	require.Equal(t, p1, p2)
	require.Equal(t, uint64(0x5a), r.Read(8))
	require.Equal(t, uint64(0x3), r.Read(2))
}

func TestSeekToByteAndBit(t *testing.T) {
	w := NewWriter(8)
	for i := 0; i < 8; i++ {
		w.Write(uint64(i), 8)
	}
	buf := w.Flush()

	r := NewReader(buf)
	r.SeekToByte(3)
	require.Equal(t, uint64(3), r.Read(8))

	r.SeekToBit(4*8 + 4)
	got := r.Read(4)
	require.Equal(t, uint64(4>>4), got)
}

func TestGrowToAccomodateGeometric(t *testing.T) {
	w := NewWriter(0)
	for i := 0; i < 1000; i++ {
		w.Write(uint64(i&0xff), 8)
	}
	buf := w.Flush()
	require.Equal(t, 1000, len(buf))
}

func TestShortBufferPanicsAsError(t *testing.T) {
	r := NewReader([]byte{0x01})
	require.Panics(t, func() { r.Read(40) })
}
