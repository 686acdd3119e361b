// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package rangecoder

import "math/bits"

// centeredRank maps v, a value in [0, n], to its position in the
// center-outward enumeration of that range: rank 0 is n/2, rank 1 is the
// nearest value above center, rank 2 the nearest below, and so on,
// continuing past whichever side of the center runs out first. A
// truncated binary code built on top of this ordering spends its short
// codewords on values near n/2, where a binomial(n, 1/2) count actually
// concentrates, instead of on the low end of the range.
func centeredRank(v, n int) int {
	center := n / 2
	left, right := center, n-center
	switch {
	case v == center:
		return 0
	case v > center:
		d := v - center
		if d <= left {
			return 2*d - 1
		}
		return 2*left + (d - left)
	default:
		d := center - v
		if d <= right {
			return 2 * d
		}
		return 2*right + (d - right)
	}
}

// centeredUnrank is the inverse of centeredRank.
func centeredUnrank(rank, n int) int {
	center := n / 2
	left, right := center, n-center
	if rank == 0 {
		return center
	}
	m := left
	if right < m {
		m = right
	}
	if rank <= 2*m {
		if rank%2 == 1 {
			return center + (rank+1)/2
		}
		return center - rank/2
	}
	rem := rank - 2*m
	if left <= right {
		return center + left + rem
	}
	return center - right - rem
}

// truncatedBinaryShape returns the bit-length b of the short codeword
// and the count u of symbols (out of the m = n+1 total) that get one.
func truncatedBinaryShape(n int) (b uint, u int) {
	m := n + 1
	b = uint(bits.Len(uint(m))) - 1
	u = (1 << (b + 1)) - m
	return b, u
}

// EncodeCenteredMinimal arithmetic-codes v in [0, n] as a truncated
// binary code over the center-outward ranking of the range, writing each
// resulting bit through e with a uniform 50/50 probability so it shares
// the same coder state and output stream as EncodeCDF.
func EncodeCenteredMinimal(e *Encoder, v, n int) {
	if n == 0 {
		return
	}
	b, u := truncatedBinaryShape(n)
	rank := centeredRank(v, n)
	if rank < u {
		encodeBits(e, uint64(rank), b)
		return
	}
	encodeBits(e, uint64(rank+u), b+1)
}

// DecodeCenteredMinimal is the inverse of EncodeCenteredMinimal.
func DecodeCenteredMinimal(d *Decoder, n int) int {
	if n == 0 {
		return 0
	}
	b, u := truncatedBinaryShape(n)
	top := decodeBits(d, b)
	var rank int
	if int(top) < u {
		rank = int(top)
	} else {
		extra := decodeBits(d, 1)
		rank = int(top)*2 + int(extra) - u
	}
	return centeredUnrank(rank, n)
}

func encodeBits(e *Encoder, v uint64, k uint) {
	for i := int(k) - 1; i >= 0; i-- {
		if (v>>uint(i))&1 == 0 {
			e.Encode(Prob{0, 1, 2})
		} else {
			e.Encode(Prob{1, 2, 2})
		}
	}
}

func decodeBits(d *Decoder, k uint) uint64 {
	var v uint64
	for i := uint(0); i < k; i++ {
		f := d.GetFreq(2)
		if f < 1 {
			d.Decode(Prob{0, 1, 2})
			v <<= 1
		} else {
			d.Decode(Prob{1, 2, 2})
			v = (v << 1) | 1
		}
	}
	return v
}
