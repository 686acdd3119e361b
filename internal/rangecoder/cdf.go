// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package rangecoder

// CDF is a cumulative-frequency table over the alphabet {0, ..., len(CDF)-2}:
// CDF[k] is the cumulative weight of symbols below k, and CDF[len(CDF)-1]
// is the total weight. CDF[0] == 0 always.
type CDF []uint32

// binomialCache holds BinomialCDF(n) for every n this process has asked
// for so far; the coder runs single-threaded (see the concurrency model),
// so no lock guards it.
var binomialCache [cutoff1]CDF

// BinomialCDF returns the cumulative-frequency table for Binomial(n, 1/2):
// symbol k carries weight C(n, k). This is the prior used to compress a
// split node's left-child particle count, which is expected to land near
// n/2 when particles are distributed close to evenly by a spatial split.
// Valid only for 0 <= n < cutoff1, which keeps the total weight, 2^n,
// inside a uint32.
func BinomialCDF(n int) CDF {
	if n < 0 || n >= cutoff1 {
		panic(Error("BinomialCDF: n out of range"))
	}
	if binomialCache[n] != nil {
		return binomialCache[n]
	}
	row := make([]uint64, n+1)
	row[0] = 1
	for i := 1; i <= n; i++ {
		for j := i; j > 0; j-- {
			row[j] += row[j-1]
		}
	}
	cdf := make(CDF, n+2)
	var sum uint64
	for k := 0; k <= n; k++ {
		cdf[k] = uint32(sum)
		sum += row[k]
	}
	cdf[n+1] = uint32(sum)
	binomialCache[n] = cdf
	return cdf
}

// EncodeCDF arithmetic-codes symbol v (0 <= v < len(cdf)-1) against cdf.
func EncodeCDF(e *Encoder, cdf CDF, v int) {
	total := cdf[len(cdf)-1]
	e.Encode(Prob{cdf[v], cdf[v+1], total})
}

// DecodeCDF arithmetic-decodes the next symbol against cdf.
func DecodeCDF(d *Decoder, cdf CDF) int {
	total := cdf[len(cdf)-1]
	f := d.GetFreq(total)
	lo, hi := 0, len(cdf)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if cdf[mid] <= f {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	d.Decode(Prob{cdf[lo], cdf[lo+1], total})
	return lo
}
