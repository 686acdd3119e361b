// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package rangecoder

import (
	"testing"

	"github.com/hoang-dt/binomial-coding/internal/bitio"
	"github.com/stretchr/testify/require"
)

func TestBinomialCDFMonotoneAndTotal(t *testing.T) {
	for n := 0; n < cutoff1; n++ {
		cdf := BinomialCDF(n)
		require.Equal(t, uint32(0), cdf[0])
		for i := 1; i < len(cdf); i++ {
			require.GreaterOrEqual(t, cdf[i], cdf[i-1])
		}
		require.Equal(t, uint32(1)<<uint(n), cdf[len(cdf)-1])
	}
}

func TestSmallRangeRoundTripCDFPath(t *testing.T) {
	for n := 0; n < cutoff1; n++ {
		w := bitio.NewWriter(64)
		enc := NewEncoder(w)
		values := make([]int, 0, n+1)
		for v := 0; v <= n; v++ {
			values = append(values, v)
		}
		for _, v := range values {
			EncodeSmallRange(enc, v, n)
		}
		enc.Finish()
		buf := w.Flush()

		r := bitio.NewReader(buf)
		dec := NewDecoder(r)
		for _, want := range values {
			got := DecodeSmallRange(dec, n)
			require.Equal(t, want, got, "n=%d", n)
		}
	}
}

func TestSmallRangeRoundTripCenteredMinimalPath(t *testing.T) {
	ns := []int{32, 33, 63, 64, 1000, 4095}
	for _, n := range ns {
		probe := []int{0, 1, n / 2, n - 1, n}
		w := bitio.NewWriter(64)
		enc := NewEncoder(w)
		for _, v := range probe {
			EncodeSmallRange(enc, v, n)
		}
		enc.Finish()
		buf := w.Flush()

		r := bitio.NewReader(buf)
		dec := NewDecoder(r)
		for _, want := range probe {
			got := DecodeSmallRange(dec, n)
			require.Equal(t, want, got, "n=%d", n)
		}
	}
}

func TestCenteredRankUnrankInverse(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 10, 11, 100} {
		for v := 0; v <= n; v++ {
			rank := centeredRank(v, n)
			require.Equal(t, v, centeredUnrank(rank, n), "n=%d v=%d", n, v)
		}
	}
}

func TestCenteredRankCoversWholeRangeExactlyOnce(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 10, 11, 100, 257} {
		seen := make(map[int]bool, n+1)
		for v := 0; v <= n; v++ {
			r := centeredRank(v, n)
			require.False(t, seen[r], "duplicate rank %d for n=%d", r, n)
			seen[r] = true
			require.GreaterOrEqual(t, r, 0)
			require.LessOrEqual(t, r, n)
		}
	}
}
