// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package rangecoder implements the small-range integer coder used to
// compress per-node child counts: a carryless arithmetic coder driven by
// a binomial cumulative-frequency table for small alphabets, falling
// back to a centered-minimal prefix code (also arithmetic-coded, as a
// sequence of uniform bits, so both paths share one coder instance and
// one output bitstream) once the alphabet grows past the table's
// practical size.
package rangecoder

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "rangecoder: " + string(e) }

// Prob describes a half-open cumulative-frequency interval [Low, High)
// within a Count-wide probability range, as required by Encoder.Encode
// and Decoder.Decode. 0 <= Low < High <= Count.
type Prob struct {
	Low, High, Count uint32
}

// cutoff1 bounds the alphabet size N+1 for which BinomialCDF(N) is used
// directly (N <= cutoff1-1); beyond it
// EncodeCenteredMinimal/DecodeCenteredMinimal take over.
const cutoff1 = 32
