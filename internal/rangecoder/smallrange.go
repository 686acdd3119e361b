// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package rangecoder

// EncodeSmallRange arithmetic-codes v, a count in [0, n], using the
// binomial CDF table when the alphabet is small enough for one to be
// worth building, and the centered-minimal prefix code otherwise.
func EncodeSmallRange(e *Encoder, v, n int) {
	if n+1 <= cutoff1 {
		EncodeCDF(e, BinomialCDF(n), v)
		return
	}
	EncodeCenteredMinimal(e, v, n)
}

// DecodeSmallRange is the inverse of EncodeSmallRange.
func DecodeSmallRange(d *Decoder, n int) int {
	if n+1 <= cutoff1 {
		return DecodeCDF(d, BinomialCDF(n))
	}
	return DecodeCenteredMinimal(d, n)
}
