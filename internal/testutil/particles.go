// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package testutil

// UniformParticles returns n points drawn uniformly from [0,1)^3 (the
// third coordinate held at 0 when ndims == 2), using r so callers get a
// reproducible cloud across runs and Go versions.
func UniformParticles(r *Rand, n, ndims int) [][3]float64 {
	pts := make([][3]float64, n)
	for i := range pts {
		for d := 0; d < ndims; d++ {
			pts[i][d] = r.Float64()
		}
	}
	return pts
}

// ClusteredParticles returns n points split evenly across nClusters
// Gaussian-like blobs (a sum of uniform deviates approximating a normal
// distribution, avoiding a dependency on math/rand's NormFloat64) each
// centered at a random point in [0,1)^3, with the given standard
// deviation. This exercises the partitioner against lopsided point
// densities instead of UniformParticles' even spread.
func ClusteredParticles(r *Rand, n, ndims, nClusters int, stddev float64) [][3]float64 {
	if nClusters < 1 {
		nClusters = 1
	}
	centers := make([][3]float64, nClusters)
	for i := range centers {
		for d := 0; d < ndims; d++ {
			centers[i][d] = r.Float64()
		}
	}
	pts := make([][3]float64, n)
	for i := range pts {
		c := centers[i%nClusters]
		for d := 0; d < ndims; d++ {
			pts[i][d] = clamp01(c[d] + approxNormal(r)*stddev)
		}
	}
	return pts
}

// approxNormal approximates a standard normal deviate via the
// Irwin-Hall sum of twelve uniforms, shifted to mean 0.
func approxNormal(r *Rand) float64 {
	var sum float64
	for i := 0; i < 12; i++ {
		sum += r.Float64()
	}
	return sum - 6
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.9999999999
	}
	return v
}

// Tags returns n opaque single-character tags (the XYZ format's
// per-particle leading column), cycling through a small alphabet.
func Tags(n int) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	tags := make([]byte, n)
	for i := range tags {
		tags[i] = alphabet[i%len(alphabet)]
	}
	return tags
}
