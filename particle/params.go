// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Params is the single configuration record threaded through an Encoder
// or Decoder for one archive. Fields above the blank line are persisted
// to the archive's metadata file; fields below are decode-session-only
// knobs that never round-trip.
type Params struct {
	Name       string
	NDims      int
	NLevels    int
	BlockBits  int
	Accuracy   float64
	MaxHeight  int
	BBox       BBox
	LogDims3   [3]int
	BaseHeight int
	NParticles int64

	// MaxLevel, MaxNBlocks and ByError record a decode session's level
	// ceiling, block budget and refinement strategy; the Scheduler does
	// not read them, since NewScheduler takes those as arguments.
	// MaxParticleSubSampling lets the reconstructor stop descending once
	// a node's particle count is at or below this and emit one
	// representative particle for that subtree instead of resolving it.
	MaxLevel               int
	MaxNBlocks             int
	MaxParticleSubSampling int
	ByError                bool

	Log logrus.FieldLogger
}

// logger returns p.Log, defaulting to the standard logger so a
// zero-value Params still works.
func (p *Params) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// Validate checks the invariants an Encoder/Decoder requires of Params
// before starting work.
func (p *Params) Validate() error {
	switch {
	case p.NDims != 2 && p.NDims != 3:
		return Error("NDims must be 2 or 3")
	case p.NLevels < 1:
		return Error("NLevels must be >= 1")
	case p.BlockBits < 1 || p.BlockBits > 20:
		return Error("BlockBits out of range")
	case p.BBox.Extent()[0] < 0 || p.BBox.Extent()[1] < 0 || (p.NDims == 3 && p.BBox.Extent()[2] < 0):
		return Error("bounding box has negative extent")
	}
	return nil
}

// log2Floor returns floor(log2(x)) for x >= 1.
func log2Floor(x int) int {
	if x < 1 {
		return 0
	}
	return int(math.Floor(math.Log2(float64(x))))
}

// computeGrid recursively halves particles (as ComputeGrid does in the
// reference encoder) to find, per axis, the smallest power-of-two grid
// whose cells hold at most one particle each, returning the log2 of the
// per-axis cell count.
func computeGrid(particles []Particle, bbox BBox, begin, end int, axis, ndims int) [3]int {
	if begin >= end-1 {
		return [3]int{}
	}
	middle := (bbox.Min[axis] + bbox.Max[axis]) * 0.5
	mid := partitionBy(particles[begin:end], func(p Particle) bool { return p.Pos[axis] < middle }) + begin

	var left, right [3]int
	nextAxis := (axis + 1) % ndims
	if begin+1 < mid {
		leftBox := bbox
		leftBox.Max[axis] = middle
		left = computeGrid(particles, leftBox, begin, mid, nextAxis, ndims)
		left[axis]++
	} else {
		left[axis] = 1
	}
	if mid+1 < end {
		rightBox := bbox
		rightBox.Min[axis] = middle
		right = computeGrid(particles, rightBox, mid, end, nextAxis, ndims)
		right[axis]++
	} else {
		right[axis] = 1
	}
	var out [3]int
	for i := 0; i < 3; i++ {
		out[i] = maxInt(left[i], right[i])
	}
	return out
}

// partitionBy reorders particles in place so every element for which
// pred is true comes first, mirroring std::partition, and returns the
// index of the first element for which pred is false.
func partitionBy(particles []Particle, pred func(Particle) bool) int {
	i := 0
	for j := 0; j < len(particles); j++ {
		if pred(particles[j]) {
			particles[i], particles[j] = particles[j], particles[i]
			i++
		}
	}
	return i
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ComputeGrid sets p.LogDims3 and p.BaseHeight from the particle
// distribution: the base grid is the smallest power-of-two lattice
// (measured per axis in log2 cell count) such that no cell need hold
// more than one particle, cycling axes the same way the tree builder
// cycles its split axis.
func (p *Params) ComputeGrid(particles []Particle) {
	if len(particles) == 0 {
		return
	}
	working := make([]Particle, len(particles))
	copy(working, particles)
	p.LogDims3 = computeGrid(working, p.BBox, 0, len(working), 0, p.NDims)
	p.BaseHeight = p.LogDims3[0] + p.LogDims3[1] + p.LogDims3[2]
}

// BaseGrid returns the Grid spanning the whole base lattice, the one
// SplitGrid recursively divides as the tree descends.
func (p *Params) BaseGrid() Grid {
	g := Grid{Stride: Vec3{1, 1, 1}}
	for i := 0; i < 3; i++ {
		g.Dims[i] = float64(int64(1) << uint(p.LogDims3[i]))
	}
	if p.NDims == 2 {
		g.Dims[2] = 1
	}
	return g
}

// CellSize returns the world-space size of one base-grid cell.
func (p *Params) CellSize() Vec3 {
	base := p.BaseGrid()
	ext := p.BBox.Extent()
	return Vec3{ext[0] / base.Dims[0], ext[1] / base.Dims[1], safeDiv(ext[2], base.Dims[2])}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
