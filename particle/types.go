// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

// Vec3 is a 3-component float vector. 2D data leaves the third
// component at 0; NDims tells components [0:NDims] apart from the
// always-zero padding.
type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Mul(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

// MulElem multiplies component-wise.
func (v Vec3) MulElem(o Vec3) Vec3 { return Vec3{v[0] * o[0], v[1] * o[1], v[2] * o[2]} }

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min, Max Vec3
}

// Extent returns Max - Min.
func (b BBox) Extent() Vec3 { return b.Max.Sub(b.Min) }

// Particle is one point in the cloud: an opaque tag byte plus a position.
// The archive does not store tags; reconstructed particles have Tag 0.
type Particle struct {
	Tag byte
	Pos Vec3
}

// Side names which half of a split a child grid occupies.
type Side int

const (
	Left Side = iota
	Right
)

// SplitKind distinguishes the two ways a node's particle range is
// divided: a resolution split interleaves even- and odd-indexed grid
// cells along one axis (built top-down, coarsest level first); a
// spatial split bisects the grid's remaining extent along one axis.
type SplitKind int

const (
	SpatialSplit SplitKind = iota
	ResolutionSplit
)

// Grid describes an axis-aligned lattice of grid-cell indices: valid
// indices along axis d are From[d], From[d]+Stride[d], From[d]+2*Stride[d],
// ..., for Dims[d] steps. All three fields are always integer-valued,
// kept as float64 so the same Vec3 arithmetic used for positions applies
// to grid coordinates too.
type Grid struct {
	From, Dims, Stride Vec3
}

// SplitGrid returns the sub-grid occupied by side of a split of g along
// axis, for the given split kind.
func SplitGrid(g Grid, axis int, kind SplitKind, side Side) Grid {
	out := g
	switch kind {
	case SpatialSplit:
		half := float64(int64(g.Dims[axis]) / 2)
		switch side {
		case Left:
			out.Dims[axis] = half
		case Right:
			out.Dims[axis] = g.Dims[axis] - half
			out.From[axis] = g.From[axis] + half*g.Stride[axis]
		}
	case ResolutionSplit:
		n := int64(g.Dims[axis])
		out.Stride[axis] = g.Stride[axis] * 2
		switch side {
		case Left: // even-indexed cells
			out.Dims[axis] = float64((n + 1) / 2)
		case Right: // odd-indexed cells
			out.Dims[axis] = float64(n / 2)
			out.From[axis] = g.From[axis] + g.Stride[axis]
		}
	}
	return out
}

// VoxelBounds maps a 1x1x1 grid cell (g.Dims all <= 1, reached at the
// base grid resolution) back to a world-space bounding box, given the
// global bounding box and per-axis world/cell-count ratio w.
func VoxelBounds(global BBox, w Vec3, g Grid) BBox {
	return BBox{
		Min: global.Min.Add(g.From.MulElem(w)),
		Max: global.Min.Add(g.From.Add(g.Dims).MulElem(w)),
	}
}
