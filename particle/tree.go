// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

// refKey identifies one leaf of the base-grid tree whose particle has
// refinement bits recorded for it.
type refKey struct {
	Level   int
	NodeIdx uint64
}

// Tree is the in-memory result of partitioning a particle cloud: the
// resolution tree's per-level particle counts, each level's own
// spatial-split child counts keyed by node index, and every leaf
// particle's sub-voxel refinement bits. BuildTree produces one; Encode
// (encode.go) is what actually serializes it to block files.
type Tree struct {
	Params *Params

	// ResNodes holds the resolution tree: 2*NLevels-1 entries, ResNodes[0]
	// is the total particle count, and for k = 1..NLevels-1 the pair
	// (ResNodes[2k-1], ResNodes[2k]) is the (finer, coarser-remainder)
	// split of ResNodes[2(k-1)] â€” see node.go's ResParent.
	ResNodes []int64

	// Levels[level] maps a spatial-tree node index to that node's own
	// particle count and its left child's count (the right child's
	// count is Total - Left and is never stored separately).
	Levels []map[uint64]levelNode

	// RefBits holds each base-grid leaf's refinement bit sequence (one
	// bit per height beyond Params.BaseHeight, nested half-space
	// bisection), keyed by the (level, leaf node index) that reached it.
	RefBits map[refKey][]bool
}

// levelNode is one spatial-tree node's recorded count pair.
type levelNode struct {
	Total, Left int64
}

type qItem struct {
	begin, end int
	level      int
	nodeIdx    uint64
	resIdx     int
	grid       Grid
	axis       int
	height     int
	split      SplitKind
}

// BuildTree partitions particles into the multiresolution tree described
// by params, which must already have BaseHeight/LogDims3 populated (see
// Params.ComputeGrid) and MaxHeight set. particles is not modified; a
// working copy is partitioned internally.
func BuildTree(particles []Particle, params *Params) *Tree {
	t := &Tree{
		Params:   params,
		ResNodes: make([]int64, maxInt(1, 2*params.NLevels-1)),
		Levels:   make([]map[uint64]levelNode, params.NLevels),
		RefBits:  make(map[refKey][]bool),
	}
	for i := range t.Levels {
		t.Levels[i] = make(map[uint64]levelNode)
	}
	if len(particles) == 0 {
		return t
	}

	work := make([]Particle, len(particles))
	copy(work, particles)
	t.ResNodes[0] = int64(len(work))

	initSplit := SpatialSplit
	if params.NLevels > 1 {
		initSplit = ResolutionSplit
	}
	w := params.CellSize()

	queue := []qItem{{
		begin: 0, end: len(work),
		level:   params.NLevels - 1,
		nodeIdx: 1,
		resIdx:  0,
		grid:    params.BaseGrid(),
		axis:    0,
		height:  0,
		split:   initSplit,
	}}

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]

		nn := int64(q.end - q.begin)
		if nn == 0 || q.height > params.MaxHeight {
			continue
		}
		if q.split == SpatialSplit && q.height < params.BaseHeight && accuracySatisfied(params, q.grid, nn, w) {
			continue
		}

		if q.height < params.BaseHeight {
			t.splitInner(work, q, nn, &queue, w)
		} else {
			voxel := VoxelBounds(params.BBox, w, q.grid)
			bits := encodeRefinement(work[q.begin], voxel, params.NDims, params.BaseHeight, params.MaxHeight)
			if len(bits) > 0 {
				t.RefBits[refKey{Level: q.level, NodeIdx: q.nodeIdx}] = bits
			}
		}
	}
	return t
}

// accuracySatisfied reports whether a node spanning grid with nn
// particles already meets params.Accuracy on every axis in use: per-axis
// error E[d] = w[d]·grid.Dims[d]/nn, the same N-dependent test the
// reference encoder runs before partitioning each queue item. Applied
// only to the base (spatial-split) tree: the resolution cascade's
// per-level particle counts are always fully resolved, since the
// resolution file format has no representation for a branch left
// un-split partway through it.
func accuracySatisfied(params *Params, grid Grid, nn int64, w Vec3) bool {
	if params.Accuracy <= 0 || nn <= 0 {
		return false
	}
	for d := 0; d < params.NDims; d++ {
		if w[d]*grid.Dims[d]/float64(nn) > params.Accuracy {
			return false
		}
	}
	return true
}

func (t *Tree) splitInner(work []Particle, q qItem, nn int64, queue *[]qItem, w Vec3) {
	params := t.Params
	var mid int
	if q.split == ResolutionSplit {
		mid = partitionResolution(work, q.begin, q.end, q.axis, q.grid, params)
	} else {
		mid = partitionSpatial(work, q.begin, q.end, q.axis, params, q.grid)
	}
	leftN := int64(mid - q.begin)

	if q.split == ResolutionSplit {
		if q.begin < mid {
			t.ResNodes[q.resIdx+2] = leftN
		}
		if mid < q.end {
			t.ResNodes[q.resIdx+1] = nn - leftN
		}
	} else {
		t.Levels[q.level][q.nodeIdx] = levelNode{Total: nn, Left: leftN}
	}

	nextAxis := (q.axis + 1) % params.NDims
	if q.begin < mid {
		childSplit := SpatialSplit
		childLevel, childNodeIdx, childResIdx := q.level, q.nodeIdx, q.resIdx
		if q.split == ResolutionSplit {
			if nn > 1 && q.level > 1 {
				childSplit = ResolutionSplit
			}
			childLevel = q.level - 1
			childResIdx = q.resIdx + 2
		} else {
			childNodeIdx = q.nodeIdx * 2
		}
		*queue = append(*queue, qItem{
			begin: q.begin, end: mid,
			level: childLevel, nodeIdx: childNodeIdx, resIdx: childResIdx,
			grid:   SplitGrid(q.grid, q.axis, q.split, Left),
			axis:   nextAxis,
			height: q.height + 1,
			split:  childSplit,
		})
	}
	if mid < q.end {
		// A resolution split's right child is peeled off at q.level for
		// good: its spatial sub-tree is numbered independently, rebased
		// to local node 1, the same convention the regular-block decoder
		// relies on when it seeds a level's node 1 from the resolution
		// tree. A spatial split's right child keeps doubling q.nodeIdx
		// as usual.
		childNodeIdx := q.nodeIdx*2 + 1
		if q.split == ResolutionSplit {
			childNodeIdx = 1
		}
		*queue = append(*queue, qItem{
			begin: mid, end: q.end,
			level: q.level, nodeIdx: childNodeIdx, resIdx: q.resIdx + 1,
			grid:   SplitGrid(q.grid, q.axis, q.split, Right),
			axis:   nextAxis,
			height: q.height + 1,
			split:  SpatialSplit,
		})
	}
}

// partitionResolution classifies each particle in work[begin:end] by the
// parity of its base-grid cell index along axis within g, placing
// even-indexed cells (relative to g.From, in steps of g.Stride) first.
func partitionResolution(work []Particle, begin, end, axis int, g Grid, params *Params) int {
	w := params.CellSize()
	baseDim := int64(params.BaseGrid().Dims[axis])
	from := int64(g.From[axis])
	stride := int64(g.Stride[axis])
	return begin + partitionBy(work[begin:end], func(p Particle) bool {
		bin := int64((p.Pos[axis] - params.BBox.Min[axis]) / w[axis])
		if bin > baseDim-1 {
			bin = baseDim - 1
		}
		if bin < 0 {
			bin = 0
		}
		bin = (bin - from) / stride
		return bin%2 == 0
	})
}

// partitionSpatial bisects work[begin:end] at the midpoint of g's extent
// along axis.
func partitionSpatial(work []Particle, begin, end, axis int, params *Params, g Grid) int {
	w := params.CellSize()
	s := 1.0
	if g.Dims[axis] > 1.5 {
		s = g.Stride[axis]
	}
	mid := params.BBox.Min[axis] + w[axis]*(g.From[axis]+g.Dims[axis]*0.5*s)
	return begin + partitionBy(work[begin:end], func(p Particle) bool {
		return p.Pos[axis] < mid
	})
}

// encodeRefinement narrows voxel by nested half-space bisection from
// baseHeight+1 to maxHeight, cycling the split axis starting where the
// base grid's own axis cycle left off, returning one bit per height
// (true means the particle fell in the lower half).
func encodeRefinement(p Particle, voxel BBox, ndims, baseHeight, maxHeight int) []bool {
	if maxHeight <= baseHeight {
		return nil
	}
	bbox := voxel
	axis := baseHeight % ndims
	bits := make([]bool, 0, maxHeight-baseHeight)
	for h := baseHeight + 1; h <= maxHeight; h++ {
		half := (bbox.Max[axis] + bbox.Min[axis]) * 0.5
		left := p.Pos[axis] < half
		bits = append(bits, left)
		if left {
			bbox.Max[axis] = half
		} else {
			bbox.Min[axis] = half
		}
		axis = (axis + 1) % ndims
	}
	return bits
}
