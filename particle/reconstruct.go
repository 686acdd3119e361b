// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"math/bits"
	"math/rand"
)

// reconItem is the reconstruction walk's counterpart to qItem: just
// enough state (current node, its voxel lattice, split axis, and tree
// height) to keep descending without ever touching a particle.
type reconItem struct {
	nodeIdx uint64
	grid    Grid
	axis    int
	height  int
}

// Reconstruct walks level's decoded tree from its root and returns one
// particle per populated base-grid voxel it can resolve, refined by leaf
// refinement bits where the decoder has them. A level whose root block
// (block 0) has not been fetched yields no particles. Inside a fetched
// level, wherever a node's own split hasn't been fetched (budget-limited
// decode, or a Scheduler run that stopped early), its whole subtree is
// instead filled by uniform reservoir sampling.
func Reconstruct(dec *Decoder, level int, rng *rand.Rand) ([]Particle, error) {
	params := dec.Params
	total, known, err := dec.GetNode(level, 1)
	if err != nil {
		return nil, err
	}
	if !known || total == 0 || !dec.blockLoaded[level][0] {
		return nil, nil
	}
	grid, axis, height := levelRoot(params, level)
	var out []Particle
	if err := reconstructNode(dec, level, reconItem{nodeIdx: 1, grid: grid, axis: axis, height: height}, total, rng, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// levelRoot computes the grid, split axis, and global tree height at
// which level's own local spatial tree begins, by structurally replaying
// the resolution-split cascade BuildTree performs: axis cycling and grid
// bisection never depend on particle counts, so this walk needs none.
func levelRoot(params *Params, level int) (Grid, int, int) {
	grid := params.BaseGrid()
	axis := 0
	height := 0
	for curLevel := params.NLevels - 1; curLevel > 0; curLevel-- {
		if curLevel == level {
			right := SplitGrid(grid, axis, ResolutionSplit, Right)
			return right, (axis + 1) % params.NDims, height + 1
		}
		grid = SplitGrid(grid, axis, ResolutionSplit, Left)
		axis = (axis + 1) % params.NDims
		height++
	}
	return grid, axis, height
}

// nodeGrid recomputes nodeIdx's spatial grid within level's own local
// tree by replaying the same Left/Right bisections BuildTree performed
// along nodeIdx's root path. nodeIdx's binary representation (above its
// leading bit) is exactly that path, so this needs no stored data and
// agrees with the encoder whether or not any block has been fetched.
func nodeGrid(params *Params, level int, nodeIdx uint64) (Grid, int) {
	grid, axis, _ := levelRoot(params, level)
	depth := bits.Len64(nodeIdx) - 1
	for i := depth - 1; i >= 0; i-- {
		dir := Left
		if (nodeIdx>>uint(i))&1 == 1 {
			dir = Right
		}
		grid = SplitGrid(grid, axis, SpatialSplit, dir)
		axis = (axis + 1) % params.NDims
	}
	return grid, axis
}

func reconstructNode(dec *Decoder, level int, item reconItem, total int64, rng *rand.Rand, out *[]Particle) error {
	params := dec.Params
	if total <= 0 {
		return nil
	}
	if item.height >= params.BaseHeight {
		return emitLeaf(dec, level, item, rng, out)
	}
	if total <= int64(params.MaxParticleSubSampling) {
		emitUniform(item.grid, 1, rng, out, params)
		return nil
	}

	leftIdx, rightIdx := item.nodeIdx*2, item.nodeIdx*2+1
	leftTotal, leftKnown, err := dec.GetNode(level, leftIdx)
	if err != nil {
		return err
	}
	if !leftKnown {
		// This node's own split was never fetched; nothing more is
		// known about its interior than the total itself.
		emitUniform(item.grid, total, rng, out, params)
		return nil
	}
	rightTotal := total - leftTotal

	nextAxis := (item.axis + 1) % params.NDims
	if leftTotal > 0 {
		leftGrid := SplitGrid(item.grid, item.axis, SpatialSplit, Left)
		child := reconItem{nodeIdx: leftIdx, grid: leftGrid, axis: nextAxis, height: item.height + 1}
		if err := reconstructNode(dec, level, child, leftTotal, rng, out); err != nil {
			return err
		}
	}
	if rightTotal > 0 {
		rightGrid := SplitGrid(item.grid, item.axis, SpatialSplit, Right)
		child := reconItem{nodeIdx: rightIdx, grid: rightGrid, axis: nextAxis, height: item.height + 1}
		if err := reconstructNode(dec, level, child, rightTotal, rng, out); err != nil {
			return err
		}
	}
	return nil
}

// emitLeaf narrows grid's voxel bounding box by whatever refinement bits
// the decoder has for this leaf, then emits one particle uniformly inside
// whatever box remains.
func emitLeaf(dec *Decoder, level int, item reconItem, rng *rand.Rand, out *[]Particle) error {
	params := dec.Params
	box := VoxelBounds(params.BBox, params.CellSize(), item.grid)
	axis := params.BaseHeight % params.NDims
	for k := 0; ; k++ {
		bit, found, err := dec.RefinementBit(level, item.nodeIdx, k)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		half := (box.Max[axis] + box.Min[axis]) * 0.5
		if bit {
			box.Max[axis] = half
		} else {
			box.Min[axis] = half
		}
		axis = (axis + 1) % params.NDims
	}
	*out = append(*out, Particle{Pos: uniformIn(box, rng)})
	return nil
}

// emitUniform reservoir-samples k voxels out of grid's lattice (scanline
// order, replacing a uniformly chosen reservoir slot with probability
// k/(i+1) for each voxel past the k-th) and emits one uniformly placed
// particle inside each chosen voxel.
func emitUniform(grid Grid, k int64, rng *rand.Rand, out *[]Particle, params *Params) {
	nx, ny, nz := dimOrOne(grid.Dims[0]), dimOrOne(grid.Dims[1]), dimOrOne(grid.Dims[2])
	total := nx * ny * nz
	if k > total {
		k = total
	}
	if k <= 0 {
		return
	}
	reservoir := make([]int64, 0, k)
	var i int64
	for zi := int64(0); zi < nz; zi++ {
		for yi := int64(0); yi < ny; yi++ {
			for xi := int64(0); xi < nx; xi++ {
				switch {
				case int64(len(reservoir)) < k:
					reservoir = append(reservoir, i)
				case rng.Float64() < float64(k)/float64(i+1):
					reservoir[rng.Intn(int(k))] = i
				}
				i++
			}
		}
	}

	w := params.CellSize()
	for _, idx := range reservoir {
		xi := idx % nx
		yi := (idx / nx) % ny
		zi := idx / (nx * ny)
		cell := Grid{
			From: Vec3{
				grid.From[0] + float64(xi)*grid.Stride[0],
				grid.From[1] + float64(yi)*grid.Stride[1],
				grid.From[2] + float64(zi)*grid.Stride[2],
			},
			Dims:   Vec3{1, 1, 1},
			Stride: grid.Stride,
		}
		box := VoxelBounds(params.BBox, w, cell)
		*out = append(*out, Particle{Pos: uniformIn(box, rng)})
	}
}

func dimOrOne(d float64) int64 {
	n := int64(d)
	if n < 1 {
		return 1
	}
	return n
}

func uniformIn(box BBox, rng *rand.Rand) Vec3 {
	return Vec3{
		box.Min[0] + rng.Float64()*(box.Max[0]-box.Min[0]),
		box.Min[1] + rng.Float64()*(box.Max[1]-box.Min[1]),
		box.Min[2] + rng.Float64()*(box.Max[2]-box.Min[2]),
	}
}
