// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

// This file collects the node-index arithmetic that keeps a level's
// child counts addressable by a single ever-growing integer while the
// archive stores them in fixed 2^BlockBits-sized blocks.

// NodeToBlockIndex returns which block node index idx falls in.
func NodeToBlockIndex(idx uint64, blockBits uint) uint64 {
	return idx >> blockBits
}

// NodeIndexInBlock returns idx's offset within its block.
func NodeIndexInBlock(idx uint64, blockBits uint) uint64 {
	return idx & (uint64(1)<<blockBits - 1)
}

// LevelToHeight converts a resolution level (0 = coarsest, NLevels-1 =
// finest) to the tree height of that level's root (global root = height
// 0). Level l >= 1 is peeled off by resolution split number NLevels-l,
// so its root sits at height NLevels-l; level 0 is the remainder of the
// last split and shares level 1's height (with NLevels == 1 it is the
// global root).
func LevelToHeight(level, nlevels int) int {
	h := nlevels - level
	if level == 0 {
		h--
	}
	return h
}

// NumBlocksAtLeaf returns the number of blocks in the refinement
// sub-tree rooted at level's leaves, at the given block-bits and base
// height.
func NumBlocksAtLeaf(level, nlevels, baseHeight, blockBits int) int64 {
	e := baseHeight - LevelToHeight(level, nlevels) - blockBits
	if e < 0 {
		e = 0
	}
	return int64(1) << uint(e)
}

// NumNodesAtLeaf returns the number of leaf nodes (at the base grid
// resolution) under level's tree.
func NumNodesAtLeaf(level, nlevels, baseHeight int) int64 {
	e := baseHeight - LevelToHeight(level, nlevels)
	if e < 0 {
		e = 0
	}
	return int64(1) << uint(e)
}

// LevelToResNode returns the resolution tree's node index holding
// level's particle count.
func LevelToResNode(level, nlevels int) int {
	v := 0
	if level > 0 {
		v = 1
	}
	return v + (nlevels-1-level)*2
}

// ResParent returns the resolution-tree index of i's parent. The
// resolution tree stores node i's sibling pair at indices 2k-1, 2k for
// k >= 1; index 0 is the overall root (total particle count).
func ResParent(i int) int {
	return i - (2 - (i & 1))
}
