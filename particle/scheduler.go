// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import "container/heap"

// SchedulerMode selects how the Scheduler ranks pending blocks.
type SchedulerMode int

const (
	// ByLevel visits blocks in (level, blockId) order: coarsest level
	// first, lowest blockId within a level first.
	ByLevel SchedulerMode = iota
	// ByError ranks blocks by an estimated per-particle refinement
	// error, a voxel-volume / subtree-count ratio.
	ByError
)

type blockKind int

const (
	regularBlock blockKind = iota
	refinementBlock
)

// blockRef names one fetchable unit: a regular spatial-tree block, or a
// refinement sub-block at extra-height index k. height is a monotonic
// per-block generation counter used only to rank and bound priority;
// Decoder derives the real node/bit layout independently of it.
type blockRef struct {
	level   int
	blockID int64
	kind    blockKind
	k       int
	height  int
}

type pqItem struct {
	ref      blockRef
	priority float64
}

type priorityQueue struct {
	mode  SchedulerMode
	items []pqItem
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.mode == ByLevel {
		a, b := pq.items[i].ref, pq.items[j].ref
		if a.level != b.level {
			return a.level < b.level
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.blockID < b.blockID
	}
	return pq.items[i].priority < pq.items[j].priority
}

func (pq *priorityQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *priorityQueue) Push(x interface{}) { pq.items = append(pq.items, x.(pqItem)) }

func (pq *priorityQueue) Pop() interface{} {
	old := pq.items
	n := len(old)
	it := old[n-1]
	pq.items = old[:n-1]
	return it
}

// Scheduler drives a Decoder through its archive in priority order,
// stopping at whichever budget (block count or byte count) runs out
// first, per spec.md's priority-driven decode loop.
type Scheduler struct {
	dec       *Decoder
	mode      SchedulerMode
	maxLevel  int
	maxBlocks int
	maxBytes  int64

	pq      priorityQueue
	visited map[blockRef]bool

	// BlocksRead counts blocks this scheduler successfully decoded.
	BlocksRead int
}

// NewScheduler prepares a Scheduler seeded at the root block of every
// level from 0 through maxLevel. maxLevel <= 0 means "no level ceiling" (refine every level);
// maxBlocks <= 0 or maxBytes <= 0 disables that budget.
func NewScheduler(dec *Decoder, mode SchedulerMode, maxLevel, maxBlocks int, maxBytes int64) *Scheduler {
	if maxLevel <= 0 {
		maxLevel = dec.Params.NLevels - 1
	}
	s := &Scheduler{
		dec:       dec,
		mode:      mode,
		maxLevel:  maxLevel,
		maxBlocks: maxBlocks,
		maxBytes:  maxBytes,
		visited:   make(map[blockRef]bool),
	}
	s.pq.mode = mode
	// Every level's own spatial tree is independently rooted at node 1
	// (see tree.go's resolution-split rebase), and the resolution file
	// that gives each level's root total is read by the Decoder on first
	// use, not through this queue. So every level in range is a valid starting point, not
	// just the coarsest.
	for level := 0; level <= s.maxLevel; level++ {
		root := blockRef{level: level, blockID: 0, kind: regularBlock, height: LevelToHeight(level, dec.Params.NLevels)}
		s.push(root, s.priority(root.height, 1))
	}
	return s
}

func (s *Scheduler) push(ref blockRef, priority float64) {
	if ref.level > s.maxLevel || s.visited[ref] {
		return
	}
	s.visited[ref] = true
	heap.Push(&s.pq, pqItem{ref: ref, priority: priority})
}

// Run pops blocks in priority order, decoding each and enqueueing its
// children, until the heap drains or a budget is exhausted.
func (s *Scheduler) Run() error {
	for s.pq.Len() > 0 {
		if s.maxBlocks > 0 && s.BlocksRead >= s.maxBlocks {
			return nil
		}
		if s.maxBytes > 0 && s.dec.BytesRead >= s.maxBytes {
			return nil
		}
		it := heap.Pop(&s.pq).(pqItem)
		ref := it.ref

		found, err := s.visit(ref)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		s.BlocksRead++
		s.enqueueChildren(ref)
	}
	return nil
}

func (s *Scheduler) visit(ref blockRef) (bool, error) {
	if ref.kind == regularBlock {
		return s.dec.ensureBlock(ref.level, ref.blockID)
	}
	return s.dec.ensureRefBlock(ref.level, ref.k, ref.blockID)
}

// enqueueChildren applies the child-block identity rules: a regular
// block's two spatial-split children (block 0's single child being the
// right half, its left half already seeded from the resolution tree),
// falling back to that level's refinement sub-blocks once doubling would
// run past the deepest regular block, and a refinement block's
// next-height child.
func (s *Scheduler) enqueueChildren(ref blockRef) {
	params := s.dec.Params

	if ref.kind == refinementBlock {
		if ref.k+1 >= params.MaxHeight-params.BaseHeight {
			return
		}
		child := blockRef{level: ref.level, blockID: ref.blockID, kind: refinementBlock, k: ref.k + 1, height: ref.height + 1}
		s.push(child, s.priority(child.height, 1))
		return
	}

	childHeight := ref.height + 1
	var pushedAny bool
	if ref.blockID == 0 {
		pushedAny = s.maybePushRegular(ref.level, 1, childHeight) || pushedAny
	} else {
		pushedAny = s.maybePushRegular(ref.level, ref.blockID*2, childHeight) || pushedAny
		pushedAny = s.maybePushRegular(ref.level, ref.blockID*2+1, childHeight) || pushedAny
	}
	if pushedAny || params.MaxHeight <= params.BaseHeight {
		return
	}
	// Refinement sub-blocks are keyed by the leaf block that holds the
	// leaves, i.e. the blocks doubling would have reached next.
	for _, leafBlock := range []int64{ref.blockID * 2, ref.blockID*2 + 1} {
		child := blockRef{level: ref.level, blockID: leafBlock, kind: refinementBlock, k: 0, height: params.BaseHeight + 1}
		s.push(child, s.priority(child.height, 1))
	}
}

// maybePushRegular enqueues (level, blockID) if it still falls within the
// valid regular-block range for level (blockID < NumBlocksAtLeaf) and
// within MaxHeight; it reports whether it did.
func (s *Scheduler) maybePushRegular(level int, blockID int64, height int) bool {
	params := s.dec.Params
	nBlocksAtLeaf := NumBlocksAtLeaf(level, params.NLevels, params.BaseHeight, params.BlockBits)
	if blockID >= nBlocksAtLeaf || height > params.MaxHeight {
		return false
	}
	ref := blockRef{level: level, blockID: blockID, kind: regularBlock, height: height}
	s.push(ref, s.priority(height, 1))
	return true
}

// priority estimates a block's refinement value for the ByError
// strategy: bounding-box volume at its height, halved per height step,
// divided by an assumed routed particle count (ByLevel ignores this and
// ranks purely structurally).
func (s *Scheduler) priority(height int, count int64) float64 {
	if s.mode == ByLevel {
		return float64(height)
	}
	if count <= 0 {
		count = 1
	}
	ext := s.dec.Params.BBox.Extent()
	vol := ext[0] * ext[1] * ext[2]
	for i := 0; i < height && i < 4096; i++ {
		vol *= 0.5
	}
	return vol / float64(count)
}
