// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"math/bits"
	"os"

	"github.com/pkg/errors"

	"github.com/hoang-dt/binomial-coding/internal/bitio"
	"github.com/hoang-dt/binomial-coding/internal/rangecoder"
	"github.com/hoang-dt/binomial-coding/internal/sexprcodec"
)

// Decoder serves on-demand node and refinement-bit lookups against an
// archive written by Encode, loading and decoding blocks lazily and
// caching every node count it has ever derived for the life of the
// session (the "block table" of spec.md's lifecycle rules).
type Decoder struct {
	Params *Params

	resPath      string
	resLoaded    bool
	resNodes     []int64
	levelReaders []*levelReader

	totalCache   []map[uint64]int64
	leftCache    []map[uint64]int64
	blockLoaded  []map[int64]bool
	blockPresent []map[int64]struct{}
	refBlocks    map[refBlockKey][]bool

	// BytesRead accumulates the size of every block successfully read,
	// the quantity a byte-budgeted scheduler run compares against
	// MaxNBytes.
	BytesRead int64
}

type refBlockKey struct {
	Level      int
	K          int
	LocalBlock int64
}

// Open parses name's ".idx" metadata file and prepares a Decoder; level
// and resolution files are opened lazily on first access.
func Open(name string) (*Decoder, error) {
	meta, err := sexprcodec.ReadMetaFile(name + ".idx")
	if err != nil {
		return nil, err
	}
	p := &Params{
		Name:       meta.Name,
		NDims:      meta.NDims,
		NLevels:    meta.NLevels,
		BlockBits:  meta.BlockBits,
		Accuracy:   meta.Accuracy,
		MaxHeight:  meta.MaxHeight,
		NParticles: meta.NParticles,
		BBox:       BBox{Min: Vec3(meta.BBoxMin), Max: Vec3(meta.BBoxMax)},
	}
	for i := 0; i < 3; i++ {
		p.LogDims3[i] = log2Floor(meta.Dims[i])
	}
	p.BaseHeight = p.LogDims3[0] + p.LogDims3[1] + p.LogDims3[2]
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		Params:       p,
		resPath:      levelFileName(name, p.NLevels),
		levelReaders: make([]*levelReader, p.NLevels),
		totalCache:   make([]map[uint64]int64, p.NLevels),
		leftCache:    make([]map[uint64]int64, p.NLevels),
		blockLoaded:  make([]map[int64]bool, p.NLevels),
		blockPresent: make([]map[int64]struct{}, p.NLevels),
		refBlocks:    make(map[refBlockKey][]bool),
	}
	for i := 0; i < p.NLevels; i++ {
		d.totalCache[i] = make(map[uint64]int64)
		d.leftCache[i] = make(map[uint64]int64)
		d.blockLoaded[i] = make(map[int64]bool)
		d.blockPresent[i] = make(map[int64]struct{})
	}
	return d, nil
}

// Close releases every level file opened during the session.
func (d *Decoder) Close() error {
	var firstErr error
	for _, lr := range d.levelReaders {
		if lr != nil {
			if err := lr.close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Decoder) levelReader(level int) (*levelReader, error) {
	if d.levelReaders[level] == nil {
		lr, err := openLevelReader(levelFileName(d.Params.Name, level))
		if err != nil {
			return nil, err
		}
		d.levelReaders[level] = lr
	}
	return d.levelReaders[level], nil
}

func (d *Decoder) ensureResolution() error {
	if d.resLoaded {
		return nil
	}
	data, err := os.ReadFile(d.resPath)
	if err != nil {
		return errors.Wrap(err, "particle: read resolution file")
	}
	r := bitio.NewReader(data)
	d.resNodes = make([]int64, maxInt(1, 2*d.Params.NLevels-1))
	d.resNodes[0] = int64(r.ReadLong(64))
	dec := rangecoder.NewDecoder(r)
	for i := 2; i <= 2*(d.Params.NLevels-1); i += 2 {
		parent := d.resNodes[ResParent(i)]
		d.resNodes[i] = int64(rangecoder.DecodeSmallRange(dec, int(parent)))
		d.resNodes[i-1] = parent - d.resNodes[i]
	}
	d.resLoaded = true
	return nil
}

func (d *Decoder) rootTotal(level int) (int64, error) {
	if d.Params.NLevels == 1 {
		return d.Params.NParticles, nil
	}
	if err := d.ensureResolution(); err != nil {
		return 0, err
	}
	return d.resNodes[LevelToResNode(level, d.Params.NLevels)], nil
}

// GetNode returns level's node nodeIdx's particle count. known is false
// when the block that would carry this node has not been fetched by a
// Scheduler yet, or was never fetched because no such block exists;
// callers must treat that as "nothing more to refine here", never as a
// structural zero. Apart from reading the resolution file the first time
// a level root's total is needed, GetNode never reads from disk — it only
// consults blocks the Scheduler has already loaded, so reconstruction
// run against a budget-limited scheduler sees exactly the blocks that
// budget allowed, instead of silently pulling in the rest of the tree.
func (d *Decoder) GetNode(level int, nodeIdx uint64) (total int64, known bool, err error) {
	if nodeIdx == 1 {
		t, err := d.rootTotal(level)
		return t, true, err
	}
	if t, ok := d.totalCache[level][nodeIdx]; ok {
		return t, true, nil
	}
	parent := nodeIdx / 2
	parentTotal, parentKnown, err := d.GetNode(level, parent)
	if err != nil || !parentKnown {
		return 0, false, err
	}
	if parentTotal == 0 {
		d.totalCache[level][nodeIdx] = 0
		return 0, true, nil
	}
	blockID := int64(NodeToBlockIndex(parent, uint(d.Params.BlockBits)))
	if !d.blockLoaded[level][blockID] {
		return 0, false, nil
	}
	left, ok := d.leftCache[level][parent]
	if !ok {
		return 0, false, nil
	}
	if nodeIdx%2 == 0 {
		total = left
	} else {
		total = parentTotal - left
	}
	d.totalCache[level][nodeIdx] = total
	return total, true, nil
}

// ensureBlock loads and decodes level's regular (sub-base-height) block
// blockID, populating leftCache for every split node it contains, and
// reports whether the block was present in the archive. Loading is
// idempotent; the block holding its nodes' parents must already be
// loaded, otherwise it fails with ErrCorrupt. It is the
// only method that performs disk I/O for a level's spatial tree; the
// Scheduler is its sole caller, which is what makes GetNode's
// cache-only reads a faithful view of "what the budget allowed so far".
//
// Blocks are keyed by the splitting node's own index (NodeToBlockIndex of
// the node being split, not of its children): node p's block carries
// Left(p) whenever p actually has an entry, which is exactly when
// Total(p) > 0, p's height still sits below the base grid resolution,
// and BuildTree did not stop the branch early on accuracy grounds —
// matching writeLevelBlocks/BuildTree on the encode side.
func (d *Decoder) ensureBlock(level int, blockID int64) (bool, error) {
	if d.blockLoaded[level][blockID] {
		_, ok := d.blockPresent[level][blockID]
		return ok, nil
	}
	d.blockLoaded[level][blockID] = true

	lr, err := d.levelReader(level)
	if err != nil {
		return false, err
	}
	data, found, err := lr.readBlock(blockID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	d.blockPresent[level][blockID] = struct{}{}
	d.BytesRead += int64(len(data))

	r := bitio.NewReader(data)
	dec := rangecoder.NewDecoder(r)
	B := uint(d.Params.BlockBits)
	start := uint64(blockID) << B
	if start < 1 {
		start = 1
	}
	end := uint64(blockID+1) << B
	rootHeight := LevelToHeight(level, d.Params.NLevels)
	for p := start; p < end; p++ {
		depth := bits.Len64(p) - 1
		if rootHeight+depth >= d.Params.BaseHeight {
			continue
		}
		total, known, err := d.GetNode(level, p)
		if err != nil {
			return false, err
		}
		if !known {
			return false, ErrCorrupt
		}
		if total == 0 {
			continue
		}
		grid, _ := nodeGrid(d.Params, level, p)
		if accuracySatisfied(d.Params, grid, total, d.Params.CellSize()) {
			// BuildTree stopped this branch on accuracy grounds and
			// never recorded a Left value for it; GetNode will report
			// p's children as unknown, which is the correct outcome.
			continue
		}
		left := rangecoder.DecodeSmallRange(dec, int(total))
		d.leftCache[level][p] = int64(left)
	}
	return true, nil
}

// refRank returns leafNodeIdx's 0-based position among the real
// (Total == 1) leaves sharing its refinement block, the same order
// writeRefinementBlocks used to pack bits. complete is false when some
// node in the counted range has not been fetched yet, meaning the rank
// cannot be trusted; callers must then fail safe rather than act on it.
func (d *Decoder) refRank(level int, leafNodeIdx uint64) (rank int, complete bool, err error) {
	B := uint(d.Params.BlockBits)
	start := (leafNodeIdx >> B) << B
	for n := start; n < leafNodeIdx; n++ {
		if n == 0 {
			continue
		}
		total, known, err := d.GetNode(level, n)
		if err != nil {
			return 0, false, err
		}
		if !known {
			return 0, false, nil
		}
		if total == 1 {
			rank++
		}
	}
	return rank, true, nil
}

// ensureRefBlock loads and decodes refinement sub-block k of level's
// local-block localBlockID, populating refBlocks. Like ensureBlock, this
// is the only method that performs disk I/O for refinement bits; the
// Scheduler is its sole caller.
func (d *Decoder) ensureRefBlock(level, k int, localBlockID int64) (bool, error) {
	key := refBlockKey{Level: level, K: k, LocalBlock: localBlockID}
	if _, ok := d.refBlocks[key]; ok {
		return true, nil
	}
	B := uint(d.Params.BlockBits)
	start := uint64(localBlockID) << B
	end := start + (uint64(1) << B)
	realCount := 0
	for n := start; n < end; n++ {
		if n == 0 {
			continue
		}
		total, known, err := d.GetNode(level, n)
		if err != nil {
			return false, err
		}
		if !known {
			// The regular block covering this leaf range has not been
			// fetched yet; the scheduler visits that block first, so
			// this should not happen, but fail closed rather than pack
			// an incomplete/incorrect real-leaf count.
			return false, nil
		}
		if total == 1 {
			realCount++
		}
	}
	if realCount == 0 {
		d.refBlocks[key] = nil
		return true, nil
	}

	nBlocksAtLeaf := NumBlocksAtLeaf(level, d.Params.NLevels, d.Params.BaseHeight, d.Params.BlockBits)
	globalID := localBlockID + int64(k+1)*nBlocksAtLeaf
	lr, err := d.levelReader(level)
	if err != nil {
		return false, err
	}
	data, found, err := lr.readBlock(globalID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	d.BytesRead += int64(len(data))
	r := bitio.NewReader(data)
	bits := make([]bool, realCount)
	for i := range bits {
		bits[i] = r.ReadBit()
	}
	d.refBlocks[key] = bits
	return true, nil
}

// refBlockBits is the cache-only counterpart to ensureRefBlock: it never
// touches disk, returning found=false when the Scheduler has not fetched
// this refinement sub-block yet.
func (d *Decoder) refBlockBits(level, k int, localBlockID int64) ([]bool, bool) {
	b, ok := d.refBlocks[refBlockKey{Level: level, K: k, LocalBlock: localBlockID}]
	return b, ok
}

// RefinementBit returns the K-th refinement bit (0-based, height
// BaseHeight+1+K) recorded for the leaf at level's nodeIdx leafNodeIdx.
// found is false when the owning refinement block, or any node needed
// to rank leafNodeIdx within it, has not been fetched.
func (d *Decoder) RefinementBit(level int, leafNodeIdx uint64, k int) (bit, found bool, err error) {
	B := uint(d.Params.BlockBits)
	localBlockID := int64(NodeToBlockIndex(leafNodeIdx, B))
	bits, ok := d.refBlockBits(level, k, localBlockID)
	if !ok {
		return false, false, nil
	}
	rank, complete, err := d.refRank(level, leafNodeIdx)
	if err != nil || !complete {
		return false, false, err
	}
	if rank >= len(bits) {
		return false, false, nil
	}
	return bits[rank], true, nil
}
