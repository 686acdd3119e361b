// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"math"
	"sort"

	"github.com/hoang-dt/binomial-coding/internal/bitio"
	"github.com/hoang-dt/binomial-coding/internal/rangecoder"
	"github.com/hoang-dt/binomial-coding/internal/sexprcodec"
)

// Encode partitions particles into the multiresolution tree described by
// params and writes the complete archive: one block file per resolution
// level, the resolution-tree file, and the "<name>.idx" metadata file.
// params.BBox, NParticles, LogDims3 and BaseHeight are recomputed from
// particles before writing, exactly like the reference encoder's
// bounding-box and grid pre-pass; MaxHeight is derived from Accuracy when
// it is zero, and raised to BaseHeight when it is below it.
func Encode(particles []Particle, params *Params) (err error) {
	defer errRecover(&err)

	if err := params.Validate(); err != nil {
		return err
	}
	log := params.logger()
	if len(particles) == 0 {
		return Error("no particles to encode")
	}

	params.BBox = computeBoundingBox(particles)
	params.NParticles = int64(len(particles))
	params.ComputeGrid(particles)
	if params.MaxHeight == 0 {
		params.MaxHeight = chooseMaxHeight(params)
	}
	if params.MaxHeight < params.BaseHeight {
		params.MaxHeight = params.BaseHeight
	}

	log.WithFields(map[string]interface{}{
		"particles":  params.NParticles,
		"baseHeight": params.BaseHeight,
		"maxHeight":  params.MaxHeight,
	}).Info("encoding archive")

	tree := BuildTree(particles, params)

	writers := make([]*levelWriter, params.NLevels)
	defer func() {
		if err != nil {
			for _, lw := range writers {
				if lw != nil {
					lw.remove()
				}
			}
		}
	}()

	resW, err := createLevelWriter(levelFileName(params.Name, params.NLevels))
	if err != nil {
		return err
	}
	if err := writeResolutionBlock(resW, tree, params); err != nil {
		resW.remove()
		return err
	}
	if err := resW.finishBare(); err != nil {
		return err
	}

	for level := 0; level < params.NLevels; level++ {
		lw, err := createLevelWriter(levelFileName(params.Name, level))
		if err != nil {
			return err
		}
		writers[level] = lw
		if err := writeLevelBlocks(lw, level, tree, params); err != nil {
			return err
		}
		if err := lw.finishWithTrailer(); err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{"level": level, "blocks": len(lw.index)}).Debug("level file written")
	}

	return sexprcodec.WriteMetaFile(params.Name+".idx", metaFromParams(params))
}

func computeBoundingBox(particles []Particle) BBox {
	bb := BBox{Min: particles[0].Pos, Max: particles[0].Pos}
	for _, p := range particles[1:] {
		for d := 0; d < 3; d++ {
			if p.Pos[d] < bb.Min[d] {
				bb.Min[d] = p.Pos[d]
			}
			if p.Pos[d] > bb.Max[d] {
				bb.Max[d] = p.Pos[d]
			}
		}
	}
	return bb
}

// chooseMaxHeight applies ChooseMaxHeight to params.Accuracy. With no accuracy
// configured, MaxHeight defaults to BaseHeight (no refinement bits).
func chooseMaxHeight(params *Params) int {
	return ChooseMaxHeight(params, params.Accuracy)
}

// ChooseMaxHeight picks the smallest height h >= params.BaseHeight at
// which the largest bounding-box extent, halved once per height above
// BaseHeight, falls at or below accuracy. It is exported so a decode session (which has no occasion to
// call Encode) can derive the same height cap from a client-supplied
// accuracy that Encode derives at archive-creation time.
func ChooseMaxHeight(params *Params, accuracy float64) int {
	if accuracy <= 0 {
		return params.BaseHeight
	}
	ext := params.BBox.Extent()
	w := math.Max(ext[0], ext[1])
	if params.NDims > 2 {
		w = math.Max(w, ext[2])
	}
	h := params.BaseHeight
	for h < 1<<20 {
		if w*math.Pow(2, -float64(h-params.BaseHeight)) <= accuracy {
			break
		}
		h++
	}
	return h
}

func metaFromParams(p *Params) sexprcodec.Meta {
	return sexprcodec.Meta{
		Name:       p.Name,
		NParticles: p.NParticles,
		NDims:      p.NDims,
		Dims:       [3]int{int(p.BaseGrid().Dims[0]), int(p.BaseGrid().Dims[1]), int(p.BaseGrid().Dims[2])},
		BBoxMin:    [3]float64{p.BBox.Min[0], p.BBox.Min[1], p.BBox.Min[2]},
		BBoxMax:    [3]float64{p.BBox.Max[0], p.BBox.Max[1], p.BBox.Max[2]},
		VersionMaj: 1,
		VersionMin: 0,
		NLevels:    p.NLevels,
		BlockBits:  p.BlockBits,
		Accuracy:   p.Accuracy,
		MaxHeight:  p.MaxHeight,
	}
}

// writeResolutionBlock serializes the single root block of the
// resolution file: the total particle count followed by each
// even-indexed resolution-tree entry, encoded relative to its parent.
func writeResolutionBlock(w *levelWriter, tree *Tree, params *Params) error {
	bw := bitio.NewWriter(64)
	enc := rangecoder.NewEncoder(bw)
	bw.WriteLong(uint64(tree.ResNodes[0]), 64)
	for i := 2; i <= 2*(params.NLevels-1); i += 2 {
		parent := tree.ResNodes[ResParent(i)]
		rangecoder.EncodeSmallRange(enc, int(tree.ResNodes[i]), int(parent))
	}
	enc.Finish()
	return w.appendBlock(0, bw.Flush())
}

// writeLevelBlocks serializes level's spatial-split tree (grouped into
// 2^BlockBits-node blocks) followed by its refinement sub-tree blocks,
// all into the same level file / block-id address space.
func writeLevelBlocks(lw *levelWriter, level int, tree *Tree, params *Params) error {
	B := uint(params.BlockBits)
	nodes := tree.Levels[level]
	keys := make([]uint64, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var curBlock int64 = -1
	var bw *bitio.Writer
	var enc *rangecoder.Encoder
	flush := func() error {
		if bw == nil {
			return nil
		}
		enc.Finish()
		return lw.appendBlock(curBlock, bw.Flush())
	}
	for _, k := range keys {
		bid := int64(NodeToBlockIndex(k, B))
		if bid != curBlock {
			if err := flush(); err != nil {
				return err
			}
			bw = bitio.NewWriter(64)
			enc = rangecoder.NewEncoder(bw)
			curBlock = bid
		}
		n := nodes[k]
		rangecoder.EncodeSmallRange(enc, int(n.Left), int(n.Total))
	}
	if err := flush(); err != nil {
		return err
	}
	return writeRefinementBlocks(lw, level, tree, params, B)
}

// writeRefinementBlocks serializes level's refinement bits: one raw
// (unentropy-coded) block per (extra-height, leaf-block) pair, addressed
// at blockId = localBlockId + (k+1)*NBlocksAtLeaf(level), continuing the
// level file's block-id space above its spatial-tree blocks.
func writeRefinementBlocks(lw *levelWriter, level int, tree *Tree, params *Params, blockBits uint) error {
	maxK := params.MaxHeight - params.BaseHeight
	if maxK <= 0 {
		return nil
	}
	nBlocksAtLeaf := NumBlocksAtLeaf(level, params.NLevels, params.BaseHeight, params.BlockBits)

	var leaves []uint64
	for rk := range tree.RefBits {
		if rk.Level == level {
			leaves = append(leaves, rk.NodeIdx)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })

	for k := 0; k < maxK; k++ {
		byBlock := make(map[int64]*bitio.Writer)
		var order []int64
		for _, nodeIdx := range leaves {
			bits := tree.RefBits[refKey{Level: level, NodeIdx: nodeIdx}]
			if k >= len(bits) {
				continue
			}
			bid := int64(NodeToBlockIndex(nodeIdx, blockBits))
			w, ok := byBlock[bid]
			if !ok {
				w = bitio.NewWriter(16)
				byBlock[bid] = w
				order = append(order, bid)
			}
			w.WriteBit(bits[k])
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		for _, bid := range order {
			globalID := bid + int64(k+1)*nBlocksAtLeaf
			if err := lw.appendBlock(globalID, byBlock[bid].Flush()); err != nil {
				return err
			}
		}
	}
	return nil
}
