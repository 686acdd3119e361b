// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// levelFileName returns the on-disk name of level's block file, or the
// resolution tree's file when level == nlevels.
func levelFileName(name string, level int) string {
	return fmt.Sprintf("%s-%d.bin", name, level)
}

// blockEntry is one trailer record: the block's on-disk byte size and
// the block id it was addressed by.
type blockEntry struct {
	BlockID int64
	Size    int64
}

// levelWriter appends blocks to one level's file in order and builds the
// trailer described in the external-interfaces layout: padding, packed
// {size, blockId} index, NBlocks, MaxBlockSize.
type levelWriter struct {
	f           *os.File
	path        string
	maxSize     int64
	index       []blockEntry
}

func createLevelWriter(path string) (*levelWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "particle: create level file")
	}
	return &levelWriter{f: f, path: path}, nil
}

func (lw *levelWriter) appendBlock(blockID int64, data []byte) error {
	if _, err := lw.f.Write(data); err != nil {
		return errors.Wrap(err, "particle: write block")
	}
	lw.index = append(lw.index, blockEntry{BlockID: blockID, Size: int64(len(data))})
	if int64(len(data)) > lw.maxSize {
		lw.maxSize = int64(len(data))
	}
	return nil
}

// finishWithTrailer writes the padding/index/NBlocks/MaxBlockSize trailer
// and closes the file. Call finishBare instead for the resolution file,
// which carries no trailer.
func (lw *levelWriter) finishWithTrailer() error {
	pad := make([]byte, lw.maxSize)
	if _, err := lw.f.Write(pad); err != nil {
		return errors.Wrap(err, "particle: write trailer padding")
	}
	for _, e := range lw.index {
		if err := binary.Write(lw.f, binary.LittleEndian, uint64(e.Size)); err != nil {
			return errors.Wrap(err, "particle: write index")
		}
		if err := binary.Write(lw.f, binary.LittleEndian, uint64(e.BlockID)); err != nil {
			return errors.Wrap(err, "particle: write index")
		}
	}
	if err := binary.Write(lw.f, binary.LittleEndian, uint64(len(lw.index))); err != nil {
		return errors.Wrap(err, "particle: write NBlocks")
	}
	if err := binary.Write(lw.f, binary.LittleEndian, int32(lw.maxSize)); err != nil {
		return errors.Wrap(err, "particle: write MaxBlockSize")
	}
	return lw.f.Close()
}

func (lw *levelWriter) finishBare() error {
	return lw.f.Close()
}

func (lw *levelWriter) remove() {
	lw.f.Close()
	os.Remove(lw.path)
}

// levelReader serves random-access block reads against one level's file,
// having parsed its trailer once on open.
type levelReader struct {
	f            *os.File
	maxBlockSize int64
	offsets      []int64
	index        []blockEntry
}

func openLevelReader(path string) (*levelReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "particle: open level file")
	}
	lr := &levelReader{f: f}
	if err := lr.readTrailer(); err != nil {
		f.Close()
		return nil, err
	}
	return lr, nil
}

func (lr *levelReader) readTrailer() error {
	const trailerFixed = 8 + 4 // NBlocks (u64) + MaxBlockSize (i32)
	fi, err := lr.f.Stat()
	if err != nil {
		return errors.Wrap(err, "particle: stat level file")
	}
	if fi.Size() < trailerFixed {
		return ErrCorrupt
	}
	var nBlocks uint64
	var maxSize int32
	if _, err := lr.f.Seek(fi.Size()-trailerFixed, 0); err != nil {
		return errors.Wrap(err, "particle: seek trailer")
	}
	if err := binary.Read(lr.f, binary.LittleEndian, &nBlocks); err != nil {
		return errors.Wrap(err, "particle: read NBlocks")
	}
	if err := binary.Read(lr.f, binary.LittleEndian, &maxSize); err != nil {
		return errors.Wrap(err, "particle: read MaxBlockSize")
	}
	lr.maxBlockSize = int64(maxSize)

	indexBytes := int64(nBlocks) * 16
	indexStart := fi.Size() - trailerFixed - indexBytes
	if indexStart < 0 {
		return ErrCorrupt
	}
	if _, err := lr.f.Seek(indexStart, 0); err != nil {
		return errors.Wrap(err, "particle: seek index")
	}
	lr.index = make([]blockEntry, nBlocks)
	for i := range lr.index {
		var size, id uint64
		if err := binary.Read(lr.f, binary.LittleEndian, &size); err != nil {
			return errors.Wrap(err, "particle: read index entry")
		}
		if err := binary.Read(lr.f, binary.LittleEndian, &id); err != nil {
			return errors.Wrap(err, "particle: read index entry")
		}
		lr.index[i] = blockEntry{BlockID: int64(id), Size: int64(size)}
	}
	lr.offsets = make([]int64, len(lr.index))
	var off int64
	for i, e := range lr.index {
		lr.offsets[i] = off
		off += e.Size
	}
	return nil
}

// readBlock returns the raw bytes for blockID, padded/truncated to
// MaxBlockSize bytes per the fixed-size read convention, and whether the
// block is present in the archive at all.
func (lr *levelReader) readBlock(blockID int64) ([]byte, bool, error) {
	i := sort.Search(len(lr.index), func(i int) bool { return lr.index[i].BlockID >= blockID })
	if i >= len(lr.index) || lr.index[i].BlockID != blockID {
		return nil, false, nil
	}
	buf := make([]byte, lr.maxBlockSize)
	if _, err := lr.f.ReadAt(buf, lr.offsets[i]); err != nil {
		return nil, false, errors.Wrap(err, "particle: read block")
	}
	return buf, true, nil
}

func (lr *levelReader) close() error { return lr.f.Close() }
