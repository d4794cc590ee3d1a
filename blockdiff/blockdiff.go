// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2026 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package blockdiff computes block based updates of partition images, where
// the device applies a transfer list of block commands instead of patching
// the partition as a single file.
package blockdiff

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/snapcore/fwota/delta"
	"github.com/snapcore/fwota/logger"
)

// DefaultBlockSize is the block size of eMMC partitions.
const DefaultBlockSize = 4096

// TransferListVersion is the version of the transfer lists written by
// Compute.
const TransferListVersion = 1

// DataImage is a partition image cut into blocks.
type DataImage struct {
	data      []byte
	blockSize int
}

// NewDataImage returns an image of data using blockSize blocks
// (DefaultBlockSize if not positive). A trailing partial block is an error
// unless trim is set, which drops it, or pad is set, which zero fills it.
func NewDataImage(data []byte, blockSize int, trim, pad bool) (*DataImage, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if trim && pad {
		return nil, fmt.Errorf("cannot both trim and pad image data")
	}
	if partial := len(data) % blockSize; partial != 0 {
		switch {
		case trim:
			data = data[:len(data)-partial]
		case pad:
			padded := make([]byte, len(data)+blockSize-partial)
			copy(padded, data)
			data = padded
		default:
			return nil, fmt.Errorf("image data must be a multiple of %d bytes unless trimmed or padded", blockSize)
		}
	}
	return &DataImage{data: data, blockSize: blockSize}, nil
}

// BlockSize returns the size of one block.
func (img *DataImage) BlockSize() int {
	return img.blockSize
}

// TotalBlocks returns the number of blocks in the image.
func (img *DataImage) TotalBlocks() int {
	return len(img.data) / img.blockSize
}

// Block returns the content of block i.
func (img *DataImage) Block(i int) []byte {
	return img.data[i*img.blockSize : (i+1)*img.blockSize]
}

// ReadRanges returns the content of the blocks in rs.
func (img *DataImage) ReadRanges(rs RangeSet) []byte {
	var buf bytes.Buffer
	for _, r := range rs {
		buf.Write(img.data[r.Start*img.blockSize : r.End*img.blockSize])
	}
	return buf.Bytes()
}

// CareMap returns the range of all blocks of the image.
func (img *DataImage) CareMap() RangeSet {
	if img.TotalBlocks() == 0 {
		return nil
	}
	return RangeSet{{0, img.TotalBlocks()}}
}

// SHA1 returns the hex SHA-1 digest of the (trimmed or padded) image.
func (img *DataImage) SHA1() string {
	sum := sha1.Sum(img.data)
	return hex.EncodeToString(sum[:])
}

// Update is a block update turning a source image into a target image.
type Update struct {
	// TransferList is the content of the transfer list file.
	TransferList []byte
	// NewData holds the blocks written verbatim, in transfer list order.
	NewData []byte
	// PatchData holds the concatenated per-run patches.
	PatchData []byte

	// SourceRanges are the source blocks the update expects on the
	// device, SourceSHA1 their digest.
	SourceRanges RangeSet
	SourceSHA1   string
	// TargetRanges are the blocks of the resulting image, TargetSHA1
	// their digest.
	TargetRanges RangeSet
	TargetSHA1   string

	// BlocksWritten is the number of target blocks touched.
	BlocksWritten int
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Compute builds the update from source to target. Runs of changed blocks
// that also exist in the source are diffed with differ when it is not nil,
// and shipped as new data when that fails or does not pay off. Zeroed
// blocks are written with a zero command.
func Compute(ctx context.Context, target, source *DataImage, differ delta.Differ) (*Update, error) {
	if target.blockSize != source.blockSize {
		return nil, fmt.Errorf("cannot compute block update between images with block sizes %d and %d", target.blockSize, source.blockSize)
	}
	tb, sb := target.TotalBlocks(), source.TotalBlocks()

	var zero RangeSet
	var runs []RangeSet
	var cur RangeSet
	for i := 0; i < tb; i++ {
		blk := target.Block(i)
		switch {
		case i < sb && bytes.Equal(blk, source.Block(i)):
			// unchanged in place
		case isZero(blk):
			zero = zero.add(i)
		default:
			cur = cur.add(i)
			continue
		}
		if len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}

	var cmds []string
	var newRanges RangeSet
	update := &Update{}
	for _, run := range runs {
		r := run[0]
		if differ == nil || r.Start >= sb {
			for b := r.Start; b < r.End; b++ {
				newRanges = newRanges.add(b)
			}
			continue
		}
		srcRange := RangeSet{{r.Start, min(r.End, sb)}}
		tgtData := target.ReadRanges(run)
		patch, err := differ.Diff(ctx, source.ReadRanges(srcRange), tgtData)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Noticef("cannot diff blocks %s, sending them as new data: %v", run, err)
		}
		if err != nil || len(patch) >= len(tgtData) {
			for b := r.Start; b < r.End; b++ {
				newRanges = newRanges.add(b)
			}
			continue
		}
		cmds = append(cmds, fmt.Sprintf("bsdiff %d %d %s %s", len(update.PatchData), len(patch), srcRange, run))
		update.PatchData = append(update.PatchData, patch...)
		update.BlocksWritten += run.Size()
	}
	if len(newRanges) > 0 {
		cmds = append(cmds, fmt.Sprintf("new %s", newRanges))
		update.NewData = target.ReadRanges(newRanges)
		update.BlocksWritten += newRanges.Size()
	}
	if len(zero) > 0 {
		cmds = append(cmds, fmt.Sprintf("zero %s", zero))
		update.BlocksWritten += zero.Size()
	}

	var tl bytes.Buffer
	fmt.Fprintf(&tl, "%d\n%d\n", TransferListVersion, update.BlocksWritten)
	for _, cmd := range cmds {
		fmt.Fprintln(&tl, cmd)
	}
	update.TransferList = tl.Bytes()
	update.SourceRanges = source.CareMap()
	update.SourceSHA1 = source.SHA1()
	update.TargetRanges = target.CareMap()
	update.TargetSHA1 = target.SHA1()
	return update, nil
}
