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

package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/snapcore/fwota/logger"
)

// Packed meta image format used for bootloader and radio images:
//
//	typedef struct meta_header {
//	  u32   magic;             /* 0xce1ad63c */
//	  u16   major_version;     /* (0x1)-reject images with higher major versions */
//	  u16   minor_version;     /* (0x0)-allow images with higher minor versions */
//	  char  img_version[64];   /* Top level version for images in this meta */
//	  u16   meta_hdr_sz;       /* size of this header */
//	  u16   img_hdr_sz;        /* size of img_header_entry list */
//	} meta_header_t;
//
//	typedef struct img_header_entry {
//	  char   ptn_name[72];
//	  u32    start_offset;
//	  u32    size;
//	} img_header_entry_t;

// MetaMagic is the magic value of a FormatMeta blob.
const MetaMagic uint32 = 0xce1ad63c

// MetaMaxMajorVersion is the highest supported major version.
const MetaMaxMajorVersion = 1

const (
	metaVersionSize = 64
	metaNameSize    = 72
	// size of metaHeader on disk
	metaHeaderSize = 4 + 2 + 2 + metaVersionSize + 2 + 2
	// size of metaRecord on disk
	metaRecordSize = metaNameSize + 4 + 4
)

type metaHeader struct {
	Magic        uint32
	MajorVersion uint16
	MinorVersion uint16
	ImgVersion   [metaVersionSize]byte
	MetaHdrSize  uint16
	ImgHdrSize   uint16
}

type metaRecord struct {
	Name  [metaNameSize]byte
	Start uint32
	Size  uint32
}

type metaParser struct{}

func (metaParser) Format() Format { return FormatMeta }

func (metaParser) Parse(label string, data []byte) (*Container, error) {
	if len(data) < metaHeaderSize {
		return nil, corrupt(label, FormatMeta, int64(len(data)), "header truncated, need %d bytes, got %d", metaHeaderSize, len(data))
	}
	var hdr metaHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, corrupt(label, FormatMeta, 0, "cannot read header: %v", err)
	}
	if hdr.Magic != MetaMagic {
		return nil, badMagic(label, FormatMeta, 0, "expected 0x%08x, got 0x%08x", MetaMagic, hdr.Magic)
	}
	if hdr.MajorVersion > MetaMaxMajorVersion {
		return nil, badVersion(label, FormatMeta, 4, "major version %d is newer than %d", hdr.MajorVersion, MetaMaxMajorVersion)
	}

	// a partial trailing entry is ignored
	count := int(hdr.ImgHdrSize) / metaRecordSize
	tableEnd := metaHeaderSize + count*metaRecordSize
	if tableEnd > len(data) {
		return nil, corrupt(label, FormatMeta, int64(len(data)), "record table for %d images ends at %d", count, tableEnd)
	}
	records := make([]metaRecord, count)
	if err := binary.Read(r, binary.LittleEndian, records); err != nil {
		return nil, corrupt(label, FormatMeta, metaHeaderSize, "cannot read record table: %v", err)
	}

	c := newContainer(label, FormatMeta)
	c.Header = Header{
		Magic:        fmt.Sprintf("0x%08x", hdr.Magic),
		MajorVersion: hdr.MajorVersion,
		MinorVersion: hdr.MinorVersion,
		ImageVersion: cString(hdr.ImgVersion[:]),
		Count:        count,
		RecordSize:   metaRecordSize,
	}
	for i, rec := range records {
		recOffset := int64(metaHeaderSize + i*metaRecordSize)
		end := uint64(rec.Start) + uint64(rec.Size)
		if end > uint64(len(data)) {
			return nil, corrupt(label, FormatMeta, recOffset, "image %q spans %d-%d, past the end of the data at %d", cString(rec.Name[:]), rec.Start, end, len(data))
		}
		name := cString(rec.Name[:])
		if name == "" {
			logger.Debugf("%s: ignoring unnamed image record at offset %d", label, recOffset)
			continue
		}
		si := newSubImage(name, int64(rec.Start), data[rec.Start:end])
		if err := c.add(si); err != nil {
			return nil, corrupt(label, FormatMeta, recOffset, "%v", err)
		}
	}
	return c, nil
}
