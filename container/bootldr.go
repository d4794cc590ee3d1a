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

	"github.com/snapcore/fwota/logger"
)

// msm8974 style bootloader.img:
//
//	struct bootloader_images_header {
//	        char magic[8];            /* "BOOTLDR!" */
//	        unsigned int num_images;
//	        unsigned int start_offset;
//	        unsigned int bootldr_size;
//	        struct {
//	                char name[64];
//	                unsigned int size;
//	        } img_info[];
//	};
//
// Images follow each other starting at start_offset, bootldr_size is the sum
// of all image sizes.

// BootldrMagic is the magic string at the start of a FormatBootldr blob.
const BootldrMagic = "BOOTLDR!"

const (
	bootldrNameSize = 64
	// size of bootldrHeader on disk
	bootldrHeaderSize = 20
	// size of bootldrRecord on disk
	bootldrRecordSize = bootldrNameSize + 4
)

type bootldrHeader struct {
	Magic       [8]byte
	NumImages   uint32
	StartOffset uint32
	TotalSize   uint32
}

type bootldrRecord struct {
	Name [bootldrNameSize]byte
	Size uint32
}

type bootldrParser struct{}

func (bootldrParser) Format() Format { return FormatBootldr }

func (bootldrParser) Parse(label string, data []byte) (*Container, error) {
	if len(data) < bootldrHeaderSize {
		return nil, corrupt(label, FormatBootldr, int64(len(data)), "header truncated, need %d bytes, got %d", bootldrHeaderSize, len(data))
	}
	var hdr bootldrHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, corrupt(label, FormatBootldr, 0, "cannot read header: %v", err)
	}
	if string(hdr.Magic[:]) != BootldrMagic {
		return nil, badMagic(label, FormatBootldr, 0, "expected %q, got %q", BootldrMagic, hdr.Magic[:])
	}

	tableEnd := uint64(bootldrHeaderSize) + uint64(hdr.NumImages)*bootldrRecordSize
	if tableEnd > uint64(len(data)) {
		return nil, corrupt(label, FormatBootldr, int64(len(data)), "record table for %d images ends at %d", hdr.NumImages, tableEnd)
	}

	records := make([]bootldrRecord, hdr.NumImages)
	if err := binary.Read(r, binary.LittleEndian, records); err != nil {
		return nil, corrupt(label, FormatBootldr, bootldrHeaderSize, "cannot read record table: %v", err)
	}

	// offsets are the running sum of sizes, which must add up to the
	// declared total
	offsets := make([]uint64, len(records))
	p := uint64(hdr.StartOffset)
	for i, rec := range records {
		offsets[i] = p
		p += uint64(rec.Size)
	}
	if p-uint64(hdr.StartOffset) != uint64(hdr.TotalSize) {
		return nil, corrupt(label, FormatBootldr, 16, "images add up to %d bytes, header declares %d", p-uint64(hdr.StartOffset), hdr.TotalSize)
	}
	if p > uint64(len(data)) {
		return nil, corrupt(label, FormatBootldr, int64(len(data)), "images end at %d, past the end of the data", p)
	}

	c := newContainer(label, FormatBootldr)
	c.Header = Header{
		Magic:       BootldrMagic,
		Count:       int(hdr.NumImages),
		RecordSize:  bootldrRecordSize,
		StartOffset: int64(hdr.StartOffset),
		TotalSize:   int64(hdr.TotalSize),
	}
	for i, rec := range records {
		recOffset := int64(bootldrHeaderSize + i*bootldrRecordSize)
		name := cString(rec.Name[:])
		if name == "" {
			logger.Debugf("%s: ignoring unnamed image record at offset %d", label, recOffset)
			continue
		}
		start := offsets[i]
		si := newSubImage(name, int64(start), data[start:start+uint64(rec.Size)])
		if err := c.add(si); err != nil {
			return nil, corrupt(label, FormatBootldr, recOffset, "%v", err)
		}
	}
	return c, nil
}

// cString returns the content of a fixed width name field up to the first
// NUL byte, or the whole field if there is none.
func cString(b []byte) string {
	if end := bytes.IndexByte(b, 0); end >= 0 {
		return string(b[:end])
	}
	return string(b)
}
