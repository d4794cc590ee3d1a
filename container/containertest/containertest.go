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

// Package containertest builds firmware container blobs for tests.
package containertest

import (
	"bytes"
	"encoding/binary"
)

// Entry is one image to pack into a container.
type Entry struct {
	Name string
	Data []byte
}

func name(n string, size int) []byte {
	b := make([]byte, size)
	copy(b, n)
	return b
}

// Bootldr packs entries in the "BOOTLDR!" layout. Images start right after
// the record table.
func Bootldr(entries ...Entry) []byte {
	start := 20 + 68*len(entries)
	return BootldrAt(uint32(start), entries...)
}

// BootldrAt packs entries in the "BOOTLDR!" layout with images starting at
// startOffset. The gap between the record table and startOffset, if any, is
// zero filled.
func BootldrAt(startOffset uint32, entries ...Entry) []byte {
	var total uint32
	for _, e := range entries {
		total += uint32(len(e.Data))
	}
	return BootldrRaw("BOOTLDR!", startOffset, total, entries...)
}

// BootldrRaw packs entries with the given magic and declared total size, to
// build broken blobs.
func BootldrRaw(magic string, startOffset, totalSize uint32, entries ...Entry) []byte {
	var buf bytes.Buffer
	buf.Write(name(magic, 8))
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&buf, binary.LittleEndian, startOffset)
	binary.Write(&buf, binary.LittleEndian, totalSize)
	for _, e := range entries {
		buf.Write(name(e.Name, 64))
		binary.Write(&buf, binary.LittleEndian, uint32(len(e.Data)))
	}
	if pad := int(startOffset) - buf.Len(); pad > 0 {
		buf.Write(make([]byte, pad))
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// MetaOptions tweak the header written by MetaWith.
type MetaOptions struct {
	Magic        uint32
	MajorVersion uint16
	MinorVersion uint16
	Version      string
	// ExtraTableBytes is added to img_hdr_sz without adding records.
	ExtraTableBytes uint16
}

// Meta packs entries in the meta header layout with a valid header.
func Meta(entries ...Entry) []byte {
	return MetaWith(MetaOptions{Magic: 0xce1ad63c, MajorVersion: 1, Version: "test-version"}, entries...)
}

// MetaWith packs entries in the meta header layout. Images follow the record
// table in entry order.
func MetaWith(opts MetaOptions, entries ...Entry) []byte {
	const headerSize = 76
	const recordSize = 80

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, opts.Magic)
	binary.Write(&buf, binary.LittleEndian, opts.MajorVersion)
	binary.Write(&buf, binary.LittleEndian, opts.MinorVersion)
	buf.Write(name(opts.Version, 64))
	binary.Write(&buf, binary.LittleEndian, uint16(headerSize))
	binary.Write(&buf, binary.LittleEndian, uint16(recordSize*len(entries))+opts.ExtraTableBytes)

	start := uint32(headerSize + recordSize*len(entries))
	for _, e := range entries {
		buf.Write(name(e.Name, 72))
		binary.Write(&buf, binary.LittleEndian, start)
		binary.Write(&buf, binary.LittleEndian, uint32(len(e.Data)))
		start += uint32(len(e.Data))
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// Fill returns size bytes of the given value.
func Fill(b byte, size int) []byte {
	return bytes.Repeat([]byte{b}, size)
}
