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

// Package container unpacks firmware container blobs (bootloader and radio
// images made of several partition images packed back to back) into named
// sub-images.
package container

import (
	"fmt"
)

// Format names one of the supported container layouts.
type Format string

const (
	// FormatBootldr is the "BOOTLDR!" fixed table layout, where offsets are a
	// running sum of the record sizes from a declared start offset.
	FormatBootldr Format = "bootldr"
	// FormatMeta is the versioned meta header layout, where every record
	// carries its own start offset.
	FormatMeta Format = "meta"
	// FormatRaw is not a container at all: the whole blob is a single
	// sub-image named after the container.
	FormatRaw Format = "raw"
)

// Header holds the decoded fixed fields of a container header. Fields not
// used by a format are left zero.
type Header struct {
	// Magic is the magic value as found in the blob.
	Magic string
	// MajorVersion and MinorVersion are only set for FormatMeta.
	MajorVersion uint16
	MinorVersion uint16
	// ImageVersion is the top level version string (FormatMeta).
	ImageVersion string
	// Count is the number of records in the record table.
	Count int
	// RecordSize is the size in bytes of one record.
	RecordSize int
	// StartOffset and TotalSize are only set for FormatBootldr.
	StartOffset int64
	TotalSize   int64
}

// Container is a set of uniquely named sub-images unpacked from one blob.
type Container struct {
	// Label names the container, e.g. "bootloader" or "radio".
	Label  string
	Format Format
	Header Header

	images map[string]*SubImage
	order  []string
}

func newContainer(label string, format Format) *Container {
	return &Container{
		Label:  label,
		Format: format,
		images: make(map[string]*SubImage),
	}
}

func (c *Container) add(si *SubImage) error {
	if _, ok := c.images[si.Name]; ok {
		return fmt.Errorf("duplicate sub-image %q", si.Name)
	}
	c.images[si.Name] = si
	c.order = append(c.order, si.Name)
	return nil
}

// Lookup returns the sub-image with the given name. Absence is not an error.
func (c *Container) Lookup(name string) (*SubImage, bool) {
	si, ok := c.images[name]
	return si, ok
}

// Names returns the sub-image names in record table order.
func (c *Container) Names() []string {
	return append([]string(nil), c.order...)
}

// Images returns the sub-images in record table order.
func (c *Container) Images() []*SubImage {
	out := make([]*SubImage, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.images[name])
	}
	return out
}

// Len returns the number of sub-images.
func (c *Container) Len() int {
	return len(c.order)
}

// Parser decodes one container format.
type Parser interface {
	// Format returns the format handled by the parser.
	Format() Format
	// Parse decodes data into a Container labelled with label. Failures
	// are *ParseError values wrapping ErrBadMagic, ErrBadVersion or
	// ErrCorrupt.
	Parse(label string, data []byte) (*Container, error)
}

// ParserFor returns the parser for the given format.
func ParserFor(format Format) (Parser, error) {
	switch format {
	case FormatBootldr:
		return bootldrParser{}, nil
	case FormatMeta:
		return metaParser{}, nil
	case FormatRaw:
		return rawParser{}, nil
	}
	return nil, fmt.Errorf("unknown container format %q", format)
}

// Unpack decodes data in the given format.
func Unpack(format Format, label string, data []byte) (*Container, error) {
	p, err := ParserFor(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(label, data)
}

type rawParser struct{}

func (rawParser) Format() Format { return FormatRaw }

func (rawParser) Parse(label string, data []byte) (*Container, error) {
	if label == "" {
		return nil, fmt.Errorf("internal error: raw container needs a label")
	}
	c := newContainer(label, FormatRaw)
	c.Header.Count = 1
	if err := c.add(NewSubImage(label, data)); err != nil {
		return nil, err
	}
	return c, nil
}
