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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Identity is the content identity of an image: its size and the hex SHA-1
// digest of its content. Two images with equal identities are considered
// unchanged.
type Identity struct {
	Size int64  `json:"size" yaml:"size"`
	SHA1 string `json:"sha1" yaml:"sha1"`
}

// IdentityOf computes the identity of data.
func IdentityOf(data []byte) Identity {
	sum := sha1.Sum(data)
	return Identity{
		Size: int64(len(data)),
		SHA1: hex.EncodeToString(sum[:]),
	}
}

// Equal reports whether both identities describe the same content.
func (id Identity) Equal(other Identity) bool {
	return id.Size == other.Size && id.SHA1 == other.SHA1
}

func (id Identity) String() string {
	return fmt.Sprintf("%d:%s", id.Size, id.SHA1)
}

// SubImage is one named partition image unpacked from a container. It owns
// its data and is immutable once created.
type SubImage struct {
	Name string
	// Offset is the position of the image inside its container.
	Offset int64

	data []byte
	id   Identity
}

func newSubImage(name string, offset int64, data []byte) *SubImage {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &SubImage{
		Name:   name,
		Offset: offset,
		data:   owned,
		id:     IdentityOf(owned),
	}
}

// NewSubImage creates a stand-alone sub-image holding a copy of data.
func NewSubImage(name string, data []byte) *SubImage {
	return newSubImage(name, 0, data)
}

// Data returns the image content. The returned slice must not be modified.
func (si *SubImage) Data() []byte {
	return si.data
}

// Size returns the image size in bytes.
func (si *SubImage) Size() int64 {
	return si.id.Size
}

// SHA1 returns the hex SHA-1 digest of the image content.
func (si *SubImage) SHA1() string {
	return si.id.SHA1
}

// Identity returns the content identity of the image.
func (si *SubImage) Identity() Identity {
	return si.id
}

// SameContent reports whether both images hold the same bytes.
func (si *SubImage) SameContent(other *SubImage) bool {
	if !si.id.Equal(other.id) {
		return false
	}
	return bytes.Equal(si.data, other.data)
}

func (si *SubImage) String() string {
	return fmt.Sprintf("%s (%d bytes)", si.Name, si.Size())
}
