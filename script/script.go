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

// Package script generates the updater script run by recovery to install
// an update package.
package script

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/snapcore/fwota/container"
)

// Descriptor names a partition together with the identities of the image
// expected on it before and after patching. Its string form is understood
// by apply_patch and apply_patch_check.
type Descriptor struct {
	// Type is the partition type as understood by recovery (EMMC, MTD).
	Type   string
	Device string
	Source container.Identity
	Target container.Identity
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s:%s:%d:%s:%d:%s", d.Type, d.Device, d.Source.Size, d.Source.SHA1, d.Target.Size, d.Target.SHA1)
}

// BlockUpdate describes a block based update of one partition.
type BlockUpdate struct {
	Partition string
	Device    string
	// SourceRanges and SourceSHA1 describe the blocks that must be on the
	// device for the update to apply.
	SourceRanges string
	SourceSHA1   string
	// archive paths of the transfer list, new data and patch data
	TransferList string
	NewData      string
	PatchData    string
}

// Emitter receives the ordered instructions making up an update script.
type Emitter interface {
	// Print shows msg on the recovery console.
	Print(msg string)
	// ExtractFile writes the archive entry to device.
	ExtractFile(archivePath, device string)
	// CacheFreeSpaceCheck aborts unless /cache has room for amount bytes.
	CacheFreeSpaceCheck(amount int64)
	// PatchCheck aborts unless the partition holds the source or the
	// target image of desc.
	PatchCheck(desc Descriptor)
	// ApplyPatch patches the partition of desc with the patch stored at
	// patchPath in the archive.
	ApplyPatch(desc Descriptor, patchPath string)
	// BlockImageUpdate applies a block based update.
	BlockImageUpdate(u BlockUpdate)
}

// Edify is an Emitter producing an edify updater script.
type Edify struct {
	lines []string
}

// NewEdify returns an empty script.
func NewEdify() *Edify {
	return &Edify{}
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func (e *Edify) add(format string, v ...interface{}) {
	e.lines = append(e.lines, fmt.Sprintf(format, v...))
}

func (e *Edify) Print(msg string) {
	e.add("ui_print(%s);", quote(msg))
}

func (e *Edify) ExtractFile(archivePath, device string) {
	e.add("package_extract_file(%s, %s);", quote(archivePath), quote(device))
}

func (e *Edify) CacheFreeSpaceCheck(amount int64) {
	e.add(`apply_patch_space(%d) || abort("Not enough free space on /cache to apply patches.");`, amount)
}

func (e *Edify) PatchCheck(desc Descriptor) {
	e.add(`apply_patch_check(%s) || abort(%s);`, quote(desc.String()), quote(fmt.Sprintf("%q has unexpected contents.", desc.String())))
}

func (e *Edify) ApplyPatch(desc Descriptor, patchPath string) {
	e.add(`apply_patch(%s, "-", %s, %d, %s, package_extract_file(%s));`,
		quote(desc.String()), desc.Target.SHA1, desc.Target.Size, desc.Source.SHA1, quote(patchPath))
}

func (e *Edify) BlockImageUpdate(u BlockUpdate) {
	e.add("if range_sha1(%s, %s) == %s then", quote(u.Device), quote(u.SourceRanges), quote(u.SourceSHA1))
	e.add("block_image_update(%s, package_extract_file(%s), %s, %s);", quote(u.Device), quote(u.TransferList), quote(u.NewData), quote(u.PatchData))
	e.add("else")
	e.add("abort(%s);", quote(u.Partition+" partition has unexpected contents"))
	e.add("endif;")
}

// Len returns the number of lines in the script.
func (e *Edify) Len() int {
	return len(e.lines)
}

// Bytes returns the script text.
func (e *Edify) Bytes() []byte {
	var buf bytes.Buffer
	e.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the script text to w.
func (e *Edify) WriteTo(w io.Writer) (n int64, err error) {
	for _, l := range e.lines {
		m, err := io.WriteString(w, l+"\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
