// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2016,2026 Canonical Ltd
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

// Package fstab reads the recovery.fstab of a device to find the block
// device backing a partition.
package fstab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/snapcore/fwota/logger"
)

// ErrNotFound is returned by Resolve for a partition without an entry.
var ErrNotFound = errors.New("partition not found in recovery.fstab")

// UnsupportedTypeError is returned by Resolve for a partition whose
// filesystem type has no updater equivalent. The updater cannot address such
// a partition, so it matches ErrNotFound.
type UnsupportedTypeError struct {
	Name   string
	FSType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot use partition %q: unsupported filesystem type %q", e.Name, e.FSType)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrNotFound
}

// partition types as understood by the updater
var partitionTypes = map[string]string{
	"emmc":     "EMMC",
	"ext4":     "EMMC",
	"f2fs":     "EMMC",
	"squashfs": "EMMC",
	"vfat":     "EMMC",
	"mtd":      "MTD",
	"yaffs2":   "MTD",
}

// Entry is one line of recovery.fstab.
type Entry struct {
	MountPoint string
	FSType     string
	Device     string
	// Device2 is only found in version 1 tables.
	Device2 string
	Options string
}

// Type returns the partition type of the entry (EMMC or MTD), or the empty
// string if the filesystem type has no updater equivalent.
func (e Entry) Type() string {
	return partitionTypes[e.FSType]
}

// Table is a parsed recovery.fstab.
type Table struct {
	entries map[string]Entry
}

// Parse reads a recovery.fstab in either the version 1 layout
// (mount point, type, device[, device2[, options]]) or the version 2 one
// (device, mount point, type, mount flags, fs_mgr flags). The layout is
// detected from the first entry.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{entries: make(map[string]Entry)}
	scanner := bufio.NewScanner(r)
	lineno := 0
	version := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("cannot parse recovery.fstab line %d: %q", lineno, line)
		}
		if version == 0 {
			version = 1
			if strings.HasPrefix(fields[1], "/") {
				version = 2
			}
		}
		var e Entry
		if version == 2 {
			e.Device, e.MountPoint, e.FSType = fields[0], fields[1], fields[2]
			if len(fields) > 3 {
				e.Options = fields[3]
			}
		} else {
			e.MountPoint, e.FSType, e.Device = fields[0], fields[1], fields[2]
			for _, f := range fields[3:] {
				if strings.HasPrefix(f, "/") && e.Device2 == "" {
					e.Device2 = f
				} else {
					e.Options = f
				}
			}
		}
		if !strings.HasPrefix(e.MountPoint, "/") {
			// swap and the like
			logger.Debugf("ignoring recovery.fstab entry without mount point: %q", line)
			continue
		}
		t.entries[e.MountPoint] = e
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadFile parses the recovery.fstab at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Lookup returns the entry for the given mount point.
func (t *Table) Lookup(mountPoint string) (Entry, bool) {
	e, ok := t.entries[mountPoint]
	return e, ok
}

// Resolve returns the partition type and device of the named partition,
// which is mounted at "/<name>".
func (t *Table) Resolve(name string) (typ, device string, err error) {
	e, ok := t.entries["/"+name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	typ = e.Type()
	if typ == "" {
		return "", "", &UnsupportedTypeError{Name: name, FSType: e.FSType}
	}
	return typ, e.Device, nil
}
