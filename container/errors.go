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
	"errors"
	"fmt"
)

var (
	// ErrBadMagic is returned when the container header does not carry the
	// magic value of the expected format.
	ErrBadMagic = errors.New("bad magic value")
	// ErrBadVersion is returned for a versioned container whose major
	// version is not supported.
	ErrBadVersion = errors.New("unsupported container version")
	// ErrCorrupt is returned when the offsets and sizes in the container are
	// inconsistent with each other or with the blob.
	ErrCorrupt = errors.New("container corrupted")
)

// ParseError describes a container decoding failure. It wraps one of
// ErrBadMagic, ErrBadVersion or ErrCorrupt.
type ParseError struct {
	// Container is the label of the container being unpacked.
	Container string
	Format    Format
	// Offset is the byte offset the failure was detected at.
	Offset int64
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot unpack %s container %q: %v at offset %d", e.Format, e.Container, e.Err, e.Offset)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func badMagic(label string, format Format, offset int64, msgf string, v ...interface{}) error {
	return &ParseError{Container: label, Format: format, Offset: offset, Msg: fmt.Sprintf(msgf, v...), Err: ErrBadMagic}
}

func badVersion(label string, format Format, offset int64, msgf string, v ...interface{}) error {
	return &ParseError{Container: label, Format: format, Offset: offset, Msg: fmt.Sprintf(msgf, v...), Err: ErrBadVersion}
}

func corrupt(label string, format Format, offset int64, msgf string, v ...interface{}) error {
	return &ParseError{Container: label, Format: format, Offset: offset, Msg: fmt.Sprintf(msgf, v...), Err: ErrCorrupt}
}

// IsFormatMismatch reports whether err means the blob is not a container of
// the expected format or version, as opposed to a corrupted one.
func IsFormatMismatch(err error) bool {
	return errors.Is(err, ErrBadMagic) || errors.Is(err, ErrBadVersion)
}
