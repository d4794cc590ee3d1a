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

// Package otapkg reads target-files archives and writes update packages.
package otapkg

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/snapcore/fwota/osutil"
)

// ErrNotFound is returned when an archive has no entry with the requested
// name.
var ErrNotFound = errors.New("no such archive entry")

// Reader gives access to the entries of an archive.
type Reader interface {
	ReadFile(name string) ([]byte, error)
}

// Writer stores named blobs into an archive.
type Writer interface {
	WriteFile(name string, data []byte) error
}

func notFound(archive, name string) error {
	return fmt.Errorf("%w: %q in %s", ErrNotFound, name, archive)
}

// ZipReader reads entries from a zip archive.
type ZipReader struct {
	path string
	zr   *zip.ReadCloser
}

// OpenZip opens the zip archive at path.
func OpenZip(path string) (*ZipReader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %v", err)
	}
	return &ZipReader{path: path, zr: zr}, nil
}

func (r *ZipReader) ReadFile(name string) ([]byte, error) {
	f, err := r.zr.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(r.path, name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Close closes the archive.
func (r *ZipReader) Close() error {
	return r.zr.Close()
}

// DirReader reads entries from an unpacked archive.
type DirReader struct {
	dir string
}

// NewDirReader returns a Reader for the archive unpacked in dir.
func NewDirReader(dir string) *DirReader {
	return &DirReader{dir: dir}
}

func (r *DirReader) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(name)))
	if os.IsNotExist(err) {
		return nil, notFound(r.dir, name)
	}
	return data, err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns a ZipReader for a zip file and a DirReader for a directory.
func Open(path string) (Reader, io.Closer, error) {
	if osutil.IsDirectory(path) {
		return NewDirReader(path), nopCloser{}, nil
	}
	zr, err := OpenZip(path)
	if err != nil {
		return nil, nil, err
	}
	return zr, zr, nil
}

// ZipWriter writes a zip archive. The archive only shows up at its final
// path once Close succeeds.
type ZipWriter struct {
	aw    osutil.AtomicWriter
	zw    *zip.Writer
	names map[string]bool
}

// CreateZip starts writing a zip archive at path.
func CreateZip(path string) (*ZipWriter, error) {
	aw, err := osutil.NewAtomicFile(path, 0644, 0)
	if err != nil {
		return nil, err
	}
	return &ZipWriter{
		aw:    aw,
		zw:    zip.NewWriter(aw),
		names: make(map[string]bool),
	}, nil
}

func (w *ZipWriter) WriteFile(name string, data []byte) error {
	if w.names[name] {
		return fmt.Errorf("cannot write archive entry %q twice", name)
	}
	f, err := w.zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	w.names[name] = true
	return nil
}

// Names returns the names of the entries written so far, sorted.
func (w *ZipWriter) Names() []string {
	return sortedNames(w.names)
}

// Close finishes the archive and moves it into place.
func (w *ZipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		w.aw.Cancel()
		return err
	}
	if err := w.aw.Finalize(); err != nil {
		w.aw.Cancel()
		return err
	}
	return nil
}

// Cancel abandons the archive.
func (w *ZipWriter) Cancel() error {
	return w.aw.Cancel()
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DirWriter writes entries as files below a directory.
type DirWriter struct {
	dir   string
	names map[string]bool
}

// NewDirWriter returns a Writer storing entries below dir.
func NewDirWriter(dir string) *DirWriter {
	return &DirWriter{dir: dir, names: make(map[string]bool)}
}

func (w *DirWriter) WriteFile(name string, data []byte) error {
	if w.names[name] {
		return fmt.Errorf("cannot write archive entry %q twice", name)
	}
	path := filepath.Join(w.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := osutil.AtomicWriteFile(path, data, 0644, 0); err != nil {
		return err
	}
	w.names[name] = true
	return nil
}

// Names returns the names of the entries written so far, sorted.
func (w *DirWriter) Names() []string {
	return sortedNames(w.names)
}
