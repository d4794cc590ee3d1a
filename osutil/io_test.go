// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2014-2015,2026 Canonical Ltd
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

package osutil_test

import (
	"os"
	"path/filepath"

	"gopkg.in/check.v1"

	"github.com/snapcore/fwota/osutil"
)

type AtomicWriteTestSuite struct{}

var _ = check.Suite(&AtomicWriteTestSuite{})

func (ts *AtomicWriteTestSuite) TestAtomicWriteFile(c *check.C) {
	tmpdir := c.MkDir()

	p := filepath.Join(tmpdir, "foo")
	err := osutil.AtomicWriteFile(p, []byte("canary"), 0644, 0)
	c.Assert(err, check.IsNil)

	content, err := os.ReadFile(p)
	c.Assert(err, check.IsNil)
	c.Assert(content, check.DeepEquals, []byte("canary"))

	// no files left behind!
	d, err := os.ReadDir(tmpdir)
	c.Assert(err, check.IsNil)
	c.Assert(len(d), check.Equals, 1)
}

func (ts *AtomicWriteTestSuite) TestAtomicWriteFilePermissions(c *check.C) {
	tmpdir := c.MkDir()

	p := filepath.Join(tmpdir, "foo")
	err := osutil.AtomicWriteFile(p, []byte(""), 0600, 0)
	c.Assert(err, check.IsNil)

	st, err := os.Stat(p)
	c.Assert(err, check.IsNil)
	c.Assert(st.Mode()&os.ModePerm, check.Equals, os.FileMode(0600))
}

func (ts *AtomicWriteTestSuite) TestAtomicWriteFileOverwrite(c *check.C) {
	tmpdir := c.MkDir()
	p := filepath.Join(tmpdir, "foo")
	c.Assert(os.WriteFile(p, []byte("hello"), 0644), check.IsNil)
	c.Assert(osutil.AtomicWriteFile(p, []byte("hi"), 0600, 0), check.IsNil)

	content, err := os.ReadFile(p)
	c.Assert(err, check.IsNil)
	c.Assert(content, check.DeepEquals, []byte("hi"))
}

func (ts *AtomicWriteTestSuite) TestAtomicWriteFileSymlinkFollow(c *check.C) {
	tmpdir := c.MkDir()
	rodir := filepath.Join(tmpdir, "ro")
	p := filepath.Join(rodir, "foo")
	s := filepath.Join(tmpdir, "foo")
	c.Assert(os.MkdirAll(rodir, 0755), check.IsNil)
	c.Assert(os.Symlink(p, s), check.IsNil)

	err := osutil.AtomicWriteFile(s, []byte("hi"), 0600, osutil.AtomicWriteFollow)
	c.Assert(err, check.IsNil)

	content, err := os.ReadFile(p)
	c.Assert(err, check.IsNil)
	c.Assert(content, check.DeepEquals, []byte("hi"))
}

func (ts *AtomicWriteTestSuite) TestAtomicFileCancel(c *check.C) {
	d := c.MkDir()
	p := filepath.Join(d, "foo")

	aw, err := osutil.NewAtomicFile(p, 0644, 0)
	c.Assert(err, check.IsNil)
	_, err = aw.Write([]byte("partial"))
	c.Assert(err, check.IsNil)
	c.Assert(aw.Cancel(), check.IsNil)

	c.Check(osutil.FileExists(p), check.Equals, false)
	entries, err := os.ReadDir(d)
	c.Assert(err, check.IsNil)
	c.Check(entries, check.HasLen, 0)
}

func (ts *AtomicWriteTestSuite) TestAtomicFileCancelAfterFinalize(c *check.C) {
	p := filepath.Join(c.MkDir(), "foo")

	aw, err := osutil.NewAtomicFile(p, 0644, 0)
	c.Assert(err, check.IsNil)
	c.Assert(aw.Finalize(), check.IsNil)
	c.Check(aw.Cancel(), check.Equals, osutil.ErrCannotCancel)
}

type statSuite struct{}

var _ = check.Suite(&statSuite{})

func (s *statSuite) TestFileExists(c *check.C) {
	d := c.MkDir()
	p := filepath.Join(d, "foo")
	c.Check(osutil.FileExists(p), check.Equals, false)
	c.Assert(os.WriteFile(p, nil, 0644), check.IsNil)
	c.Check(osutil.FileExists(p), check.Equals, true)
	c.Check(osutil.FileExists(d), check.Equals, true)
}

func (s *statSuite) TestIsDirectory(c *check.C) {
	d := c.MkDir()
	p := filepath.Join(d, "foo")
	c.Assert(os.WriteFile(p, nil, 0644), check.IsNil)
	c.Check(osutil.IsDirectory(d), check.Equals, true)
	c.Check(osutil.IsDirectory(p), check.Equals, false)
	c.Check(osutil.IsDirectory(filepath.Join(d, "missing")), check.Equals, false)
}
