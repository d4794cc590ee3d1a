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

package main_test

import (
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	fwota "github.com/snapcore/fwota/cmd/fwota"
	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/container/containertest"
	"github.com/snapcore/fwota/testutil"
)

func (s *fwotaSuite) TestUnpackMeta(c *C) {
	image := filepath.Join(c.MkDir(), "bootloader.img")
	c.Assert(os.WriteFile(image, containertest.Meta(
		containertest.Entry{Name: "aboot", Data: []byte("aboot")},
		containertest.Entry{Name: "tz", Data: []byte("tz")},
	), 0644), IsNil)

	err := fwota.ParseArgs([]string{"unpack", image})
	c.Assert(err, IsNil)
	c.Check(fields(s.Stdout()), DeepEquals, [][]string{
		{"bootloader:", "meta", "container", "version", "1.0", `"test-version",`, "2", "images"},
		{"Name", "Offset", "Size", "SHA1"},
		{"aboot", "236", "5", container.IdentityOf([]byte("aboot")).SHA1},
		{"tz", "241", "2", container.IdentityOf([]byte("tz")).SHA1},
	})
}

func (s *fwotaSuite) TestUnpackExtract(c *C) {
	image := filepath.Join(c.MkDir(), "radio.bin")
	c.Assert(os.WriteFile(image, containertest.Bootldr(
		containertest.Entry{Name: "rpm", Data: []byte("rpm")},
	), 0644), IsNil)
	out := filepath.Join(c.MkDir(), "out")

	err := fwota.ParseArgs([]string{"unpack", "--format", "bootldr", "--label", "bootloader", "-o", out, image})
	c.Assert(err, IsNil)
	c.Check(fields(s.Stdout())[0], DeepEquals, []string{"bootloader:", "bootldr", "container,", "1", "images"})
	c.Check(filepath.Join(out, "rpm.img"), testutil.FileEquals, "rpm")
}

func (s *fwotaSuite) TestUnpackBadMagic(c *C) {
	image := filepath.Join(c.MkDir(), "radio.img")
	c.Assert(os.WriteFile(image, containertest.Bootldr(
		containertest.Entry{Name: "modem", Data: containertest.Fill('m', 100)},
	), 0644), IsNil)

	err := fwota.ParseArgs([]string{"unpack", image})
	c.Assert(err, ErrorMatches, `cannot unpack meta container "radio": bad magic value at offset 0: .*`)
}

func (s *fwotaSuite) TestUnpackBadFormat(c *C) {
	err := fwota.ParseArgs([]string{"unpack", "--format", "zip", "radio.img"})
	c.Assert(err, ErrorMatches, `Invalid value .zip. for option .--format.*`)
}
