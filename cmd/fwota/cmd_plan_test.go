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
	. "gopkg.in/check.v1"

	fwota "github.com/snapcore/fwota/cmd/fwota"
	"github.com/snapcore/fwota/container/containertest"
	"github.com/snapcore/fwota/testutil"
)

func (s *fwotaSuite) TestPlanHuaweiIncremental(c *C) {
	modemA := append(containertest.Fill('a', 4096), containertest.Fill('b', 4096)...)
	modemB := append(containertest.Fill('a', 4096), containertest.Fill('B', 4096)...)
	target := targetFiles(c, "release-keys", map[string][]byte{
		"RADIO/bootloader.img": huaweiBootloader("aboot2"),
		"RADIO/radio.img": containertest.Meta(
			containertest.Entry{Name: "modem", Data: modemB},
			containertest.Entry{Name: "dsp", Data: []byte("dsp")},
		),
	})
	source := targetFiles(c, "release-keys", map[string][]byte{
		"RADIO/bootloader.img": huaweiBootloader("aboot1"),
		"RADIO/radio.img": containertest.Meta(
			containertest.Entry{Name: "modem", Data: modemA},
			containertest.Entry{Name: "dsp", Data: []byte("dsp")},
		),
	})

	err := fwota.ParseArgs([]string{"plan", "--profile", "huawei", "--source", source, target})
	c.Assert(err, IsNil)
	c.Check(fields(s.Stdout()), DeepEquals, [][]string{
		{"Group", "Partition", "Action", "Size", "Patch", "Reason"},
		{"bootloader", "partition", "blacklisted", "3B", "-", "blacklisted"},
		{"bootloader", "aboot", "full", "6B", "-", "changed"},
		{"bootloader", "tz", "skip", "2B", "-", "unchanged"},
		{"radio", "modem", "block-patch", "8kB", "4kB", "block", "diff"},
		{"radio", "dsp", "full", "3B", "-", "forced", "full", "write"},
		{"blacklisted:", `"partition",`, `"tz"`},
	})
	c.Check(s.logbuf.String(), testutil.Contains, "target bootloader partition image tz matches source; skipping")
}

func (s *fwotaSuite) TestPlanUnchanged(c *C) {
	files := map[string][]byte{"RADIO/bootloader.img": huaweiBootloader("aboot")}
	target := targetFiles(c, "release-keys", files)
	source := targetFiles(c, "release-keys", files)

	err := fwota.ParseArgs([]string{"plan", "--profile", "huawei", "--source", source, target})
	c.Assert(err, IsNil)
	c.Check(fields(s.Stdout()), DeepEquals, [][]string{
		{"Group", "Partition", "Action", "Size", "Patch", "Reason"},
		{"bootloader", "-", "skip", "-", "-", "unchanged"},
	})
}

func (s *fwotaSuite) TestPlanDebugBuild(c *C) {
	target := targetFiles(c, "test-keys", map[string][]byte{"RADIO/bootloader.img": huaweiBootloader("aboot")})

	err := fwota.ParseArgs([]string{"plan", "--profile", "huawei", target})
	c.Assert(err, IsNil)
	c.Check(s.stderr.String(), testutil.Contains, "note: target build is not signed with release keys, using the debug partition lists")
	c.Check(fields(s.Stdout())[0], DeepEquals, []string{"Group", "Partition", "Action", "Size", "Patch", "Reason"})
}

func (s *fwotaSuite) TestPlanTargetCorrupt(c *C) {
	blob := huaweiBootloader("aboot")
	target := targetFiles(c, "release-keys", map[string][]byte{
		"RADIO/bootloader.img": blob[:len(blob)-1],
	})

	err := fwota.ParseArgs([]string{"plan", "--profile", "huawei", target})
	c.Assert(err, ErrorMatches, `cannot unpack meta container "bootloader": container corrupted at offset .*`)
}

func (s *fwotaSuite) TestPlanMissingTargetFiles(c *C) {
	err := fwota.ParseArgs([]string{"plan", "--profile", "huawei", "/does/not/exist.zip"})
	c.Assert(err, ErrorMatches, `cannot open archive: .*`)
}
