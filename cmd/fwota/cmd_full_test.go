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
	"path/filepath"
	"strings"

	. "gopkg.in/check.v1"

	fwota "github.com/snapcore/fwota/cmd/fwota"
	"github.com/snapcore/fwota/container/containertest"
	"github.com/snapcore/fwota/osutil"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/testutil"
)

const hammerhead = "google/hammerhead/hammerhead:6.0.1/M4B30Z/3437181:user/release-keys"

func msm8974Bootloader(rpm string) []byte {
	return containertest.Bootldr(
		containertest.Entry{Name: "aboot", Data: []byte("aboot")},
		containertest.Entry{Name: "rpm", Data: []byte(rpm)},
	)
}

func readPackage(c *C, path string) (updaterScript []string, zr *otapkg.ZipReader) {
	zr, err := otapkg.OpenZip(path)
	c.Assert(err, IsNil)
	data, err := zr.ReadFile(fwota.UpdaterScript)
	c.Assert(err, IsNil)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), zr
}

var msm8974BootloaderScript = []string{
	`ui_print("Writing bootloader...");`,
	`package_extract_file("bootloader-flag.txt", "/dev/block/by-name/misc");`,
	`ui_print("writing partition image aboot");`,
	`package_extract_file("bootloader.aboot.img", "/dev/block/by-name/aboot");`,
	`ui_print("writing partition image rpm");`,
	`package_extract_file("bootloader.rpm.img", "/dev/block/by-name/rpm");`,
	`package_extract_file("bootloader-flag-clear.txt", "/dev/block/by-name/misc");`,
	`package_extract_file("bootloader.aboot.img", "/dev/block/by-name/abootb");`,
	`package_extract_file("bootloader.rpm.img", "/dev/block/by-name/rpmb");`,
}

func (s *fwotaSuite) TestFullMsm8974(c *C) {
	target := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": msm8974Bootloader("rpm"),
		"RADIO/radio.img":      containertest.Fill('r', 64),
	})
	output := filepath.Join(c.MkDir(), "update.zip")

	err := fwota.ParseArgs([]string{"full", "--profile", "msm8974", "-o", output, target})
	c.Assert(err, IsNil)
	c.Check(s.Stdout(), Equals, "wrote "+output+": 12 script lines, 6 entries\n")

	lines, zr := readPackage(c, output)
	defer zr.Close()
	c.Check(lines, DeepEquals, append(append([]string(nil), msm8974BootloaderScript...),
		`ui_print("Writing radio...");`,
		`ui_print("writing partition image radio");`,
		`package_extract_file("radio.img", "/dev/block/by-name/radio");`,
	))
	radio, err := zr.ReadFile("radio.img")
	c.Assert(err, IsNil)
	c.Check(radio, DeepEquals, containertest.Fill('r', 64))
	flag, err := zr.ReadFile("bootloader-flag.txt")
	c.Assert(err, IsNil)
	c.Check(flag, DeepEquals, []byte("updating-bootloader\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"))

	c.Check(s.logbuf.String(), testutil.Contains, "skipping bootloader partition sdi: not in target image")
}

func (s *fwotaSuite) TestIncrementalMsm8974WithCache(c *C) {
	bsdiff := testutil.MockCommand(c, "bsdiff", `printf PATCH > "$3"`)
	defer bsdiff.Restore()

	target := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": msm8974Bootloader("rpm2"),
		"RADIO/radio.img":      containertest.Fill('n', 100),
	})
	source := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": msm8974Bootloader("rpm1"),
		"RADIO/radio.img":      containertest.Fill('o', 100),
	})
	cache := filepath.Join(c.MkDir(), "patches.db")
	output := filepath.Join(c.MkDir(), "incremental.zip")

	err := fwota.ParseArgs([]string{"incremental", "--profile", "msm8974", "--cache", cache, "--source", source, "-o", output, target})
	c.Assert(err, IsNil)
	c.Check(s.Stdout(), Equals, "wrote "+output+": 14 script lines, 6 entries\n")
	c.Check(s.stderr.String(), Equals, "patch cache: 0 hits, 1 misses\n")
	c.Assert(bsdiff.Calls(), HasLen, 1)
	c.Check(bsdiff.Calls()[0], HasLen, 4)

	lines, zr := readPackage(c, output)
	c.Assert(lines, HasLen, 14)
	c.Check(lines[0], Equals, `apply_patch_space(100) || abort("Not enough free space on /cache to apply patches.");`)
	c.Check(lines[1], Matches, `apply_patch_check\("EMMC:/dev/block/by-name/radio:100:[0-9a-f]{40}:100:[0-9a-f]{40}"\) .*`)
	c.Check(lines[2:11], DeepEquals, msm8974BootloaderScript)
	c.Check(lines[12], Equals, `ui_print("patching partition image radio");`)
	c.Check(lines[13], Matches, `apply_patch\(.*, package_extract_file\("radio.img.p"\)\);`)
	patch, err := zr.ReadFile("radio.img.p")
	c.Assert(err, IsNil)
	c.Check(string(patch), Equals, "PATCH")
	zr.Close()

	// the second run is served from the cache
	s.stdout.Reset()
	s.stderr.Reset()
	bsdiff.ForgetCalls()
	err = fwota.ParseArgs([]string{"incremental", "--profile", "msm8974", "--cache", cache, "--source", source, "-o", output, target})
	c.Assert(err, IsNil)
	c.Check(s.stderr.String(), Equals, "patch cache: 1 hits, 0 misses\n")
	c.Check(bsdiff.Calls(), HasLen, 0)
}

func (s *fwotaSuite) TestFullUnpacked(c *C) {
	target := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": msm8974Bootloader("rpm"),
		"RADIO/radio.img":      containertest.Fill('r', 64),
	})
	output := filepath.Join(c.MkDir(), "update")

	err := fwota.ParseArgs([]string{"full", "--profile", "msm8974", "--unpacked", "-o", output, target})
	c.Assert(err, IsNil)
	c.Check(s.Stdout(), Equals, "wrote "+output+": 12 script lines, 6 entries\n")
	c.Check(filepath.Join(output, "radio.img"), testutil.FileEquals, string(containertest.Fill('r', 64)))
	c.Check(filepath.Join(output, "bootloader.rpm.img"), testutil.FileEquals, "rpm")
	c.Check(osutil.FileExists(filepath.Join(output, "META-INF", "com", "google", "android", "updater-script")), Equals, true)

	// an existing directory is not overwritten
	err = fwota.ParseArgs([]string{"full", "--profile", "msm8974", "--unpacked", "-o", output, target})
	c.Assert(err, ErrorMatches, `cannot create update package: .*/update already exists`)
	c.Check(filepath.Join(output, "radio.img"), testutil.FileEquals, string(containertest.Fill('r', 64)))
}

func (s *fwotaSuite) TestFullUnpackedFailureLeavesNothing(c *C) {
	blob := msm8974Bootloader("rpm")
	target := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": blob[:len(blob)-1],
	})
	output := filepath.Join(c.MkDir(), "update")

	err := fwota.ParseArgs([]string{"full", "--profile", "msm8974", "--unpacked", "-o", output, target})
	c.Assert(err, ErrorMatches, `cannot unpack bootldr container "bootloader": container corrupted .*`)
	c.Check(osutil.FileExists(output), Equals, false)
}

func (s *fwotaSuite) TestIncrementalNeedsSource(c *C) {
	target := targetFiles(c, hammerhead, nil)
	err := fwota.ParseArgs([]string{"incremental", "--profile", "msm8974", "-o", "out.zip", target})
	c.Assert(err, ErrorMatches, "the required flag `--source' was not specified")
}

func (s *fwotaSuite) TestFullFailureLeavesNoPackage(c *C) {
	blob := msm8974Bootloader("rpm")
	target := targetFiles(c, hammerhead, map[string][]byte{
		"RADIO/bootloader.img": blob[:len(blob)-1],
	})
	output := filepath.Join(c.MkDir(), "update.zip")

	err := fwota.ParseArgs([]string{"full", "--profile", "msm8974", "-o", output, target})
	c.Assert(err, ErrorMatches, `cannot unpack bootldr container "bootloader": container corrupted .*`)
	c.Check(osutil.FileExists(output), Equals, false)
}
