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

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/check.v1"
)

type mockCommandSuite struct{}

var _ = check.Suite(&mockCommandSuite{})


func (s *mockCommandSuite) TestMockCommand(c *check.C) {
	mock := MockCommand(c, "cmd", "")
	defer mock.Restore()
	err := exec.Command("cmd", "first-run", "--arg1", "arg2", "a space").Run()
	c.Assert(err, check.IsNil)
	err = exec.Command("cmd", "second-run", "--arg1", "arg2", "a %s").Run()
	c.Assert(err, check.IsNil)
	c.Assert(mock.Calls(), check.DeepEquals, [][]string{
		{"cmd", "first-run", "--arg1", "arg2", "a space"},
		{"cmd", "second-run", "--arg1", "arg2", "a %s"},
	})
}

func (s *mockCommandSuite) TestMockCommandAlsoWorksWithQuotes(c *check.C) {
	mock := MockCommand(c, "cmd", `echo "hello world"`)
	defer mock.Restore()
	out, err := exec.Command("cmd").CombinedOutput()
	c.Assert(err, check.IsNil)
	c.Check(string(out), check.Equals, "hello world\n")
}

func (s *mockCommandSuite) TestMockCommandFailure(c *check.C) {
	mock := MockCommand(c, "cmd", "exit 42")
	defer mock.Restore()
	err := exec.Command("cmd").Run()
	c.Assert(err, check.NotNil)
	c.Check(err.(*exec.ExitError).ExitCode(), check.Equals, 42)
}

func (s *mockCommandSuite) TestMockCommandAbsPath(c *check.C) {
	binDir := c.MkDir()
	exe := filepath.Join(binDir, "fake", "cmd")
	mock := MockCommand(c, exe, "")
	defer mock.Restore()
	_, err := os.Stat(exe)
	c.Check(err, check.IsNil)
	c.Check(strings.Contains(os.Getenv("PATH"), filepath.Dir(exe)), check.Equals, false)

	c.Assert(exec.Command(exe, "x").Run(), check.IsNil)
	c.Check(mock.Calls(), check.DeepEquals, [][]string{{"cmd", "x"}})

	mock.ForgetCalls()
	c.Check(mock.Calls(), check.IsNil)
}
