// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2018,2026 Canonical Ltd
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
	"context"
	"os/exec"
	"time"

	"gopkg.in/check.v1"

	"github.com/snapcore/fwota/osutil"
)

type ctxSuite struct{}

var _ = check.Suite(&ctxSuite{})

func (ctxSuite) TestRunRunsIfNotCancelled(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Check(osutil.RunWithContext(ctx, exec.Command("/bin/sh", "-c", "exit 0")), check.IsNil)
}

func (ctxSuite) TestRunDoesNotRunIfCancelled(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	c.Check(osutil.RunWithContext(ctx, cmd), check.Equals, context.Canceled)
	c.Check(cmd.ProcessState, check.IsNil)
}

func (ctxSuite) TestRunKillsOnTimeout(c *check.C) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cmd := exec.Command("/bin/sh", "-c", "exec sleep 5")
	c.Check(osutil.RunWithContext(ctx, cmd), check.Equals, context.DeadlineExceeded)
}

func (ctxSuite) TestRunReportsExitStatus(c *check.C) {
	err := osutil.RunWithContext(context.Background(), exec.Command("/bin/sh", "-c", "exit 3"))
	c.Assert(err, check.NotNil)
	exitErr, ok := err.(*exec.ExitError)
	c.Assert(ok, check.Equals, true)
	c.Check(exitErr.ExitCode(), check.Equals, 3)
}
