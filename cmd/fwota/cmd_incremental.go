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

package main

import (
	"github.com/jessevdk/go-flags"
)

func init() {
	addCommand("incremental", "Build an incremental firmware update package", `
The incremental command writes an update package bringing a device from the
source build to the target build. Unchanged partitions are left alone and
changed ones are patched when the patch is small enough, after checking
that the device holds the expected images.
`, func() flags.Commander { return &cmdIncremental{} })
}

type cmdIncremental struct {
	profileMixin
	outputMixin
	Source string `long:"source" required:"yes" description:"Target files of the build to update from"`

	Positional struct {
		TargetFiles string `positional-arg-name:"<target-files>"`
	} `positional-args:"yes" required:"yes"`
}

func (x *cmdIncremental) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	return buildPackage(&x.profileMixin, &x.outputMixin, x.Positional.TargetFiles, x.Source)
}
