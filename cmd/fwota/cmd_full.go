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
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/fwota/osutil"
	"github.com/snapcore/fwota/ota"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/script"
)

// UpdaterScript is where recovery looks for the script in an update
// package.
const UpdaterScript = "META-INF/com/google/android/updater-script"

func init() {
	addCommand("full", "Build a full firmware update package", `
The full command writes an update package installing every firmware
partition of the target build that the device profile does not exclude.
`, func() flags.Commander { return &cmdFull{} })
}

// outputMixin selects where an update package is written.
type outputMixin struct {
	Output   string `long:"output" short:"o" required:"yes" description:"Path of the update package to write"`
	Unpacked bool   `long:"unpacked" description:"Write the update package as a new directory instead of a zip file"`
}

type cmdFull struct {
	profileMixin
	outputMixin

	Positional struct {
		TargetFiles string `positional-arg-name:"<target-files>"`
	} `positional-args:"yes" required:"yes"`
}

func (x *cmdFull) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	return buildPackage(&x.profileMixin, &x.outputMixin, x.Positional.TargetFiles, "")
}

// packageWriter receives the entries of an update package. Close commits
// them, Cancel throws them away.
type packageWriter interface {
	otapkg.Writer
	Names() []string
	Close() error
	Cancel() error
}

type dirPackage struct {
	*otapkg.DirWriter
	dir string
}

func (dirPackage) Close() error { return nil }

func (p dirPackage) Cancel() error {
	return os.RemoveAll(p.dir)
}

func (x *outputMixin) create() (packageWriter, error) {
	if !x.Unpacked {
		zw, err := otapkg.CreateZip(x.Output)
		if err != nil {
			return nil, err
		}
		return zw, nil
	}
	if osutil.FileExists(x.Output) {
		return nil, fmt.Errorf("%s already exists", x.Output)
	}
	if err := os.MkdirAll(x.Output, 0755); err != nil {
		return nil, err
	}
	return dirPackage{DirWriter: otapkg.NewDirWriter(x.Output), dir: x.Output}, nil
}

// buildPackage writes the update package described by out. An empty source
// builds a full update.
func buildPackage(opts *profileMixin, out *outputMixin, targetPath, sourcePath string) (err error) {
	target, closeTarget, err := openTargetFiles(targetPath)
	if err != nil {
		return err
	}
	defer closeTarget()

	var source otapkg.Reader
	if sourcePath != "" {
		var closeSource func()
		source, closeSource, err = openTargetFiles(sourcePath)
		if err != nil {
			return err
		}
		defer closeSource()
	}

	pw, err := out.create()
	if err != nil {
		return fmt.Errorf("cannot create update package: %v", err)
	}
	defer func() {
		if err != nil {
			pw.Cancel()
		}
	}()

	edify := script.NewEdify()
	u, done, err := opts.updater(ota.Info{
		Target: target,
		Source: source,
		Output: pw,
		Script: edify,
	})
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	if source == nil {
		err = u.FullInstallEnd(ctx)
	} else {
		err = u.IncrementalVerifyEnd(ctx)
		if err == nil {
			err = u.IncrementalInstallEnd(ctx)
		}
	}
	if err != nil {
		return err
	}

	if err := pw.WriteFile(UpdaterScript, edify.Bytes()); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("cannot write update package: %v", err)
	}
	fmt.Fprintf(Stdout, "wrote %s: %d script lines, %d entries\n", out.Output, edify.Len(), len(pw.Names()))
	return nil
}
