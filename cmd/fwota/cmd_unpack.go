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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/osutil"
)

func init() {
	addCommand("unpack", "List and extract the images of a firmware container", `
The unpack command lists the sub-images of a bootloader or radio container
and, with --output, extracts each of them to <name>.img in that directory.
`, func() flags.Commander { return &cmdUnpack{} })
}

type cmdUnpack struct {
	Format string `long:"format" default:"meta" choice:"bootldr" choice:"meta" choice:"raw" description:"Container format"`
	Label  string `long:"label" description:"Name of the container, defaults to the file name without extension"`
	Output string `long:"output" short:"o" description:"Directory to extract the images to"`

	Positional struct {
		Image string `positional-arg-name:"<image>"`
	} `positional-args:"yes" required:"yes"`
}

func (x *cmdUnpack) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	data, err := os.ReadFile(x.Positional.Image)
	if err != nil {
		return err
	}
	label := x.Label
	if label == "" {
		base := filepath.Base(x.Positional.Image)
		label = strings.TrimSuffix(base, filepath.Ext(base))
	}
	c, err := container.Unpack(container.Format(x.Format), label, data)
	if err != nil {
		return err
	}

	hdr := c.Header
	switch c.Format {
	case container.FormatMeta:
		fmt.Fprintf(Stdout, "%s: %s container version %d.%d %q, %d images\n", c.Label, c.Format, hdr.MajorVersion, hdr.MinorVersion, hdr.ImageVersion, c.Len())
	default:
		fmt.Fprintf(Stdout, "%s: %s container, %d images\n", c.Label, c.Format, c.Len())
	}

	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tOffset\tSize\tSHA1")
	for _, si := range c.Images() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", si.Name, si.Offset, si.Size(), si.SHA1())
	}
	w.Flush()

	if x.Output == "" {
		return nil
	}
	if err := os.MkdirAll(x.Output, 0755); err != nil {
		return err
	}
	for _, si := range c.Images() {
		path := filepath.Join(x.Output, si.Name+".img")
		if err := osutil.AtomicWriteFile(path, si.Data(), 0644, 0); err != nil {
			return fmt.Errorf("cannot extract %s: %v", si.Name, err)
		}
	}
	return nil
}
