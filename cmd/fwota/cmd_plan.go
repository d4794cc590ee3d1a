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
	"text/tabwriter"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/fwota/ota"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/planner"
	"github.com/snapcore/fwota/script"
	"github.com/snapcore/fwota/strutil"
)

func init() {
	addCommand("plan", "Show what an update would do to each partition", `
The plan command shows, for every firmware partition of the target build,
whether it would be skipped, written in full or patched, without writing an
update package. Pass --source to plan an incremental update.
`, func() flags.Commander { return &cmdPlan{} })
}

type cmdPlan struct {
	profileMixin
	Source string `long:"source" description:"Target files of the build to update from"`

	Positional struct {
		TargetFiles string `positional-arg-name:"<target-files>"`
	} `positional-args:"yes" required:"yes"`
}

// discardWriter drops archive entries.
type discardWriter struct{}

func (discardWriter) WriteFile(string, []byte) error { return nil }

func (x *cmdPlan) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	target, closeTarget, err := openTargetFiles(x.Positional.TargetFiles)
	if err != nil {
		return err
	}
	defer closeTarget()
	info := ota.Info{
		Target: target,
		Output: discardWriter{},
		Script: script.NewEdify(),
	}
	if x.Source != "" {
		var closeSource func()
		info.Source, closeSource, err = openTargetFiles(x.Source)
		if err != nil {
			return err
		}
		defer closeSource()
	}

	u, done, err := x.updater(info)
	if err != nil {
		return err
	}
	defer done()
	if !u.ReleaseKeys() {
		fmt.Fprintln(Stderr, "note: target build is not signed with release keys, using the debug partition lists")
	}
	plans, err := u.Plan(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintln(w, "Group\tPartition\tAction\tSize\tPatch\tReason")
	for _, gp := range plans {
		if gp.Plan.Unchanged {
			fmt.Fprintf(w, "%s\t-\tskip\t-\t-\tunchanged\n", gp.Group.Name)
			continue
		}
		for _, d := range gp.Plan.Decisions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", gp.Group.Name, d.Name, d.Action, strutil.SizeToStr(d.Target.Size()), patchSize(&d), d.Reason)
		}
	}
	w.Flush()

	blacklist, err := u.Blacklist(context.Background())
	if err != nil {
		return err
	}
	if len(blacklist) > 0 {
		fmt.Fprintf(Stdout, "blacklisted: %s\n", strutil.Quoted(blacklist.Names()))
	}
	return nil
}

func patchSize(d *planner.Decision) string {
	switch d.Action {
	case planner.Patch:
		return strutil.SizeToStr(int64(len(d.Patch)))
	case planner.BlockPatch:
		return strutil.SizeToStr(int64(len(d.Block.NewData) + len(d.Block.PatchData)))
	}
	return "-"
}

var _ otapkg.Writer = discardWriter{}
