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

// Package planner decides, partition by partition, how to bring a device
// from a source firmware container to a target one.
package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/snapcore/fwota/blockdiff"
	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/delta"
	"github.com/snapcore/fwota/logger"
)

// Options control planning of one group.
type Options struct {
	// PatchThreshold is required: a patch is only used when its size is
	// below this fraction of the target image size.
	PatchThreshold float64

	// Partitions lists the partitions to consider, in order. When empty
	// all sub-images of the target are considered in container order.
	Partitions []string
	// Blacklist patterns exclude partitions from any write.
	Blacklist []string
	// ForceFull patterns select partitions written in full even when
	// unchanged or patchable.
	ForceFull []string

	// Differ computes patches, patching is disabled when nil.
	Differ delta.Differ
	// Workers bounds the number of concurrent diffs.
	Workers int

	// BlockDiffPartition is diffed block by block when present in both
	// containers.
	BlockDiffPartition string
	BlockSize          int
	// BlockDiffer diffs runs of changed blocks, they are sent as new
	// data when nil.
	BlockDiffer delta.Differ
}

func (opts *Options) validate() error {
	if opts.PatchThreshold <= 0 || opts.PatchThreshold > 1 {
		return fmt.Errorf("patch threshold %v is not in (0, 1]", opts.PatchThreshold)
	}
	for _, patterns := range [][]string{opts.Blacklist, opts.ForceFull} {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid partition pattern %q", p)
			}
		}
	}
	return nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		// patterns were validated
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// PlanGroup plans the update of the partitions in target. source may be
// nil, in which case everything not blacklisted is written in full.
//
// Failures to compute a patch or a block update are not errors, the
// affected partition is written in full instead.
func PlanGroup(ctx context.Context, group string, target, source *container.Container, opts Options) (*Plan, error) {
	if target == nil {
		return nil, fmt.Errorf("internal error: cannot plan %s without a target", group)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("cannot plan %s: %v", group, err)
	}
	if source == nil {
		logger.Noticef("no source %s image, installing complete image", group)
	}

	names := opts.Partitions
	if len(names) == 0 {
		names = target.Names()
	}

	plan := &Plan{Group: group, Blacklist: NewBlacklist()}
	var reqs []delta.Request
	var pending []int
	for _, name := range names {
		t, ok := target.Lookup(name)
		if !ok {
			logger.Noticef("skipping %s partition %s: not in target image", group, name)
			continue
		}
		d := Decision{Name: name, Target: t}

		var s *container.SubImage
		if source != nil {
			s, _ = source.Lookup(name)
		}

		switch {
		case matchAny(opts.Blacklist, name):
			d.Action, d.Reason = Blacklisted, "blacklisted"
			plan.Blacklist[name] = true
		case s != nil && name == opts.BlockDiffPartition:
			planBlockDiff(ctx, group, &d, s, opts)
		case matchAny(opts.ForceFull, name):
			d.Action, d.Reason = FullWrite, "forced full write"
		case source == nil:
			d.Action, d.Reason = FullWrite, "no source image"
		case s == nil:
			d.Action, d.Reason = FullWrite, "not in source image"
		case s.SameContent(t):
			d.Action, d.Reason, d.Source = Skip, "unchanged", s
		case opts.Differ == nil:
			d.Action, d.Reason = FullWrite, "changed"
		default:
			// settled once the patch is computed
			d.Action, d.Source = Patch, s
			pending = append(pending, len(plan.Decisions))
			reqs = append(reqs, delta.Request{Name: name, Source: s.Data(), Target: t.Data()})
		}
		if d.Action == Skip {
			logger.Noticef("target %s partition image %s matches source; skipping", group, name)
			plan.Blacklist[name] = true
		}
		plan.Decisions = append(plan.Decisions, d)
	}

	if len(reqs) > 0 {
		results, err := delta.ComputeAll(ctx, opts.Differ, reqs, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("cannot plan %s: %v", group, err)
		}
		for i, res := range results {
			d := &plan.Decisions[pending[i]]
			size := d.Target.Size()
			switch {
			case res.Err != nil:
				d.Action, d.Reason, d.Source = FullWrite, "patch failed", nil
			case float64(len(res.Patch)) >= float64(size)*opts.PatchThreshold:
				logger.Noticef("patch for %s partition %s is %d bytes for a %d byte image, sending complete image", group, d.Name, len(res.Patch), size)
				d.Action, d.Reason, d.Source = FullWrite, "patch too large", nil
			default:
				d.Action, d.Reason, d.Patch = Patch, "patched", res.Patch
			}
		}
	}
	return plan, nil
}

func planBlockDiff(ctx context.Context, group string, d *Decision, s *container.SubImage, opts Options) {
	if s.SameContent(d.Target) {
		d.Action, d.Reason, d.Source = Skip, "unchanged", s
		return
	}
	tImg, err := blockdiff.NewDataImage(d.Target.Data(), opts.BlockSize, false, true)
	if err == nil {
		var sImg *blockdiff.DataImage
		sImg, err = blockdiff.NewDataImage(s.Data(), opts.BlockSize, false, true)
		if err == nil {
			d.Block, err = blockdiff.Compute(ctx, tImg, sImg, opts.BlockDiffer)
		}
	}
	if err != nil {
		logger.Noticef("cannot compute block update for %s partition %s, sending complete image: %v", group, d.Name, err)
		d.Action, d.Reason, d.Block = FullWrite, "block diff failed", nil
		return
	}
	d.Action, d.Reason, d.Source = BlockPatch, "block diff", s
}

// PlanBlobs unpacks the target and source container blobs and plans the
// update between them. A nil source means there is none.
//
// A target that cannot be unpacked is an error naming the container. A
// source that cannot be unpacked is ignored, as if there was no source.
// When both blobs are identical the plan is Unchanged.
func PlanBlobs(ctx context.Context, group string, format container.Format, target, source []byte, opts Options) (*Plan, error) {
	tc, err := container.Unpack(format, group, target)
	if err != nil {
		return nil, err
	}
	if source != nil && bytes.Equal(source, target) {
		logger.Noticef("%s image unchanged; skipping", group)
		return &Plan{Group: group, Blacklist: NewBlacklist(), Unchanged: true}, nil
	}

	var sc *container.Container
	if source != nil {
		sc, err = container.Unpack(format, group, source)
		var perr *container.ParseError
		switch {
		case container.IsFormatMismatch(err):
			logger.Noticef("source %s image is not a %s container, installing complete image: %v", group, format, err)
			sc = nil
		case errors.As(err, &perr):
			logger.Noticef("cannot use source %s image, installing complete image: %v", group, err)
			sc = nil
		case err != nil:
			return nil, err
		}
	}
	return PlanGroup(ctx, group, tc, sc, opts)
}
