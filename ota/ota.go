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

// Package ota adds the firmware partitions of a device to an update
// package, for full and incremental updates.
package ota

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/snapcore/fwota/buildprop"
	"github.com/snapcore/fwota/delta"
	"github.com/snapcore/fwota/devconf"
	"github.com/snapcore/fwota/emitter"
	"github.com/snapcore/fwota/fstab"
	"github.com/snapcore/fwota/logger"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/planner"
	"github.com/snapcore/fwota/script"
)

// Info carries the packages an update is built from and into.
type Info struct {
	// Target is the target-files of the build being installed.
	Target otapkg.Reader
	// Source is the target-files of the build being updated from, nil for
	// a full update.
	Source otapkg.Reader
	// Output receives the blobs referenced by Script.
	Output otapkg.Writer
	Script script.Emitter
}

// PatchCache caches the output of a differ.
type PatchCache interface {
	Wrap(program string, d delta.Differ) delta.Differ
}

// Options tweak the device profile.
type Options struct {
	// PatchThreshold overrides the profile threshold when positive.
	PatchThreshold float64
	// Workers overrides the profile worker count when positive.
	Workers int
	// Cache, if set, is used to reuse patches across builds.
	Cache PatchCache
}

// GroupPlan is the plan of one group of the profile.
type GroupPlan struct {
	Group *devconf.Group
	Plan  *planner.Plan
}

// Updater adds the firmware of a profile to an update package. Plans are
// computed once and shared by the verify and install phases.
type Updater struct {
	profile *devconf.Profile
	info    Info
	opts    Options

	releaseKeys bool
	differ      delta.Differ
	blockDiffer delta.Differ
	emitter     *emitter.Emitter

	plans   []GroupPlan
	planned bool
}

var newToolDiffer = func(program string) (delta.Differ, error) {
	d, err := delta.NewToolDiffer(program)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewUpdater returns an updater for the given profile. The target
// build.prop decides between the release and debug partition lists and the
// target recovery.fstab resolves partitions to devices.
func NewUpdater(profile *devconf.Profile, info Info, opts Options) (*Updater, error) {
	if info.Target == nil || info.Output == nil || info.Script == nil {
		return nil, fmt.Errorf("internal error: incomplete update information")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if opts.PatchThreshold < 0 || opts.PatchThreshold > 1 {
		return nil, fmt.Errorf("patch threshold %v is not in (0, 1]", opts.PatchThreshold)
	}

	u := &Updater{profile: profile, info: info, opts: opts}

	props, err := readBuildProp(info.Target, profile.BuildProp)
	if err != nil {
		return nil, err
	}
	if props != nil {
		u.releaseKeys = props.IsReleaseKeys()
		logger.Debugf("target fingerprint %q, release keys: %v", props.Fingerprint(), u.releaseKeys)
	}

	table, err := readRecoveryFstab(info.Target, profile.RecoveryFstab)
	if err != nil {
		return nil, err
	}

	if profile.DiffProgram != "" {
		d, err := newToolDiffer(profile.DiffProgram)
		if err != nil {
			return nil, err
		}
		if opts.Cache != nil {
			d = opts.Cache.Wrap(profile.DiffProgram, d)
		}
		u.differ = d
		// transfer lists only know how to apply bsdiff patches
		if profile.DiffProgram == "bsdiff" {
			u.blockDiffer = d
		}
	}

	u.emitter = &emitter.Emitter{
		Script:   info.Script,
		Archive:  info.Output,
		Resolver: table,
		Misc:     profile.Misc,
	}
	return u, nil
}

func readBuildProp(r otapkg.Reader, path string) (*buildprop.Props, error) {
	data, err := r.ReadFile(path)
	if xerrors.Is(err, otapkg.ErrNotFound) {
		logger.Noticef("no %s in target files, assuming a debug build", path)
		return nil, nil
	}
	if err != nil {
		fmt := "cannot read build properties: %w"
		return nil, xerrors.Errorf(fmt, err)
	}
	return buildprop.Parse(data)
}

func readRecoveryFstab(r otapkg.Reader, path string) (*fstab.Table, error) {
	data, err := r.ReadFile(path)
	if err != nil {
		fmt := "cannot read recovery.fstab: %w"
		return nil, xerrors.Errorf(fmt, err)
	}
	return fstab.Parse(bytes.NewReader(data))
}

// ReleaseKeys reports whether the target is a release-keys build.
func (u *Updater) ReleaseKeys() bool {
	return u.releaseKeys
}

func (u *Updater) plannerOptions(g *devconf.Group) planner.Options {
	opts := planner.Options{
		PatchThreshold:     u.profile.PatchThreshold,
		Partitions:         g.Partitions(u.releaseKeys),
		Blacklist:          g.Blacklist,
		ForceFull:          g.ForceFull,
		Workers:            u.profile.Workers,
		BlockDiffPartition: g.BlockDiff,
		BlockSize:          g.BlockSize,
		BlockDiffer:        u.blockDiffer,
	}
	if u.opts.PatchThreshold > 0 {
		opts.PatchThreshold = u.opts.PatchThreshold
	}
	if u.opts.Workers > 0 {
		opts.Workers = u.opts.Workers
	}
	if g.Patch {
		opts.Differ = u.differ
	}
	return opts
}

func readContainer(r otapkg.Reader, path string) ([]byte, error) {
	data, err := r.ReadFile(path)
	if xerrors.Is(err, otapkg.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// Plan computes the plans of all groups of the profile, in profile order.
// Groups without a container in the target are left out.
func (u *Updater) Plan(ctx context.Context) ([]GroupPlan, error) {
	if u.planned {
		return u.plans, nil
	}
	var plans []GroupPlan
	for _, g := range u.profile.Groups() {
		target, err := readContainer(u.info.Target, g.ArchivePath)
		if err != nil {
			fmt := "cannot read target %s image: %w"
			return nil, xerrors.Errorf(fmt, g.Name, err)
		}
		if target == nil {
			logger.Noticef("no %s image in target files, skipping", g.Name)
			continue
		}
		var source []byte
		if u.info.Source != nil {
			source, err = readContainer(u.info.Source, g.ArchivePath)
			if err != nil {
				fmt := "cannot read source %s image: %w"
				return nil, xerrors.Errorf(fmt, g.Name, err)
			}
		}
		plan, err := planner.PlanBlobs(ctx, g.Name, g.Format, target, source, u.plannerOptions(g))
		if err != nil {
			return nil, err
		}
		plans = append(plans, GroupPlan{Group: g, Plan: plan})
	}
	u.plans, u.planned = plans, true
	return plans, nil
}

// Blacklist returns the union of the blacklists of all planned groups.
func (u *Updater) Blacklist(ctx context.Context) (planner.Blacklist, error) {
	plans, err := u.Plan(ctx)
	if err != nil {
		return nil, err
	}
	b := planner.NewBlacklist()
	for _, gp := range plans {
		b = b.Union(gp.Plan.Blacklist)
	}
	return b, nil
}

func (u *Updater) install(ctx context.Context) error {
	plans, err := u.Plan(ctx)
	if err != nil {
		return err
	}
	for _, gp := range plans {
		opts := emitter.GroupOptions{
			FlagFiles: gp.Group.FlagFiles,
			Backups:   gp.Group.BackupPartitions,
		}
		if err := u.emitter.EmitGroup(gp.Plan, opts); err != nil {
			return err
		}
	}
	return nil
}

// FullInstallEnd adds the installation of the firmware of a full update.
// Every partition not blacklisted is written in full.
func (u *Updater) FullInstallEnd(ctx context.Context) error {
	if u.info.Source != nil {
		return fmt.Errorf("internal error: full update with a source build")
	}
	return u.install(ctx)
}

// IncrementalVerifyEnd adds the checks that the device holds the images
// the patches of an incremental update apply to. It runs before any
// partition is written.
func (u *Updater) IncrementalVerifyEnd(ctx context.Context) error {
	if u.info.Source == nil {
		return fmt.Errorf("internal error: incremental update without a source build")
	}
	plans, err := u.Plan(ctx)
	if err != nil {
		return err
	}
	for _, gp := range plans {
		if err := u.emitter.EmitVerify(gp.Plan); err != nil {
			return err
		}
	}
	return nil
}

// IncrementalInstallEnd adds the installation of the firmware of an
// incremental update.
func (u *Updater) IncrementalInstallEnd(ctx context.Context) error {
	if u.info.Source == nil {
		return fmt.Errorf("internal error: incremental update without a source build")
	}
	return u.install(ctx)
}
