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

// Package emitter turns partition plans into update script instructions
// and the archive entries they refer to.
package emitter

import (
	"errors"
	"fmt"

	"github.com/snapcore/fwota/fstab"
	"github.com/snapcore/fwota/logger"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/planner"
	"github.com/snapcore/fwota/script"
)

const (
	// FlagFile is the archive entry raising the bootloader update flag.
	FlagFile = "bootloader-flag.txt"
	// FlagClearFile is the archive entry clearing it.
	FlagClearFile = "bootloader-flag-clear.txt"
)

var (
	flagSet   = append([]byte("updating-bootloader"), make([]byte, 13)...)
	flagClear = make([]byte, 32)
)

// Resolver maps a partition name to its type and device path on the
// device. A partition without an entry yields an error wrapping
// fstab.ErrNotFound.
type Resolver interface {
	Resolve(name string) (typ, device string, err error)
}

// Emitter writes the instructions of planned groups to Script and the
// blobs they need to Archive.
type Emitter struct {
	Script   script.Emitter
	Archive  otapkg.Writer
	Resolver Resolver
	// Misc is the partition holding the bootloader update flag.
	Misc string

	written map[string]bool
}

// GroupOptions control the emission of one group.
type GroupOptions struct {
	// FlagFiles brackets the partition writes with the bootloader update
	// flag.
	FlagFiles bool
	// Backups are written again to their "<name>b" twin once the flag is
	// cleared.
	Backups []string
}

// ImageName returns the archive entry holding the full image of the named
// partition of group.
func ImageName(group, name string) string {
	if name == group {
		return name + ".img"
	}
	return group + "." + name + ".img"
}

// PatchName returns the archive entry holding the patch for the named
// partition of group.
func PatchName(group, name string) string {
	return ImageName(group, name) + ".p"
}

// BlockNames returns the archive entries of the transfer list, new data
// and patch data of a block update of the named partition.
func BlockNames(name string) (transferList, newData, patchData string) {
	return name + ".transfer.list", name + ".new.dat", name + ".patch.dat"
}

func (e *Emitter) writeFile(name string, data []byte) error {
	if e.written[name] {
		return nil
	}
	if err := e.Archive.WriteFile(name, data); err != nil {
		return fmt.Errorf("cannot add %s to update package: %v", name, err)
	}
	if e.written == nil {
		e.written = make(map[string]bool)
	}
	e.written[name] = true
	return nil
}

// resolve returns the type and device of a partition. ok is false when the
// partition is not known to the device, which is logged and not an error.
func (e *Emitter) resolve(group, name string) (typ, device string, ok bool, err error) {
	typ, device, err = e.Resolver.Resolve(name)
	if errors.Is(err, fstab.ErrNotFound) {
		logger.Noticef("skipping %s partition %s: %v", group, name, err)
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return typ, device, true, nil
}

type op struct {
	d      *planner.Decision
	typ    string
	device string
}

func (e *Emitter) ops(plan *planner.Plan) ([]op, error) {
	var ops []op
	for i := range plan.Decisions {
		d := &plan.Decisions[i]
		if !d.Writes() {
			continue
		}
		typ, device, ok, err := e.resolve(plan.Group, d.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			ops = append(ops, op{d: d, typ: typ, device: device})
		}
	}
	return ops, nil
}

func descriptor(o op) script.Descriptor {
	return script.Descriptor{
		Type:   o.typ,
		Device: o.device,
		Source: o.d.Source.Identity(),
		Target: o.d.Target.Identity(),
	}
}

// EmitGroup emits the installation of plan. Nothing is emitted for an
// unchanged group or when no partition is left to write.
//
// With opts.FlagFiles the update flag is raised before the first partition
// is written and cleared after the last one, so that an interrupted update
// leaves it set. Backups follow the cleared flag.
func (e *Emitter) EmitGroup(plan *planner.Plan, opts GroupOptions) error {
	if plan.Unchanged {
		return nil
	}
	if !plan.HasWork() {
		logger.Noticef("nothing to write for %s", plan.Group)
		return nil
	}
	ops, err := e.ops(plan)
	if err != nil {
		return fmt.Errorf("cannot emit %s: %v", plan.Group, err)
	}
	if len(ops) == 0 {
		logger.Noticef("nothing to write for %s", plan.Group)
		return nil
	}

	var miscDevice string
	if opts.FlagFiles {
		_, miscDevice, err = e.Resolver.Resolve(e.Misc)
		if err != nil {
			return fmt.Errorf("cannot emit %s: cannot set update flag: %v", plan.Group, err)
		}
	}

	e.Script.Print(fmt.Sprintf("Writing %s...", plan.Group))
	if opts.FlagFiles {
		if err := e.writeFile(FlagFile, flagSet); err != nil {
			return err
		}
		if err := e.writeFile(FlagClearFile, flagClear); err != nil {
			return err
		}
		e.Script.ExtractFile(FlagFile, miscDevice)
	}

	for _, o := range ops {
		if err := e.emitOp(plan.Group, o); err != nil {
			return err
		}
	}

	if opts.FlagFiles {
		e.Script.ExtractFile(FlagClearFile, miscDevice)
	}
	return e.emitBackups(plan, ops, opts.Backups)
}

func (e *Emitter) emitOp(group string, o op) error {
	d := o.d
	switch d.Action {
	case planner.FullWrite:
		name := ImageName(group, d.Name)
		if err := e.writeFile(name, d.Target.Data()); err != nil {
			return err
		}
		e.Script.Print(fmt.Sprintf("writing partition image %s", d.Name))
		e.Script.ExtractFile(name, o.device)
	case planner.Patch:
		name := PatchName(group, d.Name)
		if err := e.writeFile(name, d.Patch); err != nil {
			return err
		}
		e.Script.Print(fmt.Sprintf("patching partition image %s", d.Name))
		e.Script.ApplyPatch(descriptor(o), name)
	case planner.BlockPatch:
		tl, nd, pd := BlockNames(d.Name)
		for _, f := range []struct {
			name string
			data []byte
		}{{tl, d.Block.TransferList}, {nd, d.Block.NewData}, {pd, d.Block.PatchData}} {
			if err := e.writeFile(f.name, f.data); err != nil {
				return err
			}
		}
		e.Script.Print(fmt.Sprintf("updating partition image %s", d.Name))
		e.Script.BlockImageUpdate(script.BlockUpdate{
			Partition:    d.Name,
			Device:       o.device,
			SourceRanges: d.Block.SourceRanges.String(),
			SourceSHA1:   d.Block.SourceSHA1,
			TransferList: tl,
			NewData:      nd,
			PatchData:    pd,
		})
	default:
		return fmt.Errorf("internal error: cannot emit %s partition %s with action %s", group, d.Name, d.Action)
	}
	return nil
}

// emitBackups writes the full image of every written backup partition to
// its "<name>b" twin.
func (e *Emitter) emitBackups(plan *planner.Plan, ops []op, backups []string) error {
	emitted := make(map[string]*planner.Decision, len(ops))
	for _, o := range ops {
		emitted[o.d.Name] = o.d
	}
	for _, name := range backups {
		d, ok := emitted[name]
		if !ok {
			continue
		}
		_, device, ok, err := e.resolve(plan.Group, name+"b")
		if err != nil {
			return fmt.Errorf("cannot emit %s backups: %v", plan.Group, err)
		}
		if !ok {
			continue
		}
		image := ImageName(plan.Group, name)
		if err := e.writeFile(image, d.Target.Data()); err != nil {
			return err
		}
		e.Script.ExtractFile(image, device)
	}
	return nil
}

// EmitVerify emits the checks run before any partition is touched: room on
// /cache for the source image, and the partition holding either the source
// or the target image, for every patched partition of plan.
func (e *Emitter) EmitVerify(plan *planner.Plan) error {
	if plan.Unchanged {
		return nil
	}
	for i := range plan.Decisions {
		d := &plan.Decisions[i]
		if d.Action != planner.Patch && d.Action != planner.BlockPatch {
			continue
		}
		typ, device, ok, err := e.resolve(plan.Group, d.Name)
		if err != nil {
			return fmt.Errorf("cannot verify %s: %v", plan.Group, err)
		}
		if !ok {
			continue
		}
		o := op{d: d, typ: typ, device: device}
		e.Script.CacheFreeSpaceCheck(d.Source.Size())
		e.Script.PatchCheck(descriptor(o))
	}
	return nil
}
