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

package planner

import (
	"sort"
	"strings"

	"github.com/snapcore/fwota/blockdiff"
	"github.com/snapcore/fwota/container"
)

// Action is what happens to one partition.
type Action int

const (
	// Skip leaves the partition alone, its content is unchanged.
	Skip Action = iota
	// FullWrite writes the whole target image.
	FullWrite
	// Patch applies a binary patch to the partition content.
	Patch
	// BlockPatch applies a block based update.
	BlockPatch
	// Blacklisted partitions are never written.
	Blacklisted
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case FullWrite:
		return "full"
	case Patch:
		return "patch"
	case BlockPatch:
		return "block-patch"
	case Blacklisted:
		return "blacklisted"
	}
	return "unknown"
}

// Decision is the planned action for one partition.
type Decision struct {
	Name   string
	Action Action
	// Target is always set. Source is set for Skip, Patch and BlockPatch.
	Target *container.SubImage
	Source *container.SubImage
	// Patch is set for Patch decisions.
	Patch []byte
	// Block is set for BlockPatch decisions.
	Block *blockdiff.Update
	// Reason is a short explanation of the decision.
	Reason string
}

// Writes reports whether the decision puts anything on the device.
func (d *Decision) Writes() bool {
	return d.Action == FullWrite || d.Action == Patch || d.Action == BlockPatch
}

// Blacklist is a set of partition names excluded from any write.
type Blacklist map[string]bool

// NewBlacklist returns a blacklist holding names.
func NewBlacklist(names ...string) Blacklist {
	b := make(Blacklist, len(names))
	for _, name := range names {
		b[name] = true
	}
	return b
}

// Contains reports whether name is blacklisted.
func (b Blacklist) Contains(name string) bool {
	return b[name]
}

// Union returns a new blacklist holding the names of both.
func (b Blacklist) Union(other Blacklist) Blacklist {
	u := make(Blacklist, len(b)+len(other))
	for name := range b {
		u[name] = true
	}
	for name := range other {
		u[name] = true
	}
	return u
}

// Names returns the blacklisted names, sorted.
func (b Blacklist) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b Blacklist) String() string {
	return strings.Join(b.Names(), ",")
}

// Plan is the ordered list of decisions for one group of partitions.
type Plan struct {
	// Group is the label of the container, e.g. "bootloader".
	Group string
	// Decisions are in the group's declared partition order.
	Decisions []Decision
	// Blacklist holds the names that must not be written: those excluded
	// by policy and those found identical to the source.
	Blacklist Blacklist
	// Unchanged is set when source and target containers are the same
	// blob, in which case there are no decisions.
	Unchanged bool
}

// Decision returns the decision for the named partition.
func (p *Plan) Decision(name string) (*Decision, bool) {
	for i := range p.Decisions {
		if p.Decisions[i].Name == name {
			return &p.Decisions[i], true
		}
	}
	return nil, false
}

// HasWork reports whether anything is to be written.
func (p *Plan) HasWork() bool {
	for i := range p.Decisions {
		if p.Decisions[i].Writes() {
			return true
		}
	}
	return false
}

// Count returns the number of decisions with the given action.
func (p *Plan) Count(a Action) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Action == a {
			n++
		}
	}
	return n
}
