// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2019-2020,2026 Canonical Ltd
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

// Package devconf describes how the firmware of a device family is
// packaged and updated.
package devconf

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v2"

	"github.com/snapcore/fwota/blockdiff"
	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/delta"
)

const (
	// DefaultBuildProp is the location of build.prop in target-files.
	DefaultBuildProp = "SYSTEM/build.prop"
	// DefaultRecoveryFstab is the location of recovery.fstab in
	// target-files.
	DefaultRecoveryFstab = "RECOVERY/RAMDISK/etc/recovery.fstab"
	// DefaultMisc is the partition holding the bootloader update flag.
	DefaultMisc = "misc"
)

// Profile describes a device family.
type Profile struct {
	Name string `yaml:"name"`
	// PatchThreshold is the fraction of the target size a patch must stay
	// below to be used instead of the full image.
	PatchThreshold float64 `yaml:"patch-threshold"`
	// DiffProgram is the program computing patches, patching is disabled
	// when empty.
	DiffProgram string `yaml:"diff-program"`
	// Workers bounds the number of concurrent diffs, 0 means one per CPU.
	Workers int `yaml:"workers"`

	Misc          string `yaml:"misc"`
	BuildProp     string `yaml:"build-prop"`
	RecoveryFstab string `yaml:"recovery-fstab"`

	Bootloader *Group `yaml:"bootloader"`
	Radio      *Group `yaml:"radio"`
}

// Group describes one firmware container.
type Group struct {
	// Name is set from the key the group is defined under.
	Name string `yaml:"-"`

	// ArchivePath is the location of the container in target-files.
	ArchivePath string           `yaml:"archive-path"`
	Format      container.Format `yaml:"format"`

	// ReleasePartitions are flashed for release-keys builds and
	// DebugPartitions for all other builds. When the applicable list is
	// empty every sub-image is flashed in container order.
	ReleasePartitions []string `yaml:"release-partitions"`
	DebugPartitions   []string `yaml:"debug-partitions"`
	// BackupPartitions are also written to their "<name>b" twin.
	BackupPartitions []string `yaml:"backup-partitions"`

	// Blacklist patterns name partitions that are never written.
	Blacklist []string `yaml:"blacklist"`
	// ForceFull patterns name partitions written in full even when they
	// are unchanged.
	ForceFull []string `yaml:"force-full"`
	// Patch enables per-partition patches.
	Patch bool `yaml:"patch"`
	// FlagFiles brackets the partition writes with the bootloader update
	// flag on the misc partition.
	FlagFiles bool `yaml:"flag-files"`

	// BlockDiff names a partition updated with a block based diff when it
	// exists in both images.
	BlockDiff string `yaml:"block-diff"`
	BlockSize int    `yaml:"block-size"`
}

// Groups returns the configured groups, bootloader first.
func (p *Profile) Groups() []*Group {
	var groups []*Group
	if p.Bootloader != nil {
		groups = append(groups, p.Bootloader)
	}
	if p.Radio != nil {
		groups = append(groups, p.Radio)
	}
	return groups
}

// Partitions returns the partitions to flash for a release-keys or a
// debug build.
func (g *Group) Partitions(releaseKeys bool) []string {
	if releaseKeys {
		return g.ReleasePartitions
	}
	return g.DebugPartitions
}

var validPartitionName = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Parse decodes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse device profile: %v", err)
	}
	if p.Misc == "" {
		p.Misc = DefaultMisc
	}
	if p.BuildProp == "" {
		p.BuildProp = DefaultBuildProp
	}
	if p.RecoveryFstab == "" {
		p.RecoveryFstab = DefaultRecoveryFstab
	}
	if p.Bootloader != nil {
		p.Bootloader.Name = "bootloader"
	}
	if p.Radio != nil {
		p.Radio.Name = "radio"
	}
	for _, g := range p.Groups() {
		if g.BlockDiff != "" && g.BlockSize == 0 {
			g.BlockSize = blockdiff.DefaultBlockSize
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReadFile loads the profile at path.
func ReadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks the profile for consistency.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("invalid device profile: missing name")
	}
	if p.PatchThreshold <= 0 || p.PatchThreshold > 1 {
		return fmt.Errorf("invalid device profile %q: patch threshold %v is not in (0, 1]", p.Name, p.PatchThreshold)
	}
	if p.Workers < 0 {
		return fmt.Errorf("invalid device profile %q: negative number of workers", p.Name)
	}
	if p.DiffProgram != "" {
		if _, err := delta.NewToolDiffer(p.DiffProgram); err != nil {
			return fmt.Errorf("invalid device profile %q: %v", p.Name, err)
		}
	}
	if !validPartitionName.MatchString(p.Misc) {
		return fmt.Errorf("invalid device profile %q: invalid misc partition name %q", p.Name, p.Misc)
	}
	groups := p.Groups()
	if len(groups) == 0 {
		return fmt.Errorf("invalid device profile %q: no bootloader or radio defined", p.Name)
	}
	for _, g := range groups {
		if err := g.validate(); err != nil {
			return fmt.Errorf("invalid device profile %q: invalid %s: %v", p.Name, g.Name, err)
		}
		if g.Patch && p.DiffProgram == "" {
			return fmt.Errorf("invalid device profile %q: %s patches need a diff program", p.Name, g.Name)
		}
	}
	return nil
}

func validatePartitions(what string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !validPartitionName.MatchString(name) {
			return fmt.Errorf("invalid %s partition name %q", what, name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate %s partition %q", what, name)
		}
		seen[name] = true
	}
	return nil
}

func validatePatterns(what string, patterns []string) error {
	for _, pattern := range patterns {
		if pattern == "" || !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid %s pattern %q", what, pattern)
		}
	}
	return nil
}

func (g *Group) validate() error {
	if g.ArchivePath == "" {
		return errors.New("missing archive path")
	}
	if _, err := container.ParserFor(g.Format); err != nil {
		return err
	}
	if err := validatePartitions("release", g.ReleasePartitions); err != nil {
		return err
	}
	if err := validatePartitions("debug", g.DebugPartitions); err != nil {
		return err
	}
	if err := validatePartitions("backup", g.BackupPartitions); err != nil {
		return err
	}
	if err := validatePatterns("blacklist", g.Blacklist); err != nil {
		return err
	}
	if err := validatePatterns("force-full", g.ForceFull); err != nil {
		return err
	}
	if g.BlockDiff != "" {
		if g.Format == container.FormatRaw {
			return errors.New("block diff needs a container format")
		}
		if !validPartitionName.MatchString(g.BlockDiff) {
			return fmt.Errorf("invalid block diff partition name %q", g.BlockDiff)
		}
	}
	if g.BlockSize < 0 || (g.BlockSize > 0 && g.BlockSize%512 != 0) {
		return fmt.Errorf("invalid block size %d", g.BlockSize)
	}
	return nil
}

var builtin = map[string]string{
	"msm8974": `
name: msm8974
patch-threshold: 0.95
diff-program: bsdiff
bootloader:
  archive-path: RADIO/bootloader.img
  format: bootldr
  flag-files: true
  release-partitions: [aboot, rpm, tz, sbl1, sdi, imgdata]
  debug-partitions: [aboot, rpm, tz, sbl1, sdi, imgdata]
  backup-partitions: [aboot, rpm, sbl1, tz]
  # the whole set is rewritten whenever bootloader.img changes
  force-full: ["*"]
radio:
  archive-path: RADIO/radio.img
  format: raw
  patch: true
`,
	"huawei": `
name: huawei
patch-threshold: 0.95
bootloader:
  archive-path: RADIO/bootloader.img
  format: meta
  flag-files: true
  # the partition table cannot be flashed over the air
  blacklist: [partition]
radio:
  archive-path: RADIO/radio.img
  format: meta
  block-diff: modem
  block-size: 4096
  # flex images must be flashed even when unchanged
  force-full: ["*"]
`,
}

// Builtin returns the named built-in profile.
func Builtin(name string) (*Profile, error) {
	data, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown device profile %q", name)
	}
	return Parse([]byte(data))
}

// BuiltinNames returns the names of the built-in profiles.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
