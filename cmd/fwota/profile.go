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

	"github.com/snapcore/fwota/devconf"
	"github.com/snapcore/fwota/ota"
	"github.com/snapcore/fwota/otapkg"
	"github.com/snapcore/fwota/patchcache"
	"github.com/snapcore/fwota/strutil"
)

// profileMixin selects the device profile and tweaks it.
type profileMixin struct {
	Profile     string  `long:"profile" description:"Name of a built-in device profile"`
	ProfileFile string  `long:"profile-file" description:"Path of a device profile"`
	Threshold   float64 `long:"threshold" description:"Patch size, as a fraction of the image size, a patch must stay below to be sent"`
	Workers     int     `long:"workers" description:"Number of diffs run in parallel"`
	Cache       string  `long:"cache" description:"Path of a database keeping patches across runs"`
}

func (x *profileMixin) profile() (*devconf.Profile, error) {
	switch {
	case x.Profile != "" && x.ProfileFile != "":
		return nil, fmt.Errorf("cannot use --profile and --profile-file together")
	case x.Profile != "":
		return devconf.Builtin(x.Profile)
	case x.ProfileFile != "":
		return devconf.ReadFile(x.ProfileFile)
	}
	return nil, fmt.Errorf("need a device profile, use --profile (one of %s) or --profile-file", strutil.Quoted(devconf.BuiltinNames()))
}

// updater returns an updater for info. The returned function releases the
// patch cache.
func (x *profileMixin) updater(info ota.Info) (*ota.Updater, func(), error) {
	profile, err := x.profile()
	if err != nil {
		return nil, nil, err
	}
	opts := ota.Options{
		PatchThreshold: x.Threshold,
		Workers:        x.Workers,
	}
	done := func() {}
	if x.Cache != "" {
		cache, err := patchcache.Open(x.Cache)
		if err != nil {
			return nil, nil, err
		}
		opts.Cache = cache
		done = func() {
			hits, misses := cache.Stats()
			fmt.Fprintf(Stderr, "patch cache: %d hits, %d misses\n", hits, misses)
			cache.Close()
		}
	}
	u, err := ota.NewUpdater(profile, info, opts)
	if err != nil {
		done()
		return nil, nil, err
	}
	return u, done, nil
}

// openTargetFiles opens a target-files zip or unpacked directory.
func openTargetFiles(path string) (otapkg.Reader, func(), error) {
	r, closer, err := otapkg.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { closer.Close() }, nil
}
