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

// Package buildprop reads the build.prop of a target-files archive.
package buildprop

import (
	"fmt"
	"strings"

	"github.com/mvo5/goconfigparser"
)

// FingerprintKey is the build.prop key holding the build fingerprint.
const FingerprintKey = "ro.build.fingerprint"

// Props holds the properties of a build.prop.
type Props struct {
	cfg *goconfigparser.ConfigParser
}

// skipLine reports whether line would be misread by the config parser:
// import statements, lines looking like a section header and lines whose
// first separator is ':' rather than '='.
func skipLine(line string) bool {
	if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "[") {
		return true
	}
	eq := strings.IndexByte(line, '=')
	return eq < 0 || strings.ContainsRune(line[:eq], ':')
}

// Parse parses build.prop content. Comments, import statements and other
// lines that are not key=value assignments are ignored. When a key is set
// more than once the last value wins.
func Parse(data []byte) (*Props, error) {
	var props strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if skipLine(line) {
			continue
		}
		props.WriteString(line)
		props.WriteByte('\n')
	}

	cfg := goconfigparser.New()
	cfg.AllowNoSectionHeader = true
	if err := cfg.ReadString(props.String()); err != nil {
		return nil, fmt.Errorf("cannot parse build.prop: %v", err)
	}
	return &Props{cfg: cfg}, nil
}

// Get returns the value of key.
func (p *Props) Get(key string) (string, bool) {
	v, err := p.cfg.Get("", key)
	if err != nil {
		return "", false
	}
	// repeated assignments are kept one per line
	if i := strings.LastIndexByte(v, '\n'); i >= 0 {
		v = v[i+1:]
	}
	return v, true
}

// Fingerprint returns the build fingerprint, or the empty string.
func (p *Props) Fingerprint() string {
	fp, _ := p.Get(FingerprintKey)
	return fp
}

// IsReleaseKeys reports whether the build is signed with release keys.
func (p *Props) IsReleaseKeys() bool {
	return strings.Contains(p.Fingerprint(), "release-keys")
}
