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

package blockdiff

import (
	"strconv"
	"strings"
)

// Range is a half open range of blocks [Start, End).
type Range struct {
	Start, End int
}

// RangeSet is an ordered list of disjoint block ranges.
type RangeSet []Range

// Size returns the number of blocks in the set.
func (rs RangeSet) Size() int {
	n := 0
	for _, r := range rs {
		n += r.End - r.Start
	}
	return n
}

// add appends block b, extending the last range when b follows it.
func (rs RangeSet) add(b int) RangeSet {
	if n := len(rs); n > 0 && rs[n-1].End == b {
		rs[n-1].End++
		return rs
	}
	return append(rs, Range{b, b + 1})
}

// String returns the raw form used by transfer lists and range_sha1():
// the count of numbers that follow, then start,end pairs.
func (rs RangeSet) String() string {
	parts := make([]string, 0, 1+2*len(rs))
	parts = append(parts, strconv.Itoa(2*len(rs)))
	for _, r := range rs {
		parts = append(parts, strconv.Itoa(r.Start), strconv.Itoa(r.End))
	}
	return strings.Join(parts, ",")
}
