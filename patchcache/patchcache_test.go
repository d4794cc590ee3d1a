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

package patchcache_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/delta"
	"github.com/snapcore/fwota/patchcache"
)

func Test(t *testing.T) { TestingT(t) }

type cacheSuite struct {
	path string
}

var _ = Suite(&cacheSuite{})

func (s *cacheSuite) SetUpTest(c *C) {
	s.path = filepath.Join(c.MkDir(), "patches.db")
}

func (s *cacheSuite) TestKey(c *C) {
	key := patchcache.Key("bsdiff", container.IdentityOf([]byte("abc")), container.IdentityOf(nil))
	c.Check(key, Equals, "bsdiff/3:a9993e364706816aba3e25717850c26c9cd0d89d/0:da39a3ee5e6b4b0d3255bfef95601890afd80709")
}

func (s *cacheSuite) TestGetPut(c *C) {
	cache, err := patchcache.Open(s.path)
	c.Assert(err, IsNil)
	defer cache.Close()

	_, ok, err := cache.Get("missing")
	c.Assert(err, IsNil)
	c.Check(ok, Equals, false)

	c.Assert(cache.Put("k", []byte("patch")), IsNil)
	patch, ok, err := cache.Get("k")
	c.Assert(err, IsNil)
	c.Check(ok, Equals, true)
	c.Check(patch, DeepEquals, []byte("patch"))
}

func (s *cacheSuite) TestPersistent(c *C) {
	cache, err := patchcache.Open(s.path)
	c.Assert(err, IsNil)
	c.Assert(cache.Put("k", []byte("patch")), IsNil)
	c.Assert(cache.Close(), IsNil)

	cache, err = patchcache.Open(s.path)
	c.Assert(err, IsNil)
	defer cache.Close()
	patch, ok, err := cache.Get("k")
	c.Assert(err, IsNil)
	c.Check(ok, Equals, true)
	c.Check(patch, DeepEquals, []byte("patch"))
}

func (s *cacheSuite) TestOpenError(c *C) {
	_, err := patchcache.Open(filepath.Join(c.MkDir(), "no", "such", "dir", "patches.db"))
	c.Check(err, ErrorMatches, `cannot open patch cache: .*`)
}

func (s *cacheSuite) TestWrap(c *C) {
	cache, err := patchcache.Open(s.path)
	c.Assert(err, IsNil)
	defer cache.Close()

	n := 0
	differ := delta.DifferFunc(func(ctx context.Context, source, target []byte) ([]byte, error) {
		n++
		return []byte(fmt.Sprintf("%s->%s", source, target)), nil
	})
	cached := cache.Wrap("bsdiff", differ)

	for i := 0; i < 3; i++ {
		patch, err := cached.Diff(context.Background(), []byte("a"), []byte("b"))
		c.Assert(err, IsNil)
		c.Check(string(patch), Equals, "a->b")
	}
	patch, err := cached.Diff(context.Background(), []byte("a"), []byte("c"))
	c.Assert(err, IsNil)
	c.Check(string(patch), Equals, "a->c")

	c.Check(n, Equals, 2)
	hits, misses := cache.Stats()
	c.Check(hits, Equals, uint64(2))
	c.Check(misses, Equals, uint64(2))

	// another program does not share patches
	other := cache.Wrap("xdelta3", differ)
	_, err = other.Diff(context.Background(), []byte("a"), []byte("b"))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 3)
}

func (s *cacheSuite) TestWrapErrorNotCached(c *C) {
	cache, err := patchcache.Open(s.path)
	c.Assert(err, IsNil)
	defer cache.Close()

	n := 0
	differ := delta.DifferFunc(func(ctx context.Context, source, target []byte) ([]byte, error) {
		n++
		return nil, fmt.Errorf("boom")
	})
	cached := cache.Wrap("bsdiff", differ)
	for i := 0; i < 2; i++ {
		_, err := cached.Diff(context.Background(), []byte("a"), []byte("b"))
		c.Check(err, ErrorMatches, "boom")
	}
	c.Check(n, Equals, 2)
}
