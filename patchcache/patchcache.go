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

// Package patchcache keeps computed patches on disk, keyed by the diff
// program and the identities of both images, so that regenerating an
// update package does not run the diff programs again.
package patchcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/snapcore/fwota/container"
	"github.com/snapcore/fwota/delta"
	"github.com/snapcore/fwota/logger"
)

var patchesBucket = []byte("patches")

// Cache is a persistent patch store. It is safe for concurrent use.
type Cache struct {
	db *bolt.DB

	hits   uint64
	misses uint64
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open patch cache: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(patchesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize patch cache: %v", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the cache key of the patch from source to target made by the
// named diff program.
func Key(program string, source, target container.Identity) string {
	return program + "/" + source.String() + "/" + target.String()
}

// Get returns the patch stored under key, if any.
func (c *Cache) Get(key string) (patch []byte, ok bool, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(patchesBucket).Get([]byte(key))
		if v != nil {
			// v is only valid for the life of the transaction
			patch = append([]byte{}, v...)
			ok = true
		}
		return nil
	})
	return patch, ok, err
}

// Put stores patch under key.
func (c *Cache) Put(key string, patch []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(patchesBucket).Put([]byte(key), patch)
	})
}

// Stats returns the number of cache hits and misses served by differs
// returned from Wrap.
func (c *Cache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Wrap returns a Differ that looks patches up in the cache before running
// d, and stores what d computes. Cache failures are logged and otherwise
// ignored.
func (c *Cache) Wrap(program string, d delta.Differ) delta.Differ {
	return delta.DifferFunc(func(ctx context.Context, source, target []byte) ([]byte, error) {
		key := Key(program, container.IdentityOf(source), container.IdentityOf(target))
		patch, ok, err := c.Get(key)
		if err != nil {
			logger.Noticef("cannot read patch cache: %v", err)
		}
		if ok {
			atomic.AddUint64(&c.hits, 1)
			logger.Debugf("patch cache hit for %s", key)
			return patch, nil
		}
		atomic.AddUint64(&c.misses, 1)

		patch, err = d.Diff(ctx, source, target)
		if err != nil {
			return nil, err
		}
		if err := c.Put(key, patch); err != nil {
			logger.Noticef("cannot store patch in cache: %v", err)
		}
		return patch, nil
	})
}
