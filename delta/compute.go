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

package delta

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/snapcore/fwota/logger"
)

// Request asks for a patch between two versions of a named image.
type Request struct {
	Name   string
	Source []byte
	Target []byte
}

// Result holds the outcome of one Request. A failed diff is not fatal to
// the batch, it is reported in Err which wraps ErrPatchFailed.
type Result struct {
	Name  string
	Patch []byte
	Err   error
}

// ComputeAll diffs all requests using at most workers concurrent diffs (the
// number of CPUs if workers is not positive). Results are returned in
// request order. Only cancellation of ctx makes ComputeAll fail as a whole.
func ComputeAll(ctx context.Context, d Differ, reqs []Request, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]Result, len(reqs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range reqs {
		i := i
		eg.Go(func() error {
			req := &reqs[i]
			results[i].Name = req.Name
			if err := egCtx.Err(); err != nil {
				return err
			}
			patch, err := d.Diff(egCtx, req.Source, req.Target)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i].Err = fmt.Errorf("%w for %q: %v", ErrPatchFailed, req.Name, err)
				logger.Noticef("%v", results[i].Err)
				return nil
			}
			results[i].Patch = patch
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
