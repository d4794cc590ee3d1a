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

// Package delta computes binary patches between two versions of a partition
// image.
package delta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/snapcore/fwota/logger"
	"github.com/snapcore/fwota/osutil"
)

// ErrNoDiffer is returned when patching was requested but no diff program
// is known by the given name.
var ErrNoDiffer = errors.New("no such diff program")

// ErrPatchFailed is wrapped by the per-image errors of ComputeAll.
var ErrPatchFailed = errors.New("cannot compute patch")

// A Differ computes a patch that turns source into target.
type Differ interface {
	Diff(ctx context.Context, source, target []byte) ([]byte, error)
}

// DifferFunc adapts a function into a Differ.
type DifferFunc func(ctx context.Context, source, target []byte) ([]byte, error)

func (f DifferFunc) Diff(ctx context.Context, source, target []byte) ([]byte, error) {
	return f(ctx, source, target)
}

// tool argument templates, %s/%t/%p stand for the source, target and patch
// file
var knownTools = map[string][]string{
	"bsdiff":  {"%s", "%t", "%p"},
	"imgdiff": {"%s", "%t", "%p"},
	"xdelta3": {"-9", "-f", "-e", "-s", "%s", "%t", "%p"},
}

// ToolDiffer runs an external diff program on temporary copies of the
// images.
type ToolDiffer struct {
	// Program is the name or path of the diff program.
	Program string
	args    []string
}

// NewToolDiffer returns a Differ running the given program, which must be
// one of bsdiff, imgdiff or xdelta3 (optionally with a directory).
func NewToolDiffer(program string) (*ToolDiffer, error) {
	args, ok := knownTools[filepath.Base(program)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDiffer, program)
	}
	return &ToolDiffer{Program: program, args: args}, nil
}

func (t *ToolDiffer) String() string {
	return filepath.Base(t.Program)
}

// Diff writes both images into a temporary directory, runs the program and
// returns the content of the patch it produced.
func (t *ToolDiffer) Diff(ctx context.Context, source, target []byte) ([]byte, error) {
	tmpdir, err := os.MkdirTemp("", "fwota-delta-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	sourcePath := filepath.Join(tmpdir, "source")
	targetPath := filepath.Join(tmpdir, "target")
	patchPath := filepath.Join(tmpdir, "patch")
	if err := os.WriteFile(sourcePath, source, 0600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(targetPath, target, 0600); err != nil {
		return nil, err
	}

	args := make([]string, len(t.args))
	for i, a := range t.args {
		switch a {
		case "%s":
			a = sourcePath
		case "%t":
			a = targetPath
		case "%p":
			a = patchPath
		}
		args[i] = a
	}

	var output bytes.Buffer
	cmd := exec.Command(t.Program, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	logger.Debugf("running %s %q", t.Program, args)
	if err := osutil.RunWithContext(ctx, cmd); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if out := bytes.TrimSpace(output.Bytes()); len(out) > 0 {
			return nil, fmt.Errorf("cannot run %s: %v (output: %q)", t, err, out)
		}
		return nil, fmt.Errorf("cannot run %s: %v", t, err)
	}
	return os.ReadFile(patchPath)
}
