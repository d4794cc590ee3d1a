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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/fwota/logger"
	"github.com/snapcore/fwota/osutil"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

const (
	shortHelp = "Add device firmware to OTA update packages"
	longHelp  = `
fwota reads the bootloader and radio images of Android target-files and
writes the instructions installing them, as a full image or as a patch
against the previous build, into an update package.
`
)

// ErrExtraArgs is returned if extra arguments to a command are found
var ErrExtraArgs = errors.New("too many arguments for command")

type cmdInfo struct {
	name, shortHelp, longHelp string
	builder                   func() flags.Commander
}

var commands []*cmdInfo

// addCommand registers a command, it is added to every fresh parser.
func addCommand(name, shortHelp, longHelp string, builder func() flags.Commander) {
	commands = append(commands, &cmdInfo{
		name:      name,
		shortHelp: shortHelp,
		longHelp:  longHelp,
		builder:   builder,
	})
}

// Parser creates and populates a fresh parser. Commands have local state
// so tests need a fresh one each time.
func Parser() *flags.Parser {
	parser := flags.NewParser(&struct{}{}, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = shortHelp
	parser.LongDescription = longHelp
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.shortHelp, strings.TrimSpace(c.longHelp), c.builder()); err != nil {
			logger.Panicf("cannot add command %q: %v", c.name, err)
		}
	}
	return parser
}

// setupLogger sets up console logging, with notices silenced when
// FWOTA_QUIET is set.
func setupLogger() error {
	if osutil.GetenvBool("FWOTA_QUIET") {
		return logger.QuietSetup()
	}
	return logger.SimpleSetup()
}

func init() {
	err := setupLogger()
	if err != nil {
		fmt.Fprintf(Stderr, "WARNING: failed to activate logging: %v\n", err)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	err := parseArgs(args)
	var flagErr *flags.Error
	if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
		fmt.Fprintln(Stdout, flagErr.Message)
		return nil
	}
	return err
}

func parseArgs(args []string) error {
	_, err := Parser().ParseArgs(args)
	return err
}
