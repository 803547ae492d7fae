// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// pkgfs-inspect opens a pkgfs image and offers an interactive REPL for
// examining its structure: directory contents, the block-level segment
// map, hex dumps of individual blocks, file content, and repair passes.
// The image is opened read-write, and the clean command's repair pass
// writes to it.
//
// Usage:
//
//	pkgfs-inspect <image> [flags]
//	pkgfs-inspect <image> <command> [args...]
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/pkgfs/pkgfs/image"
	"github.com/pkgfs/pkgfs/lib/process"
	"github.com/pkgfs/pkgfs/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("pkgfs-inspect", pflag.ContinueOnError)
	showVersion := flagSet.BoolP("version", "v", false, "show version")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("pkgfs-inspect %s\n", version.Info())
		return nil
	}

	args := flagSet.Args()
	if len(args) < 1 {
		flagSet.Usage()
		return fmt.Errorf("expected <image>, got 0 arguments")
	}
	imagePath := args[0]

	engine, err := image.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening image %s: %w", imagePath, err)
	}
	defer engine.Close()

	inspector := &inspector{
		engine: engine,
		path:   imagePath,
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		out:    os.Stdout,
	}

	if len(args) > 1 {
		return inspector.dispatch(args[1:])
	}
	return inspector.repl()
}

// inspector holds the state shared by every REPL command.
type inspector struct {
	engine *image.Engine
	path   string
	logger *slog.Logger
	out    *os.File
}

func (ins *inspector) repl() error {
	fmt.Fprintf(ins.out, "pkgfs-inspect %s (%d bytes) -- type 'help' for commands\n", ins.path, ins.engine.Size())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(ins.out, "pkgfs> ")
		if !scanner.Scan() {
			fmt.Fprintln(ins.out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := ins.dispatch(fields); err != nil {
			fmt.Fprintf(ins.out, "error: %v\n", err)
		}
	}
}

func (ins *inspector) dispatch(fields []string) error {
	command, rest := fields[0], fields[1:]
	switch command {
	case "help":
		ins.help()
	case "children":
		return ins.cmdChildren(rest)
	case "segments":
		return ins.cmdSegments(rest)
	case "clean":
		return ins.cmdClean(rest)
	case "show":
		return ins.cmdShow(rest)
	case "cat":
		return ins.cmdCat(rest)
	case "report":
		return ins.cmdReport(rest)
	case "browse":
		return ins.cmdBrowse(rest)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", command)
	}
	return nil
}

func (ins *inspector) help() {
	fmt.Fprint(ins.out, `commands:
  children <id>        list the children of directory inode <id>
  segments             print the block-level segment map
  clean                run a repair pass and report reclaimed blocks
  show <id|pos@N>      hex dump a block, by inode id or block position
  cat <path>           print a file's contents, syntax-highlighted by extension
  report <out.html>    render an HTML audit report for the image
  browse               open an interactive directory browser
  quit                 exit the REPL
`)
}

// resolveID parses a decimal inode id.
func resolveID(token string) (uint16, error) {
	value, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid inode id %q: %w", token, err)
	}
	return uint16(value), nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `pkgfs-inspect - Examine a pkgfs image

USAGE
    pkgfs-inspect <image> [flags]
    pkgfs-inspect <image> <command> [args...]

Without a command, opens an interactive REPL. With a command, runs it
once and exits (scriptable from shell).

EXAMPLES
    pkgfs-inspect myapp.pkgfs
    pkgfs-inspect myapp.pkgfs segments
    pkgfs-inspect myapp.pkgfs cat /EntryPoint

FLAGS
`)
	flagSet.PrintDefaults()
}
