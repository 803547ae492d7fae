// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// pkgfs-mount mounts a pkgfs image as a FUSE filesystem and blocks
// until interrupted or the mount is unmounted externally.
//
// Usage:
//
//	pkgfs-mount <image> <mountpoint> [flags]
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/pkgfs/pkgfs/fsfuse"
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
	flagSet := pflag.NewFlagSet("pkgfs-mount", pflag.ContinueOnError)
	allowOther := flagSet.Bool("allow-other", false, "allow other users (including root) to access the mount")
	debug := flagSet.Bool("debug", false, "enable go-fuse request tracing")
	showVersion := flagSet.BoolP("version", "v", false, "show version")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("pkgfs-mount %s\n", version.Info())
		return nil
	}

	args := flagSet.Args()
	if len(args) != 2 {
		flagSet.Usage()
		return fmt.Errorf("expected <image> <mountpoint>, got %d argument(s)", len(args))
	}
	imagePath, mountpoint := args[0], args[1]

	logLevel := slog.LevelInfo
	if os.Getenv("PKGFS_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	engine, err := image.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening image %s: %w", imagePath, err)
	}
	defer engine.Close()

	server, err := fsfuse.Mount(fsfuse.Options{
		Mountpoint: mountpoint,
		Engine:     engine,
		AllowOther: *allowOther,
		Debug:      *debug,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting %s at %s: %w", imagePath, mountpoint, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, unmounting", "mountpoint", mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}()

	server.Wait()
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `pkgfs-mount - Mount a pkgfs image as a FUSE filesystem

USAGE
    pkgfs-mount <image> <mountpoint> [flags]

EXAMPLES
    pkgfs-mount myapp.pkgfs /mnt/myapp
    pkgfs-mount myapp.pkgfs /mnt/myapp --allow-other

FLAGS
`)
	flagSet.PrintDefaults()
}
