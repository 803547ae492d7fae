// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// pkgfs-mkfs creates a pkgfs image from a source directory tree.
//
// Usage:
//
//	pkgfs-mkfs <image> <source-dir> [flags]
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/pkgfs/pkgfs/image"
	"github.com/pkgfs/pkgfs/lib/process"
	"github.com/pkgfs/pkgfs/lib/version"
)

// manifest carries the FSINFO application metadata fields, loadable
// from a YAML file so a build pipeline can script image creation
// without spelling out every field on the command line.
type manifest struct {
	AppName     string `yaml:"app_name"`
	AppVersion  string `yaml:"app_version"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
}

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("pkgfs-mkfs", pflag.ContinueOnError)
	appName := flagSet.String("app-name", "", "application name stamped into FSINFO (default: source directory's base name)")
	appVersion := flagSet.String("app-version", "", "application version")
	description := flagSet.String("description", "", "application description")
	author := flagSet.String("author", "", "application author")
	manifestPath := flagSet.String("manifest", "", "YAML file supplying app metadata (flags take precedence)")
	showVersion := flagSet.BoolP("version", "v", false, "show version")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("pkgfs-mkfs %s\n", version.Info())
		return nil
	}

	args := flagSet.Args()
	if len(args) != 2 {
		flagSet.Usage()
		return fmt.Errorf("expected <image> <source-dir>, got %d argument(s)", len(args))
	}
	imagePath, sourceDir := args[0], args[1]

	meta := manifest{
		AppName:     *appName,
		AppVersion:  *appVersion,
		Description: *description,
		Author:      *author,
	}
	if *manifestPath != "" {
		loaded, err := loadManifest(*manifestPath)
		if err != nil {
			return err
		}
		meta = mergeManifest(loaded, meta)
	}
	if meta.AppName == "" {
		meta.AppName = filepath.Base(sourceDir)
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", sourceDir)
	}

	engine, err := image.CreateImage(imagePath, meta.AppName, meta.AppVersion, meta.Description, meta.Author)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer engine.Close()

	if err := populateDirectory(engine, image.RootID, sourceDir); err != nil {
		return fmt.Errorf("populating image: %w", err)
	}

	fmt.Printf("created %s from %s\n", imagePath, sourceDir)
	return nil
}

// populateDirectory walks sourcePath and mirrors every entry into the
// image under parentID, recursing into subdirectories.
func populateDirectory(engine *image.Engine, parentID uint16, sourcePath string) error {
	entries, err := os.ReadDir(sourcePath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entryPath := filepath.Join(sourcePath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(entryPath)
			if err != nil {
				return err
			}
			if _, err := engine.CreateSymlink(parentID, entry.Name(), target); err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}

		case info.IsDir():
			child, err := engine.CreateDirectory(parentID, entry.Name())
			if err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}
			if err := populateDirectory(engine, child.ID, entryPath); err != nil {
				return err
			}

		case info.Mode()&os.ModeDevice != 0:
			major, minor, err := deviceNumbers(info)
			if err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}
			if _, err := engine.CreateDevice(parentID, entry.Name(), major, minor); err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}

		case info.Mode().IsRegular():
			child, err := engine.CreateFile(parentID, entry.Name())
			if err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}
			data, err := os.ReadFile(entryPath)
			if err != nil {
				return fmt.Errorf("%s: %w", entryPath, err)
			}
			if len(data) > 0 {
				if err := engine.WriteFileData(child.ID, 0, data); err != nil {
					return fmt.Errorf("%s: %w", entryPath, err)
				}
			}

		default:
			// Sockets and named pipes have no on-disk representation;
			// skip them rather than fail the whole build.
		}
	}
	return nil
}

func deviceNumbers(info fs.FileInfo) (uint32, uint32, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("cannot determine device numbers for %s", info.Name())
	}
	rdev := uint64(stat.Rdev)
	return uint32(unix.Major(rdev)), uint32(unix.Minor(rdev)), nil
}

func loadManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// mergeManifest returns base with every non-empty field in overrides
// applied on top, so command-line flags win over the manifest file.
func mergeManifest(base, overrides manifest) manifest {
	if overrides.AppName != "" {
		base.AppName = overrides.AppName
	}
	if overrides.AppVersion != "" {
		base.AppVersion = overrides.AppVersion
	}
	if overrides.Description != "" {
		base.Description = overrides.Description
	}
	if overrides.Author != "" {
		base.Author = overrides.Author
	}
	return base
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `pkgfs-mkfs - Build a pkgfs image from a source directory tree

USAGE
    pkgfs-mkfs <image> <source-dir> [flags]

EXAMPLES
    pkgfs-mkfs myapp.pkgfs ./build --app-name myapp --app-version 1.0.0
    pkgfs-mkfs myapp.pkgfs ./build --manifest ./pkgfs.yaml

FLAGS
`)
	flagSet.PrintDefaults()
}
