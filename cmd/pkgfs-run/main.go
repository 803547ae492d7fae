// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// pkgfs-run mounts a pkgfs image, runs its /EntryPoint inside a
// bubblewrap sandbox whose root is a copy-on-write overlay over the
// mount, and unmounts on exit.
//
// Launching re-execs itself from a temporary copy before doing any of
// that work, mirroring the original packaged-fs launcher's stage-1/
// stage-2 split: stage 1 (the copy still attached to whatever invoked
// it -- a shell, a desktop launcher, a shebang) can safely be replaced
// or updated out from under the running process, since stage 2 runs
// from an independent temporary file. See DESIGN.md for why context
// cancellation replaces the original's self-SIGHUP.
//
// Usage:
//
//	pkgfs-run <image> [flags]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/pkgfs/pkgfs/fsfuse"
	"github.com/pkgfs/pkgfs/image"
	"github.com/pkgfs/pkgfs/lib/binhash"
	"github.com/pkgfs/pkgfs/lib/process"
	"github.com/pkgfs/pkgfs/lib/version"
	"github.com/pkgfs/pkgfs/sandbox"
)

// stageEnvVar marks that this process is the re-exec'd stage-2 copy,
// so a further invocation (of the temp copy, by a user directly) does
// not re-exec forever.
const stageEnvVar = "PKGFS_RUN_STAGE2"

// selfTestEnvVar marks that this process is the containment probe
// launched inside the sandbox by --self-test, so it runs the escape
// test battery instead of re-entering the stage1/stage2 dispatch.
const selfTestEnvVar = "PKGFS_SELFTEST"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	if os.Getenv(selfTestEnvVar) != "" {
		return runSelfTest()
	}
	if os.Getenv(stageEnvVar) == "" {
		return stage1()
	}
	return stage2()
}

// runSelfTest runs the sandbox escape-test battery and reports whether
// containment held. It is not invoked directly by a user: --self-test
// sandboxes a copy of this same binary with selfTestEnvVar set, so the
// tests run from inside the jail they are checking.
func runSelfTest() error {
	if os.Getenv("PKGFS_SANDBOX") != "1" {
		fmt.Fprintln(os.Stderr, "warning: PKGFS_SANDBOX not set; not actually running inside a pkgfs sandbox")
		fmt.Fprintln(os.Stderr, "results below do not reflect real containment")
		fmt.Fprintln(os.Stderr)
	}

	runner := sandbox.NewEscapeTestRunner()
	runner.RunAll(context.Background())
	runner.PrintResults(os.Stdout)

	if runner.HasFailures() {
		return fmt.Errorf("sandbox escape test(s) failed")
	}
	return nil
}

// stage1 copies the running executable to a private temporary file
// and re-execs it. A launcher binary that replaces itself in place
// (package manager upgrade, rebuild) does not disturb an
// already-running instance, because stage 2 never reads its own argv[0]
// path again after this point.
func stage1() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining own executable path: %w", err)
	}

	originalDigest, err := binhash.HashFile(exePath)
	if err != nil {
		return fmt.Errorf("hashing %s before re-exec: %w", exePath, err)
	}

	stageDir, err := os.MkdirTemp("", "pkgfs-run-stage2-*")
	if err != nil {
		return fmt.Errorf("creating stage 2 directory: %w", err)
	}

	stagePath := filepath.Join(stageDir, "pkgfs-run")
	if err := copyExecutable(exePath, stagePath); err != nil {
		return fmt.Errorf("staging stage 2 copy: %w", err)
	}

	stagedDigest, err := binhash.HashFile(stagePath)
	if err != nil {
		return fmt.Errorf("hashing staged copy %s: %w", stagePath, err)
	}
	if stagedDigest != originalDigest {
		return fmt.Errorf("staged copy %s does not match %s (digest mismatch)", stagePath, exePath)
	}

	env := append(os.Environ(), stageEnvVar+"=1")
	if err := syscall.Exec(stagePath, os.Args, env); err != nil {
		return fmt.Errorf("re-executing stage 2 from %s: %w", stagePath, err)
	}
	return nil // unreachable: syscall.Exec replaces the process image on success
}

func copyExecutable(source, dest string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0700)
}

// stage2 mounts the image, sandboxes /EntryPoint, and unmounts on
// exit or cancellation.
func stage2() error {
	flagSet := pflag.NewFlagSet("pkgfs-run", pflag.ContinueOnError)
	profileName := flagSet.String("profile", "assistant", "sandbox profile name")
	gpu := flagSet.Bool("gpu", false, "enable GPU passthrough")
	selfTest := flagSet.Bool("self-test", false, "run sandbox containment self-tests instead of the image's /EntryPoint")
	check := flagSet.Bool("check", false, "validate the sandbox configuration and exit without running anything")
	showVersion := flagSet.BoolP("version", "v", false, "show version")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("pkgfs-run %s\n", version.Info())
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected <image>, got %d argument(s)", len(args))
	}
	imagePath := args[0]

	logLevel := slog.LevelInfo
	if os.Getenv("PKGFS_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	caps := sandbox.DetectCapabilities()
	if !caps.CanMountImage() {
		return fmt.Errorf("cannot mount image: %s", caps.SkipReason())
	}
	if !*check && !caps.CanRunSandbox() {
		return fmt.Errorf("cannot run sandbox: %s", caps.SkipReason())
	}

	absImagePath, err := filepath.Abs(imagePath)
	if err != nil {
		return fmt.Errorf("resolving image path: %w", err)
	}

	engine, err := image.Open(absImagePath)
	if err != nil {
		return fmt.Errorf("opening image %s: %w", absImagePath, err)
	}
	defer engine.Close()

	mountDir, err := os.MkdirTemp("", "pkgfs-run-mount-*")
	if err != nil {
		return fmt.Errorf("creating mount directory: %w", err)
	}
	defer os.RemoveAll(mountDir)

	server, err := fsfuse.Mount(fsfuse.Options{
		Mountpoint: mountDir,
		Engine:     engine,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", absImagePath, err)
	}
	defer func() {
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}()

	command := []string{"/EntryPoint"}
	extraBinds := []string{}
	extraEnv := map[string]string{}

	if *selfTest {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving own executable for --self-test: %w", err)
		}
		command = []string{exePath}
		extraBinds = append(extraBinds, fmt.Sprintf("%s:%s:ro", exePath, exePath))
		extraEnv[selfTestEnvVar] = "1"
	} else if _, err := engine.Resolve("/EntryPoint"); err != nil {
		return fmt.Errorf("%s has no /EntryPoint: %w", absImagePath, err)
	}

	loader, err := sandbox.LoadFromSearchPathsWithLogger(logger)
	if err != nil {
		return fmt.Errorf("loading sandbox profiles: %w", err)
	}
	profile, err := loader.Resolve(*profileName)
	if err != nil {
		return fmt.Errorf("resolving profile %s: %w", *profileName, err)
	}

	sb, err := sandbox.New(sandbox.Config{
		Profile:    profile,
		MountRoot:  mountDir,
		ScopeName:  sandbox.ScopeNameForImage(absImagePath),
		GPU:        *gpu,
		ExtraBinds: extraBinds,
		ExtraEnv:   extraEnv,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}

	if *check {
		return sb.Validate(os.Stdout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, stopping sandboxed entrypoint")
		cancel()
	}()

	// --self-test additionally checks, from outside the jail, that the
	// backing image file itself was never written to. The escape tests
	// running inside only see the overlay; this catches a mutation that
	// somehow reached past it to the real content-addressed image.
	var preDigest [32]byte
	if *selfTest {
		preDigest, err = binhash.HashFile(absImagePath)
		if err != nil {
			return fmt.Errorf("hashing image before self-test: %w", err)
		}
	}

	runErr := sb.Run(ctx, command)

	if *selfTest {
		postDigest, hashErr := binhash.HashFile(absImagePath)
		if hashErr != nil {
			return fmt.Errorf("hashing image after self-test: %w", hashErr)
		}
		if postDigest != preDigest {
			fmt.Println("[FAIL] image-immutable: backing image was modified during self-test")
			if runErr == nil {
				runErr = fmt.Errorf("sandbox escape test(s) failed: backing image was modified")
			}
		} else {
			fmt.Println("[PASS] image-immutable: backing image unchanged")
		}
	}

	return runErr
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `pkgfs-run - Mount and run a pkgfs application package

USAGE
    pkgfs-run <image> [flags]

EXAMPLES
    pkgfs-run myapp.pkgfs
    pkgfs-run myapp.pkgfs --profile developer --gpu
    pkgfs-run myapp.pkgfs --self-test
    pkgfs-run myapp.pkgfs --check

FLAGS
`)
	flagSet.PrintDefaults()
}
