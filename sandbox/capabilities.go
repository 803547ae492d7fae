// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Capabilities describes what sandbox and mount features are available
// on this system. Running a package has two independent host
// requirements: the FUSE mount that exposes the image's contents
// (checked by FuseDeviceAvailable) and the bubblewrap sandbox that
// isolates /EntryPoint once it's mounted (the rest of this struct).
// A host can satisfy one without the other -- a container with
// /dev/fuse but no user namespaces can mount an image but not run it.
type Capabilities struct {
	// FuseDeviceAvailable is true if /dev/fuse is present and openable
	// for read-write. Required before fsfuse.Mount can ever succeed;
	// without it there is no image to sandbox in the first place.
	FuseDeviceAvailable bool

	// BwrapAvailable is true if bubblewrap is installed.
	BwrapAvailable bool

	// BwrapPath is the path to bwrap if available.
	BwrapPath string

	// BwrapVersion is the bwrap version string.
	BwrapVersion string

	// UserNamespacesEnabled is true if unprivileged user namespaces work.
	UserNamespacesEnabled bool

	// SystemdRunAvailable is true if systemd-run is available.
	SystemdRunAvailable bool

	// SystemdUserScopesWork is true if user scopes can be created.
	SystemdUserScopesWork bool

	// FuseOverlayfsAvailable is true if fuse-overlayfs is installed.
	// Required for the sandbox's own copy-on-write root over the
	// mounted image (see OverlayManager), independent of the FUSE
	// mount of the image itself.
	FuseOverlayfsAvailable bool

	// FuseOverlayfsPath is the path to fuse-overlayfs if available.
	FuseOverlayfsPath string
}

// DetectCapabilities checks what mounting and sandboxing features are
// available on this host.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{}

	caps.FuseDeviceAvailable = checkFuseDevice()

	// Check bwrap.
	if path, err := BwrapPath(); err == nil {
		caps.BwrapAvailable = true
		caps.BwrapPath = path

		// Get version.
		if out, err := exec.Command(path, "--version").Output(); err == nil {
			caps.BwrapVersion = strings.TrimSpace(string(out))
		}
	}

	// Check user namespaces.
	caps.UserNamespacesEnabled = checkUserNamespaces()

	// Check systemd.
	if _, err := exec.LookPath("systemd-run"); err == nil {
		caps.SystemdRunAvailable = true

		// Try to create a user scope.
		cmd := exec.Command("systemd-run", "--user", "--scope", "--", "true")
		if err := cmd.Run(); err == nil {
			caps.SystemdUserScopesWork = true
		}
	}

	// Check fuse-overlayfs.
	if path, err := exec.LookPath("fuse-overlayfs"); err == nil {
		caps.FuseOverlayfsAvailable = true
		caps.FuseOverlayfsPath = path
	}

	return caps
}

// checkFuseDevice reports whether /dev/fuse can be opened for
// read-write, the prerequisite for mounting a pkgfs image at all.
func checkFuseDevice() bool {
	f, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// CanMountImage returns true if the host can mount a pkgfs image via
// FUSE. This is a strictly weaker requirement than CanRunSandbox: any
// future caller that only needs the mounted tree, without sandboxing
// anything running against it, needs this and nothing else.
func (c *Capabilities) CanMountImage() bool {
	return c.FuseDeviceAvailable
}

// CanRunSandbox returns true if basic sandbox execution is possible,
// i.e. the image can be mounted AND the entry point can be isolated.
func (c *Capabilities) CanRunSandbox() bool {
	return c.FuseDeviceAvailable && c.BwrapAvailable && c.UserNamespacesEnabled
}

// checkUserNamespaces tests if unprivileged user namespaces work.
func checkUserNamespaces() bool {
	// First check the sysctl.
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return false
		}
	}
	// File not existing usually means userns is allowed.

	// Try to actually create a user namespace with bwrap.
	bwrapPath, err := BwrapPath()
	if err != nil {
		return false
	}

	// Simple test: run true in a new user namespace.
	cmd := exec.Command(bwrapPath,
		"--unshare-user",
		"--ro-bind", "/", "/",
		"--",
		"true",
	)
	return cmd.Run() == nil
}

// SkipReason returns a human-readable reason why sandboxing isn't available,
// or empty string if it is available.
func (c *Capabilities) SkipReason() string {
	if !c.FuseDeviceAvailable {
		return "/dev/fuse not available (cannot mount the image)"
	}
	if !c.BwrapAvailable {
		return "bubblewrap not installed"
	}
	if !c.UserNamespacesEnabled {
		return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	return ""
}
