// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox creates isolated execution environments for a packaged
// application's entry point using bubblewrap (bwrap) Linux namespaces.
//
// The central type is [Sandbox], which assembles a bwrap command from a
// [Profile] and executes it. Profiles are YAML-driven configurations that
// declare filesystem mounts, namespace isolation flags, environment variables,
// resource limits, and directories to create. Profiles support single
// inheritance via the Inherit field, and all string values undergo variable
// expansion ([Variables].ExpandProfile) before use.
//
// Filesystem isolation is the primary security boundary. Every mount is
// declared explicitly in the profile; there is no implicit host filesystem
// visibility. Mount types include bind (read-only or read-write), tmpfs,
// proc, dev, dev-bind (for GPU passthrough), and overlay. The built-in
// profiles mount the image at /pkg. All but readonly use an overlay there:
// the read-only FUSE mount of the pkgfs image ([Config].MountRoot) as the
// lower layer, and a tmpfs or scratch directory ([Config].ScratchRoot) as
// the upper layer, so the sandboxed application's writes never touch the
// image; readonly binds the mount read-only instead. Overlay mounts use fuse-overlayfs
// ([OverlayManager]) to provide this copy-on-write view; the upper layer
// path is validated ([ValidateOverlayUpper]) with symlink resolution to
// prevent writes from escaping the scratch root.
//
// Resource limits are enforced via systemd transient scopes ([SystemdScope]),
// setting cgroup v2 properties for task count, memory, CPU quota, and CPU
// weight. The scope wraps the bwrap command, so limits apply to the entire
// sandbox process tree.
//
// [BwrapBuilder] translates a Profile into bwrap command-line arguments.
// [Validator] performs pre-flight checks (bwrap availability, user namespace
// support, mount root existence, FUSE mount liveness, mount source
// validity). [Capabilities] probes the host for available features.
// [EscapeTestRunner] verifies sandbox containment by running a battery of
// escape attempts (network, filesystem, process, privilege, terminal) and
// confirming they all fail.
//
// The sandbox intentionally does not manage the process running inside it.
// It creates the namespace and mounts, then exec's the command. Mounting the
// image and tearing the sandbox down on exit is the launcher's job
// (package fsfuse and cmd/pkgfs-run).
package sandbox
