// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsfuse mounts a pkgfs image as a userspace filesystem. It is
// a thin FUSE collaborator over image.Engine: every node operation
// resolves to one of the engine's path-resolution, read/write, or
// directory-mutation calls, and the engine's own mutex serializes
// concurrent FUSE dispatch.
package fsfuse
