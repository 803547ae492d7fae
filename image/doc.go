// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package image implements the filesystem engine: the block-type
// taxonomy, inode headers, directory and file-data addressing, the
// freelist reclamation protocol, path resolution, and the
// reachability/repair walk that together make up a packaged
// application filesystem image.
//
// An [Engine] owns a [blockio.Device] exclusively and is the only
// component that interprets block contents. Every exported method
// acquires the engine's single mutual-exclusion region for its whole
// duration; no method calls another exported method while holding it.
package image
