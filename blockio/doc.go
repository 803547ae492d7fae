// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockio implements the block stream: positioned,
// block-size-aware access to the image file backing a packaged
// application filesystem.
//
// A [Device] is single-owner (only an image.Engine holds one), reads
// through a read-only memory mapping for zero-copy access, and writes
// through pwrite so writers never fault the mapping. Writes that
// extend the file always round up to the next block boundary,
// zero-filling the tail, so every position beyond offset 0 lands on a
// block boundary.
package blockio
