// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire reads and writes the fixed-width, little-endian fields
// that make up an image block. Every multi-byte field on disk goes
// through this package; no code elsewhere performs host-endian access
// to a block buffer.
//
// The package is deliberately small: it wraps encoding/binary with
// helpers for the NUL-padded ASCII strings the block formats use, and
// nothing else. It has no dependency on the engine or block stream.
package wire
