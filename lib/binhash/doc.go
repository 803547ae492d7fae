// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides SHA256 content hashing for binary files.
//
// pkgfs-run's stage 1 copies its own executable to a private temporary
// file before re-exec'ing that copy as stage 2. The SHA256 digest of
// the copy must match the digest of the original, so a truncated or
// corrupted copy is caught before anything runs.
//
// The API surface is three functions:
//
//   - [HashFile] -- streams a file through SHA256, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation
//   - [ParseDigest] -- parses a hex-encoded digest string back to a
//     [32]byte array, validating length and encoding
//
// This package has no dependencies on other pkgfs packages.
package binhash
