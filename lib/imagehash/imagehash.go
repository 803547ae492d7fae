// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package imagehash computes a whole-image content digest. The
// inspector's report command stamps it into each report, tying the
// report to the exact image it audited.
package imagehash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// domainPrefix separates image digests from any other BLAKE3 use in
// this module, so a collision between an image digest and an
// unrelated hash is structurally impossible.
const domainPrefix = "pkgfs.image.v1\x00"

// HashImage computes the domain-separated BLAKE3 digest of the image
// file at path, streamed in chunks to keep memory usage constant
// regardless of image size.
func HashImage(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.WriteString(hasher, domainPrefix); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// FormatDigest returns the hex-encoded string representation of an
// image digest.
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

// ParseDigest parses a hex-encoded image digest string into a 32-byte
// array. Returns an error if the string is not a valid 64-character
// hex encoding of 32 bytes.
func ParseDigest(hexString string) ([32]byte, error) {
	var digest [32]byte
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing image digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("image digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}
