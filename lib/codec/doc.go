// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides pkgfs's standard CBOR encoding configuration.
//
// pkgfs draws a clear boundary between two serialization formats:
//
//   - JSON for external interfaces.
//   - CBOR for on-disk and internal data that needs a compact,
//     deterministic encoding.
//
// No pkgfs command imports this package; pkgfs-inspect's audit report
// is rendered as HTML.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every pkgfs package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (manifest files, report blobs):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (writing a report as it's built):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR, such as
//     a record that is only ever written to disk.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor` tags
//     are absent, so a single `json` tag controls field naming and
//     omitempty for both formats, such as a type that is both printed
//     as JSON and stored as CBOR.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
