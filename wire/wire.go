// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
)

// Order is the byte order used for every on-disk multi-byte field.
var Order = binary.LittleEndian

// PutUint16 writes a little-endian uint16 at offset off in buf.
func PutUint16(buf []byte, off int, v uint16) {
	Order.PutUint16(buf[off:off+2], v)
}

// Uint16 reads a little-endian uint16 at offset off in buf.
func Uint16(buf []byte, off int) uint16 {
	return Order.Uint16(buf[off : off+2])
}

// PutUint32 writes a little-endian uint32 at offset off in buf.
func PutUint32(buf []byte, off int, v uint32) {
	Order.PutUint32(buf[off:off+4], v)
}

// Uint32 reads a little-endian uint32 at offset off in buf.
func Uint32(buf []byte, off int) uint32 {
	return Order.Uint32(buf[off : off+4])
}

// PutUint64 writes a little-endian uint64 at offset off in buf.
func PutUint64(buf []byte, off int, v uint64) {
	Order.PutUint64(buf[off:off+8], v)
}

// Uint64 reads a little-endian uint64 at offset off in buf.
func Uint64(buf []byte, off int) uint64 {
	return Order.Uint64(buf[off : off+8])
}

// PutString writes s into buf[off:off+size] as ASCII, NUL-padding the
// remainder. It returns an error if s (plus its terminator) does not
// fit in size bytes.
func PutString(buf []byte, off, size int, s string) error {
	if len(s) >= size {
		return fmt.Errorf("wire: string %q is %d bytes, exceeds field size %d", s, len(s), size)
	}
	field := buf[off : off+size]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
	return nil
}

// String reads a NUL-padded ASCII string from buf[off:off+size],
// stopping at the first NUL byte (or the field size if unterminated).
func String(buf []byte, off, size int) string {
	field := buf[off : off+size]
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

// Zero clears buf[off:off+size] to zero bytes.
func Zero(buf []byte, off, size int) {
	field := buf[off : off+size]
	for i := range field {
		field[i] = 0
	}
}
