// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func TestUint16RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutUint16(buf, 2, 0xBEEF)
	if got := Uint16(buf, 2); got != 0xBEEF {
		t.Errorf("Uint16() = %x, want beef", got)
	}
	// Little-endian: low byte first.
	if buf[2] != 0xEF || buf[3] != 0xBE {
		t.Errorf("unexpected byte order: %x %x", buf[2], buf[3])
	}
}

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutUint32(buf, 0, 0xDEADBEEF)
	if got := Uint32(buf, 0); got != 0xDEADBEEF {
		t.Errorf("Uint32() = %x, want deadbeef", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	if err := PutString(buf, 0, 16, "EntryPoint"); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if got := String(buf, 0, 16); got != "EntryPoint" {
		t.Errorf("String() = %q, want EntryPoint", got)
	}
	// Remaining bytes must be zero.
	for i := len("EntryPoint"); i < 16; i++ {
		if buf[i] != 0 {
			t.Errorf("byte %d not zero-padded: %x", i, buf[i])
		}
	}
}

func TestStringTooLong(t *testing.T) {
	buf := make([]byte, 4)
	if err := PutString(buf, 0, 4, "abcd"); err == nil {
		t.Error("expected error for string without room for NUL terminator")
	}
}

func TestStringUnterminated(t *testing.T) {
	buf := []byte{'a', 'b', 'c', 'd'}
	if got := String(buf, 0, 4); got != "abcd" {
		t.Errorf("String() = %q, want abcd (unterminated field reads to end)", got)
	}
}

func TestZero(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	Zero(buf, 1, 3)
	want := []byte{1, 0, 0, 0, 5}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, buf[i], want[i])
		}
	}
}
