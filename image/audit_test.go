// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import "testing"

func TestRepairReclaimsUnreferencedFile(t *testing.T) {
	e := newTestImage(t)

	f, err := e.CreateFile(RootID, "orphan")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	// Detach the child from root without resetting the FILEINFO block
	// itself, simulating a crash between unlink and reclaim.
	if err := e.UnlinkChild(RootID, f.ID); err != nil {
		t.Fatalf("UnlinkChild: %v", err)
	}

	counters, err := e.Repair()
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if counters.CleanedFiles != 1 {
		t.Fatalf("cleaned_files = %d, want 1", counters.CleanedFiles)
	}

	report, err := e.Audit()
	if err != nil {
		t.Fatalf("Audit after repair: %v", err)
	}
	if len(report.HeaderBlocks) != 1 || !report.HeaderBlocks[e.PosRoot()] {
		t.Fatalf("header set after repair = %+v, want only {pos_root}", report.HeaderBlocks)
	}
}

func TestAuditSegmentMap(t *testing.T) {
	e := newTestImage(t)
	f, err := e.CreateFile(RootID, "EntryPoint")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := e.WriteFileData(f.ID, 0, []byte("#!/bin/sh\n")); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	size := e.Size()
	var chars []byte
	for pos := int64(0); pos < size; pos += BSIZE {
		buf, err := e.readRaw(pos)
		if err != nil {
			t.Fatalf("readRaw(%d): %v", pos, err)
		}
		chars = append(chars, decodeTag(buf).Char())
	}

	// Block order follows allocation order: CreateImage places the
	// empty FREELIST bucket at position 2*BSIZE, so a file added
	// afterward is allocated past it rather than reusing its slot.
	want := []byte{'I', 'D', '%', 'F', '#'}
	if len(chars) != len(want) {
		t.Fatalf("segment map = %q (len %d), want %q (len %d)", chars, len(chars), want, len(want))
	}
	for i := range want {
		if chars[i] != want[i] {
			t.Fatalf("segment map[%d] = %q, want %q (full map %q)", i, chars[i], want[i], chars)
		}
	}
}
