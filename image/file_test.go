// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadFileDataRoundTrip(t *testing.T) {
	e := newTestImage(t)

	f, err := e.CreateFile(RootID, "EntryPoint")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	payload := []byte("#!/bin/sh\n")
	if err := e.WriteFileData(f.ID, 0, payload); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	got, err := e.ReadFileData(f.ID, 0, len(payload))
	if err != nil {
		t.Fatalf("ReadFileData: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip = %q, want %q", got, payload)
	}

	n, err := e.GetInodeByID(f.ID)
	if err != nil {
		t.Fatalf("GetInodeByID: %v", err)
	}
	if n.FileLength != uint32(len(payload)) {
		t.Fatalf("file_length = %d, want %d", n.FileLength, len(payload))
	}
}

func TestWriteFileDataExactlyOneBlockNoSegInfo(t *testing.T) {
	e := newTestImage(t)
	f, err := e.CreateFile(RootID, "exact")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	data := bytes.Repeat([]byte{'x'}, InlineFileCapacity)
	if err := e.WriteFileData(f.ID, 0, data); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	fileBuf, err := e.readRaw(e.idmap[f.ID])
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	if next := fileNext(fileBuf); next != 0 {
		t.Fatalf("expected no SEGINFO continuation at exactly InlineFileCapacity bytes, got next=%d", next)
	}

	positions, err := e.readDataPositions(e.idmap[f.ID])
	if err != nil {
		t.Fatalf("readDataPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("data blocks = %d, want 1", len(positions))
	}
}

func TestWriteFileDataOneByteMoreAllocatesSegInfo(t *testing.T) {
	e := newTestImage(t)
	f, err := e.CreateFile(RootID, "overflow")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	data := bytes.Repeat([]byte{'x'}, InlineFileCapacity+1)
	if err := e.WriteFileData(f.ID, 0, data); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	positions, err := e.readDataPositions(e.idmap[f.ID])
	if err != nil {
		t.Fatalf("readDataPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("data blocks = %d, want 2", len(positions))
	}

	fileBuf, err := e.readRaw(e.idmap[f.ID])
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	if next := fileNext(fileBuf); next == 0 {
		t.Fatalf("expected a SEGINFO continuation at InlineFileCapacity+1 bytes")
	}

	got, err := e.ReadFileData(f.ID, 0, len(data))
	if err != nil {
		t.Fatalf("ReadFileData: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch across SEGINFO boundary")
	}
}

func TestReadAtFileLengthYieldsEmpty(t *testing.T) {
	e := newTestImage(t)
	f, err := e.CreateFile(RootID, "empty-read")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := e.WriteFileData(f.ID, 0, []byte("hi")); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	got, err := e.ReadFileData(f.ID, 2, 10)
	if err != nil {
		t.Fatalf("ReadFileData at length: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("read at file_length = %q, want empty", got)
	}

	_, err = e.ReadFileData(f.ID, 3, 10)
	if !errors.Is(err, ErrEOF) {
		t.Fatalf("ReadFileData past length: err = %v, want ErrEOF", err)
	}
}

func TestDeleteReclaim(t *testing.T) {
	e := newTestImage(t)
	f, err := e.CreateFile(RootID, "EntryPoint")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := e.WriteFileData(f.ID, 0, []byte("#!/bin/sh\n")); err != nil {
		t.Fatalf("WriteFileData: %v", err)
	}

	fPos := e.idmap[f.ID]
	positions, err := e.readDataPositions(fPos)
	if err != nil {
		t.Fatalf("readDataPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("data blocks = %d, want 1", len(positions))
	}
	dataPos := positions[0]

	if err := e.UnlinkChild(RootID, f.ID); err != nil {
		t.Fatalf("UnlinkChild: %v", err)
	}
	if err := e.ResetBlock(fPos); err != nil {
		t.Fatalf("ResetBlock(fileinfo): %v", err)
	}
	if err := e.ResetBlock(dataPos); err != nil {
		t.Fatalf("ResetBlock(data): %v", err)
	}

	report, err := e.Audit()
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(report.HeaderBlocks) != 1 || !report.HeaderBlocks[e.PosRoot()] {
		t.Fatalf("header set after delete = %+v, want only {pos_root}", report.HeaderBlocks)
	}
	if len(report.DataBlocks) != 0 {
		t.Fatalf("data set after delete = %+v, want empty", report.DataBlocks)
	}

	freeFileInfo, err := e.IsBlockFree(fPos)
	if err != nil {
		t.Fatalf("IsBlockFree(fileinfo): %v", err)
	}
	freeData, err := e.IsBlockFree(dataPos)
	if err != nil {
		t.Fatalf("IsBlockFree(data): %v", err)
	}
	if !freeFileInfo || !freeData {
		t.Fatalf("reclaimed positions not marked free: fileinfo=%v data=%v", freeFileInfo, freeData)
	}
}
