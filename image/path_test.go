// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"errors"
	"testing"
)

func TestResolveNestedPath(t *testing.T) {
	e := newTestImage(t)

	bin, err := e.CreateDirectory(RootID, "bin")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	f, err := e.CreateFile(bin.ID, "tool")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	got, err := e.Resolve("/bin/tool")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != f.ID {
		t.Fatalf("resolved id = %d, want %d", got.ID, f.ID)
	}
}

func TestResolveMissingComponent(t *testing.T) {
	e := newTestImage(t)
	_, err := e.Resolve("/nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveThroughNonDirectory(t *testing.T) {
	e := newTestImage(t)
	if _, err := e.CreateFile(RootID, "leaf"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	_, err := e.Resolve("/leaf/deeper")
	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("err = %v, want ErrNotADirectory", err)
	}
}

func TestResolveSymlink(t *testing.T) {
	e := newTestImage(t)
	target, err := e.CreateFile(RootID, "real")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := e.CreateSymlink(RootID, "alias", "/real"); err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}

	got, err := e.Resolve("/alias")
	if err != nil {
		t.Fatalf("Resolve(symlink): %v", err)
	}
	if got.ID != target.ID {
		t.Fatalf("resolved through symlink = %d, want %d", got.ID, target.ID)
	}
}

func TestResolveSymlinkLoop(t *testing.T) {
	e := newTestImage(t)
	if _, err := e.CreateSymlink(RootID, "a", "/b"); err != nil {
		t.Fatalf("CreateSymlink(a): %v", err)
	}
	if _, err := e.CreateSymlink(RootID, "b", "/a"); err != nil {
		t.Fatalf("CreateSymlink(b): %v", err)
	}

	_, err := e.Resolve("/a")
	if !errors.Is(err, ErrLoop) {
		t.Fatalf("err = %v, want ErrLoop", err)
	}
}

func TestMalformedTagFailsDecode(t *testing.T) {
	e := newTestImage(t)
	pos, err := e.AllocateBlock(TagTemporary)
	if err != nil {
		t.Fatalf("AllocateBlock: %v", err)
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	buf[0], buf[1] = 0xAB, 0xCD
	if err := e.writeRaw(pos, buf); err != nil {
		t.Fatalf("writeRaw: %v", err)
	}

	_, err = e.GetInodeByPosition(pos)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}

	report, err := e.Audit()
	if err != nil {
		t.Fatalf("Audit with malformed block present: %v", err)
	}
	if report == nil {
		t.Fatalf("Audit returned nil report")
	}
}
