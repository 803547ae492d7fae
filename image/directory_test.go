// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"
	"path/filepath"
	"testing"
)

func newTestImage(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pkgfs")
	e, err := CreateImage(path, "app", "1.0.0", "desc", "author")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestLinkAndUnlinkChild(t *testing.T) {
	e := newTestImage(t)

	f, err := e.CreateFile(RootID, "EntryPoint")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	children, err := e.GetChildrenOfDirectory(RootID)
	if err != nil {
		t.Fatalf("GetChildrenOfDirectory: %v", err)
	}
	if len(children) != 1 || children[0].ID != f.ID {
		t.Fatalf("children = %+v, want [%d]", children, f.ID)
	}

	if err := e.UnlinkChild(RootID, f.ID); err != nil {
		t.Fatalf("UnlinkChild: %v", err)
	}
	children, err = e.GetChildrenOfDirectory(RootID)
	if err != nil {
		t.Fatalf("GetChildrenOfDirectory after unlink: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("children after unlink = %+v, want none", children)
	}
}

func TestDirectoryChildTableOverflowsToSegInfo(t *testing.T) {
	e := newTestImage(t)

	// Fill the inline table exactly, then add one more: this must
	// force a SEGINFO continuation.
	var last *INode
	for i := 0; i < DirTableCapacity+1; i++ {
		f, err := e.CreateFile(RootID, fmt.Sprintf("f%d", i))
		if err != nil {
			t.Fatalf("CreateFile(%d): %v", i, err)
		}
		last = f
	}

	rootPos := e.PosRoot()
	buf, err := e.readRaw(rootPos)
	if err != nil {
		t.Fatalf("readRaw(root): %v", err)
	}
	next := directoryNext(buf)
	if next == 0 {
		t.Fatalf("expected root directory to continue via SEGINFO after %d children", DirTableCapacity+1)
	}

	children, err := e.GetChildrenOfDirectory(RootID)
	if err != nil {
		t.Fatalf("GetChildrenOfDirectory: %v", err)
	}
	if len(children) != DirTableCapacity+1 {
		t.Fatalf("children = %d, want %d", len(children), DirTableCapacity+1)
	}

	found := false
	for _, c := range children {
		if c.ID == last.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("overflowed child %d not found via continuation chain", last.ID)
	}
}
