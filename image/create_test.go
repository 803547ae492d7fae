// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"path/filepath"
	"testing"
)

func TestCreateImageLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pkgfs")
	e, err := CreateImage(path, "hello", "1.0.0", "a test app", "nobody")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	defer e.Close()

	if got, want := e.Size(), int64(3*BSIZE); got != want {
		t.Fatalf("image size = %d, want %d", got, want)
	}
	if got, want := e.PosRoot(), int64(BSIZE); got != want {
		t.Fatalf("pos_root = %d, want %d", got, want)
	}
	if got, want := e.PosFreelist(), int64(2*BSIZE); got != want {
		t.Fatalf("pos_freelist = %d, want %d", got, want)
	}

	root, err := e.GetInodeByID(RootID)
	if err != nil {
		t.Fatalf("GetInodeByID(root): %v", err)
	}
	if root.Tag != TagDirectory {
		t.Fatalf("root tag = %v, want directory", root.Tag)
	}
	if root.Name != "/" {
		t.Fatalf("root name = %q, want %q", root.Name, "/")
	}
	if len(root.Children) != 0 {
		t.Fatalf("root has %d children, want 0", len(root.Children))
	}
}

func TestCreateImageReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pkgfs")
	e, err := CreateImage(path, "hello", "1.0.0", "a test app", "nobody")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	root, err := reopened.GetInodeByID(RootID)
	if err != nil {
		t.Fatalf("GetInodeByID(root) after reopen: %v", err)
	}
	if root.Name != "/" {
		t.Fatalf("root name after reopen = %q, want %q", root.Name, "/")
	}
}
