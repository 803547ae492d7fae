// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"
	"strings"
)

// maxSymlinkHops bounds the number of symlink follows per resolution,
// as a backstop alongside the visited-position set.
const maxSymlinkHops = 64

// Resolve walks path one component at a time from the root directory,
// matching by name within each directory's children. It fails
// NotFound on a missing component, NotADirectory on a non-directory
// intermediate, and Loop if a symlink target has already been visited
// during this resolution.
func (e *Engine) Resolve(path string) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(path)
}

func (e *Engine) resolve(path string) (*INode, error) {
	root, err := e.getInodeByID(RootID)
	if err != nil {
		return nil, err
	}
	visited := map[int64]bool{root.Pos: true}
	hops := 0
	n, err := e.resolveFrom(root, path, visited, &hops)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}
	return n, nil
}

// resolveFrom resolves path one component at a time starting at dir,
// following symlinks as they're encountered and tracking every
// directory/link position visited so far in visited.
func (e *Engine) resolveFrom(dir *INode, path string, visited map[int64]bool, hops *int) (*INode, error) {
	cur := dir
	for _, comp := range splitPath(path) {
		if comp == "" || comp == "." {
			continue
		}
		if cur.Tag != TagDirectory {
			return nil, ErrNotADirectory
		}

		child, err := e.findChildByName(cur.Pos, comp)
		if err != nil {
			return nil, err
		}

		for child.Tag == TagSymlink {
			*hops++
			if *hops > maxSymlinkHops || visited[child.Pos] {
				return nil, ErrLoop
			}
			visited[child.Pos] = true

			parentDir, err := e.getInodeByID(child.Parent)
			if err != nil {
				return nil, err
			}
			child, err = e.resolveFrom(parentDir, child.Target, visited, hops)
			if err != nil {
				return nil, err
			}
		}

		visited[child.Pos] = true
		cur = child
	}
	return cur, nil
}

// findChildByName scans a directory's children for a matching name.
func (e *Engine) findChildByName(dirPos int64, name string) (*INode, error) {
	childIDs, err := e.readDirectoryChildren(dirPos)
	if err != nil {
		return nil, err
	}
	for _, id := range childIDs {
		n, err := e.getInodeByID(id)
		if err != nil {
			continue
		}
		if n.Name == name {
			return n, nil
		}
	}
	return nil, ErrNotFound
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
