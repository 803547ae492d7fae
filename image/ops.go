// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// CreateFile allocates a FILEINFO block, stamps its parent and name,
// links it into parentID's child table, and returns the new inode.
// Composes block allocation with child linking the way a FUSE create
// handler needs to.
func (e *Engine) CreateFile(parentID uint16, name string) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createHeader(TagFileInfo, parentID, name, "", 0, 0)
}

// CreateDirectory allocates a DIRECTORY block, stamps its parent and
// name, and links it into parentID's child table.
func (e *Engine) CreateDirectory(parentID uint16, name string) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createHeader(TagDirectory, parentID, name, "", 0, 0)
}

// CreateSymlink allocates a SYMLINK block pointing at target.
func (e *Engine) CreateSymlink(parentID uint16, name, target string) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createHeader(TagSymlink, parentID, name, target, 0, 0)
}

// CreateDevice allocates a DEVICE block with the given major/minor
// numbers.
func (e *Engine) CreateDevice(parentID uint16, name string, major, minor uint32) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createHeader(TagDevice, parentID, name, "", major, minor)
}

func (e *Engine) createHeader(tag Tag, parentID uint16, name, target string, major, minor uint32) (*INode, error) {
	parentPos, err := e.getInodePositionByID(parentID)
	if err != nil {
		return nil, err
	}
	parentBuf, err := e.readRaw(parentPos)
	if err != nil {
		return nil, err
	}
	if decodeTag(parentBuf) != TagDirectory {
		return nil, fmt.Errorf("parent %d: %w", parentID, ErrNotADirectory)
	}

	pos, err := e.allocateBlock(tag)
	if err != nil {
		return nil, err
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	id := wire.Uint16(buf, offID)

	switch tag {
	case TagFileInfo:
		wire.PutUint16(buf, fileOffParent, parentID)
		if err := wire.PutString(buf, fileOffName, fileSizeName, name); err != nil {
			return nil, fmt.Errorf("file name %q: %w", name, ErrNameTooLong)
		}
		wire.PutUint32(buf, fileOffLength, 0)
	case TagDirectory:
		wire.PutUint16(buf, dirOffParent, parentID)
		if err := wire.PutString(buf, dirOffName, dirSizeName, name); err != nil {
			return nil, fmt.Errorf("directory name %q: %w", name, ErrNameTooLong)
		}
	case TagSymlink:
		wire.PutUint16(buf, symOffParent, parentID)
		if err := wire.PutString(buf, symOffName, symSizeName, name); err != nil {
			return nil, fmt.Errorf("symlink name %q: %w", name, ErrNameTooLong)
		}
		if err := wire.PutString(buf, symOffTarget, symSizeTarget, target); err != nil {
			return nil, fmt.Errorf("symlink target %q: %w", target, ErrNameTooLong)
		}
	case TagDevice:
		wire.PutUint16(buf, devOffParent, parentID)
		if err := wire.PutString(buf, devOffName, devSizeName, name); err != nil {
			return nil, fmt.Errorf("device name %q: %w", name, ErrNameTooLong)
		}
		wire.PutUint32(buf, devOffMajor, major)
		wire.PutUint32(buf, devOffMinor, minor)
	}
	if err := e.writeRaw(pos, buf); err != nil {
		return nil, err
	}

	if err := e.linkChild(parentID, id); err != nil {
		return nil, err
	}
	return e.getInodeByID(id)
}
