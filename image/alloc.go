// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// AllocateBlock pops the freelist; if empty, it appends a new block
// at end-of-file. The block is written with the given tag and, for
// inode-bearing types, a freshly minted id.
func (e *Engine) AllocateBlock(tag Tag) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocateBlock(tag)
}

func (e *Engine) allocateBlock(tag Tag) (int64, error) {
	pos, ok, err := e.freelistPop()
	if err != nil {
		return 0, err
	}
	if !ok {
		pos = e.dev.Size()
		if err := e.writeRaw(pos, make([]byte, BSIZE)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrOutOfSpace, err)
		}
	}

	buf := make([]byte, BSIZE)
	wire.PutUint16(buf, offTag, uint16(tag))
	if inodeBearing(tag) {
		id := e.mintID()
		wire.PutUint16(buf, offID, id)
		e.idmap[id] = pos
	}
	if err := e.writeRaw(pos, buf); err != nil {
		return 0, err
	}
	return pos, nil
}

func inodeBearing(tag Tag) bool {
	switch tag {
	case TagDirectory, TagFileInfo, TagSymlink, TagDevice:
		return true
	default:
		return false
	}
}

// ResetBlock tags the block FREEBLOCK, zeroes its header, and pushes
// it onto the freelist. Valid for any non-FSINFO block.
func (e *Engine) ResetBlock(pos int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetBlock(pos)
}

func (e *Engine) resetBlock(pos int64) error {
	if pos == OffsetFSInfo {
		return fmt.Errorf("resetting FSINFO block: %w", ErrBusy)
	}

	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	tag := decodeTag(buf)
	if tag == TagFreeBlock {
		return nil // already free
	}
	if inodeBearing(tag) {
		id := wire.Uint16(buf, offID)
		delete(e.idmap, id)
	}

	fresh := make([]byte, BSIZE)
	wire.PutUint16(fresh, offTag, uint16(TagFreeBlock))
	if err := e.writeRaw(pos, fresh); err != nil {
		return err
	}
	return e.freelistPush(pos)
}
