// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// readDirectoryChildren returns the full child-id table of the
// DIRECTORY at pos, following any SEGINFO continuation chain.
func (e *Engine) readDirectoryChildren(pos int64) ([]uint16, error) {
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	if decodeTag(buf) != TagDirectory {
		return nil, fmt.Errorf("reading directory at %d: %w", pos, ErrMalformed)
	}
	children := decodeUint16TableBounded(buf, dirHeaderSize, dirOffNext)
	next := int64(wire.Uint32(buf, dirOffNext))

	for next != 0 {
		segBuf, err := e.readRaw(next)
		if err != nil {
			return nil, err
		}
		if decodeTag(segBuf) != TagSegInfo {
			return nil, fmt.Errorf("directory continuation at %d: %w", next, ErrMalformed)
		}
		raw := decodeUint32TableBounded(segBuf, segHeaderSize, segOffNext)
		for _, v := range raw {
			children = append(children, uint16(v))
		}
		next = int64(wire.Uint32(segBuf, segOffNext))
	}
	return children, nil
}

// writeDirectoryChildren rewrites the DIRECTORY at pos with the given
// child table, allocating or freeing SEGINFO continuation blocks as
// needed, and compacts gaps (tables are always append-compacted).
func (e *Engine) writeDirectoryChildren(pos int64, dirID uint16, children []uint16) error {
	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagDirectory {
		return fmt.Errorf("writing directory at %d: %w", pos, ErrMalformed)
	}

	oldNext := int64(wire.Uint32(buf, dirOffNext))

	inline := children
	var overflow []uint16
	if len(inline) > DirTableCapacity {
		overflow = inline[DirTableCapacity:]
		inline = inline[:DirTableCapacity]
	}

	newNext, err := e.writeUint16Chain(oldNext, dirID, overflow)
	if err != nil {
		return err
	}

	if err := encodeUint16Table(buf, dirHeaderSize, dirOffNext, inline); err != nil {
		return err
	}
	wire.PutUint32(buf, dirOffNext, uint32(newNext))
	return e.writeRaw(pos, buf)
}

// writeUint16Chain writes entries across a chain of SEGINFO blocks
// starting at head (0 if none exists yet), freeing any now-unneeded
// trailing buckets and allocating new ones as required. It returns
// the (possibly new) head position, or 0 if entries is empty.
func (e *Engine) writeUint16Chain(head int64, ownerID uint16, entries []uint16) (int64, error) {
	var newHead int64
	pos := head
	seq := uint16(0)
	remaining := entries

	for len(remaining) > 0 {
		chunk := remaining
		if len(chunk) > SegTableCapacity {
			chunk = chunk[:SegTableCapacity]
		}
		remaining = remaining[len(chunk):]

		if pos == 0 {
			p, err := e.allocateBlock(TagSegInfo)
			if err != nil {
				return 0, err
			}
			pos = p
		}
		if seq == 0 {
			newHead = pos
		}

		segBuf, err := e.readRaw(pos)
		if err != nil {
			return 0, err
		}
		wire.PutUint16(segBuf, segOffOwnerID, ownerID)
		wire.PutUint16(segBuf, segOffSeqIndex, seq)
		raw := make([]uint32, len(chunk))
		for i, c := range chunk {
			raw[i] = uint32(c)
		}
		if err := encodeUint32Table(segBuf, segHeaderSize, segOffNext, raw); err != nil {
			return 0, err
		}

		next := int64(wire.Uint32(segBuf, segOffNext))
		if len(remaining) == 0 {
			wire.PutUint32(segBuf, segOffNext, 0)
			if err := e.writeRaw(pos, segBuf); err != nil {
				return 0, err
			}
			if next != 0 {
				if err := e.freeSegInfoChain(next); err != nil {
					return 0, err
				}
			}
			break
		}

		if err := e.writeRaw(pos, segBuf); err != nil {
			return 0, err
		}
		if next == 0 {
			next2, err := e.allocateBlock(TagSegInfo)
			if err != nil {
				return 0, err
			}
			segBuf2, err := e.readRaw(pos)
			if err != nil {
				return 0, err
			}
			wire.PutUint32(segBuf2, segOffNext, uint32(next2))
			if err := e.writeRaw(pos, segBuf2); err != nil {
				return 0, err
			}
			next = next2
		}
		pos = next
		seq++
	}

	if len(entries) == 0 && head != 0 {
		if err := e.freeSegInfoChain(head); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return newHead, nil
}

// freeSegInfoChain resets every SEGINFO block in a chain starting at
// pos.
func (e *Engine) freeSegInfoChain(pos int64) error {
	for pos != 0 {
		buf, err := e.readRaw(pos)
		if err != nil {
			return err
		}
		next := int64(wire.Uint32(buf, segOffNext))
		if err := e.resetBlock(pos); err != nil {
			return err
		}
		pos = next
	}
	return nil
}

// GetChildrenOfDirectory resolves a DIRECTORY inode's child-id table
// into inode records, skipping any child id that no longer resolves.
func (e *Engine) GetChildrenOfDirectory(id uint16) ([]*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getChildrenOfDirectory(id)
}

func (e *Engine) getChildrenOfDirectory(id uint16) ([]*INode, error) {
	pos, err := e.getInodePositionByID(id)
	if err != nil {
		return nil, err
	}
	dirBuf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	if decodeTag(dirBuf) != TagDirectory {
		return nil, fmt.Errorf("inode %d: %w", id, ErrNotADirectory)
	}

	childIDs, err := e.readDirectoryChildren(pos)
	if err != nil {
		return nil, err
	}

	var out []*INode
	for _, cid := range childIDs {
		n, err := e.getInodeByID(cid)
		if err != nil {
			// A child id that no longer resolves is a repairable
			// inconsistency: skip it rather than fail the whole
			// listing.
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// LinkChild appends childID to the parent directory's child table.
func (e *Engine) LinkChild(parentID, childID uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linkChild(parentID, childID)
}

func (e *Engine) linkChild(parentID, childID uint16) error {
	pos, err := e.getInodePositionByID(parentID)
	if err != nil {
		return err
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagDirectory {
		return fmt.Errorf("inode %d: %w", parentID, ErrNotADirectory)
	}

	children, err := e.readDirectoryChildren(pos)
	if err != nil {
		return err
	}
	children = append(children, childID)
	return e.writeDirectoryChildren(pos, parentID, children)
}

// UnlinkChild removes childID from the parent directory's child
// table, compacting the remaining entries (no gaps).
func (e *Engine) UnlinkChild(parentID, childID uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlinkChild(parentID, childID)
}

func (e *Engine) unlinkChild(parentID, childID uint16) error {
	pos, err := e.getInodePositionByID(parentID)
	if err != nil {
		return err
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagDirectory {
		return fmt.Errorf("inode %d: %w", parentID, ErrNotADirectory)
	}

	children, err := e.readDirectoryChildren(pos)
	if err != nil {
		return err
	}
	compacted := children[:0]
	found := false
	for _, c := range children {
		if c == childID && !found {
			found = true
			continue
		}
		compacted = append(compacted, c)
	}
	if !found {
		return fmt.Errorf("child %d not found under directory %d: %w", childID, parentID, ErrNotFound)
	}
	return e.writeDirectoryChildren(pos, parentID, compacted)
}
