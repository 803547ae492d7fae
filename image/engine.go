// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pkgfs/pkgfs/blockio"
	"github.com/pkgfs/pkgfs/wire"
)

// Engine is the filesystem engine. It owns a blockio.Device
// exclusively and serializes every public operation through a single
// mutex: one mutual-exclusion region wraps each operation end-to-end,
// and no operation calls another public method while holding it.
type Engine struct {
	mu     sync.Mutex
	dev    *blockio.Device
	idmap  map[uint16]int64 // inode id -> block position, rebuilt by scan
	nextID uint16

	posRoot     int64
	posFreelist int64
}

// Open opens an existing image at path and rebuilds the id-to-position
// map with a linear scan: ids are not stored in a lookup table on
// disk, so every open must walk the block stream once to recover them.
func Open(path string) (*Engine, error) {
	dev, err := blockio.Open(path)
	if err != nil {
		return nil, translateIOErr(err)
	}
	e := &Engine{dev: dev, idmap: make(map[uint16]int64)}
	if err := e.loadFSInfo(); err != nil {
		dev.Close()
		return nil, err
	}
	if err := e.scan(); err != nil {
		dev.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the underlying block stream. The Engine must not be
// used afterward.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev == nil {
		return nil
	}
	err := e.dev.Close()
	e.dev = nil
	return err
}

// loadFSInfo reads block zero and caches pos_root / pos_freelist.
func (e *Engine) loadFSInfo() error {
	buf, err := e.readRaw(OffsetFSInfo)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagFSInfo {
		return fmt.Errorf("reading FSINFO: %w", ErrMalformed)
	}
	e.posRoot = int64(wire.Uint32(buf, fsinfoOffPosRoot))
	e.posFreelist = int64(wire.Uint32(buf, fsinfoOffPosFreelist))
	return nil
}

// scan performs the linear rebuild of the id-to-position map required
// by invariant 2, and establishes nextID past the highest id in use.
func (e *Engine) scan() error {
	e.idmap = make(map[uint16]int64)
	var maxID uint16

	size := e.dev.Size()
	for pos := int64(OffsetFSInfo); pos < size; pos += BSIZE {
		buf, err := e.readRaw(pos)
		if err != nil {
			if errors.Is(err, ErrEOF) {
				break
			}
			return err
		}
		tag := decodeTag(buf)
		switch tag {
		case TagDirectory, TagFileInfo, TagSymlink, TagDevice:
			id := wire.Uint16(buf, offID)
			e.idmap[id] = pos
			if id > maxID {
				maxID = id
			}
		}
	}
	e.nextID = maxID + 1
	if e.nextID == 0 {
		e.nextID = 1 // wrapped past 0xFFFF; 0 is reserved for root
	}
	return nil
}

func (e *Engine) mintID() uint16 {
	for {
		id := e.nextID
		e.nextID++
		if e.nextID == 0 {
			e.nextID = 1
		}
		if id != RootID && id != FSInfoID {
			if _, used := e.idmap[id]; !used {
				return id
			}
		}
	}
}

// readRaw reads exactly one block's worth of bytes at pos.
func (e *Engine) readRaw(pos int64) ([]byte, error) {
	if e.dev == nil {
		return nil, ErrClosed
	}
	buf, err := e.dev.Read(pos, BSIZE)
	if err != nil {
		return nil, translateIOErr(err)
	}
	return buf, nil
}

// writeRaw writes exactly one block's worth of bytes at pos.
func (e *Engine) writeRaw(pos int64, buf []byte) error {
	if e.dev == nil {
		return ErrClosed
	}
	if len(buf) != BSIZE {
		padded := make([]byte, BSIZE)
		copy(padded, buf)
		buf = padded
	}
	if err := e.dev.Write(pos, buf); err != nil {
		return translateIOErr(err)
	}
	return nil
}

// writeFSInfoPointers updates pos_root and pos_freelist as the last
// step of an operation that changes them, per invariant 6.
func (e *Engine) writeFSInfoPointers() error {
	buf, err := e.readRaw(OffsetFSInfo)
	if err != nil {
		return err
	}
	wire.PutUint32(buf, fsinfoOffPosRoot, uint32(e.posRoot))
	wire.PutUint32(buf, fsinfoOffPosFreelist, uint32(e.posFreelist))
	return e.writeRaw(OffsetFSInfo, buf)
}

func translateIOErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, blockio.ErrEOF) {
		return fmt.Errorf("%w", ErrEOF)
	}
	if errors.Is(err, blockio.ErrClosed) {
		return fmt.Errorf("%w", ErrClosed)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// GetInodeByID looks up an inode via the id-to-position map.
func (e *Engine) GetInodeByID(id uint16) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getInodeByID(id)
}

func (e *Engine) getInodeByID(id uint16) (*INode, error) {
	pos, err := e.getInodePositionByID(id)
	if err != nil {
		return nil, err
	}
	return e.getInodeByPosition(pos)
}

// GetInodeByPosition decodes the block at pos.
func (e *Engine) GetInodeByPosition(pos int64) (*INode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getInodeByPosition(pos)
}

func (e *Engine) getInodeByPosition(pos int64) (*INode, error) {
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	n, err := decodeInode(buf, pos)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetInodePositionByID returns the block position of a live inode id.
func (e *Engine) GetInodePositionByID(id uint16) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getInodePositionByID(id)
}

func (e *Engine) getInodePositionByID(id uint16) (int64, error) {
	if id == RootID {
		return e.posRoot, nil
	}
	pos, ok := e.idmap[id]
	if !ok {
		return 0, fmt.Errorf("inode id %d: %w", id, ErrNotFound)
	}
	return pos, nil
}

// IsBlockFree reports whether the block's tag is FREEBLOCK.
func (e *Engine) IsBlockFree(pos int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, err := e.readRaw(pos)
	if err != nil {
		return false, err
	}
	return decodeTag(buf) == TagFreeBlock, nil
}

// PosRoot returns the current root directory position.
func (e *Engine) PosRoot() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.posRoot
}

// PosFreelist returns the current freelist head position.
func (e *Engine) PosFreelist() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.posFreelist
}

// Size returns the current image length in bytes.
func (e *Engine) Size() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev == nil {
		return 0
	}
	return e.dev.Size()
}

// ReadBlock returns the raw BSIZE bytes of the block at pos, tag and
// all. Inspection tools use this to render a block regardless of
// whether its tag decodes to a known type.
func (e *Engine) ReadBlock(pos int64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readRaw(pos)
}

// BlockTag returns the tag of the block at pos without fully decoding
// it, so callers can classify blocks (including FREEBLOCK and
// INVALID, which GetInodeByPosition rejects) for a segment map.
func (e *Engine) BlockTag(pos int64) (Tag, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, err := e.readRaw(pos)
	if err != nil {
		return TagInvalid, err
	}
	return decodeTag(buf), nil
}
