// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// freelistBucket is the decoded form of a FREELIST block.
type freelistBucket struct {
	pos       int64
	next      int64
	positions []int64
}

func (e *Engine) readFreelistBucket(pos int64) (*freelistBucket, error) {
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	if decodeTag(buf) != TagFreelist {
		return nil, fmt.Errorf("reading freelist bucket at %d: %w", pos, ErrMalformed)
	}
	next := int64(wire.Uint32(buf, flOffNext))
	raw := decodeUint32Table(buf, flHeaderSize)
	positions := make([]int64, len(raw))
	for i, p := range raw {
		positions[i] = int64(p)
	}
	return &freelistBucket{pos: pos, next: next, positions: positions}, nil
}

func (e *Engine) writeFreelistBucket(b *freelistBucket) error {
	buf := make([]byte, BSIZE)
	wire.PutUint16(buf, offTag, uint16(TagFreelist))
	wire.PutUint16(buf, offID, 0)
	wire.PutUint32(buf, flOffNext, uint32(b.next))
	raw := make([]uint32, len(b.positions))
	for i, p := range b.positions {
		raw[i] = uint32(p)
	}
	if err := encodeUint32Table(buf, flHeaderSize, BSIZE, raw); err != nil {
		return err
	}
	return e.writeRaw(b.pos, buf)
}

// freelistPush appends pos to the head bucket, or prepends a fresh
// bucket (allocated by extending the image, never by popping the
// freelist itself) when the head bucket is full.
func (e *Engine) freelistPush(pos int64) error {
	head, err := e.readFreelistBucket(e.posFreelist)
	if err != nil {
		return err
	}

	if len(head.positions) < FreelistCapacity {
		head.positions = append(head.positions, pos)
		return e.writeFreelistBucket(head)
	}

	// Head is full: allocate a new bucket at end-of-file and prepend it.
	newPos := e.dev.Size()
	if err := e.writeRaw(newPos, make([]byte, BSIZE)); err != nil {
		return fmt.Errorf("extending image for new freelist bucket: %w", err)
	}
	newHead := &freelistBucket{pos: newPos, next: e.posFreelist, positions: []int64{pos}}
	if err := e.writeFreelistBucket(newHead); err != nil {
		return err
	}
	e.posFreelist = newPos
	return e.writeFSInfoPointers()
}

// freelistPop takes the last entry of the head bucket. If the head
// bucket becomes empty and has a non-null next, the now-empty bucket
// is itself returned as the popped position and next becomes the new
// head, bounding the bucket chain's length.
func (e *Engine) freelistPop() (int64, bool, error) {
	head, err := e.readFreelistBucket(e.posFreelist)
	if err != nil {
		return 0, false, err
	}

	if len(head.positions) == 0 {
		if head.next == 0 {
			return 0, false, nil // freelist exhausted
		}
		emptied := head.pos
		e.posFreelist = head.next
		if err := e.writeFSInfoPointers(); err != nil {
			return 0, false, err
		}
		return emptied, true, nil
	}

	last := head.positions[len(head.positions)-1]
	head.positions = head.positions[:len(head.positions)-1]
	if err := e.writeFreelistBucket(head); err != nil {
		return 0, false, err
	}
	return last, true, nil
}
