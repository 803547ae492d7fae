// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// dataPayloadOffset is where a DATA block's payload begins. DATA
// blocks reserve the same header-sized region as FILEINFO so that a
// single DATA block's payload capacity is exactly InlineFileCapacity
// bytes.
const dataPayloadOffset = HSizeFile

// readDataPositions returns the full DATA-block position table of the
// FILEINFO at pos, following any SEGINFO continuation chain.
func (e *Engine) readDataPositions(pos int64) ([]int64, error) {
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	if decodeTag(buf) != TagFileInfo {
		return nil, fmt.Errorf("reading file at %d: %w", pos, ErrMalformed)
	}
	raw := decodeUint32TableBounded(buf, HSizeFile, fileOffNext)
	positions := make([]int64, len(raw))
	for i, v := range raw {
		positions[i] = int64(v)
	}
	next := int64(wire.Uint32(buf, fileOffNext))

	for next != 0 {
		segBuf, err := e.readRaw(next)
		if err != nil {
			return nil, err
		}
		if decodeTag(segBuf) != TagSegInfo {
			return nil, fmt.Errorf("file continuation at %d: %w", next, ErrMalformed)
		}
		raw := decodeUint32TableBounded(segBuf, segHeaderSize, segOffNext)
		for _, v := range raw {
			positions = append(positions, int64(v))
		}
		next = int64(wire.Uint32(segBuf, segOffNext))
	}
	return positions, nil
}

// writeDataPositions rewrites the FILEINFO at pos with the given
// DATA-block position table and file length, allocating or freeing
// SEGINFO continuation blocks as needed.
func (e *Engine) writeDataPositions(pos int64, fileID uint16, positions []int64, length uint32) error {
	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagFileInfo {
		return fmt.Errorf("writing file at %d: %w", pos, ErrMalformed)
	}

	oldNext := int64(wire.Uint32(buf, fileOffNext))

	inline := positions
	var overflow []int64
	if len(inline) > FileTableCapacity {
		overflow = inline[FileTableCapacity:]
		inline = inline[:FileTableCapacity]
	}

	newNext, err := e.writeUint32Chain(oldNext, fileID, overflow)
	if err != nil {
		return err
	}

	raw := make([]uint32, len(inline))
	for i, p := range inline {
		raw[i] = uint32(p)
	}
	if err := encodeUint32Table(buf, HSizeFile, fileOffNext, raw); err != nil {
		return err
	}
	wire.PutUint32(buf, fileOffNext, uint32(newNext))
	wire.PutUint32(buf, fileOffLength, length)
	return e.writeRaw(pos, buf)
}

// writeUint32Chain is the SEGINFO-chain counterpart of
// writeUint16Chain, used for a file's overflow DATA-block positions
// once its FILEINFO's inline table is full.
func (e *Engine) writeUint32Chain(head int64, ownerID uint16, entries []int64) (int64, error) {
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

// freeSegInfoChain is defined in directory.go and shared by the
// uint16 (directory child) and uint32 (file data-position) chain
// writers above.

// WriteFileData writes bytes at offset into the file, extending its
// SEGINFO chain and allocating new DATA blocks as needed, and updates
// the file length to cover the write.
func (e *Engine) WriteFileData(fileID uint16, offset int64, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeFileData(fileID, offset, data)
}

func (e *Engine) writeFileData(fileID uint16, offset int64, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("negative offset: %w", ErrMalformed)
	}
	pos, err := e.getInodePositionByID(fileID)
	if err != nil {
		return err
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagFileInfo {
		return fmt.Errorf("inode %d is not a file: %w", fileID, ErrMalformed)
	}
	length := int64(wire.Uint32(buf, fileOffLength))

	positions, err := e.readDataPositions(pos)
	if err != nil {
		return err
	}

	needed := offset + int64(len(data))
	blocksNeeded := int(needed+InlineFileCapacity-1) / InlineFileCapacity
	for len(positions) < blocksNeeded {
		dp, err := e.allocateBlock(TagData)
		if err != nil {
			return err
		}
		positions = append(positions, dp)
	}

	remaining := data
	cursor := offset
	for len(remaining) > 0 {
		blockIdx := int(cursor / InlineFileCapacity)
		blockOff := int(cursor % InlineFileCapacity)
		room := InlineFileCapacity - blockOff
		n := len(remaining)
		if n > room {
			n = room
		}

		dbuf, err := e.readRaw(positions[blockIdx])
		if err != nil {
			return err
		}
		wire.PutUint16(dbuf, offTag, uint16(TagData))
		copy(dbuf[dataPayloadOffset+blockOff:dataPayloadOffset+blockOff+n], remaining[:n])
		if err := e.writeRaw(positions[blockIdx], dbuf); err != nil {
			return err
		}

		remaining = remaining[n:]
		cursor += int64(n)
	}

	if needed > length {
		length = needed
	}
	return e.writeDataPositions(pos, fileID, positions, uint32(length))
}

// ReadFileData walks the FILEINFO and SEGINFO chain, concatenating
// DATA blocks, and returns up to n bytes starting at offset. Reading
// at offset == file_length yields zero bytes with no error; reading
// past file_length fails EOF.
func (e *Engine) ReadFileData(fileID uint16, offset int64, n int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readFileData(fileID, offset, n)
}

func (e *Engine) readFileData(fileID uint16, offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("negative offset or length: %w", ErrMalformed)
	}
	pos, err := e.getInodePositionByID(fileID)
	if err != nil {
		return nil, err
	}
	buf, err := e.readRaw(pos)
	if err != nil {
		return nil, err
	}
	if decodeTag(buf) != TagFileInfo {
		return nil, fmt.Errorf("inode %d is not a file: %w", fileID, ErrMalformed)
	}
	length := int64(wire.Uint32(buf, fileOffLength))

	if offset > length {
		return nil, ErrEOF
	}
	if offset == length {
		return []byte{}, nil
	}

	avail := length - offset
	if int64(n) > avail {
		n = int(avail)
	}

	positions, err := e.readDataPositions(pos)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, n)
	cursor := offset
	for len(out) < n {
		blockIdx := int(cursor / InlineFileCapacity)
		blockOff := int(cursor % InlineFileCapacity)
		if blockIdx >= len(positions) {
			return nil, fmt.Errorf("file %d: %w", fileID, ErrMalformed)
		}

		dbuf, err := e.readRaw(positions[blockIdx])
		if err != nil {
			return nil, err
		}
		room := InlineFileCapacity - blockOff
		want := n - len(out)
		if want > room {
			want = room
		}
		out = append(out, dbuf[dataPayloadOffset+blockOff:dataPayloadOffset+blockOff+want]...)
		cursor += int64(want)
	}
	return out, nil
}
