// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/wire"
)

// INode is the decoded form of any inode-bearing block: FSINFO,
// DIRECTORY, FILEINFO, SEGINFO, SYMLINK, or DEVICE. Fields that do not
// apply to a given Tag are left at their zero value.
type INode struct {
	Tag Tag
	ID  uint16
	Pos int64

	// DIRECTORY, FILEINFO, SYMLINK, DEVICE.
	Parent uint16
	Name   string

	// FILEINFO.
	FileLength    uint32
	DataPositions []uint32

	// SEGINFO.
	OwnerID  uint16
	SeqIndex uint16

	// DIRECTORY, FILEINFO, SEGINFO: position of a continuation SEGINFO
	// block, or 0 if the inline/own table was never filled.
	Next int64

	// DIRECTORY.
	Children []uint16

	// SYMLINK.
	Target string

	// DEVICE.
	DevMajor uint32
	DevMinor uint32

	// FSINFO.
	FSName         string
	VerMajor       uint16
	VerMinor       uint16
	VerRevision    uint16
	AppName        string
	AppVersion     string
	AppDescription string
	AppAuthor      string
	PosRoot        uint32
	PosFreelist    uint32
}

// decodeTag reads only the two-byte type tag from a raw block.
func decodeTag(buf []byte) Tag {
	t := Tag(wire.Uint16(buf, offTag))
	switch t {
	case TagUnset, TagFreeBlock, TagFSInfo, TagDirectory, TagFileInfo,
		TagSegInfo, TagData, TagSymlink, TagFreelist, TagTemporary, TagDevice:
		return t
	default:
		return TagInvalid
	}
}

// decodeInode decodes the block at pos held in buf (exactly BSIZE
// bytes) into an INode. DATA, FREEBLOCK, FREELIST, TEMPORARY, UNSET,
// and INVALID are not inode-bearing types; decoding one of those
// fails with ErrMalformed, matching get_inode_by_position's contract.
func decodeInode(buf []byte, pos int64) (*INode, error) {
	tag := decodeTag(buf)
	n := &INode{Tag: tag, Pos: pos}

	switch tag {
	case TagFSInfo:
		n.ID = wire.Uint16(buf, offID)
		n.FSName = wire.String(buf, fsinfoOffFSName, fsinfoSizeFSName)
		n.VerMajor = wire.Uint16(buf, fsinfoOffVerMajor)
		n.VerMinor = wire.Uint16(buf, fsinfoOffVerMinor)
		n.VerRevision = wire.Uint16(buf, fsinfoOffVerRevision)
		n.AppName = wire.String(buf, fsinfoOffAppName, fsinfoSizeAppName)
		n.AppVersion = wire.String(buf, fsinfoOffAppVersion, fsinfoSizeAppVersion)
		n.AppDescription = wire.String(buf, fsinfoOffAppDesc, fsinfoSizeAppDesc)
		n.AppAuthor = wire.String(buf, fsinfoOffAppAuthor, fsinfoSizeAppAuthor)
		n.PosRoot = wire.Uint32(buf, fsinfoOffPosRoot)
		n.PosFreelist = wire.Uint32(buf, fsinfoOffPosFreelist)
		return n, nil

	case TagDirectory:
		n.ID = wire.Uint16(buf, offID)
		n.Parent = wire.Uint16(buf, dirOffParent)
		n.Name = wire.String(buf, dirOffName, dirSizeName)
		n.Children = decodeUint16TableBounded(buf, dirHeaderSize, dirOffNext)
		n.Next = int64(wire.Uint32(buf, dirOffNext))
		return n, nil

	case TagFileInfo:
		n.ID = wire.Uint16(buf, offID)
		n.Parent = wire.Uint16(buf, fileOffParent)
		n.Name = wire.String(buf, fileOffName, fileSizeName)
		n.FileLength = wire.Uint32(buf, fileOffLength)
		n.DataPositions = decodeUint32TableBounded(buf, HSizeFile, fileOffNext)
		n.Next = int64(wire.Uint32(buf, fileOffNext))
		return n, nil

	case TagSegInfo:
		n.ID = wire.Uint16(buf, offID)
		n.OwnerID = wire.Uint16(buf, segOffOwnerID)
		n.SeqIndex = wire.Uint16(buf, segOffSeqIndex)
		n.DataPositions = decodeUint32TableBounded(buf, segHeaderSize, segOffNext)
		n.Next = int64(wire.Uint32(buf, segOffNext))
		return n, nil

	case TagSymlink:
		n.ID = wire.Uint16(buf, offID)
		n.Parent = wire.Uint16(buf, symOffParent)
		n.Name = wire.String(buf, symOffName, symSizeName)
		n.Target = wire.String(buf, symOffTarget, symSizeTarget)
		return n, nil

	case TagDevice:
		n.ID = wire.Uint16(buf, offID)
		n.Parent = wire.Uint16(buf, devOffParent)
		n.Name = wire.String(buf, devOffName, devSizeName)
		n.DevMajor = wire.Uint32(buf, devOffMajor)
		n.DevMinor = wire.Uint32(buf, devOffMinor)
		return n, nil

	default:
		return nil, fmt.Errorf("decoding block at %d: tag %v: %w", pos, tag, ErrMalformed)
	}
}

// decodeUint16TableBounded reads a zero-terminated table of uint16
// entries in buf[off:end].
func decodeUint16TableBounded(buf []byte, off, end int) []uint16 {
	var out []uint16
	for p := off; p+2 <= end; p += 2 {
		v := wire.Uint16(buf, p)
		if v == 0 {
			break
		}
		out = append(out, v)
	}
	return out
}

// decodeUint32Table reads a zero-terminated table of uint32 entries
// starting at off, running to the end of the block.
func decodeUint32Table(buf []byte, off int) []uint32 {
	return decodeUint32TableBounded(buf, off, len(buf))
}

// decodeUint32TableBounded reads a zero-terminated table of uint32
// entries in buf[off:end].
func decodeUint32TableBounded(buf []byte, off, end int) []uint32 {
	var out []uint32
	for p := off; p+4 <= end; p += 4 {
		v := wire.Uint32(buf, p)
		if v == 0 {
			break
		}
		out = append(out, v)
	}
	return out
}

// encodeUint16Table writes a table of uint16 entries into buf[off:end]
// and zero-fills the rest of the region, so the table is zero-terminated
// unless it fills the region exactly (the bounded decoders stop at end).
// Fails if entries does not fit.
func encodeUint16Table(buf []byte, off, end int, entries []uint16) error {
	need := len(entries) * 2
	if off+need > end {
		return fmt.Errorf("table of %d entries at offset %d: %w", len(entries), off, ErrOutOfSpace)
	}
	p := off
	for _, e := range entries {
		wire.PutUint16(buf, p, e)
		p += 2
	}
	for p+2 <= end {
		wire.PutUint16(buf, p, 0)
		p += 2
	}
	return nil
}

// encodeUint32Table writes a table of uint32 entries into buf[off:end]
// and zero-fills the rest of the region, so the table is zero-terminated
// unless it fills the region exactly (the bounded decoders stop at end).
// Fails if entries does not fit.
func encodeUint32Table(buf []byte, off, end int, entries []uint32) error {
	need := len(entries) * 4
	if off+need > end {
		return fmt.Errorf("table of %d entries at offset %d: %w", len(entries), off, ErrOutOfSpace)
	}
	p := off
	for _, e := range entries {
		wire.PutUint32(buf, p, e)
		p += 4
	}
	for p+4 <= end {
		wire.PutUint32(buf, p, 0)
		p += 4
	}
	return nil
}
