// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import "github.com/pkgfs/pkgfs/blockio"

// BSIZE is the fixed block size, in bytes, of every block in an
// image.
const BSIZE = blockio.BSIZE

// OffsetFSInfo is the byte offset of the single FSINFO block.
const OffsetFSInfo = 0

// Tag identifies the type of a block. It occupies the first two
// bytes of every block, free or used.
type Tag uint16

// Block type tags. The engine treats any value outside this set as
// Invalid when decoding.
const (
	TagUnset     Tag = 0 // never-written block within image bounds
	TagFreeBlock Tag = 1
	TagFSInfo    Tag = 2
	TagDirectory Tag = 3
	TagFileInfo  Tag = 4
	TagSegInfo   Tag = 5
	TagData      Tag = 6
	TagSymlink   Tag = 7
	TagFreelist  Tag = 8
	TagTemporary Tag = 9
	TagInvalid   Tag = 10
	TagDevice    Tag = 11
)

// Char returns the single-character classification used by the
// inspector's segment map.
func (t Tag) Char() byte {
	switch t {
	case TagUnset:
		return ' '
	case TagFreeBlock:
		return '_'
	case TagFSInfo:
		return 'I'
	case TagDirectory:
		return 'D'
	case TagFileInfo:
		return 'F'
	case TagSegInfo:
		return 'S'
	case TagData:
		return '#'
	case TagSymlink:
		return 'L'
	case TagFreelist:
		return '%'
	case TagTemporary:
		return 'T'
	case TagDevice:
		return 'D'
	default:
		return '?'
	}
}

func (t Tag) String() string {
	switch t {
	case TagUnset:
		return "unset"
	case TagFreeBlock:
		return "freeblock"
	case TagFSInfo:
		return "fsinfo"
	case TagDirectory:
		return "directory"
	case TagFileInfo:
		return "fileinfo"
	case TagSegInfo:
		return "seginfo"
	case TagData:
		return "data"
	case TagSymlink:
		return "symlink"
	case TagFreelist:
		return "freelist"
	case TagTemporary:
		return "temporary"
	case TagDevice:
		return "device"
	default:
		return "invalid"
	}
}

// Field layout shared by every block: a two-byte tag and a two-byte
// inode id.
const (
	offTag = 0
	offID  = 2
	hdrCommon = 4
)

// FSINFO layout, byte-for-byte per the external interface.
const (
	fsinfoOffFSName       = 4
	fsinfoSizeFSName      = 10
	fsinfoOffVerMajor     = 14
	fsinfoOffVerMinor     = 16
	fsinfoOffVerRevision  = 18
	fsinfoOffAppName      = 20
	fsinfoSizeAppName     = 256
	fsinfoOffAppVersion   = 276
	fsinfoSizeAppVersion  = 32
	fsinfoOffAppDesc      = 308
	fsinfoSizeAppDesc     = 1024
	fsinfoOffAppAuthor    = 1332
	fsinfoSizeAppAuthor   = 256
	fsinfoOffPosRoot      = 1588
	fsinfoOffPosFreelist  = 1592
	fsinfoHeaderSize      = 1596

	// FSInfoID is the reserved inode id carried by the FSINFO block
	// itself, distinct from the root directory's id (0).
	FSInfoID = 0xFFFF
	// RootID is the fixed inode id of the root directory.
	RootID = 0
)

// DIRECTORY layout. The child table begins at dirHeaderSize and holds
// uint16 child ids, zero-terminated. The last four bytes of the block
// are reserved for a SEGINFO continuation position (zero if the
// inline table was never filled) -- this is how a directory whose
// child table fills a whole block chains to a SEGINFO.
const (
	dirOffParent     = 4
	dirOffName       = 6
	dirSizeName      = 64
	dirHeaderSize    = 70
	dirTableEntrySize = 2
	dirOffNext       = BSIZE - 4
)

// FILEINFO layout. HSizeFile is exactly this header size, shared
// with FREELIST so that the freelist bucket capacity formula resolves
// against a single named constant. The last four bytes of the block
// are reserved for a SEGINFO continuation position.
const (
	fileOffParent  = 4
	fileOffName    = 6
	fileSizeName   = 64
	fileOffLength  = 70
	HSizeFile      = 74
	fileTableEntrySize = 4
	fileOffNext    = BSIZE - 4
)

// SEGINFO layout. The owning file or directory's id and this
// segment's sequence index sit where a DIRECTORY/FILEINFO would carry
// parent+name; the table of positions follows immediately, and the
// last four bytes of the block chain to a further SEGINFO.
const (
	segOffOwnerID   = 4
	segOffSeqIndex  = 6
	segHeaderSize   = 8
	segTableEntrySize = 4
	segOffNext      = BSIZE - 4
)

// SYMLINK layout.
const (
	symOffParent   = 4
	symOffName     = 6
	symSizeName    = 64
	symOffTarget   = 70
	symSizeTarget  = 256
	symHeaderSize  = symOffTarget + symSizeTarget
)

// DEVICE layout. A supplemental block type following the same shape
// as SYMLINK so the engine can hold device-node inodes in directories
// without a special case in path resolution or the reachability walk.
const (
	devOffParent  = 4
	devOffName    = 6
	devSizeName   = 64
	devOffMajor   = 70
	devOffMinor   = 74
	devHeaderSize = 78
)

// FREELIST layout. Only the first hdrCommon+4 bytes are meaningful;
// the rest of the HSizeFile-byte header region is reserved so that
// the bucket's table capacity matches K = (BSIZE - HSIZE_FILE) / 4
// exactly.
const (
	flOffNext      = 4
	flHeaderSize   = HSizeFile
	flTableEntrySize = 4
)

// FreelistCapacity is the number of free-block positions a single
// FREELIST bucket can hold.
const FreelistCapacity = (BSIZE - HSizeFile) / 4

// FileTableCapacity is the number of DATA-block positions a FILEINFO
// header holds inline: one, so a file that needs a second DATA block
// continues its position table in a SEGINFO chain.
const FileTableCapacity = 1

// SegTableCapacity is the number of positions a single SEGINFO block
// can hold before chaining to a further SEGINFO.
const SegTableCapacity = (BSIZE - segHeaderSize - 4) / segTableEntrySize

// DirTableCapacity is the number of child ids a single DIRECTORY
// block can hold inline before a SEGINFO continuation is required.
const DirTableCapacity = (BSIZE - dirHeaderSize - 4) / dirTableEntrySize

// InlineFileCapacity is the number of payload bytes a freshly
// allocated file can hold using only its FILEINFO block (one DATA
// block addressed directly, no SEGINFO): BSIZE - HSizeFile.
const InlineFileCapacity = BSIZE - HSizeFile
