// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"github.com/pkgfs/pkgfs/blockio"
	"github.com/pkgfs/pkgfs/wire"
)

// FSName is the fixed filesystem identifier stamped into every image
// created by this engine.
const FSName = "pkgfsimg"

// FormatVersion is the on-disk format version written into every
// newly created image.
var FormatVersion = [3]uint16{1, 0, 0}

// CreateImage writes a fresh image at path: a single FSINFO block at
// offset 0, an empty root DIRECTORY at offset BSIZE, and a freshly
// allocated empty FREELIST bucket at offset 2*BSIZE -- a 3-block file
// with pos_root == BSIZE and pos_freelist == 2*BSIZE.
func CreateImage(path, appName, appVersion, description, author string) (*Engine, error) {
	dev, err := blockio.Create(path)
	if err != nil {
		return nil, translateIOErr(err)
	}

	e := &Engine{dev: dev, idmap: make(map[uint16]int64), nextID: 1}

	const posRoot = BSIZE
	const posFreelist = 2 * BSIZE

	fsinfo := make([]byte, BSIZE)
	wire.PutUint16(fsinfo, offTag, uint16(TagFSInfo))
	wire.PutUint16(fsinfo, offID, FSInfoID)
	if err := wire.PutString(fsinfo, fsinfoOffFSName, fsinfoSizeFSName, FSName); err != nil {
		dev.Close()
		return nil, err
	}
	wire.PutUint16(fsinfo, fsinfoOffVerMajor, FormatVersion[0])
	wire.PutUint16(fsinfo, fsinfoOffVerMinor, FormatVersion[1])
	wire.PutUint16(fsinfo, fsinfoOffVerRevision, FormatVersion[2])
	if err := putFSInfoStrings(fsinfo, appName, appVersion, description, author); err != nil {
		dev.Close()
		return nil, err
	}
	wire.PutUint32(fsinfo, fsinfoOffPosRoot, posRoot)
	wire.PutUint32(fsinfo, fsinfoOffPosFreelist, posFreelist)
	if err := e.writeRaw(OffsetFSInfo, fsinfo); err != nil {
		dev.Close()
		return nil, err
	}

	root := make([]byte, BSIZE)
	wire.PutUint16(root, offTag, uint16(TagDirectory))
	wire.PutUint16(root, offID, RootID)
	wire.PutUint16(root, dirOffParent, RootID)
	if err := wire.PutString(root, dirOffName, dirSizeName, "/"); err != nil {
		dev.Close()
		return nil, err
	}
	if err := e.writeRaw(posRoot, root); err != nil {
		dev.Close()
		return nil, err
	}

	bucket := make([]byte, BSIZE)
	wire.PutUint16(bucket, offTag, uint16(TagFreelist))
	wire.PutUint32(bucket, flOffNext, 0)
	if err := e.writeRaw(posFreelist, bucket); err != nil {
		dev.Close()
		return nil, err
	}

	e.posRoot = posRoot
	e.posFreelist = posFreelist
	e.idmap[RootID] = posRoot
	e.nextID = 1

	return e, nil
}

func putFSInfoStrings(buf []byte, appName, appVersion, description, author string) error {
	if err := wire.PutString(buf, fsinfoOffAppName, fsinfoSizeAppName, appName); err != nil {
		return fmt.Errorf("application name: %w", ErrNameTooLong)
	}
	if err := wire.PutString(buf, fsinfoOffAppVersion, fsinfoSizeAppVersion, appVersion); err != nil {
		return fmt.Errorf("application version: %w", ErrNameTooLong)
	}
	if err := wire.PutString(buf, fsinfoOffAppDesc, fsinfoSizeAppDesc, description); err != nil {
		return fmt.Errorf("application description: %w", ErrNameTooLong)
	}
	if err := wire.PutString(buf, fsinfoOffAppAuthor, fsinfoSizeAppAuthor, author); err != nil {
		return fmt.Errorf("application author: %w", ErrNameTooLong)
	}
	return nil
}
