// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import "github.com/pkgfs/pkgfs/wire"

// AuditReport is the result of a reachability walk: the sets of
// header and data block positions reachable from pos_root.
type AuditReport struct {
	HeaderBlocks map[int64]bool
	DataBlocks   map[int64]bool
}

// Live reports whether pos belongs to the union of the header and
// data sets.
func (r *AuditReport) Live(pos int64) bool {
	return r.HeaderBlocks[pos] || r.DataBlocks[pos]
}

// Audit computes the reachability sets starting from pos_root: header
// blocks (DIRECTORY, FILEINFO, SEGINFO, SYMLINK, DEVICE) reached
// through directory child tables and FILEINFO/SEGINFO chains, and
// data blocks (DATA) listed in the index tables of reached
// FILEINFO/SEGINFO blocks.
func (e *Engine) Audit() (*AuditReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audit()
}

func (e *Engine) audit() (*AuditReport, error) {
	report := &AuditReport{
		HeaderBlocks: make(map[int64]bool),
		DataBlocks:   make(map[int64]bool),
	}
	if err := e.walkDirectory(e.posRoot, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Engine) walkDirectory(pos int64, report *AuditReport) error {
	if report.HeaderBlocks[pos] {
		return nil
	}
	report.HeaderBlocks[pos] = true

	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	if decodeTag(buf) != TagDirectory {
		return nil
	}

	childIDs, err := e.readDirectoryChildren(pos)
	if err != nil {
		return err
	}
	if err := e.walkDirectorySegChain(pos, report); err != nil {
		return err
	}

	for _, id := range childIDs {
		childPos, err := e.getInodePositionByID(id)
		if err != nil {
			continue // unresolvable child id: skipped, neither walked nor reported
		}
		childBuf, err := e.readRaw(childPos)
		if err != nil {
			return err
		}
		switch decodeTag(childBuf) {
		case TagDirectory:
			if err := e.walkDirectory(childPos, report); err != nil {
				return err
			}
		case TagFileInfo:
			if err := e.walkFile(childPos, report); err != nil {
				return err
			}
		case TagSymlink, TagDevice:
			report.HeaderBlocks[childPos] = true
		}
	}
	return nil
}

// walkDirectorySegChain marks any SEGINFO blocks continuing a
// directory's child table as header blocks.
func (e *Engine) walkDirectorySegChain(dirPos int64, report *AuditReport) error {
	buf, err := e.readRaw(dirPos)
	if err != nil {
		return err
	}
	next := directoryNext(buf)
	for next != 0 {
		if report.HeaderBlocks[next] {
			return nil
		}
		report.HeaderBlocks[next] = true
		segBuf, err := e.readRaw(next)
		if err != nil {
			return err
		}
		if decodeTag(segBuf) != TagSegInfo {
			return nil
		}
		next = segNext(segBuf)
	}
	return nil
}

func (e *Engine) walkFile(pos int64, report *AuditReport) error {
	if report.HeaderBlocks[pos] {
		return nil
	}
	report.HeaderBlocks[pos] = true

	positions, err := e.readDataPositions(pos)
	if err != nil {
		return err
	}
	for _, dp := range positions {
		report.DataBlocks[dp] = true
	}

	buf, err := e.readRaw(pos)
	if err != nil {
		return err
	}
	next := fileNext(buf)
	for next != 0 {
		if report.HeaderBlocks[next] {
			return nil
		}
		report.HeaderBlocks[next] = true
		segBuf, err := e.readRaw(next)
		if err != nil {
			return err
		}
		if decodeTag(segBuf) != TagSegInfo {
			return nil
		}
		next = segNext(segBuf)
	}
	return nil
}

// RepairCounters tallies the outcome of a repair pass, one counter
// per reclaim class plus a failure count.
type RepairCounters struct {
	CleanedTemporary int
	CleanedInvalid   int
	CleanedFiles     int
	CleanedDirectory int
	Orphaned         int // SEGINFO/DATA outside the live set, reported but not reclaimed
	Failed           int
}

// Repair performs the reachability walk, then linearly scans every
// block from BSIZE to end-of-file, reclaiming non-free blocks outside
// the live set whose tag is one of {TEMPORARY, INVALID, FILEINFO,
// DIRECTORY}. SEGINFO and DATA blocks outside the live set are counted
// as orphaned but left untouched; blocks of any other type outside the
// live set are left untouched and not counted.
func (e *Engine) Repair() (*RepairCounters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repair()
}

func (e *Engine) repair() (*RepairCounters, error) {
	report, err := e.audit()
	if err != nil {
		return nil, err
	}

	counters := &RepairCounters{}
	size := e.dev.Size()
	for pos := int64(BSIZE); pos < size; pos += BSIZE {
		buf, err := e.readRaw(pos)
		if err != nil {
			counters.Failed++
			continue
		}
		tag := decodeTag(buf)
		if tag == TagFreeBlock {
			continue
		}
		if report.Live(pos) {
			continue
		}

		switch tag {
		case TagTemporary:
			if err := e.resetBlock(pos); err != nil {
				counters.Failed++
				continue
			}
			counters.CleanedTemporary++
		case TagInvalid:
			if err := e.resetBlock(pos); err != nil {
				counters.Failed++
				continue
			}
			counters.CleanedInvalid++
		case TagFileInfo:
			if err := e.resetBlock(pos); err != nil {
				counters.Failed++
				continue
			}
			counters.CleanedFiles++
		case TagDirectory:
			if err := e.resetBlock(pos); err != nil {
				counters.Failed++
				continue
			}
			counters.CleanedDirectory++
		case TagSegInfo, TagData:
			counters.Orphaned++
		}
	}
	return counters, nil
}

func directoryNext(buf []byte) int64 {
	if decodeTag(buf) != TagDirectory {
		return 0
	}
	return int64(wire.Uint32(buf, dirOffNext))
}

func fileNext(buf []byte) int64 {
	if decodeTag(buf) != TagFileInfo {
		return 0
	}
	return int64(wire.Uint32(buf, fileOffNext))
}

func segNext(buf []byte) int64 {
	if decodeTag(buf) != TagSegInfo {
		return 0
	}
	return int64(wire.Uint32(buf, segOffNext))
}
