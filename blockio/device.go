// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package blockio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BSIZE is the fixed block size of a packaged application filesystem
// image, in bytes. The spec treats this as a constant of the format,
// not a per-image parameter.
const BSIZE = 4096

// Sentinel errors surfaced by Device. image.Engine wraps these into
// its own error taxonomy; callers outside this module should not
// compare against these directly.
var (
	// ErrEOF is returned when a read would go past the current end of
	// the image.
	ErrEOF = errors.New("blockio: read past end of file")
	// ErrClosed is returned by any operation on a Device that has been
	// closed or never opened.
	ErrClosed = errors.New("blockio: device not open")
)

// Device is a positioned, block-size-aware view over an image file.
// It is single-owner: exactly one image.Engine holds a Device at a
// time. Reads are served from a read-only memory mapping; writes go
// through pwrite so the mapping is never dirtied directly, mirroring
// how a read-mostly cache file is served elsewhere in this codebase.
type Device struct {
	file *os.File
	data []byte // read-only mmap of the current file contents, nil if size == 0
	size int64
	eof  bool
}

// Open opens an existing image file for read/write. It fails if the
// file cannot be opened, or is shorter than one block.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("blockio: opening %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("blockio: stat %s: %w", path, err)
	}
	if info.Size() < BSIZE {
		file.Close()
		return nil, fmt.Errorf("blockio: %s is %d bytes, shorter than one block (%d)", path, info.Size(), BSIZE)
	}

	d := &Device{file: file}
	if err := d.remap(info.Size()); err != nil {
		file.Close()
		return nil, err
	}
	return d, nil
}

// Create creates a new, empty image file at path, truncating any
// existing file. The returned Device has size 0; the first Write
// extends it to a block boundary.
func Create(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockio: creating %s: %w", path, err)
	}
	return &Device{file: file}, nil
}

// IsOpen reports whether the device has a live backing file.
func (d *Device) IsOpen() bool {
	return d != nil && d.file != nil
}

// remap replaces the read-only mapping to cover exactly newSize
// bytes. newSize must already be known to match the file's length.
func (d *Device) remap(newSize int64) error {
	if d.data != nil {
		if err := unix.Munmap(d.data); err != nil {
			return fmt.Errorf("blockio: munmap: %w", err)
		}
		d.data = nil
	}
	d.size = newSize
	if newSize == 0 {
		return nil
	}
	data, err := unix.Mmap(int(d.file.Fd()), 0, int(newSize), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("blockio: mmap: %w", err)
	}
	d.data = data
	return nil
}

// Size returns the current image length in bytes.
func (d *Device) Size() int64 {
	if !d.IsOpen() {
		return 0
	}
	return d.size
}

// Clear resets any latched end-of-stream state so subsequent reads
// may re-attempt. Mirrors the reachability walk's use of clear()
// after it runs off the end of the image.
func (d *Device) Clear() {
	d.eof = false
}

// Read reads exactly n bytes starting at pos. Reading past the end of
// the image fails with ErrEOF.
func (d *Device) Read(pos int64, n int) ([]byte, error) {
	if !d.IsOpen() {
		return nil, ErrClosed
	}
	if pos < 0 || n < 0 {
		return nil, fmt.Errorf("blockio: negative read pos=%d n=%d", pos, n)
	}
	if pos+int64(n) > d.size {
		d.eof = true
		return nil, ErrEOF
	}
	out := make([]byte, n)
	copy(out, d.data[pos:pos+int64(n)])
	return out, nil
}

// Write writes bytes at pos, extending the file if needed. A write
// that would cross the current end of file extends the file to the
// next block boundary, zero-filling the remainder, before the
// requested bytes are written. Writes never leave a partial trailing
// block.
func (d *Device) Write(pos int64, bytes []byte) error {
	if !d.IsOpen() {
		return ErrClosed
	}
	if pos < 0 {
		return fmt.Errorf("blockio: negative write pos=%d", pos)
	}

	end := pos + int64(len(bytes))
	if end > d.size {
		newSize := roundUpToBlock(end)
		if err := d.file.Truncate(newSize); err != nil {
			return fmt.Errorf("blockio: extending to %d bytes: %w", newSize, err)
		}
		if err := d.remap(newSize); err != nil {
			return err
		}
	}

	if len(bytes) > 0 {
		if _, err := unix.Pwrite(int(d.file.Fd()), bytes, pos); err != nil {
			return fmt.Errorf("blockio: pwrite at %d: %w", pos, err)
		}
		// The mapping may be stale after a pwrite that lands within an
		// already-mapped region; the kernel keeps MAP_SHARED pages
		// coherent with the underlying file, so no remap is needed
		// here -- only the size-changing path above remaps.
	}
	return nil
}

// Sync flushes any buffered writes to stable storage.
func (d *Device) Sync() error {
	if !d.IsOpen() {
		return ErrClosed
	}
	return d.file.Sync()
}

// Close unmaps and closes the backing file.
func (d *Device) Close() error {
	if !d.IsOpen() {
		return nil
	}
	var err error
	if d.data != nil {
		err = unix.Munmap(d.data)
		d.data = nil
	}
	if cerr := d.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	d.file = nil
	return err
}

func roundUpToBlock(n int64) int64 {
	if n%BSIZE == 0 {
		return n
	}
	return (n/BSIZE + 1) * BSIZE
}
