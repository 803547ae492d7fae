// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package image

import "errors"

// Error kinds the engine returns. These are sentinels: callers use
// errors.Is, never type assertion, since every returned error is
// wrapped with call-site context via fmt.Errorf("...: %w", ...).
var (
	// ErrEOF: a positioned read went past end-of-file.
	ErrEOF = errors.New("image: end of file")
	// ErrIO: the underlying block stream failed a read or write.
	ErrIO = errors.New("image: I/O failure")
	// ErrNotFound: inode id or path component not present.
	ErrNotFound = errors.New("image: not found")
	// ErrNotADirectory: intermediate path component is not a DIRECTORY.
	ErrNotADirectory = errors.New("image: not a directory")
	// ErrMalformed: a block has an unknown tag or self-inconsistent fields.
	ErrMalformed = errors.New("image: malformed block")
	// ErrOutOfSpace: cannot extend the image.
	ErrOutOfSpace = errors.New("image: out of space")
	// ErrLoop: symbolic-link cycle exceeded.
	ErrLoop = errors.New("image: symlink loop")
	// ErrBusy: reset of a block referenced by a live inode.
	ErrBusy = errors.New("image: block is busy")
	// ErrNameTooLong: a name or path component exceeds its on-disk field size.
	ErrNameTooLong = errors.New("image: name too long")
	// ErrClosed: the engine's device is not open.
	ErrClosed = errors.New("image: engine not open")
)
