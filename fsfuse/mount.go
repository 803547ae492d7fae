// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package fsfuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/pkgfs/pkgfs/image"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Engine is the already-open image engine this mount serves.
	Engine *image.Engine

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf. pkgfs-mount
	// sets it from its command line; the sandboxed launcher (pkgfs-run)
	// leaves it off.
	AllowOther bool

	// Debug enables go-fuse's own request-level trace logging.
	Debug bool

	// EntryTimeout, AttrTimeout, and NegativeTimeout default to one
	// second, one second, and 100 milliseconds respectively when
	// zero. The image never changes out from under the mount except
	// through this same process, so these can be generous.
	EntryTimeout    time.Duration
	AttrTimeout     time.Duration
	NegativeTimeout time.Duration

	// Logger receives diagnostic messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Mount mounts the pkgfs image filesystem at the configured
// mountpoint. The caller must call Unmount on the returned Server when
// done. The mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if options.EntryTimeout == 0 {
		options.EntryTimeout = time.Second
	}
	if options.AttrTimeout == 0 {
		options.AttrTimeout = time.Second
	}
	if options.NegativeTimeout == 0 {
		options.NegativeTimeout = 100 * time.Millisecond
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root, err := newInodeNode(options.Engine, image.RootID, &options)
	if err != nil {
		return nil, fmt.Errorf("resolving root inode: %w", err)
	}

	entryTimeout := options.EntryTimeout
	attrTimeout := options.AttrTimeout
	negativeTimeout := options.NegativeTimeout

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "pkgfs",
			Name:       "pkgfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("pkgfs image mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// node is a FUSE inode backed by one pkgfs inode. Directories and
// files share a node type because go-fuse dispatches by the
// interfaces implemented, and a pkgfs DIRECTORY/FILEINFO/SYMLINK/
// DEVICE distinction maps onto a single go-fuse Inode tree node with
// mode-dependent behavior.
type node struct {
	gofuse.Inode
	engine  *image.Engine
	id      uint16
	options *Options
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeReader    = (*node)(nil)
	_ gofuse.NodeWriter    = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeSymlinker = (*node)(nil)
	_ gofuse.NodeReadlinker = (*node)(nil)
)

func newInodeNode(e *image.Engine, id uint16, options *Options) (*node, error) {
	if _, err := e.GetInodeByID(id); err != nil {
		return nil, err
	}
	return &node{engine: e, id: id, options: options}, nil
}

func modeOf(n *image.INode) uint32 {
	switch n.Tag {
	case image.TagDirectory:
		return syscall.S_IFDIR | 0o755
	case image.TagSymlink:
		return syscall.S_IFLNK | 0o777
	case image.TagDevice:
		return syscall.S_IFCHR | 0o644
	default:
		return syscall.S_IFREG | 0o644
	}
}

func (n *node) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	inode, err := n.engine.GetInodeByID(n.id)
	if err != nil {
		return toErrno(err)
	}
	out.Mode = modeOf(inode)
	out.Size = uint64(inode.FileLength)
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = image.BSIZE
	if inode.Tag == image.TagDevice {
		out.Rdev = uint32(inode.DevMajor)<<8 | uint32(inode.DevMinor)
	}
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	children, err := n.engine.GetChildrenOfDirectory(n.id)
	if err != nil {
		return nil, toErrno(err)
	}
	for _, c := range children {
		if c.Name != name {
			continue
		}
		out.Mode = modeOf(c)
		out.Size = uint64(c.FileLength)
		child := &node{engine: n.engine, id: c.ID, options: n.options}
		return n.NewInode(ctx, child, gofuse.StableAttr{Mode: modeOf(c) & syscall.S_IFMT}), 0
	}
	return nil, syscall.ENOENT
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	children, err := n.engine.GetChildrenOfDirectory(n.id)
	if err != nil {
		return nil, toErrno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, fuse.DirEntry{
			Name: c.Name,
			Mode: modeOf(c),
		})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (n *node) Open(_ context.Context, _ uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(_ context.Context, _ gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.engine.ReadFileData(n.id, off, len(dest))
	if err != nil && !errors.Is(err, image.ErrEOF) {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *node) Write(_ context.Context, _ gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if err := n.engine.WriteFileData(n.id, off, data); err != nil {
		return 0, toErrno(err)
	}
	return uint32(len(data)), 0
}

func (n *node) Create(ctx context.Context, name string, _ uint32, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	created, err := n.engine.CreateFile(n.id, name)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	out.Mode = modeOf(created)
	child := &node{engine: n.engine, id: created.ID, options: n.options}
	return n.NewInode(ctx, child, gofuse.StableAttr{Mode: syscall.S_IFREG}), nil, 0, 0
}

func (n *node) Mkdir(ctx context.Context, name string, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	created, err := n.engine.CreateDirectory(n.id, name)
	if err != nil {
		return nil, toErrno(err)
	}
	out.Mode = modeOf(created)
	child := &node{engine: n.engine, id: created.ID, options: n.options}
	return n.NewInode(ctx, child, gofuse.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	created, err := n.engine.CreateSymlink(n.id, name, target)
	if err != nil {
		return nil, toErrno(err)
	}
	out.Mode = modeOf(created)
	child := &node{engine: n.engine, id: created.ID, options: n.options}
	return n.NewInode(ctx, child, gofuse.StableAttr{Mode: syscall.S_IFLNK}), 0
}

func (n *node) Readlink(_ context.Context) ([]byte, syscall.Errno) {
	inode, err := n.engine.GetInodeByID(n.id)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(inode.Target), 0
}

func (n *node) Unlink(_ context.Context, name string) syscall.Errno {
	return n.removeChild(name)
}

func (n *node) Rmdir(_ context.Context, name string) syscall.Errno {
	return n.removeChild(name)
}

func (n *node) removeChild(name string) syscall.Errno {
	children, err := n.engine.GetChildrenOfDirectory(n.id)
	if err != nil {
		return toErrno(err)
	}
	for _, c := range children {
		if c.Name != name {
			continue
		}
		if err := n.engine.UnlinkChild(n.id, c.ID); err != nil {
			return toErrno(err)
		}
		pos, err := n.engine.GetInodePositionByID(c.ID)
		if err == nil {
			if err := n.engine.ResetBlock(pos); err != nil {
				return toErrno(err)
			}
		}
		return 0
	}
	return syscall.ENOENT
}

func toErrno(err error) syscall.Errno {
	switch {
	case errors.Is(err, image.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, image.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, image.ErrLoop):
		return syscall.ELOOP
	case errors.Is(err, image.ErrOutOfSpace):
		return syscall.ENOSPC
	case errors.Is(err, image.ErrBusy):
		return syscall.EBUSY
	case errors.Is(err, image.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, image.ErrMalformed):
		return syscall.EIO
	default:
		return syscall.EIO
	}
}
