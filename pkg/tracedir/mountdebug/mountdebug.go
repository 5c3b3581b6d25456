// Package mountdebug exposes a trace directory's memory dumps (pkg/memdump)
// as a read-only FUSE filesystem, one directory per dump with one file per
// captured region, for browsing with ordinary tools (cat, grep, a hex
// editor) instead of writing a bespoke dump reader.
//
// It is adapted from the teacher's pkg/fs: the same fs.Inode-embedding
// node/mount shape, generalized from a writable SQLite-backed tree (every
// Node method round-tripping through pkg/db) to a read-only, fully
// in-memory one built once at mount time from the dumps already on disk.
package mountdebug

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"retrace/pkg/memdump"
)

// node is one entry in the static tree: either a directory (children set)
// or a regular file (data set).
type node struct {
	fs.Inode
	children map[string]*node
	data     []byte
}

var (
	_ fs.InodeEmbedder = (*node)(nil)
	_ fs.NodeOnAdder    = (*node)(nil)
	_ fs.NodeGetattrer  = (*node)(nil)
	_ fs.NodeOpener     = (*node)(nil)
	_ fs.NodeReader     = (*node)(nil)
)

func dir() *node  { return &node{children: map[string]*node{}} }
func file(b []byte) *node { return &node{data: b} }

// OnAdd builds the full tree once, the moment the root is attached to the
// mount -- there is no lazy Lookup here because the dump set is fixed for
// the lifetime of the mount (new dumps never appear mid-session; a dump
// file is only ever written once, at record time).
func (n *node) OnAdd(ctx context.Context) {
	for name, child := range n.children {
		mode := uint32(syscall.S_IFDIR | 0o555)
		if child.children == nil {
			mode = syscall.S_IFREG | 0o444
		}
		inode := n.NewPersistentInode(ctx, child, fs.StableAttr{Mode: mode})
		n.AddChild(name, inode, true)
	}
}

func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.children != nil {
		out.Mode = syscall.S_IFDIR | 0o555
	} else {
		out.Mode = syscall.S_IFREG | 0o444
		out.Size = uint64(len(n.data))
	}
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(n.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(n.data)) {
		end = int64(len(n.data))
	}
	return fuse.ReadResultData(n.data[off:end]), 0
}

// Mount builds the tree from every memdump-<seq> file under traceDirRoot
// and mounts it read-only at mountPoint. The caller must Unmount the
// returned server when done.
func Mount(traceDirRoot, mountPoint string) (*fuse.Server, error) {
	root, err := buildTree(traceDirRoot)
	if err != nil {
		return nil, err
	}

	timeout := time.Second
	server, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: false,
			FsName:     "retrace-memdump",
			Name:       "retrace-memdump",
		},
		AttrTimeout:  &timeout,
		EntryTimeout: &timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mountdebug: mount %s: %w", mountPoint, err)
	}
	return server, nil
}

func buildTree(traceDirRoot string) (*node, error) {
	matches, err := filepath.Glob(filepath.Join(traceDirRoot, "memdump-*"))
	if err != nil {
		return nil, fmt.Errorf("mountdebug: glob %s: %w", traceDirRoot, err)
	}
	sort.Strings(matches)

	root := dir()
	for _, path := range matches {
		seq := strings.TrimPrefix(filepath.Base(path), "memdump-")
		if _, err := strconv.Atoi(seq); err != nil {
			continue
		}

		regions, err := memdump.ReadDump(path)
		if err != nil {
			return nil, fmt.Errorf("mountdebug: read %s: %w", path, err)
		}

		dumpDir := dir()
		for i, r := range regions {
			name := fmt.Sprintf("region-%03d-%08x-%08x", i, r.Start, r.End)
			dumpDir.children[name] = file(r.Data)
		}
		root.children["memdump-"+seq] = dumpDir
	}
	return root, nil
}
