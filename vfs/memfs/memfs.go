package memfs

import (
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

// FS is a mutable in-memory tree with mount points.
//
// Relative paths are resolved from the root of the tree. Calls into backing
// stores happen with the tree lock held; a backing store must not call back
// into the tree that mounts it.
type FS struct {
	experimentalsys.UnimplementedFS

	root    *node
	nextIno uint64
	mu      sync.RWMutex
}

// New returns a tree holding only an empty root directory.
func New() *FS {
	f := &FS{}
	f.root = f.newNode("", fs.ModeDir|vfs.DirPerm)
	return f
}

// NewRoot returns a tree with the directories a WASI program commonly
// expects, and /dev/null.
func NewRoot() *FS {
	f := New()
	for _, dir := range []string{"bin", "dev", "etc", "tmp"} {
		f.root.children[dir] = f.newNode(dir, fs.ModeDir|vfs.DirPerm)
	}
	f.root.children["tmp"].mode |= fs.ModeSticky | 0o777

	null := f.newNode("null", fs.ModeDevice|fs.ModeCharDevice|0o666)
	null.device = deviceNull
	f.root.children["dev"].children["null"] = null
	return f
}

func (f *FS) String() string { return "memfs" }

func (f *FS) newNode(name string, mode fs.FileMode) *node {
	f.nextIno++
	now := time.Now().UnixNano()
	n := &node{name: name, mode: mode, ino: f.nextIno, atim: now, mtim: now, ctim: now}
	if mode.IsDir() {
		n.children = make(map[string]*node)
	}
	return n
}

// CanonicalizeUnchecked normalizes p into an absolute tree path without
// requiring it to exist. Relative input is taken from the root. ".."
// segments are resolved; climbing above the root and NUL bytes are rejected
// with EINVAL.
func (f *FS) CanonicalizeUnchecked(p string) (string, experimentalsys.Errno) {
	if p == "" || strings.IndexByte(p, 0) >= 0 {
		return "", experimentalsys.EINVAL
	}

	var parts []string
	for _, s := range strings.Split(p, "/") {
		switch s {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", experimentalsys.EINVAL
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, s)
		}
	}
	return vfs.Root + strings.Join(parts, "/"), 0
}

func (f *FS) locate(p string) (location, experimentalsys.Errno) {
	if strings.IndexByte(p, 0) >= 0 {
		return location{}, experimentalsys.EINVAL
	}

	parts := vfs.Split(path.Clean(vfs.Root + p))
	n := f.root
	var parent *node
	for i, name := range parts {
		if child, ok := n.children[name]; ok {
			parent, n = n, child
			continue
		}
		if n.mount != nil {
			return location{parent: n, mount: n.mount, name: parts[len(parts)-1], rest: parts[i:]}, 0
		}
		if !n.isDir() {
			return location{}, experimentalsys.ENOTDIR
		}
		if i == len(parts)-1 {
			return location{parent: n, name: name}, 0
		}
		return location{}, experimentalsys.ENOENT
	}

	name := ""
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return location{node: n, parent: parent, name: name}, 0
}

// target returns the backing store and path that hold the content of loc,
// if any. A mount point resolves to its base path.
func (l location) target() (experimentalsys.FS, string, bool) {
	if l.mount != nil {
		return l.backingFS(), l.backingPath(), true
	}
	if l.node != nil && l.node.mount != nil {
		return l.node.mount.backing.fs, l.node.mount.base, true
	}
	return nil, "", false
}

func (f *FS) OpenFile(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return nil, errno
	}
	if loc.delegated() {
		return loc.backingFS().OpenFile(loc.backingPath(), flag, perm)
	}

	n := loc.node
	if n != nil && n.mount != nil {
		return f.openMountPoint(n, flag, perm)
	}

	writable := flag&(experimentalsys.O_WRONLY|experimentalsys.O_RDWR) != 0

	if n == nil {
		if flag&experimentalsys.O_CREAT == 0 {
			return nil, experimentalsys.ENOENT
		}
		if flag&experimentalsys.O_DIRECTORY != 0 {
			return nil, experimentalsys.EINVAL
		}
		n = f.newNode(loc.name, perm.Perm())
		loc.parent.children[loc.name] = n
		loc.parent.mtim = n.mtim
	} else if flag&experimentalsys.O_CREAT != 0 && flag&experimentalsys.O_EXCL != 0 {
		return nil, experimentalsys.EEXIST
	}

	if n.isDir() {
		if writable {
			return nil, experimentalsys.EISDIR
		}
		return vfs.NewDirFile(n.stat(), listChildren(n)), 0
	}
	if flag&experimentalsys.O_DIRECTORY != 0 {
		return nil, experimentalsys.ENOTDIR
	}

	if flag&experimentalsys.O_TRUNC != 0 && writable && n.device == deviceNone {
		n.data = nil
		n.mtim = time.Now().UnixNano()
	}

	return &file{
		fs:       f,
		node:     n,
		readable: flag&experimentalsys.O_WRONLY == 0,
		writable: writable,
		append:   flag&experimentalsys.O_APPEND != 0,
	}, 0
}

// openMountPoint opens a mount point. Without nested mounts the backing store
// answers directly; otherwise its listing is merged with the nested names.
func (f *FS) openMountPoint(n *node, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	fsys, base := n.mount.backing.fs, n.mount.base
	if len(n.children) == 0 {
		return fsys.OpenFile(base, flag, perm)
	}

	st, errno := fsys.Stat(base)
	if errno != 0 {
		return nil, errno
	}
	if !st.Mode.IsDir() {
		return fsys.OpenFile(base, flag, perm)
	}
	if flag&(experimentalsys.O_WRONLY|experimentalsys.O_RDWR) != 0 {
		return nil, experimentalsys.EISDIR
	}

	entries, errno := vfs.ListDir(fsys, base)
	if errno != 0 {
		return nil, errno
	}
	merged := listChildren(n)
	seen := make(map[string]struct{}, len(merged))
	for _, e := range merged {
		seen[e.Name] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := seen[e.Name]; !ok {
			merged = append(merged, e)
		}
	}
	vfs.SortDirents(merged)
	return vfs.NewDirFile(st, merged), 0
}

func listChildren(n *node) []experimentalsys.Dirent {
	entries := make([]experimentalsys.Dirent, 0, len(n.children))
	for _, child := range n.children {
		entries = append(entries, child.dirent())
	}
	vfs.SortDirents(entries)
	return entries
}

func (f *FS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}
	if fsys, bp, ok := loc.target(); ok {
		return fsys.Stat(bp)
	}
	if loc.node == nil {
		return sys.Stat_t{}, experimentalsys.ENOENT
	}
	return loc.node.stat(), 0
}

func (f *FS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}
	if fsys, bp, ok := loc.target(); ok {
		return fsys.Lstat(bp)
	}
	if loc.node == nil {
		return sys.Stat_t{}, experimentalsys.ENOENT
	}
	return loc.node.stat(), 0
}

func (f *FS) Mkdir(p string, perm fs.FileMode) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return errno
	}
	if loc.delegated() {
		return loc.backingFS().Mkdir(loc.backingPath(), perm)
	}
	if loc.node != nil {
		return experimentalsys.EEXIST
	}

	n := f.newNode(loc.name, fs.ModeDir|perm.Perm())
	loc.parent.children[loc.name] = n
	loc.parent.mtim = n.mtim
	return 0
}

func (f *FS) Chmod(p string, perm fs.FileMode) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return errno
	}
	if fsys, bp, ok := loc.target(); ok {
		return fsys.Chmod(bp, perm)
	}
	if loc.node == nil {
		return experimentalsys.ENOENT
	}
	n := loc.node
	n.mode = n.mode&^fs.ModePerm | perm.Perm()
	n.ctim = time.Now().UnixNano()
	return 0
}

func (f *FS) Rmdir(p string) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return errno
	}
	if loc.delegated() {
		return loc.backingFS().Rmdir(loc.backingPath())
	}
	n := loc.node
	switch {
	case n == nil:
		return experimentalsys.ENOENT
	case n == f.root || n.mount != nil:
		return experimentalsys.EPERM
	case !n.isDir():
		return experimentalsys.ENOTDIR
	case len(n.children) > 0:
		return experimentalsys.ENOTEMPTY
	}
	f.detach(loc)
	return 0
}

func (f *FS) Unlink(p string) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return errno
	}
	if loc.delegated() {
		return loc.backingFS().Unlink(loc.backingPath())
	}
	n := loc.node
	switch {
	case n == nil:
		return experimentalsys.ENOENT
	case n.mount != nil:
		return experimentalsys.EPERM
	case n.isDir():
		return experimentalsys.EISDIR
	}
	f.detach(loc)
	return 0
}

func (f *FS) detach(loc location) {
	delete(loc.parent.children, loc.name)
	loc.parent.mtim = time.Now().UnixNano()
}

// Rename moves entries within the tree, or within a single backing store.
// Moving between stores, or moving a mount point, is not supported.
func (f *FS) Rename(from, to string) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, errno := f.locate(from)
	if errno != 0 {
		return errno
	}
	dst, errno := f.locate(to)
	if errno != 0 {
		return errno
	}

	if src.delegated() || dst.delegated() {
		if !src.delegated() || !dst.delegated() || src.mount.backing != dst.mount.backing {
			if src.node == nil && src.mount == nil {
				return experimentalsys.ENOENT
			}
			return experimentalsys.ENOTSUP
		}
		return src.backingFS().Rename(src.backingPath(), dst.backingPath())
	}

	n := src.node
	if n == nil {
		return experimentalsys.ENOENT
	}
	if n == f.root || dst.node == f.root || n.mount != nil || (dst.node != nil && dst.node.mount != nil) {
		return experimentalsys.EPERM
	}
	if n == dst.node {
		return 0
	}
	if n.isDir() && isAncestor(n, vfs.Split(path.Clean(vfs.Root+to)), f.root) {
		return experimentalsys.EINVAL
	}

	if existing := dst.node; existing != nil {
		switch {
		case n.isDir() && !existing.isDir():
			return experimentalsys.ENOTDIR
		case !n.isDir() && existing.isDir():
			return experimentalsys.EISDIR
		case existing.isDir() && len(existing.children) > 0:
			return experimentalsys.ENOTEMPTY
		}
	}

	delete(src.parent.children, src.name)
	n.name = dst.name
	dst.parent.children[dst.name] = n
	now := time.Now().UnixNano()
	src.parent.mtim, dst.parent.mtim, n.ctim = now, now, now
	return 0
}

// isAncestor reports whether n appears on the path parts walked from root.
func isAncestor(n *node, parts []string, root *node) bool {
	cur := root
	for _, name := range parts {
		child, ok := cur.children[name]
		if !ok {
			return false
		}
		if child == n {
			return true
		}
		cur = child
	}
	return false
}

func (f *FS) Link(oldPath, newPath string) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, errno := f.locate(oldPath)
	if errno != 0 {
		return errno
	}
	dst, errno := f.locate(newPath)
	if errno != 0 {
		return errno
	}
	if src.delegated() && dst.delegated() && src.mount.backing == dst.mount.backing {
		return src.backingFS().Link(src.backingPath(), dst.backingPath())
	}
	return experimentalsys.ENOSYS
}

func (f *FS) Symlink(oldPath, linkName string) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(linkName)
	if errno != 0 {
		return errno
	}
	if loc.delegated() {
		return loc.backingFS().Symlink(oldPath, loc.backingPath())
	}
	if loc.node != nil {
		return experimentalsys.EEXIST
	}
	return experimentalsys.ENOSYS
}

func (f *FS) Readlink(p string) (string, experimentalsys.Errno) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return "", errno
	}
	if fsys, bp, ok := loc.target(); ok {
		return fsys.Readlink(bp)
	}
	if loc.node == nil {
		return "", experimentalsys.ENOENT
	}
	return "", experimentalsys.EINVAL
}

func (f *FS) Utimens(p string, atim, mtim int64) experimentalsys.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, errno := f.locate(p)
	if errno != 0 {
		return errno
	}
	if fsys, bp, ok := loc.target(); ok {
		return fsys.Utimens(bp, atim, mtim)
	}
	if loc.node == nil {
		return experimentalsys.ENOENT
	}
	loc.node.setTimes(atim, mtim)
	return 0
}

func (n *node) setTimes(atim, mtim int64) {
	if atim != experimentalsys.UTIME_OMIT {
		n.atim = atim
	}
	if mtim != experimentalsys.UTIME_OMIT {
		n.mtim = mtim
	}
	n.ctim = time.Now().UnixNano()
}
