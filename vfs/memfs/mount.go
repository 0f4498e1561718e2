package memfs

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

// Mount binds guest to base inside fsys. The parent of guest must already
// exist. Mounting over an existing entry replaces it; mount points already
// nested below that entry stay in place and keep shadowing the new backing.
//
// The root cannot be mounted over; use MountDirectoryEntries.
func (f *FS) Mount(guest string, fsys experimentalsys.FS, base string) experimentalsys.Errno {
	return f.mount(guest, &backing{fs: fsys}, base)
}

// MountDirectoryEntries merges the entries of dir inside fsys into the
// directory target of the tree. Every entry becomes its own mount point;
// no mount is installed at target itself.
func (f *FS) MountDirectoryEntries(target string, fsys experimentalsys.FS, dir string) experimentalsys.Errno {
	entries, errno := vfs.ListDir(fsys, dir)
	if errno != 0 {
		return errno
	}

	if st, errno := f.Stat(target); errno != 0 {
		return errno
	} else if !st.Mode.IsDir() {
		return experimentalsys.ENOTDIR
	}

	b := &backing{fs: fsys}
	for _, e := range entries {
		if errno := f.mount(path.Join(target, e.Name), b, path.Join(dir, e.Name)); errno != 0 {
			return errno
		}
	}
	return 0
}

func (f *FS) mount(guest string, b *backing, base string) experimentalsys.Errno {
	parts := vfs.Split(path.Clean(vfs.Root + guest))
	if len(parts) == 0 {
		return experimentalsys.EINVAL
	}

	mode := fs.ModeDir | vfs.DirPerm
	if st, errno := b.fs.Stat(base); errno == 0 {
		mode = st.Mode
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parent, errno := f.walkForMount(parts[:len(parts)-1])
	if errno != 0 {
		return errno
	}

	name := parts[len(parts)-1]
	n := f.newNode(name, mode)
	n.children = nil
	if existing, ok := parent.children[name]; ok {
		n.children = existing.children
		n.ino = existing.ino
	}
	n.mount = &mount{backing: b, base: base}
	if parent.children == nil {
		parent.children = make(map[string]*node)
	}
	parent.children[name] = n
	return 0
}

// walkForMount returns the in-memory node for parts. Directories that only
// exist inside a backing store get an implicit node bound to the same store,
// so a nested mount can be hung below them.
func (f *FS) walkForMount(parts []string) (*node, experimentalsys.Errno) {
	n := f.root
	for _, name := range parts {
		if child, ok := n.children[name]; ok {
			if child.mount == nil && !child.isDir() {
				return nil, experimentalsys.ENOTDIR
			}
			n = child
			continue
		}
		if n.mount == nil {
			if !n.isDir() {
				return nil, experimentalsys.ENOTDIR
			}
			return nil, experimentalsys.ENOENT
		}

		base := n.mount.path([]string{name})
		st, errno := n.mount.backing.fs.Stat(base)
		if errno != 0 {
			return nil, errno
		}
		if !st.Mode.IsDir() {
			return nil, experimentalsys.ENOTDIR
		}
		child := f.newNode(name, st.Mode)
		child.children = nil
		child.mount = &mount{backing: n.mount.backing, base: base}
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		n.children[name] = child
		n = child
	}
	return n, 0
}
