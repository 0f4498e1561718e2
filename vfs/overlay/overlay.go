// Package overlay layers read-only filesystems below a writable one.
//
// Lookups are answered by the primary layer and fall through to the
// secondaries, in order, only when the primary reports ENOENT. Writes always
// land in the primary: a file that only exists below is copied up before it
// is opened for writing, and missing parent directories are recreated in the
// primary. Entries that only exist in a secondary cannot be removed, renamed
// or changed in place; those calls fail with EROFS.
//
// There are no whiteouts. Removing an entry from the primary uncovers a
// secondary entry with the same name.
package overlay

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

const writeFlags = experimentalsys.O_WRONLY | experimentalsys.O_RDWR | experimentalsys.O_CREAT |
	experimentalsys.O_TRUNC | experimentalsys.O_APPEND

// FS is a writable primary layer over read-only secondaries.
type FS struct {
	experimentalsys.UnimplementedFS

	primary     experimentalsys.FS
	secondaries []experimentalsys.FS
}

// New layers secondaries below primary. Earlier secondaries take precedence.
func New(primary experimentalsys.FS, secondaries ...experimentalsys.FS) *FS {
	return &FS{primary: primary, secondaries: secondaries}
}

// Primary returns the writable layer.
func (o *FS) Primary() experimentalsys.FS { return o.primary }

// Secondaries returns the read-only layers, highest precedence first.
func (o *FS) Secondaries() []experimentalsys.FS { return o.secondaries }

func (o *FS) String() string { return "overlay" }

func (o *FS) layers() []experimentalsys.FS {
	return append([]experimentalsys.FS{o.primary}, o.secondaries...)
}

// lookup runs op against each layer until one answers with anything other
// than ENOENT.
func lookup[T any](o *FS, op func(experimentalsys.FS) (T, experimentalsys.Errno)) (T, experimentalsys.Errno) {
	var (
		v     T
		errno experimentalsys.Errno
	)
	for _, layer := range o.layers() {
		v, errno = op(layer)
		if errno != experimentalsys.ENOENT {
			return v, errno
		}
	}
	return v, errno
}

func (o *FS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return lookup(o, func(l experimentalsys.FS) (sys.Stat_t, experimentalsys.Errno) { return l.Stat(p) })
}

func (o *FS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return lookup(o, func(l experimentalsys.FS) (sys.Stat_t, experimentalsys.Errno) { return l.Lstat(p) })
}

func (o *FS) Readlink(p string) (string, experimentalsys.Errno) {
	return lookup(o, func(l experimentalsys.FS) (string, experimentalsys.Errno) { return l.Readlink(p) })
}

// lower returns the highest secondary holding p, or nil.
func (o *FS) lower(p string) (experimentalsys.FS, sys.Stat_t) {
	for _, layer := range o.secondaries {
		if st, errno := layer.Lstat(p); errno == 0 {
			return layer, st
		}
	}
	return nil, sys.Stat_t{}
}

func (o *FS) OpenFile(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	if flag&writeFlags != 0 {
		return o.openWrite(p, flag, perm)
	}

	var dirs []experimentalsys.FS
	var first sys.Stat_t
	for _, layer := range o.layers() {
		st, errno := layer.Stat(p)
		if errno == experimentalsys.ENOENT {
			continue
		}
		if errno != 0 {
			return nil, errno
		}
		if !st.Mode.IsDir() {
			if len(dirs) == 0 {
				return layer.OpenFile(p, flag, perm)
			}
			// A file is shadowed by the directory above it.
			continue
		}
		if len(dirs) == 0 {
			first = st
		}
		dirs = append(dirs, layer)
	}

	switch len(dirs) {
	case 0:
		return nil, experimentalsys.ENOENT
	case 1:
		return dirs[0].OpenFile(p, flag, perm)
	}
	return mergeDirs(dirs, p, first)
}

func mergeDirs(dirs []experimentalsys.FS, p string, st sys.Stat_t) (experimentalsys.File, experimentalsys.Errno) {
	seen := make(map[string]struct{})
	var merged []experimentalsys.Dirent
	for _, layer := range dirs {
		entries, errno := vfs.ListDir(layer, p)
		if errno != 0 {
			return nil, errno
		}
		for _, e := range entries {
			if _, ok := seen[e.Name]; ok {
				continue
			}
			seen[e.Name] = struct{}{}
			merged = append(merged, e)
		}
	}
	vfs.SortDirents(merged)
	return vfs.NewDirFile(st, merged), 0
}

func (o *FS) openWrite(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	_, errno := o.primary.Lstat(p)
	switch {
	case errno == 0:
		return o.primary.OpenFile(p, flag, perm)
	case errno != experimentalsys.ENOENT:
		return nil, errno
	}

	if layer, st := o.lower(p); layer != nil {
		if flag&experimentalsys.O_CREAT != 0 && flag&experimentalsys.O_EXCL != 0 {
			return nil, experimentalsys.EEXIST
		}
		if st.Mode.IsDir() {
			return nil, experimentalsys.EISDIR
		}
		if errno := o.copyUp(layer, p, flag&experimentalsys.O_TRUNC != 0); errno != 0 {
			return nil, errno
		}
		return o.primary.OpenFile(p, flag&^experimentalsys.O_EXCL, perm)
	}

	if flag&experimentalsys.O_CREAT != 0 {
		if errno := o.prepareParent(p); errno != 0 {
			return nil, errno
		}
	}
	return o.primary.OpenFile(p, flag, perm)
}

func (o *FS) copyUp(layer experimentalsys.FS, p string, truncate bool) experimentalsys.Errno {
	if errno := vfs.CopyParents(o.primary, layer, p); errno != 0 {
		return errno
	}
	return vfs.CopyFile(o.primary, p, layer, p, truncate)
}

// prepareParent recreates in the primary the parent chain of p when it only
// exists in a secondary.
func (o *FS) prepareParent(p string) experimentalsys.Errno {
	parent := path.Dir(vfs.Absolute(p))
	if parent == vfs.Root {
		return 0
	}
	if _, errno := o.primary.Stat(parent); errno == 0 {
		return 0
	}
	layer, st := o.lower(parent)
	if layer == nil {
		return 0
	}
	if !st.Mode.IsDir() {
		return experimentalsys.ENOTDIR
	}
	if errno := vfs.CopyParents(o.primary, layer, p); errno != 0 {
		return errno
	}
	return 0
}

func (o *FS) Mkdir(p string, perm fs.FileMode) experimentalsys.Errno {
	if _, errno := o.Lstat(p); errno == 0 {
		return experimentalsys.EEXIST
	}
	if errno := o.prepareParent(p); errno != 0 {
		return errno
	}
	return o.primary.Mkdir(p, perm)
}

// inPlace runs op against the primary when it holds p. An entry only held
// below fails with EROFS.
func (o *FS) inPlace(p string, op func(string) experimentalsys.Errno) experimentalsys.Errno {
	_, errno := o.primary.Lstat(p)
	if errno == 0 {
		return op(p)
	}
	if errno == experimentalsys.ENOENT {
		if layer, _ := o.lower(p); layer != nil {
			return experimentalsys.EROFS
		}
	}
	return errno
}

func (o *FS) Chmod(p string, perm fs.FileMode) experimentalsys.Errno {
	return o.inPlace(p, func(p string) experimentalsys.Errno { return o.primary.Chmod(p, perm) })
}

func (o *FS) Rmdir(p string) experimentalsys.Errno {
	return o.inPlace(p, o.primary.Rmdir)
}

func (o *FS) Unlink(p string) experimentalsys.Errno {
	return o.inPlace(p, o.primary.Unlink)
}

func (o *FS) Utimens(p string, atim, mtim int64) experimentalsys.Errno {
	return o.inPlace(p, func(p string) experimentalsys.Errno { return o.primary.Utimens(p, atim, mtim) })
}

func (o *FS) Rename(from, to string) experimentalsys.Errno {
	return o.inPlace(from, func(from string) experimentalsys.Errno {
		if errno := o.prepareParent(to); errno != 0 {
			return errno
		}
		return o.primary.Rename(from, to)
	})
}

func (o *FS) Link(oldPath, newPath string) experimentalsys.Errno {
	return o.inPlace(oldPath, func(oldPath string) experimentalsys.Errno {
		if errno := o.prepareParent(newPath); errno != 0 {
			return errno
		}
		return o.primary.Link(oldPath, newPath)
	})
}

func (o *FS) Symlink(oldPath, linkName string) experimentalsys.Errno {
	if _, errno := o.Lstat(linkName); errno == 0 {
		return experimentalsys.EEXIST
	}
	if errno := o.prepareParent(linkName); errno != 0 {
		return errno
	}
	return o.primary.Symlink(oldPath, linkName)
}
