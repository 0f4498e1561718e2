package vfs

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

// SubFS exposes the subtree of an inner filesystem rooted at a directory.
// Paths given to it, relative or absolute, are resolved below that
// directory and cannot climb above it.
type SubFS struct {
	experimentalsys.UnimplementedFS

	inner experimentalsys.FS
	dir   string
}

// Sub returns a view of fsys rooted at dir. A Root dir returns fsys itself.
func Sub(fsys experimentalsys.FS, dir string) experimentalsys.FS {
	dir = Absolute(dir)
	if dir == Root {
		return fsys
	}
	return &SubFS{inner: fsys, dir: dir}
}

// Dir returns the directory of the inner filesystem this view is rooted at.
func (s *SubFS) Dir() string { return s.dir }

func (s *SubFS) String() string { return "sub(" + s.dir + ")" }

func (s *SubFS) join(p string) string {
	return path.Join(s.dir, Absolute(p))
}

func (s *SubFS) OpenFile(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	return s.inner.OpenFile(s.join(p), flag, perm)
}

func (s *SubFS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return s.inner.Lstat(s.join(p))
}

func (s *SubFS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return s.inner.Stat(s.join(p))
}

func (s *SubFS) Mkdir(p string, perm fs.FileMode) experimentalsys.Errno {
	return s.inner.Mkdir(s.join(p), perm)
}

func (s *SubFS) Chmod(p string, perm fs.FileMode) experimentalsys.Errno {
	return s.inner.Chmod(s.join(p), perm)
}

func (s *SubFS) Rename(from, to string) experimentalsys.Errno {
	return s.inner.Rename(s.join(from), s.join(to))
}

func (s *SubFS) Rmdir(p string) experimentalsys.Errno {
	return s.inner.Rmdir(s.join(p))
}

func (s *SubFS) Unlink(p string) experimentalsys.Errno {
	return s.inner.Unlink(s.join(p))
}

func (s *SubFS) Link(oldPath, newPath string) experimentalsys.Errno {
	return s.inner.Link(s.join(oldPath), s.join(newPath))
}

// Symlink keeps oldPath as link content; only the link location is rebased.
func (s *SubFS) Symlink(oldPath, linkName string) experimentalsys.Errno {
	return s.inner.Symlink(oldPath, s.join(linkName))
}

func (s *SubFS) Readlink(p string) (string, experimentalsys.Errno) {
	return s.inner.Readlink(s.join(p))
}

func (s *SubFS) Utimens(p string, atim, mtim int64) experimentalsys.Errno {
	return s.inner.Utimens(s.join(p), atim, mtim)
}
