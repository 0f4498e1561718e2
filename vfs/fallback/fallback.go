// Package fallback retries failed relative lookups with the absolute path.
//
// Guests start in the sandbox root, so a relative path is expected to name
// the same entry as "/" joined with it. Some layers, package filesystems in
// particular, only resolve absolute paths. FS makes both spellings work
// without changing layers that already handle relative paths.
package fallback

import (
	"io/fs"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

// FS wraps an inner filesystem. Each path-taking call goes to the inner
// filesystem with the given path first. Only when that fails and the path
// was relative is it retried once with the absolute path; the retry's
// result is returned as is.
type FS struct {
	experimentalsys.UnimplementedFS

	inner experimentalsys.FS
}

// New wraps inner.
func New(inner experimentalsys.FS) *FS {
	return &FS{inner: inner}
}

// Unwrap returns the wrapped filesystem.
func (f *FS) Unwrap() experimentalsys.FS { return f.inner }

func (f *FS) String() string { return "fallback" }

func retry[T any](p string, op func(string) (T, experimentalsys.Errno)) (T, experimentalsys.Errno) {
	v, errno := op(p)
	if errno == 0 || vfs.IsAbs(p) {
		return v, errno
	}
	return op(vfs.Root + p)
}

func retryErrno(p string, op func(string) experimentalsys.Errno) experimentalsys.Errno {
	errno := op(p)
	if errno == 0 || vfs.IsAbs(p) {
		return errno
	}
	return op(vfs.Root + p)
}

func absolute(p string) string {
	if vfs.IsAbs(p) {
		return p
	}
	return vfs.Root + p
}

func (f *FS) OpenFile(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	return retry(p, func(p string) (experimentalsys.File, experimentalsys.Errno) {
		return f.inner.OpenFile(p, flag, perm)
	})
}

func (f *FS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return retry(p, f.inner.Lstat)
}

func (f *FS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return retry(p, f.inner.Stat)
}

func (f *FS) Readlink(p string) (string, experimentalsys.Errno) {
	return retry(p, f.inner.Readlink)
}

func (f *FS) Mkdir(p string, perm fs.FileMode) experimentalsys.Errno {
	return retryErrno(p, func(p string) experimentalsys.Errno { return f.inner.Mkdir(p, perm) })
}

func (f *FS) Chmod(p string, perm fs.FileMode) experimentalsys.Errno {
	return retryErrno(p, func(p string) experimentalsys.Errno { return f.inner.Chmod(p, perm) })
}

func (f *FS) Rmdir(p string) experimentalsys.Errno {
	return retryErrno(p, f.inner.Rmdir)
}

func (f *FS) Unlink(p string) experimentalsys.Errno {
	return retryErrno(p, f.inner.Unlink)
}

func (f *FS) Utimens(p string, atim, mtim int64) experimentalsys.Errno {
	return retryErrno(p, func(p string) experimentalsys.Errno { return f.inner.Utimens(p, atim, mtim) })
}

// Symlink only retries the link location; oldPath is link content.
func (f *FS) Symlink(oldPath, linkName string) experimentalsys.Errno {
	return retryErrno(linkName, func(p string) experimentalsys.Errno { return f.inner.Symlink(oldPath, p) })
}

// Rename retries each relative argument on its own, source first, and
// finally both together. The first success wins; otherwise the last
// attempt's result is returned.
func (f *FS) Rename(from, to string) experimentalsys.Errno {
	return retryPair(from, to, f.inner.Rename)
}

// Link retries like Rename.
func (f *FS) Link(oldPath, newPath string) experimentalsys.Errno {
	return retryPair(oldPath, newPath, f.inner.Link)
}

func retryPair(a, b string, op func(a, b string) experimentalsys.Errno) experimentalsys.Errno {
	errno := op(a, b)
	if errno == 0 {
		return 0
	}

	relA, relB := !vfs.IsAbs(a), !vfs.IsAbs(b)
	if relA {
		if errno = op(absolute(a), b); errno == 0 {
			return 0
		}
	}
	if relB {
		if errno = op(a, absolute(b)); errno == 0 {
			return 0
		}
	}
	if relA && relB {
		errno = op(absolute(a), absolute(b))
	}
	return errno
}
