package vfs

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/errors"
)

// FilePerm is the permission used for files created by the helpers below.
const FilePerm fs.FileMode = 0o644

const copyBufferSize = 32 * 1024

// Stat is fsys.Stat for Go callers.
func Stat(fsys experimentalsys.FS, p string) (sys.Stat_t, error) {
	st, errno := fsys.Stat(p)
	if errno != 0 {
		return sys.Stat_t{}, errors.FilesystemOperation("metadata", p, errno)
	}
	return st, nil
}

// Exists reports whether p has metadata in fsys.
func Exists(fsys experimentalsys.FS, p string) bool {
	_, errno := fsys.Stat(p)
	return errno == 0
}

// IsDir reports whether p exists and is a directory.
func IsDir(fsys experimentalsys.FS, p string) bool {
	st, errno := fsys.Stat(p)
	return errno == 0 && st.Mode.IsDir()
}

// ReadFile returns the whole content of the regular file p.
func ReadFile(fsys experimentalsys.FS, p string) ([]byte, error) {
	data, errno := readAll(fsys, p)
	if errno != 0 {
		return nil, errors.FilesystemOperation("read", p, errno)
	}
	return data, nil
}

// WriteFile creates or truncates p and writes data to it.
func WriteFile(fsys experimentalsys.FS, p string, data []byte, perm fs.FileMode) error {
	if errno := writeAll(fsys, p, data, perm); errno != 0 {
		return errors.FilesystemOperation("write", p, errno)
	}
	return nil
}

// CopyFile copies the regular file from in src to the path to in dst,
// keeping the permission bits. Parent directories must already exist in dst.
// When truncate is set, the destination is created empty without reading src.
func CopyFile(dst experimentalsys.FS, to string, src experimentalsys.FS, from string, truncate bool) experimentalsys.Errno {
	st, errno := src.Stat(from)
	if errno != 0 {
		return errno
	}
	if st.Mode.IsDir() {
		return experimentalsys.EISDIR
	}

	var data []byte
	if !truncate {
		if data, errno = readAll(src, from); errno != 0 {
			return errno
		}
	}
	return writeAll(dst, to, data, st.Mode.Perm())
}

// CopyParents creates in dst every ancestor of p that exists as a directory
// in src, keeping the source permission bits.
func CopyParents(dst, src experimentalsys.FS, p string) experimentalsys.Errno {
	var chain []string
	for dir := path.Dir(Absolute(p)); dir != Root; dir = path.Dir(dir) {
		chain = append(chain, dir)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		dir := chain[i]
		if IsDir(dst, dir) {
			continue
		}
		perm := DirPerm
		if st, errno := src.Stat(dir); errno == 0 {
			if !st.Mode.IsDir() {
				return experimentalsys.ENOTDIR
			}
			perm = st.Mode.Perm()
		} else if errno != experimentalsys.ENOENT {
			return errno
		}
		if errno := dst.Mkdir(dir, perm); errno != 0 && errno != experimentalsys.EEXIST {
			return errno
		}
	}
	return 0
}

func readAll(fsys experimentalsys.FS, p string) ([]byte, experimentalsys.Errno) {
	f, errno := fsys.OpenFile(p, experimentalsys.O_RDONLY, 0)
	if errno != 0 {
		return nil, errno
	}
	defer f.Close()

	var data []byte
	buf := make([]byte, copyBufferSize)
	for {
		n, errno := f.Read(buf)
		if errno != 0 {
			return nil, errno
		}
		if n == 0 {
			return data, 0
		}
		data = append(data, buf[:n]...)
	}
}

func writeAll(fsys experimentalsys.FS, p string, data []byte, perm fs.FileMode) experimentalsys.Errno {
	flag := experimentalsys.O_WRONLY | experimentalsys.O_CREAT | experimentalsys.O_TRUNC
	f, errno := fsys.OpenFile(p, flag, perm)
	if errno != 0 {
		return errno
	}
	for len(data) > 0 {
		n, errno := f.Write(data)
		if errno == 0 && n == 0 {
			errno = experimentalsys.EIO
		}
		if errno != 0 {
			f.Close()
			return errno
		}
		data = data[n:]
	}
	return f.Close()
}
