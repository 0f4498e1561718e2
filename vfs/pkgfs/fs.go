package pkgfs

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

// maxSymlinkHops bounds symlink resolution; longer chains fail with ELOOP.
const maxSymlinkHops = 40

type entry struct {
	name     string
	data     []byte
	target   string
	children []string
	ino      uint64
	mtim     int64
	mode     fs.FileMode
}

func (e *entry) stat() sys.Stat_t {
	st := sys.Stat_t{
		Ino:   e.ino,
		Mode:  e.mode,
		Nlink: 1,
		Size:  int64(len(e.data)),
		Atim:  e.mtim,
		Mtim:  e.mtim,
		Ctim:  e.mtim,
	}
	switch {
	case e.mode.IsDir():
		st.Size = 0
		st.Nlink = 2
	case e.mode&fs.ModeSymlink != 0:
		st.Size = int64(len(e.target))
	}
	return st
}

// FS is an immutable package filesystem.
//
// Only absolute paths are resolved. Any relative path reports ENOENT
// and every mutation reports EROFS.
type FS struct {
	experimentalsys.UnimplementedFS

	entries map[string]*entry
	nextIno uint64
}

func newFS() *FS {
	f := &FS{entries: make(map[string]*entry)}
	f.put(vfs.Root, &entry{mode: fs.ModeDir | 0o555})
	return f
}

func (f *FS) String() string { return "pkgfs" }

func (f *FS) put(p string, e *entry) {
	if old, ok := f.entries[p]; ok && old.mode.IsDir() && e.mode.IsDir() {
		old.mode, old.mtim = e.mode, e.mtim
		return
	}
	f.nextIno++
	e.ino = f.nextIno
	e.name = path.Base(p)
	f.entries[p] = e
}

// add records e at p and creates any missing parent directory.
func (f *FS) add(p string, e *entry) {
	p = path.Clean(vfs.Root + p)
	if p == vfs.Root {
		if e.mode.IsDir() {
			f.put(p, e)
		}
		return
	}
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		if _, ok := f.entries[dir]; ok {
			break
		}
		f.put(dir, &entry{mode: fs.ModeDir | 0o555})
	}
	f.put(p, e)
}

func (f *FS) addDir(p string, perm fs.FileMode, mtim int64) {
	f.add(p, &entry{mode: fs.ModeDir | perm.Perm(), mtim: mtim})
}

func (f *FS) addFile(p string, data []byte, perm fs.FileMode, mtim int64) {
	f.add(p, &entry{mode: perm.Perm(), data: data, mtim: mtim})
}

func (f *FS) addSymlink(p, target string, mtim int64) {
	f.add(p, &entry{mode: fs.ModeSymlink | 0o777, target: target, mtim: mtim})
}

// seal computes directory listings once every entry is known.
func (f *FS) seal() {
	for p := range f.entries {
		if p == vfs.Root {
			continue
		}
		parent := f.entries[path.Dir(p)]
		parent.children = append(parent.children, path.Base(p))
	}
	for _, e := range f.entries {
		sort.Strings(e.children)
	}
}

// Paths returns every path in the filesystem, sorted.
func (f *FS) Paths() []string {
	out := make([]string, 0, len(f.entries))
	for p := range f.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *FS) lookup(p string) (*entry, experimentalsys.Errno) {
	if !vfs.IsAbs(p) || strings.IndexByte(p, 0) >= 0 {
		return nil, experimentalsys.ENOENT
	}
	e, ok := f.entries[path.Clean(p)]
	if !ok {
		return nil, f.missing(path.Clean(p))
	}
	return e, 0
}

// missing reports ENOTDIR when an ancestor of p is not a directory.
func (f *FS) missing(p string) experimentalsys.Errno {
	for dir := path.Dir(p); dir != vfs.Root; dir = path.Dir(dir) {
		if e, ok := f.entries[dir]; ok {
			if !e.mode.IsDir() {
				return experimentalsys.ENOTDIR
			}
			break
		}
	}
	return experimentalsys.ENOENT
}

// resolve follows symlinks at the end of p and returns the path of the
// entry it lands on.
func (f *FS) resolve(p string) (string, *entry, experimentalsys.Errno) {
	e, errno := f.lookup(p)
	p = path.Clean(p)
	for hops := 0; errno == 0 && e.mode&fs.ModeSymlink != 0; hops++ {
		if hops == maxSymlinkHops {
			return "", nil, experimentalsys.ELOOP
		}
		target := e.target
		if !vfs.IsAbs(target) {
			target = path.Join(path.Dir(p), target)
		}
		p = path.Clean(target)
		e, errno = f.lookup(p)
	}
	return p, e, errno
}

func (f *FS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	_, e, errno := f.resolve(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}
	return e.stat(), 0
}

func (f *FS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	e, errno := f.lookup(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}
	return e.stat(), 0
}

func (f *FS) Readlink(p string) (string, experimentalsys.Errno) {
	e, errno := f.lookup(p)
	if errno != 0 {
		return "", errno
	}
	if e.mode&fs.ModeSymlink == 0 {
		return "", experimentalsys.EINVAL
	}
	return e.target, 0
}

func (f *FS) OpenFile(p string, flag experimentalsys.Oflag, _ fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	resolved, e, errno := f.resolve(p)
	if errno == experimentalsys.ENOENT && flag&experimentalsys.O_CREAT != 0 && vfs.IsAbs(p) {
		return nil, experimentalsys.EROFS
	}
	if errno != 0 {
		return nil, errno
	}
	if flag&(experimentalsys.O_WRONLY|experimentalsys.O_RDWR|experimentalsys.O_TRUNC|experimentalsys.O_APPEND) != 0 {
		if e.mode.IsDir() {
			return nil, experimentalsys.EISDIR
		}
		return nil, experimentalsys.EROFS
	}

	if e.mode.IsDir() {
		entries := make([]experimentalsys.Dirent, 0, len(e.children))
		for _, name := range e.children {
			child := f.entries[path.Join(resolved, name)]
			entries = append(entries, experimentalsys.Dirent{Ino: child.ino, Name: name, Type: child.mode.Type()})
		}
		return vfs.NewDirFile(e.stat(), entries), 0
	}
	if flag&experimentalsys.O_DIRECTORY != 0 {
		return nil, experimentalsys.ENOTDIR
	}
	return &file{entry: e}, 0
}

func (f *FS) Mkdir(string, fs.FileMode) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Chmod(string, fs.FileMode) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Rename(string, string) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Rmdir(string) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Unlink(string) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Link(string, string) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Symlink(string, string) experimentalsys.Errno { return experimentalsys.EROFS }

func (f *FS) Utimens(string, int64, int64) experimentalsys.Errno { return experimentalsys.EROFS }

// file is an open regular file of the package.
type file struct {
	experimentalsys.UnimplementedFile

	entry  *entry
	offset int64
	closed bool
}

func (f *file) Ino() (sys.Inode, experimentalsys.Errno) { return f.entry.ino, 0 }

func (f *file) IsDir() (bool, experimentalsys.Errno) { return false, 0 }

func (f *file) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if f.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}
	return f.entry.stat(), 0
}

func (f *file) Read(buf []byte) (int, experimentalsys.Errno) {
	n, errno := f.Pread(buf, f.offset)
	f.offset += int64(n)
	return n, errno
}

func (f *file) Pread(buf []byte, off int64) (int, experimentalsys.Errno) {
	if f.closed {
		return 0, experimentalsys.EBADF
	}
	if off < 0 {
		return 0, experimentalsys.EINVAL
	}
	if off >= int64(len(f.entry.data)) {
		return 0, 0
	}
	return copy(buf, f.entry.data[off:]), 0
}

func (f *file) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if f.closed {
		return 0, experimentalsys.EBADF
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += int64(len(f.entry.data))
	default:
		return 0, experimentalsys.EINVAL
	}
	if offset < 0 {
		return 0, experimentalsys.EINVAL
	}
	f.offset = offset
	return offset, 0
}

func (f *file) Readdir(int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	return nil, experimentalsys.ENOTDIR
}

func (f *file) Write([]byte) (int, experimentalsys.Errno) { return 0, experimentalsys.EBADF }

func (f *file) Pwrite([]byte, int64) (int, experimentalsys.Errno) {
	return 0, experimentalsys.EBADF
}

func (f *file) Truncate(int64) experimentalsys.Errno { return experimentalsys.EBADF }

func (f *file) Close() experimentalsys.Errno {
	f.closed = true
	return 0
}
