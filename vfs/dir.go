package vfs

import (
	"io"
	"sort"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasi-vfs/errors"
)

// DirFile is an open directory over a fixed snapshot of entries. Layers that
// synthesize listings (in-memory directories, merged overlay directories)
// return it from OpenFile.
type DirFile struct {
	experimentalsys.UnimplementedFile

	stat    sys.Stat_t
	entries []experimentalsys.Dirent
	pos     int
	closed  bool
}

// NewDirFile returns a directory handle listing entries. The snapshot is
// taken by the caller; later changes to the directory are not reflected.
func NewDirFile(stat sys.Stat_t, entries []experimentalsys.Dirent) *DirFile {
	return &DirFile{stat: stat, entries: entries}
}

func (d *DirFile) Dev() (uint64, experimentalsys.Errno) { return d.stat.Dev, 0 }

func (d *DirFile) Ino() (sys.Inode, experimentalsys.Errno) { return d.stat.Ino, 0 }

func (d *DirFile) IsDir() (bool, experimentalsys.Errno) { return true, 0 }

func (d *DirFile) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if d.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}
	return d.stat, 0
}

// Readdir returns up to n entries, or all remaining ones when n <= 0.
// An exhausted directory returns an empty slice and no error.
func (d *DirFile) Readdir(n int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	if d.closed {
		return nil, experimentalsys.EBADF
	}
	remaining := d.entries[d.pos:]
	if n > 0 && n < len(remaining) {
		remaining = remaining[:n]
	}
	d.pos += len(remaining)
	out := make([]experimentalsys.Dirent, len(remaining))
	copy(out, remaining)
	return out, 0
}

// Seek only supports rewinding, which restarts the listing.
func (d *DirFile) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if d.closed {
		return 0, experimentalsys.EBADF
	}
	if offset != 0 || whence != io.SeekStart {
		return 0, experimentalsys.EINVAL
	}
	d.pos = 0
	return 0, 0
}

func (d *DirFile) Read([]byte) (int, experimentalsys.Errno) { return 0, experimentalsys.EISDIR }

func (d *DirFile) Pread([]byte, int64) (int, experimentalsys.Errno) {
	return 0, experimentalsys.EISDIR
}

func (d *DirFile) Write([]byte) (int, experimentalsys.Errno) { return 0, experimentalsys.EISDIR }

func (d *DirFile) Pwrite([]byte, int64) (int, experimentalsys.Errno) {
	return 0, experimentalsys.EISDIR
}

func (d *DirFile) Truncate(int64) (errno experimentalsys.Errno) { return experimentalsys.EISDIR }

func (d *DirFile) Sync() experimentalsys.Errno { return 0 }

func (d *DirFile) Datasync() experimentalsys.Errno { return 0 }

func (d *DirFile) Close() experimentalsys.Errno {
	d.closed = true
	return 0
}

// ListDir opens p as a directory and returns every entry, sorted by name.
func ListDir(fsys experimentalsys.FS, p string) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	f, errno := fsys.OpenFile(p, experimentalsys.O_RDONLY|experimentalsys.O_DIRECTORY, 0)
	if errno != 0 {
		return nil, errno
	}
	defer f.Close()

	entries, errno := f.Readdir(-1)
	if errno != 0 {
		return nil, errno
	}
	SortDirents(entries)
	return entries, 0
}

// ReadDir is ListDir for Go callers.
func ReadDir(fsys experimentalsys.FS, p string) ([]experimentalsys.Dirent, error) {
	entries, errno := ListDir(fsys, p)
	if errno != 0 {
		return nil, errors.FilesystemOperation("read_dir", p, errno)
	}
	return entries, nil
}

// SortDirents orders entries by name.
func SortDirents(entries []experimentalsys.Dirent) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
