package memfs

import (
	"io"
	"time"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

// file is an open regular file or device held in the tree. The node stays
// valid after it is unlinked, like an open descriptor on a host.
type file struct {
	experimentalsys.UnimplementedFile

	fs       *FS
	node     *node
	offset   int64
	readable bool
	writable bool
	append   bool
	closed   bool
}

func (f *file) Dev() (uint64, experimentalsys.Errno) { return 0, 0 }

func (f *file) Ino() (sys.Inode, experimentalsys.Errno) { return f.node.ino, 0 }

func (f *file) IsDir() (bool, experimentalsys.Errno) { return false, 0 }

func (f *file) IsAppend() bool { return f.append }

func (f *file) SetAppend(enable bool) experimentalsys.Errno {
	f.append = enable
	return 0
}

func (f *file) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if f.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	return f.node.stat(), 0
}

func (f *file) Read(buf []byte) (int, experimentalsys.Errno) {
	if errno := f.check(f.readable); errno != 0 {
		return 0, errno
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	n := f.readAt(buf, f.offset)
	f.offset += int64(n)
	return n, 0
}

func (f *file) Pread(buf []byte, off int64) (int, experimentalsys.Errno) {
	if errno := f.check(f.readable); errno != 0 {
		return 0, errno
	}
	if off < 0 {
		return 0, experimentalsys.EINVAL
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.readAt(buf, off), 0
}

func (f *file) readAt(buf []byte, off int64) int {
	if f.node.device == deviceNull {
		return 0
	}
	if off >= int64(len(f.node.data)) {
		return 0
	}
	n := copy(buf, f.node.data[off:])
	f.node.atim = time.Now().UnixNano()
	return n
}

func (f *file) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if f.closed {
		return 0, experimentalsys.EBADF
	}
	f.fs.mu.RLock()
	size := int64(len(f.node.data))
	f.fs.mu.RUnlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += size
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
	if f.closed {
		return nil, experimentalsys.EBADF
	}
	return nil, experimentalsys.ENOTDIR
}

func (f *file) Write(buf []byte) (int, experimentalsys.Errno) {
	if errno := f.check(f.writable); errno != 0 {
		return 0, errno
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.append {
		f.offset = int64(len(f.node.data))
	}
	n := f.writeAt(buf, f.offset)
	f.offset += int64(n)
	return n, 0
}

func (f *file) Pwrite(buf []byte, off int64) (int, experimentalsys.Errno) {
	if errno := f.check(f.writable); errno != 0 {
		return 0, errno
	}
	if off < 0 {
		return 0, experimentalsys.EINVAL
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.writeAt(buf, off), 0
}

func (f *file) writeAt(buf []byte, off int64) int {
	if f.node.device == deviceNull {
		return len(buf)
	}
	end := off + int64(len(buf))
	if end > int64(len(f.node.data)) {
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	copy(f.node.data[off:], buf)
	f.node.mtim = time.Now().UnixNano()
	return len(buf)
}

func (f *file) Truncate(size int64) experimentalsys.Errno {
	if errno := f.check(f.writable); errno != 0 {
		return errno
	}
	if size < 0 {
		return experimentalsys.EINVAL
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.node.device == deviceNull {
		return 0
	}
	switch cur := int64(len(f.node.data)); {
	case size < cur:
		f.node.data = f.node.data[:size]
	case size > cur:
		grown := make([]byte, size)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	f.node.mtim = time.Now().UnixNano()
	return 0
}

func (f *file) Sync() experimentalsys.Errno {
	if f.closed {
		return experimentalsys.EBADF
	}
	return 0
}

func (f *file) Datasync() experimentalsys.Errno { return f.Sync() }

func (f *file) Utimens(atim, mtim int64) experimentalsys.Errno {
	if f.closed {
		return experimentalsys.EBADF
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.node.setTimes(atim, mtim)
	return 0
}

func (f *file) Close() experimentalsys.Errno {
	f.closed = true
	return 0
}

// check validates a read or write against the open mode.
func (f *file) check(allowed bool) experimentalsys.Errno {
	if f.closed {
		return experimentalsys.EBADF
	}
	if !allowed {
		return experimentalsys.EBADF
	}
	return 0
}
