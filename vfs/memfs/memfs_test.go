package memfs

import (
	"io"
	"io/fs"
	"testing"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

func names(t *testing.T, fsys experimentalsys.FS, dir string) []string {
	t.Helper()
	entries, err := vfs.ReadDir(fsys, dir)
	if err != nil {
		t.Fatalf("ReadDir(%q) failed: %v", dir, err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRoot_Layout(t *testing.T) {
	f := NewRoot()

	if got := names(t, f, "/"); !equal(got, []string{"bin", "dev", "etc", "tmp"}) {
		t.Errorf("unexpected root entries: %v", got)
	}

	st, errno := f.Stat("/tmp")
	if errno != 0 {
		t.Fatalf("Stat(/tmp) failed: %v", errno)
	}
	if st.Mode&fs.ModeSticky == 0 {
		t.Error("expected /tmp to be sticky")
	}

	st, errno = f.Stat("/dev/null")
	if errno != 0 {
		t.Fatalf("Stat(/dev/null) failed: %v", errno)
	}
	if st.Mode&fs.ModeCharDevice == 0 {
		t.Errorf("expected /dev/null to be a char device, got %v", st.Mode)
	}
}

func TestDevNull(t *testing.T) {
	f := NewRoot()

	w, errno := f.OpenFile("/dev/null", experimentalsys.O_RDWR, 0)
	if errno != 0 {
		t.Fatalf("open /dev/null failed: %v", errno)
	}
	defer w.Close()

	n, errno := w.Write([]byte("discarded"))
	if errno != 0 || n != len("discarded") {
		t.Fatalf("Write = %d, %v", n, errno)
	}
	buf := make([]byte, 8)
	if n, errno = w.Read(buf); errno != 0 || n != 0 {
		t.Errorf("Read = %d, %v; want EOF", n, errno)
	}
	if st, _ := w.Stat(); st.Size != 0 {
		t.Errorf("expected size 0, got %d", st.Size)
	}
}

func TestFile_ReadWrite(t *testing.T) {
	f := New()

	if err := vfs.WriteFile(f, "/hello.txt", []byte("hello"), vfs.FilePerm); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := vfs.ReadFile(f, "hello.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}

	af, errno := f.OpenFile("/hello.txt", experimentalsys.O_WRONLY|experimentalsys.O_APPEND, 0)
	if errno != 0 {
		t.Fatalf("open for append failed: %v", errno)
	}
	if _, errno := af.Write([]byte(" world")); errno != 0 {
		t.Fatalf("append failed: %v", errno)
	}
	if _, errno := af.Read(make([]byte, 1)); errno != experimentalsys.EBADF {
		t.Errorf("expected EBADF reading a write-only file, got %v", errno)
	}
	af.Close()

	rf, errno := f.OpenFile("/hello.txt", experimentalsys.O_RDONLY, 0)
	if errno != 0 {
		t.Fatalf("open failed: %v", errno)
	}
	defer rf.Close()
	if off, errno := rf.Seek(-5, io.SeekEnd); errno != 0 || off != 6 {
		t.Fatalf("Seek = %d, %v", off, errno)
	}
	buf := make([]byte, 16)
	n, _ := rf.Read(buf)
	if string(buf[:n]) != "world" {
		t.Errorf("expected world, got %q", buf[:n])
	}
	if _, errno := rf.Write([]byte("x")); errno != experimentalsys.EBADF {
		t.Errorf("expected EBADF writing a read-only file, got %v", errno)
	}
}

func TestFile_TruncateAndPwrite(t *testing.T) {
	f := New()

	h, errno := f.OpenFile("/f", experimentalsys.O_RDWR|experimentalsys.O_CREAT, 0o600)
	if errno != 0 {
		t.Fatalf("create failed: %v", errno)
	}
	defer h.Close()

	if _, errno := h.Pwrite([]byte("abc"), 4); errno != 0 {
		t.Fatalf("Pwrite failed: %v", errno)
	}
	st, _ := h.Stat()
	if st.Size != 7 {
		t.Errorf("expected size 7, got %d", st.Size)
	}
	if errno := h.Truncate(2); errno != 0 {
		t.Fatalf("Truncate failed: %v", errno)
	}
	buf := make([]byte, 4)
	n, _ := h.Pread(buf, 0)
	if n != 2 || buf[0] != 0 || buf[1] != 0 {
		t.Errorf("unexpected content after truncate: %v", buf[:n])
	}
}

func TestOpenFile_Flags(t *testing.T) {
	f := New()

	if _, errno := f.OpenFile("/missing", experimentalsys.O_RDONLY, 0); errno != experimentalsys.ENOENT {
		t.Errorf("expected ENOENT, got %v", errno)
	}
	if err := vfs.WriteFile(f, "/file", []byte("data"), vfs.FilePerm); err != nil {
		t.Fatal(err)
	}
	if _, errno := f.OpenFile("/file", experimentalsys.O_CREAT|experimentalsys.O_EXCL|experimentalsys.O_WRONLY, 0o644); errno != experimentalsys.EEXIST {
		t.Errorf("expected EEXIST, got %v", errno)
	}
	if _, errno := f.OpenFile("/file", experimentalsys.O_DIRECTORY, 0); errno != experimentalsys.ENOTDIR {
		t.Errorf("expected ENOTDIR, got %v", errno)
	}
	if _, errno := f.OpenFile("/file/child", experimentalsys.O_RDONLY, 0); errno != experimentalsys.ENOTDIR {
		t.Errorf("expected ENOTDIR below a file, got %v", errno)
	}
	if _, errno := f.OpenFile("/", experimentalsys.O_WRONLY, 0); errno != experimentalsys.EISDIR {
		t.Errorf("expected EISDIR, got %v", errno)
	}

	h, errno := f.OpenFile("/file", experimentalsys.O_WRONLY|experimentalsys.O_TRUNC, 0)
	if errno != 0 {
		t.Fatalf("open with O_TRUNC failed: %v", errno)
	}
	h.Close()
	if st, _ := f.Stat("/file"); st.Size != 0 {
		t.Errorf("expected truncated file, got size %d", st.Size)
	}
}

func TestDirectoryOperations(t *testing.T) {
	f := New()

	if errno := f.Mkdir("/a", 0o755); errno != 0 {
		t.Fatalf("Mkdir failed: %v", errno)
	}
	if errno := f.Mkdir("/a", 0o755); errno != experimentalsys.EEXIST {
		t.Errorf("expected EEXIST, got %v", errno)
	}
	if errno := f.Mkdir("/x/y", 0o755); errno != experimentalsys.ENOENT {
		t.Errorf("expected ENOENT for a missing parent, got %v", errno)
	}
	if err := vfs.WriteFile(f, "/a/f", nil, vfs.FilePerm); err != nil {
		t.Fatal(err)
	}

	if errno := f.Rmdir("/a"); errno != experimentalsys.ENOTEMPTY {
		t.Errorf("expected ENOTEMPTY, got %v", errno)
	}
	if errno := f.Rmdir("/a/f"); errno != experimentalsys.ENOTDIR {
		t.Errorf("expected ENOTDIR, got %v", errno)
	}
	if errno := f.Unlink("/a"); errno != experimentalsys.EISDIR {
		t.Errorf("expected EISDIR, got %v", errno)
	}
	if errno := f.Rmdir("/"); errno != experimentalsys.EPERM {
		t.Errorf("expected EPERM removing root, got %v", errno)
	}
	if errno := f.Unlink("/a/f"); errno != 0 {
		t.Fatalf("Unlink failed: %v", errno)
	}
	if errno := f.Rmdir("/a"); errno != 0 {
		t.Fatalf("Rmdir failed: %v", errno)
	}
	if vfs.Exists(f, "/a") {
		t.Error("expected /a to be gone")
	}
}

func TestDirFile_Readdir(t *testing.T) {
	f := New()
	for _, name := range []string{"c", "a", "b"} {
		if errno := f.Mkdir("/"+name, 0o755); errno != 0 {
			t.Fatal(errno)
		}
	}

	d, errno := f.OpenFile("/", experimentalsys.O_RDONLY, 0)
	if errno != 0 {
		t.Fatal(errno)
	}
	defer d.Close()

	first, _ := d.Readdir(2)
	if len(first) != 2 || first[0].Name != "a" || first[1].Name != "b" {
		t.Fatalf("unexpected first page: %v", first)
	}
	rest, _ := d.Readdir(2)
	if len(rest) != 1 || rest[0].Name != "c" {
		t.Fatalf("unexpected second page: %v", rest)
	}
	if empty, errno := d.Readdir(0); errno != 0 || len(empty) != 0 {
		t.Errorf("expected exhausted listing, got %v, %v", empty, errno)
	}
	if _, errno := d.Seek(0, io.SeekStart); errno != 0 {
		t.Fatalf("rewind failed: %v", errno)
	}
	if all, _ := d.Readdir(-1); len(all) != 3 {
		t.Errorf("expected 3 entries after rewind, got %d", len(all))
	}
}

func TestRename(t *testing.T) {
	f := New()
	if errno := f.Mkdir("/dir", 0o755); errno != 0 {
		t.Fatal(errno)
	}
	if err := vfs.WriteFile(f, "/dir/f", []byte("x"), vfs.FilePerm); err != nil {
		t.Fatal(err)
	}

	if errno := f.Rename("/dir/f", "/g"); errno != 0 {
		t.Fatalf("Rename failed: %v", errno)
	}
	if vfs.Exists(f, "/dir/f") || !vfs.Exists(f, "/g") {
		t.Error("rename did not move the file")
	}
	if errno := f.Rename("/dir", "/dir/inner"); errno != experimentalsys.EINVAL {
		t.Errorf("expected EINVAL moving a directory into itself, got %v", errno)
	}
	if errno := f.Rename("/g", "/dir"); errno != experimentalsys.EISDIR {
		t.Errorf("expected EISDIR, got %v", errno)
	}
	if errno := f.Rename("/missing", "/h"); errno != experimentalsys.ENOENT {
		t.Errorf("expected ENOENT, got %v", errno)
	}
}

func TestCanonicalizeUnchecked(t *testing.T) {
	f := New()

	tests := []struct {
		in    string
		want  string
		errno experimentalsys.Errno
	}{
		{"/", "/", 0},
		{".", "/", 0},
		{"a/b", "/a/b", 0},
		{"/a/./b/", "/a/b", 0},
		{"/a/../b", "/b", 0},
		{"/..", "", experimentalsys.EINVAL},
		{"", "", experimentalsys.EINVAL},
		{"a\x00b", "", experimentalsys.EINVAL},
	}

	for _, tt := range tests {
		got, errno := f.CanonicalizeUnchecked(tt.in)
		if errno != tt.errno || got != tt.want {
			t.Errorf("CanonicalizeUnchecked(%q) = %q, %v; want %q, %v", tt.in, got, errno, tt.want, tt.errno)
		}
	}
}

func newBacking(t *testing.T, files map[string]string) *FS {
	t.Helper()
	b := New()
	for p, content := range files {
		if err := vfs.EnsureDir(b, vfs.Absolute(p+"/..")); err != nil {
			t.Fatal(err)
		}
		if err := vfs.WriteFile(b, p, []byte(content), vfs.FilePerm); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestMount(t *testing.T) {
	back := newBacking(t, map[string]string{"/data/a.txt": "A"})
	tree := NewRoot()

	if errno := tree.Mkdir("/mnt", 0o755); errno != 0 {
		t.Fatal(errno)
	}
	if errno := tree.Mount("/mnt", back, "/data"); errno != 0 {
		t.Fatalf("Mount failed: %v", errno)
	}

	data, err := vfs.ReadFile(tree, "/mnt/a.txt")
	if err != nil || string(data) != "A" {
		t.Fatalf("ReadFile through mount = %q, %v", data, err)
	}

	if err := vfs.WriteFile(tree, "/mnt/b.txt", []byte("B"), vfs.FilePerm); err != nil {
		t.Fatalf("write through mount failed: %v", err)
	}
	if data, _ := vfs.ReadFile(back, "/data/b.txt"); string(data) != "B" {
		t.Errorf("expected write to land in the backing store, got %q", data)
	}

	if errno := tree.Rmdir("/mnt"); errno != experimentalsys.EPERM {
		t.Errorf("expected EPERM removing a mount point, got %v", errno)
	}
	if errno := tree.Rename("/mnt/a.txt", "/tmp/a.txt"); errno != experimentalsys.ENOTSUP {
		t.Errorf("expected ENOTSUP for a cross-store rename, got %v", errno)
	}
	if errno := tree.Rename("/mnt/a.txt", "/mnt/c.txt"); errno != 0 {
		t.Errorf("rename inside one store failed: %v", errno)
	}
}

func TestMount_Errors(t *testing.T) {
	back := newBacking(t, map[string]string{"/f": "x"})
	tree := New()

	if errno := tree.Mount("/", back, "/"); errno != experimentalsys.EINVAL {
		t.Errorf("expected EINVAL mounting over root, got %v", errno)
	}
	if errno := tree.Mount("/missing/child", back, "/"); errno != experimentalsys.ENOENT {
		t.Errorf("expected ENOENT for a missing parent, got %v", errno)
	}
}

func TestMount_Nested(t *testing.T) {
	outer := newBacking(t, map[string]string{"/project/src/main.go": "package main", "/project/README": "r"})
	inner := newBacking(t, map[string]string{"/cache.bin": "c"})
	tree := New()

	if errno := tree.Mount("/work", outer, "/project"); errno != 0 {
		t.Fatalf("outer mount failed: %v", errno)
	}
	if errno := tree.Mount("/work/src/cache", inner, "/"); errno != 0 {
		t.Fatalf("nested mount failed: %v", errno)
	}

	if data, err := vfs.ReadFile(tree, "/work/src/cache/cache.bin"); err != nil || string(data) != "c" {
		t.Errorf("nested mount read = %q, %v", data, err)
	}
	if data, err := vfs.ReadFile(tree, "/work/src/main.go"); err != nil || string(data) != "package main" {
		t.Errorf("outer mount read = %q, %v", data, err)
	}
	if got := names(t, tree, "/work/src"); !equal(got, []string{"cache", "main.go"}) {
		t.Errorf("expected merged listing, got %v", got)
	}
	if vfs.Exists(outer, "/project/src/cache") {
		t.Error("nested mount must not create directories in the outer store")
	}
}

func TestMount_ReplaceKeepsNested(t *testing.T) {
	first := newBacking(t, map[string]string{"/one": "1"})
	second := newBacking(t, map[string]string{"/two": "2"})
	nested := newBacking(t, map[string]string{"/n": "n"})
	tree := New()

	if errno := tree.Mount("/m", first, "/"); errno != 0 {
		t.Fatal(errno)
	}
	if errno := tree.Mkdir("/m/sub", 0o755); errno != 0 {
		t.Fatal(errno)
	}
	if errno := tree.Mount("/m/sub", nested, "/"); errno != 0 {
		t.Fatal(errno)
	}
	if errno := tree.Mount("/m", second, "/"); errno != 0 {
		t.Fatalf("replacing mount failed: %v", errno)
	}

	if vfs.Exists(tree, "/m/one") {
		t.Error("expected the first mount to be replaced")
	}
	if !vfs.Exists(tree, "/m/two") {
		t.Error("expected the second mount to be visible")
	}
	if !vfs.Exists(tree, "/m/sub/n") {
		t.Error("expected the nested mount to survive the replacement")
	}
}

func TestMountDirectoryEntries(t *testing.T) {
	host := newBacking(t, map[string]string{"/home/user/notes.txt": "n", "/srv/x": "x"})
	tree := NewRoot()

	if errno := tree.MountDirectoryEntries("/", host, "/"); errno != 0 {
		t.Fatalf("MountDirectoryEntries failed: %v", errno)
	}

	if got := names(t, tree, "/"); !equal(got, []string{"bin", "dev", "etc", "home", "srv", "tmp"}) {
		t.Errorf("unexpected merged root: %v", got)
	}
	if data, err := vfs.ReadFile(tree, "/home/user/notes.txt"); err != nil || string(data) != "n" {
		t.Errorf("read through merged root = %q, %v", data, err)
	}
	if errno := tree.Rename("/home/user/notes.txt", "/srv/notes.txt"); errno != 0 {
		t.Errorf("rename between entries of one store failed: %v", errno)
	}
	if errno := tree.MountDirectoryEntries("/tmp/missing", host, "/"); errno != experimentalsys.ENOENT {
		t.Errorf("expected ENOENT for a missing target, got %v", errno)
	}
}

func TestUtimens_Omit(t *testing.T) {
	f := New()
	if err := vfs.WriteFile(f, "/f", nil, vfs.FilePerm); err != nil {
		t.Fatal(err)
	}
	before, _ := f.Stat("/f")

	if errno := f.Utimens("/f", 42, experimentalsys.UTIME_OMIT); errno != 0 {
		t.Fatal(errno)
	}
	after, _ := f.Stat("/f")
	if after.Atim != 42 {
		t.Errorf("expected atim 42, got %d", after.Atim)
	}
	if after.Mtim != before.Mtim {
		t.Errorf("expected mtim unchanged, got %d want %d", after.Mtim, before.Mtim)
	}
}
