package hostfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	vfserrors "github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs"
)

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	want, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatal(err)
	}

	for _, in := range []string{target, link, target + "/./", filepath.Join(target, "..", "real")} {
		got, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("Canonicalize(%q) failed: %v", in, err)
		}
		if got != filepath.ToSlash(want) {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalize_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	pathErr := &vfserrors.Error{Phase: vfserrors.PhaseSetup, Kind: vfserrors.KindPathResolution}

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing", filepath.Join(dir, "missing")},
		{"regular file", file},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, pathErr) {
				t.Errorf("expected a path resolution error, got %v", err)
			}
		})
	}

	if _, err := Canonicalize(file); !errors.Is(err, experimentalsys.ENOTDIR) {
		t.Errorf("expected ENOTDIR for a regular file, got %v", err)
	}
}

func TestNew_AbsoluteHostPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("host"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := vfs.ReadFile(New(), filepath.ToSlash(filepath.Join(dir, "f.txt")))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "host" {
		t.Errorf("expected host, got %q", data)
	}
}

func TestReadOnly(t *testing.T) {
	dir := filepath.ToSlash(t.TempDir())
	ro := ReadOnly(New())

	if errno := ro.Mkdir(dir+"/sub", 0o755); errno != experimentalsys.EROFS {
		t.Errorf("expected EROFS, got %v", errno)
	}
	if err := vfs.WriteFile(ro, dir+"/f", []byte("x"), vfs.FilePerm); err == nil {
		t.Error("expected write to fail on a read-only view")
	}
	if !vfs.IsDir(ro, dir) {
		t.Error("expected reads to pass through")
	}
}
