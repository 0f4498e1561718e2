// Package hostfs exposes the host filesystem to the mount tree.
package hostfs

import (
	"os"
	"path/filepath"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/experimental/sysfs"

	"github.com/wippyai/wasi-vfs/errors"
)

// New returns the host filesystem addressed by absolute host paths.
func New() experimentalsys.FS {
	return sysfs.DirFS("/")
}

// ReadOnly masks fsys so that every write fails with EROFS or EBADF.
func ReadOnly(fsys experimentalsys.FS) experimentalsys.FS {
	return &sysfs.ReadFS{FS: fsys}
}

// Canonicalize returns the absolute, symlink-free form of a host directory.
// The directory must exist.
func Canonicalize(p string) (string, error) {
	if p == "" {
		return "", errors.PathResolution(p, experimentalsys.EINVAL)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.PathResolution(p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.PathResolution(p, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errors.PathResolution(p, err)
	}
	if !info.IsDir() {
		return "", errors.PathResolution(p, experimentalsys.ENOTDIR)
	}

	return filepath.ToSlash(resolved), nil
}
