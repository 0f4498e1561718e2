package vfs

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	"github.com/wippyai/wasi-vfs/errors"
)

// DirPerm is the permission used for directories created on behalf of a mapping.
const DirPerm fs.FileMode = 0o755

// EnsureDir makes sure dir and all of its ancestors exist in fsys.
//
// A path that already has metadata is accepted as is. Missing ancestors are
// collected walking upward and created top-down; Root is assumed to exist.
func EnsureDir(fsys experimentalsys.FS, dir string) error {
	dir = path.Clean(dir)

	var missing []string
	for p := dir; ; p = path.Dir(p) {
		if _, errno := fsys.Stat(p); errno == 0 {
			break
		}
		if p == Root || p == CurrentDir {
			break
		}
		missing = append(missing, p)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		p := missing[i]
		errno := fsys.Mkdir(p, DirPerm)
		if errno == experimentalsys.EEXIST {
			st, serr := fsys.Stat(p)
			if serr == 0 && st.Mode.IsDir() {
				continue
			}
			errno = experimentalsys.ENOTDIR
		}
		if errno != 0 {
			return errors.DirectoryCreation(p, errno)
		}
	}

	return nil
}
