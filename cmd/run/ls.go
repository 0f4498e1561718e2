package main

import (
	"fmt"
	"io"
	"path"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

type entryInfo struct {
	name   string
	target string
	size   int64
	mode   string
	isDir  bool
}

// readEntries lists dir with each entry stat'ed through fsys, so symlinks
// and mounts report what they resolve to.
func readEntries(fsys experimentalsys.FS, dir string) ([]entryInfo, error) {
	dirents, err := vfs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	vfs.SortDirents(dirents)

	entries := make([]entryInfo, 0, len(dirents))
	for _, d := range dirents {
		p := path.Join(dir, d.Name)
		e := entryInfo{name: d.Name, isDir: d.Type.IsDir(), mode: d.Type.String()}
		if st, errno := fsys.Lstat(p); errno == 0 {
			e.mode = st.Mode.String()
			e.size = st.Size
			e.isDir = st.Mode.IsDir()
		}
		if target, errno := fsys.Readlink(p); errno == 0 {
			e.target = target
			if st, errno := fsys.Stat(p); errno == 0 {
				e.isDir = st.Mode.IsDir()
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (e entryInfo) sizeString() string {
	if e.isDir {
		return "-"
	}
	return humanize.IBytes(uint64(e.size))
}

func (e entryInfo) displayName() string {
	name := e.name
	if e.isDir {
		name += "/"
	}
	if e.target != "" {
		name += " -> " + e.target
	}
	return name
}

func listDir(w io.Writer, fsys experimentalsys.FS, dir string) error {
	dir = vfs.Absolute(dir)
	entries, err := readEntries(fsys, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.mode, e.sizeString(), e.displayName())
	}
	return tw.Flush()
}
