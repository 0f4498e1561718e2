package memfs

import (
	"io/fs"
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

type deviceKind uint8

const (
	deviceNone deviceKind = iota
	deviceNull
)

// backing is a filesystem attached to the tree. Nodes mounted from the same
// call share one backing, which is what decides whether a rename can stay
// inside a single store.
type backing struct {
	fs experimentalsys.FS
}

// mount binds a node to a base path inside a backing store.
type mount struct {
	backing *backing
	base    string
}

func (m *mount) path(rest []string) string {
	if len(rest) == 0 {
		return m.base
	}
	return path.Join(append([]string{m.base}, rest...)...)
}

// node is an entry of the tree. A node with a mount delegates every name it
// does not hold in children to its backing store.
type node struct {
	children map[string]*node
	mount    *mount
	name     string
	data     []byte
	ino      uint64
	atim     int64
	mtim     int64
	ctim     int64
	mode     fs.FileMode
	device   deviceKind
}

func (n *node) isDir() bool {
	return n.mode.IsDir()
}

func (n *node) stat() sys.Stat_t {
	size := int64(len(n.data))
	nlink := uint64(1)
	if n.isDir() {
		size = 0
		nlink = 2 + uint64(len(n.children))
	}
	return sys.Stat_t{
		Ino:   n.ino,
		Mode:  n.mode,
		Nlink: nlink,
		Size:  size,
		Atim:  n.atim,
		Mtim:  n.mtim,
		Ctim:  n.ctim,
	}
}

func (n *node) dirent() experimentalsys.Dirent {
	return experimentalsys.Dirent{Ino: n.ino, Name: n.name, Type: n.mode.Type()}
}

// location is the result of walking a path through the tree.
//
// Exactly one of the following holds:
//   - node != nil: the path names an in-memory node (possibly a mount point);
//   - node == nil && mount == nil: the path is missing, parent holds the
//     directory it would be created in;
//   - mount != nil: the path resolves into a backing store at mount.path(rest).
type location struct {
	node   *node
	parent *node
	mount  *mount
	name   string
	rest   []string
}

func (l location) delegated() bool {
	return l.mount != nil
}

func (l location) backingFS() experimentalsys.FS {
	return l.mount.backing.fs
}

func (l location) backingPath() string {
	return l.mount.path(l.rest)
}
