// Package vfs holds the pieces shared by every filesystem layer of a
// sandbox: guest path handling, directory creation, directory listings and
// the subtree views handed out as preopens.
//
// All layers speak wazero's experimental sys.FS interface. The concrete
// layers live in sub-packages:
//
//	vfs/memfs     mutable in-memory tree with mount points
//	vfs/hostfs    host directory backend and host path canonicalization
//	vfs/pkgfs     read-only package filesystem loaded from an archive
//	vfs/overlay   tree-over-package layering with copy-up on write
//	vfs/fallback  retries failed relative lookups with the absolute path
//
// Guests only ever see sys.Errno values. The Go-side helpers in this package
// (ReadDir, ReadFile, WriteFile) wrap those errnos with errors.FilesystemOperation
// so callers still match them with errors.Is.
package vfs
