package runner

import (
	"path"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"go.uber.org/zap"

	wasivfs "github.com/wippyai/wasi-vfs"
	"github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs"
	"github.com/wippyai/wasi-vfs/vfs/fallback"
	"github.com/wippyai/wasi-vfs/vfs/hostfs"
	"github.com/wippyai/wasi-vfs/vfs/memfs"
	"github.com/wippyai/wasi-vfs/vfs/overlay"
)

// Prepare composes the sandbox filesystem on a fresh root tree and
// registers it on b. See PrepareWithRoot.
func Prepare(mappings []wasivfs.MappedDirectory, pkg experimentalsys.FS, b *EnvBuilder) error {
	return PrepareWithRoot(memfs.NewRoot(), mappings, pkg, b)
}

// PrepareWithRoot mounts mappings into root, layers root over pkg when pkg
// is not nil, and registers the result on b:
//   - every mounted directory is preopened, then "/" is;
//   - "." is mapped to "/" unless a mapping already claims the root;
//   - the composed filesystem is installed with SetFS.
//
// A typed nil pkg is not treated as absent.
func PrepareWithRoot(root *memfs.FS, mappings []wasivfs.MappedDirectory, pkg experimentalsys.FS, b *EnvBuilder) error {
	if root == nil {
		return errors.NotInitialized(errors.PhaseSetup, "root filesystem")
	}
	if b == nil {
		return errors.NotInitialized(errors.PhaseSetup, "environment builder")
	}

	var preopens []string
	if len(mappings) > 0 {
		var err error
		preopens, err = PlanMounts(root, hostfs.New(), mappings)
		if err != nil {
			return err
		}
	}

	for _, p := range preopens {
		if err := b.AddPreopenDir(p); err != nil {
			return err
		}
	}
	if err := b.AddPreopenDir(vfs.Root); err != nil {
		return err
	}

	if !claimsRoot(mappings) {
		if err := b.AddMapDir(vfs.CurrentDir, vfs.Root); err != nil {
			return err
		}
	}

	b.SetFS(ComposeFilesystem(root, pkg))
	return nil
}

func claimsRoot(mappings []wasivfs.MappedDirectory) bool {
	for _, m := range mappings {
		if vfs.IsRoot(vfs.Remap(m.Guest)) {
			return true
		}
	}
	return false
}

// PlanMounts mounts every mapping into tree, in order, and returns the guest
// paths that need a preopen. A mapping at "/" merges the host directory's
// entries into the root and needs none.
//
// Mounts made before a failing mapping stay in place.
func PlanMounts(tree *memfs.FS, host experimentalsys.FS, mappings []wasivfs.MappedDirectory) ([]string, error) {
	var preopens []string

	for i, m := range mappings {
		guest := m.Guest
		if !vfs.IsAbs(guest) {
			guest = vfs.Remap(guest)
		}

		hostPath, err := hostfs.Canonicalize(m.Host)
		if err != nil {
			return nil, errors.WithMapping(err, i, m.Host, m.Guest)
		}
		guestPath, errno := tree.CanonicalizeUnchecked(guest)
		if errno != 0 {
			return nil, errors.WithMapping(errors.PathResolution(guest, errno), i, hostPath, m.Guest)
		}

		backing := host
		if m.ReadOnly {
			backing = hostfs.ReadOnly(host)
		}

		Logger().Debug("Mounting host folder",
			zap.String("guest", guestPath),
			zap.String("host", hostPath),
			zap.Bool("read_only", m.ReadOnly),
		)

		if guestPath == vfs.Root {
			if errno := tree.MountDirectoryEntries(vfs.Root, backing, hostPath); errno != 0 {
				return nil, errors.WithMapping(errors.Mount(hostPath, guestPath, errno), i, hostPath, guestPath)
			}
			continue
		}

		if err := vfs.EnsureDir(tree, path.Dir(guestPath)); err != nil {
			return nil, errors.WithMapping(err, i, hostPath, guestPath)
		}
		if errno := tree.Mount(guestPath, backing, hostPath); errno != 0 {
			return nil, errors.WithMapping(errors.Mount(hostPath, guestPath, errno), i, hostPath, guestPath)
		}
		preopens = append(preopens, guestPath)
	}

	return preopens, nil
}

// ComposeFilesystem layers tree over pkg, when pkg is not nil, and wraps the
// result so relative lookups fall back to absolute ones. pkg gets its own
// wrapper too, so merged listings of relative directories include it.
func ComposeFilesystem(tree *memfs.FS, pkg experimentalsys.FS) *fallback.FS {
	if pkg == nil {
		return fallback.New(tree)
	}
	return fallback.New(overlay.New(tree, fallback.New(pkg)))
}
