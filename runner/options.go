package runner

import (
	"strings"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	wasivfs "github.com/wippyai/wasi-vfs"
	"github.com/wippyai/wasi-vfs/vfs/memfs"
	"github.com/wippyai/wasi-vfs/vfs/pkgfs"
)

// Options are the user-facing settings of a run.
type Options struct {
	// Root is the tree mappings are mounted into. nil uses memfs.NewRoot.
	Root *memfs.FS
	// Env is applied last and wins over package and host variables.
	Env map[string]string
	// HostEnv is the host environment in os.Environ form. It is only
	// forwarded when ForwardHostEnv is set.
	HostEnv    []string
	Args       []string
	MappedDirs []wasivfs.MappedDirectory

	ForwardHostEnv bool
}

// PrepareEnv composes the filesystem and fills b with the package's
// arguments and environment followed by the user's.
//
// Environment order: package annotation, forwarded host, user. Arguments:
// package main-args, then user args.
func (o *Options) PrepareEnv(b *EnvBuilder, pkg experimentalsys.FS, wasi pkgfs.WasiAnnotation) error {
	root := o.Root
	if root == nil {
		root = memfs.NewRoot()
	}
	if err := PrepareWithRoot(root, o.MappedDirs, pkg, b); err != nil {
		return err
	}

	o.populateEnv(b, wasi)
	o.populateArgs(b, wasi)
	return nil
}

func (o *Options) populateEnv(b *EnvBuilder, wasi pkgfs.WasiAnnotation) {
	for _, kv := range wasi.EnvPairs() {
		b.AddEnv(kv[0], kv[1])
	}

	if o.ForwardHostEnv {
		for _, item := range o.HostEnv {
			k, v, ok := strings.Cut(item, "=")
			if !ok || k == "" {
				continue
			}
			b.AddEnv(k, v)
		}
	}

	b.AddEnvs(o.Env)
}

func (o *Options) populateArgs(b *EnvBuilder, wasi pkgfs.WasiAnnotation) {
	b.AddArgs(wasi.MainArgs...)
	b.AddArgs(o.Args...)
}
