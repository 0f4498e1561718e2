// Package runner composes the sandbox filesystem of a WASI program and runs
// it on wazero.
//
// Composition starts from an in-memory root tree (memfs.NewRoot). Each
// mapped host directory is mounted into the tree; a mapping at "/" merges the
// host directory's entries into the root instead. The tree is layered over
// an optional package filesystem (overlay) and the result is wrapped so that
// relative guest paths fall back to their absolute spelling (fallback).
//
//	fallback.FS
//	└── overlay.FS            (only with a package)
//	    ├── memfs.FS          root tree, writable
//	    │   ├── /home  ──►    host directory mount
//	    │   └── /tmp          in memory
//	    └── pkgfs.FS          package, read-only
//
// The composed filesystem, preopens and map dirs are collected on an
// EnvBuilder, which produces the wazero module configuration:
//
//	b := runner.NewEnvBuilder("python")
//	err := runner.Prepare([]wasivfs.MappedDirectory{{Host: "/srv/data", Guest: "/data"}}, pkg.FS, b)
//	if err != nil {
//	    return err
//	}
//	code, err := runner.Run(ctx, wasm, b)
package runner
