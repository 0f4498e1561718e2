// Package wasivfs composes the filesystem a sandboxed WASI program sees.
//
// A program runs against a single virtual filesystem assembled from an
// in-memory root tree, host directories mounted into it, and an optional
// read-only package. Every layer implements wazero's experimental/sys.FS, so
// the composed result is handed to wazero as is.
//
// # Architecture Overview
//
//	wasivfs/            MappedDirectory, the host-to-guest mapping
//	├── vfs/            path helpers, EnsureDir, copy helpers, Sub views
//	│   ├── memfs/      writable in-memory tree with host mounts
//	│   ├── hostfs/     host directory backend and path canonicalization
//	│   ├── overlay/    layered filesystem with copy-up into the top layer
//	│   ├── fallback/   retries relative lookups with absolute paths
//	│   └── pkgfs/      read-only package filesystem and archive loader
//	├── runner/         mount planning, EnvBuilder, wazero runner
//	├── config/         YAML run configuration
//	├── errors/         structured error types
//	└── cmd/run/        command line runner and filesystem browser
//
// # Quick Start
//
// Run a package with a host directory mapped at /home:
//
//	pkg, err := pkgfs.Load(archive)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts := runner.Options{
//	    MappedDirs: []wasivfs.MappedDirectory{{Host: "/srv/project", Guest: "/home"}},
//	    Args:       []string{"-c", "print('hi')"},
//	}
//	b := runner.NewEnvBuilder(pkg.Name())
//	if err := opts.PrepareEnv(b, pkg.FS, pkg.Annotation()); err != nil {
//	    log.Fatal(err)
//	}
//
//	wasm, err := vfs.ReadFile(b.FS(), pkg.Entrypoint())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	code, err := runner.Run(ctx, wasm, b)
//
// # Path Semantics
//
// The guest starts in "/". Relative guest paths in mappings are rooted
// there, and the composed filesystem retries any relative lookup that fails
// with its absolute spelling, so layers that only understand absolute paths
// still answer relative ones.
//
// # Thread Safety
//
// memfs.FS and pkgfs.FS are safe for concurrent use. EnvBuilder is not and
// should be filled by a single goroutine before Run.
package wasivfs
