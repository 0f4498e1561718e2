// Package pkgfs loads program packages into a read-only filesystem.
//
// A package is a tar or zip archive, optionally compressed with zstd, gzip
// or lz4. Its root may hold a wasi.yaml manifest naming the entrypoint
// module and the arguments and environment the program expects:
//
//	name: python
//	entrypoint: /bin/python.wasm
//	wasi:
//	  main-args: ["-B"]
//	  env: ["PYTHONHOME=/lib/python3"]
//	digest: 5b0c...        # optional, blake3 of the package content
//
// The filesystem resolves absolute paths only, mirroring package volumes that
// have no notion of a current directory. Callers that want relative guest
// lookups to work wrap it, or the overlay it sits under, in fallback.FS.
package pkgfs
