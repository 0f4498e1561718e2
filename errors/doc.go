// Package errors provides structured error types for the wasi-vfs module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending path, the host/guest sides of a mapped
// directory, the index of that mapping, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSetup, errors.KindMount).
//		Mapping(2).
//		Host("/srv/data").
//		Guest("/data").
//		Detail("backing store rejected the mount").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.PathResolution("/missing", cause)
//	err := errors.DirectoryCreation("/a/b", sys.ENOTDIR)
//
// Filesystem errnos wrapped with FilesystemOperation stay reachable through
// errors.Is, so callers can test for sys.ENOENT and friends directly.
package errors
