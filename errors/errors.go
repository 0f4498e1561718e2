package errors

import (
	"fmt"
	"strconv"
	"strings"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSetup   Phase = "setup"   // filesystem composition
	PhaseRuntime Phase = "runtime" // operations against the composed filesystem
	PhasePackage Phase = "package" // package archive loading
	PhaseConfig  Phase = "config"  // run configuration
)

// Kind categorizes the error
type Kind string

const (
	KindPathResolution    Kind = "path_resolution"
	KindMount             Kind = "mount"
	KindDirectoryCreation Kind = "directory_creation"
	KindFilesystem        Kind = "filesystem"
	KindInvalidInput      Kind = "invalid_input"
	KindPackage           Kind = "package"
	KindNotInitialized    Kind = "not_initialized"
	KindInstantiation     Kind = "instantiation"
	KindConfig            Kind = "config"
)

// NoMapping marks an error that is not tied to a mapped directory.
const NoMapping = -1

// Error is the structured error type used throughout the module
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Op        string
	Path      string
	HostPath  string
	GuestPath string
	Detail    string
	// Mapping is the index of the mapped directory being processed, or NoMapping.
	Mapping int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}

	if e.Mapping >= 0 {
		b.WriteString(" mapping #")
		b.WriteString(strconv.Itoa(e.Mapping))
	}

	if e.HostPath != "" || e.GuestPath != "" {
		b.WriteString(" (")
		if e.HostPath != "" {
			b.WriteString("host ")
			b.WriteString(strconv.Quote(e.HostPath))
		}
		if e.GuestPath != "" {
			if e.HostPath != "" {
				b.WriteString(", ")
			}
			b.WriteString("guest ")
			b.WriteString(strconv.Quote(e.GuestPath))
		}
		b.WriteByte(')')
	}

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(strconv.Quote(e.Path))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:   phase,
			Kind:    kind,
			Mapping: NoMapping,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Path sets the offending path
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Host sets the host side of a mapping
func (b *Builder) Host(path string) *Builder {
	b.err.HostPath = path
	return b
}

// Guest sets the guest side of a mapping
func (b *Builder) Guest(path string) *Builder {
	b.err.GuestPath = path
	return b
}

// Mapping sets the mapped directory index
func (b *Builder) Mapping(index int) *Builder {
	b.err.Mapping = index
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// PathResolution creates an error for a path that cannot be canonicalized
func PathResolution(path string, cause error) *Error {
	return &Error{
		Phase:   PhaseSetup,
		Kind:    KindPathResolution,
		Path:    path,
		Detail:  fmt.Sprintf("unable to canonicalize %q", path),
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// Mount creates an error for a mount the tree refused to install
func Mount(hostPath, guestPath string, cause error) *Error {
	return &Error{
		Phase:     PhaseSetup,
		Kind:      KindMount,
		HostPath:  hostPath,
		GuestPath: guestPath,
		Detail:    fmt.Sprintf("unable to mount %q to %q", hostPath, guestPath),
		Cause:     cause,
		Mapping:   NoMapping,
	}
}

// DirectoryCreation creates an error for a directory that could not be ensured
func DirectoryCreation(path string, cause error) *Error {
	return &Error{
		Phase:   PhaseSetup,
		Kind:    KindDirectoryCreation,
		Path:    path,
		Detail:  fmt.Sprintf("unable to create the %q directory", path),
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// FilesystemOperation wraps an errno returned by a filesystem operation.
// The errno stays reachable through errors.Is.
func FilesystemOperation(op, path string, errno experimentalsys.Errno) *Error {
	return &Error{
		Phase:   PhaseRuntime,
		Kind:    KindFilesystem,
		Op:      op,
		Path:    path,
		Cause:   errno,
		Mapping: NoMapping,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidInput,
		Detail:  detail,
		Mapping: NoMapping,
	}
}

// NotInitialized creates a not-initialized error for a missing dependency
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindNotInitialized,
		Detail:  fmt.Sprintf("%s not initialized", component),
		Mapping: NoMapping,
	}
}

// Package creates a package loading error
func Package(detail string, cause error) *Error {
	return &Error{
		Phase:   PhasePackage,
		Kind:    KindPackage,
		Detail:  detail,
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// Config creates a configuration error
func Config(detail string, cause error) *Error {
	return &Error{
		Phase:   PhaseConfig,
		Kind:    KindConfig,
		Detail:  detail,
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:   PhaseRuntime,
		Kind:    KindInstantiation,
		Detail:  "instantiate module",
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    kind,
		Detail:  detail,
		Cause:   cause,
		Mapping: NoMapping,
	}
}

// WithMapping returns a copy of err annotated with the mapped directory it
// was raised for. Errors that are not *Error are wrapped as mount failures.
func WithMapping(err error, index int, hostPath, guestPath string) *Error {
	e, ok := err.(*Error)
	if !ok {
		e = Mount(hostPath, guestPath, err)
	}
	annotated := *e
	annotated.Mapping = index
	if annotated.HostPath == "" {
		annotated.HostPath = hostPath
	}
	if annotated.GuestPath == "" {
		annotated.GuestPath = guestPath
	}
	return &annotated
}
