package errors

import (
	"errors"
	"strings"
	"testing"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseSetup,
				Kind:      KindMount,
				Mapping:   3,
				HostPath:  "/srv/data",
				GuestPath: "/data",
				Detail:    "rejected",
			},
			contains: []string{"[setup]", "mount", "mapping #3", `host "/srv/data"`, `guest "/data"`, "rejected"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase:   PhaseRuntime,
				Kind:    KindFilesystem,
				Mapping: NoMapping,
			},
			contains: []string{"[runtime]", "filesystem"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:   PhaseSetup,
				Kind:    KindDirectoryCreation,
				Path:    "/a/b",
				Cause:   errors.New("underlying error"),
				Mapping: NoMapping,
			},
			contains: []string{"[setup]", "directory_creation", `"/a/b"`, "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_NoMappingOmitted(t *testing.T) {
	msg := PathResolution("/x", nil).Error()
	if strings.Contains(msg, "mapping #") {
		t.Errorf("unexpected mapping index in %q", msg)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Mount("/host", "/guest", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := DirectoryCreation("/a", nil)

	if !err.Is(&Error{Phase: PhaseSetup, Kind: KindDirectoryCreation}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseRuntime, Kind: KindDirectoryCreation}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseSetup, Kind: KindMount}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseSetup, Kind: KindDirectoryCreation}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestFilesystemOperation_Errno(t *testing.T) {
	err := FilesystemOperation("stat", "/missing", experimentalsys.ENOENT)

	if !errors.Is(err, experimentalsys.ENOENT) {
		t.Error("errors.Is should reach the errno")
	}
	if errors.Is(err, experimentalsys.EEXIST) {
		t.Error("errors.Is should not match a different errno")
	}
	var errno experimentalsys.Errno
	if !errors.As(err, &errno) || errno != experimentalsys.ENOENT {
		t.Errorf("errors.As errno = %v, want ENOENT", errno)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseSetup, KindMount).
		Op("mount").
		Mapping(1).
		Host("/h").
		Guest("/g").
		Path("/g").
		Cause(cause).
		Detail("expected %s, got %s", "dir", "file").
		Build()

	if err.Phase != PhaseSetup {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseSetup)
	}
	if err.Kind != KindMount {
		t.Errorf("Kind = %v, want %v", err.Kind, KindMount)
	}
	if err.Mapping != 1 {
		t.Errorf("Mapping = %d, want 1", err.Mapping)
	}
	if err.HostPath != "/h" || err.GuestPath != "/g" || err.Path != "/g" {
		t.Errorf("paths = %q %q %q", err.HostPath, err.GuestPath, err.Path)
	}
	if err.Detail != "expected dir, got file" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}
}

func TestBuilder_DefaultsToNoMapping(t *testing.T) {
	if got := New(PhaseConfig, KindConfig).Build().Mapping; got != NoMapping {
		t.Errorf("Mapping = %d, want NoMapping", got)
	}
}

func TestWithMapping(t *testing.T) {
	base := DirectoryCreation("/a", experimentalsys.ENOTDIR)
	annotated := WithMapping(base, 2, "/host", "/a/b")

	if annotated.Mapping != 2 {
		t.Errorf("Mapping = %d, want 2", annotated.Mapping)
	}
	if annotated.Kind != KindDirectoryCreation {
		t.Errorf("Kind = %v, want directory_creation", annotated.Kind)
	}
	if annotated.HostPath != "/host" || annotated.GuestPath != "/a/b" {
		t.Errorf("paths = %q %q", annotated.HostPath, annotated.GuestPath)
	}
	if base.Mapping != NoMapping {
		t.Error("WithMapping must not modify its input")
	}
	if !errors.Is(annotated, experimentalsys.ENOTDIR) {
		t.Error("cause lost")
	}

	plain := WithMapping(errors.New("boom"), 0, "/h", "/g")
	if plain.Kind != KindMount {
		t.Errorf("plain error Kind = %v, want mount", plain.Kind)
	}
}
