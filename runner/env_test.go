package runner

import (
	"errors"
	"testing"

	vfserrors "github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs/memfs"
	"github.com/wippyai/wasi-vfs/vfs/pkgfs"
)

func TestEnvBuilder_Args(t *testing.T) {
	b := NewEnvBuilder("prog")
	if got := b.Args(); !equalStrings(got, []string{"prog"}) {
		t.Errorf("Args = %v", got)
	}

	b.AddArg("one")
	b.AddArgs("two", "three")
	if got := b.Args(); !equalStrings(got, []string{"prog", "one", "two", "three"}) {
		t.Errorf("Args = %v", got)
	}
}

func TestEnvBuilder_Env(t *testing.T) {
	b := NewEnvBuilder("prog")
	b.AddEnv("A", "1")
	b.AddEnv("B", "2")
	b.AddEnv("A", "3")
	b.AddEnvs(map[string]string{"D": "4", "C": "5"})

	want := []string{"A=3", "B=2", "C=5", "D=4"}
	if got := b.Env(); !equalStrings(got, want) {
		t.Errorf("Env = %v, want %v", got, want)
	}
}

func TestEnvBuilder_Preopens(t *testing.T) {
	b := NewEnvBuilder("prog")

	if err := b.AddPreopenDir(""); err == nil {
		t.Fatal("expected an error for an empty preopen")
	} else {
		var e *vfserrors.Error
		if !errors.As(err, &e) || e.Kind != vfserrors.KindInvalidInput {
			t.Errorf("expected an invalid input error, got %v", err)
		}
	}

	for _, p := range []string{"/data", "data", "/data/", "/", "."} {
		if err := b.AddPreopenDir(p); err != nil {
			t.Fatalf("AddPreopenDir(%q) failed: %v", p, err)
		}
	}
	if got := b.Preopens(); !equalStrings(got, []string{"/data", "/"}) {
		t.Errorf("Preopens = %v", got)
	}
}

func TestEnvBuilder_MapDirs(t *testing.T) {
	b := NewEnvBuilder("prog")

	if err := b.AddMapDir("", "/"); err == nil {
		t.Error("expected an error for an empty alias")
	}
	if err := b.AddMapDir(".", "/"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddMapDir("cache", "var/cache"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddMapDir(".", "/tmp"); err != nil {
		t.Fatal(err)
	}

	got := b.MapDirs()
	want := []MapDir{{Alias: ".", Target: "/tmp"}, {Alias: "cache", Target: "/var/cache"}}
	if len(got) != len(want) {
		t.Fatalf("MapDirs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MapDirs[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnvBuilder_ModuleConfig(t *testing.T) {
	b := NewEnvBuilder("prog")
	if _, err := b.ModuleConfig(); err == nil {
		t.Fatal("expected an error without a filesystem")
	} else {
		var e *vfserrors.Error
		if !errors.As(err, &e) || e.Kind != vfserrors.KindNotInitialized {
			t.Errorf("expected a not initialized error, got %v", err)
		}
	}

	if err := Prepare(nil, nil, b); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPreopenDir("/tmp"); err != nil {
		t.Fatal(err)
	}
	cfg, err := b.ModuleConfig()
	if err != nil {
		t.Fatalf("ModuleConfig failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a module config")
	}
}

func TestOptions_PrepareEnv(t *testing.T) {
	wasi := pkgfs.WasiAnnotation{
		MainArgs: []string{"hard", "coded", "args"},
		Env:      []string{"HARD_CODED=env-vars"},
	}
	opts := Options{
		Args: []string{"extra", "args"},
		Env:  map[string]string{"EXTRA": "envs"},
	}

	b := NewEnvBuilder("program")
	if err := opts.PrepareEnv(b, nil, wasi); err != nil {
		t.Fatalf("PrepareEnv failed: %v", err)
	}

	if got, want := b.Args(), []string{"program", "hard", "coded", "args", "extra", "args"}; !equalStrings(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
	if got, want := b.Env(), []string{"HARD_CODED=env-vars", "EXTRA=envs"}; !equalStrings(got, want) {
		t.Errorf("Env = %v, want %v", got, want)
	}
}

func TestOptions_ForwardHostEnv(t *testing.T) {
	wasi := pkgfs.WasiAnnotation{Env: []string{"SHARED=package", "ONLY_PACKAGE"}}
	host := []string{"SHARED=host", "HOME=/home/user", "=broken", "noequals"}

	tests := []struct {
		name    string
		forward bool
		want    []string
	}{
		{"disabled", false, []string{"SHARED=user", "ONLY_PACKAGE="}},
		{"enabled", true, []string{"SHARED=user", "ONLY_PACKAGE=", "HOME=/home/user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				Env:            map[string]string{"SHARED": "user"},
				HostEnv:        host,
				ForwardHostEnv: tt.forward,
			}
			b := NewEnvBuilder("prog")
			if err := opts.PrepareEnv(b, nil, wasi); err != nil {
				t.Fatal(err)
			}
			if got := b.Env(); !equalStrings(got, tt.want) {
				t.Errorf("Env = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptions_CustomRoot(t *testing.T) {
	root := memfs.NewRoot()
	if errno := root.Mkdir("/marker", 0o755); errno != 0 {
		t.Fatal(errno)
	}

	opts := Options{Root: root}
	b := NewEnvBuilder("prog")
	if err := opts.PrepareEnv(b, nil, pkgfs.WasiAnnotation{}); err != nil {
		t.Fatal(err)
	}
	if _, errno := b.FS().Stat("/marker"); errno != 0 {
		t.Errorf("expected the supplied root to be used, got %v", errno)
	}
}

func TestPrepareWithRoot_NilArguments(t *testing.T) {
	if err := PrepareWithRoot(nil, nil, nil, NewEnvBuilder("prog")); err == nil {
		t.Error("expected an error for a nil root")
	}
	if err := PrepareWithRoot(memfs.NewRoot(), nil, nil, nil); err == nil {
		t.Error("expected an error for a nil builder")
	}
}
