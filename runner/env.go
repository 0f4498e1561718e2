package runner

import (
	"crypto/rand"
	"io"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/experimental/sysfs"

	"github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs"
)

// MapDir exposes Target of the composed filesystem under the preopen name
// Alias.
type MapDir struct {
	Alias  string
	Target string
}

type envVar struct {
	key   string
	value string
}

// EnvBuilder collects everything a WASI program is started with.
// It is not safe for concurrent use.
type EnvBuilder struct {
	fs       experimentalsys.FS
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	program  string
	args     []string
	env      []envVar
	preopens []string
	mapDirs  []MapDir
}

// NewEnvBuilder starts a builder for program. The program name is the
// first argument the guest sees.
func NewEnvBuilder(program string) *EnvBuilder {
	return &EnvBuilder{program: program}
}

// Program returns the program name.
func (b *EnvBuilder) Program() string { return b.program }

// AddPreopenDir preopens the guest directory p. Preopening the same
// directory twice has no effect.
func (b *EnvBuilder) AddPreopenDir(p string) error {
	if p == "" {
		return errors.InvalidInput(errors.PhaseSetup, "empty preopen path")
	}
	p = vfs.Absolute(p)
	for _, existing := range b.preopens {
		if existing == p {
			return nil
		}
	}
	b.preopens = append(b.preopens, p)
	return nil
}

// AddMapDir preopens target under the name alias. A later mapping for the
// same alias replaces the earlier one.
func (b *EnvBuilder) AddMapDir(alias, target string) error {
	if alias == "" || target == "" {
		return errors.InvalidInput(errors.PhaseSetup, "map dir needs an alias and a target")
	}
	target = vfs.Absolute(target)
	for i := range b.mapDirs {
		if b.mapDirs[i].Alias == alias {
			b.mapDirs[i].Target = target
			return nil
		}
	}
	b.mapDirs = append(b.mapDirs, MapDir{Alias: alias, Target: target})
	return nil
}

// SetFS installs the composed filesystem.
func (b *EnvBuilder) SetFS(fsys experimentalsys.FS) { b.fs = fsys }

// FS returns the composed filesystem, or nil before SetFS.
func (b *EnvBuilder) FS() experimentalsys.FS { return b.fs }

// AddArg appends one argument.
func (b *EnvBuilder) AddArg(arg string) { b.args = append(b.args, arg) }

// AddArgs appends args in order.
func (b *EnvBuilder) AddArgs(args ...string) { b.args = append(b.args, args...) }

// AddEnv sets key. Setting an existing key replaces its value in place.
func (b *EnvBuilder) AddEnv(key, value string) {
	for i := range b.env {
		if b.env[i].key == key {
			b.env[i].value = value
			return
		}
	}
	b.env = append(b.env, envVar{key: key, value: value})
}

// AddEnvs sets every variable of vars, in key order.
func (b *EnvBuilder) AddEnvs(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.AddEnv(k, vars[k])
	}
}

// Args returns the program name followed by the arguments.
func (b *EnvBuilder) Args() []string {
	return append([]string{b.program}, b.args...)
}

// Env returns the environment as KEY=VALUE strings, in insertion order.
func (b *EnvBuilder) Env() []string {
	out := make([]string, len(b.env))
	for i, v := range b.env {
		out[i] = v.key + "=" + v.value
	}
	return out
}

// Preopens returns the preopened guest directories in order.
func (b *EnvBuilder) Preopens() []string {
	return append([]string(nil), b.preopens...)
}

// MapDirs returns the map dirs in order.
func (b *EnvBuilder) MapDirs() []MapDir {
	return append([]MapDir(nil), b.mapDirs...)
}

func (b *EnvBuilder) WithStdin(r io.Reader) *EnvBuilder {
	b.stdin = r
	return b
}

func (b *EnvBuilder) WithStdout(w io.Writer) *EnvBuilder {
	b.stdout = w
	return b
}

func (b *EnvBuilder) WithStderr(w io.Writer) *EnvBuilder {
	b.stderr = w
	return b
}

// ModuleConfig builds the wazero module configuration. The composed
// filesystem is mounted at "/", and every other preopen and map dir is
// mounted as a view of it.
func (b *EnvBuilder) ModuleConfig() (wazero.ModuleConfig, error) {
	if b.fs == nil {
		return nil, errors.NotInitialized(errors.PhaseSetup, "filesystem")
	}

	// wazero keys mounts by cleaned guest path, so "." and "/" would share
	// one preopen. The first mount for a key wins.
	var fsConfig wazero.FSConfig = wazero.NewFSConfig()
	mounted := make(map[string]struct{})
	mount := func(fsys experimentalsys.FS, guest string) {
		key := strings.Trim(vfs.Absolute(guest), "/")
		if _, ok := mounted[key]; ok {
			return
		}
		mounted[key] = struct{}{}
		fsConfig = fsConfig.(sysfs.FSConfig).WithSysFSMount(fsys, guest)
	}
	mount(b.fs, vfs.Root)
	for _, p := range b.preopens {
		if p != vfs.Root {
			mount(vfs.Sub(b.fs, p), p)
		}
	}
	for _, m := range b.mapDirs {
		mount(vfs.Sub(b.fs, m.Target), m.Alias)
	}

	cfg := wazero.NewModuleConfig().
		WithName(b.program).
		WithArgs(b.Args()...).
		WithFSConfig(fsConfig).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)

	for _, v := range b.env {
		cfg = cfg.WithEnv(v.key, v.value)
	}
	if b.stdin != nil {
		cfg = cfg.WithStdin(b.stdin)
	}
	if b.stdout != nil {
		cfg = cfg.WithStdout(b.stdout)
	}
	if b.stderr != nil {
		cfg = cfg.WithStderr(b.stderr)
	}
	return cfg, nil
}
