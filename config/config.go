// Package config loads run configuration files for cmd/run.
//
// A configuration file is YAML:
//
//	program: python
//	package: ./python.tar.zst
//	args: ["-c", "print('hi')"]
//	env:
//	  PYTHONHOME: /lib/python
//	forward_host_env: false
//	mapped_dirs:
//	  - host: ./work
//	    guest: /work
//	  - ./data:/data:ro
//	logging:
//	  level: debug
//	  format: console
//
// Mapped directories take either the mapping form or the "host:guest[:ro]"
// shorthand accepted by --mapdir.
package config

import (
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	wasivfs "github.com/wippyai/wasi-vfs"
	"github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/runner"
)

// Config is a complete run configuration.
type Config struct {
	Env            map[string]string `yaml:"env"`
	Program        string            `yaml:"program"`
	Wasm           string            `yaml:"wasm"`
	Package        string            `yaml:"package"`
	Args           []string          `yaml:"args"`
	MappedDirs     []MappedDir       `yaml:"mapped_dirs"`
	Logging        LoggingConfig     `yaml:"logging"`
	Runtime        RuntimeConfig     `yaml:"runtime"`
	ForwardHostEnv bool              `yaml:"forward_host_env"`
}

// MappedDir is one host directory exposed to the guest.
type MappedDir struct {
	Host     string `yaml:"host"`
	Guest    string `yaml:"guest"`
	ReadOnly bool   `yaml:"read_only"`
}

// LoggingConfig selects the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RuntimeConfig tunes the wazero runtime.
type RuntimeConfig struct {
	MemoryLimitPages   uint32 `yaml:"memory_limit_pages"`
	CloseOnContextDone bool   `yaml:"close_on_context_done"`
}

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: FormatConsole,
		},
		Runtime: RuntimeConfig{
			CloseOnContextDone: true,
		},
	}
}

// Load reads and validates the configuration file at path. Values missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config("read config file", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, or returns Default when path is empty or does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Config("parse config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnmarshalYAML accepts both the mapping form and the "host:guest[:ro]"
// shorthand.
func (m *MappedDir) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := wasivfs.ParseMappedDirectory(value.Value)
		if err != nil {
			return err
		}
		*m = MappedDir{Host: parsed.Host, Guest: parsed.Guest, ReadOnly: parsed.ReadOnly}
		return nil
	}

	type plain MappedDir
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = MappedDir(p)
	return nil
}

// Validate checks mapped directories and logging settings.
func (c *Config) Validate() error {
	for i, m := range c.MappedDirs {
		if m.Host == "" || m.Guest == "" {
			return errors.New(errors.PhaseConfig, errors.KindConfig).
				Mapping(i).
				Host(m.Host).
				Guest(m.Guest).
				Detail("mapped directory needs both host and guest").
				Build()
		}
	}

	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return errors.Config("invalid log level", err)
		}
	}
	switch c.Logging.Format {
	case "", FormatConsole, FormatJSON:
	default:
		return errors.New(errors.PhaseConfig, errors.KindConfig).
			Detail("unknown log format %q (want %s or %s)", c.Logging.Format, FormatConsole, FormatJSON).
			Build()
	}
	return nil
}

// MappedDirectories converts the mapped directories for the runner.
func (c *Config) MappedDirectories() []wasivfs.MappedDirectory {
	out := make([]wasivfs.MappedDirectory, len(c.MappedDirs))
	for i, m := range c.MappedDirs {
		out[i] = wasivfs.MappedDirectory{Host: m.Host, Guest: m.Guest, ReadOnly: m.ReadOnly}
	}
	return out
}

// Options builds runner options. hostEnv is only forwarded when the
// configuration asks for it.
func (c *Config) Options(hostEnv []string) *runner.Options {
	opts := &runner.Options{
		Args:           append([]string(nil), c.Args...),
		Env:            make(map[string]string, len(c.Env)),
		MappedDirs:     c.MappedDirectories(),
		ForwardHostEnv: c.ForwardHostEnv,
	}
	for k, v := range c.Env {
		opts.Env[k] = v
	}
	if c.ForwardHostEnv {
		opts.HostEnv = hostEnv
	}
	return opts
}

// RunnerConfig returns the runtime settings.
func (c *Config) RunnerConfig() *runner.Config {
	return &runner.Config{
		MemoryLimitPages:   c.Runtime.MemoryLimitPages,
		CloseOnContextDone: c.Runtime.CloseOnContextDone,
	}
}
