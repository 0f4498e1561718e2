package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"strings"

	"github.com/spf13/pflag"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"golang.org/x/term"
	"go.uber.org/zap"

	wasivfs "github.com/wippyai/wasi-vfs"
	"github.com/wippyai/wasi-vfs/config"
	"github.com/wippyai/wasi-vfs/runner"
	"github.com/wippyai/wasi-vfs/vfs"
	"github.com/wippyai/wasi-vfs/vfs/pkgfs"
)

type cliFlags struct {
	wasm           string
	pkg            string
	program        string
	configPath     string
	ls             string
	logLevel       string
	logFormat      string
	mapDirs        []string
	env            []string
	guestArgs      []string
	forwardHostEnv bool
	interactive    bool
	help           bool
}

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(code))
}

func parseFlags(argv []string) (*cliFlags, *pflag.FlagSet, error) {
	var f cliFlags

	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&f.wasm, "wasm", "", "path to a WASI command module")
	flagSet.StringVar(&f.pkg, "package", "", "path to a package archive (tar or zip, optionally zstd, gzip or lz4 compressed)")
	flagSet.StringVar(&f.program, "program", "", "program name the guest sees as argv[0]")
	flagSet.StringVar(&f.configPath, "config", "", "YAML run configuration")
	flagSet.StringArrayVar(&f.mapDirs, "mapdir", nil, "map a host directory: host:guest[:ro] (repeatable)")
	flagSet.StringArrayVar(&f.env, "env", nil, "set a guest environment variable: KEY=VALUE (repeatable)")
	flagSet.BoolVar(&f.forwardHostEnv, "forward-host-env", false, "forward the host environment to the guest")
	flagSet.StringVar(&f.ls, "ls", "", "list a directory of the composed filesystem and exit")
	flagSet.BoolVarP(&f.interactive, "interactive", "i", false, "browse the composed filesystem")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&f.logFormat, "log-format", "", "log format (console, json)")
	flagSet.BoolVarP(&f.help, "help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		return nil, flagSet, err
	}
	f.guestArgs = flagSet.Args()
	return &f, flagSet, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: run --wasm <file.wasm> [flags] [-- guest args]")
	fmt.Fprintln(w, "       run --package <pkg.tar.zst> [flags] [-- guest args]")
	fmt.Fprintln(w, "       run --package <pkg.tar.zst> --ls /")
	fmt.Fprintln(w, "       run --package <pkg.tar.zst> -i  (interactive mode)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}

// loadConfig reads the configuration file, if any, and applies flags over it.
func loadConfig(f *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	if f.wasm != "" {
		cfg.Wasm = f.wasm
	}
	if f.pkg != "" {
		cfg.Package = f.pkg
	}
	if f.program != "" {
		cfg.Program = f.program
	}
	if f.forwardHostEnv {
		cfg.ForwardHostEnv = true
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	cfg.Args = append(cfg.Args, f.guestArgs...)

	for _, s := range f.mapDirs {
		m, err := wasivfs.ParseMappedDirectory(s)
		if err != nil {
			return nil, fmt.Errorf("--mapdir: %w", err)
		}
		cfg.MappedDirs = append(cfg.MappedDirs, config.MappedDir{Host: m.Host, Guest: m.Guest, ReadOnly: m.ReadOnly})
	}
	for _, kv := range f.env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--env %q: want KEY=VALUE", kv)
		}
		if cfg.Env == nil {
			cfg.Env = make(map[string]string)
		}
		cfg.Env[k] = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Wasm == "" && cfg.Package == "" {
		return nil, fmt.Errorf("one of --wasm or --package is required")
	}
	return cfg, nil
}

func installLogger(logger *zap.Logger) {
	vfs.SetLogger(logger)
	pkgfs.SetLogger(logger)
	runner.SetLogger(logger)
}

func loadPackage(p string) (*pkgfs.Package, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer file.Close()

	pkg, err := pkgfs.Load(file)
	if err != nil {
		return nil, fmt.Errorf("load package %s: %w", p, err)
	}
	return pkg, nil
}

func programName(cfg *config.Config, pkg *pkgfs.Package) string {
	switch {
	case cfg.Program != "":
		return cfg.Program
	case pkg != nil && pkg.Name() != "":
		return pkg.Name()
	case cfg.Wasm != "":
		return strings.TrimSuffix(path.Base(cfg.Wasm), ".wasm")
	case pkg != nil && pkg.Entrypoint() != "":
		return strings.TrimSuffix(path.Base(pkg.Entrypoint()), ".wasm")
	default:
		return "main"
	}
}

// moduleBytes reads the explicit module from the host or the package
// entrypoint through the composed filesystem.
func moduleBytes(cfg *config.Config, pkg *pkgfs.Package, fsys experimentalsys.FS) ([]byte, error) {
	if cfg.Wasm != "" {
		data, err := os.ReadFile(cfg.Wasm)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return data, nil
	}
	if pkg == nil || pkg.Entrypoint() == "" {
		return nil, fmt.Errorf("package has no entrypoint, use --wasm")
	}
	data, err := vfs.ReadFile(fsys, pkg.Entrypoint())
	if err != nil {
		return nil, fmt.Errorf("read entrypoint: %w", err)
	}
	return data, nil
}

func run(argv []string) (uint32, error) {
	f, flagSet, err := parseFlags(argv)
	if err != nil {
		if err == pflag.ErrHelp {
			printHelp(os.Stdout, flagSet)
			return 0, nil
		}
		printHelp(os.Stderr, flagSet)
		return 0, err
	}
	if f.help {
		printHelp(os.Stdout, flagSet)
		return 0, nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return 0, err
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		return 0, err
	}
	defer func() { _ = logger.Sync() }()
	installLogger(logger)

	var pkg *pkgfs.Package
	if cfg.Package != "" {
		if pkg, err = loadPackage(cfg.Package); err != nil {
			return 0, err
		}
	}

	b := runner.NewEnvBuilder(programName(cfg, pkg)).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	var (
		pkgFS experimentalsys.FS
		wasi  pkgfs.WasiAnnotation
	)
	if pkg != nil {
		pkgFS = pkg.FS
		wasi = pkg.Annotation()
	}
	if err := cfg.Options(os.Environ()).PrepareEnv(b, pkgFS, wasi); err != nil {
		return 0, fmt.Errorf("prepare filesystem: %w", err)
	}

	if f.ls != "" {
		return 0, listDir(os.Stdout, b.FS(), f.ls)
	}

	if f.interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return 0, fmt.Errorf("interactive mode needs a terminal")
		}
		return 0, runInteractive(b.FS(), b.Program())
	}

	wasm, err := moduleBytes(cfg, pkg, b.FS())
	if err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := runner.RunWithConfig(ctx, wasm, b, cfg.RunnerConfig())
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", b.Program(), err)
	}
	return code, nil
}
