package runner

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/errors"
)

// Config tunes the runtime Run creates.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32
	// CloseOnContextDone stops the guest when ctx is canceled.
	CloseOnContextDone bool
}

// Run executes the WASI command module wasm with the environment collected
// on b and returns the guest's exit code.
func Run(ctx context.Context, wasm []byte, b *EnvBuilder) (uint32, error) {
	return RunWithConfig(ctx, wasm, b, nil)
}

// RunWithConfig is Run with runtime settings.
func RunWithConfig(ctx context.Context, wasm []byte, b *EnvBuilder, cfg *Config) (uint32, error) {
	modConfig, err := b.ModuleConfig()
	if err != nil {
		return 0, err
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(cfg.CloseOnContextDone)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer r.Close(ctx)

	if _, err := InstantiateWASI(ctx, r); err != nil {
		return 0, errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, err, "instantiate WASI")
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, err, "compile module")
	}

	Logger().Info("Running program",
		zap.String("program", b.Program()),
		zap.Strings("args", b.Args()[1:]),
		zap.Strings("preopens", b.Preopens()),
	)

	mod, err := r.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		if exitErr, ok := err.(*sys.ExitError); ok {
			code := exitErr.ExitCode()
			Logger().Info("Program exited", zap.String("program", b.Program()), zap.Uint32("exit_code", code))
			return code, nil
		}
		return 0, errors.Instantiation(err)
	}
	defer mod.Close(ctx)

	Logger().Info("Program exited", zap.String("program", b.Program()), zap.Uint32("exit_code", 0))
	return 0, nil
}
