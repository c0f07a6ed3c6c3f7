package engine

import (
	"context"
	"crypto/rand"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// WASIModule is the import module of WASI preview1. Plugins built with a
// WASI toolchain import it for stdio, clocks and random.
const WASIModule = wasi_snapshot_preview1.ModuleName

// wasiInitialize is the reactor entry point, run once per instance when
// exported.
const wasiInitialize = "_initialize"

// initWASI instantiates WASI preview1 unless the runtime already has it.
// Callers hold hostInitMu.
func (e *WazeroEngine) initWASI(ctx context.Context) error {
	if e.runtime.Module(WASIModule) != nil {
		return nil
	}
	_, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime)
	return err
}

// guestOutput routes a guest's stdout and stderr to the engine logger.
type guestOutput struct {
	stdout *zapio.Writer
	stderr *zapio.Writer
}

func newGuestOutput() *guestOutput {
	l := Logger()
	return &guestOutput{
		stdout: &zapio.Writer{Log: l.With(zap.String("stream", "stdout")), Level: zap.DebugLevel},
		stderr: &zapio.Writer{Log: l.With(zap.String("stream", "stderr")), Level: zap.WarnLevel},
	}
}

func (o *guestOutput) moduleConfig() wazero.ModuleConfig {
	// anonymous for parallel instantiation
	return wazero.NewModuleConfig().
		WithName("").
		WithStdout(o.stdout).
		WithStderr(o.stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithStartFunctions(wasiInitialize)
}

// Close flushes any partial line.
func (o *guestOutput) Close() error {
	err := o.stdout.Close()
	if e := o.stderr.Close(); err == nil {
		err = e
	}
	return err
}
