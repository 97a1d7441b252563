// Package wasmexec implements the "wasm_probe" step executor: the
// concrete plugging point for an emulator-style analysis tool. Its
// internal VM/fuzzer loop is deliberately out of scope here — this
// executor only loads a WASM module from the submission's file bundle,
// instantiates it under WASI, calls its exported analysis entry point,
// and records the result. A real fuzzer/emulator would sit behind the
// same Execute contract.
package wasmexec

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/twizmwazin/pap/pkg/runtime"
	"github.com/twizmwazin/pap/pkg/store"
	"go.uber.org/zap"
)

// Executor is the "wasm_probe" step executor. One Executor instance
// owns a single wazero.Runtime shared across step invocations; modules
// are compiled fresh per invocation since their bytes come from the
// submission, not from Executor configuration.
type Executor struct {
	runtime wazero.Runtime
	ctx     context.Context
	logger  *zap.Logger
}

// New instantiates the shared wazero runtime (with WASI support) that
// backs every "wasm_probe" step.
func New(logger *zap.Logger) (*Executor, error) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	return &Executor{
		runtime: rt,
		ctx:     ctx,
		logger:  logger.With(zap.String("component", "wasm_probe")),
	}, nil
}

func (*Executor) Name() string { return "wasm_probe" }

// Execute loads the WASM module named by the step's `module` arg
// (a key into the submission's file bundle), instantiates it, calls
// its exported `analyze` function with no arguments, and logs the
// i32 result it returns.
func (e *Executor) Execute(rt *runtime.StepRuntime) error {
	moduleArg, ok := rt.GetArg("module")
	if !ok {
		return store.Executionf("missing `module` argument")
	}
	wasmBytes, ok := rt.GetFile(moduleArg)
	if !ok {
		return store.Executionf("module file %q not found in submission", moduleArg)
	}

	compiled, err := e.runtime.CompileModule(e.ctx, wasmBytes)
	if err != nil {
		return store.Executionf("compile module %q: %v", moduleArg, err)
	}
	defer compiled.Close(e.ctx)

	instanceName := uuid.NewString()
	cfg := wazero.NewModuleConfig().WithName(instanceName).WithStartFunctions("_initialize")
	mod, err := e.runtime.InstantiateModule(e.ctx, compiled, cfg)
	if err != nil {
		return store.Executionf("instantiate module %q: %v", moduleArg, err)
	}
	defer mod.Close(e.ctx)

	analyze := mod.ExportedFunction("analyze")
	if analyze == nil {
		return store.Executionf("module %q does not export `analyze`", moduleArg)
	}

	results, err := analyze.Call(e.ctx)
	if err != nil {
		return store.Executionf("analyze() trapped: %v", err)
	}

	var code uint64
	if len(results) > 0 {
		code = results[0]
	}
	rt.Log(fmt.Sprintf("analyze() returned %d", code))
	if code != 0 {
		return store.Executionf("analyze() returned nonzero code %d", code)
	}
	return nil
}

// Close releases the shared wazero runtime. Call once at process
// shutdown.
func (e *Executor) Close() error {
	return e.runtime.Close(e.ctx)
}
