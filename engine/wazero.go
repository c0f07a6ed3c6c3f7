package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	lv2runtime "github.com/wippyai/lv2-runtime"
	"github.com/wippyai/lv2-runtime/errors"
)

// WazeroEngine compiles and runs plugin modules on a wazero runtime.
type WazeroEngine struct {
	runtime      wazero.Runtime
	callbacks    *callbackTable
	hostInitMu   sync.Mutex
	hostInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, callbacks: newCallbackTable()}, nil
}

// LoadModule compiles a plugin module and checks its exports and imports.
// The returned errors are load errors: KindModuleLoad when the binary is
// unusable and KindMissingEntryPoint when a mandatory export is absent.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.ModuleLoad("", fmt.Errorf("compile failed: %w", err))
	}
	if err := validateModule(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	exports := make(map[string]bool)
	for name := range compiled.ExportedFunctions() {
		exports[name] = true
	}
	Logger().Debug("plugin module compiled", zapExports(exports))

	return &WazeroModule{
		engine:   e,
		runtime:  e.runtime,
		compiled: compiled,
		exports:  exports,
	}, nil
}

func validateModule(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return errors.MissingEntryPoint("", ExportMemory)
	}

	funcs := compiled.ExportedFunctions()
	for _, name := range RequiredExports {
		if _, ok := funcs[name]; !ok {
			return errors.MissingEntryPoint("", name)
		}
	}
	for name, def := range funcs {
		sig, known := exportSignatures[name]
		if !known {
			continue
		}
		if !sameTypes(def.ParamTypes(), sig.params) || !sameTypes(def.ResultTypes(), sig.results) {
			return errors.New(errors.PhaseLoad, errors.KindModuleLoad).
				Value(name).
				Detail("export %q has signature %s, want %s",
					name, formatSig(def.ParamTypes(), def.ResultTypes()), formatSig(sig.params, sig.results)).
				Build()
		}
	}

	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		if mod == WASIModule {
			continue
		}
		if mod != HostModule || (name != HostStateStore && name != HostStateRetrieve) {
			return errors.New(errors.PhaseLoad, errors.KindModuleLoad).
				Value(mod + "." + name).
				Detail("unsupported import %s.%s", mod, name).
				Build()
		}
	}
	return nil
}

func formatSig(params, results []api.ValueType) string {
	name := func(ts []api.ValueType) string {
		s := "("
		for i, t := range ts {
			if i > 0 {
				s += ", "
			}
			s += api.ValueTypeName(t)
		}
		return s + ")"
	}
	return name(params) + " -> " + name(results)
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is a compiled plugin module
type WazeroModule struct {
	engine   *WazeroEngine
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	exports  map[string]bool
}

// Engine returns the engine the module was compiled by.
func (m *WazeroModule) Engine() *WazeroEngine { return m.engine }

// HasExport reports whether the module exports the named function.
func (m *WazeroModule) HasExport(name string) bool { return m.exports[name] }

// ExportNames returns the names of all exported functions, sorted.
func (m *WazeroModule) ExportNames() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates a fresh module instance with its own memory.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	if err := m.engine.InitHost(ctx); err != nil {
		return nil, errors.ModuleLoad("", fmt.Errorf("instantiate host module: %w", err))
	}

	out := newGuestOutput()
	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, out.moduleConfig())
	if err != nil {
		_ = out.Close()
		return nil, errors.ModuleLoad("", fmt.Errorf("instantiate failed: %w", err))
	}

	inst := &WazeroInstance{
		module:   m,
		instance: instance,
		output:   out,
		funcs:    make(map[string]api.Function, len(m.exports)),
		stackBuf: make([]uint64, 4),
	}
	for name := range m.exports {
		inst.funcs[name] = instance.ExportedFunction(name)
	}
	if mem := instance.Memory(); mem != nil {
		inst.memory = &WazeroMemory{mem: mem}
	}
	if fn := inst.funcs[ExportAlloc]; fn != nil {
		inst.alloc = &wazeroAllocator{allocFn: fn, stackBuf: make([]uint64, 1)}
	}
	return inst, nil
}

// Close releases the compiled code.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is one instantiation of a plugin module. It is not safe for
// concurrent use.
type WazeroInstance struct {
	module   *WazeroModule
	instance api.Module
	memory   *WazeroMemory
	alloc    *wazeroAllocator
	output   *guestOutput
	funcs    map[string]api.Function
	stackBuf []uint64
}

// Has reports whether the instance exports the named function.
func (i *WazeroInstance) Has(name string) bool {
	return i.funcs[name] != nil
}

// Call invokes an export and returns its results.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.funcs[name]
	if fn == nil {
		return nil, errors.Unsupported(errors.PhaseLifecycle, "module does not export "+name)
	}
	return fn.Call(ctx, params...)
}

// CallWithStack invokes an export using stack for parameters and results,
// without allocating. stack must be large enough for both.
func (i *WazeroInstance) CallWithStack(ctx context.Context, name string, stack []uint64) error {
	fn := i.funcs[name]
	if fn == nil {
		return errors.Unsupported(errors.PhaseLifecycle, "module does not export "+name)
	}
	return fn.CallWithStack(ctx, stack)
}

// Call2 invokes an export taking two i32 parameters and no results using the
// instance's stack buffer.
func (i *WazeroInstance) Call2(ctx context.Context, name string, a, b uint32) error {
	i.stackBuf[0] = api.EncodeU32(a)
	i.stackBuf[1] = api.EncodeU32(b)
	return i.CallWithStack(ctx, name, i.stackBuf[:2])
}

// Memory returns the instance memory.
func (i *WazeroInstance) Memory() *WazeroMemory { return i.memory }

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Allocator returns the guest allocator, or nil when the module has no
// lv2_alloc export.
func (i *WazeroInstance) Allocator() lv2runtime.Allocator {
	if i.alloc == nil {
		return nil
	}
	return i.alloc
}

// WriteCString copies s into newly allocated guest memory with a trailing
// NUL and returns its address.
func (i *WazeroInstance) WriteCString(ctx context.Context, s string) (uint32, error) {
	if i.alloc == nil {
		return 0, errors.Unsupported(errors.PhaseInstantiate, "module does not export "+ExportAlloc)
	}
	i.alloc.ctx = ctx
	ptr, err := i.alloc.Alloc(uint32(len(s) + 1))
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	if err := i.memory.Write(ptr, buf); err != nil {
		return 0, err
	}
	return ptr, nil
}

// AllocBytes allocates size bytes of zeroed guest memory.
func (i *WazeroInstance) AllocBytes(ctx context.Context, size uint32) (uint32, error) {
	if i.alloc == nil {
		return 0, errors.Unsupported(errors.PhaseInstantiate, "module does not export "+ExportAlloc)
	}
	i.alloc.ctx = ctx
	return i.alloc.Alloc(size)
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	var err error
	if i.instance != nil {
		err = i.instance.Close(ctx)
		i.instance = nil
	}
	if i.output != nil {
		_ = i.output.Close()
		i.output = nil
	}
	// Clear references to help GC
	i.funcs = nil
	i.memory = nil
	i.alloc = nil
	return err
}

// wazeroAllocator implements lv2runtime.Allocator using the guest's
// lv2_alloc export.
type wazeroAllocator struct {
	allocFn  api.Function
	ctx      context.Context
	stackBuf []uint64
}

func (a *wazeroAllocator) Alloc(size uint32) (uint32, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a.stackBuf[0] = api.EncodeU32(size)
	if err := a.allocFn.CallWithStack(ctx, a.stackBuf[:1]); err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(a.stackBuf[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocation of %d bytes failed", size)
	}
	return ptr, nil
}

// WazeroMemory wraps wazero memory to implement lv2runtime.Memory
type WazeroMemory struct {
	mem api.Memory
}

// Read returns a view of guest memory. The view is invalidated when the
// memory grows.
func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	ok := m.mem.WriteUint32Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

// ReadF32s fills dst from little-endian floats at offset.
func (m *WazeroMemory) ReadF32s(offset uint32, dst []float32) error {
	view, err := m.Read(offset, uint32(len(dst))*4)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(view[i*4:]))
	}
	return nil
}

// WriteF32s stores src as little-endian floats at offset.
func (m *WazeroMemory) WriteF32s(offset uint32, src []float32) error {
	view, err := m.Read(offset, uint32(len(src))*4)
	if err != nil {
		return err
	}
	for i, v := range src {
		binary.LittleEndian.PutUint32(view[i*4:], math.Float32bits(v))
	}
	return nil
}

// ReadCString reads a NUL-terminated string.
func (m *WazeroMemory) ReadCString(offset uint32) (string, error) {
	size := m.mem.Size()
	if offset >= size {
		return "", fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	n := size - offset
	if n > maxCStringLen {
		n = maxCStringLen
	}
	view, _ := m.mem.Read(offset, n)
	for i, b := range view {
		if b == 0 {
			return string(view[:i]), nil
		}
	}
	return "", fmt.Errorf("unterminated string at offset %d", offset)
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that WazeroMemory implements lv2runtime.Memory and MemorySizer
var _ lv2runtime.Memory = (*WazeroMemory)(nil)
var _ lv2runtime.MemorySizer = (*WazeroMemory)(nil)

// Compile-time check that wazeroAllocator implements lv2runtime.Allocator
var _ lv2runtime.Allocator = (*wazeroAllocator)(nil)
