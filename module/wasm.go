package module

import (
	"context"
	"os"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/engine"
	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
)

// wasmBackend loads WebAssembly plugin modules on the loader's engine.
type wasmBackend struct {
	loader *Loader
}

func (*wasmBackend) Name() string { return "wasm" }

func (*wasmBackend) Extensions() []string { return []string{".wasm"} }

// Open compiles the module and enumerates its descriptors on a probe
// instance. Each plugin instance later gets a wasm instance of its own.
func (b *wasmBackend) Open(ctx context.Context, path string) (Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ModuleLoad(path, err)
	}
	eng, err := b.loader.wazeroEngine(ctx)
	if err != nil {
		return nil, errors.ModuleLoad(path, err)
	}
	mod, err := eng.LoadModule(ctx, data)
	if err != nil {
		return nil, err
	}

	lib := &wasmLibrary{mod: mod, path: path, logger: b.loader.logger}
	if err := lib.enumerate(ctx); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return lib, nil
}

type wasmLibrary struct {
	mod    *engine.WazeroModule
	logger *zap.Logger
	path   string
	descs  []*lv2.Descriptor
}

func (l *wasmLibrary) enumerate(ctx context.Context) error {
	probe, err := l.mod.Instantiate(ctx)
	if err != nil {
		return errors.ModuleLoad(l.path, err)
	}
	defer probe.Close(ctx)

	for i := uint32(0); i < maxDescriptors; i++ {
		res, err := probe.Call(ctx, engine.ExportDescriptor, uint64(i))
		if err != nil {
			return errors.ModuleLoad(l.path, err)
		}
		ptr := api.DecodeU32(res[0])
		if ptr == 0 {
			return nil
		}
		uri, err := probe.Memory().ReadCString(ptr)
		if err != nil {
			return errors.ModuleLoad(l.path, err)
		}
		l.descs = append(l.descs, l.descriptor(i, uri))
	}
	return nil
}

func (l *wasmLibrary) Descriptor(index uint32) *lv2.Descriptor {
	if int(index) >= len(l.descs) {
		return nil
	}
	return l.descs[index]
}

func (l *wasmLibrary) Close(ctx context.Context) error {
	return l.mod.Close(ctx)
}

// descriptor builds the dispatch table for the guest descriptor at index.
func (l *wasmLibrary) descriptor(index uint32, uri string) *lv2.Descriptor {
	d := &lv2.Descriptor{
		URI: uri,
		Instantiate: func(_ *lv2.Descriptor, rate float64, bundlePath string, features lv2.Features) lv2.Handle {
			h, err := l.instantiate(index, rate, bundlePath, features)
			if err != nil {
				l.logger.Error("wasm instantiate failed", zap.String("plugin", uri), zap.Error(err))
				return nil
			}
			if h == nil {
				return nil
			}
			return h
		},
		ConnectPort: func(h lv2.Handle, port uint32, data []float32) {
			if err := h.(*wasmHandle).connect(port, data); err != nil {
				l.logger.Error("wasm connect_port failed", zap.String("plugin", uri), zap.Uint32("port", port), zap.Error(err))
			}
		},
		Run: func(h lv2.Handle, frames uint32) {
			if err := h.(*wasmHandle).run(frames); err != nil {
				l.logger.Error("wasm run failed", zap.String("plugin", uri), zap.Error(err))
			}
		},
		Cleanup: func(h lv2.Handle) {
			if err := h.(*wasmHandle).cleanup(); err != nil {
				l.logger.Warn("wasm cleanup failed", zap.String("plugin", uri), zap.Error(err))
			}
		},
	}
	if l.mod.HasExport(engine.ExportActivate) {
		d.Activate = func(h lv2.Handle) { h.(*wasmHandle).call1(engine.ExportActivate) }
	}
	if l.mod.HasExport(engine.ExportDeactivate) {
		d.Deactivate = func(h lv2.Handle) { h.(*wasmHandle).call1(engine.ExportDeactivate) }
	}
	if l.mod.HasExport(engine.ExportStateSave) && l.mod.HasExport(engine.ExportStateRestore) {
		state := l.stateInterface()
		d.ExtensionData = func(u string) any {
			if u == lv2.StateInterfaceURI {
				return state
			}
			return nil
		}
	} else {
		d.ExtensionData = func(string) any { return nil }
	}
	return d
}

func (l *wasmLibrary) instantiate(index uint32, rate float64, bundlePath string, features lv2.Features) (*wasmHandle, error) {
	ctx := context.Background()
	inst, err := l.mod.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	res, err := inst.Call(ctx, engine.ExportDescriptor, uint64(index))
	if err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}
	desc := api.DecodeU32(res[0])

	var bundlePtr, featPtr uint32
	if inst.Allocator() != nil {
		if bundlePtr, err = inst.WriteCString(ctx, bundlePath); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
		if featPtr, err = writeFeatures(ctx, inst, features); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
	}

	res, err = inst.Call(ctx, engine.ExportInstantiate,
		api.EncodeU32(desc), api.EncodeF64(rate), api.EncodeU32(bundlePtr), api.EncodeU32(featPtr))
	if err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}
	handle := api.DecodeU32(res[0])
	if handle == 0 {
		_ = inst.Close(ctx)
		return nil, nil
	}
	return &wasmHandle{inst: inst, ctx: ctx, handle: handle}, nil
}

// writeFeatures lays out the feature array as (uri, data) address pairs
// terminated by a zero pair. Payloads stay on the host side.
func writeFeatures(ctx context.Context, inst *engine.WazeroInstance, features lv2.Features) (uint32, error) {
	arr, err := inst.AllocBytes(ctx, uint32(len(features)+1)*8)
	if err != nil {
		return 0, err
	}
	mem := inst.Memory()
	for i, f := range features {
		uri, err := inst.WriteCString(ctx, f.URI)
		if err != nil {
			return 0, err
		}
		if err := mem.WriteU32(arr+uint32(i)*8, uri); err != nil {
			return 0, err
		}
		if err := mem.WriteU32(arr+uint32(i)*8+4, 0); err != nil {
			return 0, err
		}
	}
	end := arr + uint32(len(features))*8
	if err := mem.WriteU32(end, 0); err != nil {
		return 0, err
	}
	return arr, mem.WriteU32(end+4, 0)
}

// portBuffer mirrors one connected host buffer in guest memory.
type portBuffer struct {
	data []float32
	ptr  uint32
	cap  uint32
}

// wasmHandle is one plugin instance living in its own wasm instance.
// Connected buffers are copied into guest memory before run and back after.
type wasmHandle struct {
	inst   *engine.WazeroInstance
	ctx    context.Context
	ports  []portBuffer
	stack  [2]uint64
	handle uint32
}

func (h *wasmHandle) connect(port uint32, data []float32) error {
	for uint32(len(h.ports)) <= port {
		h.ports = append(h.ports, portBuffer{})
	}
	b := &h.ports[port]
	b.data = data
	if data == nil {
		_, err := h.inst.Call(h.ctx, engine.ExportConnectPort, api.EncodeU32(h.handle), api.EncodeU32(port), 0)
		return err
	}

	need := uint32(len(data)) * 4
	if need == 0 {
		need = 4
	}
	if need > b.cap {
		if h.inst.Allocator() == nil {
			return errors.Unsupported(errors.PhaseLifecycle, "module does not export "+engine.ExportAlloc)
		}
		ptr, err := h.inst.AllocBytes(h.ctx, need)
		if err != nil {
			return err
		}
		b.ptr, b.cap = ptr, need
	}
	if err := h.inst.Memory().WriteF32s(b.ptr, data); err != nil {
		return err
	}
	_, err := h.inst.Call(h.ctx, engine.ExportConnectPort, api.EncodeU32(h.handle), api.EncodeU32(port), api.EncodeU32(b.ptr))
	return err
}

func (h *wasmHandle) run(frames uint32) error {
	mem := h.inst.Memory()
	for i := range h.ports {
		if b := &h.ports[i]; b.data != nil {
			if err := mem.WriteF32s(b.ptr, b.data); err != nil {
				return err
			}
		}
	}
	if err := h.inst.Call2(h.ctx, engine.ExportRun, h.handle, frames); err != nil {
		return err
	}
	for i := range h.ports {
		if b := &h.ports[i]; b.data != nil {
			if err := mem.ReadF32s(b.ptr, b.data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *wasmHandle) call1(name string) {
	h.stack[0] = api.EncodeU32(h.handle)
	_ = h.inst.CallWithStack(h.ctx, name, h.stack[:1])
}

func (h *wasmHandle) cleanup() error {
	h.stack[0] = api.EncodeU32(h.handle)
	err := h.inst.CallWithStack(h.ctx, engine.ExportCleanup, h.stack[:1])
	h.ports = nil
	return errors.Join(err, h.inst.Close(h.ctx))
}
