package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/lv2"
)

// StateHandler serves the state callbacks a guest makes while its save or
// restore export runs. Keys and types are URIs.
type StateHandler interface {
	Store(key string, value []byte, typ string, flags uint32) lv2.StateStatus
	Retrieve(key string) ([]byte, bool)
}

// callbackTable maps the callback handles passed to guests to handlers.
type callbackTable struct {
	handlers map[uint32]StateHandler
	mu       sync.Mutex
	next     uint32
}

func newCallbackTable() *callbackTable {
	return &callbackTable{handlers: make(map[uint32]StateHandler)}
}

func (t *callbackTable) bind(h StateHandler) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		t.next++
		if t.next == 0 {
			continue
		}
		if _, used := t.handlers[t.next]; !used {
			t.handlers[t.next] = h
			return t.next
		}
	}
}

func (t *callbackTable) release(id uint32) {
	t.mu.Lock()
	delete(t.handlers, id)
	t.mu.Unlock()
}

func (t *callbackTable) get(id uint32) StateHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handlers[id]
}

// BindStateHandler registers h and returns the handle to pass to the guest.
// Call release once the guest export returns.
func (e *WazeroEngine) BindStateHandler(h StateHandler) (handle uint32, release func()) {
	id := e.callbacks.bind(h)
	return id, func() { e.callbacks.release(id) }
}

// InitHost instantiates the "lv2" host module and WASI preview1 for this
// engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitHost(ctx context.Context) error {
	if e.hostInitDone.Load() {
		return nil
	}

	e.hostInitMu.Lock()
	defer e.hostInitMu.Unlock()

	if e.hostInitDone.Load() {
		return nil
	}

	if e.runtime.Module(HostModule) == nil {
		_, err := e.runtime.NewHostModuleBuilder(HostModule).
			NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(e.stateStore),
				[]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}).
			Export(HostStateStore).
			NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(e.stateRetrieve),
				[]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}).
			Export(HostStateRetrieve).
			Instantiate(ctx)
		if err != nil {
			return err
		}
	}
	if err := e.initWASI(ctx); err != nil {
		return err
	}

	e.hostInitDone.Store(true)
	return nil
}

// stateStore implements state_store(cb, key, value, size, type, flags).
func (e *WazeroEngine) stateStore(_ context.Context, mod api.Module, stack []uint64) {
	status := e.doStore(mod, stack)
	stack[0] = api.EncodeI32(int32(status))
}

func (e *WazeroEngine) doStore(mod api.Module, stack []uint64) lv2.StateStatus {
	h := e.callbacks.get(api.DecodeU32(stack[0]))
	if h == nil {
		Logger().Warn("state_store with unknown callback handle", zap.Uint32("handle", api.DecodeU32(stack[0])))
		return lv2.StateErrUnknown
	}
	mem := &WazeroMemory{mem: mod.Memory()}
	key, err := mem.ReadCString(api.DecodeU32(stack[1]))
	if err != nil {
		return lv2.StateErrBadKey
	}
	view, err := mem.Read(api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	if err != nil {
		return lv2.StateErrUnknown
	}
	typ, err := mem.ReadCString(api.DecodeU32(stack[4]))
	if err != nil {
		return lv2.StateErrBadType
	}
	value := append([]byte(nil), view...)
	return h.Store(key, value, typ, api.DecodeU32(stack[5]))
}

// stateRetrieve implements state_retrieve(cb, key, out, cap). It returns the
// value size, writing the value only when it fits, or -1 when absent.
func (e *WazeroEngine) stateRetrieve(_ context.Context, mod api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(e.doRetrieve(mod, stack))
}

func (e *WazeroEngine) doRetrieve(mod api.Module, stack []uint64) int32 {
	h := e.callbacks.get(api.DecodeU32(stack[0]))
	if h == nil {
		return retrieveNotFound
	}
	mem := &WazeroMemory{mem: mod.Memory()}
	key, err := mem.ReadCString(api.DecodeU32(stack[1]))
	if err != nil {
		return retrieveNotFound
	}
	value, ok := h.Retrieve(key)
	if !ok {
		return retrieveNotFound
	}
	if uint32(len(value)) <= api.DecodeU32(stack[3]) {
		if err := mem.Write(api.DecodeU32(stack[2]), value); err != nil {
			return retrieveNotFound
		}
	}
	return int32(len(value))
}
