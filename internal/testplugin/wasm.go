// Package testplugin provides plugin binaries and descriptors for tests.
package testplugin

import (
	"github.com/wippyai/lv2-runtime/internal/wasmbin"
	"github.com/wippyai/lv2-runtime/lv2"
)

// WasmGainURI is the plugin URI GainWasm uses when none is given.
const WasmGainURI = "http://example.org/wasm-gain"

// State keys of the wasm gain plugin.
const (
	WasmRunsKey = "http://example.org/wasm-gain#runs"
	WasmGainKey = "http://example.org/wasm-gain#gain"
)

// Guest memory layout.
const (
	uriAddr    = 16
	handleAddr = 64
	runsKey    = 128
	gainKey    = 192
	intType    = 256
	floatType  = 320
	heapStart  = 1024

	// handle field offsets
	offActive   = 12
	offRuns     = 16
	offLastGain = 24
)

var i32 = []wasmbin.ValType{wasmbin.I32}

func types(ts ...wasmbin.ValType) []wasmbin.ValType { return ts }

// wasmOptions selects which exports the gain module gets.
type wasmOptions struct {
	uri     string
	noRun   bool
	noState bool
	empty   bool
}

// GainWasm returns a module with one plugin, uri, that multiplies input
// port 1 by control port 0 into output port 2. It counts runs and keeps the
// last gain, both saved as state. Instantiation is refused below 1 Hz.
func GainWasm(uri string) []byte {
	return buildGain(wasmOptions{uri: uri})
}

// StatelessGainWasm is GainWasm without the state exports.
func StatelessGainWasm(uri string) []byte {
	return buildGain(wasmOptions{uri: uri, noState: true})
}

// MissingRunWasm is GainWasm without lv2_run.
func MissingRunWasm(uri string) []byte {
	return buildGain(wasmOptions{uri: uri, noRun: true})
}

// EmptyWasm is a valid module whose descriptor list is empty.
func EmptyWasm() []byte {
	return buildGain(wasmOptions{uri: WasmGainURI, empty: true})
}

func buildGain(o wasmOptions) []byte {
	m := wasmbin.New()
	store := m.Import("lv2", "state_store", types(wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32), i32)
	retrieve := m.Import("lv2", "state_retrieve", types(wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32), i32)
	heap := m.Global(true, heapStart)

	m.Memory(2, "memory").
		CString(uriAddr, o.uri).
		CString(runsKey, WasmRunsKey).
		CString(gainKey, WasmGainKey).
		CString(intType, lv2.AtomInt).
		CString(floatType, lv2.AtomFloat)

	descriptor := wasmbin.NewCode().
		LocalGet(0).I32Eqz().IfResult(wasmbin.I32).I32Const(uriAddr).Else().I32Const(0).End()
	if o.empty {
		descriptor = wasmbin.NewCode().I32Const(0)
	}
	m.ExportFunc("lv2_descriptor", m.Func(i32, i32, nil, descriptor))

	// bump allocator rounding to 8 bytes
	m.ExportFunc("lv2_alloc", m.Func(i32, i32, nil, wasmbin.NewCode().
		GlobalGet(heap).
		GlobalGet(heap).LocalGet(0).I32Const(7).I32Add().I32Const(-8).I32And().I32Add().GlobalSet(heap)))

	m.ExportFunc("lv2_instantiate", m.Func(types(wasmbin.I32, wasmbin.F64, wasmbin.I32, wasmbin.I32), i32, nil, wasmbin.NewCode().
		LocalGet(1).F64Const(1).F64Lt().If().I32Const(0).Return().End().
		I32Const(handleAddr)))

	m.ExportFunc("lv2_connect_port", m.Func(types(wasmbin.I32, wasmbin.I32, wasmbin.I32), nil, nil, wasmbin.NewCode().
		LocalGet(1).I32Const(3).I32LtU().If().
		LocalGet(0).LocalGet(1).I32Const(2).I32Shl().I32Add().LocalGet(2).I32Store(0).
		End()))

	m.ExportFunc("lv2_activate", m.Func(i32, nil, nil, wasmbin.NewCode().
		LocalGet(0).I32Const(1).I32Store(offActive)))
	m.ExportFunc("lv2_deactivate", m.Func(i32, nil, nil, wasmbin.NewCode().
		LocalGet(0).I32Const(0).I32Store(offActive)))

	if !o.noRun {
		// locals: 2 frame, 3 gain, 4 in, 5 out
		run := wasmbin.NewCode().
			LocalGet(0).I32Load(0).I32Eqz().If().Return().End().
			LocalGet(0).I32Load(0).F32Load(0).LocalSet(3).
			LocalGet(0).I32Load(4).LocalSet(4).
			LocalGet(0).I32Load(8).LocalSet(5).
			LocalGet(4).I32Eqz().If().Return().End().
			LocalGet(5).I32Eqz().If().Return().End().
			Block().Loop().
			LocalGet(2).LocalGet(1).I32GeU().BrIf(1).
			LocalGet(5).LocalGet(2).I32Const(2).I32Shl().I32Add().
			LocalGet(4).LocalGet(2).I32Const(2).I32Shl().I32Add().F32Load(0).
			LocalGet(3).F32Mul().
			F32Store(0).
			LocalGet(2).I32Const(1).I32Add().LocalSet(2).
			Br(0).
			End().End().
			LocalGet(0).LocalGet(0).I32Load(offRuns).I32Const(1).I32Add().I32Store(offRuns).
			LocalGet(0).LocalGet(3).F32Store(offLastGain)
		m.ExportFunc("lv2_run", m.Func(types(wasmbin.I32, wasmbin.I32), nil,
			types(wasmbin.I32, wasmbin.F32, wasmbin.I32, wasmbin.I32), run))
	}

	m.ExportFunc("lv2_cleanup", m.Func(i32, nil, nil, wasmbin.NewCode()))

	if !o.noState {
		flags := int32(lv2.StateIsPOD | lv2.StateIsPortable)
		save := wasmbin.NewCode().
			LocalGet(1).I32Const(runsKey).LocalGet(0).I32Const(offRuns).I32Add().I32Const(4).I32Const(intType).I32Const(flags).Call(store).
			LocalTee(2).If().LocalGet(2).Return().End().
			LocalGet(1).I32Const(gainKey).LocalGet(0).I32Const(offLastGain).I32Add().I32Const(4).I32Const(floatType).I32Const(flags).Call(store)
		m.ExportFunc("lv2_state_save", m.Func(types(wasmbin.I32, wasmbin.I32), i32, i32, save))

		noProperty := int32(lv2.StateErrNoProperty)
		restore := wasmbin.NewCode().
			LocalGet(1).I32Const(runsKey).LocalGet(0).I32Const(offRuns).I32Add().I32Const(4).Call(retrieve).
			I32Const(4).I32Ne().If().I32Const(noProperty).Return().End().
			LocalGet(1).I32Const(gainKey).LocalGet(0).I32Const(offLastGain).I32Add().I32Const(4).Call(retrieve).
			I32Const(4).I32Ne().If().I32Const(noProperty).Return().End().
			I32Const(0)
		m.ExportFunc("lv2_state_restore", m.Func(types(wasmbin.I32, wasmbin.I32), i32, nil, restore))
	}

	return m.Encode()
}
