package engine

import (
	"github.com/tetratelabs/wazero/api"
)

// Plugin module exports.
const (
	ExportMemory       = "memory"
	ExportDescriptor   = "lv2_descriptor"
	ExportInstantiate  = "lv2_instantiate"
	ExportConnectPort  = "lv2_connect_port"
	ExportActivate     = "lv2_activate"
	ExportRun          = "lv2_run"
	ExportDeactivate   = "lv2_deactivate"
	ExportCleanup      = "lv2_cleanup"
	ExportAlloc        = "lv2_alloc"
	ExportStateSave    = "lv2_state_save"
	ExportStateRestore = "lv2_state_restore"

	HostModule        = "lv2"
	HostStateStore    = "state_store"
	HostStateRetrieve = "state_retrieve"
)

const (
	maxCStringLen    = 1 << 16
	retrieveNotFound = -1
)

const (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

// exportSignatures lists every function the host may call, with its
// expected core signature.
var exportSignatures = map[string]signature{
	ExportDescriptor:   {[]api.ValueType{i32}, []api.ValueType{i32}},
	ExportInstantiate:  {[]api.ValueType{i32, f64, i32, i32}, []api.ValueType{i32}},
	ExportConnectPort:  {[]api.ValueType{i32, i32, i32}, nil},
	ExportActivate:     {[]api.ValueType{i32}, nil},
	ExportRun:          {[]api.ValueType{i32, i32}, nil},
	ExportDeactivate:   {[]api.ValueType{i32}, nil},
	ExportCleanup:      {[]api.ValueType{i32}, nil},
	ExportAlloc:        {[]api.ValueType{i32}, []api.ValueType{i32}},
	ExportStateSave:    {[]api.ValueType{i32, i32}, []api.ValueType{i32}},
	ExportStateRestore: {[]api.ValueType{i32, i32}, []api.ValueType{i32}},
}

// RequiredExports must be present for a module to load.
var RequiredExports = []string{
	ExportDescriptor,
	ExportInstantiate,
	ExportConnectPort,
	ExportRun,
	ExportCleanup,
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
