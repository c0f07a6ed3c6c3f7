// Package engine runs WebAssembly plugin binaries on wazero.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns a wazero runtime and the "lv2" host module
//	WazeroModule   - A compiled plugin binary with validated exports
//	WazeroInstance - One instantiation with its own linear memory
//
// # Plugin ABI
//
// A plugin module exports its memory and these functions:
//
//	lv2_descriptor(i32 index) -> i32            URI of descriptor index, 0 ends
//	lv2_instantiate(i32, f64, i32, i32) -> i32  descriptor URI, rate, bundle, features
//	lv2_connect_port(i32 h, i32 port, i32 ptr)
//	lv2_run(i32 h, i32 frames)
//	lv2_cleanup(i32 h)
//
// and optionally lv2_activate, lv2_deactivate, lv2_alloc(i32) -> i32,
// lv2_state_save(i32 h, i32 cb) -> i32 and lv2_state_restore(i32 h, i32 cb) -> i32.
//
// Strings are NUL-terminated. The feature array is a sequence of
// (uri_ptr, 0) pairs of i32 ended by (0, 0). Port buffers hold
// little-endian f32 samples.
//
// # Host Module
//
// Modules may import two functions from the "lv2" module:
//
//	state_store(cb, key_ptr, value_ptr, size, type_ptr, flags) -> status
//	state_retrieve(cb, key_ptr, out_ptr, cap) -> size or -1
//
// cb is the handle the host passed to lv2_state_save or lv2_state_restore;
// BindStateHandler maps it to a StateHandler for the duration of the call.
//
// Imports from wasi_snapshot_preview1 are also accepted. A module exporting
// _initialize has it run once per instance, and guest stdout and stderr are
// written to the engine logger.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
package engine
