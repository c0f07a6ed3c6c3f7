// Package errors provides structured error types for the plugin host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the URI it concerns, the file system path
// involved, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindModuleLoad).
//		Subject("http://example.org/amp").
//		Path("/usr/lib/lv2/amp.lv2/amp.wasm").
//		Detail("compile failed").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.PluginNotFound(uri, path)
//	err := errors.PortIndex(errors.PhaseLifecycle, uri, 9, 4)
//
// Sentinels such as ErrPluginNotFound and ErrRefused match with errors.Is on
// Phase and Kind, so callers can tell a missing plugin from one that declined
// to instantiate.
package errors
