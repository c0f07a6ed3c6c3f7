// Package lv2runtime hosts LV2 audio plugins from Go.
//
// Plugin metadata is read from bundles of Turtle data into a World, which
// indexes every statement and answers queries about plugins, their ports and
// classes. Plugin binaries are opened by a module loader and run as
// instances. Instance state can be captured, saved to a preset bundle and
// restored later.
//
// # Architecture Overview
//
//	lv2runtime/          Root package with the guest Memory and Allocator interfaces
//	├── world/           Bundle discovery, the statement index and plugin queries
//	├── triple/          Turtle parsing and writing behind a small Term type
//	├── lv2/             Vocabulary URIs, descriptors and host features
//	├── module/          Plugin binary loading (wasm, Go plugin, static)
//	├── engine/          wazero integration and the wasm plugin ABI
//	├── instance/        Instance lifecycle: connect, activate, run, free
//	├── state/           State capture, restore and preset files
//	├── urid/            URI to integer mapping
//	├── config/          Host configuration from files and environment
//	├── metrics/         Prometheus collectors
//	├── errors/          Structured error types
//	└── cmd/             lv2ls and lv2info
//
// # Quick Start
//
// Discover plugins and run one:
//
//	w := world.New()
//	defer w.Close()
//	w.LoadAll()
//
//	p, ok := w.Plugin("http://example.org/gain")
//	if !ok {
//	    log.Fatal("not installed")
//	}
//
//	loader := module.NewLoader()
//	defer loader.Close(ctx)
//
//	inst, err := instance.Instantiate(ctx, loader, p, 48000, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Free(ctx)
//
//	_ = inst.ConnectPort(0, gain)
//	_ = inst.ConnectPort(1, in)
//	_ = inst.ConnectPort(2, out)
//	_ = inst.Activate()
//	inst.Run(uint32(len(in)))
//
// # Thread Safety
//
// World and Loader are safe for concurrent use. An Instance is NOT
// thread-safe: Run must not overlap any other call on the same instance.
//
// # Memory Model
//
// Wasm linear memory can only grow. Port buffers of wasm plugins live in
// guest memory and are copied in and out around each Run.
package lv2runtime
