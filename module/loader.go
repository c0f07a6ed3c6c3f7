package module

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/engine"
	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/metrics"
)

// Library is an opened plugin binary.
type Library interface {
	// Descriptor returns the descriptor at index, or nil past the end.
	Descriptor(index uint32) *lv2.Descriptor
	Close(ctx context.Context) error
}

// Backend opens plugin binaries of one kind.
type Backend interface {
	Name() string
	// Extensions lists the file extensions the backend handles, with the dot.
	Extensions() []string
	Open(ctx context.Context, path string) (Library, error)
}

// Loader opens plugin binaries and shares them between instances. Modules
// are cached by canonical path and closed when the last reference is
// released.
type Loader struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	engine    *engine.WazeroEngine
	engineCfg *engine.Config
	modules   map[string]*Module
	static    map[string]lv2.DescriptorFunc
	backends  []Backend
	mu        sync.Mutex
	ownEngine bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithMetrics records module metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ld *Loader) { ld.metrics = m }
}

// WithEngine shares an existing engine for WebAssembly modules. The loader
// does not close it.
func WithEngine(e *engine.WazeroEngine) Option {
	return func(ld *Loader) { ld.engine = e }
}

// WithEngineConfig configures the engine the loader creates on first use.
func WithEngineConfig(cfg engine.Config) Option {
	return func(ld *Loader) { ld.engineCfg = &cfg }
}

// WithBackend adds a backend. Backends added later take precedence for the
// extensions they share with earlier ones.
func WithBackend(b Backend) Option {
	return func(ld *Loader) { ld.backends = append(ld.backends, b) }
}

// NewLoader creates a loader with the WebAssembly and Go plugin backends.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		modules: make(map[string]*Module),
		static:  make(map[string]lv2.DescriptorFunc),
	}
	l.backends = []Backend{&wasmBackend{loader: l}, nativeBackend{}}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = Logger()
	}
	return l
}

// Register makes fn the descriptor function for binaries named name. name
// is matched against the full path first, then the base name, so plugins
// compiled into the host need no file on disk.
func (l *Loader) Register(name string, fn lv2.DescriptorFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.static[name] = fn
}

// Open returns the module at path, loading it on first use. Each successful
// Open must be paired with Module.Release.
func (l *Loader) Open(ctx context.Context, path string) (*Module, error) {
	key := canonicalPath(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.modules[key]; ok {
		m.refs++
		return m, nil
	}

	lib, backend, err := l.openLibrary(ctx, path)
	if err != nil {
		var e *errors.Error
		kind := string(errors.KindModuleLoad)
		if errors.As(err, &e) {
			kind = string(e.Kind)
		}
		l.metrics.ModuleLoadFailed(kind)
		l.logger.Warn("cannot load plugin module", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	m := &Module{loader: l, key: key, path: path, backend: backend, lib: lib, refs: 1}
	l.modules[key] = m
	l.metrics.ModuleOpened()
	l.logger.Debug("plugin module loaded", zap.String("path", path), zap.String("backend", backend))
	return m, nil
}

func (l *Loader) openLibrary(ctx context.Context, path string) (Library, string, error) {
	if fn, ok := l.static[path]; ok {
		return staticLibrary(fn), "static", nil
	}
	if fn, ok := l.static[filepath.Base(path)]; ok {
		return staticLibrary(fn), "static", nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, "", errors.ModuleLoad(path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for i := len(l.backends) - 1; i >= 0; i-- {
		b := l.backends[i]
		for _, e := range b.Extensions() {
			if e == ext {
				lib, err := b.Open(ctx, path)
				if err != nil {
					return nil, "", withPath(err, path)
				}
				return lib, b.Name(), nil
			}
		}
	}
	return nil, "", errors.New(errors.PhaseLoad, errors.KindModuleLoad).
		Path(path).
		Detail("no backend for extension %q", ext).
		Build()
}

// wazeroEngine returns the engine, creating it on first use. The loader
// lock must be held.
func (l *Loader) wazeroEngine(ctx context.Context) (*engine.WazeroEngine, error) {
	if l.engine != nil {
		return l.engine, nil
	}
	eng, err := engine.NewWazeroEngineWithConfig(ctx, l.engineCfg)
	if err != nil {
		return nil, err
	}
	l.engine, l.ownEngine = eng, true
	return eng, nil
}

func (l *Loader) release(ctx context.Context, m *Module) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.refs <= 0 {
		return errors.InvalidState("release", "closed")
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	delete(l.modules, m.key)
	l.metrics.ModuleClosed()
	l.logger.Debug("plugin module closed", zap.String("path", m.path))
	return m.lib.Close(ctx)
}

// NumOpen returns the number of loaded modules.
func (l *Loader) NumOpen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.modules)
}

// Close unloads every module regardless of references and closes the
// engine if the loader created it.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for key, m := range l.modules {
		m.refs = 0
		if err := m.lib.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(l.modules, key)
		l.metrics.ModuleClosed()
	}
	if l.ownEngine && l.engine != nil {
		if err := l.engine.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		l.engine, l.ownEngine = nil, false
	}
	return errors.Join(errs...)
}

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// withPath fills in the module path of load errors raised below the loader.
func withPath(err error, path string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		if e.Path == "" {
			e.Path = path
		}
		return e
	}
	return errors.ModuleLoad(path, err)
}

type staticLibrary lv2.DescriptorFunc

func (s staticLibrary) Descriptor(index uint32) *lv2.Descriptor { return s(index) }

func (staticLibrary) Close(context.Context) error { return nil }
