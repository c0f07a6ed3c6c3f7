package module

import (
	"context"
	"plugin"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
)

// DescriptorSymbol is the symbol a Go plugin exports to enumerate its
// descriptors. It may be a function or a variable of type
// lv2.DescriptorFunc.
const DescriptorSymbol = "Descriptor"

// nativeBackend loads Go plugins built with -buildmode=plugin. Go plugins
// cannot be unloaded, so closing is a no-op.
type nativeBackend struct{}

func (nativeBackend) Name() string { return "native" }

func (nativeBackend) Extensions() []string { return []string{".so", ".dylib", ".dll"} }

func (nativeBackend) Open(_ context.Context, path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.ModuleLoad(path, err)
	}
	sym, err := p.Lookup(DescriptorSymbol)
	if err != nil {
		return nil, errors.MissingEntryPoint(path, DescriptorSymbol)
	}
	fn, ok := descriptorFunc(sym)
	if !ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindModuleLoad).
			Path(path).
			Detail("symbol %s has type %T", DescriptorSymbol, sym).
			Build()
	}
	return staticLibrary(fn), nil
}

func descriptorFunc(sym any) (lv2.DescriptorFunc, bool) {
	switch f := sym.(type) {
	case func(uint32) *lv2.Descriptor:
		return f, true
	case lv2.DescriptorFunc:
		return f, true
	case *lv2.DescriptorFunc:
		if f == nil || *f == nil {
			return nil, false
		}
		return *f, true
	case *func(uint32) *lv2.Descriptor:
		if f == nil || *f == nil {
			return nil, false
		}
		return *f, true
	default:
		return nil, false
	}
}
