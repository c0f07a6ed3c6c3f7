package module

import (
	"context"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
)

// maxDescriptors bounds descriptor enumeration for modules that never
// return nil.
const maxDescriptors = 4096

// Module is a loaded plugin binary shared by reference.
type Module struct {
	loader  *Loader
	lib     Library
	key     string
	path    string
	backend string
	refs    int
}

// Path returns the path the module was opened with.
func (m *Module) Path() string { return m.path }

// Backend names the backend that loaded the module.
func (m *Module) Backend() string { return m.backend }

// Descriptor returns the descriptor at index, or nil past the end.
func (m *Module) Descriptor(index uint32) *lv2.Descriptor {
	return m.lib.Descriptor(index)
}

// Descriptors enumerates every descriptor in index order.
func (m *Module) Descriptors() []*lv2.Descriptor {
	var out []*lv2.Descriptor
	for i := uint32(0); i < maxDescriptors; i++ {
		d := m.lib.Descriptor(i)
		if d == nil {
			break
		}
		out = append(out, d)
	}
	return out
}

// Find returns the descriptor for uri. A module without it yields a
// "plugin not found" load error; a matching descriptor lacking a mandatory
// entry point yields a missing entry point error.
func (m *Module) Find(uri string) (*lv2.Descriptor, error) {
	for _, d := range m.Descriptors() {
		if d.URI != uri {
			continue
		}
		if missing := d.Missing(); len(missing) > 0 {
			err := errors.MissingEntryPoint(m.path, missing[0])
			err.Subject = uri
			return nil, err
		}
		return d, nil
	}
	return nil, errors.PluginNotFound(uri, m.path)
}

// Release drops one reference. The last release unloads the module.
func (m *Module) Release(ctx context.Context) error {
	return m.loader.release(ctx, m)
}
