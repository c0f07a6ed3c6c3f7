// Package instance runs one plugin instantiation through its
// Created, Active and Freed states.
//
// An Instance is not safe for concurrent use. The host serialises
// ConnectPort, Activate, Deactivate and Free against Run, which normally
// executes on a realtime thread.
package instance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/metrics"
	"github.com/wippyai/lv2-runtime/module"
)

// State is the lifecycle state of an Instance.
type State int

const (
	Created State = iota
	Active
	Freed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Freed:
		return "freed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Plugin describes the plugin to instantiate. *world.Plugin implements it.
type Plugin interface {
	URI() string
	LibraryPath() (string, bool)
	BundlePath() string
	NumPorts() uint32
}

// Instance is one running instantiation of a plugin. It keeps its module
// loaded until Free.
type Instance struct {
	mod      *module.Module
	desc     *lv2.Descriptor
	handle   lv2.Handle
	logger   *zap.Logger
	metrics  *metrics.Metrics
	features lv2.Features
	uri      string
	numPorts uint32
	state    State
}

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures Instantiate.
type Option func(*options)

// WithLogger sets the instance logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records instantiation and lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Instantiate loads the plugin's binary through loader, finds its
// descriptor and instantiates it at sampleRate with features. Failures to
// serve the plugin are load errors; a plugin declining to instantiate is a
// refusal (errors.IsRefusal).
func Instantiate(ctx context.Context, loader *module.Loader, p Plugin, sampleRate float64, features lv2.Features, opts ...Option) (*Instance, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	uri := p.URI()
	log := o.logger.With(zap.String("plugin", uri))

	path, ok := p.LibraryPath()
	if !ok {
		o.metrics.Instantiated(metrics.ResultLoadError)
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Subject(uri).
			Detail("plugin has no local binary").
			Build()
	}

	mod, err := loader.Open(ctx, path)
	if err != nil {
		o.metrics.Instantiated(metrics.ResultLoadError)
		return nil, err
	}

	desc, err := mod.Find(uri)
	if err != nil {
		_ = mod.Release(ctx)
		o.metrics.Instantiated(metrics.ResultLoadError)
		return nil, err
	}

	handle := desc.Instantiate(desc, sampleRate, p.BundlePath(), features)
	if handle == nil {
		_ = mod.Release(ctx)
		o.metrics.Instantiated(metrics.ResultRefused)
		log.Info("plugin refused to instantiate", zap.Float64("sample_rate", sampleRate))
		return nil, errors.Refused(uri)
	}

	o.metrics.Instantiated(metrics.ResultOK)
	log.Debug("plugin instantiated", zap.String("module", path), zap.Float64("sample_rate", sampleRate))
	return &Instance{
		mod:      mod,
		desc:     desc,
		handle:   handle,
		logger:   log,
		metrics:  o.metrics,
		features: features,
		uri:      uri,
		numPorts: p.NumPorts(),
	}, nil
}

// URI returns the plugin URI.
func (i *Instance) URI() string { return i.uri }

// State returns the lifecycle state.
func (i *Instance) State() State { return i.state }

// Descriptor returns the plugin's descriptor.
func (i *Instance) Descriptor() *lv2.Descriptor { return i.desc }

// Handle returns the plugin's opaque handle. It is nil once freed.
func (i *Instance) Handle() lv2.Handle { return i.handle }

// Features returns the features the instance was created with.
func (i *Instance) Features() lv2.Features { return i.features }

// NumPorts returns the number of declared ports.
func (i *Instance) NumPorts() uint32 { return i.numPorts }

// ConnectPort binds data to port index. It is legal while Created or
// Active; reconnecting an Active instance depends on the plugin tolerating
// it. data must stay valid until it is replaced or the instance is freed.
func (i *Instance) ConnectPort(index uint32, data []float32) error {
	if i.state == Freed {
		return errors.InvalidState("connect_port", i.state.String())
	}
	if index >= i.numPorts {
		return errors.PortIndex(errors.PhaseLifecycle, i.uri, index, i.numPorts)
	}
	if i.state == Active {
		i.logger.Debug("port connected while active", zap.Uint32("port", index))
	}
	i.desc.ConnectPort(i.handle, index, data)
	return nil
}

// Activate moves a Created instance to Active. Activating an Active
// instance is a no-op.
func (i *Instance) Activate() error {
	switch i.state {
	case Active:
		return nil
	case Freed:
		return errors.InvalidState("activate", i.state.String())
	}
	if i.desc.Activate != nil {
		i.desc.Activate(i.handle)
	}
	i.state = Active
	i.metrics.InstanceActivated()
	return nil
}

// Run processes frames samples. It does nothing unless the instance is
// Active and never fails.
func (i *Instance) Run(frames uint32) {
	if i.state != Active {
		return
	}
	i.desc.Run(i.handle, frames)
}

// Deactivate moves an Active instance back to Created. Deactivating a
// Created instance is a no-op.
func (i *Instance) Deactivate() error {
	switch i.state {
	case Created:
		return nil
	case Freed:
		return errors.InvalidState("deactivate", i.state.String())
	}
	if i.desc.Deactivate != nil {
		i.desc.Deactivate(i.handle)
	}
	i.state = Created
	i.metrics.InstanceDeactivated()
	return nil
}

// Free cleans up the plugin and releases its module. An Active instance is
// deactivated first. The instance cannot be used afterwards.
func (i *Instance) Free(ctx context.Context) error {
	if i.state == Freed {
		return errors.InvalidState("free", i.state.String())
	}
	if i.state == Active {
		if i.desc.Deactivate != nil {
			i.desc.Deactivate(i.handle)
		}
		i.metrics.InstanceDeactivated()
	}
	i.desc.Cleanup(i.handle)
	i.handle = nil
	i.state = Freed
	i.metrics.InstanceFreed()
	i.logger.Debug("instance freed")
	return i.mod.Release(ctx)
}

// ExtensionData returns the plugin's data for the extension uri, or nil.
func (i *Instance) ExtensionData(uri string) any {
	if i.state == Freed || i.desc.ExtensionData == nil {
		return nil
	}
	return i.desc.ExtensionData(uri)
}

// StateInterface returns the plugin's state extension.
func (i *Instance) StateInterface() (*lv2.StateInterface, bool) {
	si, ok := i.ExtensionData(lv2.StateInterfaceURI).(*lv2.StateInterface)
	return si, ok && si != nil
}
