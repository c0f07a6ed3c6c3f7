// Package state captures and restores plugin state: input control port
// values plus the typed properties a plugin externalizes through its state
// extension. States can be written to and read from Turtle files, and file
// paths inside a state are kept relative to the state directory so saved
// states can be moved.
package state

import (
	"bytes"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/metrics"
	"github.com/wippyai/lv2-runtime/world"
)

// URIDMap maps URIs to URIDs and back. *urid.Map implements it.
type URIDMap interface {
	lv2.Mapper
	lv2.Unmapper
}

// Plugin describes the plugin whose ports are captured. *world.Plugin
// implements it.
type Plugin interface {
	URI() string
	Ports() []*world.Port
}

// Instance is the running plugin to save or restore. *instance.Instance
// implements it.
type Instance interface {
	Handle() lv2.Handle
	ExtensionData(uri string) any
}

// Property is one externalized plugin property.
type Property struct {
	Value []byte
	Key   lv2.URID
	Type  lv2.URID
	Flags lv2.StateFlags
}

// PortValue is the value of an input control port.
type PortValue struct {
	Value  world.Value
	Symbol string
}

// Options configures NewFromInstance.
type Options struct {
	// Map is required. It maps property keys and types.
	Map URIDMap
	// GetPortValue returns the current value of an input control port.
	GetPortValue func(symbol string) (world.Value, bool)
	// Features are passed to the plugin's save along with the path features.
	Features lv2.Features
	// ScratchDir enables the make path feature. Files the plugin creates
	// go to a fresh directory below it.
	ScratchDir string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Flags      lv2.StateFlags
}

// State is a snapshot of a plugin instance.
type State struct {
	mapper    URIDMap
	logger    *zap.Logger
	metrics   *metrics.Metrics
	paths     *pathMap
	pluginURI string
	uri       string
	label     string
	props     []Property
	values    []PortValue
	statePath lv2.URID
	pathMu    sync.Mutex
}

func newState(pluginURI string, m URIDMap, logger *zap.Logger, mtr *metrics.Metrics) *State {
	if logger == nil {
		logger = Logger()
	}
	return &State{
		mapper:    m,
		logger:    logger.With(zap.String("plugin", pluginURI)),
		metrics:   mtr,
		paths:     newPathMap(),
		pluginURI: pluginURI,
		statePath: m.Map(lv2.StatePath),
	}
}

// NewFromInstance captures the state of inst. Input control port values
// come from opts.GetPortValue; properties come from the plugin's save, if it
// has the state extension. A failed save returns no state.
func NewFromInstance(p Plugin, inst Instance, opts Options) (*State, error) {
	if opts.Map == nil {
		return nil, errors.InvalidInput(errors.PhaseState, "a URID map is required")
	}
	s := newState(p.URI(), opts.Map, opts.Logger, opts.Metrics)
	s.paths.scratchBase = opts.ScratchDir

	if opts.GetPortValue != nil {
		for _, port := range p.Ports() {
			if !port.IsInput() || !port.IsControl() {
				continue
			}
			if v, ok := opts.GetPortValue(port.Symbol()); ok {
				s.values = append(s.values, PortValue{Symbol: port.Symbol(), Value: v})
			}
		}
	}

	if si, ok := stateInterface(inst); ok {
		seen := make(map[lv2.URID]bool)
		store := func(key lv2.URID, value []byte, typ lv2.URID, flags lv2.StateFlags) lv2.StateStatus {
			if key == 0 || seen[key] {
				return lv2.StateErrBadKey
			}
			if typ == 0 {
				return lv2.StateErrBadType
			}
			seen[key] = true
			s.props = append(s.props, Property{
				Value: bytes.Clone(value),
				Key:   key,
				Type:  typ,
				Flags: flags,
			})
			return lv2.StateSuccess
		}

		st := si.Save(inst.Handle(), store, opts.Flags, s.features(opts.Features))
		if err := statusError("save", st); err != nil {
			s.metrics.StateOperation("save", "error")
			s.logger.Warn("plugin state save failed", zap.Stringer("status", st))
			return nil, err
		}
	}

	s.sort()
	s.metrics.StateOperation("save", "ok")
	return s, nil
}

// Restore applies the state to inst: the plugin's restore runs first, then
// setPortValue is called for every saved port value. A state with
// properties cannot be restored into a plugin without the state extension.
func (s *State) Restore(inst Instance, setPortValue func(symbol string, v world.Value), flags lv2.StateFlags, features lv2.Features) error {
	si, ok := stateInterface(inst)
	switch {
	case ok:
		retrieve := func(key lv2.URID) ([]byte, lv2.URID, lv2.StateFlags, bool) {
			p, found := s.Property(key)
			return p.Value, p.Type, p.Flags, found
		}
		st := si.Restore(inst.Handle(), retrieve, flags, s.features(features))
		if err := statusError("restore", st); err != nil {
			s.metrics.StateOperation("restore", "error")
			s.logger.Warn("plugin state restore failed", zap.Stringer("status", st))
			return err
		}
	case len(s.props) > 0:
		s.metrics.StateOperation("restore", "error")
		return errors.New(errors.PhaseState, errors.KindUnsupported).
			Subject(s.pluginURI).
			Detail("plugin has no state extension").
			Build()
	}

	if setPortValue != nil {
		for _, v := range s.values {
			setPortValue(v.Symbol, v.Value)
		}
	}
	s.metrics.StateOperation("restore", "ok")
	return nil
}

func stateInterface(inst Instance) (*lv2.StateInterface, bool) {
	si, ok := inst.ExtensionData(lv2.StateInterfaceURI).(*lv2.StateInterface)
	if !ok || si == nil || si.Save == nil || si.Restore == nil {
		return nil, false
	}
	return si, true
}

func (s *State) sort() {
	slices.SortStableFunc(s.props, func(a, b Property) int { return int(a.Key) - int(b.Key) })
	slices.SortStableFunc(s.values, func(a, b PortValue) int {
		switch {
		case a.Symbol < b.Symbol:
			return -1
		case a.Symbol > b.Symbol:
			return 1
		}
		return 0
	})
}

// Property returns the property stored under key.
func (s *State) Property(key lv2.URID) (Property, bool) {
	i, ok := slices.BinarySearchFunc(s.props, key, func(p Property, k lv2.URID) int {
		return int(p.Key) - int(k)
	})
	if !ok {
		return Property{}, false
	}
	return s.props[i], true
}

// Properties returns the properties ordered by key.
func (s *State) Properties() []Property { return slices.Clone(s.props) }

// PortValues returns the port values ordered by symbol.
func (s *State) PortValues() []PortValue { return slices.Clone(s.values) }

// NumProperties returns the number of properties.
func (s *State) NumProperties() int { return len(s.props) }

// PluginURI returns the URI of the plugin the state applies to.
func (s *State) PluginURI() string { return s.pluginURI }

// URI returns the state's URI once it has been saved or loaded.
func (s *State) URI() string { return s.uri }

// Label returns the state's label.
func (s *State) Label() string { return s.label }

// SetLabel sets the state's label.
func (s *State) SetLabel(label string) { s.label = label }

// Dir returns the directory the state was saved to or loaded from.
func (s *State) Dir() string {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	return s.paths.dir
}

// Equal reports whether a and b describe the same state. Path properties
// are equal when they resolve to the same file or to files with the same
// content.
func Equal(a, b *State) bool {
	if a.pluginURI != b.pluginURI || a.label != b.label ||
		len(a.props) != len(b.props) || len(a.values) != len(b.values) {
		return false
	}
	for i := range a.values {
		if a.values[i].Symbol != b.values[i].Symbol || !a.values[i].Value.Equal(b.values[i].Value) {
			return false
		}
	}
	for i := range a.props {
		ap, bp := a.props[i], b.props[i]
		if ap.Key != bp.Key || ap.Type != bp.Type || ap.Flags != bp.Flags {
			return false
		}
		if ap.Type == a.statePath {
			if !samePath(a.AbsolutePath(cstring(ap.Value)), b.AbsolutePath(cstring(bp.Value))) {
				return false
			}
		} else if !bytes.Equal(ap.Value, bp.Value) {
			return false
		}
	}
	return true
}

// statusError maps a plugin status to an error. Success maps to nil.
func statusError(op string, st lv2.StateStatus) error {
	var kind errors.Kind
	switch st {
	case lv2.StateSuccess:
		return nil
	case lv2.StateErrNoFeature:
		kind = errors.KindMissingFeature
	case lv2.StateErrBadKey:
		kind = errors.KindBadKey
	case lv2.StateErrBadType:
		kind = errors.KindUnknownType
	default:
		kind = errors.KindStateFailure
	}
	return errors.New(errors.PhaseState, kind).
		Value(int(st)).
		Detail("%s: %s", op, st).
		Build()
}

// cstring returns b up to its first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// terminated reports whether b is a string with a single NUL at its end.
func terminated(b []byte) bool {
	return bytes.IndexByte(b, 0) == len(b)-1 && len(b) > 0
}
