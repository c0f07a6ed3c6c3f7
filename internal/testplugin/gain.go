package testplugin

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/lv2-runtime/lv2"
)

// Port indices shared by the gain plugins.
const (
	PortGain = 0
	PortIn   = 1
	PortOut  = 2
)

// Key returns the state key name under plugin uri.
func Key(uri, name string) string { return uri + "#" + name }

// Gain is the handle of the native gain plugin. Its fields are exported so
// tests can inspect and drive it.
type Gain struct {
	Features    lv2.Features
	Ports       [3][]float32
	URI         string
	BundlePath  string
	Label       string
	Mode        string
	File        string
	SampleRate  float64
	Runs        int
	Activations int
	Level       int32
	Ratio       float32
	Active      bool
	Enabled     bool
	Cleaned     bool
	// StoreTwice makes Save store the level property a second time.
	StoreTwice bool
}

// GainDescriptor returns a native gain plugin descriptor. Instantiation is
// refused for non-positive sample rates.
func GainDescriptor(uri string) *lv2.Descriptor {
	d := &lv2.Descriptor{URI: uri}
	d.Instantiate = func(_ *lv2.Descriptor, rate float64, bundlePath string, features lv2.Features) lv2.Handle {
		if rate <= 0 {
			return nil
		}
		return &Gain{URI: uri, SampleRate: rate, BundlePath: bundlePath, Features: features, Ratio: 1}
	}
	d.ConnectPort = func(h lv2.Handle, port uint32, data []float32) {
		if port < 3 {
			h.(*Gain).Ports[port] = data
		}
	}
	d.Activate = func(h lv2.Handle) {
		g := h.(*Gain)
		g.Active = true
		g.Activations++
	}
	d.Run = func(h lv2.Handle, frames uint32) {
		g := h.(*Gain)
		g.Runs++
		gain, in, out := g.Ports[PortGain], g.Ports[PortIn], g.Ports[PortOut]
		if len(gain) == 0 || in == nil || out == nil {
			return
		}
		for i := uint32(0); i < frames && int(i) < len(in) && int(i) < len(out); i++ {
			out[i] = in[i] * gain[0]
		}
	}
	d.Deactivate = func(h lv2.Handle) { h.(*Gain).Active = false }
	d.Cleanup = func(h lv2.Handle) { h.(*Gain).Cleaned = true }

	state := &lv2.StateInterface{Save: saveGain, Restore: restoreGain}
	d.ExtensionData = func(u string) any {
		if u == lv2.StateInterfaceURI {
			return state
		}
		return nil
	}
	return d
}

// RefuseDescriptor returns a descriptor whose instantiate always declines.
func RefuseDescriptor(uri string) *lv2.Descriptor {
	d := GainDescriptor(uri)
	d.Instantiate = func(*lv2.Descriptor, float64, string, lv2.Features) lv2.Handle { return nil }
	return d
}

// IncompleteDescriptor returns a descriptor without a run function.
func IncompleteDescriptor(uri string) *lv2.Descriptor {
	d := GainDescriptor(uri)
	d.Run = nil
	return d
}

// Descriptors enumerates ds in order.
func Descriptors(ds ...*lv2.Descriptor) lv2.DescriptorFunc {
	return func(index uint32) *lv2.Descriptor {
		if int(index) >= len(ds) {
			return nil
		}
		return ds[index]
	}
}

type prop struct {
	value []byte
	name  string
	typ   string
}

func saveGain(h lv2.Handle, store lv2.StoreFunc, _ lv2.StateFlags, features lv2.Features) lv2.StateStatus {
	g := h.(*Gain)
	mapper, ok := lv2.FindFeature[lv2.Mapper](g.Features, lv2.URIDMap)
	if !ok {
		return lv2.StateErrNoFeature
	}
	key := func(name string) lv2.URID { return mapper.Map(Key(g.URI, name)) }
	pod := lv2.StateIsPOD | lv2.StateIsPortable

	props := []prop{
		{name: "level", value: u32(uint32(g.Level)), typ: lv2.AtomInt},
		{name: "ratio", value: u32(math.Float32bits(g.Ratio)), typ: lv2.AtomFloat},
		{name: "enabled", value: u32(boolWord(g.Enabled)), typ: lv2.AtomBool},
		{name: "label", value: cstring(g.Label), typ: lv2.AtomString},
	}
	if g.Mode != "" {
		props = append(props, prop{name: "mode", value: u32(uint32(mapper.Map(g.Mode))), typ: lv2.AtomURID})
	}
	for _, p := range props {
		if st := store(key(p.name), p.value, mapper.Map(p.typ), pod); st != lv2.StateSuccess {
			return st
		}
	}

	if g.File != "" {
		mp, ok := lv2.FindFeature[*lv2.MapPath](features, lv2.StateMapPath)
		if !ok {
			return lv2.StateErrNoFeature
		}
		abstract := mp.AbstractPath(g.File)
		if st := store(key("file"), cstring(abstract), mapper.Map(lv2.StatePath), pod); st != lv2.StateSuccess {
			return st
		}
	}

	if g.StoreTwice {
		return store(key("level"), u32(uint32(g.Level)), mapper.Map(lv2.AtomInt), pod)
	}
	return lv2.StateSuccess
}

func restoreGain(h lv2.Handle, retrieve lv2.RetrieveFunc, _ lv2.StateFlags, features lv2.Features) lv2.StateStatus {
	g := h.(*Gain)
	mapper, ok := lv2.FindFeature[lv2.Mapper](g.Features, lv2.URIDMap)
	if !ok {
		return lv2.StateErrNoFeature
	}
	key := func(name string) lv2.URID { return mapper.Map(Key(g.URI, name)) }

	v, typ, _, ok := retrieve(key("level"))
	if !ok {
		return lv2.StateErrNoProperty
	}
	if typ != mapper.Map(lv2.AtomInt) || len(v) != 4 {
		return lv2.StateErrBadType
	}
	g.Level = int32(binary.LittleEndian.Uint32(v))

	if v, _, _, ok := retrieve(key("ratio")); ok && len(v) == 4 {
		g.Ratio = math.Float32frombits(binary.LittleEndian.Uint32(v))
	}
	if v, _, _, ok := retrieve(key("enabled")); ok && len(v) == 4 {
		g.Enabled = binary.LittleEndian.Uint32(v) != 0
	}
	if v, _, _, ok := retrieve(key("label")); ok {
		g.Label = trimNul(v)
	}
	if v, _, _, ok := retrieve(key("mode")); ok && len(v) == 4 {
		unmapper, ok := lv2.FindFeature[lv2.Unmapper](g.Features, lv2.URIDUnmap)
		if !ok {
			return lv2.StateErrNoFeature
		}
		mode, ok := unmapper.Unmap(lv2.URID(binary.LittleEndian.Uint32(v)))
		if !ok {
			return lv2.StateErrBadType
		}
		g.Mode = mode
	}
	if v, _, _, ok := retrieve(key("file")); ok {
		mp, ok := lv2.FindFeature[*lv2.MapPath](features, lv2.StateMapPath)
		if !ok {
			return lv2.StateErrNoFeature
		}
		g.File = mp.AbsolutePath(trimNul(v))
	}
	return lv2.StateSuccess
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func cstring(s string) []byte {
	return append([]byte(s), 0)
}

func trimNul(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}
