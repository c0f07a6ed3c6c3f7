package lv2

// Handle is the opaque per-instance value a plugin returns from Instantiate.
type Handle any

// Descriptor is the dispatch table a module exposes for one plugin.
// Activate, Deactivate and ExtensionData are optional and may be nil.
type Descriptor struct {
	Instantiate   func(d *Descriptor, sampleRate float64, bundlePath string, features Features) Handle
	ConnectPort   func(h Handle, port uint32, data []float32)
	Activate      func(h Handle)
	Run           func(h Handle, frames uint32)
	Deactivate    func(h Handle)
	Cleanup       func(h Handle)
	ExtensionData func(uri string) any
	URI           string
}

// DescriptorFunc enumerates the plugins of a module. It returns nil once
// index is past the last plugin.
type DescriptorFunc func(index uint32) *Descriptor

// Missing returns the names of mandatory entries that are nil.
func (d *Descriptor) Missing() []string {
	var out []string
	if d.URI == "" {
		out = append(out, "URI")
	}
	if d.Instantiate == nil {
		out = append(out, "instantiate")
	}
	if d.ConnectPort == nil {
		out = append(out, "connect_port")
	}
	if d.Run == nil {
		out = append(out, "run")
	}
	if d.Cleanup == nil {
		out = append(out, "cleanup")
	}
	return out
}
