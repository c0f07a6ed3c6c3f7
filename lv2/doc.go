// Package lv2 holds the vocabulary and calling convention shared by the host
// and plugin modules: namespace URIs, the Feature list, the Descriptor
// dispatch table, and the state extension types.
//
// A module exposes a DescriptorFunc. The host calls it with 0, 1, 2, ...
// until it returns nil and picks the Descriptor whose URI matches the plugin
// it wants. Everything else goes through the function fields of that
// Descriptor:
//
//	h := d.Instantiate(d, 48000, "/usr/lib/lv2/amp.lv2/", features)
//	d.ConnectPort(h, 0, gain)
//	d.Run(h, 256)
//	d.Cleanup(h)
package lv2
