package world

import (
	"iter"
	"sort"
)

// Plugins is an immutable snapshot of plugin views sorted by URI.
type Plugins struct {
	byURI map[string]*Plugin
	list  []*Plugin
}

func newPlugins(list []*Plugin) Plugins {
	sort.Slice(list, func(i, j int) bool { return list[i].uri < list[j].uri })
	byURI := make(map[string]*Plugin, len(list))
	for _, p := range list {
		byURI[p.uri] = p
	}
	return Plugins{byURI: byURI, list: list}
}

// Len returns the number of plugins.
func (ps Plugins) Len() int { return len(ps.list) }

// At returns the i-th plugin in URI order.
func (ps Plugins) At(i int) *Plugin { return ps.list[i] }

// ByURI returns the plugin with the given URI.
func (ps Plugins) ByURI(uri string) (*Plugin, bool) {
	p, ok := ps.byURI[uri]
	return p, ok
}

// All iterates the plugins in URI order.
func (ps Plugins) All() iter.Seq[*Plugin] {
	return func(yield func(*Plugin) bool) {
		for _, p := range ps.list {
			if !yield(p) {
				return
			}
		}
	}
}

// URIs returns the plugin URIs in order.
func (ps Plugins) URIs() []string {
	out := make([]string, len(ps.list))
	for i, p := range ps.list {
		out[i] = p.uri
	}
	return out
}

// AllPlugins returns a snapshot of every registered plugin.
func (w *World) AllPlugins() Plugins {
	w.mu.RLock()
	list := make([]*Plugin, 0, len(w.plugins))
	for _, p := range w.plugins {
		list = append(list, p)
	}
	w.mu.RUnlock()
	return newPlugins(list)
}

// PluginsByFilter returns the plugins for which keep returns true. keep may
// call any Plugin accessor.
func (w *World) PluginsByFilter(keep func(*Plugin) bool) Plugins {
	all := w.AllPlugins()
	var list []*Plugin
	for _, p := range all.list {
		if keep(p) {
			list = append(list, p)
		}
	}
	return newPlugins(list)
}

// Plugin returns the registered plugin with the given URI.
func (w *World) Plugin(uri string) (*Plugin, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.plugins[uri]
	return p, ok
}
