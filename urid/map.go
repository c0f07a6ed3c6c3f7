// Package urid provides the host URI map offered to plugins through the
// URID map and unmap features.
package urid

import (
	"sync"

	"github.com/wippyai/lv2-runtime/lv2"
)

// Map assigns stable integer ids to URIs. Ids start at 1 and are never
// reused. Safe for concurrent use.
type Map struct {
	ids  map[string]lv2.URID
	uris []string
	mu   sync.RWMutex
}

// New creates an empty map.
func New() *Map {
	return &Map{ids: make(map[string]lv2.URID)}
}

// Map returns the id for uri, assigning one on first use. The empty URI maps
// to 0.
func (m *Map) Map(uri string) lv2.URID {
	if uri == "" {
		return 0
	}

	m.mu.RLock()
	id, ok := m.ids[uri]
	m.mu.RUnlock()
	if ok {
		return id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[uri]; ok {
		return id
	}
	m.uris = append(m.uris, uri)
	id = lv2.URID(len(m.uris))
	m.ids[uri] = id
	return id
}

// Unmap returns the URI for id.
func (m *Map) Unmap(id lv2.URID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == 0 || int(id) > len(m.uris) {
		return "", false
	}
	return m.uris[id-1], true
}

// Len returns the number of mapped URIs.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uris)
}

// Features returns the map and unmap features backed by m.
func (m *Map) Features() lv2.Features {
	return lv2.Features{
		{URI: lv2.URIDMap, Data: lv2.Mapper(m)},
		{URI: lv2.URIDUnmap, Data: lv2.Unmapper(m)},
	}
}

var (
	_ lv2.Mapper   = (*Map)(nil)
	_ lv2.Unmapper = (*Map)(nil)
)
