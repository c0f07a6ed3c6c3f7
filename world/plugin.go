package world

import (
	"math"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
)

// Plugin is a read-only view of one plugin in a World. Accessors report
// absent values instead of failing, including after the plugin's bundle has
// been unloaded.
type Plugin struct {
	w         *World
	shadow    map[nodeID]bool
	uri       string
	bundleURI string
	dataURIs  []string
	ports     []*Port
	id        nodeID
	graph     nodeID
	portsMu   sync.Mutex
	portsOK   bool
	removed   bool
}

func newPlugin(w *World, uri string, id nodeID, b *bundle, dataURIs []string) *Plugin {
	return &Plugin{
		w:         w,
		shadow:    make(map[nodeID]bool),
		uri:       uri,
		bundleURI: b.uri,
		dataURIs:  dataURIs,
		id:        id,
		graph:     b.graph,
	}
}

// URI returns the plugin URI.
func (p *Plugin) URI() string { return p.uri }

func (p *Plugin) String() string { return p.uri }

// BundleURI returns the URI of the bundle the plugin was registered from,
// with a trailing slash.
func (p *Plugin) BundleURI() string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	if p.removed {
		return ""
	}
	return p.bundleURI
}

// BundlePath returns the local directory of the plugin's bundle.
func (p *Plugin) BundlePath() string {
	path, _ := triple.FilePath(p.BundleURI())
	return path
}

// DataURIs returns the documents describing the plugin: the manifest first,
// then every rdfs:seeAlso document.
func (p *Plugin) DataURIs() []string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	if p.removed {
		return nil
	}
	return append([]string(nil), p.dataURIs...)
}

// Valid reports whether the plugin is still registered in its World.
func (p *Plugin) Valid() bool {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return !p.removed
}

// values returns the objects of (subject, pred) outside graphs hidden from
// this plugin. The World read lock must be held.
func (p *Plugin) values(subject nodeID, pred string) []Value {
	if p.removed {
		return nil
	}
	x := p.w.idx
	pid := x.uri(pred)
	if pid == 0 || subject == 0 {
		return nil
	}
	var out []Value
	x.match(subject, pid, 0, 0, func(st stmt) bool {
		if !p.shadow[st.g] {
			out = append(out, valueOf(x.term(st.o)))
		}
		return true
	})
	return out
}

func (p *Plugin) nodes(subject nodeID, pred string) []nodeID {
	if p.removed {
		return nil
	}
	x := p.w.idx
	pid := x.uri(pred)
	if pid == 0 || subject == 0 {
		return nil
	}
	var out []nodeID
	x.match(subject, pid, 0, 0, func(st stmt) bool {
		if !p.shadow[st.g] {
			out = append(out, st.o)
		}
		return true
	})
	return out
}

func uris(vals []Value) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range vals {
		if v.IsURI() && !seen[v.str] {
			seen[v.str] = true
			out = append(out, v.str)
		}
	}
	return out
}

// Value returns every object of predicate for this plugin.
func (p *Plugin) Value(predicate string) []Value {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return p.values(p.id, predicate)
}

// Name returns doap:name, preferring the configured language.
func (p *Plugin) Name() (Value, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	v, ok := p.w.pick(p.values(p.id, lv2.DOAPName))
	if !ok && !p.removed {
		p.w.logger.Debug("plugin has no name", zap.String("plugin", p.uri))
	}
	return v, ok
}

// LibraryURI returns the lv2:binary reference resolved against the bundle.
func (p *Plugin) LibraryURI() (string, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	for _, v := range p.values(p.id, lv2.Binary) {
		if v.IsURI() {
			return v.str, true
		}
	}
	return "", false
}

// LibraryPath returns the local path of the plugin binary.
func (p *Plugin) LibraryPath() (string, bool) {
	uri, ok := p.LibraryURI()
	if !ok {
		return "", false
	}
	return triple.FilePath(uri)
}

// Class returns the plugin's primary class: the first declared type that is
// a known class, or the root class.
func (p *Plugin) Class() *PluginClass {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()

	classes := p.w.classList()
	byURI := make(map[string]*PluginClass, len(classes))
	for _, c := range classes {
		byURI[c.uri] = c
	}
	for _, t := range uris(p.values(p.id, lv2.RDFType)) {
		if t == lv2.Plugin {
			continue
		}
		if c, ok := byURI[t]; ok {
			return c
		}
	}
	return classes[0]
}

// RequiredFeatures returns the features the plugin cannot run without.
func (p *Plugin) RequiredFeatures() []string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return uris(p.values(p.id, lv2.RequiredFeature))
}

// OptionalFeatures returns the features the plugin can use when offered.
func (p *Plugin) OptionalFeatures() []string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return uris(p.values(p.id, lv2.OptionalFeature))
}

// SupportedFeatures returns required and optional features.
func (p *Plugin) SupportedFeatures() []string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	vals := p.values(p.id, lv2.RequiredFeature)
	vals = append(vals, p.values(p.id, lv2.OptionalFeature)...)
	return uris(vals)
}

// HasFeature reports whether feature is required or optional.
func (p *Plugin) HasFeature(feature string) bool {
	for _, f := range p.SupportedFeatures() {
		if f == feature {
			return true
		}
	}
	return false
}

// ExtensionData returns the extension interfaces the plugin declares.
func (p *Plugin) ExtensionData() []string {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return uris(p.values(p.id, lv2.ExtensionData))
}

// maintainer returns the doap:maintainer node of the plugin, or of its
// lv2:project.
func (p *Plugin) maintainer() nodeID {
	if m := p.nodes(p.id, lv2.DOAPMaintainer); len(m) > 0 {
		return m[0]
	}
	for _, proj := range p.nodes(p.id, lv2.Project) {
		if m := p.nodes(proj, lv2.DOAPMaintainer); len(m) > 0 {
			return m[0]
		}
	}
	return 0
}

func (p *Plugin) authorProperty(pred string) (Value, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	m := p.maintainer()
	if m == 0 {
		return Value{}, false
	}
	return p.w.pick(p.values(m, pred))
}

// AuthorName returns the maintainer's foaf:name.
func (p *Plugin) AuthorName() (Value, bool) { return p.authorProperty(lv2.FOAFName) }

// AuthorEmail returns the maintainer's foaf:mbox.
func (p *Plugin) AuthorEmail() (Value, bool) { return p.authorProperty(lv2.FOAFMbox) }

// AuthorHomepage returns the maintainer's foaf:homepage.
func (p *Plugin) AuthorHomepage() (Value, bool) { return p.authorProperty(lv2.FOAFHomepage) }

// IsReplaced reports whether another resource declares dc:replaces for
// this plugin.
func (p *Plugin) IsReplaced() bool {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	if p.removed {
		return false
	}
	pred := p.w.idx.uri(lv2.DCReplaces)
	return pred != 0 && p.w.idx.has(0, pred, p.id, 0)
}

// Version returns lv2:minorVersion and lv2:microVersion as 0.minor.micro.
func (p *Plugin) Version() (*semver.Version, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	if p.removed {
		return nil, false
	}
	v := p.w.versionIn(p.id, p.graph)
	return v, v != nil
}

// Verify checks that the plugin has the minimum data needed to load it.
func (p *Plugin) Verify() error {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()

	invalid := func(detail string) error {
		return errors.New(errors.PhaseQuery, errors.KindInvalidData).
			Subject(p.uri).
			Detail("%s", detail).
			Build()
	}
	if p.removed {
		return invalid("plugin is no longer loaded")
	}
	isPlugin := false
	for _, t := range uris(p.values(p.id, lv2.RDFType)) {
		if t == lv2.Plugin {
			isPlugin = true
		}
	}
	if !isPlugin {
		return invalid("missing rdf:type lv2:Plugin")
	}
	if _, ok := p.w.pick(p.values(p.id, lv2.DOAPName)); !ok {
		return invalid("missing doap:name")
	}
	if len(uris(p.values(p.id, lv2.Binary))) == 0 {
		return invalid("missing lv2:binary")
	}
	declared := len(p.nodes(p.id, lv2.Port))
	if got := len(p.portList()); got != declared {
		return invalid("invalid port data")
	}
	return nil
}

// resetPorts drops cached ports. Callers hold the World write lock.
func (p *Plugin) resetPorts() {
	p.ports = nil
	p.portsOK = false
}

// portList returns the ports sorted by index, building them on first use.
// The World read lock must be held.
func (p *Plugin) portList() []*Port {
	if p.removed {
		return nil
	}
	p.portsMu.Lock()
	defer p.portsMu.Unlock()
	if !p.portsOK {
		p.ports = p.buildPorts()
		p.portsOK = true
	}
	return p.ports
}

// buildPorts reads lv2:port. Every port needs a string lv2:symbol and an
// integer lv2:index; indices must be exactly 0..n-1 and symbols unique.
// Any violation leaves the plugin with no ports.
func (p *Plugin) buildPorts() []*Port {
	nodes := p.nodes(p.id, lv2.Port)
	ports := make([]*Port, 0, len(nodes))
	seen := make(map[nodeID]bool)
	symbols := make(map[string]bool)

	fail := func(reason string, fields ...zap.Field) []*Port {
		p.w.logger.Error("invalid plugin port data",
			append([]zap.Field{zap.String("plugin", p.uri), zap.String("reason", reason)}, fields...)...)
		return nil
	}

	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true

		var symbol string
		for _, v := range p.values(n, lv2.Symbol) {
			if v.IsString() {
				symbol = v.str
				break
			}
		}
		if symbol == "" {
			return fail("port has no string lv2:symbol")
		}
		if symbols[symbol] {
			return fail("duplicate port symbol", zap.String("symbol", symbol))
		}
		symbols[symbol] = true

		index := int64(-1)
		for _, v := range p.values(n, lv2.Index) {
			if v.IsInt() {
				index = v.i
				break
			}
		}
		if index < 0 {
			return fail("port has no integer lv2:index", zap.String("symbol", symbol))
		}

		ports = append(ports, &Port{
			plugin:  p,
			node:    n,
			index:   uint32(index),
			symbol:  symbol,
			classes: uris(p.values(n, lv2.RDFType)),
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].index < ports[j].index })
	for i, port := range ports {
		if port.index != uint32(i) {
			return fail("port indices are not contiguous from 0", zap.Uint32("index", port.index))
		}
	}
	return ports
}

// NumPorts returns the number of ports, or 0 when the port data is invalid.
func (p *Plugin) NumPorts() uint32 {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return uint32(len(p.portList()))
}

// Ports returns every port in index order.
func (p *Plugin) Ports() []*Port {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	return append([]*Port(nil), p.portList()...)
}

// PortByIndex returns the port at index.
func (p *Plugin) PortByIndex(index uint32) (*Port, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	ports := p.portList()
	if index >= uint32(len(ports)) {
		return nil, false
	}
	return ports[index], true
}

// PortBySymbol returns the port with the given symbol.
func (p *Plugin) PortBySymbol(symbol string) (*Port, bool) {
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	for _, port := range p.portList() {
		if port.symbol == symbol {
			return port, true
		}
	}
	return nil, false
}

// NumPortsOfClass counts ports that are instances of every given class.
func (p *Plugin) NumPortsOfClass(classes ...string) uint32 {
	var n uint32
	for _, port := range p.Ports() {
		match := true
		for _, c := range classes {
			if !port.IsA(c) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

// PortRanges returns default, minimum and maximum for every port, indexed by
// port index. Ports without a numeric value get NaN.
func (p *Plugin) PortRanges() (min, max, def []float32) {
	ports := p.Ports()
	min = make([]float32, len(ports))
	max = make([]float32, len(ports))
	def = make([]float32, len(ports))
	nan := float32(math.NaN())
	for i, port := range ports {
		r := port.Range()
		min[i], max[i], def[i] = nan, nan, nan
		if r.Minimum.IsNumber() {
			min[i] = float32(r.Minimum.AsFloat())
		}
		if r.Maximum.IsNumber() {
			max[i] = float32(r.Maximum.AsFloat())
		}
		if r.Default.IsNumber() {
			def[i] = float32(r.Default.AsFloat())
		}
	}
	return min, max, def
}

// LatencyPortIndex returns the output port that reports latency.
func (p *Plugin) LatencyPortIndex() (uint32, bool) {
	for _, port := range p.Ports() {
		if port.IsOutput() && port.HasProperty(lv2.ReportsLatency) {
			return port.index, true
		}
	}
	return 0, false
}

// HasLatency reports whether a latency port is declared.
func (p *Plugin) HasLatency() bool {
	_, ok := p.LatencyPortIndex()
	return ok
}

// ValueForSubject returns the objects of (subject, predicate) as seen by
// this plugin, for reading resources the plugin references.
func (p *Plugin) ValueForSubject(subject Value, predicate string) []Value {
	if !subject.IsURI() && !subject.IsBlank() {
		return nil
	}
	p.w.mu.RLock()
	defer p.w.mu.RUnlock()
	id := p.w.idx.lookup(subject.term())
	return p.values(id, predicate)
}
