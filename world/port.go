package world

import (
	"sort"

	"github.com/wippyai/lv2-runtime/lv2"
)

// Port is a view of one plugin port. Index and Symbol are fixed at
// construction; everything else is read from the World on demand.
type Port struct {
	plugin  *Plugin
	symbol  string
	classes []string
	node    nodeID
	index   uint32
}

// Range holds the declared default, minimum and maximum of a port. Absent
// entries are zero Values.
type Range struct {
	Default Value
	Minimum Value
	Maximum Value
}

// ScalePoint is a labelled value of a control port.
type ScalePoint struct {
	Label Value
	Value Value
}

// Plugin returns the plugin the port belongs to.
func (p *Port) Plugin() *Plugin { return p.plugin }

// Index returns the port index.
func (p *Port) Index() uint32 { return p.index }

// Symbol returns the port symbol.
func (p *Port) Symbol() string { return p.symbol }

// Classes returns the rdf:type URIs of the port.
func (p *Port) Classes() []string { return append([]string(nil), p.classes...) }

// IsA reports whether the port is an instance of class.
func (p *Port) IsA(class string) bool {
	for _, c := range p.classes {
		if c == class {
			return true
		}
	}
	return false
}

func (p *Port) IsInput() bool   { return p.IsA(lv2.InputPort) }
func (p *Port) IsOutput() bool  { return p.IsA(lv2.OutputPort) }
func (p *Port) IsAudio() bool   { return p.IsA(lv2.AudioPort) }
func (p *Port) IsControl() bool { return p.IsA(lv2.ControlPort) }
func (p *Port) IsCV() bool      { return p.IsA(lv2.CVPort) }
func (p *Port) IsAtom() bool    { return p.IsA(lv2.AtomPort) }

// Value returns every object of predicate for this port.
func (p *Port) Value(predicate string) []Value {
	w := p.plugin.w
	w.mu.RLock()
	defer w.mu.RUnlock()
	return p.plugin.values(p.node, predicate)
}

func (p *Port) first(predicate string) (Value, bool) {
	vals := p.Value(predicate)
	if len(vals) == 0 {
		return Value{}, false
	}
	return vals[0], true
}

// Name returns lv2:name, preferring the configured language.
func (p *Port) Name() (Value, bool) {
	w := p.plugin.w
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pick(p.plugin.values(p.node, lv2.Name))
}

// Range returns the declared default, minimum and maximum.
func (p *Port) Range() Range {
	var r Range
	r.Default, _ = p.first(lv2.Default)
	r.Minimum, _ = p.first(lv2.Minimum)
	r.Maximum, _ = p.first(lv2.Maximum)
	return r
}

// Properties returns the lv2:portProperty URIs.
func (p *Port) Properties() []string {
	return uris(p.Value(lv2.PortProperty))
}

// HasProperty reports whether the port declares property.
func (p *Port) HasProperty(property string) bool {
	for _, prop := range p.Properties() {
		if prop == property {
			return true
		}
	}
	return false
}

// ScalePoints returns the port's scale points sorted by numeric value.
// Points without both a label and a value are skipped.
func (p *Port) ScalePoints() []ScalePoint {
	w := p.plugin.w
	w.mu.RLock()
	defer w.mu.RUnlock()

	var points []ScalePoint
	for _, n := range p.plugin.nodes(p.node, lv2.ScalePoint) {
		label, okLabel := w.pick(p.plugin.values(n, lv2.RDFSLabel))
		vals := p.plugin.values(n, lv2.RDFValue)
		if !okLabel || len(vals) == 0 {
			continue
		}
		points = append(points, ScalePoint{Label: label, Value: vals[0]})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value.AsFloat() < points[j].Value.AsFloat()
	})
	return points
}
