// Package inspect renders human readable plugin descriptions for the
// command line tools.
package inspect

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/wippyai/lv2-runtime/world"
)

// Options controls rendering.
type Options struct {
	NoColor bool
}

type printer struct {
	w       io.Writer
	heading *color.Color
	label   *color.Color
}

func newPrinter(w io.Writer, opts Options) *printer {
	p := &printer{
		w:       w,
		heading: color.New(color.Bold, color.FgCyan),
		label:   color.New(color.FgHiBlack),
	}
	if opts.NoColor {
		p.heading.DisableColor()
		p.label.DisableColor()
	}
	return p
}

func (p *printer) field(indent int, name, value string) {
	tabs := strings.Repeat("\t", indent)
	p.label.Fprintf(p.w, "%s%-18s", tabs, name+":")
	fmt.Fprintln(p.w, value)
}

func (p *printer) list(indent int, name string, values []string) {
	if len(values) == 0 {
		return
	}
	p.field(indent, name, values[0])
	pad := strings.Repeat("\t", indent) + strings.Repeat(" ", 18)
	for _, v := range values[1:] {
		fmt.Fprintln(p.w, pad+v)
	}
}

// Plugin writes the description of pl: metadata, features and every port.
func Plugin(w io.Writer, pl *world.Plugin, opts Options) {
	p := newPrinter(w, opts)
	p.heading.Fprintln(w, pl.URI())
	fmt.Fprintln(w)

	if name, ok := pl.Name(); ok {
		p.field(1, "Name", name.AsString())
	}
	if c := pl.Class(); c != nil {
		label := c.Label().AsString()
		if label == "" {
			label = c.URI()
		}
		p.field(1, "Class", label)
	}
	if v, ok := pl.Version(); ok {
		p.field(1, "Version", v.String())
	}
	if v, ok := pl.AuthorName(); ok {
		p.field(1, "Author", v.AsString())
	}
	if v, ok := pl.AuthorEmail(); ok {
		p.field(1, "Author Email", v.AsString())
	}
	if v, ok := pl.AuthorHomepage(); ok {
		p.field(1, "Author Homepage", v.AsString())
	}
	if idx, ok := pl.LatencyPortIndex(); ok {
		p.field(1, "Has latency", fmt.Sprintf("yes, reported by port %d", idx))
	} else {
		p.field(1, "Has latency", "no")
	}
	p.field(1, "Bundle", pl.BundleURI())
	if lib, ok := pl.LibraryURI(); ok {
		p.field(1, "Binary", lib)
	}
	p.list(1, "Data URIs", pl.DataURIs())
	p.list(1, "Required Features", pl.RequiredFeatures())
	p.list(1, "Optional Features", pl.OptionalFeatures())
	p.list(1, "Extension Data", pl.ExtensionData())
	if pl.IsReplaced() {
		p.field(1, "Replaced", "yes")
	}
	if err := pl.Verify(); err != nil {
		p.field(1, "Invalid", err.Error())
	}

	mins, maxes, defs := pl.PortRanges()
	for i, port := range pl.Ports() {
		fmt.Fprintln(w)
		p.heading.Fprintf(w, "\tPort %d:\n", port.Index())
		p.list(2, "Type", port.Classes())
		p.field(2, "Symbol", port.Symbol())
		if name, ok := port.Name(); ok {
			p.field(2, "Name", name.AsString())
		}
		if port.IsControl() {
			if !isNaN(mins[i]) {
				p.field(2, "Minimum", fmt.Sprintf("%f", mins[i]))
			}
			if !isNaN(maxes[i]) {
				p.field(2, "Maximum", fmt.Sprintf("%f", maxes[i]))
			}
			if !isNaN(defs[i]) {
				p.field(2, "Default", fmt.Sprintf("%f", defs[i]))
			}
		}
		p.list(2, "Properties", port.Properties())
		var points []string
		for _, sp := range port.ScalePoints() {
			points = append(points, fmt.Sprintf("%s = %q", sp.Value.String(), sp.Label.AsString()))
		}
		p.list(2, "Scale Points", points)
	}
}

func isNaN(f float32) bool { return math.IsNaN(float64(f)) }
