package triple

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/lv2-runtime/internal/testbundle"
)

const ampTTL = `@prefix lv2:  <http://lv2plug.in/ns/lv2core#> .
@prefix doap: <http://usefulinc.com/ns/doap#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

<http://example.org/amp>
	a lv2:Plugin ;
	lv2:binary <amp.wasm> ;
	doap:name "Amp" , "Verstärker"@de ;
	lv2:port [
		a lv2:InputPort , lv2:ControlPort ;
		lv2:index 0 ;
		lv2:symbol "gain" ;
		lv2:default 0.5 ;
		lv2:toggled true
	] .
`

func find(ts []Triple, pred string) []Term {
	var out []Term
	for _, t := range ts {
		if t.P.Value == pred {
			out = append(out, t.O)
		}
	}
	return out
}

func TestTurtleParser_Parse(t *testing.T) {
	ts, err := TurtleParser{}.Parse(strings.NewReader(ampTTL), "file:///lv2/amp.lv2/manifest.ttl")
	require.NoError(t, err)
	require.NotEmpty(t, ts)

	bins := find(ts, "http://lv2plug.in/ns/lv2core#binary")
	require.Len(t, bins, 1)
	assert.Equal(t, IRI("file:///lv2/amp.lv2/amp.wasm"), bins[0], "relative IRI resolved against base")

	names := find(ts, "http://usefulinc.com/ns/doap#name")
	require.Len(t, names, 2)
	var langs []string
	for _, n := range names {
		assert.Equal(t, KindLiteral, n.Kind)
		langs = append(langs, n.Lang)
	}
	assert.ElementsMatch(t, []string{"", "de"}, langs)

	idx := find(ts, "http://lv2plug.in/ns/lv2core#index")
	require.Len(t, idx, 1)
	assert.Equal(t, "0", idx[0].Value)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#integer", idx[0].Datatype)

	def := find(ts, "http://lv2plug.in/ns/lv2core#default")
	require.Len(t, def, 1)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#decimal", def[0].Datatype)

	ports := find(ts, "http://lv2plug.in/ns/lv2core#port")
	require.Len(t, ports, 1)
	assert.Equal(t, KindBlank, ports[0].Kind)
	assert.NotEmpty(t, ports[0].Value)
}

func TestTurtleParser_RelativeIRIs(t *testing.T) {
	doc := "@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .\n" +
		"<http://example.org/amp> rdfs:seeAlso <amp.ttl> , <../shared/extra.ttl> , <#frag> , <> ;\n" +
		"\trdfs:label \"ok\" .\n"
	ts, err := TurtleParser{}.Parse(strings.NewReader(doc), "file:///lv2/amp.lv2/manifest.ttl")
	require.NoError(t, err)

	var got []string
	for _, o := range find(ts, "http://www.w3.org/2000/01/rdf-schema#seeAlso") {
		got = append(got, o.Value)
	}
	assert.ElementsMatch(t, []string{
		"file:///lv2/amp.lv2/amp.ttl",
		"file:///lv2/shared/extra.ttl",
		"file:///lv2/amp.lv2/manifest.ttl#frag",
		"file:///lv2/amp.lv2/manifest.ttl",
	}, got)
}

func TestTurtleParser_Layout(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"number ends line", "<urn:s> <urn:p> 2.0\n.\n", "2.0"},
		{"integer before tab", "<urn:s> <urn:p> 7\t.\n", "7"},
		{"crlf", "<urn:s>\r\n\t<urn:p> 1.5e3\r\n.\r\n", "1.5e3"},
		{"comment after number", "<urn:s> <urn:p> 3 # three\n.\n", "3"},
		{"tab in literal", "<urn:s> <urn:p> \"a\tb\" .\n", "a\tb"},
		{"long literal", "<urn:s> <urn:p> \"\"\"one\n\ttwo\"\"\" .\n", "one\n\ttwo"},
		{"hash in literal", "<urn:s> <urn:p> \"# not a comment\" .\n", "# not a comment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := TurtleParser{}.Parse(strings.NewReader(tt.doc), "file:///x/doc.ttl")
			require.NoError(t, err)
			require.Len(t, ts, 1)
			assert.Equal(t, tt.want, ts[0].O.Value)
		})
	}
}

func TestTurtleParser_GainFixture(t *testing.T) {
	doc := testbundle.Prefixes + testbundle.GainPlugin("http://example.org/gain", "Gain")
	ts, err := TurtleParser{}.Parse(strings.NewReader(doc), "file:///lv2/gain.lv2/gain.ttl")
	require.NoError(t, err)

	assert.Len(t, find(ts, "http://lv2plug.in/ns/lv2core#port"), 3)
	assert.Len(t, find(ts, "http://lv2plug.in/ns/lv2core#symbol"), 3)
	maxima := find(ts, "http://lv2plug.in/ns/lv2core#maximum")
	require.Len(t, maxima, 1)
	assert.Equal(t, "2.0", maxima[0].Value)
	names := find(ts, "http://usefulinc.com/ns/doap#name")
	require.Len(t, names, 1)
	assert.Equal(t, "Gain", names[0].Value)
}

func TestTurtleParser_Invalid(t *testing.T) {
	_, err := TurtleParser{}.Parse(strings.NewReader("<a> <b> ."), "file:///x/")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.ttl")
	require.NoError(t, os.WriteFile(path, []byte(`<x> <http://example.org/p> "v" .`), 0o644))

	ts, err := ParseFile(TurtleParser{}, path)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, FileURI(filepath.Join(dir, "x")), ts[0].S.Value)

	_, err = ParseFile(TurtleParser{}, filepath.Join(dir, "missing.ttl"))
	assert.Error(t, err)
}

func TestFileURI_RoundTrip(t *testing.T) {
	uri := FileURI("/usr/lib/lv2/my amp.lv2/")
	assert.Equal(t, "file:///usr/lib/lv2/my%20amp.lv2/", uri)

	p, ok := FilePath(uri)
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/usr/lib/lv2/my amp.lv2/"), p)

	_, ok = FilePath("http://example.org/")
	assert.False(t, ok)
}

func TestWriter_RoundTrip(t *testing.T) {
	in := []Triple{
		{S: IRI("http://example.org/s"), P: IRI("http://example.org/p"), O: Literal("7", "http://www.w3.org/2001/XMLSchema#integer")},
		{S: IRI("http://example.org/s"), P: IRI("http://example.org/q"), O: Blank("st")},
		{S: Blank("st"), P: IRI("http://example.org/r"), O: Literal("a/b.wav", "http://lv2plug.in/ns/ext/state#Path")},
		{S: Blank("st"), P: IRI("http://example.org/t"), O: Literal("plain", "")},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteAll(in))
	require.NoError(t, w.Close())

	out, err := TurtleParser{}.Parse(&buf, "")
	require.NoError(t, err)
	require.Len(t, out, len(in))

	assert.Equal(t, "7", find(out, "http://example.org/p")[0].Value)
	path := find(out, "http://example.org/r")[0]
	assert.Equal(t, "a/b.wav", path.Value)
	assert.Equal(t, "http://lv2plug.in/ns/ext/state#Path", path.Datatype)
	assert.Equal(t, "plain", find(out, "http://example.org/t")[0].Value)
}

func TestTerm_String(t *testing.T) {
	assert.Equal(t, "<urn:x>", IRI("urn:x").String())
	assert.Equal(t, "_:b0", Blank("_:b0").String())
	assert.Equal(t, `"hi"@en`, LangLiteral("hi", "en").String())
	assert.Equal(t, `"1"^^<urn:int>`, Literal("1", "urn:int").String())
	assert.True(t, Term{}.IsZero())
}
