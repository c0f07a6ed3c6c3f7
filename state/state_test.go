package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/instance"
	"github.com/wippyai/lv2-runtime/internal/testbundle"
	"github.com/wippyai/lv2-runtime/internal/testplugin"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/metrics"
	"github.com/wippyai/lv2-runtime/module"
	"github.com/wippyai/lv2-runtime/triple"
	"github.com/wippyai/lv2-runtime/urid"
	"github.com/wippyai/lv2-runtime/world"
)

const (
	gainURI  = "http://example.org/gain"
	softMode = "http://example.org/gain#soft"
)

type fixture struct {
	world  *world.World
	plugin *world.Plugin
	loader *module.Loader
	urids  *urid.Map
}

func newFixture(t *testing.T, ds ...*lv2.Descriptor) *fixture {
	t.Helper()
	if len(ds) == 0 {
		ds = []*lv2.Descriptor{testplugin.GainDescriptor(gainURI)}
	}
	bundle := testbundle.Write(t, t.TempDir(), "gain.lv2", map[string]string{
		"manifest.ttl": testbundle.Manifest(gainURI, "gain.so", "gain.ttl"),
		"gain.ttl":     testbundle.GainPlugin(gainURI, "Gain"),
	})
	w := world.New()
	require.NoError(t, w.LoadBundle(bundle))
	p, ok := w.Plugin(gainURI)
	require.True(t, ok)

	l := module.NewLoader()
	l.Register("gain.so", testplugin.Descriptors(ds...))
	t.Cleanup(func() { l.Close(context.Background()) })
	return &fixture{world: w, plugin: p, loader: l, urids: urid.New()}
}

func (f *fixture) instantiate(t *testing.T) (*instance.Instance, *testplugin.Gain) {
	t.Helper()
	inst, err := instance.Instantiate(context.Background(), f.loader, f.plugin, 48000, f.urids.Features())
	require.NoError(t, err)
	t.Cleanup(func() { inst.Free(context.Background()) })
	g, _ := inst.Handle().(*testplugin.Gain)
	return inst, g
}

func (f *fixture) capture(t *testing.T, inst *instance.Instance, gain float64) *State {
	t.Helper()
	st, err := NewFromInstance(f.plugin, inst, Options{
		Map: f.urids,
		GetPortValue: func(symbol string) (world.Value, bool) {
			if symbol == "gain" {
				return world.NewFloat(gain), true
			}
			return world.Value{}, false
		},
	})
	require.NoError(t, err)
	return st
}

func configure(g *testplugin.Gain) {
	g.Level = 7
	g.Ratio = 0.5
	g.Enabled = true
	g.Label = "warm"
	g.Mode = softMode
}

func TestNewFromInstance_CaptureAndRestore(t *testing.T) {
	f := newFixture(t)
	inst, g := f.instantiate(t)
	configure(g)

	st := f.capture(t, inst, 1.5)
	assert.Equal(t, gainURI, st.PluginURI())
	assert.Equal(t, 5, st.NumProperties())
	assert.Equal(t, []PortValue{{Symbol: "gain", Value: world.NewFloat(1.5)}}, st.PortValues())

	level, ok := st.Property(f.urids.Map(testplugin.Key(gainURI, "level")))
	require.True(t, ok)
	assert.Equal(t, f.urids.Map(lv2.AtomInt), level.Type)
	assert.Equal(t, lv2.StateIsPOD|lv2.StateIsPortable, level.Flags)

	props := st.Properties()
	for i := 1; i < len(props); i++ {
		assert.Less(t, props[i-1].Key, props[i].Key)
	}

	inst2, g2 := f.instantiate(t)
	got := map[string]world.Value{}
	require.NoError(t, st.Restore(inst2, func(symbol string, v world.Value) { got[symbol] = v }, 0, nil))

	assert.Equal(t, int32(7), g2.Level)
	assert.Equal(t, float32(0.5), g2.Ratio)
	assert.True(t, g2.Enabled)
	assert.Equal(t, "warm", g2.Label)
	assert.Equal(t, softMode, g2.Mode)
	assert.Equal(t, map[string]world.Value{"gain": world.NewFloat(1.5)}, got)
}

func TestNewFromInstance_WasmWithoutURIDFeatures(t *testing.T) {
	ctx := context.Background()
	bundle := testbundle.Write(t, t.TempDir(), "gain.lv2", map[string]string{
		"manifest.ttl": testbundle.Manifest(gainURI, "gain.wasm", "gain.ttl"),
		"gain.ttl":     testbundle.GainPlugin(gainURI, "Gain"),
	})
	testbundle.WriteFile(t, bundle, "gain.wasm", testplugin.GainWasm(gainURI))
	w := world.New()
	require.NoError(t, w.LoadBundle(bundle))
	p, ok := w.Plugin(gainURI)
	require.True(t, ok)

	l := module.NewLoader()
	t.Cleanup(func() { l.Close(ctx) })
	m := urid.New()

	// instantiated without urid:map, so state calls rely on the map of the state
	src, err := instance.Instantiate(ctx, l, p, 48000, nil)
	require.NoError(t, err)
	t.Cleanup(func() { src.Free(ctx) })
	require.NoError(t, src.ConnectPort(testplugin.PortGain, []float32{0.25}))
	require.NoError(t, src.ConnectPort(testplugin.PortIn, []float32{1}))
	require.NoError(t, src.ConnectPort(testplugin.PortOut, make([]float32, 1)))
	require.NoError(t, src.Activate())
	src.Run(1)
	src.Run(1)

	st, err := NewFromInstance(p, src, Options{Map: m})
	require.NoError(t, err)
	require.Equal(t, 2, st.NumProperties())
	runs, ok := st.Property(m.Map(testplugin.WasmRunsKey))
	require.True(t, ok)
	assert.Equal(t, m.Map(lv2.AtomInt), runs.Type)
	assert.Equal(t, []byte{2, 0, 0, 0}, runs.Value)

	dst, err := instance.Instantiate(ctx, l, p, 48000, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dst.Free(ctx) })
	require.NoError(t, st.Restore(dst, nil, 0, nil))

	again, err := NewFromInstance(p, dst, Options{Map: m})
	require.NoError(t, err)
	assert.Equal(t, st.Properties(), again.Properties())
}

func TestNewFromInstance_Errors(t *testing.T) {
	f := newFixture(t)
	inst, g := f.instantiate(t)

	_, err := NewFromInstance(f.plugin, inst, Options{})
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidInput, e.Kind)

	g.StoreTwice = true
	st, err := NewFromInstance(f.plugin, inst, Options{Map: f.urids})
	assert.Nil(t, st)
	assert.True(t, errors.Is(err, errors.ErrBadKey))

	bare, err := instance.Instantiate(context.Background(), f.loader, f.plugin, 48000, nil)
	require.NoError(t, err)
	defer bare.Free(context.Background())
	_, err = NewFromInstance(f.plugin, bare, Options{Map: f.urids})
	assert.True(t, errors.Is(err, errors.ErrMissingFeature))
}

func TestRestore_Unsupported(t *testing.T) {
	stateless := testplugin.GainDescriptor(gainURI)
	stateless.ExtensionData = func(string) any { return nil }

	withState := newFixture(t)
	src, g := withState.instantiate(t)
	configure(g)
	st := withState.capture(t, src, 1)

	f := newFixture(t, stateless)
	f.urids = withState.urids
	inst, _ := f.instantiate(t)

	ports := f.capture(t, inst, 0.25)
	assert.Zero(t, ports.NumProperties())
	assert.Len(t, ports.PortValues(), 1)
	require.NoError(t, ports.Restore(inst, nil, 0, nil))

	err := st.Restore(inst, nil, 0, nil)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestRestore_PluginFailure(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.ttl")
	require.NoError(t, os.WriteFile(path, []byte(testbundle.Prefixes+`
<partial.ttl> lv2:appliesTo <`+gainURI+`> ;
	state:state [ <`+testplugin.Key(gainURI, "label")+`> "only a label" ] .
`), 0o644))

	st, err := NewFromFile(path, f.urids)
	require.NoError(t, err)
	assert.Equal(t, 1, st.NumProperties())

	inst, _ := f.instantiate(t)
	err = st.Restore(inst, nil, 0, nil)
	assert.True(t, errors.Is(err, errors.ErrStateFailure))
}

func TestSave_LoadAndEqual(t *testing.T) {
	f := newFixture(t)
	inst, g := f.instantiate(t)
	configure(g)

	st := f.capture(t, inst, 1.5)
	st.SetLabel("Warm Preset")
	dir := filepath.Join(t.TempDir(), "presets.lv2")
	require.NoError(t, st.Save(dir, "", ""))

	path := filepath.Join(realPath(dir), "warm_preset.ttl")
	assert.FileExists(t, path)
	assert.Equal(t, triple.FileURI(path), st.URI())
	assert.Equal(t, realPath(dir), st.Dir())

	loaded, err := NewFromFile(path, f.urids)
	require.NoError(t, err)
	assert.Equal(t, "Warm Preset", loaded.Label())
	assert.Equal(t, gainURI, loaded.PluginURI())
	assert.Equal(t, st.URI(), loaded.URI())
	assert.True(t, Equal(st, loaded))

	loaded.SetLabel("other")
	assert.False(t, Equal(st, loaded))

	inst2, g2 := f.instantiate(t)
	require.NoError(t, loaded.Restore(inst2, nil, 0, nil))
	assert.Equal(t, int32(7), g2.Level)
	assert.Equal(t, softMode, g2.Mode)
}

func TestSave_StringBytesSurvive(t *testing.T) {
	m := urid.New()
	str := m.Map(lv2.AtomString)
	key := func(name string) lv2.URID { return m.Map("http://example.org/gain#" + name) }
	pod := lv2.StateIsPOD | lv2.StateIsPortable

	st := newState(gainURI, m, nil, nil)
	st.props = []Property{
		{Key: key("plain"), Type: str, Value: []byte("warm\x00"), Flags: pod},
		{Key: key("unterminated"), Type: str, Value: []byte("warm"), Flags: pod},
		{Key: key("inner"), Type: str, Value: []byte("a\x00b\x00"), Flags: pod},
		{Key: key("empty"), Type: str, Value: []byte{}, Flags: pod},
	}
	st.sort()
	st.SetLabel("Strings")

	dir := filepath.Join(t.TempDir(), "strings.lv2")
	require.NoError(t, st.Save(dir, "strings.ttl", ""))
	loaded, err := NewFromFile(filepath.Join(realPath(dir), "strings.ttl"), m)
	require.NoError(t, err)

	for _, name := range []string{"plain", "unterminated", "inner", "empty"} {
		want, _ := st.Property(key(name))
		got, ok := loaded.Property(key(name))
		require.True(t, ok, name)
		assert.Equal(t, str, got.Type, name)
		assert.Equal(t, want.Value, got.Value, name)
	}
	assert.True(t, Equal(st, loaded))

	data, err := os.ReadFile(filepath.Join(realPath(dir), "strings.ttl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"warm"`)
}

func TestSave_Manifest(t *testing.T) {
	f := newFixture(t)
	inst, _ := f.instantiate(t)
	st := f.capture(t, inst, 1)
	dir := t.TempDir()

	err := st.Save(dir, "", "")
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidInput, e.Kind)

	require.NoError(t, st.Save(dir, "first", "urn:preset:first"))
	assert.Equal(t, "urn:preset:first", st.URI())
	require.NoError(t, st.Save(dir, "first.ttl", ""))
	require.NoError(t, st.Save(dir, "second", ""))
	third := f.capture(t, inst, 1)
	require.NoError(t, third.Save(dir, "third", ""))

	ts, err := triple.ParseFile(triple.TurtleParser{}, filepath.Join(dir, manifestName))
	require.NoError(t, err)
	seeAlso := map[string]int{}
	for _, tr := range ts {
		if tr.P.Value == lv2.RDFSSeeAlso {
			seeAlso[tr.O.Value]++
		}
	}
	assert.Equal(t, map[string]int{
		triple.FileURI(filepath.Join(realPath(dir), "first.ttl")):  1,
		triple.FileURI(filepath.Join(realPath(dir), "second.ttl")): 1,
		triple.FileURI(filepath.Join(realPath(dir), "third.ttl")):  1,
	}, seeAlso)
}

func TestSave_RelocatesFiles(t *testing.T) {
	f := newFixture(t)
	inst, g := f.instantiate(t)
	configure(g)

	sample := filepath.Join(t.TempDir(), "sample.wav")
	require.NoError(t, os.WriteFile(sample, []byte("RIFF"), 0o644))
	g.File = sample

	st := f.capture(t, inst, 1)
	root := t.TempDir()
	dir := filepath.Join(root, "a.lv2")
	require.NoError(t, st.Save(dir, "take", ""))
	assert.FileExists(t, filepath.Join(dir, "sample.wav"))

	moved := filepath.Join(root, "b.lv2")
	require.NoError(t, os.Rename(dir, moved))

	loaded, err := NewFromFile(filepath.Join(moved, "take.ttl"), f.urids)
	require.NoError(t, err)
	assert.Equal(t, realPath(moved), loaded.Dir())

	inst2, g2 := f.instantiate(t)
	require.NoError(t, loaded.Restore(inst2, nil, 0, nil))
	assert.Equal(t, filepath.Join(realPath(moved), "sample.wav"), g2.File)

	data, err := os.ReadFile(g2.File)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestPaths(t *testing.T) {
	m := urid.New()
	st := newState(gainURI, m, nil, nil)
	st.paths.scratchBase = t.TempDir()

	made := st.MakePath("rec/take1.wav")
	assert.Equal(t, made, st.MakePath("rec/take1.wav"))
	assert.DirExists(t, filepath.Dir(made))
	assert.True(t, isChild(made, st.paths.scratchBase))
	require.NoError(t, os.WriteFile(made, []byte("take"), 0o644))
	assert.Equal(t, "rec/take1.wav", st.AbstractPath(made))

	a := filepath.Join(t.TempDir(), "a.wav")
	b := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))
	assert.Equal(t, "a.wav", st.AbstractPath(a))
	assert.Equal(t, "a.2.wav", st.AbstractPath(b))
	assert.Equal(t, "a.wav", st.AbstractPath(a))
	assert.Equal(t, realPath(b), st.AbsolutePath("a.2.wav"))
	assert.Equal(t, "/abs/path", st.AbsolutePath("/abs/path"))
	assert.Empty(t, st.AbstractPath(""))

	st.FreePath(made)
	assert.NotContains(t, st.paths.made, made)

	dir := t.TempDir()
	require.NoError(t, st.Save(dir, "paths", ""))
	assert.FileExists(t, filepath.Join(dir, "rec", "take1.wav"))
	assert.FileExists(t, filepath.Join(dir, "a.2.wav"))
	assert.Equal(t, filepath.Join(realPath(dir), "a.2.wav"), st.AbsolutePath("a.2.wav"))
}

func TestFeatures(t *testing.T) {
	m := urid.New()
	st := newState(gainURI, m, nil, nil)
	fs := st.features(nil)
	assert.True(t, fs.Contains(lv2.StateMapPath))
	assert.True(t, fs.Contains(lv2.StateFreePath))
	assert.False(t, fs.Contains(lv2.StateMakePath))
	mapper, ok := lv2.FindFeature[lv2.Mapper](fs, lv2.URIDMap)
	require.True(t, ok)
	assert.Equal(t, m.Map(lv2.AtomInt), mapper.Map(lv2.AtomInt))
	assert.True(t, fs.Contains(lv2.URIDUnmap))

	// a map passed by the caller is not shadowed
	other := urid.New()
	other.Map("http://example.org/first")
	st.paths.scratchBase = t.TempDir()
	fs = st.features(other.Features())
	assert.True(t, fs.Contains(lv2.StateMakePath))
	mapper, ok = lv2.FindFeature[lv2.Mapper](fs, lv2.URIDMap)
	require.True(t, ok)
	assert.Equal(t, other.Map("http://example.org/first"), mapper.Map("http://example.org/first"))
	assert.Len(t, fs.URIs(), 5)
}

func TestNewFromFile_Types(t *testing.T) {
	m := urid.New()
	dir := t.TempDir()
	path := filepath.Join(dir, "handmade.ttl")
	require.NoError(t, os.WriteFile(path, []byte(testbundle.Prefixes+`
<handmade.ttl>
	a <http://lv2plug.in/ns/ext/presets#Preset> ;
	lv2:appliesTo <`+gainURI+`> ;
	rdfs:label "Handmade" ;
	lv2:port [
		lv2:symbol "gain" ;
		<http://lv2plug.in/ns/ext/presets#value> 0.75
	] , [
		lv2:symbol "orphan"
	] ;
	state:state [
		<urn:k:int> "5"^^xsd:int ;
		<urn:k:big> "5000000000"^^xsd:integer ;
		<urn:k:double> "2.5"^^xsd:double ;
		<urn:k:bool> "true"^^xsd:boolean ;
		<urn:k:str> "hello" ;
		<urn:k:uri> <urn:some:thing> ;
		<urn:k:path> "dir/file.txt"^^state:Path ;
		<urn:k:blob> [
			a <urn:type:chunk> ;
			rdf:value "AQID"^^xsd:base64Binary
		]
	] .
`), 0o644))

	st, err := NewFromFile(path, m)
	require.NoError(t, err)
	assert.Equal(t, "Handmade", st.Label())
	assert.Equal(t, []PortValue{{Symbol: "gain", Value: world.NewFloat(0.75)}}, st.PortValues())
	assert.Equal(t, 8, st.NumProperties())

	prop := func(key string) Property {
		p, ok := st.Property(m.Map(key))
		require.True(t, ok, key)
		return p
	}
	assert.Equal(t, m.Map(lv2.AtomInt), prop("urn:k:int").Type)
	assert.Equal(t, []byte{5, 0, 0, 0}, prop("urn:k:int").Value)
	assert.Equal(t, m.Map(lv2.AtomLong), prop("urn:k:big").Type)
	assert.Equal(t, m.Map(lv2.AtomDouble), prop("urn:k:double").Type)
	assert.Equal(t, []byte{1, 0, 0, 0}, prop("urn:k:bool").Value)
	assert.Equal(t, []byte("hello\x00"), prop("urn:k:str").Value)
	assert.Equal(t, m.Map(lv2.AtomURID), prop("urn:k:uri").Type)
	assert.Equal(t, m.Map(lv2.StatePath), prop("urn:k:path").Type)
	assert.Equal(t, []byte("dir/file.txt\x00"), prop("urn:k:path").Value)
	assert.Equal(t, m.Map("urn:type:chunk"), prop("urn:k:blob").Type)
	assert.Equal(t, []byte{1, 2, 3}, prop("urn:k:blob").Value)
	assert.Equal(t, filepath.Join(realPath(dir), "dir", "file.txt"), st.AbsolutePath("dir/file.txt"))

	out := t.TempDir()
	require.NoError(t, st.Save(out, "copy", ""))
	again, err := NewFromFile(filepath.Join(out, "copy.ttl"), m)
	require.NoError(t, err)
	assert.True(t, Equal(st, again))
}

func TestNewFromFile_Errors(t *testing.T) {
	m := urid.New()
	dir := t.TempDir()

	_, err := NewFromFile(filepath.Join(dir, "missing.ttl"), m)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindIO, e.Kind)

	orphan := filepath.Join(dir, "orphan.ttl")
	require.NoError(t, os.WriteFile(orphan, []byte(testbundle.Prefixes+`<orphan.ttl> rdfs:label "x" .`), 0o644))
	_, err = NewFromFile(orphan, m)
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidData, e.Kind)
}

func TestNewFromWorld(t *testing.T) {
	f := newFixture(t)
	inst, g := f.instantiate(t)
	configure(g)
	st := f.capture(t, inst, 0.5)
	st.SetLabel("Soft")

	dir := filepath.Join(t.TempDir(), "presets.lv2")
	require.NoError(t, st.Save(dir, "", ""))
	require.NoError(t, f.world.LoadBundle(dir))

	loaded, err := NewFromWorld(f.world, f.urids, world.NewURI(st.URI()))
	require.NoError(t, err)
	assert.Equal(t, "Soft", loaded.Label())
	assert.Equal(t, realPath(dir), loaded.Dir())
	assert.True(t, Equal(st, loaded))

	_, err = NewFromWorld(f.world, f.urids, world.NewString("nope"))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidInput, e.Kind)

	_, err = NewFromWorld(f.world, f.urids, world.NewURI("urn:unknown"))
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidData, e.Kind)
}

func TestMetrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	f := newFixture(t)
	inst, g := f.instantiate(t)
	configure(g)

	st, err := NewFromInstance(f.plugin, inst, Options{Map: f.urids, Metrics: m})
	require.NoError(t, err)
	require.NoError(t, st.Restore(inst, nil, 0, nil))
	require.NoError(t, st.Save(t.TempDir(), "m", ""))

	g.StoreTwice = true
	_, err = NewFromInstance(f.plugin, inst, Options{Map: f.urids, Metrics: m})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateOperations.WithLabelValues("save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateOperations.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateOperations.WithLabelValues("restore", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateOperations.WithLabelValues("write", "ok")))
}

func TestPathify(t *testing.T) {
	assert.Equal(t, "my_preset_", pathify("My Preset!"))
	assert.Equal(t, "v1.2-beta", pathify("v1.2-beta"))
}

func TestDefaultDir(t *testing.T) {
	t.Setenv(BundleEnv, "/tmp/states.lv2")
	assert.Equal(t, "/tmp/states.lv2", DefaultDir())

	t.Setenv(BundleEnv, "")
	assert.Equal(t, "presets.lv2", filepath.Base(DefaultDir()))
}
