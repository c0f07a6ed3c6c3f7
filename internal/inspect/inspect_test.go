package inspect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/lv2-runtime/internal/testbundle"
	"github.com/wippyai/lv2-runtime/world"
)

func TestPlugin(t *testing.T) {
	const uri = "http://example.org/gain"
	bundle := testbundle.Write(t, t.TempDir(), "gain.lv2", map[string]string{
		"manifest.ttl": testbundle.Manifest(uri, "gain.wasm", "gain.ttl"),
		"gain.ttl":     testbundle.GainPlugin(uri, "Gain"),
	})
	w := world.New()
	require.NoError(t, w.LoadBundle(bundle))
	p, ok := w.Plugin(uri)
	require.True(t, ok)

	var buf bytes.Buffer
	Plugin(&buf, p, Options{NoColor: true})
	out := buf.String()

	assert.Contains(t, out, uri+"\n")
	assert.Contains(t, out, "Name:             Gain")
	assert.Contains(t, out, "Has latency:      no")
	assert.Contains(t, out, "Port 0:")
	assert.Contains(t, out, "Symbol:           gain")
	assert.Contains(t, out, "Maximum:          2.000000")
	assert.Contains(t, out, "Port 2:")
	assert.Contains(t, out, "http://lv2plug.in/ns/ext/state#interface")
	assert.NotContains(t, out, "\x1b[")
}
