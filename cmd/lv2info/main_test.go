package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wippyai/lv2-runtime/internal/testbundle"
	"github.com/wippyai/lv2-runtime/world"
)

const ampURI = "http://example.org/amp"

func TestRun(t *testing.T) {
	dir := t.TempDir()
	testbundle.Write(t, dir, "amp.lv2", map[string]string{
		"manifest.ttl": testbundle.Manifest(ampURI, "amp.wasm", "amp.ttl"),
		"amp.ttl":      testbundle.GainPlugin(ampURI, "Amp"),
	})
	t.Chdir(t.TempDir())
	t.Setenv(world.PathEnv, dir)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--no-color", ampURI}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), ampURI)
	assert.Contains(t, stdout.String(), "Amp")
	assert.Empty(t, stderr.String())

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"--no-color", ampURI, "http://example.org/none"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), ampURI)
	assert.Contains(t, stderr.String(), "Plugin not found: http://example.org/none")

	stderr.Reset()
	assert.Equal(t, 1, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")
}
