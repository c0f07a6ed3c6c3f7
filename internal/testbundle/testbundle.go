// Package testbundle writes plugin bundles into temporary directories for
// tests.
package testbundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Prefixes is the Turtle prefix block shared by fixture documents.
const Prefixes = `@prefix lv2:   <http://lv2plug.in/ns/lv2core#> .
@prefix doap:  <http://usefulinc.com/ns/doap#> .
@prefix foaf:  <http://xmlns.com/foaf/0.1/> .
@prefix rdf:   <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs:  <http://www.w3.org/2000/01/rdf-schema#> .
@prefix dc:    <http://purl.org/dc/terms/> .
@prefix state: <http://lv2plug.in/ns/ext/state#> .
@prefix xsd:   <http://www.w3.org/2001/XMLSchema#> .

`

// Write creates dir/name with the given files. Turtle documents get the
// prefix block prepended. It returns the bundle directory.
func Write(t testing.TB, dir, name string, files map[string]string) string {
	t.Helper()
	bundle := filepath.Join(dir, name)
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	for file, content := range files {
		if strings.HasSuffix(file, ".ttl") {
			content = Prefixes + content
		}
		path := filepath.Join(bundle, file)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}
	return bundle
}

// Manifest declares one plugin with its binary and data document.
func Manifest(uri, binary, data string) string {
	return fmt.Sprintf("<%s>\n\ta lv2:Plugin ;\n\tlv2:binary <%s> ;\n\trdfs:seeAlso <%s> .\n", uri, binary, data)
}

// GainPlugin describes a plugin with an audio input, an audio output and a
// gain control, using the symbols in, out and gain at indices 1, 2 and 0.
func GainPlugin(uri, name string) string {
	return fmt.Sprintf(`<%s>
	a lv2:Plugin , lv2:AmplifierPlugin ;
	doap:name %q ;
	lv2:optionalFeature <http://lv2plug.in/ns/lv2core#hardRTCapable> ;
	lv2:extensionData <http://lv2plug.in/ns/ext/state#interface> ;
	lv2:port [
		a lv2:InputPort , lv2:ControlPort ;
		lv2:index 0 ;
		lv2:symbol "gain" ;
		lv2:name "Gain" ;
		lv2:default 1.0 ;
		lv2:minimum 0.0 ;
		lv2:maximum 2.0
	] , [
		a lv2:InputPort , lv2:AudioPort ;
		lv2:index 1 ;
		lv2:symbol "in" ;
		lv2:name "In"
	] , [
		a lv2:OutputPort , lv2:AudioPort ;
		lv2:index 2 ;
		lv2:symbol "out"
	] .
`, uri, name)
}

// WriteFile writes a binary file into bundle.
func WriteFile(t testing.TB, bundle, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(bundle, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
