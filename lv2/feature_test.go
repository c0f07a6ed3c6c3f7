package lv2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures_Find(t *testing.T) {
	mp := &MapPath{}
	fs := Features{
		{URI: URIDMap, Data: "mapper"},
		{URI: StateMapPath, Data: mp},
	}

	data, ok := fs.Find(StateMapPath)
	require.True(t, ok)
	assert.Same(t, mp, data)

	_, ok = fs.Find(StateMakePath)
	assert.False(t, ok)
	assert.True(t, fs.Contains(URIDMap))
	assert.Equal(t, []string{URIDMap, StateMapPath}, fs.URIs())
}

func TestFeatures_WithDoesNotAlias(t *testing.T) {
	base := make(Features, 1, 4)
	base[0] = Feature{URI: URIDMap}

	a := base.With(Feature{URI: StateMapPath})
	b := base.With(Feature{URI: StateMakePath})

	assert.Equal(t, []string{StateMapPath, URIDMap}, a.URIs())
	assert.Equal(t, []string{StateMakePath, URIDMap}, b.URIs())
	assert.Len(t, base, 1)
}

func TestFindFeature(t *testing.T) {
	mp := &MapPath{AbstractPath: func(s string) string { return s }}
	fs := Features{{URI: StateMapPath, Data: mp}, {URI: StateMakePath, Data: "wrong type"}}

	got, ok := FindFeature[*MapPath](fs, StateMapPath)
	require.True(t, ok)
	assert.Same(t, mp, got)

	_, ok = FindFeature[*MakePath](fs, StateMakePath)
	assert.False(t, ok, "payload of the wrong type is not found")
}

func TestDescriptor_Missing(t *testing.T) {
	d := &Descriptor{URI: "urn:x"}
	assert.Equal(t, []string{"instantiate", "connect_port", "run", "cleanup"}, d.Missing())

	d.Instantiate = func(*Descriptor, float64, string, Features) Handle { return 1 }
	d.ConnectPort = func(Handle, uint32, []float32) {}
	d.Run = func(Handle, uint32) {}
	d.Cleanup = func(Handle) {}
	assert.Empty(t, d.Missing())
}

func TestStateStatus_String(t *testing.T) {
	assert.Equal(t, "bad or duplicate key", StateErrBadKey.String())
	assert.Equal(t, "success", StateSuccess.String())
	assert.Equal(t, "invalid status", StateStatus(99).String())
}
