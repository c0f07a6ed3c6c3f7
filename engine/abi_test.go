package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tetratelabs/wazero/api"
)

func TestRequiredExportsHaveSignatures(t *testing.T) {
	for _, name := range RequiredExports {
		_, ok := exportSignatures[name]
		assert.True(t, ok, name)
	}
}

func TestSameTypes(t *testing.T) {
	assert.True(t, sameTypes(nil, []api.ValueType{}))
	assert.True(t, sameTypes([]api.ValueType{i32, f64}, []api.ValueType{i32, f64}))
	assert.False(t, sameTypes([]api.ValueType{i32}, []api.ValueType{f64}))
	assert.False(t, sameTypes([]api.ValueType{i32}, []api.ValueType{i32, i32}))
}

func TestFormatSig(t *testing.T) {
	assert.Equal(t, "(i32, f64) -> (i32)", formatSig([]api.ValueType{i32, f64}, []api.ValueType{i32}))
	assert.Equal(t, "() -> ()", formatSig(nil, nil))
}

func TestCallbackTable(t *testing.T) {
	tbl := newCallbackTable()
	h := &recordingHandler{}
	a := tbl.bind(h)
	b := tbl.bind(h)
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Same(t, h, tbl.get(a))

	tbl.release(a)
	assert.Nil(t, tbl.get(a))
	assert.Same(t, h, tbl.get(b))
}
