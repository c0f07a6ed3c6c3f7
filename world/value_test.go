package world

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		term triple.Term
		want Value
		name string
	}{
		{triple.IRI("http://x"), NewURI("http://x"), "iri"},
		{triple.Blank("b1"), NewBlank("b1"), "blank"},
		{triple.Literal("42", lv2.XSDInteger), NewInt(42), "integer"},
		{triple.Literal("-7", lv2.XSDInt), NewInt(-7), "int"},
		{triple.Literal("0.5", lv2.XSDDecimal), NewFloat(0.5), "decimal"},
		{triple.Literal("1e3", lv2.XSDDouble), NewFloat(1000), "double"},
		{triple.Literal("true", lv2.XSDBoolean), NewBool(true), "bool"},
		{triple.Literal("0", lv2.XSDBoolean), NewBool(false), "bool digit"},
		{triple.Literal("abc", lv2.XSDInteger), NewTypedString("abc", lv2.XSDInteger), "bad integer"},
		{triple.Literal("a/b.wav", lv2.StatePath), NewTypedString("a/b.wav", lv2.StatePath), "path"},
		{triple.Literal("hi", lv2.XSDString), NewString("hi"), "string"},
		{triple.LangLiteral("hallo", "DE"), NewLangString("hallo", "de"), "lang"},
		{triple.Term{}, Value{}, "zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valueOf(tt.term))
		})
	}
}

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, int64(3), NewFloat(3.9).AsInt())
	assert.Equal(t, 2.0, NewInt(2).AsFloat())
	assert.Equal(t, "2", NewInt(2).AsString())
	assert.Equal(t, "", NewString("x").AsURI())
	assert.False(t, NewString("true").AsBool())
	assert.True(t, NewInt(1).IsNumber())
	assert.False(t, NewBool(true).IsNumber())
	assert.True(t, Value{}.IsZero())
	assert.Equal(t, "de", NewLangString("x", "DE").Lang())
	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.False(t, NewString("a").Equal(NewLangString("a", "en")))
	assert.Equal(t, "string", KindString.String())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "<http://x>", NewURI("http://x").String())
	assert.Equal(t, "_:b", NewBlank("b").String())
	assert.Equal(t, `"a\"b"@en`, NewLangString(`a"b`, "en").String())
	assert.Equal(t, "1.0", NewFloat(1).String())
	assert.Equal(t, "0.25", NewFloat(0.25).String())
	assert.Equal(t, "12", NewInt(12).String())
	assert.Equal(t, "false", NewBool(false).String())
	assert.Equal(t, `"a"^^<urn:t>`, NewTypedString("a", "urn:t").String())
	assert.Equal(t, NewString("a"), NewTypedString("a", lv2.XSDString))
}

func TestValueTermRoundTrip(t *testing.T) {
	for _, v := range []Value{
		NewURI("http://x"), NewBlank("b"), NewString("s"), NewLangString("s", "fr"),
		NewInt(-3), NewFloat(2.5), NewBool(true), NewTypedString("p", lv2.StatePath),
	} {
		assert.Equal(t, v, valueOf(v.term()), v.String())
	}
}
