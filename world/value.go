package world

import (
	"strconv"
	"strings"

	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
)

// ValueKind is the type of a Value.
type ValueKind uint8

const (
	KindURI ValueKind = iota + 1
	KindBlank
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindBlank:
		return "blank"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a resource reference or typed literal. It holds no reference into
// the World, so copies outlive it. Values are comparable with ==.
type Value struct {
	str  string
	lang string
	dt   string
	f    float64
	i    int64
	kind ValueKind
	b    bool
}

func NewURI(uri string) Value      { return Value{kind: KindURI, str: uri} }
func NewBlank(label string) Value  { return Value{kind: KindBlank, str: label} }
func NewString(s string) Value     { return Value{kind: KindString, str: s} }
func NewInt(i int64) Value         { return Value{kind: KindInt, i: i} }
func NewFloat(f float64) Value     { return Value{kind: KindFloat, f: f} }
func NewBool(b bool) Value         { return Value{kind: KindBool, b: b} }
func NewLangString(s, lang string) Value {
	return Value{kind: KindString, str: s, lang: strings.ToLower(lang)}
}

// NewTypedString returns a string literal carrying a datatype the Value kinds
// do not model, such as state:Path.
func NewTypedString(s, datatype string) Value {
	if datatype == lv2.XSDString {
		datatype = ""
	}
	return Value{kind: KindString, str: s, dt: datatype}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsZero() bool    { return v.kind == 0 }
func (v Value) IsURI() bool     { return v.kind == KindURI }
func (v Value) IsBlank() bool   { return v.kind == KindBlank }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsInt() bool     { return v.kind == KindInt }
func (v Value) IsFloat() bool   { return v.kind == KindFloat }
func (v Value) IsBool() bool    { return v.kind == KindBool }

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Lang returns the language tag of a string literal.
func (v Value) Lang() string { return v.lang }

// Datatype returns the datatype of a string literal typed with something
// other than xsd:string.
func (v Value) Datatype() string { return v.dt }

// Equal reports structural equality.
func (v Value) Equal(o Value) bool { return v == o }

// AsURI returns the URI of a URI value.
func (v Value) AsURI() string {
	if v.kind == KindURI {
		return v.str
	}
	return ""
}

// AsString returns the lexical form of any value.
func (v Value) AsString() string {
	switch v.kind {
	case KindURI, KindBlank, KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// AsInt returns the integer value, truncating floats.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// AsFloat returns the numeric value.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// AsBool returns the boolean value.
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.b
}

// String renders v in Turtle syntax.
func (v Value) String() string {
	switch v.kind {
	case KindURI:
		return "<" + v.str + ">"
	case KindBlank:
		return "_:" + v.str
	case KindString:
		s := strconv.Quote(v.str)
		if v.lang != "" {
			s += "@" + v.lang
		} else if v.dt != "" {
			s += "^^<" + v.dt + ">"
		}
		return s
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		return s
	default:
		return v.AsString()
	}
}

// ValueOf converts a parsed term to a Value.
func ValueOf(t triple.Term) Value { return valueOf(t) }

// valueOf converts a parsed term. Literals with a numeric or boolean
// datatype that fail to parse fall back to strings.
func valueOf(t triple.Term) Value {
	switch t.Kind {
	case triple.KindIRI:
		return NewURI(t.Value)
	case triple.KindBlank:
		return NewBlank(t.Value)
	case triple.KindLiteral:
		if t.Lang != "" {
			return NewLangString(t.Value, t.Lang)
		}
		switch t.Datatype {
		case lv2.XSDInteger, lv2.XSDInt, lv2.XSDLong:
			if i, err := strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64); err == nil {
				return NewInt(i)
			}
		case lv2.XSDDecimal, lv2.XSDDouble, lv2.XSDFloat:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64); err == nil {
				return NewFloat(f)
			}
		case lv2.XSDBoolean:
			switch strings.TrimSpace(t.Value) {
			case "true", "1":
				return NewBool(true)
			case "false", "0":
				return NewBool(false)
			}
		}
		return NewTypedString(t.Value, t.Datatype)
	default:
		return Value{}
	}
}

// Term converts v to a statement term.
func (v Value) Term() triple.Term { return v.term() }

// term converts v back to a statement term for index lookups.
func (v Value) term() triple.Term {
	switch v.kind {
	case KindURI:
		return triple.IRI(v.str)
	case KindBlank:
		return triple.Blank(v.str)
	case KindString:
		if v.lang != "" {
			return triple.LangLiteral(v.str, v.lang)
		}
		if v.dt != "" {
			return triple.Literal(v.str, v.dt)
		}
		return triple.Literal(v.str, lv2.XSDString)
	case KindInt:
		return triple.Literal(v.AsString(), lv2.XSDInteger)
	case KindFloat:
		return triple.Literal(v.String(), lv2.XSDDecimal)
	case KindBool:
		return triple.Literal(v.AsString(), lv2.XSDBoolean)
	default:
		return triple.Term{}
	}
}
