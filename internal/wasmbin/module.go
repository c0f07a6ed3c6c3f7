// Package wasmbin assembles small WebAssembly core modules in memory. It
// covers the subset of the binary format needed for plugin test fixtures.
package wasmbin

import (
	"encoding/binary"
	"math"
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	magic   = 0x6d736100
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	funcTypeByte = 0x60
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module  string
	name    string
	typeIdx uint32
}

type function struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type global struct {
	typ     ValType
	mutable bool
	init    int32
}

type segment struct {
	data   []byte
	offset uint32
}

// Module is a module under construction. Imports must be added before any
// function so that function indices stay stable.
type Module struct {
	types    []funcType
	imports  []importFunc
	funcs    []function
	exports  []export
	globals  []global
	data     []segment
	memPages uint32
	hasMem   bool
}

// New returns an empty module.
func New() *Module { return &Module{} }

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if equalTypes(t.params, params) && equalTypes(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

func equalTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Import adds a function import and returns its function index.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmbin: imports must precede functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function and returns its index. locals excludes params.
func (m *Module) Func(params, results, locals []ValType, body *Code) uint32 {
	m.funcs = append(m.funcs, function{
		typeIdx: m.typeIndex(params, results),
		locals:  locals,
		body:    body.bytes(),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) *Module {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
	return m
}

// Memory declares memory 0 with the given minimum size in 64KiB pages and
// exports it as name when name is not empty.
func (m *Module) Memory(pages uint32, name string) *Module {
	m.memPages, m.hasMem = pages, true
	if name != "" {
		m.exports = append(m.exports, export{name: name, kind: kindMemory})
	}
	return m
}

// Global adds an i32 global and returns its index.
func (m *Module) Global(mutable bool, init int32) uint32 {
	m.globals = append(m.globals, global{typ: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// Data places b at offset in memory 0.
func (m *Module) Data(offset uint32, b []byte) *Module {
	m.data = append(m.data, segment{offset: offset, data: b})
	return m
}

// CString places s with a trailing NUL at offset.
func (m *Module) CString(offset uint32, s string) *Module {
	return m.Data(offset, append([]byte(s), 0))
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	out := binary.LittleEndian.AppendUint32(nil, magic)
	out = binary.LittleEndian.AppendUint32(out, version)

	if len(m.types) > 0 {
		sec := AppendU32(nil, uint32(len(m.types)))
		for _, t := range m.types {
			sec = append(sec, funcTypeByte)
			sec = appendValTypes(sec, t.params)
			sec = appendValTypes(sec, t.results)
		}
		out = appendSection(out, sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := AppendU32(nil, uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, kindFunc)
			sec = AppendU32(sec, imp.typeIdx)
		}
		out = appendSection(out, sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := AppendU32(nil, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec = AppendU32(sec, f.typeIdx)
		}
		out = appendSection(out, sectionFunction, sec)
	}

	if m.hasMem {
		sec := AppendU32(nil, 1)
		sec = append(sec, 0x00) // min only
		sec = AppendU32(sec, m.memPages)
		out = appendSection(out, sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := AppendU32(nil, uint32(len(m.globals)))
		for _, g := range m.globals {
			sec = append(sec, byte(g.typ))
			if g.mutable {
				sec = append(sec, 1)
			} else {
				sec = append(sec, 0)
			}
			sec = append(sec, opI32Const)
			sec = AppendS32(sec, g.init)
			sec = append(sec, opEnd)
		}
		out = appendSection(out, sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := AppendU32(nil, uint32(len(m.exports)))
		for _, e := range m.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = AppendU32(sec, e.idx)
		}
		out = appendSection(out, sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := AppendU32(nil, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := appendLocals(nil, f.locals)
			body = append(body, f.body...)
			sec = AppendU32(sec, uint32(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := AppendU32(nil, uint32(len(m.data)))
		for _, d := range m.data {
			sec = append(sec, 0x00, opI32Const)
			sec = AppendS32(sec, int32(d.offset))
			sec = append(sec, opEnd)
			sec = AppendU32(sec, uint32(len(d.data)))
			sec = append(sec, d.data...)
		}
		out = appendSection(out, sectionData, sec)
	}

	return out
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = AppendU32(out, uint32(len(content)))
	return append(out, content...)
}

func appendName(b []byte, s string) []byte {
	b = AppendU32(b, uint32(len(s)))
	return append(b, s...)
}

func appendValTypes(b []byte, ts []ValType) []byte {
	b = AppendU32(b, uint32(len(ts)))
	for _, t := range ts {
		b = append(b, byte(t))
	}
	return b
}

// appendLocals groups consecutive locals of the same type.
func appendLocals(b []byte, locals []ValType) []byte {
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, t := range locals {
		if len(groups) > 0 && groups[len(groups)-1].t == t {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: t})
	}
	b = AppendU32(b, uint32(len(groups)))
	for _, g := range groups {
		b = AppendU32(b, g.n)
		b = append(b, byte(g.t))
	}
	return b
}

func f32Bytes(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func f64Bytes(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}
