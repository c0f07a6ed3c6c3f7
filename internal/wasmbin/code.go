package wasmbin

const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opF32Load     = 0x2a
	opI32Load8U   = 0x2d
	opI32Store    = 0x36
	opF32Store    = 0x38
	opI32Store8   = 0x3a
	opI32Const    = 0x41
	opF32Const    = 0x43
	opF64Const    = 0x44
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32Ne       = 0x47
	opI32LtU      = 0x49
	opI32GeU      = 0x4f
	opF64Lt       = 0x63
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32Mul      = 0x6c
	opI32And      = 0x71
	opI32Shl      = 0x74
	opF32Add      = 0x92
	opF32Mul      = 0x94

	blockEmpty = 0x40
)

// Code is a function body under construction. Methods append one
// instruction each and return the receiver for chaining.
type Code struct {
	b []byte
}

// NewCode returns an empty body.
func NewCode() *Code { return &Code{} }

func (c *Code) op(op byte) *Code {
	c.b = append(c.b, op)
	return c
}

func (c *Code) opU32(op byte, v uint32) *Code {
	c.b = AppendU32(append(c.b, op), v)
	return c
}

// memarg encodes alignment as log2 bytes.
func (c *Code) mem(op byte, align, offset uint32) *Code {
	c.b = append(c.b, op)
	c.b = AppendU32(c.b, align)
	c.b = AppendU32(c.b, offset)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Block() *Code { return c.op(opBlock).op(blockEmpty) }
func (c *Code) Loop() *Code { return c.op(opLoop).op(blockEmpty) }
func (c *Code) If() *Code { return c.op(opIf).op(blockEmpty) }
func (c *Code) IfResult(t ValType) *Code { return c.op(opIf).op(byte(t)) }
func (c *Code) Else() *Code { return c.op(opElse) }
func (c *Code) End() *Code { return c.op(opEnd) }
func (c *Code) Br(depth uint32) *Code { return c.opU32(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.opU32(opBrIf, depth) }
func (c *Code) Return() *Code { return c.op(opReturn) }
func (c *Code) Call(fn uint32) *Code { return c.opU32(opCall, fn) }
func (c *Code) Drop() *Code { return c.op(opDrop) }
func (c *Code) LocalGet(i uint32) *Code { return c.opU32(opLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code { return c.opU32(opLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code { return c.opU32(opLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.opU32(opGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.opU32(opGlobalSet, i) }
func (c *Code) I32Load(offset uint32) *Code { return c.mem(opI32Load, 2, offset) }
func (c *Code) F32Load(offset uint32) *Code { return c.mem(opF32Load, 2, offset) }
func (c *Code) I32Load8U(off uint32) *Code { return c.mem(opI32Load8U, 0, off) }
func (c *Code) I32Store(off uint32) *Code { return c.mem(opI32Store, 2, off) }
func (c *Code) F32Store(off uint32) *Code { return c.mem(opF32Store, 2, off) }
func (c *Code) I32Store8(off uint32) *Code { return c.mem(opI32Store8, 0, off) }
func (c *Code) I32Eqz() *Code { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code { return c.op(opI32Ne) }
func (c *Code) I32LtU() *Code { return c.op(opI32LtU) }
func (c *Code) I32GeU() *Code { return c.op(opI32GeU) }
func (c *Code) F64Lt() *Code { return c.op(opF64Lt) }
func (c *Code) I32Add() *Code { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code { return c.op(opI32Mul) }
func (c *Code) I32And() *Code { return c.op(opI32And) }
func (c *Code) I32Shl() *Code { return c.op(opI32Shl) }
func (c *Code) F32Add() *Code { return c.op(opF32Add) }
func (c *Code) F32Mul() *Code { return c.op(opF32Mul) }

func (c *Code) I32Const(v int32) *Code {
	c.b = AppendS32(append(c.b, opI32Const), v)
	return c
}

func (c *Code) F32Const(v float32) *Code {
	c.b = f32Bytes(append(c.b, opF32Const), v)
	return c
}

func (c *Code) F64Const(v float64) *Code {
	c.b = f64Bytes(append(c.b, opF64Const), v)
	return c
}

// bytes returns the body terminated by the final end.
func (c *Code) bytes() []byte {
	if c == nil {
		return []byte{opEnd}
	}
	return append(append([]byte(nil), c.b...), opEnd)
}
