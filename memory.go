package lv2runtime

// Memory is a plugin's linear memory as seen by the host.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	ReadF32s(offset uint32, dst []float32) error
	WriteF32s(offset uint32, src []float32) error
	ReadCString(offset uint32) (string, error)
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside a plugin instance.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
}
