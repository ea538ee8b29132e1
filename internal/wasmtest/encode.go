// Package wasmtest builds small WebAssembly modules and artifact bundles for
// tests. Modules are encoded directly so no binary fixtures are committed.
package wasmtest

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

const (
	sectionType   = 1
	sectionImport = 2
	sectionFunc   = 3
	sectionMemory = 5
	sectionExport = 7
	sectionCode   = 10
	sectionData   = 11

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	funcTypeMarker = 0x60
)

// Opcodes used by the canned modules.
const (
	OpUnreachable  = 0x00
	OpEnd          = 0x0B
	OpCall         = 0x10
	OpDrop         = 0x1A
	OpLocalGet     = 0x20
	OpI32Const     = 0x41
	OpI64Const     = 0x42
	OpI64Or        = 0x84
	OpI64Shl       = 0x86
	OpI64ExtendI32 = 0xAD
)

type buffer struct {
	bytes []byte
}

func (b *buffer) byte(v byte) {
	b.bytes = append(b.bytes, v)
}

func (b *buffer) write(v []byte) {
	b.bytes = append(b.bytes, v...)
}

// u32 writes unsigned LEB128.
func (b *buffer) u32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.byte(byt)
		if v == 0 {
			break
		}
	}
}

// s64 writes signed LEB128.
func (b *buffer) s64(v int64) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.byte(byt)
			break
		}
		b.byte(byt | 0x80)
	}
}

func (b *buffer) name(s string) {
	b.u32(uint32(len(s)))
	b.write([]byte(s))
}

func (b *buffer) section(id byte, content *buffer) {
	b.byte(id)
	b.u32(uint32(len(content.bytes)))
	b.write(content.bytes)
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	b := &buffer{}
	b.byte(OpI32Const)
	b.s64(int64(v))
	return b.bytes
}

// I64Const encodes i64.const v.
func I64Const(v int64) []byte {
	b := &buffer{}
	b.byte(OpI64Const)
	b.s64(v)
	return b.bytes
}

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte {
	b := &buffer{}
	b.byte(OpLocalGet)
	b.u32(idx)
	return b.bytes
}

// Call encodes call idx.
func Call(idx uint32) []byte {
	b := &buffer{}
	b.byte(OpCall)
	b.u32(idx)
	return b.bytes
}

// Seq concatenates instruction sequences.
func Seq(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
