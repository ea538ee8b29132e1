package wasmtest

type funcType struct {
	params, results []ValType
}

type importEntry struct {
	module, name string
	kind         byte
	typ          uint32 // type index for functions, value type for globals
}

type definedFunc struct {
	typ  uint32
	body []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type segment struct {
	offset int32
	data   []byte
}

// Builder assembles a core wasm module. Imported functions take the lowest
// function indices, so all imports must be added before any Func.
type Builder struct {
	types   []funcType
	imports []importEntry
	funcs   []definedFunc
	exports []export
	data    []segment

	nImportedFuncs uint32
	memPages       uint32
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) typ(params, results []ValType) uint32 {
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// Import adds a function import and returns its function index.
func (b *Builder) Import(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must precede defined functions")
	}
	b.imports = append(b.imports, importEntry{module: module, name: name, kind: kindFunc, typ: b.typ(params, results)})
	b.nImportedFuncs++
	return b.nImportedFuncs - 1
}

// ImportGlobal adds an immutable global import of type t.
func (b *Builder) ImportGlobal(module, name string, t ValType) *Builder {
	b.imports = append(b.imports, importEntry{module: module, name: name, kind: kindGlobal, typ: uint32(t)})
	return b
}

// Func adds a function whose body is the given instructions, without the
// trailing end opcode, and returns its function index.
func (b *Builder) Func(params, results []ValType, body ...[]byte) uint32 {
	b.funcs = append(b.funcs, definedFunc{typ: b.typ(params, results), body: Seq(body...)})
	return b.nImportedFuncs + uint32(len(b.funcs)) - 1
}

// Export exports function idx under name.
func (b *Builder) Export(name string, idx uint32) *Builder {
	b.exports = append(b.exports, export{name: name, kind: kindFunc, idx: idx})
	return b
}

// Memory defines a memory of the given size and exports it as "memory".
func (b *Builder) Memory(pages uint32) *Builder {
	b.memPages = pages
	b.exports = append(b.exports, export{name: "memory", kind: kindMemory})
	return b
}

// Data adds an active data segment. Memory must be defined.
func (b *Builder) Data(offset int32, data []byte) *Builder {
	b.data = append(b.data, segment{offset: offset, data: data})
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := &buffer{}
	out.write([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})

	if len(b.types) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.types)))
		for _, ft := range b.types {
			sec.byte(funcTypeMarker)
			sec.u32(uint32(len(ft.params)))
			for _, p := range ft.params {
				sec.byte(byte(p))
			}
			sec.u32(uint32(len(ft.results)))
			for _, r := range ft.results {
				sec.byte(byte(r))
			}
		}
		out.section(sectionType, sec)
	}

	if len(b.imports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(imp.kind)
			if imp.kind == kindGlobal {
				sec.byte(byte(imp.typ))
				sec.byte(0x00) // const
				continue
			}
			sec.u32(imp.typ)
		}
		out.section(sectionImport, sec)
	}

	if len(b.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			sec.u32(f.typ)
		}
		out.section(sectionFunc, sec)
	}

	if b.memPages > 0 {
		sec := &buffer{}
		sec.u32(1)
		sec.byte(0x00) // no maximum
		sec.u32(b.memPages)
		out.section(sectionMemory, sec)
	}

	if len(b.exports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.exports)))
		for _, e := range b.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.idx)
		}
		out.section(sectionExport, sec)
	}

	if len(b.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			body := &buffer{}
			body.u32(0) // no locals
			body.write(f.body)
			body.byte(OpEnd)
			sec.u32(uint32(len(body.bytes)))
			sec.write(body.bytes)
		}
		out.section(sectionCode, sec)
	}

	if len(b.data) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(b.data)))
		for _, d := range b.data {
			sec.byte(0x00) // active, memory 0
			sec.write(I32Const(d.offset))
			sec.byte(OpEnd)
			sec.u32(uint32(len(d.data)))
			sec.write(d.data)
		}
		out.section(sectionData, sec)
	}

	return out.bytes
}
