package wasmtest

// Memory layout shared by the canned guests.
const (
	ResponseOffset = 1024
	CallOffset     = 2048
	AllocOffset    = 4096
)

// HelloResponse is the response produced by Hello.
const HelloResponse = `{"status":200,"headers":{"Content-Type":["text/plain"]},"text":"Hello World!"}`

var (
	i32    = []ValType{I32}
	i32i32 = []ValType{I32, I32}
	i64    = []ValType{I64}
)

func packed(ptr, size int) []byte {
	return I64Const(int64(ptr)<<32 | int64(size))
}

// guest completes b with memory, alloc and an export named handle that runs
// prelude and returns resp.
func guest(b *Builder, handle string, resp []byte, prelude ...[]byte) []byte {
	b.Memory(2)
	if len(resp) > 0 {
		b.Data(ResponseOffset, resp)
	}
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	fn := b.Func(i32i32, i64, Seq(prelude...), packed(ResponseOffset, len(resp)))
	b.Export("alloc", alloc).Export(handle, fn)
	return b.Bytes()
}

// Responder returns a guest whose handle export always answers resp.
func Responder(resp string) []byte {
	return guest(NewBuilder(), "handle", []byte(resp))
}

// ResponderAs is Responder with the handler exported under a custom name.
func ResponderAs(export, resp string) []byte {
	return guest(NewBuilder(), export, []byte(resp))
}

// Hello answers every request with HelloResponse.
func Hello() []byte {
	return Responder(HelloResponse)
}

// Echo returns the request document as its response, so the method, headers
// and body of the request come back unchanged.
func Echo() []byte {
	b := NewBuilder().Memory(2)
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	handle := b.Func(i32i32, i64,
		LocalGet(0), []byte{OpI64ExtendI32}, I64Const(32), []byte{OpI64Shl},
		LocalGet(1), []byte{OpI64ExtendI32}, []byte{OpI64Or},
	)
	b.Export("alloc", alloc).Export("handle", handle)
	return b.Bytes()
}

// Trap satisfies the handler contract but traps on every call.
func Trap() []byte {
	b := NewBuilder().Memory(2)
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	handle := b.Func(i32i32, i64, []byte{OpUnreachable})
	b.Export("alloc", alloc).Export("handle", handle)
	return b.Bytes()
}

// InitTrap is Hello with an _initialize export that traps.
func InitTrap() []byte {
	b := NewBuilder()
	init := b.Func(nil, nil, []byte{OpUnreachable})
	b.Export("_initialize", init)
	return guest(b, "handle", []byte(HelloResponse))
}

// NoHandler has memory and alloc but no handle export.
func NoHandler() []byte {
	b := NewBuilder().Memory(1)
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	b.Export("alloc", alloc)
	return b.Bytes()
}

// WrongSignature exports handle as (i32) -> i32.
func WrongSignature() []byte {
	b := NewBuilder().Memory(1)
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	handle := b.Func(i32, i32, LocalGet(0))
	b.Export("alloc", alloc).Export("handle", handle)
	return b.Bytes()
}

// Library exports answer () -> i32 returning 42. It has no handler.
func Library() []byte {
	b := NewBuilder()
	answer := b.Func(nil, i32, I32Const(42))
	b.Export("answer", answer)
	return b.Bytes()
}

// UsesLibrary imports answer from the module named lib, calls it on every
// request and answers with HelloResponse.
func UsesLibrary(lib string) []byte {
	b := NewBuilder()
	answer := b.Import(lib, "answer", nil, i32)
	return guest(b, "handle", []byte(HelloResponse), Call(answer), []byte{OpDrop})
}

// Cyclic imports x from peer and exports its own x.
func Cyclic(peer string) []byte {
	b := NewBuilder()
	b.Import(peer, "x", nil, nil)
	x := b.Func(nil, nil)
	b.Export("x", x)
	return b.Bytes()
}

// MissingImport imports from a module no artifact provides.
func MissingImport() []byte {
	b := NewBuilder()
	b.Import("missing.module", "fn", nil, nil)
	return guest(b, "handle", []byte(HelloResponse))
}

// MissingGlobalImport imports only a global, from a module no artifact
// provides.
func MissingGlobalImport() []byte {
	b := NewBuilder()
	b.ImportGlobal("missing.module", "base", I32)
	return guest(b, "handle", []byte(HelloResponse))
}

// ImportsWASI imports wasi_snapshot_preview1.proc_exit without calling it.
func ImportsWASI() []byte {
	b := NewBuilder()
	b.Import("wasi_snapshot_preview1", "proc_exit", i32, nil)
	return guest(b, "handle", []byte(HelloResponse))
}

// ImportsHost logs its response text through fnhost.log on every request.
func ImportsHost() []byte {
	b := NewBuilder()
	log := b.Import("fnhost", "log", i32i32, nil)
	resp := []byte(HelloResponse)
	return guest(b, "handle", resp,
		I32Const(ResponseOffset), I32Const(int32(len(resp))), Call(log))
}

// HostCaller sends call to fnhost.call on every request and returns the
// host's reply document as its response.
func HostCaller(call string) []byte {
	b := NewBuilder()
	fn := b.Import("fnhost", "call", i32i32, i64)
	b.Memory(2)
	b.Data(CallOffset, []byte(call))
	alloc := b.Func(i32, i32, I32Const(AllocOffset))
	handle := b.Func(i32i32, i64, I32Const(CallOffset), I32Const(int32(len(call))), Call(fn))
	b.Export("alloc", alloc).Export("handle", handle)
	return b.Bytes()
}

// HostCallerThen sends call to fnhost.call, discards the reply and answers
// with resp.
func HostCallerThen(call, resp string) []byte {
	b := NewBuilder()
	fn := b.Import("fnhost", "call", i32i32, i64)
	b.Data(CallOffset, []byte(call))
	return guest(b, "handle", []byte(resp),
		I32Const(CallOffset), I32Const(int32(len(call))), Call(fn), []byte{OpDrop})
}

// Corrupt is not a wasm binary.
func Corrupt() []byte {
	return []byte("not wasm")
}
