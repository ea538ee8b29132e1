//go:build wasip1

// Command hello is a minimal handler written in Go:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o HelloWorld.wasm .
package main

import (
	"encoding/json"
	"unsafe"
)

var (
	buffers      = map[uintptr][]byte{}
	lastResponse uintptr
)

//go:wasmexport alloc
func alloc(size int32) int32 {
	buf := make([]byte, size)
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	buffers[ptr] = buf
	return int32(ptr)
}

type request struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
}

//go:wasmexport handle
func handle(ptr, size int32) int64 {
	in := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size)
	var req request
	json.Unmarshal(in, &req)
	delete(buffers, uintptr(ptr))

	out, _ := json.Marshal(map[string]any{
		"status":  200,
		"headers": map[string][]string{"Content-Type": {"text/plain"}},
		"text":    "Hello World! " + req.Method + " " + req.URI,
	})
	delete(buffers, lastResponse)
	p := alloc(int32(len(out)))
	copy(buffers[uintptr(p)], out)
	lastResponse = uintptr(p)
	return int64(p)<<32 | int64(len(out))
}

func main() {}
