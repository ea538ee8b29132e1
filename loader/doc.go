// Package loader resolves and instantiates the entry point of a function
// artifact.
//
// Every artifact gets its own wazero runtime, so modules from successive
// specializations never share a namespace. Within that runtime the loader
// compiles every module of the artifact, instantiates the non-entry modules
// under their names in dependency order, and checks that the entry module
// implements the handler ABI:
//
//	(export "memory" (memory 1))
//	(export "alloc"  (func (param i32) (result i32)))
//	(export "handle" (func (param i32 i32) (result i64)))
//
// For each request the host calls alloc with the size of the request
// document, writes the document there and calls handle with its pointer and
// length. handle returns the response document's pointer in the high 32 bits
// and its length in the low 32 bits.
//
// Request document:
//
//	{"method": "GET", "uri": "/path?q=1", "headers": {"Accept": ["*/*"]},
//	 "body": "<base64>", "json": <decoded body, when the content type has a codec>}
//
// Response document:
//
//	{"status": 200, "headers": {"Content-Type": ["text/plain"]},
//	 "body": "<base64>" | "text": "..." | "json": <value>}
//
// body wins over text, which wins over json. A status of 0 means 200.
//
// An export named _initialize runs once per instance. Guests may import
// wasi_snapshot_preview1 and the fnhost host functions (see package hostfunc)
// when the loader grants them; an entry point importing a namespace that is
// not granted is refused.
package loader
