// Package fnhost is a generic function container: it starts empty, is
// specialized once with a function artifact, and then serves HTTP requests
// with the loaded function.
//
// # Overview
//
// An artifact is a zip archive, a directory or a single file of WebAssembly
// modules. Specializing names the artifact and an entry point module; the
// entry point's modules are compiled, its dependencies resolved and
// instantiated, and a pool of instances is published as the active handler.
// Re-specializing swaps the handler atomically; in-flight calls finish on the
// old one.
//
// # Basic Usage
//
//	l, _ := loader.New(loader.WithPoolSize(4))
//	defer l.Close()
//
//	h := host.New(l)
//	err := h.Specialize(ctx, host.Request{
//	    Location:   "/userfunc/user",
//	    EntryPoint: "io.fission.HelloWorld",
//	})
//
//	resp, err := h.Invoke(ctx, &function.Request{Method: "GET", URI: "/"})
//
// # Serving
//
//	cfg, _ := config.Load("fnhost.toml")
//	fx.New(server.Module(cfg)).Run()
//
// # Guest ABI
//
// The entry module exports memory, alloc(i32) i32 and handle(i32, i32) i64.
// See the [loader] package for the request and response documents and the
// [hostfunc] package for the functions a guest may import.
//
// See the [artifact], [loader], [host], [adapter] and [server] packages for
// detailed API documentation.
package fnhost
