// Package artifact opens function artifacts and enumerates the WebAssembly
// modules they contain.
//
// Three layouts are accepted:
//
//   - a zip archive (.jar or .zip) whose .wasm entries are modules
//   - a single .wasm file
//   - a directory tree of .wasm files
//
// A module's name is its path inside the artifact without the .wasm suffix,
// with path separators replaced by dots, so io/fission/HelloWorld.wasm is the
// module io.fission.HelloWorld. Directory entries and non-wasm members such as
// META-INF/MANIFEST.MF are ignored.
//
// Every [ModuleSet] carries an OCI content digest of the artifact so callers
// can report exactly which bundle is loaded.
package artifact
