// Package hostfunc provides the host functions a loaded function may call.
//
// Guests import them from the "fnhost" namespace:
//
//	(import "fnhost" "log"  (func (param i32 i32)))
//	(import "fnhost" "call" (func (param i32 i32) (result i64)))
//
// log writes a line to the host log. call takes a JSON document
//
//	{"fn": "kv_get", "args": {"key": "greeting"}}
//
// dispatches it through a [Registry] and writes the reply
//
//	{"data": "hello"}  or  {"error": "key required"}
//
// into memory obtained from the guest's alloc export. The return value packs
// the reply pointer in the high 32 bits and its length in the low 32 bits; 0
// means no reply could be written.
//
// # Built-in functions
//
// Key-value store, one per loaded handler, via [KVStore] and [KVConfig]:
//
//	kv := hostfunc.NewKV(hostfunc.DefaultKVConfig())
//	kv.Register(registry) // kv_get, kv_set, kv_delete, kv_keys
//
// Outbound HTTP limited to allowed hosts via [HTTP] and [HTTPConfig]:
//
//	h := hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"api.example.com"}})
//	h.Register(registry) // http_request, http_get
//
// Custom functions are plain [Func] values:
//
//	registry.Register("my_func", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "result", nil
//	})
package hostfunc
