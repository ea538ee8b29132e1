package hostfunc

// Call is the document a guest passes to fnhost.call.
type Call struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args,omitempty"`
}

// Reply is the document written back to the guest.
type Reply struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// KV store arguments

type KVGetRequest struct {
	Key     string `json:"key"`
	Default any    `json:"default,omitempty"`
}

type KVSetRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type KVDeleteRequest struct {
	Key string `json:"key"`
}

// HTTP arguments and result

type HTTPRequest struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type HTTPResponse struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}
