// Package function defines the transport-neutral request and response model
// exchanged between the host and a loaded handler.
package function

import "context"

// Request is a fully materialized inbound request.
type Request struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
	Header Header `json:"headers"`
	// Body is the raw request body. It is base64 on the JSON wire.
	Body []byte `json:"body,omitempty"`
	// Value is the decoded body when the request content type has a codec.
	Value any `json:"json,omitempty"`
}

// Response is what a handler produces for one Request.
type Response struct {
	Status int    `json:"status"`
	Header Header `json:"headers"`
	Body   []byte `json:"body,omitempty"`
	// Value is serialized according to the Content-Type header when Body is
	// empty.
	Value any `json:"json,omitempty"`
}

// Handler is the capability every loaded entry point provides.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Closer is implemented by handlers that hold resources which must be released
// once the handler is no longer active.
type Closer interface {
	Close(ctx context.Context) error
}

type invocationKey struct{}

// WithInvocationID returns a context carrying the invocation id.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationID returns the invocation id stored in ctx, or "".
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}
