// Package adapter converts between net/http messages and the function
// request model.
package adapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/caffeineduck/fnhost/codec"
	"github.com/caffeineduck/fnhost/function"
)

var (
	// ErrBodyTooLarge is returned by FromHTTP when the body exceeds the limit.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrEncodeResponse is returned by WriteHTTP when Value cannot be
	// encoded. Nothing has been written to the client in that case.
	ErrEncodeResponse = errors.New("encode response")
)

// framingHeaders are interpreted by net/http itself, which only looks them
// up under their canonical names.
var framingHeaders = map[string]bool{
	"Content-Type":      true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
}

// FromHTTP materializes r. The method and request URI are kept verbatim and
// the body is read fully; a maxBody of 0 means no limit. net/http does not
// keep the arrival order of distinct header names, so names are sorted;
// repeated values of one name keep their order. When the content type has a
// codec and the body decodes, the decoded value is set as well.
func FromHTTP(r *http.Request, maxBody int64) (*function.Request, error) {
	req := &function.Request{
		Method: r.Method,
		URI:    r.RequestURI,
	}
	if req.URI == "" {
		req.URI = r.URL.RequestURI()
	}

	names := make([]string, 0, len(r.Header)+1)
	for name := range r.Header {
		names = append(names, name)
	}
	if _, ok := r.Header["Host"]; !ok && r.Host != "" {
		names = append(names, "Host")
	}
	slices.Sort(names)
	for _, name := range names {
		if name == "Host" && r.Header["Host"] == nil {
			req.Header.Add(name, r.Host)
			continue
		}
		for _, v := range r.Header[name] {
			req.Header.Add(name, v)
		}
	}

	if r.Body != nil && r.Body != http.NoBody {
		body, err := readBody(r.Body, maxBody)
		if err != nil {
			return nil, err
		}
		if len(body) > 0 {
			req.Body = body
		}
	}

	if len(req.Body) > 0 {
		if c, ok := codec.ForContentType(r.Header.Get("Content-Type")); ok {
			var v any
			if err := c.Unmarshal(req.Body, &v); err == nil {
				req.Value = v
			}
		}
	}
	return req, nil
}

func readBody(body io.Reader, maxBody int64) ([]byte, error) {
	if maxBody <= 0 {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(io.LimitReader(body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > maxBody {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}

// WriteHTTP writes resp to w. Status, headers and body are passed through
// unchanged; header names are not canonicalized, except the framing headers
// net/http reads (Content-Type, Content-Length, Transfer-Encoding). A status
// of 0 is written as 200. When Body is empty and Value is set, Value is
// encoded with the codec for the response Content-Type, JSON by default. An
// encoding failure wraps ErrEncodeResponse and happens before anything is
// written; any other error means the response is already partially sent.
func WriteHTTP(w http.ResponseWriter, resp *function.Response) error {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	body := resp.Body
	contentType := ""
	if len(body) == 0 && resp.Value != nil {
		ct := resp.Header.Get("Content-Type")
		c, ok := codec.ForContentType(ct)
		if !ok {
			c = codec.JSON
		}
		if ct == "" {
			contentType = c.ContentType()
		}
		encoded, err := c.Marshal(resp.Value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEncodeResponse, err)
		}
		body = encoded
	}

	hdr := w.Header()
	resp.Header.Each(func(name string, values []string) {
		if canonical := http.CanonicalHeaderKey(name); framingHeaders[canonical] {
			name = canonical
		}
		hdr[name] = slices.Clone(values)
	})
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}

	w.WriteHeader(status)
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}
	return nil
}
