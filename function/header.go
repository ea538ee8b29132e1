package function

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Header is an ordered multimap of header fields. Names compare
// case-insensitively; the casing of the first occurrence is kept. The zero
// value is an empty header ready to use.
type Header struct {
	fields []field
}

type field struct {
	name   string
	values []string
}

func (h *Header) index(name string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].name, name) {
			return i
		}
	}
	return -1
}

// Add appends value to the values of name.
func (h *Header) Add(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].values = append(h.fields[i].values, value)
		return
	}
	h.fields = append(h.fields, field{name: name, values: []string{value}})
}

// Set replaces all values of name with value, keeping its position.
func (h *Header) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].values = []string{value}
		return
	}
	h.fields = append(h.fields, field{name: name, values: []string{value}})
}

// Del removes name.
func (h *Header) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Get returns the first value of name, or "".
func (h *Header) Get(name string) string {
	if i := h.index(name); i >= 0 && len(h.fields[i].values) > 0 {
		return h.fields[i].values[0]
	}
	return ""
}

// Values returns all values of name in insertion order.
func (h *Header) Values(name string) []string {
	if i := h.index(name); i >= 0 {
		return h.fields[i].values
	}
	return nil
}

// Len returns the number of distinct names.
func (h *Header) Len() int {
	return len(h.fields)
}

// Each calls fn for every name in insertion order.
func (h *Header) Each(fn func(name string, values []string)) {
	for _, f := range h.fields {
		fn(f.name, f.values)
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() Header {
	out := Header{fields: make([]field, len(h.fields))}
	for i, f := range h.fields {
		out.fields[i] = field{name: f.name, values: append([]string(nil), f.values...)}
	}
	return out
}

// MarshalJSON encodes the header as an object whose members keep insertion
// order: {"Name": ["v1", "v2"]}.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range h.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.name)
		if err != nil {
			return nil, err
		}
		values, err := json.Marshal(f.values)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of name to value list, preserving member
// order. A bare string is accepted as a single value.
func (h *Header) UnmarshalJSON(data []byte) error {
	h.fields = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("header: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("header: expected name, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("header %q: %w", name, err)
		}

		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			var single string
			if err2 := json.Unmarshal(raw, &single); err2 != nil {
				return fmt.Errorf("header %q: expected string or string list", name)
			}
			values = []string{single}
		}
		for _, v := range values {
			h.Add(name, v)
		}
	}

	_, err = dec.Token()
	return err
}
