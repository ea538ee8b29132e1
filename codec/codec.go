// Package codec maps content types to the encodings used for structured
// request and response bodies.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/vmihailenco/msgpack/v5"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

type jsonCodec struct{}

// JSON is the default codec.
var JSON Codec = jsonCodec{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	// Probe for trailing data (must be EOF)
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("json trailing content")
	}
	return nil
}

func (jsonCodec) ContentType() string { return "application/json" }

type tomlCodec struct{}

// TOML encodes tables only; scalars and arrays at the top level are rejected.
var TOML Codec = tomlCodec{}

func (tomlCodec) Marshal(v any) ([]byte, error) { return toml.Marshal(v) }

func (tomlCodec) Unmarshal(data []byte, v any) error {
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("toml decode: %w", err)
	}
	return nil
}

func (tomlCodec) ContentType() string { return "application/toml" }

type msgpackCodec struct{}

var MsgPack Codec = msgpackCodec{}

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}

func (msgpackCodec) ContentType() string { return "application/msgpack" }

var byType = map[string]Codec{
	"application/json":      JSON,
	"text/json":             JSON,
	"application/toml":      TOML,
	"application/msgpack":   MsgPack,
	"application/x-msgpack": MsgPack,
}

// ForContentType returns the codec registered for the media type of ct.
// Parameters such as charset are ignored, and "+json" suffixed types map to
// JSON.
func ForContentType(ct string) (Codec, bool) {
	if ct == "" {
		return nil, false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, false
	}
	if c, ok := byType[mt]; ok {
		return c, true
	}
	if strings.HasSuffix(mt, "+json") {
		return JSON, true
	}
	return nil, false
}
