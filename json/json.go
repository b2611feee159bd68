// Package json provides a JSON codec implementation.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/zoobzio/polycrypt"
)

// jsonCodec implements polycrypt.Codec for JSON.
type jsonCodec struct{}

// New returns a JSON codec.
func New() polycrypt.Codec {
	return &jsonCodec{}
}

// ContentType returns the MIME type for JSON.
func (c *jsonCodec) ContentType() string {
	return "application/json"
}

// Marshal encodes v as compact JSON. HTML characters are written as-is.
func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes JSON data into v.
// Numbers are kept as json.Number so they survive a round trip unchanged.
// Invalid UTF-8 is rejected rather than replaced.
func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: invalid UTF-8", polycrypt.ErrMalformedInput)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after JSON value", polycrypt.ErrMalformedInput)
	}
	return nil
}
