package polycrypt

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Record is an ordered mapping from field name to value.
//
// Field names are unique and keep their insertion order through every
// transformation and through JSON marshaling. Values decoded by this package
// are always one of: nil, bool, string, json.Number, []any or *Record.
// Codecs may also store a NativeValue for a type they must write back as is.
//
// A Record is not safe for concurrent mutation; processors never mutate the
// records they are given.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the field names in order. The returned slice is a copy.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Get returns the value of a field and whether it is present.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the record contains key.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set stores v under key. A new key is appended after the existing fields;
// an existing key keeps its position. Set returns the record for chaining.
func (r *Record) Set(key string, v any) *Record {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Delete removes key and reports whether it was present.
func (r *Record) Delete(key string) bool {
	if r == nil {
		return false
	}
	if _, ok := r.values[key]; !ok {
		return false
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return true
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(key string, v any) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping field order.
// Duplicate field names, invalid UTF-8 and non-object input are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !utf8.Valid(data) {
		return malformed("record: invalid UTF-8")
	}
	dec := newValueDecoder(data)

	tok, err := dec.Token()
	if err != nil {
		return malformed("record: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return malformed("record must be an object")
	}

	rec, err := decodeObject(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}

	*r = *rec
	return nil
}
