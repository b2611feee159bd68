package polycrypt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EncodeValue returns the canonical byte encoding of a field value.
//
// The encoding is compact JSON with object fields in record order, so
// DecodeValue(EncodeValue(v)) yields the same type and structure as v:
// strings stay strings, numbers stay numbers (as json.Number), arrays stay
// arrays and records stay records.
//
// Besides the canonical types, EncodeValue accepts Go integers and floats,
// []string, map[string]any (encoded with sorted keys) and NativeValue.
// Floats always keep a fraction or exponent. Strings and field names must
// be valid UTF-8.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue parses bytes produced by EncodeValue.
func DecodeValue(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, malformed("invalid UTF-8")
	}
	dec := newValueDecoder(data)
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return v, nil
}

// NativeValue is a codec-specific value with no canonical type of its own,
// such as a BSON ObjectID. Codecs store it in a record so an unselected
// field is written back unchanged; selecting the field encrypts the
// canonical form returned by CanonicalValue.
type NativeValue interface {
	CanonicalValue() (any, error)
}

// FloatNumber formats a finite float as a json.Number that always reads
// back as a float: 1.0 becomes "1.0", not "1".
func FloatNumber(f float64, bitSize int) (json.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", malformed("unsupported number %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

// Normalize converts v to the canonical value types by encoding and
// decoding it. Codecs use it to accept the same inputs as EncodeValue.
func Normalize(v any) (any, error) {
	data, err := EncodeValue(v)
	if err != nil {
		return nil, err
	}
	return DecodeValue(data)
}

// appendValue writes the canonical encoding of v to buf.
//
//nolint:gocyclo // one case per supported value type
func appendValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case string:
		return appendJSON(buf, x)
	case json.Number:
		if x == "" {
			return malformed("empty number")
		}
		return appendJSON(buf, x)
	case float64:
		n, err := FloatNumber(x, 64)
		if err != nil {
			return err
		}
		buf.WriteString(n.String())
	case float32:
		n, err := FloatNumber(float64(x), 32)
		if err != nil {
			return err
		}
		buf.WriteString(n.String())
	case int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(x, 10))
	case []any:
		buf.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Record:
		if x == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := appendValue(buf, x.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := &Record{keys: keys, values: x}
		return appendValue(buf, rec)
	case NativeValue:
		c, err := x.CanonicalValue()
		if err != nil {
			if errors.Is(err, ErrMalformedInput) {
				return err
			}
			return malformed("%v", err)
		}
		return appendValue(buf, c)
	default:
		return malformed("unsupported value type %T", v)
	}
	return nil
}

// appendJSON writes a JSON string or number literal without HTML escaping.
// Strings must be valid UTF-8; number literals are validated by the encoder.
func appendJSON(buf *bytes.Buffer, v any) error {
	if s, ok := v.(string); ok && !utf8.ValidString(s) {
		return malformed("invalid UTF-8 in string %q", s)
	}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return malformed("%v", err)
	}
	// Encoder terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// newValueDecoder returns a token decoder that keeps numbers as json.Number.
func newValueDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

// decodeValue reads one complete value from dec.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, malformed("%v", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, malformed("unexpected delimiter %q", rune(t))
		}
	case string, bool, json.Number, nil:
		return t, nil
	default:
		return nil, malformed("unexpected token %v", tok)
	}
}

// decodeObject reads object members after the opening brace.
func decodeObject(dec *json.Decoder) (*Record, error) {
	rec := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("%v", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, malformed("object key must be a string")
		}
		if rec.Has(key) {
			return nil, malformed("duplicate field %q", key)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		rec.Set(key, v)
	}
	// Closing brace
	if _, err := dec.Token(); err != nil {
		return nil, malformed("%v", err)
	}
	return rec, nil
}

// decodeArray reads array elements after the opening bracket.
func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := make([]any, 0)
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	// Closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, malformed("%v", err)
	}
	return arr, nil
}

// expectEOF fails if anything but whitespace follows the decoded value.
func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return malformed("trailing data after value")
	}
	return nil
}
