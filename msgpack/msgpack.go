// Package msgpack provides a MessagePack codec implementation.
//
// Records are written as maps in field order and read back with the
// low-level decoder so that order is kept. Integers round-trip exactly;
// floats are carried as float64 and always read back as floats.
package msgpack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"github.com/zoobzio/polycrypt"
)

// msgpackCodec implements polycrypt.Codec for MessagePack.
type msgpackCodec struct{}

// New returns a MessagePack codec.
func New() polycrypt.Codec {
	return &msgpackCodec{}
}

// ContentType returns the MIME type for MessagePack.
func (c *msgpackCodec) ContentType() string {
	return "application/msgpack"
}

// Marshal encodes v as MessagePack.
func (c *msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	switch t := v.(type) {
	case *polycrypt.Record:
		canonical, err := polycrypt.Normalize(t)
		if err != nil {
			return nil, err
		}
		if err := encodeValue(enc, canonical); err != nil {
			return nil, err
		}
	case []*polycrypt.Record:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return nil, err
		}
		for _, rec := range t {
			canonical, err := polycrypt.Normalize(rec)
			if err != nil {
				return nil, err
			}
			if err := encodeValue(enc, canonical); err != nil {
				return nil, err
			}
		}
	case []string:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return nil, err
		}
		for _, s := range t {
			if err := enc.EncodeString(s); err != nil {
				return nil, err
			}
		}
	default:
		return msgpack.Marshal(v)
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes MessagePack data into v.
func (c *msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	switch t := v.(type) {
	case **polycrypt.Record:
		rec, err := decodeRecordOrNil(dec)
		if err != nil {
			return err
		}
		*t = rec
	case *[]*polycrypt.Record:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		if n < 0 {
			*t = nil
			break
		}
		if n > len(data) {
			return fmt.Errorf("%w: array length %d exceeds input", polycrypt.ErrMalformedInput, n)
		}
		recs := make([]*polycrypt.Record, n)
		for i := range recs {
			if recs[i], err = decodeRecordOrNil(dec); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		*t = recs
	case *[]string:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		if n < 0 {
			*t = nil
			break
		}
		if n > len(data) {
			return fmt.Errorf("%w: array length %d exceeds input", polycrypt.ErrMalformedInput, n)
		}
		names := make([]string, n)
		for i := range names {
			if names[i], err = dec.DecodeString(); err != nil {
				return err
			}
		}
		*t = names
	default:
		return msgpack.Unmarshal(data, v)
	}

	if _, err := dec.PeekCode(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after MessagePack value", polycrypt.ErrMalformedInput)
	}
	return nil
}

// encodeValue writes a canonical value.
func encodeValue(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(t)
	case string:
		return enc.EncodeString(t)
	case json.Number:
		return encodeNumber(enc, t)
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := encodeValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case *polycrypt.Record:
		if err := enc.EncodeMapLen(t.Len()); err != nil {
			return err
		}
		var err error
		t.Range(func(key string, value any) bool {
			if err = enc.EncodeString(key); err != nil {
				return false
			}
			err = encodeValue(enc, value)
			return err == nil
		})
		return err
	default:
		return fmt.Errorf("%w: unsupported value type %T", polycrypt.ErrMalformedInput, v)
	}
}

func encodeNumber(enc *msgpack.Encoder, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		return enc.EncodeInt(i)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return enc.EncodeUint(u)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: number %s out of range", polycrypt.ErrMalformedInput, n)
	}
	return enc.EncodeFloat64(f)
}

// decodeRecordOrNil reads a map as a record, or nil.
func decodeRecordOrNil(dec *msgpack.Decoder) (*polycrypt.Record, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	if code == msgpcode.Nil {
		return nil, dec.DecodeNil()
	}
	if !isMap(code) {
		return nil, fmt.Errorf("%w: record must be a map", polycrypt.ErrMalformedInput)
	}
	return decodeRecord(dec)
}

func decodeRecord(dec *msgpack.Decoder) (*polycrypt.Record, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	rec := polycrypt.NewRecord()
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		if rec.Has(key) {
			return nil, fmt.Errorf("%w: duplicate field %q", polycrypt.ErrMalformedInput, key)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		rec.Set(key, v)
	}
	return rec, nil
}

// decodeValue reads any value, keeping maps ordered.
func decodeValue(dec *msgpack.Decoder) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case isMap(code):
		return decodeRecord(dec)
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		// Lengths come from the input; grow on demand.
		arr := make([]any, 0, min(n, 64))
		for range n {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	return scalar(v)
}

func isMap(code byte) bool {
	return msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32
}

// scalar converts a decoded scalar to a canonical value.
func scalar(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case int8:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int16:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case uint8:
		return json.Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint16:
		return json.Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint32:
		return json.Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(t, 10)), nil
	case float32:
		return polycrypt.FloatNumber(float64(t), 32)
	case float64:
		return polycrypt.FloatNumber(t, 64)
	default:
		return nil, fmt.Errorf("%w: unsupported MessagePack type %T", polycrypt.ErrMalformedInput, v)
	}
}
