// Package bson provides a BSON codec implementation.
//
// BSON requires a document at the top level, so a batch is written as
// {"records": [...]} and a field list as {"fields": [...]}. Records are
// built as bson.D and read back from bson.Raw so field order is kept.
//
// BSON types with no canonical counterpart (ObjectID, int32, Decimal128,
// datetime, binary and the rest) are read as Value, which writes the
// original bytes back out. An unselected field therefore survives an
// encrypt or decrypt pass with its BSON type intact. A selected field is
// encrypted in its canonical form and restored as that canonical value.
package bson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/zoobzio/polycrypt"
	"go.mongodb.org/mongo-driver/bson"
)

// Top-level keys for batch and field-list documents.
const (
	RecordsKey = "records"
	FieldsKey  = "fields"
)

// bsonCodec implements polycrypt.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec.
func New() polycrypt.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as BSON.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case *polycrypt.Record:
		if t == nil {
			return nil, fmt.Errorf("%w: BSON cannot encode a null document", polycrypt.ErrMalformedInput)
		}
		doc, err := toDocument(t)
		if err != nil {
			return nil, err
		}
		return bson.Marshal(doc)
	case []*polycrypt.Record:
		arr := make(bson.A, len(t))
		for i, rec := range t {
			if rec == nil {
				continue
			}
			doc, err := toDocument(rec)
			if err != nil {
				return nil, err
			}
			arr[i] = doc
		}
		return bson.Marshal(bson.D{{Key: RecordsKey, Value: arr}})
	case []string:
		arr := make(bson.A, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return bson.Marshal(bson.D{{Key: FieldsKey, Value: arr}})
	default:
		return bson.Marshal(v)
	}
}

// Unmarshal decodes BSON data into v.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	switch t := v.(type) {
	case **polycrypt.Record:
		raw, err := validate(data)
		if err != nil {
			return err
		}
		rec, err := fromDocument(raw)
		if err != nil {
			return err
		}
		*t = rec
		return nil
	case *[]*polycrypt.Record:
		items, err := topLevelArray(data, RecordsKey)
		if err != nil || items == nil {
			*t = nil
			return err
		}
		recs := make([]*polycrypt.Record, len(items))
		for i, item := range items {
			switch item.Type {
			case bson.TypeNull:
			case bson.TypeEmbeddedDocument:
				if recs[i], err = fromDocument(item.Document()); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
			default:
				return fmt.Errorf("%w: record %d is not a document", polycrypt.ErrMalformedInput, i)
			}
		}
		*t = recs
		return nil
	case *[]string:
		items, err := topLevelArray(data, FieldsKey)
		if err != nil || items == nil {
			*t = nil
			return err
		}
		names := make([]string, len(items))
		for i, item := range items {
			s, ok := item.StringValueOK()
			if !ok {
				return fmt.Errorf("%w: name %d is not a string", polycrypt.ErrMalformedInput, i)
			}
			names[i] = s
		}
		*t = names
		return nil
	default:
		return bson.Unmarshal(data, v)
	}
}

func validate(data []byte) (bson.Raw, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
	}
	return raw, nil
}

// topLevelArray returns the array stored under key, or nil when the key
// holds null.
func topLevelArray(data []byte, key string) ([]bson.RawValue, error) {
	raw, err := validate(data)
	if err != nil {
		return nil, err
	}
	val, err := raw.LookupErr(key)
	if err != nil {
		return nil, fmt.Errorf("%w: document has no %q array", polycrypt.ErrMalformedInput, key)
	}
	if val.Type == bson.TypeNull {
		return nil, nil
	}
	arr, ok := val.ArrayOK()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an array", polycrypt.ErrMalformedInput, key)
	}
	values, err := arr.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
	}
	if values == nil {
		values = []bson.RawValue{}
	}
	return values, nil
}

// Value holds a BSON value that has no canonical type. It implements
// polycrypt.NativeValue.
type Value struct {
	raw bson.RawValue
}

// NewValue copies rv into a Value.
func NewValue(rv bson.RawValue) Value {
	return Value{raw: bson.RawValue{Type: rv.Type, Value: bytes.Clone(rv.Value)}}
}

// Raw returns the BSON value.
func (v Value) Raw() bson.RawValue {
	return v.raw
}

// CanonicalValue returns the form a selected field is encrypted in.
func (v Value) CanonicalValue() (any, error) {
	rv := v.raw
	switch rv.Type {
	case bson.TypeUndefined:
		return nil, nil
	case bson.TypeObjectID:
		return rv.ObjectID().Hex(), nil
	case bson.TypeInt32:
		return json.Number(strconv.FormatInt(int64(rv.Int32()), 10)), nil
	case bson.TypeDateTime:
		return rv.Time().UTC().Format(time.RFC3339Nano), nil
	case bson.TypeBinary:
		_, data := rv.Binary()
		return base64.StdEncoding.EncodeToString(data), nil
	case bson.TypeDecimal128:
		s := rv.Decimal128().String()
		if d, err := polycrypt.DecodeValue([]byte(s)); err == nil {
			if n, ok := d.(json.Number); ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("%w: decimal %s is not a finite number", polycrypt.ErrMalformedInput, s)
	default:
		return nil, fmt.Errorf("%w: BSON %s has no canonical form", polycrypt.ErrMalformedInput, rv.Type)
	}
}

// toDocument converts a record to an ordered BSON document.
func toDocument(rec *polycrypt.Record) (bson.D, error) {
	v, err := toBSON(rec)
	if err != nil {
		return nil, err
	}
	return v.(bson.D), nil
}

// toBSON converts a record value to its BSON representation. Values
// outside the canonical set are normalized first.
func toBSON(v any) (any, error) {
	switch t := v.(type) {
	case Value:
		return t.raw, nil
	case nil, bool, string:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %s out of range", polycrypt.ErrMalformedInput, t)
		}
		return f, nil
	case []any:
		arr := make(bson.A, len(t))
		for i, item := range t {
			b, err := toBSON(item)
			if err != nil {
				return nil, err
			}
			arr[i] = b
		}
		return arr, nil
	case *polycrypt.Record:
		if t == nil {
			return nil, nil
		}
		doc := make(bson.D, 0, t.Len())
		var err error
		t.Range(func(key string, value any) bool {
			var b any
			if b, err = toBSON(value); err != nil {
				return false
			}
			doc = append(doc, bson.E{Key: key, Value: b})
			return true
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	default:
		canonical, err := polycrypt.Normalize(v)
		if err != nil {
			return nil, err
		}
		return toBSON(canonical)
	}
}

// fromDocument reads a BSON document as a record, keeping element order.
func fromDocument(raw bson.Raw) (*polycrypt.Record, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
	}
	rec := polycrypt.NewRecord()
	for _, elem := range elems {
		key := elem.Key()
		if rec.Has(key) {
			return nil, fmt.Errorf("%w: duplicate field %q", polycrypt.ErrMalformedInput, key)
		}
		v, err := fromValue(elem.Value())
		if err != nil {
			return nil, err
		}
		rec.Set(key, v)
	}
	return rec, nil
}

// fromValue converts a BSON value to a canonical value, or to a Value when
// the type has no canonical counterpart.
func fromValue(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bson.TypeNull:
		return nil, nil
	case bson.TypeBoolean:
		return rv.Boolean(), nil
	case bson.TypeString:
		return rv.StringValue(), nil
	case bson.TypeInt64:
		return json.Number(strconv.FormatInt(rv.Int64(), 10)), nil
	case bson.TypeDouble:
		return polycrypt.FloatNumber(rv.Double(), 64)
	case bson.TypeEmbeddedDocument:
		return fromDocument(rv.Document())
	case bson.TypeArray:
		values, err := rv.Array().Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
		}
		arr := make([]any, 0, len(values))
		for _, item := range values {
			v, err := fromValue(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	default:
		if err := rv.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
		}
		return NewValue(rv), nil
	}
}
