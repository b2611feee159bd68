package bson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/polycrypt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/bson")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	c := New()
	original := polycrypt.NewRecord().
		Set("z", json.Number("1")).
		Set("a", "two").
		Set("frac", json.Number("2.5")).
		Set("flag", true).
		Set("empty", nil).
		Set("list", []any{json.Number("7"), "x"}).
		Set("nested", polycrypt.NewRecord().Set("k", "v"))

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored *polycrypt.Record
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if !restored.Equal(original) {
		got, _ := restored.MarshalJSON()
		want, _ := original.MarshalJSON()
		t.Errorf("round-trip = %s, want %s", got, want)
	}
	if got := strings.Join(restored.Keys(), ","); got != "z,a,frac,flag,empty,list,nested" {
		t.Errorf("Keys() = %s", got)
	}
}

func TestNullRecordRejected(t *testing.T) {
	c := New()

	_, err := c.Marshal((*polycrypt.Record)(nil))
	if !errors.Is(err, polycrypt.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestUnmarshalMongoTypes(t *testing.T) {
	c := New()
	oid := primitive.NewObjectID()
	dec, err := primitive.ParseDecimal128("12.50")
	if err != nil {
		t.Fatalf("ParseDecimal128() error: %v", err)
	}
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	data, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "small", Value: int32(5)},
		{Key: "price", Value: dec},
		{Key: "at", Value: primitive.NewDateTimeFromTime(when)},
		{Key: "blob", Value: primitive.Binary{Data: []byte("hi")}},
	})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	var rec *polycrypt.Record
	if err := c.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	tests := map[string]any{
		"_id":   oid.Hex(),
		"small": json.Number("5"),
		"price": json.Number("12.50"),
		"at":    "2024-03-01T12:30:00Z",
		"blob":  "aGk=",
	}
	for key, want := range tests {
		v, _ := rec.Get(key)
		native, ok := v.(Value)
		if !ok {
			t.Errorf("%s = %T, want Value", key, v)
			continue
		}
		got, err := native.CanonicalValue()
		if err != nil {
			t.Errorf("%s CanonicalValue() error: %v", key, err)
			continue
		}
		if got != want {
			t.Errorf("%s = %#v, want %#v", key, got, want)
		}
	}
}

func TestNativeTypesSurviveRoundTrip(t *testing.T) {
	c := New()
	oid := primitive.NewObjectID()

	data, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "small", Value: int32(5)},
		{Key: "whole", Value: 1.0},
		{Key: "re", Value: primitive.Regex{Pattern: "a+", Options: "i"}},
	})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	var rec *polycrypt.Record
	if err := c.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if v, _ := rec.Get("whole"); v != json.Number("1.0") {
		t.Errorf("whole = %#v, want json.Number(1.0)", v)
	}

	out, err := c.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoded document differs:\n got %x\nwant %x", out, data)
	}
}

func TestUnselectedNativeFieldsKeepType(t *testing.T) {
	c := New()
	proc := polycrypt.NewProcessor(c)
	ctx := context.Background()
	key := []byte("32-byte-key-for-aes-256-encrypt!")
	oid := primitive.NewObjectID()

	data, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "small", Value: int32(5)},
		{Key: "owner", Value: oid},
		{Key: "ssn", Value: "123-45-6789"},
	})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	fields := []string{"owner", "ssn"}
	enc, err := proc.EncryptDocument(ctx, data, fields, key)
	if err != nil {
		t.Fatalf("EncryptDocument() error: %v", err)
	}

	raw := bson.Raw(enc)
	if got := raw.Lookup("_id").Type; got != bson.TypeObjectID {
		t.Errorf("encrypted _id type = %s, want objectID", got)
	}
	if got := raw.Lookup("small").Type; got != bson.TypeInt32 {
		t.Errorf("encrypted small type = %s, want 32-bit integer", got)
	}
	if got := raw.Lookup("owner").Type; got != bson.TypeString {
		t.Errorf("encrypted owner type = %s, want string", got)
	}

	dec, err := proc.DecryptDocument(ctx, enc, fields, key)
	if err != nil {
		t.Fatalf("DecryptDocument() error: %v", err)
	}
	raw = bson.Raw(dec)
	if got := raw.Lookup("_id").ObjectID(); got != oid {
		t.Errorf("_id = %s, want %s", got.Hex(), oid.Hex())
	}
	if got, ok := raw.Lookup("small").Int32OK(); !ok || got != 5 {
		t.Errorf("small = %v, want int32(5)", raw.Lookup("small"))
	}
	// A selected ObjectID is restored in its canonical form.
	if got := raw.Lookup("owner").StringValue(); got != oid.Hex() {
		t.Errorf("owner = %q, want %q", got, oid.Hex())
	}
	if got := raw.Lookup("ssn").StringValue(); got != "123-45-6789" {
		t.Errorf("ssn = %q", got)
	}
}

func TestSelectedTypeWithoutCanonicalForm(t *testing.T) {
	c := New()
	proc := polycrypt.NewProcessor(c)
	key := []byte("32-byte-key-for-aes-256-encrypt!")

	data, err := bson.Marshal(bson.D{{Key: "re", Value: primitive.Regex{Pattern: "a+"}}})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	// Readable when left alone, rejected once selected.
	var rec *polycrypt.Record
	if err := c.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	out, err := proc.EncryptDocument(context.Background(), data, []string{"re"}, key)
	if !errors.Is(err, polycrypt.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
	if out != nil {
		t.Errorf("output = %x, want nil", out)
	}
}

func TestNonFiniteDoubleRejected(t *testing.T) {
	c := New()

	data, err := bson.Marshal(bson.D{{Key: "f", Value: math.Inf(1)}})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	var rec *polycrypt.Record
	if err := c.Unmarshal(data, &rec); !errors.Is(err, polycrypt.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	c := New()
	recs := []*polycrypt.Record{
		polycrypt.NewRecord().Set("id", "1"),
		nil,
		polycrypt.NewRecord().Set("id", "3"),
	}

	data, err := c.Marshal(recs)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored []*polycrypt.Record
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(restored) != 3 {
		t.Fatalf("len = %d, want 3", len(restored))
	}
	if restored[1] != nil {
		t.Errorf("restored[1] = %v, want nil", restored[1])
	}
	if !restored[0].Equal(recs[0]) || !restored[2].Equal(recs[2]) {
		t.Errorf("restored records differ from input")
	}
}

func TestBatchMissingKey(t *testing.T) {
	c := New()

	data, err := bson.Marshal(bson.D{{Key: "items", Value: bson.A{}}})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	var recs []*polycrypt.Record
	if err := c.Unmarshal(data, &recs); !errors.Is(err, polycrypt.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestFieldList(t *testing.T) {
	c := New()

	data, err := c.Marshal([]string{"sensitive_data", "array_field"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var names []string
	if err := c.Unmarshal(data, &names); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(names) != 2 || names[0] != "sensitive_data" || names[1] != "array_field" {
		t.Errorf("names = %v", names)
	}
}

func TestMarshalUnmarshalStruct(t *testing.T) {
	c := New()

	type TestStruct struct {
		Name  string `bson:"name"`
		Value int    `bson:"value"`
	}

	original := TestStruct{Name: "test", Value: 42}

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored TestStruct
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if restored != original {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	c := New()

	var rec *polycrypt.Record
	if err := c.Unmarshal([]byte("invalid bson"), &rec); !errors.Is(err, polycrypt.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}
