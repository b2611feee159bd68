// Package testing provides test utilities for polycrypt.
package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/zoobzio/polycrypt"
)

// TestKey returns a valid 32-byte key for testing.
func TestKey(tb testing.TB) []byte {
	tb.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// OtherKey returns a valid key different from TestKey.
func OtherKey(tb testing.TB) []byte {
	tb.Helper()
	return bytes.Repeat([]byte{0x5a}, polycrypt.KeySize)
}

// TestEncryptor returns an encryptor for algo keyed with TestKey.
func TestEncryptor(tb testing.TB, algo polycrypt.EncryptAlgo) polycrypt.Encryptor {
	tb.Helper()
	enc, err := polycrypt.NewEncryptor(algo, TestKey(tb))
	if err != nil {
		tb.Fatalf("NewEncryptor(%s): %v", algo, err)
	}
	return enc
}

// SensitiveFields are the fields of SampleRecord that carry sensitive data.
var SensitiveFields = []string{"sensitive_data", "array_field"}

// SampleRecord returns a record with a mix of plain and sensitive fields.
// Only json.Number values that every codec preserves are used.
func SampleRecord(id int) *polycrypt.Record {
	return polycrypt.NewRecord().
		Set("id", id).
		Set("name", "John Doe").
		Set("sensitive_data", "This is sensitive information").
		Set("array_field", []any{"item1", "item2", "item3"})
}

// SampleBatch returns n sample records with ids 0..n-1.
func SampleBatch(n int) []*polycrypt.Record {
	recs := make([]*polycrypt.Record, n)
	for i := range recs {
		recs[i] = SampleRecord(i)
	}
	return recs
}

// PatientRecord returns a record with nested and numeric sensitive fields.
func PatientRecord() *polycrypt.Record {
	return polycrypt.NewRecord().
		Set("patient_id", "p-001").
		Set("ssn", "123-45-6789").
		Set("age", 42).
		Set("weight", 71.5).
		Set("insured", true).
		Set("address", polycrypt.NewRecord().
			Set("street", "1 Main St").
			Set("city", "Boston")).
		Set("allergies", []any{"penicillin", nil})
}

// PatientFields are the sensitive fields of PatientRecord.
var PatientFields = []string{"ssn", "age", "weight", "address", "allergies"}

// AssertRecordEqual fails tb when got and want differ.
func AssertRecordEqual(tb testing.TB, got, want *polycrypt.Record) {
	tb.Helper()
	if !got.Equal(want) {
		tb.Errorf("record mismatch:\n got: %s\nwant: %s", describe(got), describe(want))
	}
}

// AssertRecordsEqual fails tb when the batches differ in length or any member.
func AssertRecordsEqual(tb testing.TB, got, want []*polycrypt.Record) {
	tb.Helper()
	if len(got) != len(want) {
		tb.Fatalf("batch length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			tb.Errorf("record %d mismatch:\n got: %s\nwant: %s", i, describe(got[i]), describe(want[i]))
		}
	}
}

func describe(rec *polycrypt.Record) string {
	data, err := polycrypt.EncodeValue(rec)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
