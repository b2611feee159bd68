package testing

import (
	"bytes"
	"testing"

	"github.com/zoobzio/polycrypt"
)

func TestTestKey(t *testing.T) {
	key := TestKey(t)
	if len(key) != polycrypt.KeySize {
		t.Errorf("TestKey() length = %d, want %d", len(key), polycrypt.KeySize)
	}
	if bytes.Equal(key, OtherKey(t)) {
		t.Error("OtherKey() should differ from TestKey()")
	}
}

func TestTestEncryptor(t *testing.T) {
	for _, algo := range []polycrypt.EncryptAlgo{polycrypt.EncryptAES, polycrypt.EncryptXChaCha} {
		enc := TestEncryptor(t, algo)

		// Verify it works
		plaintext := []byte("test")
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("%s: Encrypt() error: %v", algo, err)
		}

		decrypted, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("%s: Decrypt() error: %v", algo, err)
		}

		if string(decrypted) != string(plaintext) {
			t.Errorf("%s: round-trip failed", algo)
		}
	}
}

func TestSampleRecord(t *testing.T) {
	rec := SampleRecord(7)
	for _, name := range SensitiveFields {
		if !rec.Has(name) {
			t.Errorf("SampleRecord missing %s", name)
		}
	}
	AssertRecordEqual(t, rec, SampleRecord(7))
}

func TestSampleBatch(t *testing.T) {
	recs := SampleBatch(3)
	AssertRecordsEqual(t, recs, []*polycrypt.Record{SampleRecord(0), SampleRecord(1), SampleRecord(2)})
}

func TestPatientRecord(t *testing.T) {
	rec := PatientRecord()
	for _, name := range PatientFields {
		if !rec.Has(name) {
			t.Errorf("PatientRecord missing %s", name)
		}
	}
}
