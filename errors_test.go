package polycrypt

import (
	"errors"
	"testing"
)

func TestFieldError_Is(t *testing.T) {
	err := newFieldError(ErrDecryptionFailure, OpDecrypt, "ssn", errors.New("tag mismatch"))

	if !errors.Is(err, ErrDecryptionFailure) {
		t.Error("FieldError should unwrap to ErrDecryptionFailure")
	}

	if errors.Is(err, ErrMalformedInput) {
		t.Error("FieldError should not match ErrMalformedInput")
	}

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatal("errors.As should find *FieldError")
	}
	if fe.Field != "ssn" || fe.Operation != OpDecrypt {
		t.Errorf("FieldError = %+v", fe)
	}
}

func TestFieldError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with cause",
			err:  newFieldError(ErrEncryptionFailure, OpEncrypt, "notes", errors.New("no entropy")),
			want: "encrypt field notes: no entropy",
		},
		{
			name: "without cause",
			err:  newFieldError(ErrMissingField, OpDecrypt, "notes", nil),
			want: "decrypt field notes: malformed input: missing field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	inner := newFieldError(ErrDecryptionFailure, OpDecrypt, "ssn", nil)
	err := &RecordError{Index: 7, Err: inner}

	if !errors.Is(err, ErrDecryptionFailure) {
		t.Error("RecordError should unwrap to the field's sentinel")
	}

	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "ssn" {
		t.Error("RecordError should unwrap to *FieldError")
	}

	want := "record 7: decrypt field ssn: decryption failed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCodecError(t *testing.T) {
	err := newCodecError(ErrMalformedInput, errors.New("unexpected EOF"))

	if !errors.Is(err, ErrMalformedInput) {
		t.Error("CodecError should unwrap to ErrMalformedInput")
	}

	want := "malformed input: unexpected EOF"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &CodecError{Err: ErrMalformedInput}
	if got := bare.Error(); got != "malformed input" {
		t.Errorf("Error() = %q, want %q", got, "malformed input")
	}
}

func TestMissingFieldIsMalformed(t *testing.T) {
	if !errors.Is(ErrMissingField, ErrMalformedInput) {
		t.Error("ErrMissingField should match ErrMalformedInput")
	}
}

func TestMalformed(t *testing.T) {
	err := malformed("field %d is empty", 2)

	if !errors.Is(err, ErrMalformedInput) {
		t.Error("malformed() should wrap ErrMalformedInput")
	}
	if got := err.Error(); got != "malformed input: field 2 is empty" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"key", ErrInvalidKeyLength, ErrInvalidKeyLength},
		{"wrapped malformed", malformed("x"), ErrMalformedInput},
		{"missing field", ErrMissingField, ErrMalformedInput},
		{"record", &RecordError{Err: ErrDecryptionFailure}, ErrDecryptionFailure},
		{"encryption", newFieldError(ErrEncryptionFailure, OpEncrypt, "f", nil), ErrEncryptionFailure},
		{"algorithm", ErrUnknownAlgorithm, ErrUnknownAlgorithm},
		{"unknown", errors.New("boom"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrInvalidKeyLength,
		ErrMalformedInput,
		ErrEncryptionFailure,
		ErrDecryptionFailure,
		ErrUnknownAlgorithm,
		ErrInvalidTag,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
