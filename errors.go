package polycrypt

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrInvalidKeyLength indicates a key that is not exactly KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrMalformedInput indicates a payload, field list, value encoding or
	// ciphertext that cannot be parsed.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEncryptionFailure indicates the encryption transform could not complete.
	ErrEncryptionFailure = errors.New("encryption failed")

	// ErrDecryptionFailure indicates authentication tag verification failed.
	ErrDecryptionFailure = errors.New("decryption failed")

	// ErrUnknownAlgorithm indicates an encryption algorithm that is not supported.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrMissingField indicates a selected field is absent from a record while
	// the processor runs with strict field checking.
	ErrMissingField = fmt.Errorf("%w: missing field", ErrMalformedInput)
)

// FieldError represents a failure while transforming a single selected field.
// It wraps a sentinel error with context about which field and operation failed.
type FieldError struct {
	Err       error  // Underlying sentinel error (ErrMalformedInput, ErrDecryptionFailure, etc.)
	Field     string // Field name that failed
	Operation string // Operation that failed (encrypt, decrypt)
	Cause     error  // Original error from the underlying operation
}

func (e *FieldError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", e.Operation, e.Field, e.Cause)
	}
	return fmt.Sprintf("%s field %s: %v", e.Operation, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RecordError identifies the batch member that caused a batch call to fail.
type RecordError struct {
	Index int   // Position of the record in the input batch
	Err   error // Error produced for that record
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// CodecError represents a marshal/unmarshal error.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMalformedInput, ErrEncryptionFailure)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// newFieldError creates a FieldError for field transformation failures.
func newFieldError(sentinel error, operation, field string, cause error) error {
	return &FieldError{
		Err:       sentinel,
		Field:     field,
		Operation: operation,
		Cause:     cause,
	}
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}

// malformed wraps a formatted message with ErrMalformedInput.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// classify returns the sentinel an error belongs to, or nil if it matches none.
func classify(err error) error {
	for _, sentinel := range []error{
		ErrInvalidKeyLength,
		ErrMalformedInput,
		ErrEncryptionFailure,
		ErrDecryptionFailure,
		ErrUnknownAlgorithm,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
