// Package polycrypt provides selective-field authenticated encryption for
// semi-structured records.
//
// Given a record (an ordered mapping of named values) and a list of field
// names, polycrypt encrypts exactly those fields, leaving field order,
// untouched fields and the record's shape intact. The same operation is
// available over batches of records as a single all-or-nothing call.
//
// # Cipher
//
// Encrypt and Decrypt work on raw bytes under a caller-supplied 32-byte key.
// Ciphertext is nonce || payload || tag:
//
//   - EncryptAES (default) - AES-256-GCM, 28 bytes of overhead
//   - EncryptXChaCha - XChaCha20-Poly1305, 40 bytes of overhead
//
// Decrypt reports ErrMalformedInput for input shorter than the overhead and
// ErrDecryptionFailure when the tag does not verify.
//
// # Fields
//
// A selected field's value, whatever its type, is encoded canonically
// (EncodeValue), encrypted as one unit and stored as a base64 string, so the
// encrypted record is still a valid record:
//
//	rec := polycrypt.NewRecord().
//	    Set("id", "1234").
//	    Set("sensitive_data", "This is sensitive information").
//	    Set("array_field", []string{"item1", "item2", "item3"})
//
//	enc, _ := polycrypt.EncryptFields(rec, []string{"sensitive_data", "array_field"}, key)
//	dec, _ := polycrypt.DecryptFields(enc, []string{"sensitive_data", "array_field"}, key)
//	// dec.Equal(rec) == true
//
// Decryption restores the original type: numbers stay numbers and arrays
// stay arrays. Names that are not present in a record are skipped unless the
// processor is strict.
//
// # Processors and codecs
//
// A Processor binds the operations to a Codec for serialized records and
// emits capitan signals for every operation:
//
//	proc := polycrypt.NewProcessor(json.New()).SetWorkers(8)
//	out, err := proc.EncryptDocuments(ctx, payload, []string{"notes"}, key)
//
// Codec implementations are available as subpackages:
//
//   - json - JSON encoding (application/json), used by the C library
//   - yaml - YAML encoding (application/yaml)
//   - msgpack - MessagePack encoding (application/msgpack)
//   - bson - BSON encoding (application/bson)
//
// # Errors
//
// Key, cipher, field and document failures match one of ErrInvalidKeyLength,
// ErrMalformedInput, ErrEncryptionFailure or ErrDecryptionFailure under
// errors.Is. Two errors fall outside that set: a processor configured with
// an algorithm it does not know returns ErrUnknownAlgorithm, and a batch
// whose context is cancelled returns the context's error. Field and batch
// operations never return partially transformed output.
package polycrypt

// Codec provides content-type aware marshaling of records.
//
// Implementations must accept *Record, []*Record and []string in Marshal,
// and **Record, *[]*Record and *[]string in Unmarshal, preserving record
// field order in both directions.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
