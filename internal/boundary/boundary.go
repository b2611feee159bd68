// Package boundary implements the call contract of the polycrypt C library
// on Go byte slices: every operation returns a Result holding either an
// output buffer or a nonzero Code, and nothing panics across the boundary.
//
// cmd/libpolycrypt translates C buffers to and from this package.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zoobzio/polycrypt"
	"github.com/zoobzio/polycrypt/internal/config"
	"github.com/zoobzio/polycrypt/json"
)

// ABIVersion is the version of the exported C ABI. It changes whenever a
// struct layout or function signature changes.
const ABIVersion uint32 = 1

// Code is the error code carried by a Result.
type Code int32

// Error codes. Values are part of the ABI.
const (
	OK                Code = 0
	InvalidKeyLength  Code = 1
	MalformedInput    Code = 2
	EncryptionFailure Code = 3
	DecryptionFailure Code = 4
	Internal          Code = 5
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidKeyLength:
		return "invalid_key_length"
	case MalformedInput:
		return "malformed_input"
	case EncryptionFailure:
		return "encryption_failure"
	case DecryptionFailure:
		return "decryption_failure"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// CodeOf maps an error to its Code. Errors outside the taxonomy map to Internal.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, polycrypt.ErrInvalidKeyLength):
		return InvalidKeyLength
	case errors.Is(err, polycrypt.ErrMalformedInput):
		return MalformedInput
	case errors.Is(err, polycrypt.ErrDecryptionFailure):
		return DecryptionFailure
	case errors.Is(err, polycrypt.ErrEncryptionFailure):
		return EncryptionFailure
	default:
		return Internal
	}
}

// Result is the outcome of one operation. Exactly one of Data and a nonzero
// Code is set.
type Result struct {
	Data []byte
	Code Code
}

// Err returns nil for a successful result and an error naming the code otherwise.
func (r Result) Err() error {
	if r.Code == OK {
		return nil
	}
	return fmt.Errorf("polycrypt: %s (code %d)", r.Code, int32(r.Code))
}

// Release wipes and drops the output buffer. It is safe to call more than once.
func (r *Result) Release() {
	clear(r.Data)
	r.Data = nil
	r.Code = OK
}

// Engine runs the boundary operations with one processor configuration.
// It is safe for concurrent use.
type Engine struct {
	proc *polycrypt.Processor
	cfg  config.Config
}

// New returns an engine configured by cfg. Serialized payloads are JSON.
func New(cfg config.Config) *Engine {
	proc := polycrypt.NewProcessor(json.New()).
		SetAlgorithm(cfg.EncryptAlgo()).
		SetWorkers(cfg.BatchWorkers).
		SetStrict(cfg.StrictFields)
	return &Engine{proc: proc, cfg: cfg}
}

type defaultEngine struct {
	engine *Engine
	err    error
}

var loadDefault = sync.OnceValue(func() defaultEngine {
	cfg, err := config.FromEnv()
	if err != nil {
		cfg = config.Default()
	}
	return defaultEngine{engine: New(cfg), err: err}
})

// Default returns the process-wide engine configured from the environment.
// An invalid configuration falls back to the defaults and is reported by
// InitDiagnostics.
func Default() *Engine {
	return loadDefault().engine
}

// InitDiagnostics enables logging with the default engine's settings.
// Repeated and concurrent calls are safe; only the first has an effect.
func InitDiagnostics() {
	d := loadDefault()
	if !polycrypt.InitDiagnostics(d.engine.cfg.Diagnostics()) {
		return
	}
	if d.err != nil {
		log := polycrypt.Logger()
		log.Warn().Err(d.err).Msg("invalid configuration, using defaults")
	}
}

// Encrypt encrypts raw bytes.
func (e *Engine) Encrypt(plaintext, key []byte) Result {
	return e.call("encrypt", key, func(ctx context.Context, key []byte) ([]byte, error) {
		return e.proc.Encrypt(ctx, plaintext, key)
	})
}

// Decrypt decrypts raw bytes.
func (e *Engine) Decrypt(ciphertext, key []byte) Result {
	return e.call("decrypt", key, func(ctx context.Context, key []byte) ([]byte, error) {
		return e.proc.Decrypt(ctx, ciphertext, key)
	})
}

// EncryptFields encrypts the fields named by the JSON array fields in the
// JSON object record.
func (e *Engine) EncryptFields(record, fields, key []byte) Result {
	return e.call("encrypt_fields", key, func(ctx context.Context, key []byte) ([]byte, error) {
		spec, err := e.proc.DecodeFields(fields)
		if err != nil {
			return nil, err
		}
		return e.proc.EncryptDocument(ctx, record, spec, key)
	})
}

// DecryptFields reverses EncryptFields.
func (e *Engine) DecryptFields(record, fields, key []byte) Result {
	return e.call("decrypt_fields", key, func(ctx context.Context, key []byte) ([]byte, error) {
		spec, err := e.proc.DecodeFields(fields)
		if err != nil {
			return nil, err
		}
		return e.proc.DecryptDocument(ctx, record, spec, key)
	})
}

// EncryptFieldsInBatch encrypts the named fields of every object in the JSON
// array records. Any failure fails the whole call.
func (e *Engine) EncryptFieldsInBatch(records, fields, key []byte) Result {
	return e.call("encrypt_fields_in_batch", key, func(ctx context.Context, key []byte) ([]byte, error) {
		spec, err := e.proc.DecodeFields(fields)
		if err != nil {
			return nil, err
		}
		return e.proc.EncryptDocuments(ctx, records, spec, key)
	})
}

// DecryptFieldsInBatch reverses EncryptFieldsInBatch.
func (e *Engine) DecryptFieldsInBatch(records, fields, key []byte) Result {
	return e.call("decrypt_fields_in_batch", key, func(ctx context.Context, key []byte) ([]byte, error) {
		spec, err := e.proc.DecodeFields(fields)
		if err != nil {
			return nil, err
		}
		return e.proc.DecryptDocuments(ctx, records, spec, key)
	})
}

// call runs fn with a private copy of key that is wiped afterwards and
// converts its outcome, including a panic, into a Result.
func (e *Engine) call(op string, key []byte, fn func(context.Context, []byte) ([]byte, error)) (res Result) {
	k := make([]byte, len(key))
	copy(k, key)
	defer clear(k)

	defer func() {
		if r := recover(); r != nil {
			log := polycrypt.Logger()
			log.Error().Str("operation", op).Interface("panic", r).Msg("recovered panic")
			res = Result{Code: Internal}
		}
	}()

	if err := polycrypt.ValidateKey(k); err != nil {
		return Result{Code: InvalidKeyLength}
	}

	out, err := fn(context.Background(), k)
	if err != nil {
		return Result{Code: CodeOf(err)}
	}
	if out == nil {
		out = []byte{}
	}
	return Result{Data: out, Code: OK}
}
