package polycrypt

import (
	"context"
	"encoding/base64"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Processor applies the cipher, field selection and batch operations and
// emits a start/complete signal pair for each call.
//
// Processors are safe for concurrent use. Configuration methods (SetAlgorithm,
// SetWorkers, SetStrict) may be called at any time; each operation uses the
// configuration in effect when it starts. Keys are never stored: every
// operation takes the key it should use.
type Processor struct {
	codec Codec

	// Mutable configuration protected by mu
	mu      sync.RWMutex
	algo    EncryptAlgo
	workers int
	strict  bool
}

// settings is a snapshot of a processor's configuration.
type settings struct {
	algo    EncryptAlgo
	workers int
	strict  bool
}

// NewProcessor creates a Processor that reads and writes serialized records
// with codec. The codec may be nil when only in-memory operations are used.
//
// The processor starts with DefaultAlgo, one batch worker per CPU and
// lenient field selection.
func NewProcessor(codec Codec) *Processor {
	p := &Processor{
		codec: codec,
		algo:  DefaultAlgo,
	}
	emitProcessorCreated(context.Background(), p.contentType(), p.algo)
	return p
}

// SetAlgorithm selects the encryption algorithm.
// Returns the processor for chaining. Safe for concurrent use.
func (p *Processor) SetAlgorithm(algo EncryptAlgo) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.algo = algo
	return p
}

// SetWorkers bounds the number of records transformed concurrently in a
// batch. Zero or a negative value means runtime.GOMAXPROCS(0).
// Returns the processor for chaining. Safe for concurrent use.
func (p *Processor) SetWorkers(n int) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = n
	return p
}

// SetStrict makes a selected field that is missing from a record an error
// (ErrMissingField) instead of being skipped.
// Returns the processor for chaining. Safe for concurrent use.
func (p *Processor) SetStrict(strict bool) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strict = strict
	return p
}

// Algorithm returns the configured encryption algorithm.
func (p *Processor) Algorithm() EncryptAlgo {
	return p.snapshot().algo
}

func (p *Processor) snapshot() settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return settings{algo: p.algo, workers: p.workers, strict: p.strict}
}

func (p *Processor) contentType() string {
	if p.codec == nil {
		return ""
	}
	return p.codec.ContentType()
}

// Encrypt encrypts raw bytes under key.
func (p *Processor) Encrypt(ctx context.Context, plaintext, key []byte) (out []byte, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpEncrypt, s)
	defer func() { done(operationStats{size: len(out)}, err) }()

	enc, err := NewEncryptor(s.algo, key)
	if err != nil {
		return nil, err
	}
	return enc.Encrypt(plaintext)
}

// Decrypt authenticates and decrypts raw bytes under key.
func (p *Processor) Decrypt(ctx context.Context, ciphertext, key []byte) (out []byte, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpDecrypt, s)
	defer func() { done(operationStats{size: len(out)}, err) }()

	enc, err := NewEncryptor(s.algo, key)
	if err != nil {
		return nil, err
	}
	return enc.Decrypt(ciphertext)
}

// EncryptFields returns a copy of rec with each selected field encrypted.
// rec itself is not modified.
func (p *Processor) EncryptFields(ctx context.Context, rec *Record, fields []string, key []byte) (out *Record, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpEncryptFields, s)
	defer func() { done(operationStats{fields: len(fields), records: 1}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	return s.encryptRecord(rec, spec, enc)
}

// DecryptFields returns a copy of rec with each selected field decrypted
// and restored to its original type. Any field that fails makes the whole
// call fail.
func (p *Processor) DecryptFields(ctx context.Context, rec *Record, fields []string, key []byte) (out *Record, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpDecryptFields, s)
	defer func() { done(operationStats{fields: len(fields), records: 1}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	return s.decryptRecord(rec, spec, enc)
}

// EncryptBatch applies EncryptFields to every record. The result has the
// same length and order as recs. If any record fails, no records are
// returned and the error is a *RecordError naming the failed index.
func (p *Processor) EncryptBatch(ctx context.Context, recs []*Record, fields []string, key []byte) (out []*Record, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpEncryptBatch, s)
	defer func() { done(operationStats{fields: len(fields), records: len(recs)}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	return s.transformBatch(ctx, recs, func(rec *Record) (*Record, error) {
		return s.encryptRecord(rec, spec, enc)
	})
}

// DecryptBatch applies DecryptFields to every record with the same
// all-or-nothing semantics as EncryptBatch.
func (p *Processor) DecryptBatch(ctx context.Context, recs []*Record, fields []string, key []byte) (out []*Record, err error) {
	s := p.snapshot()
	done := p.track(ctx, OpDecryptBatch, s)
	defer func() { done(operationStats{fields: len(fields), records: len(recs)}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	return s.transformBatch(ctx, recs, func(rec *Record) (*Record, error) {
		return s.decryptRecord(rec, spec, enc)
	})
}

// EncryptDocument decodes a serialized record with the processor's codec,
// encrypts the selected fields and encodes the result.
func (p *Processor) EncryptDocument(ctx context.Context, data []byte, fields []string, key []byte) (out []byte, err error) {
	return p.document(ctx, OpEncryptDocument, data, fields, key, settings.encryptRecord)
}

// DecryptDocument is the inverse of EncryptDocument.
func (p *Processor) DecryptDocument(ctx context.Context, data []byte, fields []string, key []byte) (out []byte, err error) {
	return p.document(ctx, OpDecryptDocument, data, fields, key, settings.decryptRecord)
}

// EncryptDocuments decodes a serialized list of records, encrypts the
// selected fields of each and encodes the list, all or nothing.
func (p *Processor) EncryptDocuments(ctx context.Context, data []byte, fields []string, key []byte) (out []byte, err error) {
	return p.documents(ctx, OpEncryptDocuments, data, fields, key, settings.encryptRecord)
}

// DecryptDocuments is the inverse of EncryptDocuments.
func (p *Processor) DecryptDocuments(ctx context.Context, data []byte, fields []string, key []byte) (out []byte, err error) {
	return p.documents(ctx, OpDecryptDocuments, data, fields, key, settings.decryptRecord)
}

// DecodeFields decodes a serialized list of field names with the
// processor's codec.
func (p *Processor) DecodeFields(data []byte) (FieldSpec, error) {
	if p.codec == nil {
		return nil, malformed("processor has no codec")
	}
	var names []string
	if err := p.codec.Unmarshal(data, &names); err != nil {
		return nil, newCodecError(ErrMalformedInput, err)
	}
	if names == nil {
		return nil, malformed("field list must be an array")
	}
	return NewFieldSpec(names...)
}

// recordTransform is the per-record step shared by single and batch calls.
type recordTransform func(s settings, rec *Record, spec FieldSpec, enc Encryptor) (*Record, error)

func (p *Processor) document(ctx context.Context, op string, data []byte, fields []string, key []byte, fn recordTransform) (out []byte, err error) {
	s := p.snapshot()
	done := p.track(ctx, op, s)
	defer func() { done(operationStats{size: len(out), fields: len(fields), records: 1}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	if p.codec == nil {
		return nil, malformed("processor has no codec")
	}

	var rec *Record
	if err := p.codec.Unmarshal(data, &rec); err != nil {
		return nil, newCodecError(ErrMalformedInput, err)
	}

	result, err := fn(s, rec, spec, enc)
	if err != nil {
		return nil, err
	}

	out, err = p.codec.Marshal(result)
	if err != nil {
		return nil, newCodecError(ErrMalformedInput, err)
	}
	return out, nil
}

func (p *Processor) documents(ctx context.Context, op string, data []byte, fields []string, key []byte, fn recordTransform) (out []byte, err error) {
	s := p.snapshot()
	records := 0
	done := p.track(ctx, op, s)
	defer func() { done(operationStats{size: len(out), fields: len(fields), records: records}, err) }()

	spec, enc, err := prepare(s, fields, key)
	if err != nil {
		return nil, err
	}
	if p.codec == nil {
		return nil, malformed("processor has no codec")
	}

	var recs []*Record
	if err := p.codec.Unmarshal(data, &recs); err != nil {
		return nil, newCodecError(ErrMalformedInput, err)
	}
	if recs == nil {
		return nil, malformed("batch must be an array of records")
	}
	records = len(recs)

	result, err := s.transformBatch(ctx, recs, func(rec *Record) (*Record, error) {
		return fn(s, rec, spec, enc)
	})
	if err != nil {
		return nil, err
	}

	out, err = p.codec.Marshal(result)
	if err != nil {
		return nil, newCodecError(ErrMalformedInput, err)
	}
	return out, nil
}

// track emits the start signal and returns a function that emits the
// completion signal with the elapsed time.
func (p *Processor) track(ctx context.Context, op string, s settings) func(operationStats, error) {
	start := time.Now()
	contentType := p.contentType()
	emitOperationStart(ctx, op, contentType, s.algo)
	return func(stats operationStats, err error) {
		stats.duration = time.Since(start)
		emitOperationComplete(ctx, op, contentType, s.algo, stats, err)
	}
}

// prepare validates the key and field list before any record is touched.
func prepare(s settings, fields []string, key []byte) (FieldSpec, Encryptor, error) {
	enc, err := NewEncryptor(s.algo, key)
	if err != nil {
		return nil, nil, err
	}
	spec, err := NewFieldSpec(fields...)
	if err != nil {
		return nil, nil, err
	}
	return spec, enc, nil
}

// encryptRecord replaces each selected field of a clone of rec with the
// base64 ciphertext of its canonical encoding.
func (s settings) encryptRecord(rec *Record, spec FieldSpec, enc Encryptor) (*Record, error) {
	if rec == nil {
		return nil, malformed("record is null")
	}

	out := rec.Clone()
	for _, name := range spec {
		v, ok := out.Get(name)
		if !ok {
			if s.strict {
				return nil, newFieldError(ErrMissingField, OpEncrypt, name, nil)
			}
			continue
		}

		token, err := encryptValue(v, enc)
		if err != nil {
			return nil, newFieldError(sentinelOr(err, ErrEncryptionFailure), OpEncrypt, name, err)
		}
		out.Set(name, token)
	}

	return out, nil
}

// decryptRecord restores each selected field of a clone of rec.
func (s settings) decryptRecord(rec *Record, spec FieldSpec, enc Encryptor) (*Record, error) {
	if rec == nil {
		return nil, malformed("record is null")
	}

	out := rec.Clone()
	for _, name := range spec {
		v, ok := out.Get(name)
		if !ok {
			if s.strict {
				return nil, newFieldError(ErrMissingField, OpDecrypt, name, nil)
			}
			continue
		}

		plain, err := decryptValue(v, enc)
		if err != nil {
			return nil, newFieldError(sentinelOr(err, ErrDecryptionFailure), OpDecrypt, name, err)
		}
		out.Set(name, plain)
	}

	return out, nil
}

// transformBatch runs fn over recs on a bounded worker group. Output slot i
// always holds the result for input i. The first failure cancels the
// remaining work and no output is returned.
func (s settings) transformBatch(ctx context.Context, recs []*Record, fn func(*Record) (*Record, error)) ([]*Record, error) {
	out := make([]*Record, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount(len(recs)))

	for i, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := fn(rec)
			if err != nil {
				return &RecordError{Index: i, Err: err}
			}
			out[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s settings) workerCount(n int) int {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, n))
}

// encryptValue encodes, encrypts and base64-encodes a single field value.
func encryptValue(v any, enc Encryptor) (string, error) {
	plaintext, err := EncodeValue(v)
	if err != nil {
		return "", err
	}
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptValue reverses encryptValue.
func decryptValue(v any, enc Encryptor) (any, error) {
	token, ok := v.(string)
	if !ok {
		return nil, malformed("encrypted value must be a string, got %T", v)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, malformed("base64: %v", err)
	}
	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	return DecodeValue(plaintext)
}

// sentinelOr returns the taxonomy sentinel err belongs to, or fallback.
func sentinelOr(err, fallback error) error {
	if s := classify(err); s != nil {
		return s
	}
	return fallback
}
