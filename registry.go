package polycrypt

import (
	"context"
	"sync"
)

var (
	registry   = make(map[string]*Processor)
	registryMu sync.RWMutex

	// defaultProcessor backs the package-level field and batch functions.
	defaultProcessor = sync.OnceValue(func() *Processor {
		return NewProcessor(nil)
	})
)

// Use returns a cached processor or builds a new one.
// The processor is cached by codec content type.
func Use(codec Codec) *Processor {
	key := codec.ContentType()

	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[key]; ok {
		registryMu.RUnlock()
		return cached
	}
	registryMu.RUnlock()

	// Slow path: build and cache with write-lock
	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := registry[key]; ok {
		return cached
	}

	processor := NewProcessor(codec)
	registry[key] = processor
	return processor
}

// Reset clears the processor registry.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Processor)
}

// EncryptFields encrypts the selected fields of rec with the default
// algorithm. See Processor.EncryptFields.
func EncryptFields(rec *Record, fields []string, key []byte) (*Record, error) {
	return defaultProcessor().EncryptFields(context.Background(), rec, fields, key)
}

// DecryptFields reverses EncryptFields. See Processor.DecryptFields.
func DecryptFields(rec *Record, fields []string, key []byte) (*Record, error) {
	return defaultProcessor().DecryptFields(context.Background(), rec, fields, key)
}

// EncryptBatch encrypts the selected fields of every record, all or nothing.
// See Processor.EncryptBatch.
func EncryptBatch(recs []*Record, fields []string, key []byte) ([]*Record, error) {
	return defaultProcessor().EncryptBatch(context.Background(), recs, fields, key)
}

// DecryptBatch reverses EncryptBatch. See Processor.DecryptBatch.
func DecryptBatch(recs []*Record, fields []string, key []byte) ([]*Record, error) {
	return defaultProcessor().DecryptBatch(context.Background(), recs, fields, key)
}
