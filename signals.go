package polycrypt

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for polycrypt events.
var (
	SignalProcessorCreated       = capitan.NewSignal("polycrypt.processor.created", "Processor instantiated")
	SignalOperationStart         = capitan.NewSignal("polycrypt.operation.start", "Operation beginning")
	SignalOperationComplete      = capitan.NewSignal("polycrypt.operation.complete", "Operation finished")
	SignalDiagnosticsInitialized = capitan.NewSignal("polycrypt.diagnostics.initialized", "Diagnostics configured")
)

// Keys for typed event data. Key material is never attached to an event.
var (
	KeyOperation   = capitan.NewStringKey("operation")
	KeyContentType = capitan.NewStringKey("content_type")
	KeyAlgorithm   = capitan.NewStringKey("algorithm")
	KeyOutputSize  = capitan.NewIntKey("output_size")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
	KeyFieldCount  = capitan.NewIntKey("field_count")
	KeyRecordCount = capitan.NewIntKey("record_count")
	KeyLogLevel    = capitan.NewStringKey("log_level")
)

// Operation names carried by KeyOperation.
const (
	OpEncrypt          = "encrypt"
	OpDecrypt          = "decrypt"
	OpEncryptFields    = "encrypt_fields"
	OpDecryptFields    = "decrypt_fields"
	OpEncryptBatch     = "encrypt_fields_in_batch"
	OpDecryptBatch     = "decrypt_fields_in_batch"
	OpEncryptDocument  = "encrypt_document"
	OpDecryptDocument  = "decrypt_document"
	OpEncryptDocuments = "encrypt_documents"
	OpDecryptDocuments = "decrypt_documents"
)

// operationStats describes a finished operation.
type operationStats struct {
	size     int
	fields   int
	records  int
	duration time.Duration
}

// emitProcessorCreated emits an event when a processor is created.
func emitProcessorCreated(ctx context.Context, contentType string, algo EncryptAlgo) {
	capitan.Emit(ctx, SignalProcessorCreated,
		KeyContentType.Field(contentType),
		KeyAlgorithm.Field(string(algo)),
	)
	log := logger()
	log.Debug().
		Str("content_type", contentType).
		Str("algorithm", string(algo)).
		Msg("processor created")
}

// emitOperationStart emits an event when an operation begins.
func emitOperationStart(ctx context.Context, op, contentType string, algo EncryptAlgo) {
	capitan.Emit(ctx, SignalOperationStart,
		KeyOperation.Field(op),
		KeyContentType.Field(contentType),
		KeyAlgorithm.Field(string(algo)),
	)
	log := logger()
	log.Debug().
		Str("operation", op).
		Msg("operation started")
}

// emitOperationComplete emits an event when an operation finishes.
func emitOperationComplete(ctx context.Context, op, contentType string, algo EncryptAlgo, stats operationStats, err error) {
	fields := []capitan.Field{
		KeyOperation.Field(op),
		KeyContentType.Field(contentType),
		KeyAlgorithm.Field(string(algo)),
		KeyOutputSize.Field(stats.size),
		KeyDuration.Field(stats.duration),
		KeyFieldCount.Field(stats.fields),
		KeyRecordCount.Field(stats.records),
	}

	log := logger()
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalOperationComplete, fields...)
		log.Warn().
			Str("operation", op).
			Int("output_size", stats.size).
			Int("field_count", stats.fields).
			Int("record_count", stats.records).
			Dur("duration", stats.duration).
			Err(err).
			Msg("operation failed")
		return
	}

	capitan.Emit(ctx, SignalOperationComplete, fields...)
	log.Info().
		Str("operation", op).
		Int("output_size", stats.size).
		Int("field_count", stats.fields).
		Int("record_count", stats.records).
		Dur("duration", stats.duration).
		Msg("operation completed")
}

// emitDiagnosticsInitialized emits an event when InitDiagnostics configures logging.
func emitDiagnosticsInitialized(ctx context.Context, level string) {
	capitan.Emit(ctx, SignalDiagnosticsInitialized,
		KeyLogLevel.Field(level),
	)
	log := logger()
	log.Info().
		Str("log_level", level).
		Msg("diagnostics initialized")
}
