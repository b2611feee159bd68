package polycrypt

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Log formats accepted by DiagnosticsOptions.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// DiagnosticsOptions configures the process-wide diagnostics logger.
type DiagnosticsOptions struct {
	Writer io.Writer // Destination, os.Stderr when nil
	Level  string    // zerolog level name, "info" when empty
	Format string    // LogFormatJSON (default) or LogFormatConsole
}

var (
	diagOnce   sync.Once
	diagLogger atomic.Pointer[zerolog.Logger]
	nopLogger  = zerolog.Nop()
)

// InitDiagnostics configures structured logging for every processor in the
// process. Only the first call has an effect; later and concurrent calls are
// no-ops. It reports whether this call performed the initialization.
//
// Until InitDiagnostics runs, nothing is logged. Capitan signals are emitted
// regardless. There is no teardown.
func InitDiagnostics(opts DiagnosticsOptions) bool {
	initialized := false
	diagOnce.Do(func() {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		if strings.EqualFold(opts.Format, LogFormatConsole) {
			w = zerolog.ConsoleWriter{Out: w, NoColor: true}
		}

		levelName := opts.Level
		if levelName == "" {
			levelName = zerolog.InfoLevel.String()
		}
		level, err := zerolog.ParseLevel(strings.ToLower(levelName))
		if err != nil {
			level = zerolog.InfoLevel
		}

		l := zerolog.New(w).
			Level(level).
			With().
			Timestamp().
			Str("component", "polycrypt").
			Logger()
		diagLogger.Store(&l)
		initialized = true

		if err != nil {
			l.Warn().Str("log_level", levelName).Msg("unknown log level, using info")
		}
		emitDiagnosticsInitialized(context.Background(), level.String())
	})
	return initialized
}

// logger returns the diagnostics logger, or a disabled logger before
// InitDiagnostics has run.
func logger() *zerolog.Logger {
	if l := diagLogger.Load(); l != nil {
		return l
	}
	return &nopLogger
}

// Logger returns the diagnostics logger. It discards every event until
// InitDiagnostics has run.
func Logger() *zerolog.Logger {
	return logger()
}
