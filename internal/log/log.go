package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger every helper below derives a child
// logger from. Init must run before anything calls WithComponent,
// WithWorker, WithHandler, or WithCorrelationID.
var Logger zerolog.Logger

// Level is one of the four severities qworker logs at.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levelByName = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config controls how Init builds the package-level Logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the package-level Logger from cfg. An unrecognized or
// empty Level defaults to info; a nil Output defaults to stdout.
func Init(cfg Config) {
	level, ok := levelByName[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent scopes a logger to one subsystem (worker, queue,
// registry, discovery, ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorker scopes a logger to one worker server instance, identified
// by its "<name>-<port>_<index>" identity.
func WithWorker(name string) zerolog.Logger {
	return Logger.With().Str("worker_name", name).Logger()
}

// WithHandler scopes a logger to one registered handler, for lines
// emitted around a call into that handler's function.
func WithHandler(handlerID string) zerolog.Logger {
	return Logger.With().Str("handler_id", handlerID).Logger()
}

// WithCorrelationID scopes a logger to a single client dispatch, tying
// every line it emits back to one request regardless of which goroutine
// ends up running it.
func WithCorrelationID(correlationID string) zerolog.Logger {
	return Logger.With().Str("correlation_id", correlationID).Logger()
}
