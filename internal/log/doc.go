/*
Package log provides structured logging for qworker using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("queue")                   │          │
	│  │  - WithWorker("worker-1")                   │          │
	│  │  - WithHandler("echo")                      │          │
	│  │  - WithCorrelationID("c-9f3a")              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"worker",      │          │
	│  │   "time":"2026-08-01T10:30:00Z",            │          │
	│  │   "message":"envelope queued"}              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every qworker package

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)

Context Loggers:
  - WithComponent: Add a component name to all logs
  - WithWorker: Add a worker name (for multi-worker processes)
  - WithHandler: Add a handler_id field, for lines around a handler call
  - WithCorrelationID: Add a correlation_id tying a line to one dispatch

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	workerLog := log.WithWorker("worker-1")
	workerLog.Info().Str("addr", "0.0.0.0:8080").Msg("listening")

	handlerLog := log.WithHandler("echo")
	handlerLog.Error().Err(err).Msg("handler failed")

# Best Practices

Do:
  - Use Info level in production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces

Don't:
  - Log envelope payloads that may carry secrets
  - Use Debug level in production
  - Concatenate strings into messages (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
