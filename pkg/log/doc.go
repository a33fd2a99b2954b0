/*
Package log provides structured logging for BerylDB using zerolog.

The log package wraps zerolog to give every component of the server a
JSON-structured (or console, for local development) logger with
component-specific fields, a configurable level, and a small set of helpers
for the common logging patterns used across the server.

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
	│  │  - WithComponent("dispatcher")              │          │
	│  │  - WithDatabase("main")                     │          │
	│  │  - WithWorkerID(3)                          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {"level":"info","database":"main",         │          │
	│  │   "time":"2026-07-30T10:30:00Z",           │          │
	│  │   "message":"database opened"}              │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF database opened database=main  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Why workers never log

Per the event-loop/worker-pool split, a Query's Run() method (executed on a
flusher worker, off the event loop) never writes to this logger directly —
it only ever sets a result or an error kind on the Query. Only the
Dispatcher, the server's accept loop, and startup/shutdown code emit log
lines; this keeps worker goroutines free of any shared-writer contention.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("server listening")
	log.Debug("opened database")
	log.Warn("bloom filter saturated")
	log.Error("flush queue full")
	log.Fatal("cannot bind listen address")

Structured logging:

	log.Logger.Info().
		Str("database", "main").
		Int("workers", 8).
		Msg("flusher pool started")

Component and context loggers:

	dispatchLog := log.WithComponent("dispatcher")
	dispatchLog.Info().Msg("outbound queue drained")

	log.WithDatabase("main").Info().Msg("database opened")
	log.WithWorkerID(3).Debug().Msg("flusher worker starting")
*/
package log
