/*
Package log provides structured logging for nebulastore using zerolog.

The log package wraps zerolog to give every nebulastore component JSON or
console structured logging, with helper constructors for the context a
partitioned, replicated storage node needs to attribute a log line to: a
Raft term, a (space, partition) pair, or a graph space.

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
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("raftgroup")                │          │
	│  │  - WithNodeID("node-a")                     │          │
	│  │  - WithPartition(space, part)                │          │
	│  │  - WithSpace(space)                          │          │
	│  │  - WithTerm(logger, term)                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "space": 1, "part": 3,                   │          │
	│  │    "time": "2026-07-30T10:30:00Z",          │          │
	│  │    "message": "became raft leader"          │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-30T10:30:00Z INF became raft leader │          │
	│  │    part=3 space=1                            │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

Debug Level:
  - Usage: development and troubleshooting
  - Example: "probing bbolt bucket for tag row"

Info Level:
  - Usage: default production level
  - Example: "partition 1/3 elected leader"

Warn Level:
  - Usage: situations that may require attention
  - Example: "schema cache refresh fell back to a full reload"

Error Level:
  - Usage: failed operations
  - Example: "failed to apply raft log entry"

Fatal Level:
  - Usage: unrecoverable startup errors only
  - Behavior: logs message and exits process (os.Exit(1))
  - Example: "failed to open bbolt data file"

# Usage

Initializing the Logger:

	import "github.com/cuemby/nebulastore/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("storage node starting")
	log.Debug("checking partition assignment")
	log.Warn("raft leader unreachable, retrying")
	log.Error("failed to connect to metad")
	log.Fatal("cannot start without a data directory") // exits process

Structured Logging:

	log.Logger.Info().
		Uint32("space", 1).
		Uint32("part", 3).
		Msg("partition bootstrapped")

	log.Logger.Error().
		Err(err).
		Str("node_id", "node-a").
		Msg("raft apply failed")

Context Loggers:

	// Component-specific logger
	raftLog := log.WithComponent("raftgroup")
	raftLog.Info().Msg("starting leader election")

	// Partition-scoped logger, the kind internal/raftgroup builds
	partLog := log.WithPartition(1, 3)
	partLog.Info().Msg("compaction started")

	// Term-scoped logger, derived from a partition logger
	termLog := log.WithTerm(partLog, 7)
	termLog.Info().Msg("became leader")

	// Space-scoped logger
	spaceLog := log.WithSpace(1)
	spaceLog.Debug().Msg("schema cache refreshed")

Complete Example:

	package main

	import (
		"errors"
		"os"

		"github.com/cuemby/nebulastore/pkg/log"
	)

	func main() {
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("storaged starting")

		partLog := log.WithPartition(1, 0)
		partLog.Info().Msg("raft group bootstrapped")

		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "metaclient").
			Msg("failed to reach metadata service")

		log.Info("storaged stopped")
	}

# Integration Points

This package integrates with:

  - internal/raftgroup: logs leadership acquired/lost through a
    WithPartition logger, with the term as a field
  - internal/schema: logs catalog fetch and watch failures through the
    global Logger
  - cmd/storaged: logs startup, shutdown, and bootstrap decisions

No other package in this repository imports it.

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup,
    accessible from every package without being passed around

Context Logger Pattern:
  - Create child loggers carrying partition/space/term fields and pass
    them down instead of repeating fields at every call site

Structured Logging Pattern:
  - Use typed fields (.Str, .Uint32, .Err) instead of string
    interpolation so logs stay queryable by log aggregation tooling

# Security

Log Content:
  - Never log secrets or certificate private key material
  - Redact tokens and credentials before logging anything client-supplied

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
