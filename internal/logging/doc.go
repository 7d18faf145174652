// Package logging assembles the structured slog loggers and file sinks used
// by the daemon core and its workers.
//
// It owns the rotating append sinks behind the daemon's stdout/stderr log
// files, the registry that deduplicates sinks across repeated binds, and the
// stream adapters that turn raw writes into discrete log records. Binding is
// only legal inside the fully detached process; the lifecycle controller
// injects the resulting logger and sinks into the worker environment instead
// of mutating process-wide streams.
package logging
