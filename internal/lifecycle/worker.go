package lifecycle

import (
	"context"
	"io"
	"log/slog"

	"warden/internal/identity"
	"warden/internal/journal"
	"warden/internal/paths"
)

// Args is an opaque bag handed to a worker hook. The lifecycle core never
// inspects its contents.
type Args map[string]any

// Worker is the extension contract a daemon body implements. Preworker and
// Postworker bracket the long-running Worker, which is expected to run until
// its context is canceled by the stop signal.
type Worker interface {
	Preworker(env *Environment, args Args) error
	Worker(ctx context.Context, env *Environment, args Args) error
	Postworker(env *Environment, args Args) error
}

// Environment carries the resources the detached process owns. Workers
// write informational output to Stdout and error output to Stderr; both
// land in the daemon's log files as discrete records. The environment is
// injected rather than installed over the process-wide streams, so nothing
// here leaks global state.
type Environment struct {
	Logger   *slog.Logger
	Stdout   io.Writer
	Stderr   io.Writer
	Paths    paths.Paths
	Identity identity.Identity

	// Journal is nil when the event store could not be opened; workers
	// must treat it as optional.
	Journal *journal.Store
}
