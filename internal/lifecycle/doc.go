// Package lifecycle orchestrates start, stop, and status for a managed
// daemon and runs the worker extension hooks inside the detached process.
//
// Start is fire-and-forget: the calling process runs the preflight checks,
// launches the detach ladder, lingers briefly, and returns with no verdict.
// The authoritative running/not-running answer always comes from the pid
// file. Stop is a bounded SIGINT-and-poll loop whose non-convergence is
// reported as data, never as an error; escalation is the operator's call.
//
// Inside the detached process the controller binds log sinks, claims the
// pid file, and drives the worker chain: preworker, then worker with the
// interrupt signal mapped to context cancellation, then postworker. An
// interrupted worker is routine (logged at info, postworker still runs); any
// other failure is logged in full and the process still exits cleanly --
// daemonization success is not undone by worker failure.
package lifecycle
