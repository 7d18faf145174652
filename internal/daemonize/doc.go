// Package daemonize turns the current process tree into a detached daemon.
//
// Go cannot fork(), so the classic double fork is realized as a re-exec
// ladder: the calling process spawns a copy of itself as a session leader,
// that copy spawns one more plain child, and only the grandchild survives as
// the daemon body. The stage a process is in travels through an environment
// variable; each process advances the ladder exactly one step and then
// either exits or, in the final stage, settles into daemon life by dropping
// identity, changing its working directory, setting the umask, binding log
// sinks, and claiming the pid file.
//
// The original caller learns nothing beyond "the ladder was launched" -- a
// deliberate fire-and-forget contract. The authoritative outcome is only
// observable through the pid file.
//
// Process creation is isolated behind the Launcher interface so the ladder
// can be exercised in tests without spawning real processes.
package daemonize
