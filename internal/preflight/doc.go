// Package preflight provides the ownership and permission checks that must
// pass before the daemon forks.
//
// The checks run in the original calling process so violations surface
// synchronously to the invoking shell. A failed check aborts the whole start
// sequence; nothing is retried and no process is created.
package preflight
