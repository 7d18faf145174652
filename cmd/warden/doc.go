// Command warden manages the lifecycle of a detached Unix daemon: start,
// stop, status, restart, and a history of lifecycle transitions. The hidden
// run subcommand is the re-exec target for the detach ladder.
package main
