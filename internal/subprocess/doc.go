// Package subprocess implements a line-framed transport over a child process.
//
// Transport spawns the agent CLI, writes NDJSON to its stdin, and decodes
// NDJSON from its stdout. Three supervised goroutines run for the lifetime
// of a connection: a line reader, a stderr collector, and an exit monitor.
// Close ends input, waits for a natural exit, then escalates to SIGTERM and
// finally SIGKILL. No goroutine outlives Close.
package subprocess
