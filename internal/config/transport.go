// Package config provides configuration types shared across agentwire packages.
package config

import "context"

// Frame is one item on a transport's message stream.
// Exactly one of Value and Err is set.
type Frame struct {
	// Value is the decoded JSON value of one output line.
	Value any

	// Err reports a line that could not be decoded.
	// The stream continues after an error frame.
	Err error
}

// Transport is a line-framed duplex channel to the agent CLI.
//
// The default implementation is subprocess.Transport, which spawns the CLI as
// a child process. Custom transports can be injected via Options.Transport for
// testing or remote connections.
type Transport interface {
	// Connect establishes the channel. Calling it twice is an error.
	Connect(ctx context.Context) error

	// Write sends one line. A trailing newline is appended if missing.
	// It must be safe for concurrent use; lines never interleave.
	Write(ctx context.Context, data []byte) error

	// Messages returns the single-consumer stream of decoded lines.
	// The channel is closed when the remote side stops producing output.
	// A second call returns ErrMessagesTaken.
	Messages() (<-chan Frame, error)

	// EndInput closes the write half. It is idempotent.
	EndInput() error

	// Close shuts the channel down. It is idempotent.
	Close() error

	// IsReady reports whether the channel is connected and usable.
	IsReady() bool
}
