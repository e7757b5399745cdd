package agentwire

import "github.com/wagiedev/agentwire/internal/errors"

// AgentwireError is implemented by every typed error in this package.
type AgentwireError = errors.AgentwireError

// CLINotFoundError indicates the agent CLI binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// InvalidVersionError indicates the CLI is older than the supported minimum.
type InvalidVersionError = errors.InvalidVersionError

// ConnectionError indicates the channel to the CLI could not be used.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the CLI process exited unexpectedly.
type ProcessError = errors.ProcessError

// JSONDecodeError indicates an output line was not valid JSON.
type JSONDecodeError = errors.JSONDecodeError

// MessageParseError indicates valid JSON that is not a message envelope.
type MessageParseError = errors.MessageParseError

// ControlTimeoutError indicates a control request got no response in time.
type ControlTimeoutError = errors.ControlTimeoutError

// ControlError is an error response to a control request.
type ControlError = errors.ControlError

// IOError wraps a failed read or write on the process pipes.
type IOError = errors.IOError

// ToolExecutionError is a failed in-process tool call.
type ToolExecutionError = errors.ToolExecutionError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrAlreadyConnected indicates Start was called twice.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrTransportClosed indicates the transport has shut down.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrRequestTimeout matches every ControlTimeoutError.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrControllerStopped indicates the session ended while a request waited.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrLineTooLong is reported in a JSONDecodeError for an oversized output line.
	ErrLineTooLong = errors.ErrLineTooLong
)
