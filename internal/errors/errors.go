package errors

import (
	"errors"
	"fmt"
	"time"
)

// AgentwireError is the base interface for all agentwire errors.
type AgentwireError interface {
	error
	IsAgentwireError() bool
}

// Compile-time verification that all error types implement AgentwireError.
var (
	_ AgentwireError = (*CLINotFoundError)(nil)
	_ AgentwireError = (*InvalidVersionError)(nil)
	_ AgentwireError = (*ConnectionError)(nil)
	_ AgentwireError = (*ProcessError)(nil)
	_ AgentwireError = (*JSONDecodeError)(nil)
	_ AgentwireError = (*MessageParseError)(nil)
	_ AgentwireError = (*ControlTimeoutError)(nil)
	_ AgentwireError = (*ControlError)(nil)
	_ AgentwireError = (*IOError)(nil)
	_ AgentwireError = (*ToolExecutionError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with NewClient()")

	// ErrAlreadyConnected indicates Connect was called on a connected transport or client.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrTransportNotConnected indicates the transport was never connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrTransportClosed indicates the transport has been shut down.
	ErrTransportClosed = errors.New("transport closed")

	// ErrMessagesTaken indicates the single-consumer message stream was already claimed.
	ErrMessagesTaken = errors.New("message stream already taken")

	// ErrStdinClosed indicates input to the subprocess has been ended.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrRequestTimeout is matched by every ControlTimeoutError.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrDuplicateRequestID indicates a pending request already uses the id.
	ErrDuplicateRequestID = errors.New("duplicate request id")

	// ErrOperationCancelled indicates an incoming operation was cancelled by the remote side.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrLineTooLong indicates an output line exceeded the maximum line size.
	ErrLineTooLong = errors.New("line exceeds maximum size")
)

// CLINotFoundError indicates the agent CLI binary was not found.
type CLINotFoundError struct {
	SearchedPaths []string
	Err           error
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("agent CLI not found in: %v", e.SearchedPaths)
}

func (e *CLINotFoundError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *CLINotFoundError) IsAgentwireError() bool { return true }

// InvalidVersionError indicates the CLI reported a version below the supported minimum.
type InvalidVersionError struct {
	Version string
	Minimum string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("agent CLI version %s is below minimum %s", e.Version, e.Minimum)
}

// IsAgentwireError implements AgentwireError.
func (e *InvalidVersionError) IsAgentwireError() bool { return true }

// ConnectionError indicates the channel to the CLI could not be used.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *ConnectionError) IsAgentwireError() bool { return true }

// ProcessError indicates the CLI process terminated unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("CLI process exited (exit %d): %s", e.ExitCode, e.Stderr)
	}

	if e.Err != nil {
		return fmt.Sprintf("CLI process exited (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("CLI process exited (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *ProcessError) IsAgentwireError() bool { return true }

// JSONDecodeError indicates a single output line was not valid JSON.
// The raw line is preserved.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from CLI: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *JSONDecodeError) IsAgentwireError() bool { return true }

// MessageParseError indicates a line was valid JSON but not a recognizable envelope.
type MessageParseError struct {
	Reason string
	Raw    any
}

func (e *MessageParseError) Error() string {
	return "failed to parse message: " + e.Reason
}

// IsAgentwireError implements AgentwireError.
func (e *MessageParseError) IsAgentwireError() bool { return true }

// ControlTimeoutError indicates no control_response arrived within the bound.
type ControlTimeoutError struct {
	Kind    string
	Subtype string
	Timeout time.Duration
}

func (e *ControlTimeoutError) Error() string {
	return fmt.Sprintf("%s %q timed out after %s", e.Kind, e.Subtype, e.Timeout)
}

// Is reports ErrRequestTimeout as a match.
func (e *ControlTimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// IsAgentwireError implements AgentwireError.
func (e *ControlTimeoutError) IsAgentwireError() bool { return true }

// ControlError is a protocol-level failure reported by the remote side or a handler.
type ControlError struct {
	Message string
}

func (e *ControlError) Error() string {
	return "control error: " + e.Message
}

// IsAgentwireError implements AgentwireError.
func (e *ControlError) IsAgentwireError() bool { return true }

// IOError wraps a failed read or write on the subprocess pipes.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *IOError) IsAgentwireError() bool { return true }

// ToolExecutionError is returned by tool handlers and passed through unchanged.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *ToolExecutionError) IsAgentwireError() bool { return true }
