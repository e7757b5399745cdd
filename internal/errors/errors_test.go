package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCLINotFoundError(t *testing.T) {
	err := &CLINotFoundError{
		SearchedPaths: []string{"/usr/bin/claude", "/opt/bin/claude"},
	}

	require.Equal(t, "agent CLI not found in: [/usr/bin/claude /opt/bin/claude]", err.Error())
	require.True(t, err.IsAgentwireError())
}

func TestInvalidVersionError(t *testing.T) {
	err := &InvalidVersionError{Version: "1.9.0", Minimum: "2.0.0"}

	require.Equal(t, "agent CLI version 1.9.0 is below minimum 2.0.0", err.Error())
}

func TestConnectionError(t *testing.T) {
	err := &ConnectionError{Err: ErrAlreadyConnected}

	require.Equal(t, "connection error: already connected", err.Error())
	require.ErrorIs(t, err, ErrAlreadyConnected)
	require.True(t, err.IsAgentwireError())
}

func TestProcessError(t *testing.T) {
	t.Run("stderr preferred", func(t *testing.T) {
		err := &ProcessError{ExitCode: 2, Stderr: "permission denied", Err: errors.New("exit status 2")}

		require.Equal(t, "CLI process exited (exit 2): permission denied", err.Error())
		require.Error(t, err.Unwrap())
	})

	t.Run("error only", func(t *testing.T) {
		root := errors.New("signal: killed")
		err := &ProcessError{ExitCode: -1, Err: root}

		require.Equal(t, "CLI process exited (exit -1): signal: killed", err.Error())
		require.ErrorIs(t, err, root)
	})

	t.Run("bare", func(t *testing.T) {
		err := &ProcessError{ExitCode: 1}

		require.Equal(t, "CLI process exited (exit 1)", err.Error())
		require.NoError(t, err.Unwrap())
	})
}

func TestJSONDecodeError(t *testing.T) {
	root := errors.New("unexpected token")
	err := &JSONDecodeError{RawData: `{"not":"valid",`, Err: root}

	require.Equal(t, "failed to decode JSON from CLI: unexpected token", err.Error())
	require.ErrorIs(t, err, root)
}

func TestMessageParseError(t *testing.T) {
	err := &MessageParseError{Reason: "expected object", Raw: float64(42)}

	require.Equal(t, "failed to parse message: expected object", err.Error())
	require.True(t, err.IsAgentwireError())
}

func TestControlTimeoutError(t *testing.T) {
	err := &ControlTimeoutError{Kind: "control_request", Subtype: "interrupt", Timeout: 30 * time.Second}

	require.Equal(t, `control_request "interrupt" timed out after 30s`, err.Error())
	require.ErrorIs(t, err, ErrRequestTimeout)

	timeoutErr, ok := errors.AsType[*ControlTimeoutError](error(err))
	require.True(t, ok)
	require.Equal(t, "control_request", timeoutErr.Kind)
}

func TestControlError(t *testing.T) {
	err := &ControlError{Message: "unknown subtype"}

	require.Equal(t, "control error: unknown subtype", err.Error())
}

func TestIOError(t *testing.T) {
	err := &IOError{Op: "write to stdin", Err: ErrStdinClosed}

	require.Equal(t, "write to stdin: stdin closed", err.Error())
	require.ErrorIs(t, err, ErrStdinClosed)
}

func TestToolExecutionError(t *testing.T) {
	root := errors.New("division by zero")
	err := &ToolExecutionError{Tool: "divide", Err: root}

	require.Equal(t, "tool divide failed: division by zero", err.Error())
	require.ErrorIs(t, err, root)
}
