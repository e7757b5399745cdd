package agentwire

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrors_AsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start: %w", &ConnectionError{Err: &ProcessError{ExitCode: 2, Stderr: "auth failed"}})

	procErr, ok := errors.AsType[*ProcessError](err)
	require.True(t, ok)
	require.Equal(t, 2, procErr.ExitCode)
	require.Contains(t, err.Error(), "auth failed")
}

func TestErrors_ControlTimeoutMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("interrupt: %w", &ControlTimeoutError{Kind: "control_request", Subtype: "interrupt", Timeout: time.Second})

	require.ErrorIs(t, err, ErrRequestTimeout)
	require.Contains(t, err.Error(), `"interrupt" timed out after 1s`)
}

func TestErrors_AllImplementAgentwireError(t *testing.T) {
	all := []error{
		&CLINotFoundError{SearchedPaths: []string{"$PATH"}},
		&InvalidVersionError{Version: "1.0.0", Minimum: "2.0.0"},
		&ConnectionError{Err: ErrTransportClosed},
		&ProcessError{ExitCode: 1},
		&JSONDecodeError{RawData: "{", Err: errors.New("eof")},
		&MessageParseError{Reason: "missing type"},
		&ControlTimeoutError{Kind: "control_request", Subtype: "initialize", Timeout: time.Minute},
		&ControlError{Message: "nope"},
		&IOError{Op: "write to stdin", Err: errors.New("broken pipe")},
		&ToolExecutionError{Tool: "add", Err: errors.New("overflow")},
	}

	for _, err := range all {
		awErr, ok := errors.AsType[AgentwireError](err)
		require.True(t, ok, "%T", err)
		require.True(t, awErr.IsAgentwireError())
	}
}
