package agentwire_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire"
)

func TestWithClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := agentwire.WithClient(ctx, func(agentwire.Client) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithClient_CallbackError(t *testing.T) {
	cli := newFakeCLI("")
	boom := errors.New("boom")

	err := agentwire.WithClient(context.Background(), func(agentwire.Client) error {
		return boom
	}, agentwire.WithTransport(cli))

	require.ErrorIs(t, err, boom)
	require.False(t, cli.IsReady(), "client should be closed")
}

func TestWithClient_RunsSession(t *testing.T) {
	cli := newFakeCLI("hi there")

	var result string

	err := agentwire.WithClient(context.Background(), func(c agentwire.Client) error {
		if err := c.Query(context.Background(), "hello"); err != nil {
			return err
		}

		for msg, err := range c.ReceiveResponse(context.Background()) {
			if err != nil {
				return err
			}

			if msg.IsResult() {
				result = msg.Text()
			}
		}

		return nil
	}, agentwire.WithTransport(cli))

	require.NoError(t, err)
	require.Equal(t, "hi there", result)
}

func TestWithClient_StartError(t *testing.T) {
	err := agentwire.WithClient(context.Background(), func(agentwire.Client) error {
		t.Error("callback should not run")

		return nil
	}, agentwire.WithCliPath("/nonexistent/agent-cli"))

	_, ok := errors.AsType[*agentwire.CLINotFoundError](err)
	require.True(t, ok, "got %v", err)
}
