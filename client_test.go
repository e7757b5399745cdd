package agentwire_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire"
)

func TestClient_QueryAndReceiveResponse(t *testing.T) {
	cli := newFakeCLI("4")

	client := agentwire.NewClient()
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Start(ctx, agentwire.WithTransport(cli)))
	require.Equal(t, map[string]any{"commands": []any{}}, client.ServerInfo())

	require.NoError(t, client.Query(ctx, "What is 2+2?"))

	var types []string

	for msg, err := range client.ReceiveResponse(ctx) {
		require.NoError(t, err)
		require.Equal(t, client.SessionID(), msg.SessionID())

		types = append(types, msg.Type())
	}

	require.Equal(t, []string{agentwire.MessageTypeAssistant, agentwire.MessageTypeResult}, types)

	users := cli.written("user")
	require.Len(t, users, 1)
	require.Equal(t, map[string]any{"role": "user", "content": "What is 2+2?"}, users[0]["message"])
}

func TestClient_MultipleTurns(t *testing.T) {
	cli := newFakeCLI("ok")

	client := agentwire.NewClient()
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Start(ctx, agentwire.WithTransport(cli)))

	for range 3 {
		require.NoError(t, client.Query(ctx, "next"))

		var last agentwire.Message

		for msg, err := range client.ReceiveResponse(ctx) {
			require.NoError(t, err)

			last = msg
		}

		require.True(t, last.IsResult())
		require.Equal(t, "ok", last.Text())
	}
}

func TestClient_ControlRequestsUseTransport(t *testing.T) {
	cli := newFakeCLI("")

	client := agentwire.NewClient()
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Start(ctx, agentwire.WithTransport(cli)))

	require.NoError(t, client.Interrupt(ctx))
	require.NoError(t, client.SetPermissionMode(ctx, string(agentwire.PermissionModePlan)))

	var subtypes []string
	for _, w := range cli.written("control_request") {
		subtypes = append(subtypes, w["request"].(map[string]any)["subtype"].(string))
	}

	require.Equal(t, []string{"initialize", "interrupt", "set_permission_mode"}, subtypes)
}

func TestClient_StartWithoutCLI(t *testing.T) {
	client := agentwire.NewClient()

	err := client.Start(context.Background(), agentwire.WithCliPath("/nonexistent/agent-cli"))

	_, ok := errors.AsType[*agentwire.CLINotFoundError](err)
	require.True(t, ok, "got %v", err)
	require.NoError(t, client.Close())
}

func TestClient_NotStarted(t *testing.T) {
	client := agentwire.NewClient()

	require.ErrorIs(t, client.Query(context.Background(), "hi"), agentwire.ErrClientNotConnected)
	require.Nil(t, client.ServerInfo())
}
