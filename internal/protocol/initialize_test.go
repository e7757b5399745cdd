package protocol

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire/internal/errors"
	"github.com/wagiedev/agentwire/internal/hook"
)

func TestController_Initialize(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	require.Nil(t, c.ServerInfo())

	matcher := "Bash"
	calls := 0

	hooks := map[hook.Event][]*hook.Matcher{
		hook.Event("PreToolUse"): {{
			Matcher: &matcher,
			Hooks: []hook.Callback{func(context.Context, *hook.Input) (*hook.Output, error) {
				calls++

				return nil, nil
			}},
		}},
	}

	agents := map[string]any{"reviewer": map[string]any{"description": "Reviews code", "prompt": "Review."}}

	done := make(chan error, 1)

	go func() {
		done <- c.Initialize(context.Background(), InitializeConfig{Hooks: hooks, Agents: agents, Timeout: time.Second})
	}()

	w := tr.nextWrite(t)
	req := w["request"].(map[string]any)
	require.Equal(t, "initialize", req["subtype"])
	require.Equal(t, agents, req["agents"])
	require.Equal(t, map[string]any{
		"PreToolUse": []any{map[string]any{"matcher": "Bash", "hookCallbackIds": []any{"hook_0"}}},
	}, req["hooks"])

	tr.replySuccess(requestID(t, w), map[string]any{"commands": []any{}, "output_style": "default"})
	require.NoError(t, <-done)

	info := c.ServerInfo()
	require.Equal(t, "default", info["output_style"])

	// The returned map is a copy.
	info["output_style"] = "mutated"
	require.Equal(t, "default", c.ServerInfo()["output_style"])

	// The announced hook id is now routable.
	tr.pushRequest("cli-1", map[string]any{"subtype": "hook_callback", "callback_id": "hook_0", "input": map[string]any{}})
	require.Equal(t, map[string]any{"continue": true}, requireSuccess(t, responseFor(t, tr, "cli-1")))
	require.Equal(t, 1, calls)
}

func TestController_Initialize_NoHooks(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	done := make(chan error, 1)

	go func() { done <- c.Initialize(context.Background(), InitializeConfig{}) }()

	w := tr.nextWrite(t)
	require.Equal(t, map[string]any{"subtype": "initialize", "hooks": map[string]any{}}, w["request"])

	tr.replySuccess(requestID(t, w), nil)
	require.NoError(t, <-done)
	require.Equal(t, map[string]any{}, c.ServerInfo())
}

func TestController_Initialize_ErrorResponse(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	done := make(chan error, 1)

	go func() { done <- c.Initialize(context.Background(), InitializeConfig{}) }()

	tr.replyError(requestID(t, tr.nextWrite(t)), "unsupported protocol")

	err := <-done

	controlErr, ok := stderrors.AsType[*errors.ControlError](err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, "unsupported protocol", controlErr.Message)
	require.Nil(t, c.ServerInfo())
}

func TestInitializeTimeout(t *testing.T) {
	require.Equal(t, 3*time.Second, initializeTimeout(3*time.Second))
	require.Equal(t, DefaultInitializeTimeout, initializeTimeout(0))

	t.Setenv(initializeTimeoutEnv, "90")
	require.Equal(t, 90*time.Second, initializeTimeout(0))

	t.Setenv(initializeTimeoutEnv, "soon")
	require.Equal(t, DefaultInitializeTimeout, initializeTimeout(0))
}
