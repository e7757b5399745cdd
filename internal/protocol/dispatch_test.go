package protocol

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire/internal/hook"
	"github.com/wagiedev/agentwire/internal/mcp"
	"github.com/wagiedev/agentwire/internal/permission"
)

func (m *mockTransport) pushRequest(id string, request map[string]any) {
	m.push(map[string]any{
		"type":       "control_request",
		"request_id": id,
		"request":    request,
	})
}

// responseFor waits for the control_response the controller wrote for id.
func responseFor(t *testing.T, tr *mockTransport, id string) map[string]any {
	t.Helper()

	w := tr.nextWrite(t)
	require.Equal(t, "control_response", w["type"])

	resp := w["response"].(map[string]any)
	require.Equal(t, id, resp["request_id"])

	return resp
}

func requireSuccess(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()

	require.Equal(t, "success", resp["subtype"], "error: %v", resp["error"])

	payload, _ := resp["response"].(map[string]any)

	return payload
}

func requireError(t *testing.T, resp map[string]any, msg string) {
	t.Helper()

	require.Equal(t, "error", resp["subtype"])
	require.Equal(t, msg, resp["error"])
}

func TestDispatch_CanUseTool_DefaultAllow(t *testing.T) {
	tr := newMockTransport()
	startController(t, tr, nil)

	tr.pushRequest("req-1", map[string]any{
		"subtype":   "can_use_tool",
		"tool_name": "Bash",
		"input":     map[string]any{"command": "ls"},
	})

	payload := requireSuccess(t, responseFor(t, tr, "req-1"))
	require.Equal(t, "allow", payload["behavior"])
	require.Equal(t, map[string]any{"command": "ls"}, payload["updatedInput"])
}

func TestDispatch_CanUseTool_Handler(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	var got *permission.Request

	c.Registry().SetPermissionHandler(func(_ context.Context, req *permission.Request) (permission.Decision, error) {
		got = req

		return &permission.Deny{Message: "not in CI", Interrupt: true}, nil
	})

	tr.pushRequest("req-2", map[string]any{
		"subtype":      "can_use_tool",
		"tool_name":    "Write",
		"input":        map[string]any{"file_path": "/etc/passwd"},
		"tool_use_id":  "toolu_1",
		"blocked_path": "/etc",
		"permission_suggestions": []any{
			map[string]any{"type": "setMode", "mode": "acceptEdits", "destination": "session"},
		},
	})

	payload := requireSuccess(t, responseFor(t, tr, "req-2"))
	require.Equal(t, map[string]any{"behavior": "deny", "message": "not in CI", "interrupt": true}, payload)

	require.Equal(t, "Write", got.ToolName)
	require.Equal(t, "toolu_1", got.ToolUseID)
	require.Equal(t, "/etc", *got.BlockedPath)
	require.Len(t, got.Suggestions, 1)
	require.Equal(t, permission.UpdateType("setMode"), got.Suggestions[0].Type)
}

func TestDispatch_CanUseTool_HandlerError(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	c.Registry().SetPermissionHandler(func(context.Context, *permission.Request) (permission.Decision, error) {
		return nil, stderrors.New("policy store offline")
	})

	tr.pushRequest("req-3", map[string]any{"subtype": "can_use_tool", "tool_name": "Bash"})

	requireError(t, responseFor(t, tr, "req-3"), "policy store offline")
}

func TestDispatch_HookCallback(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	var got *hook.Input

	stop := false
	c.Registry().RegisterHook("hook_7", func(_ context.Context, in *hook.Input) (*hook.Output, error) {
		got = in

		return &hook.Output{Continue: &stop}, nil
	})

	tr.pushRequest("req-4", map[string]any{
		"subtype":     "hook_callback",
		"callback_id": "hook_7",
		"tool_use_id": "toolu_9",
		"input": map[string]any{
			"hook_event_name": "PreToolUse",
			"tool_name":       "Bash",
			"session_id":      "s-1",
		},
	})

	payload := requireSuccess(t, responseFor(t, tr, "req-4"))
	require.Equal(t, map[string]any{"continue": false}, payload)

	require.Equal(t, hook.Event("PreToolUse"), got.Event)
	require.Equal(t, "Bash", got.ToolName)
	require.Equal(t, "toolu_9", got.ToolUseID)
}

func TestDispatch_HookCallback_UnknownID(t *testing.T) {
	tr := newMockTransport()
	startController(t, tr, nil)

	tr.pushRequest("req-5", map[string]any{"subtype": "hook_callback", "callback_id": "hook_99"})

	requireError(t, responseFor(t, tr, "req-5"), "no hook callback found for ID: hook_99")
}

func TestDispatch_MCPMessage_NoHandler(t *testing.T) {
	tr := newMockTransport()
	startController(t, tr, nil)

	tr.pushRequest("req-6", map[string]any{
		"subtype":     "mcp_message",
		"server_name": "calc",
		"message":     map[string]any{"jsonrpc": "2.0", "id": 1.0, "method": "tools/list"},
	})

	requireError(t, responseFor(t, tr, "req-6"), "no MCP handler registered")
}

func TestDispatch_MCPMessage_Router(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	router := mcp.NewRouter(map[string]*mcp.Server{"calc": mcp.NewServer("calc", "2.0.0")})
	c.Registry().SetMCPHandler(router.Handle)

	tr.pushRequest("req-7", map[string]any{
		"subtype":     "mcp_message",
		"server_name": "calc",
		"message":     map[string]any{"jsonrpc": "2.0", "id": 1.0, "method": "initialize"},
	})

	payload := requireSuccess(t, responseFor(t, tr, "req-7"))

	rpc := payload["mcp_response"].(map[string]any)
	require.Equal(t, 1.0, rpc["id"])
	require.Equal(t, map[string]any{"name": "calc", "version": "2.0.0"}, rpc["result"].(map[string]any)["serverInfo"])
}

func TestDispatch_RegisteredHandler(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	c.Registry().RegisterHandler("ping", func(_ context.Context, req *ControlRequest) (map[string]any, error) {
		return map[string]any{"pong": req.Request["n"]}, nil
	})

	tr.pushRequest("req-8", map[string]any{"subtype": "ping", "n": 3.0})

	require.Equal(t, map[string]any{"pong": 3.0}, requireSuccess(t, responseFor(t, tr, "req-8")))
}

func TestDispatch_RegisteredHandlerOverridesBuiltin(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	c.Registry().RegisterHandler("can_use_tool", func(context.Context, *ControlRequest) (map[string]any, error) {
		return map[string]any{"behavior": "deny", "message": "custom"}, nil
	})

	tr.pushRequest("req-9", map[string]any{"subtype": "can_use_tool", "tool_name": "Bash"})

	require.Equal(t, "deny", requireSuccess(t, responseFor(t, tr, "req-9"))["behavior"])
}

func TestDispatch_UnknownSubtype(t *testing.T) {
	tr := newMockTransport()
	startController(t, tr, nil)

	tr.pushRequest("req-10", map[string]any{"subtype": "teleport"})

	requireError(t, responseFor(t, tr, "req-10"), "no handler registered for subtype teleport")
}

func TestDispatch_HandlerPanic(t *testing.T) {
	tr := newMockTransport()
	c := startController(t, tr, nil)

	c.Registry().RegisterHook("hook_0", func(context.Context, *hook.Input) (*hook.Output, error) {
		panic("nil map write")
	})

	tr.pushRequest("req-11", map[string]any{"subtype": "hook_callback", "callback_id": "hook_0"})

	requireError(t, responseFor(t, tr, "req-11"), "handler for hook_callback panicked: nil map write")

	// The dispatch loop survives the panic.
	tr.pushRequest("req-12", map[string]any{"subtype": "can_use_tool", "tool_name": "Read"})
	requireSuccess(t, responseFor(t, tr, "req-12"))
}

func TestController_HandleIncoming_Direct(t *testing.T) {
	tr := newMockTransport()
	c := NewController(discardLogger(), tr, nil, nil)

	err := c.HandleIncoming(context.Background(), "req-13", map[string]any{"subtype": "mcp_message"})
	require.NoError(t, err)

	requireError(t, responseFor(t, tr, "req-13"), "no MCP handler registered")

	tr.setWriteErr(stderrors.New("pipe closed"))

	err = c.HandleIncoming(context.Background(), "req-14", map[string]any{"subtype": "can_use_tool"})
	require.ErrorContains(t, err, "pipe closed")
}

func TestRegistry_RegisterHooks(t *testing.T) {
	r := NewRegistry()
	bash := "Bash"
	timeout := 5.0

	noop := func(context.Context, *hook.Input) (*hook.Output, error) { return nil, nil }

	cfg := r.RegisterHooks(map[hook.Event][]*hook.Matcher{
		hook.Event("PreToolUse"):  {{Matcher: &bash, Hooks: []hook.Callback{noop, noop}, Timeout: &timeout}},
		hook.Event("PostToolUse"): {{Hooks: []hook.Callback{noop}}, nil},
	})

	require.Equal(t, map[string]any{
		"PostToolUse": []map[string]any{
			{"matcher": (*string)(nil), "hookCallbackIds": []string{"hook_0"}},
		},
		"PreToolUse": []map[string]any{
			{"matcher": &bash, "hookCallbackIds": []string{"hook_1", "hook_2"}, "timeout": 5.0},
		},
	}, cfg)

	require.Equal(t, 3, r.HookCount())

	for _, id := range []string{"hook_0", "hook_1", "hook_2"} {
		_, ok := r.hook(id)
		require.True(t, ok, id)
	}

	// Ids keep counting on later registrations.
	cfg = r.RegisterHooks(map[hook.Event][]*hook.Matcher{
		hook.Event("Stop"): {{Hooks: []hook.Callback{noop}}},
	})
	require.Equal(t, []string{"hook_3"}, cfg["Stop"].([]map[string]any)[0]["hookCallbackIds"])
}
