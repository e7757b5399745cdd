package protocol

import (
	"context"
	"fmt"

	"github.com/wagiedev/agentwire/internal/hook"
	"github.com/wagiedev/agentwire/internal/permission"
)

// builtinHandler returns the dispatch function for an incoming subtype.
// Explicit registrations win over the built-ins.
func (c *Controller) builtinHandler(subtype string) (RequestHandler, bool) {
	if h, ok := c.registry.handler(subtype); ok {
		return h, true
	}

	switch subtype {
	case SubtypeCanUseTool:
		return c.handleCanUseTool, true
	case SubtypeHookCallback:
		return c.handleHookCallback, true
	case SubtypeMCPMessage:
		return c.handleMCPMessage, true
	default:
		return nil, false
	}
}

// handleCanUseTool asks the permission callback about a tool use. With no
// callback registered every tool use is allowed.
func (c *Controller) handleCanUseTool(ctx context.Context, req *ControlRequest) (map[string]any, error) {
	toolName, _ := req.Request["tool_name"].(string)
	input, _ := req.Request["input"].(map[string]any)

	cb := c.registry.permissionHandler()
	if cb == nil {
		c.log.Debug("No permission handler, allowing", "tool", toolName)

		return (&permission.Allow{UpdatedInput: input}).ToMap(), nil
	}

	permReq := &permission.Request{
		ToolName: toolName,
		Input:    input,
	}

	permReq.ToolUseID, _ = req.Request["tool_use_id"].(string)

	if p, ok := req.Request["blocked_path"].(string); ok {
		permReq.BlockedPath = &p
	}

	if raw, ok := req.Request["permission_suggestions"].([]any); ok {
		permReq.Suggestions = make([]*permission.Update, 0, len(raw))

		for _, s := range raw {
			if m, ok := s.(map[string]any); ok {
				permReq.Suggestions = append(permReq.Suggestions, permission.ParseUpdate(m))
			}
		}
	}

	decision, err := cb(ctx, permReq)
	if err != nil {
		return nil, err
	}

	if decision == nil {
		return nil, fmt.Errorf("permission callback for %s returned no decision", toolName)
	}

	return decision.ToMap(), nil
}

// handleHookCallback runs the hook registered under callback_id.
func (c *Controller) handleHookCallback(ctx context.Context, req *ControlRequest) (map[string]any, error) {
	callbackID, _ := req.Request["callback_id"].(string)

	cb, ok := c.registry.hook(callbackID)
	if !ok {
		return nil, fmt.Errorf("no hook callback found for ID: %s", callbackID)
	}

	raw, _ := req.Request["input"].(map[string]any)
	input := hook.ParseInput(raw)

	if input.ToolUseID == "" {
		input.ToolUseID, _ = req.Request["tool_use_id"].(string)
	}

	output, err := cb(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("hook callback %s: %w", callbackID, err)
	}

	return output.ToMap(), nil
}

// handleMCPMessage forwards a tunnelled JSON-RPC message to the MCP handler.
func (c *Controller) handleMCPMessage(ctx context.Context, req *ControlRequest) (map[string]any, error) {
	h := c.registry.mcpHandler()
	if h == nil {
		return nil, fmt.Errorf("no MCP handler registered")
	}

	serverName, _ := req.Request["server_name"].(string)
	message, _ := req.Request["message"].(map[string]any)

	return h(ctx, serverName, message)
}
