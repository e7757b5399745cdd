package agentwire

import (
	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/hook"
	"github.com/wagiedev/agentwire/internal/mcp"
	"github.com/wagiedev/agentwire/internal/message"
	"github.com/wagiedev/agentwire/internal/permission"
)

// Options configures a Client. Build it with Option functions.
type Options = config.Options

// AgentDefinition defines a custom agent announced in the handshake.
type AgentDefinition = config.AgentDefinition

// Frame is one item on a Transport's message stream.
type Frame = config.Frame

// ===== Messages =====

// Message is one domain message streamed by the CLI, as a decoded JSON object.
type Message = message.Message

// Message types.
const (
	MessageTypeUser        = message.TypeUser
	MessageTypeAssistant   = message.TypeAssistant
	MessageTypeSystem      = message.TypeSystem
	MessageTypeResult      = message.TypeResult
	MessageTypeStreamEvent = message.TypeStreamEvent
)

// ===== Hooks =====

// HookEvent names the lifecycle point a hook runs at.
type HookEvent = hook.Event

// Hook events.
const (
	HookEventPreToolUse         = hook.EventPreToolUse
	HookEventPostToolUse        = hook.EventPostToolUse
	HookEventPostToolUseFailure = hook.EventPostToolUseFailure
	HookEventUserPromptSubmit   = hook.EventUserPromptSubmit
	HookEventStop               = hook.EventStop
	HookEventSubagentStart      = hook.EventSubagentStart
	HookEventSubagentStop       = hook.EventSubagentStop
	HookEventPreCompact         = hook.EventPreCompact
	HookEventNotification       = hook.EventNotification
	HookEventPermissionRequest  = hook.EventPermissionRequest
)

// HookInput is the payload passed to a hook callback.
type HookInput = hook.Input

// HookOutput is what a hook callback returns.
type HookOutput = hook.Output

// HookCallback runs when the CLI fires a registered hook.
type HookCallback = hook.Callback

// HookMatcher groups callbacks under a tool-name pattern.
type HookMatcher = hook.Matcher

// ===== Permissions =====

// PermissionMode is the CLI's permission mode.
type PermissionMode = permission.Mode

// Permission modes.
const (
	PermissionModeDefault           = permission.ModeDefault
	PermissionModeAcceptEdits       = permission.ModeAcceptEdits
	PermissionModePlan              = permission.ModePlan
	PermissionModeBypassPermissions = permission.ModeBypassPermissions
)

// PermissionRequest is a can_use_tool check.
type PermissionRequest = permission.Request

// PermissionDecision is the answer to a PermissionRequest.
type PermissionDecision = permission.Decision

// PermissionAllow permits a tool use.
type PermissionAllow = permission.Allow

// PermissionDeny rejects a tool use.
type PermissionDeny = permission.Deny

// PermissionUpdate is a rule change suggested by or returned to the CLI.
type PermissionUpdate = permission.Update

// ToolPermissionCallback decides can_use_tool requests.
type ToolPermissionCallback = permission.Callback

// ===== MCP =====

// MCPServerStatus is one server's entry in MCPStatus.
type MCPServerStatus = mcp.ServerStatus

// MCPStatus is returned by Client.GetMCPStatus.
type MCPStatus = mcp.Status
