// Package hook provides hook callback types invoked through the control protocol.
//
// Hook matching is performed by the CLI. This package only describes what a
// callback receives and returns; the protocol package maps callback IDs to
// callbacks and converts outputs into control responses.
package hook

import "context"

// Event names the lifecycle point that triggered a hook.
type Event string

const (
	// EventPreToolUse is triggered before a tool is used.
	EventPreToolUse Event = "PreToolUse"
	// EventPostToolUse is triggered after a tool is used.
	EventPostToolUse Event = "PostToolUse"
	// EventPostToolUseFailure is triggered after a tool use fails.
	EventPostToolUseFailure Event = "PostToolUseFailure"
	// EventUserPromptSubmit is triggered when a user submits a prompt.
	EventUserPromptSubmit Event = "UserPromptSubmit"
	// EventStop is triggered when a session stops.
	EventStop Event = "Stop"
	// EventSubagentStart is triggered when a subagent starts.
	EventSubagentStart Event = "SubagentStart"
	// EventSubagentStop is triggered when a subagent stops.
	EventSubagentStop Event = "SubagentStop"
	// EventPreCompact is triggered before compaction.
	EventPreCompact Event = "PreCompact"
	// EventNotification is triggered when a notification is sent.
	EventNotification Event = "Notification"
	// EventPermissionRequest is triggered when a permission is requested.
	EventPermissionRequest Event = "PermissionRequest"
)

// Input is the payload of a hook_callback request.
//
// Common fields are lifted out; the full object is kept in Raw so callbacks
// can read event-specific fields without this package enumerating them.
type Input struct {
	Event          Event
	SessionID      string
	TranscriptPath string
	Cwd            string
	ToolName       string
	ToolInput      map[string]any
	ToolUseID      string
	Raw            map[string]any
}

// ParseInput lifts the common fields out of a raw hook input object.
func ParseInput(raw map[string]any) *Input {
	in := &Input{Raw: raw}
	if raw == nil {
		return in
	}

	name, _ := raw["hook_event_name"].(string)
	in.Event = Event(name)
	in.SessionID, _ = raw["session_id"].(string)
	in.TranscriptPath, _ = raw["transcript_path"].(string)
	in.Cwd, _ = raw["cwd"].(string)
	in.ToolName, _ = raw["tool_name"].(string)
	in.ToolInput, _ = raw["tool_input"].(map[string]any)
	in.ToolUseID, _ = raw["tool_use_id"].(string)

	return in
}

// Output is what a hook callback returns to the CLI.
// A nil Output means "continue".
type Output struct {
	Continue           *bool
	SuppressOutput     *bool
	StopReason         *string
	Decision           *string // "block"
	SystemMessage      *string
	Reason             *string
	HookSpecificOutput map[string]any

	// Async defers the hook; AsyncTimeout is in milliseconds.
	Async        bool
	AsyncTimeout *int
}

// ToMap converts the output into the CLI's wire format.
func (o *Output) ToMap() map[string]any {
	if o == nil {
		return map[string]any{"continue": true}
	}

	if o.Async {
		result := map[string]any{"async": true}
		if o.AsyncTimeout != nil {
			result["asyncTimeout"] = *o.AsyncTimeout
		}

		return result
	}

	result := make(map[string]any, 7)
	result["continue"] = o.Continue == nil || *o.Continue

	setIf(result, "suppressOutput", o.SuppressOutput)
	setIf(result, "stopReason", o.StopReason)
	setIf(result, "decision", o.Decision)
	setIf(result, "systemMessage", o.SystemMessage)
	setIf(result, "reason", o.Reason)

	if o.HookSpecificOutput != nil {
		result["hookSpecificOutput"] = o.HookSpecificOutput
	}

	return result
}

func setIf[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

// Callback handles one hook invocation.
type Callback func(ctx context.Context, input *Input) (*Output, error)

// Matcher configures which tools a group of callbacks applies to.
type Matcher struct {
	// Matcher is a tool name like "Bash" or "Write|Edit". Nil matches everything.
	// Matching is done by the CLI.
	Matcher *string
	Hooks   []Callback
	Timeout *float64 // seconds
}
