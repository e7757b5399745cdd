// Package message wraps the domain messages the agent CLI streams on stdout.
//
// Messages are kept as decoded JSON objects; accessors read the envelope
// fields every message carries without imposing a schema on the body.
package message

import (
	"fmt"
	"strings"

	"github.com/wagiedev/agentwire/internal/errors"
)

// Well-known message types.
const (
	TypeUser        = "user"
	TypeAssistant   = "assistant"
	TypeSystem      = "system"
	TypeResult      = "result"
	TypeStreamEvent = "stream_event"
)

// Message is one domain message emitted by the CLI.
type Message map[string]any

// Parse validates that data is a message envelope with a string "type".
func Parse(data any) (Message, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, &errors.MessageParseError{Reason: fmt.Sprintf("expected object, got %T", data), Raw: data}
	}

	if _, ok := obj["type"].(string); !ok {
		return nil, &errors.MessageParseError{Reason: "missing or invalid 'type' field", Raw: data}
	}

	return Message(obj), nil
}

// Type returns the message type, for example "assistant" or "result".
func (m Message) Type() string {
	s, _ := m["type"].(string)

	return s
}

// Subtype returns the optional subtype, for example "init" on system messages.
func (m Message) Subtype() string {
	s, _ := m["subtype"].(string)

	return s
}

// SessionID returns the session the message belongs to, if present.
func (m Message) SessionID() string {
	s, _ := m["session_id"].(string)

	return s
}

// IsResult reports whether m ends a turn.
func (m Message) IsResult() bool {
	return m.Type() == TypeResult
}

// IsError reports whether a result message carries is_error.
func (m Message) IsError() bool {
	b, _ := m["is_error"].(bool)

	return b
}

// Text concatenates the text blocks of a user or assistant message,
// or returns the "result" string of a result message.
func (m Message) Text() string {
	if m.IsResult() {
		s, _ := m["result"].(string)

		return s
	}

	inner, ok := m["message"].(map[string]any)
	if !ok {
		return ""
	}

	switch content := inner["content"].(type) {
	case string:
		return content
	case []any:
		var sb strings.Builder

		for _, block := range content {
			b, ok := block.(map[string]any)
			if !ok || b["type"] != "text" {
				continue
			}

			text, _ := b["text"].(string)
			sb.WriteString(text)
		}

		return sb.String()
	default:
		return ""
	}
}

// ToolUses returns the names of tools invoked by an assistant message.
func (m Message) ToolUses() []string {
	inner, ok := m["message"].(map[string]any)
	if !ok {
		return nil
	}

	blocks, _ := inner["content"].([]any)

	var names []string

	for _, block := range blocks {
		b, ok := block.(map[string]any)
		if !ok || b["type"] != "tool_use" {
			continue
		}

		if name, ok := b["name"].(string); ok {
			names = append(names, name)
		}
	}

	return names
}

// NewUserMessage builds the stdin envelope for a user prompt.
func NewUserMessage(prompt, sessionID string) map[string]any {
	return map[string]any{
		"type":               TypeUser,
		"message":            map[string]any{"role": "user", "content": prompt},
		"parent_tool_use_id": nil,
		"session_id":         sessionID,
	}
}
