package message

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    any
		wantErr string
	}{
		{name: "assistant", data: map[string]any{"type": "assistant"}},
		{name: "unknown type passes through", data: map[string]any{"type": "telemetry"}},
		{name: "array", data: []any{1, 2}, wantErr: "expected object, got []interface {}"},
		{name: "missing type", data: map[string]any{"subtype": "init"}, wantErr: "missing or invalid 'type' field"},
		{name: "non-string type", data: map[string]any{"type": 7.0}, wantErr: "missing or invalid 'type' field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.data)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.Equal(t, Message(tt.data.(map[string]any)), msg)

				return
			}

			parseErr, ok := stderrors.AsType[*errors.MessageParseError](err)
			require.True(t, ok, "got %v", err)
			require.Equal(t, tt.wantErr, parseErr.Reason)
			require.Equal(t, tt.data, parseErr.Raw)
		})
	}
}

func TestMessage_Accessors(t *testing.T) {
	msg := Message{
		"type":       "system",
		"subtype":    "init",
		"session_id": "abc",
	}

	require.Equal(t, TypeSystem, msg.Type())
	require.Equal(t, "init", msg.Subtype())
	require.Equal(t, "abc", msg.SessionID())
	require.False(t, msg.IsResult())

	require.Empty(t, Message{}.Type())
}

func TestMessage_Text(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "assistant blocks",
			msg: Message{"type": "assistant", "message": map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "Hello, "},
				map[string]any{"type": "tool_use", "name": "Bash"},
				map[string]any{"type": "text", "text": "world"},
			}}},
			want: "Hello, world",
		},
		{
			name: "user string content",
			msg:  Message{"type": "user", "message": map[string]any{"content": "hi"}},
			want: "hi",
		},
		{
			name: "result",
			msg:  Message{"type": "result", "result": "done", "is_error": false},
			want: "done",
		},
		{
			name: "no body",
			msg:  Message{"type": "system"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.msg.Text())
		})
	}
}

func TestMessage_ToolUses(t *testing.T) {
	msg := Message{"type": "assistant", "message": map[string]any{"content": []any{
		map[string]any{"type": "tool_use", "name": "Read"},
		map[string]any{"type": "text", "text": "x"},
		map[string]any{"type": "tool_use", "name": "Bash"},
	}}}

	require.Equal(t, []string{"Read", "Bash"}, msg.ToolUses())
	require.Nil(t, Message{"type": "result"}.ToolUses())
}

func TestMessage_IsError(t *testing.T) {
	require.True(t, Message{"type": "result", "is_error": true}.IsError())
	require.False(t, Message{"type": "result"}.IsError())
}

func TestNewUserMessage(t *testing.T) {
	require.Equal(t, map[string]any{
		"type":               "user",
		"message":            map[string]any{"role": "user", "content": "What is 2+2?"},
		"parent_tool_use_id": nil,
		"session_id":         "s-1",
	}, NewUserMessage("What is 2+2?", "s-1"))
}
