package agentwire_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire"
)

func TestMessagesFromChannel(t *testing.T) {
	ch := make(chan map[string]any, 2)
	ch <- agentwire.NewUserMessage("a", "")
	ch <- agentwire.NewUserMessage("b", "")
	close(ch)

	msgs := slices.Collect(agentwire.MessagesFromChannel(ch))
	require.Len(t, msgs, 2)
	require.Equal(t, "b", msgs[1]["message"].(map[string]any)["content"])
}

func TestSingleMessage(t *testing.T) {
	msgs := slices.Collect(agentwire.SingleMessage("hello"))

	require.Equal(t, []map[string]any{{
		"type":               "user",
		"message":            map[string]any{"role": "user", "content": "hello"},
		"parent_tool_use_id": nil,
		"session_id":         "default",
	}}, msgs)
}

func TestMessagesFromSlice_StopsEarly(t *testing.T) {
	seq := agentwire.MessagesFromSlice([]map[string]any{{"n": 1}, {"n": 2}, {"n": 3}})

	count := 0

	for range seq {
		count++
		if count == 2 {
			break
		}
	}

	require.Equal(t, 2, count)
}
