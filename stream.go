package agentwire

import (
	"iter"

	"github.com/wagiedev/agentwire/internal/message"
)

// MessagesFromSlice streams a fixed set of input messages.
func MessagesFromSlice(msgs []map[string]any) iter.Seq[map[string]any] {
	return func(yield func(map[string]any) bool) {
		for _, msg := range msgs {
			if !yield(msg) {
				return
			}
		}
	}
}

// MessagesFromChannel streams input messages until ch is closed.
func MessagesFromChannel(ch <-chan map[string]any) iter.Seq[map[string]any] {
	return func(yield func(map[string]any) bool) {
		for msg := range ch {
			if !yield(msg) {
				return
			}
		}
	}
}

// SingleMessage streams one user prompt.
func SingleMessage(content string) iter.Seq[map[string]any] {
	return MessagesFromSlice([]map[string]any{NewUserMessage(content, "")})
}

// NewUserMessage builds a user input message. An empty sessionID means
// "default".
func NewUserMessage(content, sessionID string) map[string]any {
	if sessionID == "" {
		sessionID = "default"
	}

	return message.NewUserMessage(content, sessionID)
}
