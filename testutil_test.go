package agentwire_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wagiedev/agentwire"
)

// fakeCLI is an in-memory Transport that behaves like the agent CLI: it
// answers control requests with success and replies to each user message
// with an assistant message and a result.
type fakeCLI struct {
	mu        sync.Mutex
	connected bool
	closed    bool

	frames chan agentwire.Frame
	writes []map[string]any

	// reply is the assistant text sent for each prompt.
	reply string
}

func newFakeCLI(reply string) *fakeCLI {
	return &fakeCLI{frames: make(chan agentwire.Frame, 100), reply: reply}
}

func (f *fakeCLI) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = true

	return nil
}

func (f *fakeCLI) Write(_ context.Context, data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, msg)

	if f.closed {
		return agentwire.ErrTransportClosed
	}

	switch msg["type"] {
	case "control_request":
		f.frames <- agentwire.Frame{Value: map[string]any{
			"type": "control_response",
			"response": map[string]any{
				"subtype":    "success",
				"request_id": msg["request_id"],
				"response":   map[string]any{"commands": []any{}},
			},
		}}

	case "user":
		sid := msg["session_id"]
		f.frames <- agentwire.Frame{Value: map[string]any{
			"type":       "assistant",
			"session_id": sid,
			"message":    map[string]any{"content": []any{map[string]any{"type": "text", "text": f.reply}}},
		}}
		f.frames <- agentwire.Frame{Value: map[string]any{
			"type":       "result",
			"session_id": sid,
			"result":     f.reply,
		}}
	}

	return nil
}

func (f *fakeCLI) Messages() (<-chan agentwire.Frame, error) {
	return f.frames, nil
}

// EndInput finishes the output stream, like a CLI exiting at end of input.
func (f *fakeCLI) EndInput() error {
	return f.Close()
}

func (f *fakeCLI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.frames)
	}

	return nil
}

func (f *fakeCLI) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected && !f.closed
}

func (f *fakeCLI) written(msgType string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any

	for _, w := range f.writes {
		if w["type"] == msgType {
			out = append(out, w)
		}
	}

	return out
}
