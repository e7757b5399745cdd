package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire"
)

// scriptedCLI answers control requests and replies to each prompt with one
// assistant message and a result.
type scriptedCLI struct {
	mu      sync.Mutex
	closed  bool
	frames  chan agentwire.Frame
	prompts []map[string]any
	isError bool
}

func newScriptedCLI() *scriptedCLI {
	return &scriptedCLI{frames: make(chan agentwire.Frame, 32)}
}

func (s *scriptedCLI) Connect(context.Context) error { return nil }

func (s *scriptedCLI) Write(_ context.Context, data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return agentwire.ErrTransportClosed
	}

	switch msg["type"] {
	case "control_request":
		s.frames <- agentwire.Frame{Value: map[string]any{
			"type": "control_response",
			"response": map[string]any{
				"subtype":    "success",
				"request_id": msg["request_id"],
				"response":   map[string]any{},
			},
		}}

	case "user":
		s.prompts = append(s.prompts, msg)
		s.frames <- agentwire.Frame{Value: map[string]any{
			"type":    "assistant",
			"message": map[string]any{"content": []any{map[string]any{"type": "text", "text": "Four."}}},
		}}
		s.frames <- agentwire.Frame{Value: map[string]any{
			"type":     "result",
			"is_error": s.isError,
			"result":   "4",
		}}
	}

	return nil
}

func (s *scriptedCLI) Messages() (<-chan agentwire.Frame, error) { return s.frames, nil }

func (s *scriptedCLI) EndInput() error { return nil }

func (s *scriptedCLI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.frames)
	}

	return nil
}

func (s *scriptedCLI) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.closed
}

func execute(t *testing.T, cli *scriptedCLI, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd([]agentwire.Option{agentwire.WithTransport(cli)})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestRunCommand_PromptArg(t *testing.T) {
	cli := newScriptedCLI()

	out, err := execute(t, cli, "", "run", "--session", "s-42", "What is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "Four.\n✓ done\n", out)

	require.Len(t, cli.prompts, 1)
	require.Equal(t, "s-42", cli.prompts[0]["session_id"])

	inner, ok := cli.prompts[0]["message"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "What is 2+2?", inner["content"])
}

func TestRunCommand_PromptFromStdin(t *testing.T) {
	cli := newScriptedCLI()

	_, err := execute(t, cli, "  summarize the repo \n", "run")
	require.NoError(t, err)

	require.Len(t, cli.prompts, 1)
	require.NotEmpty(t, cli.prompts[0]["session_id"])

	inner, ok := cli.prompts[0]["message"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "summarize the repo", inner["content"])
}

func TestRunCommand_EmptyPrompt(t *testing.T) {
	_, err := execute(t, newScriptedCLI(), "   ", "run")
	require.ErrorContains(t, err, "empty prompt")
}

func TestRunCommand_ErrorResult(t *testing.T) {
	cli := newScriptedCLI()
	cli.isError = true

	out, err := execute(t, cli, "", "run", "--session", "s-1", "go")
	require.ErrorContains(t, err, "s-1")
	require.Contains(t, out, "✗ 4")
}

func TestRunCommand_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request_timeout: never\n"), 0o600))

	_, err := execute(t, newScriptedCLI(), "", "--config", path, "run", "hi")
	require.ErrorContains(t, err, "request_timeout")
}

func TestVersionCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho '2.1.4 (Claude Code)'\n"), 0o755))

	out, err := execute(t, newScriptedCLI(), "", "version", "--cli-path", path)
	require.NoError(t, err)
	require.Equal(t, path+" 2.1.4\n", out)
}

func TestVersionCommand_NotFound(t *testing.T) {
	_, err := execute(t, newScriptedCLI(), "", "version", "--cli-path", "/nonexistent/claude")

	var notFound *agentwire.CLINotFoundError
	require.ErrorAs(t, err, &notFound)
}
