package agentwire

import (
	"context"
	"iter"

	"github.com/wagiedev/agentwire/internal/client"
)

// Client is an interactive session with the agent CLI.
//
// Lifecycle: clients are single-use. After Close, create a new one with
// NewClient.
//
//	client := agentwire.NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, agentwire.WithPermissionMode("acceptEdits")); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Query(ctx, "What is 2+2?"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg, err := range client.ReceiveResponse(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(msg.Type(), msg.Text())
//	}
type Client interface {
	// Start spawns the CLI and performs the initialize handshake.
	// Returns CLINotFoundError if the CLI is not found and ConnectionError
	// if it cannot be started.
	Start(ctx context.Context, opts ...Option) error

	// StartWithPrompt is Start followed by Query.
	StartWithPrompt(ctx context.Context, prompt string, opts ...Option) error

	// StartWithStream starts the client and writes every message from the
	// iterator to the CLI. Input is ended when the iterator is exhausted.
	StartWithStream(ctx context.Context, messages iter.Seq[map[string]any], opts ...Option) error

	// Query sends a user prompt. The optional sessionID defaults to
	// SessionID().
	Query(ctx context.Context, prompt string, sessionID ...string) error

	// ReceiveMessages yields messages until the CLI's output ends.
	ReceiveMessages(ctx context.Context) iter.Seq2[Message, error]

	// ReceiveResponse yields messages up to and including the next result.
	ReceiveResponse(ctx context.Context) iter.Seq2[Message, error]

	// Interrupt stops the current turn.
	Interrupt(ctx context.Context) error

	// SetPermissionMode changes the permission mode mid-session.
	SetPermissionMode(ctx context.Context, mode string) error

	// SetModel switches models. Nil selects the CLI default.
	SetModel(ctx context.Context, model *string) error

	// RewindFiles restores tracked files to their state at a user message.
	RewindFiles(ctx context.Context, userMessageID string) error

	// GetMCPStatus reports MCP server connection status.
	GetMCPStatus(ctx context.Context) (*MCPStatus, error)

	// ServerInfo returns what the CLI reported during initialize.
	ServerInfo() map[string]any

	// SessionID returns the default session id for Query.
	SessionID() string

	// Close ends the session. Safe to call more than once.
	Close() error
}

// clientWrapper adapts internal/client to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements Client.
var _ Client = (*clientWrapper)(nil)

// NewClient creates an unconnected client.
func NewClient() Client {
	return &clientWrapper{impl: client.New()}
}

func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

func (c *clientWrapper) StartWithPrompt(ctx context.Context, prompt string, opts ...Option) error {
	return c.impl.StartWithPrompt(ctx, prompt, applyOptions(opts))
}

func (c *clientWrapper) StartWithStream(ctx context.Context, messages iter.Seq[map[string]any], opts ...Option) error {
	return c.impl.StartWithStream(ctx, messages, applyOptions(opts))
}

func (c *clientWrapper) Query(ctx context.Context, prompt string, sessionID ...string) error {
	return c.impl.Query(ctx, prompt, sessionID...)
}

func (c *clientWrapper) ReceiveMessages(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveMessages(ctx)
}

func (c *clientWrapper) ReceiveResponse(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveResponse(ctx)
}

func (c *clientWrapper) Interrupt(ctx context.Context) error {
	return c.impl.Interrupt(ctx)
}

func (c *clientWrapper) SetPermissionMode(ctx context.Context, mode string) error {
	return c.impl.SetPermissionMode(ctx, mode)
}

func (c *clientWrapper) SetModel(ctx context.Context, model *string) error {
	return c.impl.SetModel(ctx, model)
}

func (c *clientWrapper) RewindFiles(ctx context.Context, userMessageID string) error {
	return c.impl.RewindFiles(ctx, userMessageID)
}

func (c *clientWrapper) GetMCPStatus(ctx context.Context) (*MCPStatus, error) {
	return c.impl.GetMCPStatus(ctx)
}

func (c *clientWrapper) ServerInfo() map[string]any {
	return c.impl.ServerInfo()
}

func (c *clientWrapper) SessionID() string {
	return c.impl.SessionID()
}

func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
