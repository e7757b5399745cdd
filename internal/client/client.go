package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/agentwire/internal/cli"
	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/errors"
	"github.com/wagiedev/agentwire/internal/mcp"
	"github.com/wagiedev/agentwire/internal/message"
	"github.com/wagiedev/agentwire/internal/protocol"
	"github.com/wagiedev/agentwire/internal/subprocess"
)

const (
	// defaultMessageBufferSize is the buffer size for the messages channel.
	defaultMessageBufferSize = 10

	interruptTimeout         = 5 * time.Second
	rewindFilesTimeout       = 10 * time.Second
	setPermissionModeTimeout = 5 * time.Second
	setModelTimeout          = 5 * time.Second
	mcpStatusTimeout         = 10 * time.Second
)

// Client drives one agent CLI session: it owns the transport, the protocol
// controller, and the goroutines that move domain messages to the caller.
type Client struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	router     *mcp.Router
	options    *config.Options
	sessionID  string

	messages chan message.Message

	errMu    sync.RWMutex
	fatalErr error

	eg *errgroup.Group

	mu        sync.Mutex
	done      chan struct{}
	connected bool
	closed    bool
	closeOnce sync.Once
}

// New creates an unconnected client. Call Start to connect.
func New() *Client {
	return &Client{
		messages: make(chan message.Message, defaultMessageBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) setFatalError(err error) {
	if err == nil {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

func (c *Client) getFatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// newTransport discovers the CLI and prepares a subprocess transport for it.
func newTransport(ctx context.Context, log *slog.Logger, options *config.Options) (config.Transport, error) {
	path, err := cli.NewDiscoverer(&cli.Config{
		CliPath:          options.CliPath,
		SkipVersionCheck: options.SkipVersionCheck,
		StrictVersion:    options.StrictVersion,
		Logger:           log,
	}).Discover(ctx)
	if err != nil {
		return nil, err
	}

	cfg := subprocess.Config{
		Path:   path,
		Args:   cli.BuildArgs(options),
		Env:    cli.BuildEnvironment(options),
		Cwd:    options.Cwd,
		Stderr: options.Stderr,
		Clock:  options.Clock,
		Logger: log,
	}

	if options.MaxBufferSize != nil {
		cfg.MaxLineSize = *options.MaxBufferSize
	}

	if options.GraceTimeout != nil {
		cfg.GraceTimeout = *options.GraceTimeout
	}

	if options.TermTimeout != nil {
		cfg.TermTimeout = *options.TermTimeout
	}

	return subprocess.New(cfg), nil
}

// newRegistry wires the permission callback and in-process MCP servers.
// Hooks are registered by Initialize.
func (c *Client) newRegistry(options *config.Options) *protocol.Registry {
	registry := protocol.NewRegistry()

	if options.CanUseTool != nil {
		registry.SetPermissionHandler(options.CanUseTool)
	}

	if len(options.MCPServers) > 0 {
		c.router = mcp.NewRouter(options.MCPServers)
		registry.SetMCPHandler(c.router.Handle)

		c.log.Debug("Registered in-process MCP servers", "servers", c.router.Len())
	}

	return registry
}

// initializeCore connects the transport, starts the controller and performs
// the handshake. Caller must hold c.mu.
func (c *Client) initializeCore(ctx context.Context, options *config.Options) error {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c.log = log.With("component", "client")

	if options.CanUseTool != nil &&
		options.PermissionPromptToolName != "" &&
		options.PermissionPromptToolName != "stdio" {
		return fmt.Errorf("can_use_tool callback cannot be used with permission prompt tool %q",
			options.PermissionPromptToolName)
	}

	c.options = options
	c.sessionID = uuid.NewString()

	transport := options.Transport
	if transport != nil {
		c.log.Debug("Using injected custom transport")
	} else {
		var err error

		transport, err = newTransport(ctx, log, options)
		if err != nil {
			return err
		}
	}

	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	c.transport = transport

	// The controller outlives ctx, which may only bound the handshake.
	c.controller = protocol.NewController(log, transport, c.newRegistry(options), options.Clock)
	if err := c.controller.Start(context.Background()); err != nil {
		_ = transport.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	initCfg := protocol.InitializeConfig{Hooks: options.Hooks}
	if len(options.Agents) > 0 {
		initCfg.Agents = options.Agents
	}

	if options.InitializeTimeout != nil {
		initCfg.Timeout = *options.InitializeTimeout
	}

	if err := c.controller.Initialize(ctx, initCfg); err != nil {
		c.controller.Stop()
		_ = transport.Close()

		return err
	}

	return nil
}

// Start connects to the CLI and performs the initialize handshake.
//
// Returns CLINotFoundError if the CLI binary cannot be located, or
// ConnectionError if the process fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	return c.start(ctx, options, nil)
}

// StartWithPrompt starts the client and sends prompt on the session.
func (c *Client) StartWithPrompt(ctx context.Context, prompt string, options *config.Options) error {
	if err := c.Start(ctx, options); err != nil {
		return err
	}

	return c.Query(ctx, prompt)
}

// StartWithStream starts the client and writes every message from the
// iterator to the CLI's stdin. EndInput is called when the iterator is
// exhausted.
func (c *Client) StartWithStream(
	ctx context.Context,
	messages iter.Seq[map[string]any],
	options *config.Options,
) error {
	if messages == nil {
		return fmt.Errorf("start with stream: nil message iterator")
	}

	return c.start(ctx, options, messages)
}

func (c *Client) start(ctx context.Context, options *config.Options, stream iter.Seq[map[string]any]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrAlreadyConnected
	}

	if err := c.initializeCore(ctx, options); err != nil {
		return err
	}

	// Background context: the client lives until Close, not until ctx ends.
	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(context.Background())

	if stream != nil {
		c.eg.Go(func() error {
			return c.streamMessages(egCtx, stream)
		})
	}

	c.eg.Go(func() error {
		return c.readLoop(egCtx)
	})

	c.connected = true
	c.log.Info("Client started", "session_id", c.sessionID)

	return nil
}

func (c *Client) streamMessages(ctx context.Context, messages iter.Seq[map[string]any]) (err error) {
	defer func() {
		if endErr := c.transport.EndInput(); endErr != nil && err == nil {
			err = fmt.Errorf("end input: %w", endErr)
		}
	}()

	for msg := range messages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal streaming message: %w", err)
		}

		if err := c.transport.Write(ctx, data); err != nil {
			c.log.Error("Failed to send streaming message", "error", err)

			return fmt.Errorf("send streaming message: %w", err)
		}
	}

	c.log.Debug("Finished streaming all messages")

	return nil
}

// readLoop moves domain messages from the controller to c.messages.
// Lines that are not valid JSON or lack a type are logged and skipped.
func (c *Client) readLoop(ctx context.Context) error {
	defer c.log.Debug("Read loop stopped")
	defer close(c.messages)

	frames := c.controller.Messages()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				if err := c.controller.FatalError(); err != nil {
					c.log.Error("Transport error", "error", err)
					c.setFatalError(err)

					return err
				}

				return nil
			}

			if frame.Err != nil {
				c.log.Warn("Skipping undecodable line", "error", frame.Err)

				continue
			}

			msg, err := message.Parse(frame.Value)
			if err != nil {
				c.log.Warn("Skipping message", "error", err)

				continue
			}

			select {
			case c.messages <- msg:
			case <-c.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-c.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SessionID returns the id Query uses when none is given.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Query writes a user message. Responses arrive on ReceiveMessages.
// The optional sessionID defaults to the id minted by Start.
func (c *Client) Query(ctx context.Context, prompt string, sessionID ...string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	sid := c.SessionID()
	if len(sessionID) > 0 && sessionID[0] != "" {
		sid = sessionID[0]
	}

	c.log.Debug("Sending query", "prompt_len", len(prompt), "session_id", sid)

	data, err := json.Marshal(message.NewUserMessage(prompt, sid))
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	return c.transport.Write(ctx, data)
}

// receive returns the next message, io.EOF when the stream ends cleanly, or
// the fatal error that ended it.
func (c *Client) receive(ctx context.Context) (message.Message, error) {
	if err := c.getFatalError(); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-c.messages:
		if !ok {
			if err := c.eg.Wait(); err != nil {
				c.setFatalError(err)

				return nil, err
			}

			return nil, io.EOF
		}

		return msg, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveMessages yields messages until the stream ends, an error occurs,
// or ctx is cancelled. A clean end of stream yields nothing further.
func (c *Client) ReceiveMessages(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if !c.isConnected() {
			yield(nil, errors.ErrClientNotConnected)

			return
		}

		for {
			msg, err := c.receive(ctx)
			if err == io.EOF {
				return
			}

			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}

// ReceiveResponse yields messages up to and including the next result message.
func (c *Client) ReceiveResponse(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for msg, err := range c.ReceiveMessages(ctx) {
			if err != nil {
				yield(nil, fmt.Errorf("receive response: %w", err))

				return
			}

			if !yield(msg, nil) || msg.IsResult() {
				return
			}
		}
	}
}

func (c *Client) requestTimeout(fallback time.Duration) time.Duration {
	if c.options != nil && c.options.RequestTimeout != nil {
		return *c.options.RequestTimeout
	}

	return fallback
}

// Interrupt asks the CLI to stop the current turn.
func (c *Client) Interrupt(ctx context.Context) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	c.log.Info("Sending interrupt signal")

	if _, err := c.controller.SendRequest(ctx, &protocol.InterruptRequest{}, c.requestTimeout(interruptTimeout)); err != nil {
		return fmt.Errorf("send interrupt signal: %w", err)
	}

	return nil
}

// RewindFiles restores tracked files to their state at userMessageID.
func (c *Client) RewindFiles(ctx context.Context, userMessageID string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	c.log.Info("Rewinding files", "user_message_id", userMessageID)

	req := &protocol.RewindFilesRequest{UserMessageID: userMessageID}
	if _, err := c.controller.SendRequest(ctx, req, c.requestTimeout(rewindFilesTimeout)); err != nil {
		return fmt.Errorf("rewind files: %w", err)
	}

	return nil
}

// SetPermissionMode changes the permission mode mid-session.
func (c *Client) SetPermissionMode(ctx context.Context, mode string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	normalizedMode := config.NormalizePermissionMode(mode)

	c.log.Info("Setting permission mode", "mode", normalizedMode)

	req := &protocol.SetPermissionModeRequest{Mode: normalizedMode}
	if _, err := c.controller.SendRequest(ctx, req, c.requestTimeout(setPermissionModeTimeout)); err != nil {
		return fmt.Errorf("set permission mode to %q: %w", normalizedMode, err)
	}

	return nil
}

// SetModel switches the model. Nil selects the CLI default.
func (c *Client) SetModel(ctx context.Context, model *string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	c.log.Info("Setting model", "model", model)

	if _, err := c.controller.SendRequest(ctx, &protocol.SetModelRequest{Model: model}, c.requestTimeout(setModelTimeout)); err != nil {
		return fmt.Errorf("set model: %w", err)
	}

	return nil
}

// GetMCPStatus asks the CLI for MCP server status. In-process servers the
// CLI does not report are appended as connected.
func (c *Client) GetMCPStatus(ctx context.Context) (*mcp.Status, error) {
	if !c.isConnected() {
		return nil, errors.ErrClientNotConnected
	}

	payload, err := c.controller.SendRequest(ctx, &protocol.MCPStatusRequest{}, c.requestTimeout(mcpStatusTimeout))
	if err != nil {
		return nil, fmt.Errorf("get mcp status: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp status payload: %w", err)
	}

	var status mcp.Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("unmarshal mcp status: %w", err)
	}

	if c.router == nil {
		return &status, nil
	}

	names := c.router.Names()
	slices.Sort(names)

	for _, name := range names {
		known := slices.ContainsFunc(status.MCPServers, func(s mcp.ServerStatus) bool { return s.Name == name })
		if !known {
			status.MCPServers = append(status.MCPServers, mcp.ServerStatus{Name: name, Status: "connected"})
		}
	}

	return &status, nil
}

// ServerInfo returns what the CLI reported during initialize, or nil
// before Start.
func (c *Client) ServerInfo() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.controller == nil {
		return nil
	}

	return c.controller.ServerInfo()
}

// Close ends the session and releases the process. The client cannot be
// restarted. Safe to call more than once.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		if !wasConnected {
			return
		}

		c.log.Info("Closing client")

		close(c.done)

		c.controller.Stop()

		closeErr = c.transport.Close()

		if err := c.eg.Wait(); err != nil && closeErr == nil {
			closeErr = err
		}

		c.log.Info("Client closed")
	})

	return closeErr
}
