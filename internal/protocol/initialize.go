package protocol

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/wagiedev/agentwire/internal/hook"
)

// DefaultInitializeTimeout bounds the initialize handshake.
const DefaultInitializeTimeout = 60 * time.Second

// initializeTimeoutEnv overrides the handshake timeout, in whole seconds.
const initializeTimeoutEnv = "AGENTWIRE_INITIALIZE_TIMEOUT"

// InitializeConfig is the session configuration sent in the handshake.
type InitializeConfig struct {
	// Hooks are registered with the controller's registry and announced by
	// callback id.
	Hooks map[hook.Event][]*hook.Matcher

	// Agents is sent as-is.
	Agents any

	// Timeout bounds the request. Zero falls back to the environment, then
	// DefaultInitializeTimeout.
	Timeout time.Duration
}

// Initialize performs the handshake and records the server info the CLI
// returns. An error reply is returned as a ControlError.
func (c *Controller) Initialize(ctx context.Context, cfg InitializeConfig) error {
	req := &InitializeRequest{Agents: cfg.Agents}
	if len(cfg.Hooks) > 0 {
		req.Hooks = c.registry.RegisterHooks(cfg.Hooks)
	}

	c.log.Debug("Sending initialize request", "hook_events", len(req.Hooks))

	payload, err := c.SendRequest(ctx, req, initializeTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	c.infoMu.Lock()
	c.serverInfo = payload
	c.infoMu.Unlock()

	return nil
}

// ServerInfo returns a copy of what the CLI reported during Initialize, or
// nil before a successful handshake.
func (c *Controller) ServerInfo() map[string]any {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()

	if c.serverInfo == nil {
		return nil
	}

	return maps.Clone(c.serverInfo)
}

func initializeTimeout(explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}

	if s := os.Getenv(initializeTimeoutEnv); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return DefaultInitializeTimeout
}
