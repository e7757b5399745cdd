package config

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/wagiedev/agentwire/internal/hook"
	"github.com/wagiedev/agentwire/internal/mcp"
	"github.com/wagiedev/agentwire/internal/permission"
)

// AgentDefinition defines a custom agent sent in the initialize handshake.
type AgentDefinition struct {
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Tools       []string `json:"tools,omitempty"`
	Model       *string  `json:"model,omitempty"`
}

// Options configures a client, its transport, and its control protocol.
type Options struct {
	// Logger receives debug output. If nil, logging is disabled.
	Logger *slog.Logger

	// ===== Process invocation =====

	// CliPath is the explicit path to the agent CLI binary.
	// If empty, the CLI is searched in PATH and common locations.
	CliPath string

	// SkipVersionCheck skips running "<cli> -v" during discovery.
	SkipVersionCheck bool

	// StrictVersion turns a below-minimum CLI version into an InvalidVersionError.
	StrictVersion bool

	// Cwd sets the working directory for the CLI process.
	Cwd string

	// Env provides additional environment variables for the CLI process.
	Env map[string]string

	// Stderr receives each line the CLI writes to stderr.
	Stderr func(string)

	// MaxBufferSize caps the length of a single stdout line in bytes.
	// If nil, 1MB is used.
	MaxBufferSize *int

	// ===== CLI flags =====

	// Model specifies which model the CLI should use.
	Model string

	// PermissionMode controls how the CLI handles permissions.
	PermissionMode string

	// SystemPrompt is passed via --system-prompt.
	SystemPrompt string

	// MaxTurns limits the number of conversation turns.
	MaxTurns int

	// AllowedTools is a list of pre-approved tools.
	AllowedTools []string

	// DisallowedTools is a list of blocked tools.
	DisallowedTools []string

	// PermissionPromptToolName routes permission prompts. Set to "stdio"
	// automatically when CanUseTool is configured.
	PermissionPromptToolName string

	// Resume is a session ID to resume from.
	Resume string

	// ExtraArgs provides arbitrary CLI flags. A nil value is a boolean flag.
	ExtraArgs map[string]*string

	// ===== Control protocol =====

	// Hooks configures hook callbacks announced in the initialize handshake.
	Hooks map[hook.Event][]*hook.Matcher

	// CanUseTool is consulted for can_use_tool requests.
	// If nil, every tool use is allowed.
	CanUseTool permission.Callback

	// MCPServers registers in-process MCP servers by name.
	MCPServers map[string]*mcp.Server

	// Agents defines custom agents sent in the initialize handshake.
	Agents map[string]*AgentDefinition

	// InitializeTimeout bounds the initialize request. Defaults to 60s.
	InitializeTimeout *time.Duration

	// RequestTimeout bounds every other outgoing control request. Defaults to 30s.
	RequestTimeout *time.Duration

	// GraceTimeout is how long Close waits for a natural exit after ending input.
	GraceTimeout *time.Duration

	// TermTimeout is how long Close waits after SIGTERM before killing.
	TermTimeout *time.Duration

	// Clock drives timeouts. Tests inject a fake clock.
	Clock clock.Clock `json:"-"`

	// Transport allows injecting a custom transport implementation.
	// If nil, a subprocess transport is created.
	Transport Transport `json:"-"`
}
