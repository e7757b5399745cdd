package agentwire

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/mcp"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithModel selects the model the CLI starts with.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithPermissionMode sets the initial permission mode.
// Valid values: "default", "acceptEdits", "plan", "bypassPermissions".
func WithPermissionMode(mode string) Option {
	return func(o *Options) {
		o.PermissionMode = mode
	}
}

// WithMaxTurns limits the number of conversation turns.
func WithMaxTurns(maxTurns int) Option {
	return func(o *Options) {
		o.MaxTurns = maxTurns
	}
}

// WithResume resumes an existing CLI session.
func WithResume(sessionID string) Option {
	return func(o *Options) {
		o.Resume = sessionID
	}
}

// ===== Process =====

// WithCliPath sets the explicit path to the CLI binary.
// If not set, the CLI is searched in PATH.
func WithCliPath(path string) Option {
	return func(o *Options) {
		o.CliPath = path
	}
}

// WithSkipVersionCheck skips running "<cli> -v" during discovery.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// WithStrictVersion rejects a CLI older than the supported minimum.
func WithStrictVersion(strict bool) Option {
	return func(o *Options) {
		o.StrictVersion = strict
	}
}

// WithCwd sets the working directory for the CLI process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the CLI process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithStderr registers a callback for each stderr line.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithMaxBufferSize caps the length of one stdout line in bytes.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = &size
	}
}

// WithExtraArgs passes arbitrary CLI flags. A nil value is a boolean flag.
func WithExtraArgs(args map[string]*string) Option {
	return func(o *Options) {
		o.ExtraArgs = args
	}
}

// ===== Tools =====

// WithAllowedTools pre-approves tools.
func WithAllowedTools(tools ...string) Option {
	return func(o *Options) {
		o.AllowedTools = tools
	}
}

// WithDisallowedTools blocks tools.
func WithDisallowedTools(tools ...string) Option {
	return func(o *Options) {
		o.DisallowedTools = tools
	}
}

// WithCanUseTool answers every can_use_tool request with callback.
// It cannot be combined with a permission prompt tool other than "stdio".
func WithCanUseTool(callback ToolPermissionCallback) Option {
	return func(o *Options) {
		o.CanUseTool = callback
	}
}

// WithPermissionPromptToolName routes permission prompts to an MCP tool.
func WithPermissionPromptToolName(name string) Option {
	return func(o *Options) {
		o.PermissionPromptToolName = name
	}
}

// WithMCPServer registers an in-process MCP server under name.
// Its tools are visible to the CLI as mcp__<name>__<tool>.
func WithMCPServer(name string, server *MCPServer) Option {
	return func(o *Options) {
		if o.MCPServers == nil {
			o.MCPServers = make(map[string]*mcp.Server, 1)
		}

		o.MCPServers[name] = server
	}
}

// ===== Control protocol =====

// WithHooks configures hook callbacks.
func WithHooks(hooks map[HookEvent][]*HookMatcher) Option {
	return func(o *Options) {
		o.Hooks = hooks
	}
}

// WithAgents defines custom agents.
func WithAgents(agents map[string]*AgentDefinition) Option {
	return func(o *Options) {
		o.Agents = agents
	}
}

// WithInitializeTimeout bounds the initialize handshake.
func WithInitializeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.InitializeTimeout = &timeout
	}
}

// WithRequestTimeout bounds outgoing control requests such as interrupt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = &timeout
	}
}

// WithShutdownTimeouts sets how long Close waits for a natural exit after
// ending input (grace) and after SIGTERM (term) before killing the process.
func WithShutdownTimeouts(grace, term time.Duration) Option {
	return func(o *Options) {
		o.GraceTimeout = &grace
		o.TermTimeout = &term
	}
}

// WithClock replaces the clock driving timeouts.
func WithClock(clk clock.Clock) Option {
	return func(o *Options) {
		o.Clock = clk
	}
}

// WithTransport injects a custom transport instead of spawning the CLI.
func WithTransport(transport config.Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
