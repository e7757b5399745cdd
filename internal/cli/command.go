package cli

import (
	"encoding/json"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/wagiedev/agentwire/internal/config"
)

// Version of this library reported to the CLI through the environment.
const sdkVersion = "0.1.0"

// BuildArgs constructs the CLI arguments for a streaming session.
//
// Input is always stream-json over stdin; the prompt is never on the
// command line. Hooks, agents and the permission callback travel in the
// initialize handshake instead of flags.
func BuildArgs(options *config.Options) []string {
	args := []string{
		"--output-format", "stream-json",
		"--verbose",
		"--input-format", "stream-json",
	}

	if options.PermissionMode != "" {
		args = append(args, "--permission-mode", config.NormalizePermissionMode(options.PermissionMode))
	}

	if options.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(options.MaxTurns))
	}

	if options.Model != "" {
		args = append(args, "--model", options.Model)
	}

	args = append(args, "--system-prompt", options.SystemPrompt)

	if len(options.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(options.AllowedTools, ","))
	}

	if len(options.DisallowedTools) > 0 {
		args = append(args, "--disallowed-tools", strings.Join(options.DisallowedTools, ","))
	}

	if mcpConfig := buildMCPConfig(options); mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig)
	}

	// A permission callback is answered over the control protocol.
	promptTool := options.PermissionPromptToolName
	if promptTool == "" && options.CanUseTool != nil {
		promptTool = "stdio"
	}

	if promptTool != "" {
		args = append(args, "--permission-prompt-tool", promptTool)
	}

	if options.Resume != "" {
		args = append(args, "--resume", options.Resume)
	}

	// Sorted so the command line is deterministic.
	keys := make([]string, 0, len(options.ExtraArgs))
	for k := range options.ExtraArgs {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, key := range keys {
		if value := options.ExtraArgs[key]; value == nil {
			args = append(args, "--"+key)
		} else {
			args = append(args, "--"+key, *value)
		}
	}

	return args
}

// buildMCPConfig announces in-process servers so the CLI tunnels their
// traffic through mcp_message control requests.
func buildMCPConfig(options *config.Options) string {
	if len(options.MCPServers) == 0 {
		return ""
	}

	servers := make(map[string]any, len(options.MCPServers))

	for name, server := range options.MCPServers {
		if server == nil {
			continue
		}

		servers[name] = map[string]any{"type": "sdk", "name": name}
	}

	if len(servers) == 0 {
		return ""
	}

	data, err := json.Marshal(map[string]any{"mcpServers": servers})
	if err != nil {
		return ""
	}

	return string(data)
}

// BuildEnvironment constructs the CLI process environment: the parent's
// environment, the SDK markers, then user overrides.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()
	env = append(env,
		"CLAUDE_AGENT_SDK_VERSION="+sdkVersion,
		"CLAUDE_CODE_ENTRYPOINT=sdk-go",
	)

	keys := make([]string, 0, len(options.Env))
	for k := range options.Env {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		env = append(env, k+"="+options.Env[k])
	}

	return env
}
