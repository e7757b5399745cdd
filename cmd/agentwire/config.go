package main

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/wagiedev/agentwire"
)

// fileConfig is the YAML config file. Flags override every field.
type fileConfig struct {
	CliPath           string            `json:"cli_path,omitempty"`
	Model             string            `json:"model,omitempty"`
	PermissionMode    string            `json:"permission_mode,omitempty"`
	SystemPrompt      string            `json:"system_prompt,omitempty"`
	MaxTurns          int               `json:"max_turns,omitempty"`
	AllowedTools      []string          `json:"allowed_tools,omitempty"`
	DisallowedTools   []string          `json:"disallowed_tools,omitempty"`
	Cwd               string            `json:"cwd,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	StrictVersion     bool              `json:"strict_version,omitempty"`
	InitializeTimeout string            `json:"initialize_timeout,omitempty"`
	RequestTimeout    string            `json:"request_timeout,omitempty"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// options converts the file into client options.
func (c *fileConfig) options() ([]agentwire.Option, error) {
	opts := []agentwire.Option{
		agentwire.WithCliPath(c.CliPath),
		agentwire.WithModel(c.Model),
		agentwire.WithPermissionMode(c.PermissionMode),
		agentwire.WithSystemPrompt(c.SystemPrompt),
		agentwire.WithMaxTurns(c.MaxTurns),
		agentwire.WithAllowedTools(c.AllowedTools...),
		agentwire.WithDisallowedTools(c.DisallowedTools...),
		agentwire.WithCwd(c.Cwd),
		agentwire.WithEnv(c.Env),
		agentwire.WithStrictVersion(c.StrictVersion),
	}

	if c.InitializeTimeout != "" {
		d, err := time.ParseDuration(c.InitializeTimeout)
		if err != nil {
			return nil, fmt.Errorf("initialize_timeout: %w", err)
		}

		opts = append(opts, agentwire.WithInitializeTimeout(d))
	}

	if c.RequestTimeout != "" {
		d, err := time.ParseDuration(c.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("request_timeout: %w", err)
		}

		opts = append(opts, agentwire.WithRequestTimeout(d))
	}

	return opts, nil
}
