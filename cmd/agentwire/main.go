// Command agentwire runs prompts against the agent CLI from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wagiedev/agentwire"
	"github.com/wagiedev/agentwire/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(nil).ExecuteContext(ctx)
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	cliPath    string
	verbose    bool
}

// newRootCmd builds the command tree. extra options are appended to every
// client the commands create.
func newRootCmd(extra []agentwire.Option) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "agentwire",
		Short:         "Drive the agent CLI over its stream-json control protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.cliPath, "cli-path", "", "path to the agent CLI binary")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log protocol activity to stderr")

	root.AddCommand(newRunCmd(g, extra))
	root.AddCommand(newVersionCmd(g))

	return root
}

type runFlags struct {
	model          string
	permissionMode string
	systemPrompt   string
	maxTurns       int
	sessionID      string
	allowedTools   []string
}

func newRunCmd(g *globalFlags, extra []agentwire.Option) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Send a prompt and print the response",
		Long:  "Send a prompt and print the response. Without an argument the prompt is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			opts, err := buildOptions(g, f, cmd)
			if err != nil {
				return err
			}

			opts = append(opts, extra...)

			return runPrompt(cmd.Context(), cmd.OutOrStdout(), g.verbose, prompt, f.sessionID, opts)
		},
	}

	cmd.Flags().StringVar(&f.model, "model", "", "model to use")
	cmd.Flags().StringVar(&f.permissionMode, "permission-mode", "", "permission mode (default, acceptEdits, plan, bypassPermissions)")
	cmd.Flags().StringVar(&f.systemPrompt, "system-prompt", "", "system prompt")
	cmd.Flags().IntVar(&f.maxTurns, "max-turns", 0, "maximum conversation turns")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "session id (random when empty)")
	cmd.Flags().StringSliceVar(&f.allowedTools, "allowed-tools", nil, "tools allowed without prompting")

	return cmd
}

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the discovered agent CLI path and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}

			cliPath := g.cliPath
			if cliPath == "" {
				cliPath = cfg.CliPath
			}

			path, err := cli.NewDiscoverer(&cli.Config{
				CliPath:          cliPath,
				SkipVersionCheck: true,
			}).Discover(cmd.Context())
			if err != nil {
				return err
			}

			version, err := cli.Version(cmd.Context(), path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, version)

			return nil
		},
	}
}

// buildOptions layers the config file under explicitly set flags.
func buildOptions(g *globalFlags, f *runFlags, cmd *cobra.Command) ([]agentwire.Option, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if g.cliPath != "" {
		opts = append(opts, agentwire.WithCliPath(g.cliPath))
	}

	if flags.Changed("model") {
		opts = append(opts, agentwire.WithModel(f.model))
	}

	if flags.Changed("permission-mode") {
		opts = append(opts, agentwire.WithPermissionMode(f.permissionMode))
	}

	if flags.Changed("system-prompt") {
		opts = append(opts, agentwire.WithSystemPrompt(f.systemPrompt))
	}

	if flags.Changed("max-turns") {
		opts = append(opts, agentwire.WithMaxTurns(f.maxTurns))
	}

	if flags.Changed("allowed-tools") {
		opts = append(opts, agentwire.WithAllowedTools(f.allowedTools...))
	}

	if g.verbose {
		opts = append(opts, agentwire.WithLogger(
			slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})),
		))
	}

	return opts, nil
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}

	return prompt, nil
}

func runPrompt(
	ctx context.Context,
	out io.Writer,
	verbose bool,
	prompt, sessionID string,
	opts []agentwire.Option,
) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	p := &printer{w: out, verbose: verbose}

	return agentwire.WithClient(ctx, func(c agentwire.Client) error {
		if err := c.Query(ctx, prompt, sessionID); err != nil {
			return err
		}

		var failed bool

		for msg, err := range c.ReceiveResponse(ctx) {
			if err != nil {
				p.printError(err)

				return err
			}

			p.print(msg)

			if msg.IsResult() && msg.IsError() {
				failed = true
			}
		}

		if failed {
			return fmt.Errorf("session %s ended with an error result", sessionID)
		}

		return nil
	}, opts...)
}
