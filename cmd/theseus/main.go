// Package main provides the theseus CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/richinex/theseus/cli"
)

var (
	// Global flags
	configPath  string
	provider    string
	maxSteps    int
	resourceDir string
	indexPath   string
	mcpCommands []string
	mcpConfig   string
	promptName  string
	verbose     bool
	plain       bool

	logger *zap.Logger
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "theseus",
		Short: "Retrieval-augmented ReAct agent",
		Long: `Answer questions with a ReAct agent that is fed the most relevant indexed
resources and a compressed conversation history on every turn.

Resources come from --resources (a directory of .md/.txt/.json/.yaml/.csv files)
and from the resources exposed by MCP servers. Tools come from the built-in
registry and from MCP servers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML settings file")
	flags.StringVarP(&provider, "provider", "p", "", "LLM provider (ollama, local, openai, anthropic, deepseek, gemini)")
	flags.IntVarP(&maxSteps, "max-steps", "m", 0, "Maximum reasoning steps per question (default 5)")
	flags.StringVarP(&resourceDir, "resources", "r", "", "Directory of resources to index")
	flags.StringVar(&indexPath, "index", "", "SQLite file for a persistent index (default in memory)")
	flags.StringArrayVar(&mcpCommands, "mcp", nil, "MCP server command (repeatable)")
	flags.StringVar(&mcpConfig, "mcp-config", "", "Path to MCP config file")
	flags.StringVar(&promptName, "prompt", "", "MCP prompt to use as agent instructions (name or server/name)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show steps, statistics and debug logs")
	flags.BoolVar(&plain, "plain", false, "Disable colored output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(promptsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		ConfigPath:  configPath,
		Provider:    provider,
		MaxSteps:    maxSteps,
		ResourceDir: resourceDir,
		IndexPath:   indexPath,
		MCPServers:  mcpCommands,
		MCPConfig:   mcpConfig,
		Prompt:      promptName,
		Verbose:     verbose,
		Plain:       plain,
		Logger:      logger,
	}
}

// withApp sets up the stack, runs fn and tears the stack down.
func withApp(cmd *cobra.Command, fn func(*cli.App) error) error {
	app, err := cli.Setup(cmd.Context(), options())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				return app.Ask(cmd.Context(), strings.Join(args, " "))
			})
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var historyPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with conversation history",
		Long: `Start an interactive session. Follow-up questions are resolved against
the conversation, so "how long does it take?" refers to the recipe discussed before.

Type /reset to clear the history, exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := cli.OpenHistory(historyPath)
			if err != nil {
				return err
			}
			defer closeStore()

			return withApp(cmd, func(app *cli.App) error {
				return app.Chat(cmd.Context(), os.Stdin, store, sessionID)
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite file for conversation history (default in memory)")

	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Show the resources retrieval selects for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				app.Search(cmd.Context(), strings.Join(args, " "))
				return nil
			})
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				app.ListTools(verboseTools)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "params", "V", false, "Show tool parameters")

	return cmd
}

func promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List prompts offered by MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				return app.ListPrompts(cmd.Context())
			})
		},
	}
}
