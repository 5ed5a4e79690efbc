// Expensed is the conversational assistant backend for the expense
// tracker. It answers questions about spending, budgets, and expenses
// by running a bounded tool-calling loop against a completion endpoint,
// grounded in the expense snapshot each request carries.
//
// Usage:
//
//	expensed serve                       Start the API server
//	expensed ask <snapshot.json> <msg>   Answer one question (for testing)
//	expensed version                     Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhassine/expense-tracker/internal/agent"
	"github.com/rhassine/expense-tracker/internal/api"
	"github.com/rhassine/expense-tracker/internal/buildinfo"
	"github.com/rhassine/expense-tracker/internal/config"
	"github.com/rhassine/expense-tracker/internal/llm"
	"github.com/rhassine/expense-tracker/internal/ratelimit"
	"github.com/rhassine/expense-tracker/internal/snapshot"
	"github.com/rhassine/expense-tracker/internal/tools"
)

// main constructs the OS-level environment and delegates to [run] so
// that the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments by hand. The argument surface is small and the
// flag package's package-level globals get in the way of calling run
// concurrently from tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// A .env file is a convenience for local development; absence is fine.
	_ = godotenv.Load()

	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: expensed ask <snapshot.json> <message>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs[0], strings.Join(cmdArgs[1:], " "))
	case "version":
		return runVersion(stdout)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := buildinfo.Info()[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Expensed - Expense Tracker Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: expensed [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                       Start the API server")
	fmt.Fprintln(w, "  init [dir]                  Write a starter config.yaml (default: .)")
	fmt.Fprintln(w, "  ask <snapshot.json> <msg>   Answer one question (for testing)")
	fmt.Fprintln(w, "  version                     Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	return nil
}

// runServe is the primary operating mode: load config, build the chat
// loop, start the API server, and block until a shutdown signal.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting expensed",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"provider", cfg.Provider,
	)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	// A failed ping is a warning, not a startup failure. The endpoint
	// may come up later, and each chat request reports its own errors.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("completion endpoint unreachable", "error", err)
	} else {
		logger.Info("completion endpoint reachable", "provider", cfg.Provider)
	}
	cancel()

	registry := tools.NewRegistry()
	limiter := ratelimit.New(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSec)*time.Second)
	loop := agent.New(logger, client, registry)

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.NewServer(logger, loop, limiter, addr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}

// runAsk answers a single message against a snapshot file and prints
// the response. Useful for smoke tests without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath, snapshotPath, message string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var data snapshot.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", snapshotPath, err)
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	loop := agent.New(logger, client, tools.NewRegistry())
	result, err := loop.Run(ctx, agent.Request{Message: message, Context: data})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Response)
	if result.CreatedExpense != nil {
		proposal, _ := json.MarshalIndent(result.CreatedExpense, "", "  ")
		fmt.Fprintf(stdout, "\nProposed expense:\n%s\n", proposal)
	}
	return nil
}

// newClient builds the completion client for the configured provider.
func newClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger), nil
	case "openai":
		return llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q (expected anthropic or openai)", cfg.Provider)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration. When no config
// file exists anywhere in the search path, built-in defaults apply so
// that environment variables alone are enough to run.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
