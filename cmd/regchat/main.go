// Package main is the registration chat front end.
//
// regchat drives the conversation engine against a registration server
// that it spawns and keeps alive for the whole chat. By default it runs
// a full terminal UI; --plain switches to a line-oriented REPL for dumb
// terminals and scripting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wagiedev/regbot"
	"github.com/wagiedev/regbot/internal/chat"
	"github.com/wagiedev/regbot/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	serverCmd  string
	ledgerPath string
	timeout    time.Duration
	plain      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "regchat",
	Short: "Conversational user registration over a spawned tool server",
	Long: `regchat is a chat interface for the registration system. It walks you
through name, email, and date of birth collection, validates the data
through the registration server, and commits confirmed registrations to
the CSV ledger.

The registration server (regserver) is spawned as a child process and
kept alive for the whole chat. Type 'help' inside the chat for the
available commands.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Version = Version

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.Flags().StringVar(&serverCmd, "server", "",
		`server command, whitespace-separated (default "regserver")`)
	rootCmd.Flags().StringVar(&ledgerPath, "ledger", "",
		"CSV ledger path passed to the server")
	rootCmd.Flags().DurationVar(&timeout, "timeout", config.DefaultCallTimeout,
		"per-call timeout for tool calls")
	rootCmd.Flags().BoolVar(&plain, "plain", false,
		"line-oriented REPL instead of the terminal UI")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging (stderr in plain mode, regchat.log in UI mode)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, closeLog, err := buildLogger(cfg.Plain)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := regbot.NewSession(ctx,
		regbot.WithLogger(log),
		regbot.WithServerCommand(cfg.ServerCommand...),
		regbot.WithLedgerPath(cfg.LedgerPath),
		regbot.WithCallTimeout(cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("start registration server: %w", err)
	}

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	engine := chat.NewEngine(log, sessionCaller{session: session})

	if cfg.Plain {
		return runREPL(ctx, engine)
	}

	return runTUI(engine, cfg.Theme)
}

// loadConfig layers the TOML file (when given) onto the defaults, then
// applies any flags the user actually set on top.
func loadConfig(cmd *cobra.Command) (config.ChatConfig, error) {
	cfg := config.DefaultChatConfig()

	if configPath != "" {
		loaded, err := config.LoadChatConfig(configPath)
		if err != nil {
			return config.ChatConfig{}, err
		}

		cfg = loaded
	}

	if cmd.Flags().Changed("server") {
		cfg.ServerCommand = strings.Fields(serverCmd)
	}

	if cmd.Flags().Changed("ledger") {
		cfg.LedgerPath = ledgerPath
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = timeout
	}

	if cmd.Flags().Changed("plain") {
		cfg.Plain = plain
	}

	return cfg, nil
}

// buildLogger returns the session logger. The terminal UI owns the
// screen, so verbose logs go to a file there instead of stderr.
func buildLogger(plainMode bool) (*slog.Logger, func(), error) {
	if !verbose {
		return regbot.NopLogger(), func() {}, nil
	}

	if plainMode {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))

		return log, func() {}, nil
	}

	f, err := os.OpenFile("regchat.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	return log, func() { _ = f.Close() }, nil
}

// sessionCaller adapts the SDK session to the engine's ToolCaller.
type sessionCaller struct {
	session regbot.Session
}

func (c sessionCaller) CallTool(ctx context.Context, name string, args map[string]any) (*regbot.CallResult, error) {
	return c.session.Call(ctx, name, args)
}
