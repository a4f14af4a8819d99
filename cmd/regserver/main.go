// Package main is the registration tool server binary.
//
// regserver speaks newline-delimited JSON-RPC 2.0 over stdin/stdout and
// is normally spawned by an SDK client rather than run by hand. stdout
// is reserved for protocol frames; logs go to stderr as JSON.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wagiedev/regbot/internal/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	ledgerPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "regserver",
	Short: "Registration tool server speaking JSON-RPC 2.0 over stdio",
	Long: `regserver serves the five registration tools (add_registration,
get_all_registrations, search_registrations, get_registration_statistics,
validate_registration_data) and the CSV ledger resource over stdio.

It reads one JSON-RPC 2.0 request per line from stdin and writes one
response per request to stdout, in order. The process runs until stdin
reaches EOF or a termination signal arrives.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Version = Version

	rootCmd.Flags().StringVar(&ledgerPath, "ledger", "",
		`path to the registration CSV ledger (default "user_registrations.csv")`)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info",
		"log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		LedgerPath: ledgerPath,
		Version:    Version,
		Logger:     log,
	})

	// Run in a goroutine so a signal can end the process even while the
	// reader is blocked on stdin.
	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server terminated", "error", err)

			return err
		}

		return nil

	case <-ctx.Done():
		log.Info("signal received, shutting down")

		return nil
	}
}

// parseLevel maps the --log-level flag onto slog levels, defaulting to
// info for unrecognized values.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
