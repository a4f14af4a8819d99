package regbot

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// This helper creates a session, executes the callback function, and
// ensures proper cleanup via Close() when done.
//
// The callback receives a fully initialized Session that is ready for
// use. If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := regbot.WithSession(ctx, func(s regbot.Session) error {
//	    result, err := s.Call(ctx, regbot.ToolStatistics, nil)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result.Text)
//	    return nil
//	},
//	    regbot.WithLedgerPath("registrations.csv"),
//	)
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)
	log := loggerFrom(options)

	session, err := NewSession(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	return fn(session)
}
