//go:build integration

// Package integration exercises the SDK against a real regserver binary.
//
// Build the server and put it on PATH (or next to the test binary), then
// run:
//
//	go build -o "$(go env GOPATH)/bin/regserver" ./cmd/regserver
//	go test -tags=integration ./integration/
//
// Every test skips when no server binary can be located.
package integration

import (
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/wagiedev/regbot"
)

// skipIfServerNotInstalled skips the test when the error says the server
// binary could not be found.
func skipIfServerNotInstalled(t *testing.T, err error) {
	t.Helper()

	if errors.Is(err, exec.ErrNotFound) {
		t.Skip("regserver not installed")
	}
}

// tempLedger returns a ledger path isolated to this test.
func tempLedger(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "ledger.csv")
}

func adaArgs() map[string]any {
	return map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"dob":   "1815-12-10",
	}
}

func requireStatus(t *testing.T, result *regbot.CallResult, status string) {
	t.Helper()

	if result.Outcome == nil {
		t.Fatalf("expected outcome with status %q, got none (text: %s)", status, result.Text)
	}

	if result.Outcome.Status != status {
		t.Fatalf("expected status %q, got %q (text: %s)", status, result.Outcome.Status, result.Text)
	}
}
