//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/regbot"
)

// TestListTools_CatalogOrder pins the public tool catalog: five tools,
// fixed order, schemas present.
func TestListTools_CatalogOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tools, err := regbot.ListTools(ctx, regbot.WithLedgerPath(tempLedger(t)))
	if err != nil {
		skipIfServerNotInstalled(t, err)
		t.Fatalf("list tools failed: %v", err)
	}

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name

		require.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
		require.NotEmpty(t, tool.InputSchema, "tool %s has no input schema", tool.Name)
	}

	require.Equal(t, []string{
		regbot.ToolAddRegistration,
		regbot.ToolAllRegistrations,
		regbot.ToolSearch,
		regbot.ToolStatistics,
		regbot.ToolValidate,
	}, names)
}

// TestListResources_LedgerOnly pins the resource catalog to exactly the
// CSV ledger.
func TestListResources_LedgerOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ledger := tempLedger(t)

	resources, err := regbot.ListResources(ctx, regbot.WithLedgerPath(ledger))
	if err != nil {
		skipIfServerNotInstalled(t, err)
		t.Fatalf("list resources failed: %v", err)
	}

	require.Len(t, resources, 1)
	require.Equal(t, regbot.LedgerURI(ledger), resources[0].URI)
	require.Equal(t, "text/csv", resources[0].MimeType)
}

// TestReadLedger_RawCSV registers one user and reads the ledger text
// back through the resource interface.
func TestReadLedger_RawCSV(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	opts := []regbot.Option{regbot.WithLedgerPath(tempLedger(t))}

	text, err := regbot.ReadLedger(ctx, opts...)
	if err != nil {
		skipIfServerNotInstalled(t, err)
		t.Fatalf("read ledger failed: %v", err)
	}

	// The server creates the file with its header row on startup.
	require.True(t, strings.HasPrefix(text, "Name,Email"), "unexpected ledger text: %q", text)

	result, err := regbot.Call(ctx, regbot.ToolAddRegistration, adaArgs(), opts...)
	require.NoError(t, err)
	requireStatus(t, result, regbot.StatusSuccess)

	text, err = regbot.ReadLedger(ctx, opts...)
	require.NoError(t, err)
	require.Contains(t, text, "ada@example.com")
}
