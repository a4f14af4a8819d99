package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/regbot/internal/registry"
	"github.com/wagiedev/regbot/internal/store"
	"github.com/wagiedev/regbot/internal/validate"
	"github.com/wagiedev/regbot/internal/wire"
)

// Tool names, in catalog order.
const (
	NameAddRegistration    = "add_registration"
	NameGetAllRegistration = "get_all_registrations"
	NameSearchRegistration = "search_registrations"
	NameGetStatistics      = "get_registration_statistics"
	NameValidateData       = "validate_registration_data"
)

// Set binds the registration tools to one ledger.
type Set struct {
	ledger *store.Ledger
	log    *slog.Logger
}

// NewSet creates the tool set backed by the given ledger.
func NewSet(ledger *store.Ledger, log *slog.Logger) *Set {
	return &Set{
		ledger: ledger,
		log:    log.With("component", "tools"),
	}
}

// Register adds all five tools to the registry in catalog order.
func (s *Set) Register(reg *registry.Registry) {
	reg.Register(s.addRegistrationTool())
	reg.Register(s.getAllRegistrationsTool())
	reg.Register(s.searchRegistrationsTool())
	reg.Register(s.getStatisticsTool())
	reg.Register(s.validateDataTool())
}

func (s *Set) addRegistrationTool() (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        NameAddRegistration,
		Description: "Add a new user registration with name, email, and date of birth",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":  {Type: "string", Description: "Full name of the user (2-100 characters)"},
				"email": {Type: "string", Description: "Valid email address"},
				"dob":   {Type: "string", Description: "Date of birth in YYYY-MM-DD format"},
			},
			Required: []string{"name", "email", "dob"},
		},
	}

	return tool, s.handleAddRegistration
}

func (s *Set) getAllRegistrationsTool() (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        NameGetAllRegistration,
		Description: "Retrieve all user registrations from the CSV file",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}

	return tool, s.handleGetAllRegistrations
}

func (s *Set) searchRegistrationsTool() (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        NameSearchRegistration,
		Description: "Search registrations by name or email",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Search query (name or email)"},
			},
			Required: []string{"query"},
		},
	}

	return tool, s.handleSearchRegistrations
}

func (s *Set) getStatisticsTool() (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        NameGetStatistics,
		Description: "Get statistics about registrations (count, age demographics, etc.)",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}

	return tool, s.handleGetStatistics
}

func (s *Set) validateDataTool() (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        NameValidateData,
		Description: "Validate registration data without saving",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":  {Type: "string", Description: "Name to validate"},
				"email": {Type: "string", Description: "Email to validate"},
				"dob":   {Type: "string", Description: "Date of birth to validate (YYYY-MM-DD)"},
			},
			Required: []string{"name", "email", "dob"},
		},
	}

	return tool, s.handleValidateData
}

// handleAddRegistration validates the triple, rejects duplicates, and
// appends one ledger row. The duplicate check runs only after all three
// format checks pass, and an unreadable ledger refuses the commit rather
// than risking a duplicate row.
func (s *Set) handleAddRegistration(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := registry.ParseArguments(req)
	if err != nil {
		return invalidArguments(err), nil
	}

	name := registry.StringArg(args, "name")
	email := registry.StringArg(args, "email")
	dob := registry.StringArg(args, "dob")

	nameOK, nameMsg := validate.Name(name)
	emailOK, emailMsg := validate.Email(email)
	dobOK, dobMsg := validate.DateOfBirth(dob)

	if !nameOK || !emailOK || !dobOK {
		fields := make(map[string]string, 3)

		var details strings.Builder

		if !nameOK {
			fields["name"] = nameMsg

			fmt.Fprintf(&details, "- Name: %s\n", nameMsg)
		}

		if !emailOK {
			fields["email"] = emailMsg

			fmt.Fprintf(&details, "- Email: %s\n", emailMsg)
		}

		if !dobOK {
			fields["dob"] = dobMsg

			fmt.Fprintf(&details, "- Date of Birth: %s\n", dobMsg)
		}

		text := "ERROR: Registration failed: Validation failed\n\nValidation errors:\n" + details.String()

		return registry.OutcomeResult(text, &wire.Outcome{
			Status: wire.StatusValidationFailed,
			Fields: fields,
		}), nil
	}

	exists, err := s.ledger.Exists(email)
	if err != nil {
		s.log.Error("duplicate check failed", "tool", NameAddRegistration, "error", err)

		return registry.OutcomeResult(
			fmt.Sprintf("ERROR: Registration failed: Failed to add registration: %v\n", err),
			&wire.Outcome{Status: wire.StatusIOError},
		), nil
	}

	if exists {
		text := fmt.Sprintf(
			"ERROR: Registration failed: Email already registered\n\nValidation errors:\n- The email %s is already registered\n",
			email)

		return registry.OutcomeResult(text, &wire.Outcome{
			Status: wire.StatusDuplicateEmail,
			Fields: map[string]string{"email": "✗ Email already registered"},
		}), nil
	}

	rec := store.Record{
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		DateOfBirth:  dob,
		RegisteredAt: time.Now().Format(store.TimestampLayout),
	}

	if err := s.ledger.Append(rec); err != nil {
		s.log.Error("append failed", "tool", NameAddRegistration, "error", err)

		return registry.OutcomeResult(
			fmt.Sprintf("ERROR: Registration failed: Failed to add registration: %v\n", err),
			&wire.Outcome{Status: wire.StatusIOError},
		), nil
	}

	s.log.Info("registration added", "email", rec.Email)

	text := fmt.Sprintf(
		"SUCCESS: Successfully registered %s\n\nRegistration Details:\n- Name: %s\n- Email: %s\n- Date of Birth: %s\n- Registered: %s",
		rec.Name, rec.Name, rec.Email, rec.DateOfBirth, rec.RegisteredAt)

	return registry.OutcomeResult(text, &wire.Outcome{
		Status: wire.StatusSuccess,
		Record: wireRecord(rec),
	}), nil
}

func (s *Set) handleGetAllRegistrations(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.ledger.All()
	if err != nil {
		s.log.Error("read failed", "tool", NameGetAllRegistration, "error", err)

		return registry.OutcomeResult(
			fmt.Sprintf("ERROR: Failed to retrieve registrations: %v", err),
			&wire.Outcome{Status: wire.StatusIOError},
		), nil
	}

	if len(records) == 0 {
		return registry.OutcomeResult(
			"No registrations found yet.\n\nThe registration system is ready to accept new registrations!",
			&wire.Outcome{Status: wire.StatusSuccess},
		), nil
	}

	var b strings.Builder

	fmt.Fprintf(&b, "**All Registrations (%d total):**\n\n", len(records))
	writeRecordBlocks(&b, records)

	return registry.OutcomeResult(b.String(), &wire.Outcome{
		Status:  wire.StatusSuccess,
		Count:   len(records),
		Records: wireRecords(records),
	}), nil
}

func (s *Set) handleSearchRegistrations(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := registry.ParseArguments(req)
	if err != nil {
		return invalidArguments(err), nil
	}

	query := registry.StringArg(args, "query")

	if strings.TrimSpace(query) == "" {
		return registry.OutcomeResult(
			"ERROR: Search query cannot be empty",
			&wire.Outcome{Status: wire.StatusInvalidArgument},
		), nil
	}

	matches, err := s.ledger.Search(query)
	if err != nil {
		s.log.Error("search failed", "tool", NameSearchRegistration, "error", err)

		return registry.OutcomeResult(
			fmt.Sprintf("ERROR: Search failed: %v", err),
			&wire.Outcome{Status: wire.StatusIOError},
		), nil
	}

	if len(matches) == 0 {
		return registry.OutcomeResult(
			fmt.Sprintf("No matches found for '%s'\n\nTry searching with a different name or email.", query),
			&wire.Outcome{Status: wire.StatusSuccess},
		), nil
	}

	var b strings.Builder

	fmt.Fprintf(&b, "**Search Results for '%s' (%d matches):**\n\n", query, len(matches))
	writeRecordBlocks(&b, matches)

	return registry.OutcomeResult(b.String(), &wire.Outcome{
		Status:  wire.StatusSuccess,
		Count:   len(matches),
		Records: wireRecords(matches),
	}), nil
}

func (s *Set) handleGetStatistics(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.ledger.Statistics()
	if err != nil {
		s.log.Error("statistics failed", "tool", NameGetStatistics, "error", err)

		return registry.OutcomeResult(
			fmt.Sprintf("ERROR: Failed to get statistics: %v", err),
			&wire.Outcome{Status: wire.StatusIOError},
		), nil
	}

	summary := &wire.StatsSummary{
		Total:            stats.Total,
		UniqueDomains:    stats.UniqueDomains,
		OldestRegistered: stats.OldestRegistered,
		NewestRegistered: stats.NewestRegistered,
		FileExists:       stats.FileExists,
		FileSizeBytes:    stats.FileSizeBytes,
		FilePath:         stats.FilePath,
		AverageAge:       stats.AverageAge,
		YoungestAge:      stats.YoungestAge,
		OldestAge:        stats.OldestAge,
		AgesCounted:      stats.AgesCounted,
	}

	if !stats.FileExists {
		return registry.OutcomeResult(
			"No registration file found. No statistics available.",
			&wire.Outcome{Status: wire.StatusSuccess, Stats: summary},
		), nil
	}

	if stats.Total == 0 {
		return registry.OutcomeResult(
			"Registration file exists but contains no registrations.",
			&wire.Outcome{Status: wire.StatusSuccess, Stats: summary},
		), nil
	}

	var b strings.Builder

	b.WriteString("**Registration Statistics:**\n\n")
	fmt.Fprintf(&b, "Total Registrations: %d\n", stats.Total)
	fmt.Fprintf(&b, "Unique Email Domains: %d\n", stats.UniqueDomains)
	fmt.Fprintf(&b, "First Registration: %s\n", stats.OldestRegistered)
	fmt.Fprintf(&b, "Latest Registration: %s\n", stats.NewestRegistered)
	fmt.Fprintf(&b, "File Size: %d bytes\n", stats.FileSizeBytes)

	if stats.AgesCounted > 0 {
		b.WriteString("\n**Age Demographics:**\n")
		fmt.Fprintf(&b, "   Average Age: %.1f years\n", stats.AverageAge)
		fmt.Fprintf(&b, "   Youngest User: %d years\n", stats.YoungestAge)
		fmt.Fprintf(&b, "   Oldest User: %d years\n", stats.OldestAge)
	}

	fmt.Fprintf(&b, "\nData File: %s", stats.FilePath)

	return registry.OutcomeResult(b.String(), &wire.Outcome{
		Status: wire.StatusSuccess,
		Stats:  summary,
	}), nil
}

// handleValidateData runs all three field checks plus the duplicate check
// and never mutates the ledger. The duplicate check runs only when the
// email format passes, and a duplicate overrides the passing format
// message in both the prose and the fields map.
func (s *Set) handleValidateData(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := registry.ParseArguments(req)
	if err != nil {
		return invalidArguments(err), nil
	}

	name := registry.StringArg(args, "name")
	email := registry.StringArg(args, "email")
	dob := registry.StringArg(args, "dob")

	nameOK, nameMsg := validate.Name(name)
	emailOK, emailMsg := validate.Email(email)
	dobOK, dobMsg := validate.DateOfBirth(dob)

	duplicate := false

	if emailOK {
		duplicate, err = s.ledger.Exists(email)
		if err != nil {
			s.log.Error("duplicate check failed", "tool", NameValidateData, "error", err)

			return registry.OutcomeResult(
				fmt.Sprintf("ERROR: Failed to validate registration data: %v", err),
				&wire.Outcome{Status: wire.StatusIOError},
			), nil
		}
	}

	if duplicate {
		emailMsg = "✗ Email already registered"
	}

	var b strings.Builder

	b.WriteString("**Validation Results:**\n\n")
	fmt.Fprintf(&b, "**Name:** %s\n", nameMsg)
	fmt.Fprintf(&b, "**Email:** %s\n", emailMsg)
	fmt.Fprintf(&b, "**Date of Birth:** %s\n", dobMsg)

	status := wire.StatusSuccess

	switch {
	case !nameOK || !emailOK || !dobOK:
		status = wire.StatusValidationFailed
	case duplicate:
		status = wire.StatusDuplicateEmail
	}

	if status == wire.StatusSuccess {
		b.WriteString("\n**Overall Status:** Ready for registration!")
	} else {
		b.WriteString("\n**Overall Status:** Fix validation errors before registering")
	}

	return registry.OutcomeResult(b.String(), &wire.Outcome{
		Status: status,
		Fields: map[string]string{"name": nameMsg, "email": emailMsg, "dob": dobMsg},
	}), nil
}

// writeRecordBlocks renders records as the numbered display blocks shared
// by the list and search tools. Ordinals are 1-indexed read positions.
func writeRecordBlocks(b *strings.Builder, records []store.Record) {
	for i, rec := range records {
		fmt.Fprintf(b, "**%d. %s**\n", i+1, rec.Name)
		fmt.Fprintf(b, "   Email: %s\n", rec.Email)
		fmt.Fprintf(b, "   Date of Birth: %s\n", rec.DateOfBirth)
		fmt.Fprintf(b, "   Registered: %s\n\n", rec.RegisteredAt)
	}
}

func wireRecord(rec store.Record) *wire.Record {
	return &wire.Record{
		Name:         rec.Name,
		Email:        rec.Email,
		DateOfBirth:  rec.DateOfBirth,
		RegisteredAt: rec.RegisteredAt,
	}
}

func wireRecords(records []store.Record) []wire.Record {
	out := make([]wire.Record, len(records))

	for i, rec := range records {
		out[i] = *wireRecord(rec)
	}

	return out
}

func invalidArguments(err error) *mcp.CallToolResult {
	return registry.OutcomeResult(
		fmt.Sprintf("ERROR: Invalid arguments: %v", err),
		&wire.Outcome{Status: wire.StatusInvalidArgument},
	)
}
