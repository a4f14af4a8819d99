package wire

import (
	"encoding/json"
	"fmt"
)

// Outcome statuses. Exactly one applies per tool result.
const (
	StatusSuccess          = "success"
	StatusValidationFailed = "validation_failed"
	StatusDuplicateEmail   = "duplicate_email"
	StatusInvalidArgument  = "invalid_argument"
	StatusIOError          = "io_error"
)

// Record is a registration as it crosses the wire. All fields are the
// exact strings stored in the ledger.
type Record struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	DateOfBirth  string `json:"dateOfBirth"`
	RegisteredAt string `json:"registeredAt"`
}

// StatsSummary mirrors the ledger statistics in wire form.
type StatsSummary struct {
	Total            int     `json:"total"`
	UniqueDomains    int     `json:"uniqueDomains"`
	OldestRegistered string  `json:"oldestRegistration,omitempty"`
	NewestRegistered string  `json:"newestRegistration,omitempty"`
	FileExists       bool    `json:"fileExists"`
	FileSizeBytes    int64   `json:"fileSizeBytes"`
	FilePath         string  `json:"filePath,omitempty"`
	AverageAge       float64 `json:"averageAge,omitempty"`
	YoungestAge      int     `json:"youngestAge,omitempty"`
	OldestAge        int     `json:"oldestAge,omitempty"`
	AgesCounted      int     `json:"agesCounted,omitempty"`
}

// Outcome is the machine-readable half of every tool result, carried as
// structuredContent alongside the human-readable text. Fields holds
// per-field validation messages keyed by display field name.
type Outcome struct {
	Status  string            `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Record  *Record           `json:"record,omitempty"`
	Records []Record          `json:"records,omitempty"`
	Count   int               `json:"count,omitempty"`
	Stats   *StatsSummary     `json:"stats,omitempty"`
}

// OK reports whether the outcome carries a success status.
func (o *Outcome) OK() bool {
	return o != nil && o.Status == StatusSuccess
}

// Marshal encodes the outcome for use as structuredContent.
func (o *Outcome) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome: %w", err)
	}

	return data, nil
}

// DecodeOutcome parses structuredContent back into an Outcome. A missing
// payload decodes to nil with no error.
func DecodeOutcome(raw json.RawMessage) (*Outcome, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var out Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode outcome: %w", err)
	}

	return &out, nil
}
