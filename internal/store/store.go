// Package store owns the durable registration ledger.
//
// The ledger is a CSV file with a fixed header row. Records are append
// only and are never rewritten in place. The store assumes a single
// writer; email uniqueness is checked by callers before Append.
package store

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	sdkerrors "github.com/wagiedev/regbot/internal/errors"
)

// DefaultPath is the ledger location when none is configured.
const DefaultPath = "user_registrations.csv"

// TimestampLayout formats RegisteredAt values.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the date-of-birth format stored in the ledger.
const DateLayout = "2006-01-02"

// Header is the fixed first row of the ledger file.
var Header = []string{"Name", "Email", "Date_of_Birth", "Registration_Date"}

// Record is one committed registration. All fields hold the exact strings
// written to the ledger.
type Record struct {
	Name         string
	Email        string
	DateOfBirth  string
	RegisteredAt string
}

// Stats summarizes the ledger. Age fields are only meaningful when
// AgesCounted is nonzero; OldestRegistered and NewestRegistered are empty
// when Total is zero.
type Stats struct {
	Total            int
	FileExists       bool
	FileSizeBytes    int64
	FilePath         string
	UniqueDomains    int
	OldestRegistered string
	NewestRegistered string
	AverageAge       float64
	YoungestAge      int
	OldestAge        int
	AgesCounted      int
}

// Ledger reads and writes the registration CSV.
type Ledger struct {
	path string
}

// New creates a ledger handle for the given path. An empty path selects
// DefaultPath. No file is touched until EnsureInitialized or Append.
func New(path string) *Ledger {
	if path == "" {
		path = DefaultPath
	}

	return &Ledger{path: path}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// EnsureInitialized creates the backing file with the header row if it
// does not exist yet. Safe to call on every startup.
func (l *Ledger) EnsureInitialized() error {
	_, err := os.Stat(l.path)
	if err == nil {
		return nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "stat", Err: err}
	}

	f, err := os.Create(l.path)
	if err != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "create", Err: err}
	}

	w := csv.NewWriter(f)

	writeErr := w.Write(Header)

	w.Flush()

	if writeErr == nil {
		writeErr = w.Error()
	}

	closeErr := f.Close()

	if writeErr != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "write header", Err: writeErr}
	}

	if closeErr != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "close", Err: closeErr}
	}

	return nil
}

// Append writes one record to the end of the ledger.
func (l *Ledger) Append(rec Record) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "open for append", Err: err}
	}

	w := csv.NewWriter(f)

	writeErr := w.Write([]string{rec.Name, rec.Email, rec.DateOfBirth, rec.RegisteredAt})

	w.Flush()

	if writeErr == nil {
		writeErr = w.Error()
	}

	closeErr := f.Close()

	if writeErr != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "append", Err: writeErr}
	}

	if closeErr != nil {
		return &sdkerrors.LedgerIOError{Path: l.path, Op: "close", Err: closeErr}
	}

	return nil
}

// Raw returns the ledger file's bytes for direct resource access. The
// second return is false when the file does not exist yet.
func (l *Ledger) Raw() ([]byte, bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, &sdkerrors.LedgerIOError{Path: l.path, Op: "read", Err: err}
	}

	return data, true, nil
}

// All returns every record in file order. A missing file is an empty
// ledger, not an error. The header row is always skipped; rows with fewer
// than four fields are ignored.
func (l *Ledger) All() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, &sdkerrors.LedgerIOError{Path: l.path, Op: "open", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &sdkerrors.LedgerIOError{Path: l.path, Op: "read", Err: err}
	}

	if len(rows) <= 1 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) < 4 {
			continue
		}

		records = append(records, Record{
			Name:         row[0],
			Email:        row[1],
			DateOfBirth:  row[2],
			RegisteredAt: row[3],
		})
	}

	return records, nil
}

// Exists reports whether an email is already registered, comparing
// case-insensitively. A missing file means not registered; a read failure
// is surfaced so callers can refuse to commit on unverifiable uniqueness.
func (l *Ledger) Exists(email string) (bool, error) {
	records, err := l.All()
	if err != nil {
		return false, err
	}

	for _, rec := range records {
		if strings.EqualFold(rec.Email, email) {
			return true, nil
		}
	}

	return false, nil
}

// Search returns the records whose name or email contains the query,
// case-insensitively, preserving file order.
func (l *Ledger) Search(query string) ([]Record, error) {
	records, err := l.All()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))

	var matches []Record

	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Email), q) {
			matches = append(matches, rec)
		}
	}

	return matches, nil
}

// Statistics derives summary numbers from the ledger. Records with an
// unparseable date of birth are excluded from the age figures but still
// counted in Total. An unparseable registration timestamp fails the whole
// call, since oldest and newest would be meaningless.
func (l *Ledger) Statistics() (*Stats, error) {
	stats := &Stats{FilePath: l.path}

	info, err := os.Stat(l.path)

	switch {
	case err == nil:
		stats.FileExists = true
		stats.FileSizeBytes = info.Size()
	case errors.Is(err, fs.ErrNotExist):
		return stats, nil
	default:
		return nil, &sdkerrors.LedgerIOError{Path: l.path, Op: "stat", Err: err}
	}

	records, err := l.All()
	if err != nil {
		return nil, err
	}

	stats.Total = len(records)
	if stats.Total == 0 {
		return stats, nil
	}

	domains := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if parts := strings.SplitN(rec.Email, "@", 2); len(parts) == 2 {
			domains[parts[1]] = struct{}{}
		}
	}

	stats.UniqueDomains = len(domains)

	var oldest, newest time.Time

	for _, rec := range records {
		ts, err := time.ParseInLocation(TimestampLayout, rec.RegisteredAt, time.Local)
		if err != nil {
			return nil, &sdkerrors.LedgerIOError{Path: l.path, Op: "parse registration date", Err: err}
		}

		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}

		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}

	stats.OldestRegistered = oldest.Format(TimestampLayout)
	stats.NewestRegistered = newest.Format(TimestampLayout)

	now := time.Now()

	var ageSum int

	for _, rec := range records {
		birth, err := time.ParseInLocation(DateLayout, rec.DateOfBirth, time.Local)
		if err != nil {
			continue
		}

		age := int(now.Sub(birth).Hours()/24) / 365

		if stats.AgesCounted == 0 || age < stats.YoungestAge {
			stats.YoungestAge = age
		}

		if stats.AgesCounted == 0 || age > stats.OldestAge {
			stats.OldestAge = age
		}

		ageSum += age
		stats.AgesCounted++
	}

	if stats.AgesCounted > 0 {
		avg := float64(ageSum) / float64(stats.AgesCounted)
		stats.AverageAge = math.Round(avg*10) / 10
	}

	return stats, nil
}
