package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{
			name:    "two characters is the minimum",
			input:   "Al",
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "one character rejected",
			input:   "A",
			valid:   false,
			message: "✗ Name must be at least 2 characters long",
		},
		{
			name:    "empty rejected",
			input:   "",
			valid:   false,
			message: "✗ Name must be at least 2 characters long",
		},
		{
			name:    "whitespace only rejected",
			input:   "   ",
			valid:   false,
			message: "✗ Name must be at least 2 characters long",
		},
		{
			name:    "surrounding whitespace trimmed before counting",
			input:   "  A  ",
			valid:   false,
			message: "✗ Name must be at least 2 characters long",
		},
		{
			name:    "exactly one hundred characters",
			input:   strings.Repeat("a", 100),
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "one hundred and one characters rejected",
			input:   strings.Repeat("a", 101),
			valid:   false,
			message: "✗ Name must be less than 100 characters",
		},
		{
			name:    "multibyte runes counted as single characters",
			input:   strings.Repeat("é", 100),
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "ordinary name",
			input:   "John Doe",
			valid:   true,
			message: ValidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := Name(tt.input)

			require.Equal(t, tt.valid, valid)
			require.Equal(t, tt.message, msg)
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{
			name:    "plain address",
			input:   "john@example.com",
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "short domain",
			input:   "a@b.co",
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "plus and dots in local part",
			input:   "john.doe+tag@mail.example.org",
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "empty",
			input:   "",
			valid:   false,
			message: "✗ Email is required",
		},
		{
			name:    "missing at sign",
			input:   "john.example.com",
			valid:   false,
			message: "✗ Invalid email format",
		},
		{
			name:    "missing top level domain",
			input:   "john@example",
			valid:   false,
			message: "✗ Invalid email format",
		},
		{
			name:    "one letter top level domain",
			input:   "john@example.c",
			valid:   false,
			message: "✗ Invalid email format",
		},
		{
			name:    "spaces",
			input:   "john doe@example.com",
			valid:   false,
			message: "✗ Invalid email format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := Email(tt.input)

			require.Equal(t, tt.valid, valid)
			require.Equal(t, tt.message, msg)
		})
	}
}

func TestDateOfBirth(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{
			name:    "ordinary date",
			input:   "1990-05-15",
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "today is not in the future",
			input:   now.Format(DateLayout),
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "tomorrow rejected",
			input:   now.AddDate(0, 0, 1).Format(DateLayout),
			valid:   false,
			message: "✗ Date of birth cannot be in the future",
		},
		{
			name:    "empty",
			input:   "",
			valid:   false,
			message: "✗ Date of birth is required",
		},
		{
			name:    "wrong format",
			input:   "15/05/1990",
			valid:   false,
			message: "✗ Invalid date format. Use YYYY-MM-DD",
		},
		{
			name:    "not a date at all",
			input:   "yesterday",
			valid:   false,
			message: "✗ Invalid date format. Use YYYY-MM-DD",
		},
		{
			name:    "age of one hundred fifty accepted",
			input:   now.AddDate(0, 0, -150*365).Format(DateLayout),
			valid:   true,
			message: ValidMessage,
		},
		{
			name:    "age over one hundred fifty rejected",
			input:   now.AddDate(0, 0, -(151*365 + 2)).Format(DateLayout),
			valid:   false,
			message: "✗ Invalid birth date (too old)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := DateOfBirth(tt.input)

			require.Equal(t, tt.valid, valid)
			require.Equal(t, tt.message, msg)
		})
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		name  string
		birth time.Time
		now   time.Time
		age   int
	}{
		{
			name:  "exactly 365 days is one year",
			birth: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2000, 12, 31, 0, 0, 0, 0, time.UTC),
			age:   1,
		},
		{
			name:  "364 days is zero years",
			birth: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2000, 12, 30, 0, 0, 0, 0, time.UTC),
			age:   0,
		},
		{
			name:  "thirty six years including leap days",
			birth: time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
			age:   36,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.age, Age(tt.birth, tt.now))
		})
	}
}

func TestFormatGates(t *testing.T) {
	require.True(t, EmailFormatOK("a@b.co"))
	require.False(t, EmailFormatOK("a@b"))

	require.True(t, DateFormatOK("1990-05-15"))
	// Future dates pass the bare format gate.
	require.True(t, DateFormatOK("2999-01-01"))
	require.False(t, DateFormatOK("May 15 1990"))
}
