// Package validate implements the field-level registration checks.
//
// Each check is pure and returns the verdict together with the exact
// message shown to users. Duplicate-email detection is deliberately not
// here: it needs the ledger and is composed by the tools layer.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidMessage is returned by every passing check.
const ValidMessage = "✓ Valid"

// DateLayout is the accepted date-of-birth format.
const DateLayout = "2006-01-02"

const (
	minNameRunes = 2
	maxNameRunes = 100
	maxAgeYears  = 150
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Name checks the trimmed name length against the [2,100] rune window.
func Name(name string) (bool, string) {
	trimmed := strings.TrimSpace(name)

	if utf8.RuneCountInString(trimmed) < minNameRunes {
		return false, "✗ Name must be at least 2 characters long"
	}

	if utf8.RuneCountInString(trimmed) > maxNameRunes {
		return false, "✗ Name must be less than 100 characters"
	}

	return true, ValidMessage
}

// Email checks the address shape. No DNS or deliverability lookup.
func Email(email string) (bool, string) {
	if email == "" {
		return false, "✗ Email is required"
	}

	if !emailPattern.MatchString(email) {
		return false, "✗ Invalid email format"
	}

	return true, ValidMessage
}

// DateOfBirth checks format, rejects future dates, and rejects implied
// ages over 150 years.
func DateOfBirth(dob string) (bool, string) {
	if dob == "" {
		return false, "✗ Date of birth is required"
	}

	birth, err := time.ParseInLocation(DateLayout, dob, time.Local)
	if err != nil {
		return false, "✗ Invalid date format. Use YYYY-MM-DD"
	}

	now := time.Now()
	if birth.After(now) {
		return false, "✗ Date of birth cannot be in the future"
	}

	if Age(birth, now) > maxAgeYears {
		return false, "✗ Invalid birth date (too old)"
	}

	return true, ValidMessage
}

// EmailFormatOK reports the bare format verdict, for callers that gate
// dialogue input without needing the message.
func EmailFormatOK(email string) bool {
	ok, _ := Email(email)

	return ok
}

// DateFormatOK reports whether the input parses as YYYY-MM-DD. Future
// dates and implausible ages pass here; those are caught server-side.
func DateFormatOK(dob string) bool {
	_, err := time.ParseInLocation(DateLayout, dob, time.Local)

	return err == nil
}

// Age converts a birth date to whole years using 365-day years, matching
// the ledger's statistics rule.
func Age(birth, now time.Time) int {
	days := int(now.Sub(birth).Hours() / 24)

	return days / 365
}
