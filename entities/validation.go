package entities

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/solodesk/invoice-module/apperrors"
)

// Field length limits shared by validation, persistence and the renderers.
const (
	MaxNameLength  = 255
	MaxUnitLength  = 32
	MaxNotesLength = 2000
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

// NormalizeNIP strips every non-digit from a tax number and requires exactly
// ten decimal digits. No checksum is verified.
func NormalizeNIP(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	nip := b.String()
	if len(nip) != 10 {
		return "", apperrors.Validation("NIP must contain exactly 10 digits",
			apperrors.FieldIssue{Field: "nip", Message: "expected 10 digits, got " + nip})
	}
	return nip, nil
}

// ValidateDate requires the exact YYYY-MM-DD form and a real calendar date.
func ValidateDate(field, value string) error {
	if !datePattern.MatchString(value) {
		return apperrors.Validation("invalid date",
			apperrors.FieldIssue{Field: field, Message: "expected YYYY-MM-DD, got " + value})
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return apperrors.Validation("invalid date",
			apperrors.FieldIssue{Field: field, Message: "not a calendar date: " + value})
	}
	return nil
}

// DateYearMonth extracts the (year, month) pair used by invoice numbering.
func DateYearMonth(value string) (int, int, error) {
	if err := ValidateDate("date", value); err != nil {
		return 0, 0, err
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.KindValidation, "invalid date", err)
	}
	return t.Year(), int(t.Month()), nil
}

// ValidateEmail checks the standard address shape. Empty values are allowed;
// the caller decides whether the field is required.
func ValidateEmail(value string) error {
	if value == "" {
		return nil
	}
	if !emailPattern.MatchString(value) {
		return apperrors.Validation("invalid email address",
			apperrors.FieldIssue{Field: "email", Message: value + " is not a valid email"})
	}
	return nil
}

// ValidateCurrency accepts 3-8 characters with no whitespace. The code is
// carried to the XML as-is and never parsed further.
func ValidateCurrency(value string) error {
	if len(value) < 3 || len(value) > 8 {
		return apperrors.Validation("invalid currency code",
			apperrors.FieldIssue{Field: "currency", Message: "must be 3-8 characters"})
	}
	for _, r := range value {
		if unicode.IsSpace(r) {
			return apperrors.Validation("invalid currency code",
				apperrors.FieldIssue{Field: "currency", Message: "must not contain whitespace"})
		}
	}
	return nil
}

// TrimRequired trims value and rejects empty or over-long results.
func TrimRequired(field, value string, maxLen int) (string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return "", apperrors.Validation("missing required field",
			apperrors.FieldIssue{Field: field, Message: field + " must not be empty"})
	}
	if len(s) > maxLen {
		return "", apperrors.Validation("field too long",
			apperrors.FieldIssue{Field: field, Message: field + " exceeds maximum length"})
	}
	return s, nil
}

// TrimOptional trims value; empty results are fine but length is still capped.
func TrimOptional(field, value string, maxLen int) (string, error) {
	s := strings.TrimSpace(value)
	if len(s) > maxLen {
		return "", apperrors.Validation("field too long",
			apperrors.FieldIssue{Field: field, Message: field + " exceeds maximum length"})
	}
	return s, nil
}

// DecimalText is a request field that accepts a JSON string or a JSON number
// and keeps the literal text ("2.5" and 2.5 both become "2.5").
type DecimalText string

func (d *DecimalText) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DecimalText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = DecimalText(n.String())
	return nil
}

func (d DecimalText) String() string { return string(d) }
