// Package rut provides the Chilean tax identifier (RUT) value type
package rut

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a RUT cannot be parsed or its check digit does not match
var ErrInvalid = errors.New("invalid rut")

// maxBody is the largest body accepted (8 digits)
const maxBody = 99999999

// RUT is a validated tax identifier. The zero value is not a valid RUT.
type RUT struct {
	body int
	dv   byte
}

// nonAlphanumericRegex matches non-alphanumeric characters
var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Normalize strips dots, hyphens and spaces and uppercases the check digit
func Normalize(s string) string {
	cleaned := nonAlphanumericRegex.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.ToUpper(cleaned)
}

// CheckDigit computes the modulo-11 check digit for a RUT body
func CheckDigit(body int) byte {
	sum := 0
	weight := 2
	for n := body; n > 0; n /= 10 {
		sum += (n % 10) * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	switch r := 11 - sum%11; r {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + r)
	}
}

// Parse normalizes and validates a RUT in any common notation
// ("76.086.428-5", "76086428-5", "760864285")
func Parse(s string) (RUT, error) {
	compact := Normalize(s)
	if len(compact) < 2 {
		return RUT{}, fmt.Errorf("%w: %q is too short", ErrInvalid, s)
	}

	bodyPart, dv := compact[:len(compact)-1], compact[len(compact)-1]
	body, err := strconv.Atoi(bodyPart)
	if err != nil || body <= 0 || body > maxBody {
		return RUT{}, fmt.Errorf("%w: %q has a malformed body", ErrInvalid, s)
	}

	if expected := CheckDigit(body); expected != dv {
		return RUT{}, fmt.Errorf("%w: %q check digit should be %c", ErrInvalid, s, expected)
	}

	return RUT{body: body, dv: dv}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) RUT {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// IsValid reports whether s parses as a RUT
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Body returns the numeric part
func (r RUT) Body() int { return r.body }

// DV returns the check digit
func (r RUT) DV() byte { return r.dv }

// IsZero reports whether r is the zero value
func (r RUT) IsZero() bool { return r.body == 0 }

// String returns the canonical form BODY-DV
func (r RUT) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%c", r.body, r.dv)
}

// Compact returns BODYDV without separators
func (r RUT) Compact() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d%c", r.body, r.dv)
}

// MarshalText implements encoding.TextMarshaler
func (r RUT) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *RUT) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = RUT{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer, storing the canonical form
func (r RUT) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return r.String(), nil
}

// Scan implements sql.Scanner
func (r *RUT) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RUT{}
		return nil
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("rut: cannot scan %T", src)
	}
}
