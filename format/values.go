// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxScale is the largest implicit scale a decimal field may declare.
const MaxScale = 18

// Decimal is a fixed-point number: Units scaled down by 10^Scale.
type Decimal struct {
	Units int64
	Scale int
}

// NewDecimal returns Units/10^scale.
func NewDecimal(units int64, scale int) Decimal {
	return Decimal{Units: units, Scale: scale}
}

// String returns the canonical form, e.g. "866.87", "-0.05", "12".
func (d Decimal) String() string {
	u := uint64(d.Units)
	if d.Units < 0 {
		u = -u
	}
	digits := strconv.FormatUint(u, 10)
	if d.Scale > 0 {
		if len(digits) <= d.Scale {
			digits = strings.Repeat("0", d.Scale-len(digits)+1) + digits
		}
		cut := len(digits) - d.Scale
		digits = digits[:cut] + "." + digits[cut:]
	}
	if d.Units < 0 {
		return "-" + digits
	}
	return digits
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	return float64(d.Units) / math.Pow10(d.Scale)
}

// Equal reports whether d and o denote the same number, regardless of scale.
func (d Decimal) Equal(o Decimal) bool {
	return d.normalize() == o.normalize()
}

func (d Decimal) normalize() Decimal {
	for d.Scale > 0 && d.Units%10 == 0 {
		d.Units /= 10
		d.Scale--
	}
	return d
}

// Rescale returns d expressed with the given scale. It fails when digits
// would be lost or the result overflows.
func (d Decimal) Rescale(scale int) (Decimal, error) {
	if scale < 0 || scale > MaxScale {
		return Decimal{}, fmt.Errorf("scale %d out of range", scale)
	}
	units := d.Units
	for s := d.Scale; s < scale; s++ {
		if units > math.MaxInt64/10 || units < math.MinInt64/10 {
			return Decimal{}, fmt.Errorf("decimal %s overflows at scale %d", d, scale)
		}
		units *= 10
	}
	for s := d.Scale; s > scale; s-- {
		if units%10 != 0 {
			return Decimal{}, fmt.Errorf("decimal %s has more than %d decimal places", d, scale)
		}
		units /= 10
	}
	return Decimal{Units: units, Scale: scale}, nil
}

// ParseDecimal parses the canonical form produced by String.
func ParseDecimal(s string) (Decimal, error) {
	body := s
	neg := false
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		neg = body[0] == '-'
		body = body[1:]
	}
	intPart, frac, hasPoint := strings.Cut(body, ".")
	if intPart == "" && frac == "" || hasPoint && frac == "" {
		return Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	if !isDigits(intPart) && intPart != "" || !isDigits(frac) && frac != "" {
		return Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	if len(frac) > MaxScale {
		return Decimal{}, fmt.Errorf("decimal %q has too many decimal places", s)
	}
	digits := intPart + frac
	if neg {
		digits = "-" + digits
	}
	units, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{Units: units, Scale: len(frac)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Decimal) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := ParseDecimal(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON renders the decimal as a JSON number without going through
// float64.
func (d Decimal) MarshalJSON() ([]byte, error) { return []byte(d.String()), nil }

// Date is a calendar date without time of day. The zero Date means unset.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{Year: y, Month: m, Day: d}
}

// DateOf returns the calendar date of t in its location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns the ISO 8601 form, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DateOf(d.Time()) == d
}

// ParseDate parses the ISO 8601 form produced by String.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// =============================================================================
// Date layouts
// =============================================================================

// DefaultDateLayout is the positional layout of GDV dates.
const DefaultDateLayout = "TTMMJJJJ"

type layoutToken struct {
	kind byte // 'T' day, 'M' month, 'Y' four-digit year, 'y' two-digit year
	pos  int
	len  int
}

// parseLayout splits a layout such as "TTMMJJJJ" into tokens.
func parseLayout(layout string) ([]layoutToken, error) {
	var tokens []layoutToken
	seen := map[byte]bool{}
	for pos := 0; pos < len(layout); {
		var tok layoutToken
		switch {
		case strings.HasPrefix(layout[pos:], "JJJJ"):
			tok = layoutToken{kind: 'Y', pos: pos, len: 4}
		case strings.HasPrefix(layout[pos:], "JJ"):
			tok = layoutToken{kind: 'y', pos: pos, len: 2}
		case strings.HasPrefix(layout[pos:], "MM"):
			tok = layoutToken{kind: 'M', pos: pos, len: 2}
		case strings.HasPrefix(layout[pos:], "TT"):
			tok = layoutToken{kind: 'T', pos: pos, len: 2}
		default:
			return nil, fmt.Errorf("invalid date layout %q at %d", layout, pos)
		}
		key := tok.kind
		if key == 'y' {
			key = 'Y'
		}
		if seen[key] {
			return nil, fmt.Errorf("date layout %q repeats a component", layout)
		}
		seen[key] = true
		tokens = append(tokens, tok)
		pos += tok.len
	}
	if !seen['Y'] {
		return nil, fmt.Errorf("date layout %q has no year", layout)
	}
	return tokens, nil
}

// decodeDate reads raw according to layout. Blank and all-zero values yield
// the zero Date.
func decodeDate(layout, raw string) (Date, error) {
	if strings.Trim(raw, " 0") == "" {
		return Date{}, nil
	}
	tokens, err := parseLayout(layout)
	if err != nil {
		return Date{}, err
	}
	if len(raw) != len(layout) {
		return Date{}, ErrSyntax
	}
	d := Date{Month: time.January, Day: 1}
	for _, tok := range tokens {
		part := raw[tok.pos : tok.pos+tok.len]
		if !isDigits(part) {
			return Date{}, ErrSyntax
		}
		n, _ := strconv.Atoi(part)
		switch tok.kind {
		case 'T':
			d.Day = n
		case 'M':
			d.Month = time.Month(n)
		case 'Y':
			d.Year = n
		case 'y':
			d.Year = pivotYear(n)
		}
	}
	if !d.valid() {
		return Date{}, ErrSyntax
	}
	return d, nil
}

// encodeDate is the inverse of decodeDate.
func encodeDate(layout string, d Date) (string, error) {
	if d.IsZero() {
		return strings.Repeat("0", len(layout)), nil
	}
	if !d.valid() {
		return "", fmt.Errorf("invalid date %04d-%02d-%02d", d.Year, int(d.Month), d.Day)
	}
	tokens, err := parseLayout(layout)
	if err != nil {
		return "", err
	}
	b := []byte(layout)
	for _, tok := range tokens {
		var s string
		switch tok.kind {
		case 'T':
			s = fmt.Sprintf("%02d", d.Day)
		case 'M':
			s = fmt.Sprintf("%02d", int(d.Month))
		case 'Y':
			if d.Year < 0 || d.Year > 9999 {
				return "", fmt.Errorf("year %d does not fit layout %q", d.Year, layout)
			}
			s = fmt.Sprintf("%04d", d.Year)
		case 'y':
			if pivotYear(d.Year%100) != d.Year {
				return "", fmt.Errorf("year %d does not fit layout %q", d.Year, layout)
			}
			s = fmt.Sprintf("%02d", d.Year%100)
		}
		copy(b[tok.pos:], s)
	}
	return string(b), nil
}

// pivotYear maps two-digit years 00-49 to 2000-2049 and 50-99 to 1950-1999.
func pivotYear(yy int) int {
	if yy < 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
