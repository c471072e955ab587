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
	"unicode/utf8"
)

// EncodeContext holds the line being built.
type EncodeContext struct {
	Buffer []byte
}

// NewEncodeContext returns a blank line of the given length.
func NewEncodeContext(length int) *EncodeContext {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = ' '
	}
	return &EncodeContext{Buffer: buf}
}

// Put writes data at the field position, growing the line if needed.
func (ctx *EncodeContext) Put(f *Field, data []byte) {
	for len(ctx.Buffer) < f.End() {
		ctx.Buffer = append(ctx.Buffer, ' ')
	}
	copy(ctx.Buffer[f.Pos:f.End()], data)
}

// Encode builds a line for the part from values keyed by field name.
// Discriminator constants are always written; fields without a value stay
// blank. A name the part does not define is an *UndefinedFieldError.
func (p *Part) Encode(values map[string]any) ([]byte, error) {
	for name := range values {
		if _, ok := p.byName[name]; !ok {
			return nil, &UndefinedFieldError{Part: p.ID(), Field: name}
		}
	}

	length := 0
	if p.rectype != nil {
		length = p.rectype.Length
	}
	ctx := NewEncodeContext(length)

	for _, f := range p.Fields {
		v, ok := values[f.Name]
		if f.Type == TypeConst {
			if ok {
				if _, err := FormatValue(f, v); err != nil {
					return nil, err
				}
			}
			ctx.Put(f, []byte(f.Const))
			continue
		}
		if !ok {
			continue
		}
		if err := encodeField(f, v, ctx); err != nil {
			return nil, err
		}
	}
	return ctx.Buffer, nil
}

func encodeField(f *Field, v any, ctx *EncodeContext) error {
	s, err := FormatValue(f, v)
	if err != nil {
		return err
	}
	b, err := encodeString(fieldCharset(f), s)
	if err != nil {
		return &ValueError{Field: f.String(), Raw: s, Err: err}
	}
	if len(b) != f.Len {
		return &ValueError{Field: f.String(), Raw: s, Err: ErrRange}
	}
	ctx.Put(f, []byte(b))
	return nil
}

// FormatValue returns the text of v as it appears in field f, padded to the
// field width. The result is UTF-8; Encode converts it to the line charset.
//
// Accepted values: string for text, raw, const and map (the code) fields;
// integers for int; Decimal, integers, float64 or a decimal string for
// decimal; Date, time.Time or an ISO date string for date.
func FormatValue(f *Field, v any) (string, error) {
	fail := func(err error) (string, error) {
		return "", &ValueError{Field: f.String(), Raw: fmt.Sprint(v), Err: err}
	}

	switch f.Type {
	case TypeText, TypeRaw, TypeMap:
		s, ok := toString(v)
		if !ok {
			return fail(fmt.Errorf("%w: expected string, got %T", ErrSyntax, v))
		}
		return padRight(s, f.Len, fail)

	case TypeConst:
		want, err := decodeBytes(fieldCharset(f), []byte(f.Const))
		if err != nil {
			return fail(err)
		}
		if s, ok := toString(v); !ok || s != want {
			return fail(fmt.Errorf("%w: const field must be %q", ErrSyntax, want))
		}
		return want, nil

	case TypeInt:
		n, ok := toInt64(v)
		if !ok {
			return fail(fmt.Errorf("%w: expected integer, got %T", ErrSyntax, v))
		}
		return padNumber(n, f.Len, fail)

	case TypeDecimal:
		d, err := toDecimal(v, f.Scale)
		if err != nil {
			return fail(err)
		}
		d, err = d.Rescale(f.Scale)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrRange, err))
		}
		return padNumber(d.Units, f.Len, fail)

	case TypeDate:
		d, err := toDate(v)
		if err != nil {
			return fail(err)
		}
		s, err := encodeDate(f.Layout, d)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrRange, err))
		}
		return s, nil
	}
	return "", fmt.Errorf("unknown field type: %s", f.Type)
}

func padRight(s string, width int, fail func(error) (string, error)) (string, error) {
	n := utf8.RuneCountInString(s)
	if n > width {
		return fail(ErrRange)
	}
	return s + strings.Repeat(" ", width-n), nil
}

// padNumber renders n right-aligned and zero-padded; negative numbers keep
// their sign in the first column.
func padNumber(n int64, width int, fail func(error) (string, error)) (string, error) {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(sign)+len(digits) > width {
		return fail(ErrRange)
	}
	return sign + strings.Repeat("0", width-len(sign)-len(digits)) + digits, nil
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	case fmt.Stringer:
		return val.String(), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

func toDecimal(v any, scale int) (Decimal, error) {
	switch val := v.(type) {
	case Decimal:
		return val, nil
	case string:
		return ParseDecimal(val)
	case float64:
		units := math.Round(val * math.Pow10(scale))
		if math.IsNaN(units) || math.Abs(units) > math.MaxInt64/2 {
			return Decimal{}, fmt.Errorf("%w: %v", ErrRange, val)
		}
		return Decimal{Units: int64(units), Scale: scale}, nil
	}
	if n, ok := toInt64(v); ok {
		return Decimal{Units: n}, nil
	}
	return Decimal{}, fmt.Errorf("%w: expected decimal, got %T", ErrSyntax, v)
}

func toDate(v any) (Date, error) {
	switch val := v.(type) {
	case Date:
		return val, nil
	case time.Time:
		if val.IsZero() {
			return Date{}, nil
		}
		return DateOf(val), nil
	case string:
		return ParseDate(val)
	}
	return Date{}, fmt.Errorf("%w: expected date, got %T", ErrSyntax, v)
}
