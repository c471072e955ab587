// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Form selects the representation returned by Decode.
type Form int

const (
	// FormValue is the typed value; map fields yield their label.
	FormValue Form = iota
	// FormRaw is the untrimmed text of the field.
	FormRaw
	// FormOrigin is the *Field describing where the value comes from.
	FormOrigin
)

func (f Form) String() string {
	switch f {
	case FormRaw:
		return "raw"
	case FormOrigin:
		return "origin"
	default:
		return "value"
	}
}

// DecodeOption adjusts a Decode call.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	def        any
	hasDefault bool
}

// WithDefault makes Decode return v instead of an *UndefinedFieldError when
// the matched part has no such field. A nil v is a valid default.
func WithDefault(v any) DecodeOption {
	return func(o *decodeOptions) {
		o.def = v
		o.hasDefault = true
	}
}

func fieldCharset(f *Field) encoding.Encoding {
	if p := f.part; p != nil && p.rectype != nil && p.rectype.schema != nil && p.rectype.schema.charset != nil {
		return p.rectype.schema.charset
	}
	return charmap.ISO8859_1
}

func fieldBytes(line []byte, f *Field) ([]byte, error) {
	if f.End() > len(line) {
		var tail []byte
		if f.Pos < len(line) {
			tail = line[f.Pos:]
		}
		return nil, &ValueError{Field: f.String(), Raw: string(tail), Err: ErrTruncated}
	}
	return line[f.Pos:f.End()], nil
}

// RawValue returns the bytes of f in line, converted from the schema charset
// to UTF-8. Padding is kept.
func RawValue(line []byte, f *Field) (string, error) {
	b, err := fieldBytes(line, f)
	if err != nil {
		return "", err
	}
	s, err := decodeBytes(fieldCharset(f), b)
	if err != nil {
		return "", &ValueError{Field: f.String(), Raw: string(b), Err: err}
	}
	return s, nil
}

// TypedValue returns f in line coerced to its declared type: string for
// text, raw and const fields, int64, Decimal, Date, or the label string of
// a map field. Unmapped codes yield the map default label.
func TypedValue(line []byte, f *Field) (any, error) {
	raw, err := RawValue(line, f)
	if err != nil {
		return nil, err
	}
	return coerce(f, raw)
}

func coerce(f *Field, raw string) (any, error) {
	switch f.Type {
	case TypeText:
		return strings.TrimRight(raw, " "), nil

	case TypeRaw, TypeConst:
		return raw, nil

	case TypeInt:
		n, err := parseNumber(raw)
		if err != nil {
			return nil, &ValueError{Field: f.String(), Raw: raw, Err: err}
		}
		return n, nil

	case TypeDecimal:
		n, err := parseNumber(raw)
		if err != nil {
			return nil, &ValueError{Field: f.String(), Raw: raw, Err: err}
		}
		return Decimal{Units: n, Scale: f.Scale}, nil

	case TypeDate:
		d, err := decodeDate(f.Layout, raw)
		if err != nil {
			return nil, &ValueError{Field: f.String(), Raw: raw, Err: err}
		}
		return d, nil

	case TypeMap:
		if f.Map == nil {
			return nil, &ValueError{Field: f.String(), Raw: raw, Err: fmt.Errorf("no value map")}
		}
		return f.Map.Label(raw), nil
	}
	return nil, fmt.Errorf("unknown field type: %s", f.Type)
}

// parseNumber reads a right-aligned, optionally signed digit string. An all
// blank field is zero; digits beyond int64 fail with ErrRange.
func parseNumber(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	digits := s
	if s[0] == '+' || s[0] == '-' {
		digits = s[1:]
	}
	if !isDigits(digits) {
		return 0, ErrSyntax
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRange, err)
	}
	return n, nil
}

// Decode looks up the field name in part p and returns it from line in the
// requested form. When p has no such field the result is the WithDefault
// value if one was given, an *UndefinedFieldError otherwise; this holds for
// every form.
func Decode(line []byte, p *Part, name string, form Form, opts ...DecodeOption) (any, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	var f *Field
	ok := false
	if p != nil {
		f, ok = p.Field(name)
	}
	if !ok {
		if o.hasDefault {
			return o.def, nil
		}
		id := ""
		if p != nil {
			id = p.ID()
		}
		return nil, &UndefinedFieldError{Part: id, Field: name}
	}
	switch form {
	case FormRaw:
		return RawValue(line, f)
	case FormOrigin:
		return f, nil
	default:
		return TypedValue(line, f)
	}
}

// =============================================================================
// Records
// =============================================================================

// Record is a classified line.
type Record struct {
	Nr   int // 1-based line number in the input, 0 when unknown
	Line []byte
	Part *Part
}

// RecordType returns the record type of the matched part.
func (r *Record) RecordType() *RecordType {
	if r.Part == nil {
		return nil
	}
	return r.Part.rectype
}

// Get is Decode on the record's line and part.
func (r *Record) Get(name string, form Form, opts ...DecodeOption) (any, error) {
	return Decode(r.Line, r.Part, name, form, opts...)
}

// Value returns the typed value of a field; map fields yield their label.
func (r *Record) Value(name string, opts ...DecodeOption) (any, error) {
	return r.Get(name, FormValue, opts...)
}

// Raw returns the raw text of a field. A default that is not a string is
// returned as "".
func (r *Record) Raw(name string, opts ...DecodeOption) (string, error) {
	v, err := r.Get(name, FormRaw, opts...)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Origin returns the field definition. A default that is not a *Field is
// returned as nil.
func (r *Record) Origin(name string, opts ...DecodeOption) (*Field, error) {
	v, err := r.Get(name, FormOrigin, opts...)
	if err != nil {
		return nil, err
	}
	f, _ := v.(*Field)
	return f, nil
}

// Map decodes every field of the record into a map keyed by field name.
func (r *Record) Map() (map[string]any, error) {
	if r.Part == nil {
		return nil, fmt.Errorf("record %d is not classified", r.Nr)
	}
	result := make(map[string]any, len(r.Part.Fields))
	for _, f := range r.Part.Fields {
		v, err := TypedValue(r.Line, f)
		if err != nil {
			return nil, err
		}
		result[f.Name] = v
	}
	return result, nil
}
