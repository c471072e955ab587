// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes carried by ValueError.
var (
	// ErrTruncated is returned when a field extends past the end of the line.
	ErrTruncated = errors.New("line too short for field")

	// ErrSyntax is returned when the bytes of a field do not fit its type.
	ErrSyntax = errors.New("invalid field syntax")

	// ErrRange is returned when a value does not fit the width of its field
	// or the digits of a field do not fit an int64.
	ErrRange = errors.New("value does not fit field")
)

// FormatError reports a problem in the schema description. Line is the
// 1-based line of the schema text that caused it.
type FormatError struct {
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("schema line %d: %v", e.Line, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(line int, format string, args ...any) *FormatError {
	return &FormatError{Line: line, Err: fmt.Errorf(format, args...)}
}

// DuplicateMapError is the cause of a FormatError raised when a value map
// identifier is defined twice.
type DuplicateMapError struct {
	Map string
}

func (e *DuplicateMapError) Error() string {
	return fmt.Sprintf("duplicate value map %s", e.Map)
}

// MatchError reports a line that does not classify to exactly one part.
type MatchError struct {
	Prefix    string   // start of the offending line
	Ambiguous bool     // more than one part matched
	Parts     []string // candidate part IDs when Ambiguous
}

func (e *MatchError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("line %q matches several parts: %s", e.Prefix, strings.Join(e.Parts, ", "))
	}
	return fmt.Sprintf("line %q does not match any known part", e.Prefix)
}

func newMatchError(line []byte, candidates []string) *MatchError {
	const maxPrefix = 16
	prefix := line
	if len(prefix) > maxPrefix {
		prefix = prefix[:maxPrefix]
	}
	return &MatchError{
		Prefix:    string(prefix),
		Ambiguous: len(candidates) > 1,
		Parts:     candidates,
	}
}

// UndefinedFieldError reports access to a field the matched part does not
// define.
type UndefinedFieldError struct {
	Part  string
	Field string
}

func (e *UndefinedFieldError) Error() string {
	return fmt.Sprintf("part %s has no field %s", e.Part, e.Field)
}

// ValueError reports bytes of a field that cannot be coerced to its type.
type ValueError struct {
	Field string
	Raw   string
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %s: %v: %q", e.Field, e.Err, e.Raw)
}

func (e *ValueError) Unwrap() error { return e.Err }
