// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

// Package format decodes fixed-width GDV records using a layout that is read
// from a textual schema description (rectypes). The schema is compiled once
// into record types, parts and fields, an index classifies raw lines to the
// part they belong to, and the field decoder turns byte ranges into typed
// values.
package format

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
)

// FieldType represents the declared type of a schema field.
type FieldType string

const (
	TypeConst   FieldType = "const"
	TypeText    FieldType = "text"
	TypeRaw     FieldType = "raw"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeMap     FieldType = "map"
)

// Well-known record type codes (Satzarten).
const (
	Vorsatz         = "0001"
	Nachsatz        = "9999"
	AddressTeil     = "0100"
	GeneralContract = "0200"
	Clauses         = "0350"
	Signatures      = "0352"
	Rebates         = "0390"
)

// DefaultLineLength is the length of a GDV record line.
const DefaultLineLength = 256

func (t FieldType) valid() bool {
	switch t {
	case TypeConst, TypeText, TypeRaw, TypeInt, TypeDecimal, TypeDate, TypeMap:
		return true
	}
	return false
}

// ValueMap maps raw field codes to display labels.
type ValueMap struct {
	ID      string
	Default string
	Entries map[string]string
}

// Lookup returns the label for code and whether code was mapped. Trailing
// blanks of the code are ignored. Unmapped codes yield the map default.
func (m *ValueMap) Lookup(code string) (string, bool) {
	if label, ok := m.Entries[strings.TrimRight(code, " ")]; ok {
		return label, true
	}
	return m.Default, false
}

// Label returns the label for code, falling back to the map default.
func (m *ValueMap) Label(code string) string {
	label, _ := m.Lookup(code)
	return label
}

// Check is one element of a discriminator: the bytes at Pos..Pos+Len of a
// line must equal Value. Value is held in the line charset.
type Check struct {
	Pos   int
	Len   int
	Value string
}

// Match reports whether line satisfies the check. Short lines never match.
func (c Check) Match(line []byte) bool {
	end := c.Pos + c.Len
	if end > len(line) {
		return false
	}
	return string(line[c.Pos:end]) == c.Value
}

func (c Check) String() string {
	return fmt.Sprintf("[%d:%d]=%q", c.Pos, c.Pos+c.Len, c.Value)
}

// Field describes one fixed-width field of a part.
type Field struct {
	Nr     int
	Name   string
	Pos    int // 0-based offset
	Len    int
	Type   FieldType
	Const  string    // expected value for TypeConst, in the line charset
	Scale  int       // implicit decimal places for TypeDecimal
	Layout string    // positional layout for TypeDate
	Map    *ValueMap // value map for TypeMap
	Label  string
	Line   int // schema line that defined the field

	part *Part
}

// End returns the offset one past the last byte of the field.
func (f *Field) End() int { return f.Pos + f.Len }

// Part returns the part the field belongs to.
func (f *Field) Part() *Part { return f.part }

func (f *Field) String() string {
	if f.part != nil {
		return f.part.ID() + "." + f.Name
	}
	return f.Name
}

// Part is one fixed-width layout (Teilsatz) of a record type.
type Part struct {
	Nr            int
	Label         string
	Fields        []*Field
	Discriminator []Check
	Line          int

	byName  map[string]*Field
	byNr    map[int]*Field
	rectype *RecordType
}

// ID identifies the part within the schema, e.g. "0100/2".
func (p *Part) ID() string {
	if p.rectype == nil {
		return fmt.Sprintf("?/%d", p.Nr)
	}
	return fmt.Sprintf("%s/%d", p.rectype.ID(), p.Nr)
}

// RecordType returns the owning record type.
func (p *Part) RecordType() *RecordType { return p.rectype }

// Field looks up a field by name.
func (p *Part) Field(name string) (*Field, bool) {
	f, ok := p.byName[name]
	return f, ok
}

// FieldNr looks up a field by its number within the part.
func (p *Part) FieldNr(nr int) (*Field, bool) {
	f, ok := p.byNr[nr]
	return f, ok
}

// RecordType is a Satzart (optionally qualified by Sparte) with its parts.
type RecordType struct {
	Satzart string
	Sparte  string
	Label   string
	Parts   []*Part
	Line    int

	// Derived by finalize.
	FieldCount int
	Length     int

	sealed bool
	schema *Schema
}

// ID returns the satzart, qualified with the sparte when one is declared.
func (rt *RecordType) ID() string {
	if rt.Sparte == "" {
		return rt.Satzart
	}
	return rt.Satzart + "." + rt.Sparte
}

// Schema returns the schema the record type was compiled into.
func (rt *RecordType) Schema() *Schema { return rt.schema }

// Sealed reports whether finalize has run.
func (rt *RecordType) Sealed() bool { return rt.sealed }

// finalize validates the field layout of every part and computes the
// derived metadata. It runs once, after all parts are attached.
func (rt *RecordType) finalize(maxLen int) error {
	if rt.sealed {
		return nil
	}
	if len(rt.Parts) == 0 {
		return fmt.Errorf("record type %s has no parts", rt.ID())
	}
	count, length := 0, 0
	for _, p := range rt.Parts {
		var prev *Field
		for _, f := range sortedByPos(p.Fields) {
			if f.End() > maxLen {
				return fmt.Errorf("field %s ends at %d, beyond line length %d", f, f.End(), maxLen)
			}
			if prev != nil && f.Pos < prev.End() {
				return fmt.Errorf("field %s overlaps %s", f, prev)
			}
			if f.End() > length {
				length = f.End()
			}
			prev = f
		}
		count += len(p.Fields)
	}
	rt.FieldCount = count
	rt.Length = length
	rt.sealed = true
	return nil
}

// Schema is a compiled schema description.
type Schema struct {
	RecordTypes []*RecordType
	Maps        map[string]*ValueMap
	Charset     string

	byID    map[string]*RecordType
	charset encoding.Encoding
}

// RecordType looks up a record type by ID.
func (s *Schema) RecordType(id string) (*RecordType, bool) {
	rt, ok := s.byID[id]
	return rt, ok
}

// Map looks up a value map by ID.
func (s *Schema) Map(id string) (*ValueMap, bool) {
	m, ok := s.Maps[id]
	return m, ok
}

// Parts returns all parts of all record types in schema order.
func (s *Schema) Parts() []*Part {
	var parts []*Part
	for _, rt := range s.RecordTypes {
		parts = append(parts, rt.Parts...)
	}
	return parts
}

func sortedByPos(fields []*Field) []*Field {
	out := make([]*Field, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}
