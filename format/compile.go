// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// Options configures schema compilation.
type Options struct {
	// Charset is the encoding of record lines. Default ISO-8859-1.
	Charset string
	// SourceCharset is the encoding of the schema text. Default UTF-8.
	SourceCharset string
	// LineLength is the maximum record length a field may reach. Default 256.
	LineLength int
	// Logger receives compile diagnostics. Nil disables logging.
	Logger *slog.Logger
}

func (o Options) lineLength() int {
	if o.LineLength <= 0 {
		return DefaultLineLength
	}
	return o.LineLength
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o Options) sourceCharset() string {
	if o.SourceCharset == "" {
		return "UTF-8"
	}
	return o.SourceCharset
}

// =============================================================================
// Directives
// =============================================================================

// directive is one parsed line of the schema text.
type directive interface {
	lineNo() int
}

// fieldDirective: F:<nr>:<name>:<pos>:<len>:<type>[:<param>[:<label>]]
type fieldDirective struct {
	line  int
	nr    int
	name  string
	pos   int
	len   int
	typ   FieldType
	param string
	label string
}

// partDirective: T:<nr>[:<label>]
type partDirective struct {
	line  int
	nr    int
	label string
}

// recordDirective: K:<satzart>[:<sparte>[:<label>]]
type recordDirective struct {
	line    int
	satzart string
	sparte  string
	label   string
}

// valueDirective: V:<code>:<label>
type valueDirective struct {
	line  int
	code  string
	label string
}

// mapDirective: M:<id>:<default>
type mapDirective struct {
	line int
	id   string
	def  string
}

func (d fieldDirective) lineNo() int  { return d.line }
func (d partDirective) lineNo() int   { return d.line }
func (d recordDirective) lineNo() int { return d.line }
func (d valueDirective) lineNo() int  { return d.line }
func (d mapDirective) lineNo() int    { return d.line }

// parseDirective turns one schema line into a directive. Lines with an
// unknown directive letter, blank lines and comments yield nil.
func parseDirective(line int, text string) (directive, error) {
	kind, _, _ := strings.Cut(text, ":")
	if len(kind) != 1 {
		return nil, nil
	}
	switch kind {
	case "F":
		tok := strings.SplitN(text, ":", 8)
		if len(tok) < 6 {
			return nil, formatErrorf(line, "field needs at least 5 tokens, got %d", len(tok)-1)
		}
		d := fieldDirective{line: line, name: tok[2], typ: FieldType(strings.TrimSpace(tok[5]))}
		var err error
		if d.nr, err = atoi(tok[1]); err != nil {
			return nil, formatErrorf(line, "field number: %v", err)
		}
		if d.pos, err = atoi(tok[3]); err != nil {
			return nil, formatErrorf(line, "field position: %v", err)
		}
		if d.len, err = atoi(tok[4]); err != nil {
			return nil, formatErrorf(line, "field length: %v", err)
		}
		if len(tok) > 6 {
			d.param = tok[6]
		}
		if len(tok) > 7 {
			d.label = tok[7]
		}
		if d.name == "" {
			return nil, formatErrorf(line, "field %d has no name", d.nr)
		}
		return d, nil

	case "T":
		tok := strings.SplitN(text, ":", 3)
		if len(tok) < 2 {
			return nil, formatErrorf(line, "part needs a number")
		}
		nr, err := atoi(tok[1])
		if err != nil {
			return nil, formatErrorf(line, "part number: %v", err)
		}
		d := partDirective{line: line, nr: nr}
		if len(tok) > 2 {
			d.label = tok[2]
		}
		return d, nil

	case "K":
		tok := strings.SplitN(text, ":", 4)
		if len(tok) < 2 || strings.TrimSpace(tok[1]) == "" {
			return nil, formatErrorf(line, "record type needs a satzart")
		}
		d := recordDirective{line: line, satzart: strings.TrimSpace(tok[1])}
		if len(tok) > 2 {
			d.sparte = strings.TrimSpace(tok[2])
		}
		if len(tok) > 3 {
			d.label = tok[3]
		}
		return d, nil

	case "V":
		tok := strings.SplitN(text, ":", 3)
		if len(tok) < 3 {
			return nil, formatErrorf(line, "value needs a code and a label")
		}
		return valueDirective{line: line, code: tok[1], label: tok[2]}, nil

	case "M":
		tok := strings.SplitN(text, ":", 3)
		if len(tok) < 2 || tok[1] == "" {
			return nil, formatErrorf(line, "value map needs an identifier")
		}
		d := mapDirective{line: line, id: tok[1]}
		if len(tok) > 2 {
			d.def = tok[2]
		}
		return d, nil
	}
	return nil, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// =============================================================================
// Compiler
// =============================================================================

type compiler struct {
	enc    encoding.Encoding
	schema *Schema
	log    *slog.Logger

	// Pending buffers, consumed trailer-first by T, K and M.
	fields []*Field
	parts  []*Part
	values map[string]string
}

// CompileSchema reads a schema description and returns the compiled schema.
// Any error aborts the whole compile; the returned error is a *FormatError
// carrying the 1-based line number.
func CompileSchema(r io.Reader, opt Options) (*Schema, error) {
	enc, err := LookupCharset(opt.Charset)
	if err != nil {
		return nil, err
	}
	srcEnc, err := LookupCharset(opt.sourceCharset())
	if err != nil {
		return nil, err
	}
	c := &compiler{
		enc: enc,
		log: opt.logger(),
		schema: &Schema{
			Maps:    make(map[string]*ValueMap),
			Charset: opt.Charset,
			byID:    make(map[string]*RecordType),
			charset: enc,
		},
		values: make(map[string]string),
	}
	if c.schema.Charset == "" {
		c.schema.Charset = DefaultCharset
	}

	sc := bufio.NewScanner(sourceReader(r, srcEnc))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	cnt := 0
	for sc.Scan() {
		cnt++
		d, err := parseDirective(cnt, strings.TrimRight(sc.Text(), "\r"))
		if err != nil {
			c.log.Error("schema compile failed", "line", cnt, "error", err)
			return nil, err
		}
		if d == nil {
			continue
		}
		if err := c.apply(d); err != nil {
			c.log.Error("schema compile failed", "line", cnt, "error", err)
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Line: cnt + 1, Err: err}
	}

	switch {
	case len(c.fields) > 0:
		return nil, formatErrorf(cnt, "%d fields not attached to a part", len(c.fields))
	case len(c.parts) > 0:
		return nil, formatErrorf(cnt, "%d parts not attached to a record type", len(c.parts))
	case len(c.values) > 0:
		return nil, formatErrorf(cnt, "%d values not attached to a value map", len(c.values))
	}

	for _, rt := range c.schema.RecordTypes {
		if err := rt.finalize(opt.lineLength()); err != nil {
			return nil, &FormatError{Line: rt.Line, Err: err}
		}
	}

	c.log.Info("compiled schema",
		"record_types", len(c.schema.RecordTypes),
		"parts", len(c.schema.Parts()),
		"maps", len(c.schema.Maps))
	return c.schema, nil
}

func (c *compiler) apply(d directive) error {
	switch d := d.(type) {
	case fieldDirective:
		f, err := c.buildField(d)
		if err != nil {
			return err
		}
		c.fields = append(c.fields, f)
	case partDirective:
		p, err := c.buildPart(d)
		if err != nil {
			return err
		}
		c.parts = append(c.parts, p)
		c.fields = nil
	case recordDirective:
		rt, err := c.buildRecordType(d)
		if err != nil {
			return err
		}
		c.schema.RecordTypes = append(c.schema.RecordTypes, rt)
		c.schema.byID[rt.ID()] = rt
		c.parts = nil
	case valueDirective:
		if _, dup := c.values[d.code]; dup {
			return formatErrorf(d.line, "duplicate value code %q", d.code)
		}
		c.values[d.code] = d.label
	case mapDirective:
		if _, dup := c.schema.Maps[d.id]; dup {
			return &FormatError{Line: d.line, Err: &DuplicateMapError{Map: d.id}}
		}
		c.schema.Maps[d.id] = &ValueMap{ID: d.id, Default: d.def, Entries: c.values}
		c.values = make(map[string]string)
	}
	return nil
}

func (c *compiler) buildField(d fieldDirective) (*Field, error) {
	if !d.typ.valid() {
		return nil, formatErrorf(d.line, "field %s: unknown type %q", d.name, d.typ)
	}
	if d.pos < 1 || d.len < 1 {
		return nil, formatErrorf(d.line, "field %s: invalid range %d/%d", d.name, d.pos, d.len)
	}
	for _, f := range c.fields {
		if f.Name == d.name {
			return nil, formatErrorf(d.line, "duplicate field name %s", d.name)
		}
		if f.Nr == d.nr {
			return nil, formatErrorf(d.line, "duplicate field number %d", d.nr)
		}
	}

	f := &Field{
		Nr:    d.nr,
		Name:  d.name,
		Pos:   d.pos - 1,
		Len:   d.len,
		Type:  d.typ,
		Label: d.label,
		Line:  d.line,
	}

	switch d.typ {
	case TypeConst:
		if d.param == "" {
			return nil, formatErrorf(d.line, "const field %s needs a value", d.name)
		}
		v, err := encodeString(c.enc, d.param)
		if err != nil {
			return nil, formatErrorf(d.line, "const field %s: %v", d.name, err)
		}
		if len(v) != d.len {
			return nil, formatErrorf(d.line, "const field %s: value %q does not fill length %d", d.name, d.param, d.len)
		}
		f.Const = v

	case TypeDecimal:
		scale, err := atoi(d.param)
		if err != nil || scale < 0 || scale > MaxScale {
			return nil, formatErrorf(d.line, "decimal field %s: invalid scale %q", d.name, d.param)
		}
		if scale > d.len {
			return nil, formatErrorf(d.line, "decimal field %s: scale %d exceeds length %d", d.name, scale, d.len)
		}
		f.Scale = scale

	case TypeDate:
		f.Layout = d.param
		if f.Layout == "" {
			f.Layout = DefaultDateLayout
		}
		if _, err := parseLayout(f.Layout); err != nil {
			return nil, formatErrorf(d.line, "date field %s: %v", d.name, err)
		}
		if len(f.Layout) != d.len {
			return nil, formatErrorf(d.line, "date field %s: layout %q does not fill length %d", d.name, f.Layout, d.len)
		}

	case TypeMap:
		m, ok := c.schema.Maps[d.param]
		if !ok {
			return nil, formatErrorf(d.line, "field %s: unknown value map %q", d.name, d.param)
		}
		f.Map = m

	default:
		if d.param != "" {
			return nil, formatErrorf(d.line, "%s field %s takes no parameter", d.typ, d.name)
		}
	}
	return f, nil
}

func (c *compiler) buildPart(d partDirective) (*Part, error) {
	if len(c.fields) == 0 {
		return nil, formatErrorf(d.line, "part %d has no fields", d.nr)
	}
	p := &Part{
		Nr:     d.nr,
		Label:  d.label,
		Fields: c.fields,
		Line:   d.line,
		byName: make(map[string]*Field, len(c.fields)),
		byNr:   make(map[int]*Field, len(c.fields)),
	}
	for _, f := range p.Fields {
		f.part = p
		p.byName[f.Name] = f
		p.byNr[f.Nr] = f
	}
	for _, f := range sortedByPos(p.Fields) {
		if f.Type == TypeConst {
			p.Discriminator = append(p.Discriminator, Check{Pos: f.Pos, Len: f.Len, Value: f.Const})
		}
	}
	if len(p.Discriminator) == 0 {
		return nil, formatErrorf(d.line, "part %d has no const field to discriminate it", d.nr)
	}
	return p, nil
}

func (c *compiler) buildRecordType(d recordDirective) (*RecordType, error) {
	rt := &RecordType{
		Satzart: d.satzart,
		Sparte:  d.sparte,
		Label:   d.label,
		Parts:   c.parts,
		Line:    d.line,
		schema:  c.schema,
	}
	if len(rt.Parts) == 0 {
		return nil, formatErrorf(d.line, "record type %s has no parts", rt.ID())
	}
	if _, dup := c.schema.byID[rt.ID()]; dup {
		return nil, formatErrorf(d.line, "duplicate record type %s", rt.ID())
	}
	seen := make(map[int]bool, len(rt.Parts))
	for _, p := range rt.Parts {
		if seen[p.Nr] {
			return nil, formatErrorf(d.line, "record type %s: duplicate part %d", rt.ID(), p.Nr)
		}
		seen[p.Nr] = true
		p.rectype = rt
	}
	c.log.Debug("record type", "id", rt.ID(), "parts", len(rt.Parts), "line", d.line)
	return rt, nil
}
