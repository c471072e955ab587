// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

// Package reader splits a GDV data stream into records and classifies each
// one against a compiled format.
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MultiTechSystems/gdv-format/format"
)

// ErrMissingTrailer is returned at the end of a non-empty stream whose last
// record is not a Nachsatz, when Options.RequireTrailer is set.
var ErrMissingTrailer = errors.New("stream does not end with a Nachsatz record")

// Policy decides what happens to a line that does not classify.
type Policy int

const (
	// Abort stops reading and returns the error.
	Abort Policy = iota
	// Skip logs the line, counts it and continues.
	Skip
)

// ParsePolicy parses "abort" or "skip".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return Abort, nil
	case "skip":
		return Skip, nil
	}
	return Abort, fmt.Errorf("unknown mismatch policy %q", s)
}

func (p Policy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// Options configures a Reader.
type Options struct {
	OnMismatch     Policy
	RequireTrailer bool
	MaxLineLength  int // longest accepted input line, default 64 KiB
	Logger         *slog.Logger
}

// LineError attaches the input line number to a classification error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Stats summarizes what a Reader has consumed so far.
type Stats struct {
	Lines        int            `json:"lines" yaml:"lines"`
	Records      int            `json:"records" yaml:"records"`
	Skipped      int            `json:"skipped" yaml:"skipped"`
	ByRecordType map[string]int `json:"by_record_type" yaml:"by_record_type"`
}

// Reader yields classified records from a line-oriented stream.
type Reader struct {
	sc  *bufio.Scanner
	f   *format.Format
	opt Options
	log *slog.Logger

	line    int
	last    *format.Record
	records int
	skipped int
	counts  map[string]int
	err     error
}

// New returns a Reader over r using the compiled format f.
func New(r io.Reader, f *format.Format, opt Options) *Reader {
	maxLen := opt.MaxLineLength
	if maxLen <= 0 {
		maxLen = 64 * 1024
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, format.DefaultLineLength+2), maxLen)

	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{
		sc:     sc,
		f:      f,
		opt:    opt,
		log:    log,
		counts: make(map[string]int),
	}
}

// Next returns the next record. It returns io.EOF after the last record;
// once an error has been returned every later call returns it again.
func (r *Reader) Next() (*format.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)

		rec, err := r.f.Record(r.line, line)
		if err != nil {
			var me *format.MatchError
			if r.opt.OnMismatch == Skip && errors.As(err, &me) {
				r.skipped++
				r.log.Warn("skipping unclassified line", "line", r.line, "error", err)
				continue
			}
			r.err = &LineError{Line: r.line, Err: err}
			return nil, r.err
		}
		r.records++
		r.counts[rec.RecordType().ID()]++
		r.last = rec
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		r.err = &LineError{Line: r.line + 1, Err: err}
		return nil, r.err
	}

	r.err = io.EOF
	if r.opt.RequireTrailer && r.records > 0 && r.last.RecordType().Satzart != format.Nachsatz {
		r.log.Error("missing trailer", "last_line", r.last.Nr, "last_record_type", r.last.RecordType().ID())
		r.err = ErrMissingTrailer
		return nil, ErrMissingTrailer
	}
	return nil, io.EOF
}

// Each calls fn for every record until the stream ends, fn fails or the
// reader fails. Reaching the end of the stream is not an error.
func (r *Reader) Each(fn func(*format.Record) error) error {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Skipped returns the number of unclassified lines passed over.
func (r *Reader) Skipped() int { return r.skipped }

// Stats returns counters for the lines read so far.
func (r *Reader) Stats() Stats {
	counts := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	return Stats{
		Lines:        r.line,
		Records:      r.records,
		Skipped:      r.skipped,
		ByRecordType: counts,
	}
}
