// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package reader

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MultiTechSystems/gdv-format/format"
)

func testFormat(t *testing.T) *format.Format {
	t.Helper()
	f, err := format.FileLoader("../format/testdata/rectypes.txt", format.Options{}).Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return f
}

func encode(t *testing.T, f *format.Format, rt string, nr int, values map[string]any) []byte {
	t.Helper()
	r, ok := f.Schema.RecordType(rt)
	if !ok {
		t.Fatalf("record type %s missing", rt)
	}
	for _, p := range r.Parts {
		if p.Nr == nr {
			line, err := p.Encode(values)
			if err != nil {
				t.Fatalf("Encode(%s) error = %v", p.ID(), err)
			}
			return line
		}
	}
	t.Fatalf("part %s/%d missing", rt, nr)
	return nil
}

func stream(lines ...[]byte) io.Reader {
	return bytes.NewReader(bytes.Join(lines, []byte("\r\n")))
}

func TestReaderReadsRecords(t *testing.T) {
	f := testFormat(t)
	in := stream(
		encode(t, f, format.Vorsatz, 1, map[string]any{"absender": "Muster AG"}),
		encode(t, f, format.AddressTeil, 1, map[string]any{"name1": "Kitzelpfütze"}),
		encode(t, f, format.AddressTeil, 2, nil),
		nil,
		encode(t, f, format.Nachsatz, 1, map[string]any{"anzahl_saetze": 3}),
	)

	r := New(in, f, Options{RequireTrailer: true})
	var ids []string
	var nrs []int
	err := r.Each(func(rec *format.Record) error {
		ids = append(ids, rec.Part.ID())
		nrs = append(nrs, rec.Nr)
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}

	wantIDs := []string{"0001/1", "0100/1", "0100/2", "9999/1"}
	if strings.Join(ids, ",") != strings.Join(wantIDs, ",") {
		t.Errorf("ids = %v, want %v", ids, wantIDs)
	}
	if nrs[3] != 5 {
		t.Errorf("Nachsatz line = %d, want 5", nrs[3])
	}

	st := r.Stats()
	if st.Lines != 5 || st.Records != 4 || st.Skipped != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if st.ByRecordType[format.AddressTeil] != 2 {
		t.Errorf("0100 count = %d, want 2", st.ByRecordType[format.AddressTeil])
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestReaderAbortsOnMismatch(t *testing.T) {
	f := testFormat(t)
	in := stream(
		encode(t, f, format.Vorsatz, 1, nil),
		[]byte("garbage"),
		encode(t, f, format.Nachsatz, 1, nil),
	)

	r := New(in, f, Options{})
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := r.Next()
	var le *LineError
	if !errors.As(err, &le) || le.Line != 2 {
		t.Fatalf("Next() error = %v, want LineError on line 2", err)
	}
	var me *format.MatchError
	if !errors.As(err, &me) {
		t.Errorf("error %v does not wrap *format.MatchError", err)
	}
	if _, again := r.Next(); again != err {
		t.Errorf("Next() after failure = %v, want the same error", again)
	}
}

func TestReaderSkipsMismatch(t *testing.T) {
	f := testFormat(t)
	in := stream(
		encode(t, f, format.Vorsatz, 1, nil),
		[]byte("garbage"),
		[]byte("0100"),
		encode(t, f, format.Nachsatz, 1, nil),
	)

	r := New(in, f, Options{OnMismatch: Skip})
	n := 0
	if err := r.Each(func(*format.Record) error { n++; return nil }); err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if n != 2 || r.Skipped() != 2 {
		t.Errorf("records = %d, skipped = %d; want 2, 2", n, r.Skipped())
	}
}

func TestReaderTrailer(t *testing.T) {
	f := testFormat(t)
	vorsatz := encode(t, f, format.Vorsatz, 1, nil)

	tests := []struct {
		name    string
		in      io.Reader
		require bool
		want    error
	}{
		{"missing required", stream(vorsatz), true, ErrMissingTrailer},
		{"missing not required", stream(vorsatz), false, nil},
		{"empty stream", strings.NewReader(""), true, nil},
		{"blank lines only", strings.NewReader("\n\r\n\n"), true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.in, f, Options{RequireTrailer: tt.require})
			err := r.Each(func(*format.Record) error { return nil })
			if !errors.Is(err, tt.want) && err != tt.want {
				t.Errorf("Each() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReaderCallbackError(t *testing.T) {
	f := testFormat(t)
	stop := errors.New("stop")
	r := New(stream(encode(t, f, format.Vorsatz, 1, nil)), f, Options{})
	if err := r.Each(func(*format.Record) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want stop", err)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	f := testFormat(t)
	r := New(strings.NewReader(strings.Repeat("x", 1024)), f, Options{MaxLineLength: 512})
	var le *LineError
	if _, err := r.Next(); !errors.As(err, &le) {
		t.Errorf("Next() error = %v, want *LineError", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", Abort, false},
		{"abort", Abort, false},
		{"Skip", Skip, false},
		{"ignore", Abort, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
	if Skip.String() != "skip" || Abort.String() != "abort" {
		t.Error("Policy.String()")
	}
}
