// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"strings"
	"testing"
)

const testSchemaPath = "testdata/rectypes.txt"

func loadTestFormat(tb testing.TB) *Format {
	tb.Helper()
	f, err := FileLoader(testSchemaPath, Options{}).Load()
	if err != nil {
		tb.Fatalf("load %s: %v", testSchemaPath, err)
	}
	return f
}

func compileString(tb testing.TB, src string) *Format {
	tb.Helper()
	f, err := Compile(strings.NewReader(src), Options{})
	if err != nil {
		tb.Fatalf("Compile() error = %v", err)
	}
	return f
}

func mustPart(tb testing.TB, f *Format, rt string, nr int) *Part {
	tb.Helper()
	r, ok := f.Schema.RecordType(rt)
	if !ok {
		tb.Fatalf("record type %s not found", rt)
	}
	for _, p := range r.Parts {
		if p.Nr == nr {
			return p
		}
	}
	tb.Fatalf("part %s/%d not found", rt, nr)
	return nil
}

func mustEncode(tb testing.TB, p *Part, values map[string]any) []byte {
	tb.Helper()
	line, err := p.Encode(values)
	if err != nil {
		tb.Fatalf("Encode(%s) error = %v", p.ID(), err)
	}
	return line
}
