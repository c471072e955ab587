// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/MultiTechSystems/gdv-format/format"
)

const schemaPath = "../../format/testdata/rectypes.txt"

func encodeLine(t *testing.T, f *format.Format, rt string, nr int, values map[string]any) []byte {
	t.Helper()
	r, _ := f.Schema.RecordType(rt)
	for _, p := range r.Parts {
		if p.Nr == nr {
			line, err := p.Encode(values)
			if err != nil {
				t.Fatal(err)
			}
			return line
		}
	}
	t.Fatalf("part %s/%d missing", rt, nr)
	return nil
}

func writeData(t *testing.T, lines ...[]byte) string {
	t.Helper()
	f, err := format.FileLoader(schemaPath, format.Options{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	if lines == nil {
		lines = [][]byte{
			encodeLine(t, f, format.Vorsatz, 1, map[string]any{"absender": "Muster AG"}),
			encodeLine(t, f, format.AddressTeil, 1, map[string]any{"name1": "Kitzelpfütze", "adress_kennzeichen": "01"}),
			encodeLine(t, f, format.Nachsatz, 1, map[string]any{"anzahl_saetze": 3, "gesamtbeitrag": format.NewDecimal(86687, 2)}),
		}
	}
	path := filepath.Join(t.TempDir(), "data.gdv")
	if err := os.WriteFile(path, bytes.Join(lines, []byte("\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestDecodeJSON(t *testing.T) {
	data := writeData(t)
	code, out, errOut := runCLI("decode", "-schema", schemaPath, "-require-trailer", data)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d records:\n%s", len(lines), out)
	}

	var rec struct {
		File   string         `json:"file"`
		Line   int            `json:"line"`
		Part   string         `json:"part"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v: %s", err, lines[1])
	}
	if rec.Part != "0100/1" || rec.Line != 2 || rec.File != data {
		t.Errorf("record = %+v", rec)
	}
	if rec.Fields["name1"] != "Kitzelpfütze" || rec.Fields["adress_kennzeichen"] != "Versicherungsnehmer" {
		t.Errorf("fields = %v", rec.Fields)
	}

	if !strings.Contains(lines[2], `"gesamtbeitrag":866.87`) {
		t.Errorf("Nachsatz = %s", lines[2])
	}
}

func TestDecodeSelectedFieldsText(t *testing.T) {
	data := writeData(t)
	code, out, errOut := runCLI("decode", "-schema", schemaPath, "-o", "text", "-fields", "name1,adress_kennzeichen", "-raw", data)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	want := "1\t0001/1\n" +
		"2\t0100/1\n" +
		"\tname1 = Kitzelpfütze" + strings.Repeat(" ", 18) + "\n" +
		"\tadress_kennzeichen = 01\n" +
		"3\t9999/1\n"
	if out != want {
		t.Errorf("output:\n%q\nwant:\n%q", out, want)
	}
}

func TestDecodeYAML(t *testing.T) {
	data := writeData(t)
	code, out, errOut := runCLI("decode", "-schema", schemaPath, "-o", "yaml", data)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if strings.Count(out, "record_type:") != 3 || !strings.Contains(out, "---") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDecodeMismatch(t *testing.T) {
	f, err := format.FileLoader(schemaPath, format.Options{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	data := writeData(t,
		encodeLine(t, f, format.Vorsatz, 1, nil),
		[]byte("garbage"),
		encodeLine(t, f, format.Nachsatz, 1, nil),
	)

	code, _, errOut := runCLI("decode", "-schema", schemaPath, data)
	if code != 1 || !strings.Contains(errOut, "line 2") {
		t.Errorf("abort: exit %d, stderr %q", code, errOut)
	}

	code, out, errOut := runCLI("decode", "-schema", schemaPath, "-on-mismatch", "skip", data)
	if code != 0 {
		t.Fatalf("skip: exit %d: %s", code, errOut)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("skip: %d records, want 2", n)
	}
}

func TestDecodeMissingTrailer(t *testing.T) {
	f, err := format.FileLoader(schemaPath, format.Options{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	data := writeData(t, encodeLine(t, f, format.Vorsatz, 1, nil))
	code, _, errOut := runCLI("decode", "-schema", schemaPath, "-require-trailer", data)
	if code != 1 || !strings.Contains(errOut, "Nachsatz") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestRequireTrailerFlagOverridesConfig(t *testing.T) {
	f, err := format.FileLoader(schemaPath, format.Options{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	data := writeData(t, encodeLine(t, f, format.Vorsatz, 1, nil))
	cfgPath := filepath.Join(t.TempDir(), "gdvdump.yaml")
	if err := os.WriteFile(cfgPath, []byte("require_trailer: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if code, _, _ := runCLI("decode", "-config", cfgPath, "-schema", schemaPath, data); code != 1 {
		t.Errorf("config only: exit %d, want 1", code)
	}
	code, _, errOut := runCLI("decode", "-config", cfgPath, "-schema", schemaPath, "-require-trailer=false", data)
	if code != 0 {
		t.Errorf("-require-trailer=false: exit %d: %s", code, errOut)
	}
}

func TestClassify(t *testing.T) {
	data := writeData(t)
	code, out, errOut := runCLI("classify", "-schema", schemaPath, data)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	want := "1\t0001/1\tVorsatz\n2\t0100/1\tAdressteil 1\n3\t9999/1\tNachsatz\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestSchema(t *testing.T) {
	code, out, errOut := runCLI("schema", "-schema", schemaPath, "-o", "yaml")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "record_types:") || !strings.Contains(out, "0100") {
		t.Errorf("yaml output:\n%s", out)
	}

	code, out, _ = runCLI("schema", "-schema", schemaPath, "-o", "text")
	if code != 0 || !strings.Contains(out, "-> 0220.040/1") {
		t.Errorf("text output (exit %d):\n%s", code, out)
	}

	code, out, _ = runCLI("schema", "-schema", schemaPath)
	var doc format.SchemaDoc
	if code != 0 || json.Unmarshal([]byte(out), &doc) != nil || len(doc.RecordTypes) != 6 {
		t.Errorf("json output (exit %d):\n%s", code, out)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gdvdump.yaml")
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte("schema: "+abs+"\noutput: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI("schema", "-config", cfgPath)
	if code != 0 || !strings.Contains(out, "-> 0001/1") {
		t.Errorf("exit %d, out %q, stderr %q", code, out, errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"help", []string{"help"}, 0},
		{"command help", []string{"decode", "-h"}, 0},
		{"bad flag", []string{"decode", "-nope"}, 2},
		{"no schema", []string{"schema"}, 2},
		{"bad output", []string{"schema", "-schema", schemaPath, "-o", "xml"}, 2},
		{"bad trailer flag", []string{"decode", "-schema", schemaPath, "-require-trailer=maybe"}, 2},
		{"bad policy", []string{"decode", "-schema", schemaPath, "-on-mismatch", "ignore"}, 2},
		{"missing schema file", []string{"schema", "-schema", "does-not-exist.txt"}, 1},
		{"missing data file", []string{"decode", "-schema", schemaPath, "does-not-exist.gdv"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(tt.args...)
			if code != tt.want {
				t.Errorf("exit %d, want %d (stderr %q)", code, tt.want, errOut)
			}
		})
	}
}
