// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MultiTechSystems/gdv-format/reader"
)

func TestLoadYAML(t *testing.T) {
	raw := []byte(`
schema: testdata/rectypes.txt
charset: windows-1252
line_length: 300
on_mismatch: skip
require_trailer: true
log_level: debug
output: yaml
`)
	cfg, err := Load("", raw)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Config{
		Schema:         "testdata/rectypes.txt",
		Charset:        "windows-1252",
		LineLength:     300,
		OnMismatch:     "skip",
		RequireTrailer: boolPtr(true),
		LogLevel:       "debug",
		Output:         OutputYAML,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load("", []byte("schema: x\ncolour: blue\n"))
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("Load() error = %v, want unknown field colour", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdvdump.yaml")
	if err := os.WriteFile(path, []byte("output: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != OutputText {
		t.Errorf("Output = %q", cfg.Output)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
	if _, err := Load("", nil); err == nil {
		t.Error("Load() without a source succeeded")
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	cfg, err := Load("", []byte("# nothing here\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("Load() = %+v, want zero Config", cfg)
	}
}

func TestMerge(t *testing.T) {
	base := Defaults()
	got := Merge(base, Config{Schema: "s.txt", OnMismatch: "skip", RequireTrailer: boolPtr(true)})
	if got.Schema != "s.txt" || got.OnMismatch != "skip" || got.RequireTrailer == nil || !*got.RequireTrailer {
		t.Errorf("Merge() = %+v", got)
	}
	if got.Charset != base.Charset || got.Output != base.Output || got.LineLength != base.LineLength {
		t.Errorf("Merge() dropped defaults: %+v", got)
	}
}

func TestMergeRequireTrailer(t *testing.T) {
	file := Merge(Defaults(), Config{RequireTrailer: boolPtr(true)})

	tests := []struct {
		name string
		over *bool
		want bool
	}{
		{"unset keeps file", nil, true},
		{"false overrides file", boolPtr(false), false},
		{"true", boolPtr(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Merge(file, Config{RequireTrailer: tt.over})
			ro, err := cfg.ReaderOptions(nil)
			if err != nil {
				t.Fatalf("ReaderOptions() error = %v", err)
			}
			if ro.RequireTrailer != tt.want {
				t.Errorf("RequireTrailer = %v, want %v", ro.RequireTrailer, tt.want)
			}
		})
	}

	ro, _ := Defaults().ReaderOptions(nil)
	if ro.RequireTrailer {
		t.Error("trailer required by default")
	}
}

func TestValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"charset", func(c *Config) { c.Charset = "ebcdic" }},
		{"source charset", func(c *Config) { c.SourceCharset = "ebcdic" }},
		{"line length", func(c *Config) { c.LineLength = -1 }},
		{"policy", func(c *Config) { c.OnMismatch = "ignore" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"output", func(c *Config) { c.Output = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded")
			}
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Merge(Defaults(), Config{OnMismatch: "skip", RequireTrailer: boolPtr(true), LogLevel: "DEBUG"})

	lvl, err := cfg.Level()
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("Level() = %v, %v", lvl, err)
	}

	fo := cfg.FormatOptions(nil)
	if fo.Charset != cfg.Charset || fo.LineLength != cfg.LineLength {
		t.Errorf("FormatOptions() = %+v", fo)
	}

	ro, err := cfg.ReaderOptions(nil)
	if err != nil {
		t.Fatalf("ReaderOptions() error = %v", err)
	}
	if ro.OnMismatch != reader.Skip || !ro.RequireTrailer {
		t.Errorf("ReaderOptions() = %+v", ro)
	}
}

func boolPtr(v bool) *bool { return &v }
