// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

// Package config loads the gdvdump configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MultiTechSystems/gdv-format/format"
	"github.com/MultiTechSystems/gdv-format/reader"
)

// Config is the gdvdump configuration.
type Config struct {
	Schema         string `yaml:"schema"`
	Charset        string `yaml:"charset"`
	SourceCharset  string `yaml:"source_charset"`
	LineLength     int    `yaml:"line_length"`
	OnMismatch     string `yaml:"on_mismatch"`
	RequireTrailer *bool  `yaml:"require_trailer"` // nil leaves the base setting
	LogLevel       string `yaml:"log_level"`
	Output         string `yaml:"output"`
}

// Output formats.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputText = "text"
)

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Charset:       format.DefaultCharset,
		SourceCharset: "UTF-8",
		LineLength:    format.DefaultLineLength,
		OnMismatch:    "abort",
		LogLevel:      "warn",
		Output:        OutputJSON,
	}
}

// Load parses a YAML configuration from raw, or from the file at path when
// raw is empty. Unknown keys are rejected.
func Load(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Merge returns base with every non-zero setting of over applied. A set
// RequireTrailer applies even when false.
func Merge(base, over Config) Config {
	out := base
	if over.Schema != "" {
		out.Schema = over.Schema
	}
	if over.Charset != "" {
		out.Charset = over.Charset
	}
	if over.SourceCharset != "" {
		out.SourceCharset = over.SourceCharset
	}
	if over.LineLength != 0 {
		out.LineLength = over.LineLength
	}
	if over.OnMismatch != "" {
		out.OnMismatch = over.OnMismatch
	}
	if over.RequireTrailer != nil {
		v := *over.RequireTrailer
		out.RequireTrailer = &v
	}
	if over.LogLevel != "" {
		out.LogLevel = over.LogLevel
	}
	if over.Output != "" {
		out.Output = over.Output
	}
	return out
}

// Validate checks the settings that can be checked without opening files.
func (c Config) Validate() error {
	if _, err := format.LookupCharset(c.Charset); err != nil {
		return err
	}
	if _, err := format.LookupCharset(c.SourceCharset); err != nil {
		return fmt.Errorf("source charset: %w", err)
	}
	if c.LineLength < 0 {
		return fmt.Errorf("line_length must not be negative, got %d", c.LineLength)
	}
	if _, err := reader.ParsePolicy(c.OnMismatch); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Output {
	case OutputJSON, OutputYAML, OutputText:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelWarn, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// FormatOptions returns the compile options for the schema.
func (c Config) FormatOptions(log *slog.Logger) format.Options {
	return format.Options{
		Charset:       c.Charset,
		SourceCharset: c.SourceCharset,
		LineLength:    c.LineLength,
		Logger:        log,
	}
}

// ReaderOptions returns the options for the record reader.
func (c Config) ReaderOptions(log *slog.Logger) (reader.Options, error) {
	p, err := reader.ParsePolicy(c.OnMismatch)
	if err != nil {
		return reader.Options{}, err
	}
	return reader.Options{
		OnMismatch:     p,
		RequireTrailer: c.RequireTrailer != nil && *c.RequireTrailer,
		Logger:         log,
	}, nil
}
