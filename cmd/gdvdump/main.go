// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

// Command gdvdump decodes GDV data files using a rectypes schema.
//
// Usage:
//
//	gdvdump decode   -schema rectypes.txt [-o json|yaml|text] [file...]
//	gdvdump classify -schema rectypes.txt [file...]
//	gdvdump schema   -schema rectypes.txt [-o json|yaml|text]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/MultiTechSystems/gdv-format/format"
	"github.com/MultiTechSystems/gdv-format/internal/config"
	"github.com/MultiTechSystems/gdv-format/reader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `gdvdump - GDV record decoder

Usage:
  gdvdump decode   [flags] [file...]   decode every record to JSON, YAML or text
  gdvdump classify [flags] [file...]   print the part each line belongs to
  gdvdump schema   [flags]             print the compiled schema

Run 'gdvdump <command> -h' for the flags of a command.`)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "decode":
		err = decodeCmd(args[1:], stdin, stdout, stderr)
	case "classify":
		err = classifyCmd(args[1:], stdin, stdout, stderr)
	case "schema":
		err = schemaCmd(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "gdvdump %s: %v\n", args[0], err)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "gdvdump %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// =============================================================================
// Common flags
// =============================================================================

type common struct {
	fs         *flag.FlagSet
	configPath string
	over       config.Config
}

func newCommon(name string, stderr io.Writer) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(stderr)
	c.fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	c.fs.StringVar(&c.over.Schema, "schema", "", "rectypes schema file")
	c.fs.StringVar(&c.over.Charset, "charset", "", "charset of the data lines (default ISO-8859-1)")
	c.fs.StringVar(&c.over.SourceCharset, "source-charset", "", "charset of the schema file (default UTF-8)")
	c.fs.IntVar(&c.over.LineLength, "line-length", 0, "maximum record length (default 256)")
	c.fs.StringVar(&c.over.LogLevel, "log-level", "", "debug, info, warn or error")
	c.fs.StringVar(&c.over.Output, "o", "", "output format: json, yaml or text")
	return c
}

func (c *common) parse(args []string) error {
	err := c.fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return usageError{err.Error()}
}

func (c *common) readerFlags() {
	c.fs.StringVar(&c.over.OnMismatch, "on-mismatch", "", "abort or skip lines that match no part")
	c.fs.Var(optBool{&c.over.RequireTrailer}, "require-trailer", "fail when the last record is not a Nachsatz (-require-trailer=false overrides the config)")
}

// optBool is a boolean flag that stays nil unless given on the command line.
type optBool struct{ p **bool }

func (b optBool) IsBoolFlag() bool { return true }

func (b optBool) String() string {
	if b.p == nil || *b.p == nil {
		return ""
	}
	return strconv.FormatBool(**b.p)
}

func (b optBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.p = &v
	return nil
}

// setup resolves the configuration, builds the logger and loads the schema.
func (c *common) setup(stderr io.Writer) (config.Config, *slog.Logger, *format.Format, error) {
	cfg := config.Defaults()
	if c.configPath != "" {
		file, err := config.Load(c.configPath, nil)
		if err != nil {
			return cfg, nil, nil, err
		}
		cfg = config.Merge(cfg, file)
	}
	cfg = config.Merge(cfg, c.over)
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, usageError{err.Error()}
	}
	if cfg.Schema == "" {
		return cfg, nil, nil, usageError{"no schema given (-schema or schema: in -config)"}
	}

	lvl, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl}))

	f, err := format.FileLoader(cfg.Schema, cfg.FormatOptions(log)).Load()
	if err != nil {
		return cfg, log, nil, fmt.Errorf("%s: %w", cfg.Schema, err)
	}
	return cfg, log, f, nil
}

// inputs calls fn for every named file, or for stdin when there is none.
func inputs(names []string, stdin io.Reader, fn func(name string, r io.Reader) error) error {
	if len(names) == 0 {
		return fn("-", stdin)
	}
	for _, name := range names {
		if name == "-" {
			if err := fn(name, stdin); err != nil {
				return err
			}
			continue
		}
		fh, err := os.Open(name)
		if err != nil {
			return err
		}
		err = fn(name, fh)
		fh.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// =============================================================================
// Output
// =============================================================================

type emitter interface {
	emit(v any) error
	close() error
}

type jsonEmitter struct{ enc *json.Encoder }

func (e jsonEmitter) emit(v any) error { return e.enc.Encode(v) }
func (e jsonEmitter) close() error     { return nil }

type yamlEmitter struct{ enc *yaml.Encoder }

func (e yamlEmitter) emit(v any) error { return e.enc.Encode(v) }
func (e yamlEmitter) close() error     { return e.enc.Close() }

type textEmitter struct{ w io.Writer }

func (e textEmitter) emit(v any) error {
	switch v := v.(type) {
	case recordOut:
		if _, err := fmt.Fprintf(e.w, "%d\t%s\n", v.Line, v.Part); err != nil {
			return err
		}
		for _, kv := range v.ordered {
			if _, err := fmt.Fprintf(e.w, "\t%s = %v\n", kv.name, kv.value); err != nil {
				return err
			}
		}
		return nil
	case fmt.Stringer:
		_, err := fmt.Fprint(e.w, v.String())
		return err
	}
	_, err := fmt.Fprintln(e.w, v)
	return err
}

func (e textEmitter) close() error { return nil }

func newEmitter(kind string, w io.Writer) emitter {
	switch kind {
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return yamlEmitter{enc}
	case config.OutputText:
		return textEmitter{w}
	}
	return jsonEmitter{json.NewEncoder(w)}
}

type fieldValue struct {
	name  string
	value any
}

type recordOut struct {
	File       string         `json:"file,omitempty" yaml:"file,omitempty"`
	Line       int            `json:"line" yaml:"line"`
	RecordType string         `json:"record_type" yaml:"record_type"`
	Part       string         `json:"part" yaml:"part"`
	Fields     map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	ordered []fieldValue
}

// =============================================================================
// decode
// =============================================================================

func decodeCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := newCommon("decode", stderr)
	c.readerFlags()
	var fieldsCSV string
	var raw bool
	c.fs.StringVar(&fieldsCSV, "fields", "", "comma-separated field names to print (default all)")
	c.fs.BoolVar(&raw, "raw", false, "print raw field text instead of typed values")
	if err := c.parse(args); err != nil {
		return err
	}
	cfg, log, f, err := c.setup(stderr)
	if err != nil {
		return err
	}
	ropt, err := cfg.ReaderOptions(log)
	if err != nil {
		return usageError{err.Error()}
	}

	form := format.FormValue
	if raw {
		form = format.FormRaw
	}
	selected := splitCSV(fieldsCSV)

	out := newEmitter(cfg.Output, stdout)
	err = inputs(c.fs.Args(), stdin, func(name string, in io.Reader) error {
		r := reader.New(in, f, ropt)
		err := r.Each(func(rec *format.Record) error {
			o, err := describeRecord(rec, selected, form)
			if err != nil {
				return err
			}
			if name != "-" {
				o.File = name
			}
			return out.emit(o)
		})
		st := r.Stats()
		log.Info("decoded", "input", name, "records", st.Records, "skipped", st.Skipped)
		return err
	})
	if cerr := out.close(); err == nil {
		err = cerr
	}
	return err
}

func describeRecord(rec *format.Record, selected []string, form format.Form) (recordOut, error) {
	o := recordOut{
		Line:       rec.Nr,
		RecordType: rec.RecordType().ID(),
		Part:       rec.Part.ID(),
		Fields:     make(map[string]any),
	}
	names := selected
	if len(names) == 0 {
		for _, fld := range rec.Part.Fields {
			names = append(names, fld.Name)
		}
	}
	for _, name := range names {
		var opts []format.DecodeOption
		if len(selected) > 0 {
			// Selected names need not exist in every part.
			opts = append(opts, format.WithDefault(nil))
		}
		v, err := rec.Get(name, form, opts...)
		if err != nil {
			return o, fmt.Errorf("line %d: %w", rec.Nr, err)
		}
		if v == nil {
			continue
		}
		o.Fields[name] = v
		o.ordered = append(o.ordered, fieldValue{name, v})
	}
	return o, nil
}

// =============================================================================
// classify
// =============================================================================

type classOut struct {
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	Line  int    `json:"line" yaml:"line"`
	Part  string `json:"part" yaml:"part"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

func (o classOut) String() string {
	return fmt.Sprintf("%d\t%s\t%s\n", o.Line, o.Part, o.Label)
}

func classifyCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := newCommon("classify", stderr)
	c.readerFlags()
	if err := c.parse(args); err != nil {
		return err
	}
	cfg, log, f, err := c.setup(stderr)
	if err != nil {
		return err
	}
	ropt, err := cfg.ReaderOptions(log)
	if err != nil {
		return usageError{err.Error()}
	}
	if c.over.Output == "" {
		cfg.Output = config.OutputText
	}

	out := newEmitter(cfg.Output, stdout)
	err = inputs(c.fs.Args(), stdin, func(name string, in io.Reader) error {
		r := reader.New(in, f, ropt)
		err := r.Each(func(rec *format.Record) error {
			o := classOut{Line: rec.Nr, Part: rec.Part.ID(), Label: rec.Part.Label}
			if name != "-" {
				o.File = name
			}
			return out.emit(o)
		})
		log.Info("classified", "input", name, "stats", r.Stats())
		return err
	})
	if cerr := out.close(); err == nil {
		err = cerr
	}
	return err
}

// =============================================================================
// schema
// =============================================================================

func schemaCmd(args []string, stdout, stderr io.Writer) error {
	c := newCommon("schema", stderr)
	if err := c.parse(args); err != nil {
		return err
	}
	cfg, _, f, err := c.setup(stderr)
	if err != nil {
		return err
	}

	var b []byte
	switch cfg.Output {
	case config.OutputYAML:
		b, err = format.MarshalYAML(f.Schema)
	case config.OutputText:
		b = []byte(f.Index.String())
	default:
		b, err = format.MarshalJSON(f.Schema)
		b = append(b, '\n')
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(b)
	return err
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
