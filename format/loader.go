// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Format is a compiled schema together with its classification index.
// It is immutable and safe for concurrent use.
type Format struct {
	Schema *Schema
	Index  *Index
}

// Compile reads a schema description and builds its index.
func Compile(r io.Reader, opt Options) (*Format, error) {
	s, err := CompileSchema(r, opt)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(s)
	if err != nil {
		opt.logger().Error("index build failed", "error", err)
		return nil, err
	}
	opt.logger().Debug("classification index", "parts", idx.Len(), "depth", idx.Depth(), "tree", idx.String())
	return &Format{Schema: s, Index: idx}, nil
}

// Classify returns the part line belongs to.
func (f *Format) Classify(line []byte) (*Part, error) {
	return f.Index.Classify(line)
}

// Record classifies line and wraps it as a Record with the given number.
func (f *Format) Record(nr int, line []byte) (*Record, error) {
	p, err := f.Index.Classify(line)
	if err != nil {
		return nil, err
	}
	return &Record{Nr: nr, Line: line, Part: p}, nil
}

// Decode classifies line and decodes the named field from the matched part.
func (f *Format) Decode(line []byte, name string, form Form, opts ...DecodeOption) (any, error) {
	p, err := f.Index.Classify(line)
	if err != nil {
		return nil, err
	}
	return Decode(line, p, name, form, opts...)
}

// =============================================================================
// Loader
// =============================================================================

// OpenFunc supplies the schema text.
type OpenFunc func() (io.ReadCloser, error)

// Loader compiles a schema on first use and hands out the cached Format
// afterwards. Reads are lock-free; builds are serialized.
type Loader struct {
	open OpenFunc
	opt  Options

	mu      sync.Mutex
	current atomic.Pointer[Format]
	version atomic.Uint64
}

// NewLoader returns a Loader reading the schema through open.
func NewLoader(open OpenFunc, opt Options) *Loader {
	return &Loader{open: open, opt: opt}
}

// FileLoader returns a Loader for the schema file at path.
func FileLoader(path string, opt Options) *Loader {
	return NewLoader(func() (io.ReadCloser, error) {
		return os.Open(path)
	}, opt)
}

// Load returns the compiled Format, compiling it on the first call. A failed
// compile publishes nothing, so the next call starts over.
func (l *Loader) Load() (*Format, error) {
	if f := l.current.Load(); f != nil {
		return f, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if f := l.current.Load(); f != nil {
		return f, nil
	}
	return l.build()
}

// Reload compiles the schema again and swaps it in. On failure the previous
// Format stays published.
func (l *Loader) Reload() (*Format, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.build()
}

// Version counts successful builds.
func (l *Loader) Version() uint64 {
	return l.version.Load()
}

func (l *Loader) build() (*Format, error) {
	rc, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer rc.Close()

	f, err := Compile(rc, l.opt)
	if err != nil {
		return nil, err
	}
	l.current.Store(f)
	v := l.version.Add(1)
	l.opt.logger().Info("schema loaded", "version", v)
	return f, nil
}
