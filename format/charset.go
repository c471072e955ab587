// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultCharset is the legacy encoding GDV records are written in.
const DefaultCharset = "ISO-8859-1"

var charsets = map[string]encoding.Encoding{
	"iso-8859-1":   charmap.ISO8859_1,
	"iso8859-1":    charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"latin9":       charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"ibm850":       charmap.CodePage850,
	"cp850":        charmap.CodePage850,
	"utf-8":        unicode.UTF8,
	"utf8":         unicode.UTF8,
}

// LookupCharset returns the encoding registered under name. Names are
// matched case-insensitively; the empty name selects DefaultCharset.
func LookupCharset(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultCharset
	}
	enc, ok := charsets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

// decodeBytes converts bytes in enc to a UTF-8 string. A fresh decoder is
// used per call since decoders carry state.
func decodeBytes(enc encoding.Encoding, b []byte) (string, error) {
	return enc.NewDecoder().String(string(b))
}

// encodeString converts a UTF-8 string to enc.
func encodeString(enc encoding.Encoding, s string) (string, error) {
	return enc.NewEncoder().String(s)
}

// sourceReader wraps r so that the schema text is read as UTF-8.
func sourceReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == unicode.UTF8 {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}
