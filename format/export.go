// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"sort"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// SchemaDoc is a serializable view of a compiled schema. Positions are
// 1-based as in the schema text.
type SchemaDoc struct {
	Charset     string          `json:"charset" yaml:"charset"`
	RecordTypes []RecordTypeDoc `json:"record_types" yaml:"record_types"`
	Maps        []ValueMapDoc   `json:"maps,omitempty" yaml:"maps,omitempty"`
}

// RecordTypeDoc describes one record type.
type RecordTypeDoc struct {
	ID     string    `json:"id" yaml:"id"`
	Label  string    `json:"label,omitempty" yaml:"label,omitempty"`
	Length int       `json:"length" yaml:"length"`
	Parts  []PartDoc `json:"parts" yaml:"parts"`
}

// PartDoc describes one part.
type PartDoc struct {
	Nr            int        `json:"nr" yaml:"nr"`
	Label         string     `json:"label,omitempty" yaml:"label,omitempty"`
	Discriminator []string   `json:"discriminator" yaml:"discriminator"`
	Fields        []FieldDoc `json:"fields" yaml:"fields"`
}

// FieldDoc describes one field.
type FieldDoc struct {
	Nr     int       `json:"nr" yaml:"nr"`
	Name   string    `json:"name" yaml:"name"`
	Pos    int       `json:"pos" yaml:"pos"`
	Len    int       `json:"len" yaml:"len"`
	Type   FieldType `json:"type" yaml:"type"`
	Const  string    `json:"const,omitempty" yaml:"const,omitempty"`
	Scale  int       `json:"scale,omitempty" yaml:"scale,omitempty"`
	Layout string    `json:"layout,omitempty" yaml:"layout,omitempty"`
	Map    string    `json:"map,omitempty" yaml:"map,omitempty"`
	Label  string    `json:"label,omitempty" yaml:"label,omitempty"`
}

// ValueMapDoc describes one value map.
type ValueMapDoc struct {
	ID      string            `json:"id" yaml:"id"`
	Default string            `json:"default,omitempty" yaml:"default,omitempty"`
	Entries map[string]string `json:"entries" yaml:"entries"`
}

// Describe builds the serializable view of s.
func Describe(s *Schema) SchemaDoc {
	doc := SchemaDoc{Charset: s.Charset}
	for _, rt := range s.RecordTypes {
		rd := RecordTypeDoc{ID: rt.ID(), Label: rt.Label, Length: rt.Length}
		for _, p := range rt.Parts {
			pd := PartDoc{Nr: p.Nr, Label: p.Label}
			for _, c := range p.Discriminator {
				v, err := decodeBytes(s.charset, []byte(c.Value))
				if err != nil {
					v = c.Value
				}
				pd.Discriminator = append(pd.Discriminator, v)
			}
			for _, f := range p.Fields {
				pd.Fields = append(pd.Fields, describeField(f))
			}
			rd.Parts = append(rd.Parts, pd)
		}
		doc.RecordTypes = append(doc.RecordTypes, rd)
	}

	ids := make([]string, 0, len(s.Maps))
	for id := range s.Maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m := s.Maps[id]
		doc.Maps = append(doc.Maps, ValueMapDoc{ID: m.ID, Default: m.Default, Entries: m.Entries})
	}
	return doc
}

func describeField(f *Field) FieldDoc {
	fd := FieldDoc{
		Nr:     f.Nr,
		Name:   f.Name,
		Pos:    f.Pos + 1,
		Len:    f.Len,
		Type:   f.Type,
		Scale:  f.Scale,
		Layout: f.Layout,
		Label:  f.Label,
	}
	if f.Type == TypeConst {
		fd.Const, _ = decodeBytes(fieldCharset(f), []byte(f.Const))
	}
	if f.Map != nil {
		fd.Map = f.Map.ID
	}
	return fd
}

// MarshalYAML renders the schema description as YAML.
func MarshalYAML(s *Schema) ([]byte, error) {
	return yaml.Marshal(Describe(s))
}

// MarshalJSON renders the schema description as indented JSON.
func MarshalJSON(s *Schema) ([]byte, error) {
	return json.MarshalIndent(Describe(s), "", "  ")
}
