package db

import (
	"errors"
	"fmt"
	"strconv"
)

// FieldKind is the FT schema type of a hash field.
type FieldKind int

// Field kinds. Vectors are always FLOAT32 HNSW with cosine distance.
const (
	FieldNumeric FieldKind = iota
	FieldTag
	FieldVector
)

// Field is one attribute of an FT schema.
type Field struct {
	Name string
	Kind FieldKind

	Separator     string // TAG only; empty keeps the server default ","
	CaseSensitive bool   // TAG only

	Dim         int // VECTOR only
	M           int // HNSW max edges per node; 0 keeps the server default
	EFConstruct int // HNSW build-time candidate list; 0 keeps the server default
}

// IndexDefinition is an FT index over the hashes under one key prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []Field
}

// Schema builds an IndexDefinition field by field.
type Schema struct {
	def IndexDefinition
}

// NewSchema starts a definition for index name covering keys under prefix.
func NewSchema(name, prefix string) *Schema {
	return &Schema{def: IndexDefinition{Name: name, Prefix: prefix}}
}

// Numeric adds a NUMERIC field.
func (s *Schema) Numeric(name string) *Schema {
	s.def.Fields = append(s.def.Fields, Field{Name: name, Kind: FieldNumeric})
	return s
}

// Tag adds a TAG field with the default separator, matched case-insensitively.
func (s *Schema) Tag(name string) *Schema {
	s.def.Fields = append(s.def.Fields, Field{Name: name, Kind: FieldTag})
	return s
}

// ExactTag adds a case-sensitive TAG field split on sep.
func (s *Schema) ExactTag(name, sep string) *Schema {
	s.def.Fields = append(s.def.Fields, Field{Name: name, Kind: FieldTag, Separator: sep, CaseSensitive: true})
	return s
}

// Vector adds an HNSW vector field of dim float32 components.
func (s *Schema) Vector(name string, dim, m, efConstruct int) *Schema {
	s.def.Fields = append(s.def.Fields, Field{Name: name, Kind: FieldVector, Dim: dim, M: m, EFConstruct: efConstruct})
	return s
}

// Build validates and returns the definition.
func (s *Schema) Build() (*IndexDefinition, error) {
	if err := s.def.Validate(); err != nil {
		return nil, err
	}
	def := s.def
	return &def, nil
}

// Validate checks names, field uniqueness and vector dimensions.
func (d *IndexDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("index name is required")
	}
	if !validIdentifier(d.Name) {
		return fmt.Errorf("index name %q contains invalid characters", d.Name)
	}
	if len(d.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case FieldNumeric, FieldTag:
		case FieldVector:
			if f.Dim <= 0 {
				return fmt.Errorf("vector field %q requires a positive dimension", f.Name)
			}
		default:
			return fmt.Errorf("field %q has unknown kind %d", f.Name, f.Kind)
		}
	}
	return nil
}

// CreateArgs renders the FT.CREATE arguments that follow the command name.
func (d *IndexDefinition) CreateArgs() []string {
	args := []string{d.Name, "ON", "HASH"}
	if d.Prefix != "" {
		args = append(args, "PREFIX", "1", d.Prefix)
	}
	args = append(args, "SCHEMA")

	for i := range d.Fields {
		f := &d.Fields[i]
		args = append(args, f.Name)
		switch f.Kind {
		case FieldNumeric:
			args = append(args, "NUMERIC")
		case FieldTag:
			args = append(args, "TAG")
			if f.Separator != "" {
				args = append(args, "SEPARATOR", f.Separator)
			}
			if f.CaseSensitive {
				args = append(args, "CASESENSITIVE")
			}
		case FieldVector:
			attrs := []string{"TYPE", "FLOAT32", "DIM", strconv.Itoa(f.Dim), "DISTANCE_METRIC", "COSINE"}
			if f.M > 0 {
				attrs = append(attrs, "M", strconv.Itoa(f.M))
			}
			if f.EFConstruct > 0 {
				attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct))
			}
			args = append(args, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
			args = append(args, attrs...)
		}
	}
	return args
}

// validIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
