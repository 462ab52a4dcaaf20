// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/goccy/go-json"
)

// Kind is the value kind of a field
type Kind string

// all known field kinds. Any other kind is validated like a string.
const (
	KindString   Kind = "String"
	KindInt      Kind = "Int"
	KindFloat    Kind = "Float"
	KindBigInt   Kind = "BigInt"
	KindBoolean  Kind = "Boolean"
	KindDateTime Kind = "DateTime"
	KindJSON     Kind = "Json"
	KindEnum     Kind = "Enum"
	KindRelation Kind = "Relation"
)

// Field describes one attribute of an entity. Type is the enum type name for enum
// fields and the related model for relation fields.
type Field struct {
	Name            string   `json:"name"`
	Kind            Kind     `json:"kind"`
	Type            string   `json:"type,omitempty"`
	IsID            bool     `json:"isId"`
	IsList          bool     `json:"isList"`
	IsRequired      bool     `json:"isRequired"`
	HasDefaultValue bool     `json:"hasDefaultValue"`
	IsUpdatedAt     bool     `json:"isUpdatedAt"`
	RelationName    string   `json:"relationName,omitempty"`
	EnumValues      []string `json:"enumValues,omitempty"`
}

// IsRelation returns true for fields which reference another entity
func (f Field) IsRelation() bool {
	return f.RelationName != "" || f.Kind == KindRelation
}

// Required returns true if a full payload must carry the field
func (f Field) Required() bool {
	return f.IsRequired && !f.HasDefaultValue && !f.IsUpdatedAt
}

// Model describes one entity
type Model struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Collection returns the collection name of the model, the lower case model name
func (m *Model) Collection() string {
	return strings.ToLower(m.Name)
}

// PassiveFields returns the names of the identity and relation fields. Payloads
// may carry them, but their values are never stored from a payload.
func (m *Model) PassiveFields() []string {
	names := []string{}
	for _, f := range m.Fields {
		if f.IsID || f.IsRelation() {
			names = append(names, f.Name)
		}
	}
	return names
}

// IDField returns the identity field of the model
func (m *Model) IDField() Field {
	for _, f := range m.Fields {
		if f.IsID {
			return f
		}
	}
	return Field{}
}

// Field returns the field with the given name
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// EnumValue is one permissible value of an enum
type EnumValue struct {
	Name   string  `json:"name"`
	DBName *string `json:"dbName"`
}

// Enum is a named catalog of permissible values
type Enum struct {
	Name   string      `json:"name"`
	Values []EnumValue `json:"values"`
}

// Schema is the immutable description of all entities and enums of an application
type Schema struct {
	Models []Model `json:"models"`
	Enums  []Enum  `json:"enums"`
}

// Parse decodes and checks a schema document
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse error in schema: %w", err)
	}
	enums := map[string]*Enum{}
	for i := range s.Enums {
		enums[s.Enums[i].Name] = &s.Enums[i]
	}
	names := map[string]bool{}
	for i := range s.Models {
		m := &s.Models[i]
		if m.Name == "" {
			return nil, fmt.Errorf("model %d has no name", i)
		}
		if names[m.Collection()] {
			return nil, fmt.Errorf("model %s declared twice", m.Name)
		}
		names[m.Collection()] = true

		ids := 0
		for j := range m.Fields {
			f := &m.Fields[j]
			if f.IsID {
				ids++
			}
			if f.Kind != KindEnum {
				continue
			}
			e, ok := enums[f.Type]
			if !ok {
				return nil, fmt.Errorf("field %s.%s references unknown enum %s", m.Name, f.Name, f.Type)
			}
			if len(f.EnumValues) == 0 {
				for _, v := range e.Values {
					f.EnumValues = append(f.EnumValues, v.Name)
				}
			}
		}
		if ids != 1 {
			return nil, fmt.Errorf("model %s must have exactly one id field, has %d", m.Name, ids)
		}
	}
	return &s, nil
}

// LoadFromFS reads and parses the schema document at path from fsys
func LoadFromFS(fsys fs.FS, path string) (*Schema, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read schema '%s': %w", path, err)
	}
	return Parse(data)
}

// Model returns the model with the given name. The name is matched case insensitively.
func (s *Schema) Model(name string) (*Model, bool) {
	for i := range s.Models {
		if strings.EqualFold(s.Models[i].Name, name) {
			return &s.Models[i], true
		}
	}
	return nil, false
}

// Enum returns the values of the enum with the given type name
func (s *Schema) Enum(name string) ([]EnumValue, bool) {
	for _, e := range s.Enums {
		if e.Name == name {
			return e.Values, true
		}
	}
	return nil, false
}
