// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is returned when a payload does not satisfy its validator
type ValidationError struct {
	Details []string `json:"details"`
}

func (e *ValidationError) Error() string {
	s := "the document is not valid :\n"
	for _, d := range e.Details {
		s += fmt.Sprintf("- %s\n", d)
	}
	return s
}

// PayloadValidator validates entity payloads against a JSON schema derived from a model
type PayloadValidator struct {
	document map[string]interface{}
	schema   *gojsonschema.Schema
}

// NewPayloadValidator derives the payload validator for model.
//
// Fields named in relaxed accept any value. With partial set, no field is required,
// which is what partial updates need. Identity and relation fields are accepted but
// never required or checked. Any other key not declared by the model is rejected.
func NewPayloadValidator(model *Model, relaxed []string, partial bool) (*PayloadValidator, error) {
	relax := map[string]bool{}
	for _, r := range relaxed {
		relax[r] = true
	}

	properties := map[string]interface{}{}
	required := []string{}
	for _, f := range model.Fields {
		if f.IsID || f.IsRelation() {
			properties[f.Name] = map[string]interface{}{}
			continue
		}
		if relax[f.Name] {
			properties[f.Name] = map[string]interface{}{}
			continue
		}
		isRequired := !partial && f.Required()
		s := baseSchema(f.Kind)
		if f.IsList {
			s = map[string]interface{}{"type": "array", "items": s}
		} else if isRequired && s["type"] == "string" {
			s["minLength"] = 1
		}
		properties[f.Name] = s
		if isRequired {
			required = append(required, f.Name)
		}
	}

	document := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                model.Name,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		document["required"] = required
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("cannot compile schema for %s: %w", model.Name, err)
	}
	return &PayloadValidator{document: document, schema: schema}, nil
}

func baseSchema(kind Kind) map[string]interface{} {
	switch kind {
	case KindBoolean:
		return map[string]interface{}{"type": "boolean"}
	case KindInt, KindFloat, KindBigInt:
		return map[string]interface{}{"type": "number"}
	case KindDateTime:
		return map[string]interface{}{
			"anyOf": []interface{}{
				map[string]interface{}{"type": "string", "format": "date-time"},
				map[string]interface{}{"type": "number"},
			},
		}
	case KindJSON:
		return map[string]interface{}{"type": "object"}
	default:
		return map[string]interface{}{"type": "string"}
	}
}

// Validate validates payload. It returns a *ValidationError if the payload is not valid.
func (v *PayloadValidator) Validate(payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("cannot validate payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range result.Errors() {
		verr.Details = append(verr.Details, e.String())
	}
	return verr
}

// Required returns the names of the fields a payload must carry
func (v *PayloadValidator) Required() []string {
	r, _ := v.document["required"].([]string)
	return r
}

// String returns the JSON schema document of the validator
func (v *PayloadValidator) String() string {
	data, err := json.Marshal(v.document)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
