// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Coerce converts textual values, as they arrive from form posts, to the kind of
// their field. Values which cannot be converted are left untouched so that
// validation can report them. Fields in skip are not touched at all.
func Coerce(model *Model, payload map[string]interface{}, skip ...string) {
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	for key, value := range payload {
		if skipped[key] {
			continue
		}
		f, ok := model.Field(key)
		if !ok || f.IsRelation() {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if f.IsList {
			var list []interface{}
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				payload[key] = list
			}
			continue
		}
		if v, ok := coerceScalar(f.Kind, s); ok {
			payload[key] = v
		}
	}
}

func coerceScalar(kind Kind, s string) (interface{}, bool) {
	switch kind {
	case KindBoolean:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case KindInt, KindFloat, KindBigInt:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	case KindDateTime:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	case KindJSON:
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}
