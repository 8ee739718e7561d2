package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FieldID          = "id"
	FieldCreatedDate = "created_date"
)

// Stamp fills a missing id with a new UUID and a missing or zero
// created_date with now. It returns the updated document and its id.
func Stamp(doc json.RawMessage, now time.Time) (json.RawMessage, string, error) {
	fields, err := decodeObject(doc)
	if err != nil {
		return nil, "", err
	}
	id, _ := fields[FieldID].(string)
	if id == "" {
		id = uuid.NewString()
		fields[FieldID] = id
	}
	if created, _ := fields[FieldCreatedDate].(string); isZeroTime(created) {
		fields[FieldCreatedDate] = now.UTC().Format(time.RFC3339Nano)
	}
	out, err := json.Marshal(fields)
	return out, id, err
}

// Merge applies the top-level fields of patch over base, keeping base's id.
func Merge(base, patch json.RawMessage) (json.RawMessage, error) {
	fields, err := decodeObject(base)
	if err != nil {
		return nil, err
	}
	changes, err := decodeObject(patch)
	if err != nil {
		return nil, err
	}
	id := fields[FieldID]
	for k, v := range changes {
		fields[k] = v
	}
	fields[FieldID] = id
	return json.Marshal(fields)
}

// Canonical converts a Go value to the shape encoding/json decodes it into
// (nil, bool, float64, string, []any or map[string]any).
func Canonical(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Matches reports whether every field in where equals the document's value.
func Matches(doc map[string]any, where Where) (bool, error) {
	for field, want := range where {
		if !ValidField(field) {
			return false, fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
		cw, err := Canonical(want)
		if err != nil {
			return false, err
		}
		if !reflect.DeepEqual(doc[field], cw) {
			return false, nil
		}
	}
	return true, nil
}

// ValidateWhere rejects field names that are not plain snake_case.
func ValidateWhere(where Where) error {
	for field := range where {
		if !ValidField(field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
	}
	return nil
}

// ParseSort splits "-field" into field and descending. Empty sort is valid
// and means insertion order.
func ParseSort(s string) (field string, desc bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, nil
	}
	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if !ValidField(s) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
	return s, desc, nil
}

// Less orders two documents by field, descending when desc is set.
func Less(a, b map[string]any, field string, desc bool) bool {
	c := Compare(a[field], b[field])
	if desc {
		return c > 0
	}
	return c < 0
}

// ValidField accepts lower-case snake_case names, which is all the
// directory documents use and all that is safe to splice into a JSON path.
func ValidField(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// Decode parses a document into a field map.
func Decode(doc json.RawMessage) (map[string]any, error) {
	return decodeObject(doc)
}

func decodeObject(doc json.RawMessage) (map[string]any, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || doc[0] != '{' {
		return nil, ErrNotObject
	}
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

func isZeroTime(s string) bool {
	if s == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return err != nil || t.IsZero()
}

// Compare orders decoded values the way SQLite orders json_extract
// results: null, then numbers (booleans as 0/1), then text.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, fb := number(a), number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool, float64:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case float64:
		return n
	}
	return 0
}
