// Package conditions reads forecast records out of a conditions payload of
// the form {"data":{"conditions":[{"am":{"rating":..,"maxHeight":..,"minHeight":..}}]}}.
package conditions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"surf_clock/internal/models"
)

var (
	// ErrSyntax means the body is not a JSON document at all.
	ErrSyntax = errors.New("conditions: malformed payload")
	// ErrSchema means the document parsed but a required field is missing or
	// has the wrong type.
	ErrSchema = errors.New("conditions: schema violation")
)

// FieldError pinpoints the element and field that failed validation.
// Index is -1 for fields above the conditions array.
type FieldError struct {
	Index  int
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s %s", ErrSchema, e.Field, e.Reason)
	}
	return fmt.Sprintf("%v: conditions[%d].%s %s", ErrSchema, e.Index, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrSchema }

// Extract returns one record per conditions element, in document order. Any
// bad element fails the whole batch and no records are returned. Bytes after
// the first JSON value are ignored. An empty conditions array yields zero
// records, but a missing data object or conditions array is a schema error.
func Extract(body []byte) ([]models.ConditionRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	top, ok := root.(map[string]any)
	if !ok {
		return nil, &FieldError{Index: -1, Field: "(root)", Reason: "is not an object"}
	}
	data, ok := top["data"].(map[string]any)
	if !ok {
		return nil, &FieldError{Index: -1, Field: "data", Reason: describe(top["data"], "object")}
	}
	list, ok := data["conditions"].([]any)
	if !ok {
		return nil, &FieldError{Index: -1, Field: "data.conditions", Reason: describe(data["conditions"], "array")}
	}

	out := make([]models.ConditionRecord, 0, len(list))
	for i, item := range list {
		rec, err := record(i, item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func record(i int, item any) (models.ConditionRecord, error) {
	var rec models.ConditionRecord

	elem, _ := item.(map[string]any)
	am, ok := elem["am"].(map[string]any)
	if !ok {
		return rec, &FieldError{Index: i, Field: "am", Reason: describe(elem["am"], "object")}
	}

	rating, ok := am["rating"].(string)
	if !ok {
		return rec, &FieldError{Index: i, Field: "am.rating", Reason: describe(am["rating"], "string")}
	}
	maxH, err := height(i, "am.maxHeight", am["maxHeight"])
	if err != nil {
		return rec, err
	}
	minH, err := height(i, "am.minHeight", am["minHeight"])
	if err != nil {
		return rec, err
	}

	rec.Rating = rating
	rec.MaxHeight = maxH
	rec.MinHeight = minH
	return rec, nil
}

// height truncates toward zero and saturates at the int32 range.
func height(i int, field string, v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, &FieldError{Index: i, Field: field, Reason: describe(v, "number")}
	}
	f, err := n.Float64()
	if err != nil {
		return 0, &FieldError{Index: i, Field: field, Reason: "is not representable: " + err.Error()}
	}
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32, nil
	case f <= math.MinInt32:
		return math.MinInt32, nil
	}
	return int(f), nil
}

func describe(v any, want string) string {
	if v == nil {
		return "is missing or null, want " + want
	}
	var got string
	switch v.(type) {
	case map[string]any:
		got = "object"
	case []any:
		got = "array"
	case string:
		got = "string"
	case json.Number:
		got = "number"
	case bool:
		got = "bool"
	default:
		got = fmt.Sprintf("%T", v)
	}
	return "is " + got + ", want " + want
}
