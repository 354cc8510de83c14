// Package schema reflects and validates the minimal JSON-Schema subset used
// for tool parameters.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Reflect derives an object schema from a struct value using json and
// jsonschema struct tags. Fields without omitempty are required.
//
//	type Args struct {
//	    ProductID string `json:"product_id" jsonschema:"description=Product identifier"`
//	    Limit     int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=200"`
//	}
func Reflect(v any) map[string]any {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	s := r.Reflect(v)

	data, err := json.Marshal(s)
	if err != nil {
		return Object(nil)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Object(nil)
	}

	delete(m, "$schema")
	delete(m, "$id")

	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	m["type"] = "object"

	return m
}

// Object returns an object schema with the given properties and required names.
func Object(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	s := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Required returns the required field names of a schema, accepting both the
// []string shape produced in Go and the []any shape produced by JSON decoding.
func Required(s map[string]any) []string {
	switch req := s["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

// Validate checks params against the schema: required fields, property types,
// enums and numeric minimum/maximum bounds. Extra fields are allowed.
func Validate(params map[string]any, s map[string]any) error {
	for _, name := range Required(s) {
		if _, exists := params[name]; !exists {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := s["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		expected, _ := prop["type"].(string)
		if !isValidType(value, expected) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}

		if enum, ok := prop["enum"].([]any); ok && value != nil && !contains(enum, value) {
			return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("must be one of %v", enum)}
		}

		if err := checkBounds(name, value, prop); err != nil {
			return err
		}
	}

	return nil
}

func checkBounds(name string, value any, prop map[string]any) error {
	v, ok := toFloat(value)
	if !ok {
		return nil
	}

	if minimum, ok := toFloat(prop["minimum"]); ok && v < minimum {
		return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("must be >= %v", minimum)}
	}
	if maximum, ok := toFloat(prop["maximum"]); ok && v > maximum {
		return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("must be <= %v", maximum)}
	}

	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(enum []any, v any) bool {
	for _, e := range enum {
		if e == v {
			return true
		}
	}
	return false
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
