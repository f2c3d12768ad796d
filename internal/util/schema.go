package util

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Details renders the error as a JSON-compatible map.
func (e *ValidationError) Details() map[string]any {
	d := map[string]any{"field": e.Field, "message": e.Message}
	if e.Value != nil {
		d["value"] = e.Value
	}
	return d
}

// ParamSpec describes a single capability parameter.
type ParamSpec struct {
	// Type is one of string, integer, number, boolean, array, object or any.
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ParamSchema maps parameter names to their specs.
type ParamSchema map[string]ParamSpec

// Names returns parameter names sorted, required ones first.
func (s ParamSchema) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := s[names[i]].Required, s[names[j]].Required
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})
	return names
}

// Describe renders the schema as a compact single line, e.g.
// "key (string, required), prefix (string)".
func (s ParamSchema) Describe() string {
	if len(s) == 0 {
		return "no parameters"
	}
	parts := make([]string, 0, len(s))
	for _, n := range s.Names() {
		spec := s[n]
		typ := spec.Type
		if typ == "" {
			typ = "any"
		}
		p := n + " (" + typ
		if spec.Required {
			p += ", required"
		}
		p += ")"
		if spec.Description != "" {
			p += ": " + spec.Description
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

// ValidateParameters checks params against schema: required fields must be
// present and typed fields must match. Extra fields are allowed. Fields are
// checked in Names order so the reported error is deterministic.
func ValidateParameters(params map[string]any, schema ParamSchema) error {
	for _, name := range schema.Names() {
		spec := schema[name]
		value, exists := params[name]
		if !exists {
			if spec.Required {
				return &ValidationError{Field: name, Message: "required field is missing"}
			}
			continue
		}
		if !isValidType(value, spec.Type) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %s", spec.Type, jsonTypeName(value)),
			}
		}
	}
	return nil
}

// isValidType checks if a value is valid according to the expected type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return expectedType == "" || expectedType == "any"
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
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

// jsonTypeName names the JSON type of a canonical value.
func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
