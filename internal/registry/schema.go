package registry

import (
	"fmt"
)

// Field is the single source of truth for one argument of a tool's input
// schema (spec §9 "Schema as source of truth"): it drives runtime
// validation, the JSON Schema rendered by `tools/list`, and documentation.
// A hand-rolled Schema is deliberately owned here rather than delegated to
// a general-purpose JSON Schema library — spec §4.3 mandates a narrow,
// exactly-specified dialect (object/properties/required, plus nested
// objects/arrays/enum/min/max per the §9 Open Question decision), and
// owning it directly guarantees the rendered schema matches that dialect
// losslessly instead of depending on how a third-party validator happens
// to marshal its internal representation.
type Field struct {
	Name        string
	Type        string // "string" | "number" | "integer" | "boolean" | "array" | "object"
	Description string
	Enum        []string
	Optional    bool
	Items       *Field  // populated when Type == "array"
	Properties  []Field // populated when Type == "object"
	Minimum     *float64
	Maximum     *float64
}

// Schema is the JSON Schema fragment derived from a tool's []Field, per
// spec §4.3 "Schema surface" and the §9 Open Question decision to keep
// nested objects/arrays/enum/min/max instead of flattening them away.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// BuildSchema derives the top-level object [Schema] for a tool's fields.
func BuildSchema(fields []Field) *Schema {
	s := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for _, f := range fields {
		s.Properties[f.Name] = fieldSchema(f)
		if !f.Optional {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func fieldSchema(f Field) *Schema {
	s := &Schema{
		Type:        f.Type,
		Description: f.Description,
		Enum:        f.Enum,
		Minimum:     f.Minimum,
		Maximum:     f.Maximum,
	}
	if f.Type == "array" && f.Items != nil {
		s.Items = fieldSchema(*f.Items)
	}
	if f.Type == "object" && len(f.Properties) > 0 {
		s.Properties = map[string]*Schema{}
		for _, nested := range f.Properties {
			s.Properties[nested.Name] = fieldSchema(nested)
			if !nested.Optional {
				s.Required = append(s.Required, nested.Name)
			}
		}
	}
	return s
}

// Validate checks args (already JSON-decoded into Go values) against
// fields, returning every violation found rather than stopping at the
// first — callers join these into a single [mcperr.Error].
func Validate(fields []Field, args map[string]any) []string {
	var violations []string
	validateFields(fields, args, "", &violations)
	return violations
}

func validateFields(fields []Field, args map[string]any, prefix string, violations *[]string) {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		v, present := args[f.Name]
		if !present {
			if !f.Optional {
				*violations = append(*violations, fmt.Sprintf("%s: required field is missing", path))
			}
			continue
		}
		validateValue(f, v, path, violations)
	}
}

func validateValue(f Field, v any, path string, violations *[]string) {
	switch f.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			*violations = append(*violations, fmt.Sprintf("%s: expected string, got %T", path, v))
			return
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			*violations = append(*violations, fmt.Sprintf("%s: %q is not one of %v", path, s, f.Enum))
		}
	case "number", "integer":
		n, ok := v.(float64)
		if !ok {
			*violations = append(*violations, fmt.Sprintf("%s: expected number, got %T", path, v))
			return
		}
		if f.Type == "integer" && n != float64(int64(n)) {
			*violations = append(*violations, fmt.Sprintf("%s: expected integer, got %v", path, n))
		}
		if f.Minimum != nil && n < *f.Minimum {
			*violations = append(*violations, fmt.Sprintf("%s: %v is below minimum %v", path, n, *f.Minimum))
		}
		if f.Maximum != nil && n > *f.Maximum {
			*violations = append(*violations, fmt.Sprintf("%s: %v is above maximum %v", path, n, *f.Maximum))
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			*violations = append(*violations, fmt.Sprintf("%s: expected boolean, got %T", path, v))
		}
	case "array":
		arr, ok := v.([]any)
		if !ok {
			*violations = append(*violations, fmt.Sprintf("%s: expected array, got %T", path, v))
			return
		}
		if f.Items != nil {
			for i, elem := range arr {
				validateValue(*f.Items, elem, fmt.Sprintf("%s[%d]", path, i), violations)
			}
		}
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			*violations = append(*violations, fmt.Sprintf("%s: expected object, got %T", path, v))
			return
		}
		if len(f.Properties) > 0 {
			validateFields(f.Properties, obj, path, violations)
		}
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
