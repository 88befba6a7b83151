package capture

import (
	"fmt"
	"strings"

	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/errors"
)

// Field declares one accepted form field and its data type tag.
type Field struct {
	Name string
	Type string
}

// Schema is the ordered field declaration of a capture plus its required
// set. It is checked once at construction and immutable afterwards.
type Schema struct {
	fields   []Field
	required []string
}

// NewSchema validates the declaration against the type registry: fields
// must exist, names must be unique, every required name must be declared and
// every type tag must be registered. Violations are configuration errors.
func NewSchema(fields []Field, required []string, types *datatype.Registry) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, errors.Configuration("capture declares no fields")
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Schema{}, errors.Configuration("field with empty name")
		}
		if seen[f.Name] {
			return Schema{}, errors.Configuration("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if _, err := types.Resolve(f.Type); err != nil {
			return Schema{}, errors.Configuration("field %q: unknown data type %q", f.Name, f.Type)
		}
	}
	for _, name := range required {
		if !seen[name] {
			return Schema{}, errors.Configuration("required field %q is not declared", name)
		}
	}

	return Schema{fields: append([]Field(nil), fields...), required: append([]string(nil), required...)}, nil
}

// Fields returns the declared fields in declaration order.
func (s Schema) Fields() []Field { return s.fields }

// FieldNames returns the declared field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Required returns the required field names.
func (s Schema) Required() []string { return s.required }

// TypeOf returns the type tag declared for name.
func (s Schema) TypeOf(name string) (string, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// ValidationResult is the transient outcome of validating one submission.
type ValidationResult struct {
	Valid   bool
	Data    Record
	Missing []string
	Invalid []string
}

// Validate filters input down to declared fields and checks it: unknown
// keys are silently dropped, required fields must be non-empty, and every
// non-empty value must pass its type validator. Optional empty fields are
// never type-checked.
func (s Schema) Validate(input map[string]string, types *datatype.Registry) ValidationResult {
	result := ValidationResult{Valid: true, Data: make(Record)}

	for _, f := range s.fields {
		if value, ok := input[f.Name]; ok {
			result.Data[f.Name] = value
		}
	}

	for _, name := range s.required {
		if strings.TrimSpace(result.Data[name]) == "" {
			result.Missing = append(result.Missing, name)
			result.Valid = false
		}
	}

	for _, f := range s.fields {
		value, ok := result.Data[f.Name]
		if !ok || value == "" {
			continue
		}
		valid, err := types.Validate(value, f.Type)
		if err != nil || !valid {
			result.Invalid = append(result.Invalid, f.Name)
			result.Valid = false
		}
	}

	return result
}

// ValidationError reports a rejected submission together with the offending
// field names.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var adjectives []string
	if len(e.Invalid) > 0 {
		adjectives = append(adjectives, "invalid")
	}
	if len(e.Missing) > 0 {
		adjectives = append(adjectives, "missing")
	}
	return fmt.Sprintf("There are %s fields", strings.Join(adjectives, " and "))
}
