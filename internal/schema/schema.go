// Package schema provides field-type schemas for extracted streams.
//
// A schema declares, per field, the JSON types a value may take and whether
// the field was selected for extraction. Schemas are loaded once per stream
// before iteration begins and are read-only afterwards.
package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Recognized field type names. Anything else in a catalog is a
// configuration error, not a data error.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// FormatDateTime marks string fields carrying RFC3339-ish timestamps.
// Values with this format are passed through unmodified during coercion.
const FormatDateTime = "date-time"

type (
	// TypeSet is the ordered list of types a field value may take.
	// Ordering matters: coercion is attempted in declared order and the
	// first type that converts cleanly wins.
	TypeSet []string

	// Field describes a single declared field.
	Field struct {
		Types    TypeSet `yaml:"type"`
		Format   string  `yaml:"format,omitempty"`
		Selected bool    `yaml:"selected,omitempty"`
	}

	// Schema maps declared field names to their type declarations.
	Schema struct {
		Fields map[string]Field `yaml:"fields"`
	}
)

// UnmarshalYAML accepts both scalar and sequence forms:
//
//	type: string
//	type: [string, "null"]
func (ts *TypeSet) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}

		*ts = TypeSet{single}

		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}

		*ts = TypeSet(many)

		return nil
	default:
		return fmt.Errorf("type must be a string or a list of strings (line %d)", value.Line)
	}
}

// Nullable reports whether the type set permits the field to be absent.
func (ts TypeSet) Nullable() bool {
	for _, t := range ts {
		if t == TypeNull {
			return true
		}
	}

	return false
}

// Concrete returns the type set with "null" removed, preserving order.
func (ts TypeSet) Concrete() []string {
	out := make([]string, 0, len(ts))

	for _, t := range ts {
		if t != TypeNull {
			out = append(out, t)
		}
	}

	return out
}

// Selected returns the schema restricted to fields marked selected, with
// the named exclusions removed. Validation runs against this subset: only
// selected fields are requested from the platform, so only they can be
// expected in a result row.
func (s Schema) Selected(exclude ...string) Schema {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	fields := make(map[string]Field)

	for name, field := range s.Fields {
		if field.Selected && !excluded[name] {
			fields[name] = field
		}
	}

	return Schema{Fields: fields}
}

// SelectedFields returns the sorted names of all fields marked selected.
// Only selected fields are requested from the remote platform and emitted.
func (s Schema) SelectedFields() []string {
	out := make([]string, 0, len(s.Fields))

	for name, field := range s.Fields {
		if field.Selected {
			out = append(out, name)
		}
	}

	sort.Strings(out)

	return out
}
