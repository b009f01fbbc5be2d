// Package transform coerces loosely-typed result rows into schema-conformant
// records.
//
// Coercion is first-success, not best-match: the ordering of types in a
// field's schema entry determines the outcome. A value that fails every
// declared type is a validation error carrying each per-type failure; an
// unrecognized type name is a configuration error and fails hard.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bonobos/tap-facebook/internal/schema"
)

// Sentinel errors for record transformation.
var (
	// ErrFieldMissing is returned when a non-nullable declared field is
	// absent from the raw row.
	ErrFieldMissing = errors.New("field absent and not nullable")

	// ErrUnknownFieldType is returned when a schema declares a type outside
	// the five recognized kinds. This indicates a broken catalog, not bad
	// data, so it aborts immediately instead of being aggregated.
	ErrUnknownFieldType = errors.New("unknown field type")
)

// FieldError reports a value that failed coercion against every declared
// type for its field. Attempts holds one failure per tried type, in schema
// order.
type FieldError struct {
	Field    string
	Types    schema.TypeSet
	Attempts []error
}

func (e *FieldError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, attempt := range e.Attempts {
		msgs[i] = attempt.Error()
	}

	return fmt.Sprintf("field %s does not match schema %v: %s",
		e.Field, []string(e.Types), strings.Join(msgs, "; "))
}

// Transform converts a raw result row into a record conforming to sch.
//
// Every declared field must be present unless its type set includes "null",
// in which case absence yields no output key (not an explicit null). Only
// declared fields are carried into the output; undeclared row keys are
// dropped.
func Transform(row map[string]any, sch schema.Schema) (map[string]any, error) {
	out := make(map[string]any, len(sch.Fields))

	for name, field := range sch.Fields {
		raw, present := row[name]
		if !present || raw == nil {
			if field.Types.Nullable() {
				continue
			}

			return nil, fmt.Errorf("%w: %s", ErrFieldMissing, name)
		}

		var attempts []error

		coerced, ok := any(nil), false

		for _, typ := range field.Types.Concrete() {
			value, err := coerceValue(raw, typ, field.Format)
			if err == nil {
				coerced, ok = value, true

				break
			}

			if errors.Is(err, ErrUnknownFieldType) {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}

			attempts = append(attempts, fmt.Errorf("%s: %w", typ, err))
		}

		if !ok {
			return nil, &FieldError{Field: name, Types: field.Types, Attempts: attempts}
		}

		out[name] = coerced
	}

	return out, nil
}

// coerceValue attempts to convert value to the given schema type.
// date-time formatted values are passed through unmodified: the platform
// already emits them as formatted strings and no timezone normalization is
// performed here.
func coerceValue(value any, fieldType, format string) (any, error) {
	if format == schema.FormatDateTime {
		return value, nil
	}

	switch fieldType {
	case schema.TypeBoolean:
		return coerceBoolean(value), nil
	case schema.TypeInteger:
		return coerceInteger(value)
	case schema.TypeNumber:
		return coerceNumber(value)
	case schema.TypeString:
		return coerceString(value)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFieldType, fieldType)
	}
}

// coerceBoolean applies truthiness coercion and cannot fail.
func coerceBoolean(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String() != ""
		}

		return f != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return value != nil
	}
}

// coerceInteger applies exact integral coercion: strings are parsed,
// floating-point values are accepted only when integral.
func coerceInteger(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}

		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v.String())
		}

		return integralFloat(f)
	case float64:
		return integralFloat(v)
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}

		return i, nil
	default:
		return 0, fmt.Errorf("value of type %T is not an integer", value)
	}
}

func integralFloat(f float64) (int64, error) {
	i := int64(f)
	if float64(i) != f {
		return 0, fmt.Errorf("%v is not integral", f)
	}

	return i, nil
}

// coerceNumber applies floating-point coercion.
func coerceNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v.String())
		}

		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("value of type %T is not a number", value)
	}
}

// coerceString passes strings through unchanged and stringifies other
// scalars, matching how the remote API interchangeably emits numeric
// metrics as strings or JSON numbers. Composite values are rejected so a
// later type in the set can still claim them.
func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("value of type %T is not a string", value)
	}
}
