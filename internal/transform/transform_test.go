package transform

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonobos/tap-facebook/internal/schema"
)

func fieldSchema(name string, field schema.Field) schema.Schema {
	return schema.Schema{Fields: map[string]schema.Field{name: field}}
}

func TestTransformNullableAbsence(t *testing.T) {
	sch := fieldSchema("name", schema.Field{Types: schema.TypeSet{"string", "null"}})

	t.Run("absent field omitted", func(t *testing.T) {
		out, err := Transform(map[string]any{}, sch)
		require.NoError(t, err)

		_, present := out["name"]
		assert.False(t, present, "nullable absent field must yield no output key")
	})

	t.Run("explicit null omitted", func(t *testing.T) {
		out, err := Transform(map[string]any{"name": nil}, sch)
		require.NoError(t, err)
		assert.NotContains(t, out, "name")
	})

	t.Run("absent non-nullable field fails", func(t *testing.T) {
		strict := fieldSchema("name", schema.Field{Types: schema.TypeSet{"string"}})

		_, err := Transform(map[string]any{}, strict)
		assert.ErrorIs(t, err, ErrFieldMissing)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestTransformFirstSuccessCoercion(t *testing.T) {
	t.Run("string integer coerced", func(t *testing.T) {
		sch := fieldSchema("impressions", schema.Field{Types: schema.TypeSet{"integer"}})

		out, err := Transform(map[string]any{"impressions": "42"}, sch)
		require.NoError(t, err)
		assert.Equal(t, int64(42), out["impressions"])
	})

	t.Run("unparseable integer names the field", func(t *testing.T) {
		sch := fieldSchema("impressions", schema.Field{Types: schema.TypeSet{"integer"}})

		_, err := Transform(map[string]any{"impressions": "abc"}, sch)
		require.Error(t, err)

		var fieldErr *FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "impressions", fieldErr.Field)
		assert.Len(t, fieldErr.Attempts, 1)
	})

	t.Run("ordering determines outcome", func(t *testing.T) {
		// integer first: "7" lands as int64. string first: stays a string.
		intFirst := fieldSchema("frequency", schema.Field{Types: schema.TypeSet{"integer", "string"}})
		strFirst := fieldSchema("frequency", schema.Field{Types: schema.TypeSet{"string", "integer"}})

		out, err := Transform(map[string]any{"frequency": "7"}, intFirst)
		require.NoError(t, err)
		assert.Equal(t, int64(7), out["frequency"])

		out, err = Transform(map[string]any{"frequency": "7"}, strFirst)
		require.NoError(t, err)
		assert.Equal(t, "7", out["frequency"])
	})

	t.Run("falls through failed candidate", func(t *testing.T) {
		sch := fieldSchema("ctr", schema.Field{Types: schema.TypeSet{"integer", "number"}})

		out, err := Transform(map[string]any{"ctr": "0.034"}, sch)
		require.NoError(t, err)
		assert.Equal(t, 0.034, out["ctr"])
	})

	t.Run("all candidates aggregated on failure", func(t *testing.T) {
		sch := fieldSchema("spend", schema.Field{Types: schema.TypeSet{"integer", "number"}})

		_, err := Transform(map[string]any{"spend": "lots"}, sch)

		var fieldErr *FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Len(t, fieldErr.Attempts, 2)
		assert.Contains(t, fieldErr.Error(), "integer")
		assert.Contains(t, fieldErr.Error(), "number")
	})
}

func TestTransformScalars(t *testing.T) {
	t.Run("boolean truthiness", func(t *testing.T) {
		sch := fieldSchema("is_active", schema.Field{Types: schema.TypeSet{"boolean"}})

		for raw, want := range map[any]bool{
			true:               true,
			"":                 false,
			"false":            true, // truthiness, not parsing
			json.Number("0"):   false,
			json.Number("1.5"): true,
			0:                  false,
		} {
			out, err := Transform(map[string]any{"is_active": raw}, sch)
			require.NoError(t, err)
			assert.Equal(t, want, out["is_active"], "raw %#v", raw)
		}
	})

	t.Run("json number integer", func(t *testing.T) {
		sch := fieldSchema("clicks", schema.Field{Types: schema.TypeSet{"integer"}})

		out, err := Transform(map[string]any{"clicks": json.Number("1200")}, sch)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), out["clicks"])

		// Integral float is accepted, fractional is not.
		out, err = Transform(map[string]any{"clicks": json.Number("12.0")}, sch)
		require.NoError(t, err)
		assert.Equal(t, int64(12), out["clicks"])

		_, err = Transform(map[string]any{"clicks": json.Number("12.5")}, sch)
		assert.Error(t, err)
	})

	t.Run("date-time passthrough", func(t *testing.T) {
		sch := fieldSchema("updated_time", schema.Field{
			Types:  schema.TypeSet{"string"},
			Format: schema.FormatDateTime,
		})

		raw := "2021-01-03T07:12:55-0800"
		out, err := Transform(map[string]any{"updated_time": raw}, sch)
		require.NoError(t, err)
		assert.Equal(t, raw, out["updated_time"], "no timezone normalization")
	})

	t.Run("string accepts scalars", func(t *testing.T) {
		sch := fieldSchema("spend", schema.Field{Types: schema.TypeSet{"string"}})

		// Numeric metrics arrive interchangeably as strings or JSON
		// numbers depending on the field; a string-typed field must take
		// both.
		for raw, want := range map[any]string{
			"12.34":              "12.34",
			json.Number("12.34"): "12.34",
			123:                  "123",
			int64(99):            "99",
			1.5:                  "1.5",
			true:                 "true",
		} {
			out, err := Transform(map[string]any{"spend": raw}, sch)
			require.NoError(t, err, "raw %#v", raw)
			assert.Equal(t, want, out["spend"], "raw %#v", raw)
		}
	})

	t.Run("string rejects composites", func(t *testing.T) {
		sch := fieldSchema("id", schema.Field{Types: schema.TypeSet{"string"}})

		_, err := Transform(map[string]any{"id": []any{"c1"}}, sch)
		assert.Error(t, err, "a later type in the set may still claim composites")
	})
}

func TestTransformUnknownFieldType(t *testing.T) {
	sch := fieldSchema("reach", schema.Field{Types: schema.TypeSet{"decimal"}})

	_, err := Transform(map[string]any{"reach": "9"}, sch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFieldType)

	var fieldErr *FieldError
	assert.False(t, errors.As(err, &fieldErr), "config errors must not look like data errors")
}

func TestTransformDropsUndeclaredKeys(t *testing.T) {
	sch := fieldSchema("id", schema.Field{Types: schema.TypeSet{"string"}})

	out, err := Transform(map[string]any{"id": "c1", "extra": 5}, sch)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "c1"}, out)
}
