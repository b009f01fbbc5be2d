package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
streams:
  campaigns:
    fields:
      id: {type: string, selected: true}
      name: {type: [string, "null"], selected: true}
      account_id: {type: string}
  ads_insights:
    fields:
      date_start: {type: string, format: date-time, selected: true}
      impressions: {type: [integer, "null"], selected: true}
      spend: {type: [number, "null"]}
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	t.Run("stream names sorted", func(t *testing.T) {
		assert.Equal(t, []string{"ads_insights", "campaigns"}, catalog.StreamNames())
	})

	t.Run("selected fields only", func(t *testing.T) {
		sch, err := catalog.Schema("campaigns")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, sch.SelectedFields())
	})

	t.Run("scalar and list type forms", func(t *testing.T) {
		sch, err := catalog.Schema("ads_insights")
		require.NoError(t, err)

		assert.Equal(t, TypeSet{"string"}, sch.Fields["date_start"].Types)
		assert.Equal(t, FormatDateTime, sch.Fields["date_start"].Format)
		assert.Equal(t, TypeSet{"integer", "null"}, sch.Fields["impressions"].Types)
	})

	t.Run("unknown stream", func(t *testing.T) {
		_, err := catalog.Schema("adsets")
		assert.ErrorIs(t, err, ErrUnknownStream)
	})
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	t.Run("empty catalog", func(t *testing.T) {
		_, err := ParseCatalog([]byte("streams: {}\n"))
		assert.ErrorIs(t, err, ErrCatalogEmpty)
	})

	t.Run("field missing type", func(t *testing.T) {
		_, err := ParseCatalog([]byte("streams:\n  ads:\n    fields:\n      id: {selected: true}\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema missing type")
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := ParseCatalog([]byte("streams:\n  ads:\n    fields:\n      id: {type: string, selectd: true}\n"))
		assert.Error(t, err)
	})
}

func TestTypeSet(t *testing.T) {
	ts := TypeSet{"integer", "null", "string"}

	if !ts.Nullable() {
		t.Errorf("Nullable() = false, want true")
	}

	assert.Equal(t, []string{"integer", "string"}, ts.Concrete())

	if (TypeSet{"integer"}).Nullable() {
		t.Errorf("Nullable() = true for non-null set")
	}
}
