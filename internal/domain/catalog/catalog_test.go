package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Positive(t, c.Len())

	it, ok := c.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "Greek salad", it.Name)
	assert.True(t, decimal.RequireFromString("12").Equal(it.Price))

	assert.Contains(t, c.Categories(), "Salad")
	for _, it := range c.Category("Salad") {
		assert.Equal(t, "Salad", it.Category)
	}
	assert.Len(t, c.Category("All"), c.Len())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`[
		{"id": "a", "name": "A", "price": 10.00, "category": "X", "rating": 5},
		{"_id": 2, "name": "B", "price": "5.50", "image": null}
	]`))
	require.NoError(t, err)

	price, ok := c.Price("a")
	require.True(t, ok)
	assert.Equal(t, "10", price.String())

	b, ok := c.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "5.5", b.Price.String())
	assert.Empty(t, b.Image)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"X"}, c.Categories())
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  string
	}{
		{"empty id", []Item{{Name: "x"}}, "empty id"},
		{"duplicate", []Item{{ID: "1"}, {ID: "1"}}, "duplicate item id"},
		{"negative price", []Item{{ID: "1", Price: decimal.NewFromInt(-1)}}, "negative price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.items)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestItemsIsCopy(t *testing.T) {
	c, err := New([]Item{{ID: "1", Name: "A"}})
	require.NoError(t, err)

	items := c.Items()
	items[0].Name = "changed"

	it, _ := c.Lookup("1")
	assert.Equal(t, "A", it.Name)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"z","name":"Z","price":1}]`), 0o600))

	c, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = Open(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)

	_, err = Parse([]byte(`{"not":"an array"}`))
	require.Error(t, err)
}
