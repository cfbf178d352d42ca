package selection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rosterctl/internal/catalog"
)

var testCatalog = catalog.Catalog{
	Fields: []catalog.FieldOption{
		{ID: "name", Label: "Name"},
		{ID: "position", Label: "Position"},
		{ID: "age", Label: "Age"},
	},
	Default: []string{"age", "name"},
}

func TestToggle(t *testing.T) {
	t.Parallel()

	s := New(testCatalog)
	s.Toggle("age")
	s.Toggle("name")
	require.Equal(t, []string{"name", "age"}, s.IDs())

	s.Toggle("age")
	require.Equal(t, []string{"name"}, s.IDs())
	require.False(t, s.Has("age"))
}

func TestTogglePermitsUnknownIDs(t *testing.T) {
	t.Parallel()

	s := New(testCatalog)
	s.Toggle("zeta")
	s.Toggle("alpha")
	s.Toggle("position")
	require.Equal(t, []string{"position", "alpha", "zeta"}, s.IDs())
	require.Equal(t, 3, s.Len())
}

func TestSelectAllDefaultClear(t *testing.T) {
	t.Parallel()

	s := New(testCatalog)
	s.Toggle("stale")
	s.SelectAll()
	require.Equal(t, []string{"name", "position", "age"}, s.IDs())

	s.SelectDefault()
	require.Equal(t, []string{"name", "age"}, s.IDs())

	s.Clear()
	require.Empty(t, s.IDs())
	require.Zero(t, s.Len())
}

func TestEmptyCatalog(t *testing.T) {
	t.Parallel()

	s := New(catalog.Catalog{})
	s.SelectAll()
	require.Empty(t, s.IDs())
	s.SelectDefault()
	require.Empty(t, s.IDs())
}
