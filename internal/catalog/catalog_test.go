package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/rosterctl/internal/api"
)

type fakeSource struct {
	resp  api.FieldsResponse
	err   error
	calls int
}

func (f *fakeSource) FetchFields(context.Context) (api.FieldsResponse, error) {
	f.calls++
	return f.resp, f.err
}

func TestLoaderLoadsOnce(t *testing.T) {
	t.Parallel()

	src := &fakeSource{resp: api.FieldsResponse{
		Fields: []api.Field{
			{ID: "name", Label: "Name"},
			{ID: "age", Label: ""},
			{ID: "name", Label: "Duplicate"},
			{ID: "", Label: "Blank"},
		},
		Default: []string{"name"},
	}}
	l := NewLoader(src, nil)

	cat, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []FieldOption{{ID: "name", Label: "Name"}, {ID: "age", Label: "age"}}, cat.Fields)
	require.Equal(t, []string{"name"}, cat.Default)

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
}

func TestLoaderDropsUnknownDefaults(t *testing.T) {
	t.Parallel()

	src := &fakeSource{resp: api.FieldsResponse{
		Fields:  []api.Field{{ID: "name", Label: "Name"}, {ID: "age", Label: "Age"}},
		Default: []string{"age", "retired_field", "name", "age"},
	}}

	cat, err := NewLoader(src, nil).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"age", "name"}, cat.Default)
	for _, id := range cat.Default {
		require.True(t, cat.Has(id))
	}
}

func TestLoaderFailureReportedOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	src := &fakeSource{err: errors.New("503")}
	l := NewLoader(src, zap.New(core))

	cat, err := l.Load(context.Background())
	require.Error(t, err)
	require.True(t, cat.Empty())

	cat, err = l.Load(context.Background())
	require.Error(t, err)
	require.True(t, cat.Empty())
	require.Equal(t, 1, src.calls)
	require.Equal(t, 1, logs.Len())
}

func TestCatalogLookups(t *testing.T) {
	t.Parallel()

	cat := Catalog{Fields: []FieldOption{{ID: "name", Label: "Name"}, {ID: "age", Label: "Age"}}}
	require.Equal(t, "Age", cat.Label("age"))
	require.Equal(t, "unknown_col", cat.Label("unknown_col"))
	require.True(t, cat.Has("name"))
	require.False(t, cat.Has("height"))
	require.Equal(t, []string{"name", "age"}, cat.IDs())
}
