package connectors

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/objectstore"
)

func TestNL2SQLConnectorEnumeratesOnlySubtree(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Put(ctx, "queries/q1.json", strings.NewReader(`{}`), objectstore.PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "tables/t1.json", strings.NewReader(`{}`), objectstore.PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "queries/readme.txt", strings.NewReader("n/a"), objectstore.PutOptions{})
	require.NoError(t, err)

	conn := NewNL2SQLConnector(store, NL2SQLQueries)
	items, errs := conn.Enumerate(ctx)
	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	require.Equal(t, "queries/q1.json", got[0].ID)
}

func TestNL2SQLConnectorDownload(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Put(ctx, "measures/m1.json", strings.NewReader(`{"x":1}`), objectstore.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	conn := NewNL2SQLConnector(store, NL2SQLMeasures)
	items, errs := conn.Enumerate(ctx)
	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	rc, _, _, err := got[0].Download(ctx)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	require.Equal(t, `{"x":1}`, string(body))
}
