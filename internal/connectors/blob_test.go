package connectors

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/objectstore"
)

func TestBlobConnectorSkipsDirectoryMarkers(t *testing.T) {
	store := objectstore.NewMemoryStore()
	_, err := store.Put(context.Background(), "docs/a.pdf", strings.NewReader("content"), objectstore.PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "docs/sub/", strings.NewReader(""), objectstore.PutOptions{})
	require.NoError(t, err)

	conn := NewBlobConnector(store, "docs/")
	items, errs := conn.Enumerate(context.Background())

	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	require.Equal(t, "docs/a.pdf", got[0].ID)
}

func TestBlobConnectorDownloadReturnsContent(t *testing.T) {
	store := objectstore.NewMemoryStore()
	_, err := store.Put(context.Background(), "docs/a.txt", strings.NewReader("hello"), objectstore.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	conn := NewBlobConnector(store, "docs/")
	items, errs := conn.Enumerate(context.Background())
	var refs []ItemRef
	for it := range items {
		refs = append(refs, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, refs, 1)

	rc, ctype, _, err := refs[0].Download(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, "text/plain", ctype)
}

func TestBlobConnectorEmptySource(t *testing.T) {
	store := objectstore.NewMemoryStore()
	conn := NewBlobConnector(store, "docs/")
	items, errs := conn.Enumerate(context.Background())
	var count int
	for range items {
		count++
	}
	require.NoError(t, drain(errs))
	require.Zero(t, count)
}

func TestBlobConnectorReadsPermissionsMetadata(t *testing.T) {
	store := objectstore.NewMemoryStore()
	_, err := store.Put(context.Background(), "docs/a.pdf", strings.NewReader("content"), objectstore.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"permissions": `["user-1", "user-2"]`},
	})
	require.NoError(t, err)

	conn := NewBlobConnector(store, "docs/")
	items, errs := conn.Enumerate(context.Background())
	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	require.Equal(t, []string{"user-1", "user-2"}, got[0].UserIDs)
	require.Empty(t, got[0].GroupIDs)
}

func drain(errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	case <-time.After(time.Second):
		return nil
	}
}
