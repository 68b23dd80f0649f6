package purger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/connectors"
	"ingestpipe/internal/searchgateway"
)

type staticConnector struct {
	items []connectors.ItemRef
}

func (s *staticConnector) Enumerate(ctx context.Context) (<-chan connectors.ItemRef, <-chan error) {
	out := make(chan connectors.ItemRef, len(s.items))
	errs := make(chan error, 1)
	for _, it := range s.items {
		out <- it
	}
	close(out)
	close(errs)
	return out, errs
}

func TestEnginePurgesOrphanedDocuments(t *testing.T) {
	search := searchgateway.NewFake()
	kept := chunkkey.ParentKey("blob", "/docs/kept.pdf")
	deleted := chunkkey.ParentKey("blob", "/docs/deleted.pdf")

	ctx := context.Background()
	_, err := search.UploadDocuments(ctx, []searchgateway.Document{
		{ID: chunkkey.ChunkKey(kept, 0), ParentID: kept, Source: "blob"},
		{ID: chunkkey.ChunkKey(kept, 1), ParentID: kept, Source: "blob"},
		{ID: chunkkey.ChunkKey(deleted, 0), ParentID: deleted, Source: "blob"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, search.Len())

	conn := &staticConnector{items: []connectors.ItemRef{
		{ID: "/docs/kept.pdf", LastModified: time.Now()},
	}}
	eng := NewEngine("blob", conn, search, nil)

	summary, err := eng.Run(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 3, summary.DocsScanned)
	require.Equal(t, 1, summary.DocsDeleted)
	require.Equal(t, 0, summary.DocsFailedDelete)
	require.Equal(t, 2, search.Len())
}

func TestEngineLeavesOtherSourcesAlone(t *testing.T) {
	search := searchgateway.NewFake()
	ctx := context.Background()
	_, err := search.UploadDocuments(ctx, []searchgateway.Document{
		{ID: "other-c00000", ParentID: "/lists/x", Source: "sharepoint-list"},
	})
	require.NoError(t, err)

	conn := &staticConnector{}
	eng := NewEngine("blob", conn, search, nil)

	summary, err := eng.Run(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 0, summary.DocsScanned)
	require.Equal(t, 1, search.Len())
}
