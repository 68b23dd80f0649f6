package purger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/objectstore"
	"ingestpipe/internal/searchgateway"
)

func TestFiguresPurgerDeletesOrphanDirectory(t *testing.T) {
	store := objectstore.NewMemoryStore()
	search := searchgateway.NewFake()
	ctx := context.Background()

	keptParent := chunkkey.ParentKey("blob", "/docs/kept.pdf")
	orphanParent := chunkkey.ParentKey("blob", "/docs/gone.pdf")
	keptDir := chunkkey.Sanitize(strings.TrimPrefix(keptParent, "/"))
	orphanDir := chunkkey.Sanitize(strings.TrimPrefix(orphanParent, "/"))

	_, err := store.Put(ctx, "figures/"+keptDir+"/fig1.png", strings.NewReader("a"), objectstore.PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "figures/"+orphanDir+"/fig1.png", strings.NewReader("b"), objectstore.PutOptions{})
	require.NoError(t, err)

	_, err = search.UploadDocuments(ctx, []searchgateway.Document{
		{ID: chunkkey.ChunkKey(keptParent, 0), ParentID: keptParent, Source: "blob"},
	})
	require.NoError(t, err)

	purger := &FiguresPurger{Store: store, Prefix: "figures", Search: search}
	summary, err := purger.Run(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 2, summary.DocsScanned)
	require.Equal(t, 1, summary.DocsDeleted)

	exists, err := store.Exists(ctx, "figures/"+orphanDir+"/fig1.png")
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = store.Exists(ctx, "figures/"+keptDir+"/fig1.png")
	require.NoError(t, err)
	require.True(t, exists)
}
