package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/objectstore"
)

func TestProbeEnablesWrites(t *testing.T) {
	store := objectstore.NewMemoryStore()
	l := NewLogger(store, "blob-indexer", 0)
	require.NoError(t, l.Probe(context.Background()))

	err := l.WriteRunSummary(context.Background(), RunSummary{RunID: "r1", Status: StatusStarted})
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), "blob-indexer/runs/r1.started.json")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.Exists(context.Background(), "blob-indexer/runs/r1.json")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.Exists(context.Background(), "blob-indexer/runs/latest.json")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.Exists(context.Background(), "blob-indexer/runs/r1.pointer.json")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestWriteItemLogSanitizesKey(t *testing.T) {
	store := objectstore.NewMemoryStore()
	l := NewLogger(store, "blob-indexer", 0)
	require.NoError(t, l.Probe(context.Background()))

	err := l.WriteItemLog(context.Background(), "/docs/a.pdf", ItemLogRecord{
		RunID: "r1", ParentID: "/docs/a.pdf", Outcome: "success", ChunkCount: 3, Timestamp: time.Now(),
	})
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), "blob-indexer/files/docs-a-pdf.json")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestWritesDisabledAfterFailedProbe(t *testing.T) {
	store := objectstore.NewMemoryStore()
	l := NewLogger(store, "blob-indexer", 0)
	// Simulate a prior failed probe directly.
	l.writable.Store(false)

	err := l.WriteRunSummary(context.Background(), RunSummary{RunID: "r1", Status: StatusStarted})
	require.Error(t, err)
}
