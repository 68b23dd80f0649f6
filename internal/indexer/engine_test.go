package indexer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestpipe/internal/chunker"
	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/connectors"
	"ingestpipe/internal/runlog"
	"ingestpipe/internal/searchgateway"

	"ingestpipe/internal/objectstore"
)

type fakeConnector struct {
	items []connectors.ItemRef
}

func (f *fakeConnector) Enumerate(ctx context.Context) (<-chan connectors.ItemRef, <-chan error) {
	out := make(chan connectors.ItemRef, len(f.items))
	errs := make(chan error)
	for _, it := range f.items {
		out <- it
	}
	close(out)
	close(errs)
	return out, errs
}

func download(body string) connectors.Download {
	return func(ctx context.Context) (io.ReadCloser, string, int64, error) {
		return io.NopCloser(strings.NewReader(body)), "text/plain", int64(len(body)), nil
	}
}

type fakeChunker struct {
	chunks []chunker.Chunk
	err    error
}

func (f *fakeChunker) Chunk(ctx context.Context, in chunker.Input) ([]chunker.Chunk, error) {
	return f.chunks, f.err
}

func newLogger(t *testing.T) *runlog.Logger {
	t.Helper()
	store := objectstore.NewMemoryStore()
	l := runlog.NewLogger(store, "blob-indexer", 0)
	require.NoError(t, l.Probe(context.Background()))
	return l
}

func TestEngineIndexesNewItem(t *testing.T) {
	conn := &fakeConnector{items: []connectors.ItemRef{
		{ID: "/docs/a.txt", DisplayName: "a.txt", LastModified: time.Now(), Download: download("hello world")},
	}}
	search := searchgateway.NewFake()
	eng := &Engine{
		IndexerType: "blob-indexer",
		SourceTag:   "blob",
		Source:      conn,
		Search:      search,
		ChunkerFor: func(item connectors.ItemRef) chunker.Chunker {
			return &fakeChunker{chunks: []chunker.Chunk{{Index: 0, Content: "hello world", EmbeddingText: "hello world"}}}
		},
		Logger: newLogger(t),
	}

	summary, err := eng.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.ItemsDiscovered)
	require.Equal(t, 1, summary.IndexedItems)
	require.Equal(t, 1, summary.TotalChunksUploaded)
	require.Equal(t, 0, summary.SkippedNoChange)
	require.Equal(t, runlog.StatusFinished, summary.Status)
	require.Equal(t, 1, search.Len())
}

func TestEngineSkipsUnchangedItem(t *testing.T) {
	lastMod := time.Now().Add(-time.Hour)
	conn := &fakeConnector{items: []connectors.ItemRef{
		{ID: "/docs/a.txt", DisplayName: "a.txt", LastModified: lastMod, Download: download("hello world")},
	}}
	search := searchgateway.NewFake()
	eng := &Engine{
		IndexerType: "blob-indexer",
		SourceTag:   "blob",
		Source:      conn,
		Search:      search,
		ChunkerFor: func(item connectors.ItemRef) chunker.Chunker {
			return &fakeChunker{chunks: []chunker.Chunk{{Index: 0, Content: "hello world"}}}
		},
		Logger: newLogger(t),
	}

	_, err := eng.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, search.Len())

	summary, err := eng.Run(context.Background(), "run-2")
	require.NoError(t, err)
	require.Equal(t, 0, summary.IndexedItems)
	require.Equal(t, 1, summary.SkippedNoChange)
}

func TestEngineRecordsChunkerFailureAsItemError(t *testing.T) {
	conn := &fakeConnector{items: []connectors.ItemRef{
		{ID: "/docs/bad.txt", DisplayName: "bad.txt", LastModified: time.Now(), Download: download("x")},
	}}
	search := searchgateway.NewFake()
	eng := &Engine{
		IndexerType: "blob-indexer",
		SourceTag:   "blob",
		Source:      conn,
		Search:      search,
		ChunkerFor: func(item connectors.ItemRef) chunker.Chunker {
			return &fakeChunker{err: errChunkBoom}
		},
		Logger: newLogger(t),
	}

	summary, err := eng.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 0, summary.IndexedItems)
}

func TestEngineFreshnessErrorDoesNotCountAsCandidateFailure(t *testing.T) {
	conn := &fakeConnector{items: []connectors.ItemRef{
		{ID: "/docs/a.txt", DisplayName: "a.txt", LastModified: time.Now(), Download: download("hello")},
	}}
	search := &erroringGetDocument{FakeGateway: searchgateway.NewFake(), err: errChunkBoom}
	eng := &Engine{
		IndexerType: "blob-indexer",
		SourceTag:   "blob",
		Source:      conn,
		Search:      search,
		ChunkerFor: func(item connectors.ItemRef) chunker.Chunker {
			return &fakeChunker{chunks: []chunker.Chunk{{Index: 0, Content: "hello"}}}
		},
		Logger: newLogger(t),
	}

	summary, err := eng.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.ItemsDiscovered)
	require.Equal(t, 0, summary.CandidateItems)
	require.Equal(t, 0, summary.Failed)
	require.LessOrEqual(t, summary.IndexedItems+summary.Failed, summary.CandidateItems)
}

func TestEngineTruncatesSecurityIDsOver32(t *testing.T) {
	userIDs := make([]string, 40)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("user-%02d", i)
	}
	conn := &fakeConnector{items: []connectors.ItemRef{
		{ID: "/docs/a.txt", DisplayName: "a.txt", LastModified: time.Now(), Download: download("hello"), UserIDs: userIDs},
	}}
	search := searchgateway.NewFake()
	eng := &Engine{
		IndexerType: "blob-indexer",
		SourceTag:   "blob",
		Source:      conn,
		Search:      search,
		ChunkerFor: func(item connectors.ItemRef) chunker.Chunker {
			return &fakeChunker{chunks: []chunker.Chunk{{Index: 0, Content: "hello"}}}
		},
		Logger: newLogger(t),
	}

	_, err := eng.Run(context.Background(), "run-1")
	require.NoError(t, err)

	parentID := chunkkey.ParentKey("blob", "/docs/a.txt")
	doc, err := search.GetDocument(context.Background(), chunkkey.ChunkKey(parentID, 0))
	require.NoError(t, err)
	require.Len(t, doc.MetadataSecurityUserIDs, 32)
}

type erroringGetDocument struct {
	*searchgateway.FakeGateway
	err error
}

func (e *erroringGetDocument) GetDocument(ctx context.Context, key string) (searchgateway.Document, error) {
	return searchgateway.Document{}, e.err
}

var errChunkBoom = &chunkBoomError{}

type chunkBoomError struct{}

func (e *chunkBoomError) Error() string { return "boom" }
