package chunker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNL2SQLChunkerOneChunkPerEntry(t *testing.T) {
	c := NewNL2SQLChunker(Params{MaxChunkSize: 2048})
	raw := `{
		"q1": {"question": "How many orders last month?", "sql": "SELECT COUNT(*) FROM orders"},
		"q2": {"question": "Total revenue by region", "sql": "SELECT region, SUM(total) FROM orders GROUP BY region"}
	}`
	chunks, err := c.Chunk(context.Background(), Input{Text: raw})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "How many orders last month?", chunks[0].EmbeddingText)
	require.Equal(t, "Total revenue by region", chunks[1].EmbeddingText)
}

func TestNL2SQLChunkerTablesSubtreeUsesDescription(t *testing.T) {
	c := NewNL2SQLChunkerForSubtree(Params{MaxChunkSize: 2048}, SubtreeTables)
	raw := `{"orders": {"description": "Order header records", "columns": ["id", "total"]}}`
	chunks, err := c.Chunk(context.Background(), Input{Text: raw})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "Order header records", chunks[0].EmbeddingText)
}

func TestNL2SQLChunkerEmptyInput(t *testing.T) {
	c := NewNL2SQLChunker(Params{MaxChunkSize: 2048})
	chunks, err := c.Chunk(context.Background(), Input{Text: ""})
	require.NoError(t, err)
	require.Empty(t, chunks)
}
