package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenericTextChunkerProse(t *testing.T) {
	c := NewGenericTextChunker(Params{MaxChunkSize: 20, MinChunkSize: 1, TokenOverlap: 2}, SubtypeProse, "")
	text := strings.Repeat("This is a sentence about ingestion. ", 20)
	chunks, err := c.Chunk(context.Background(), Input{Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestGenericTextChunkerEmptyInput(t *testing.T) {
	c := NewGenericTextChunker(Params{MaxChunkSize: 100}, SubtypeProse, "")
	chunks, err := c.Chunk(context.Background(), Input{Text: ""})
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestTruncateToBudgetShrinksOversizedText(t *testing.T) {
	long := strings.Repeat("x", 5000)
	out := truncateToBudget(long, 10)
	require.Less(t, len(out), len(long))
}

func TestTruncateToBudgetNoopWhenUnderBudget(t *testing.T) {
	short := "a short chunk"
	out := truncateToBudget(short, 1000)
	require.Equal(t, short, out)
}
