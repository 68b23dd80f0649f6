package chunker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONChunkerPartitionsLargeList(t *testing.T) {
	c := NewJSONChunker(Params{MaxChunkSize: 10, MinChunkSize: 0})
	items := `{"values":[` +
		`"alpha","beta","gamma","delta","epsilon","zeta","eta","theta","iota","kappa"` +
		`]}`
	chunks, err := c.Chunk(context.Background(), Input{Text: items})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.LessOrEqual(t, len(ch.Content), 400)
	}
}

func TestJSONChunkerEmptyInput(t *testing.T) {
	c := NewJSONChunker(Params{MaxChunkSize: 100})
	chunks, err := c.Chunk(context.Background(), Input{Text: ""})
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestJSONChunkerScalarEmitsSinglePartition(t *testing.T) {
	c := NewJSONChunker(Params{MaxChunkSize: 100, MinChunkSize: 0})
	chunks, err := c.Chunk(context.Background(), Input{Text: `"just a string"`})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestJSONChunkerDropsBelowMinimum(t *testing.T) {
	c := NewJSONChunker(Params{MaxChunkSize: 1000, MinChunkSize: 1000})
	chunks, err := c.Chunk(context.Background(), Input{Text: `{"a":1}`})
	require.NoError(t, err)
	require.Empty(t, chunks)
}
