package chunker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

1
00:00:00.000 --> 00:00:02.000
<v Alice>Hello there, welcome to the call.

2
00:00:02.000 --> 00:00:04.000
<v Alice>Let's get started on the agenda.

3
00:00:04.000 --> 00:00:06.000
<v Bob>Sounds good, I have a few updates.
`

func TestParseVTTCoalescesSameSpeaker(t *testing.T) {
	captions := parseVTT(sampleVTT)
	require.Len(t, captions, 3)
	coalesced := coalesceBySpeaker(captions)
	require.Len(t, coalesced, 2)
	require.Equal(t, "Alice", coalesced[0].Speaker)
	require.Equal(t, "Bob", coalesced[1].Speaker)
}

func TestTranscriptionChunkerSharesSummary(t *testing.T) {
	c := NewTranscriptionChunker(Params{MaxChunkSize: 50, MinChunkSize: 1}, nil)
	chunks, err := c.Chunk(context.Background(), Input{Filename: "call.vtt", Text: sampleVTT})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	first := chunks[0].EmbeddingText
	for _, ch := range chunks {
		require.Equal(t, first, ch.EmbeddingText)
	}
}

func TestTranscriptionChunkerEmptyInput(t *testing.T) {
	c := NewTranscriptionChunker(Params{MaxChunkSize: 50}, nil)
	chunks, err := c.Chunk(context.Background(), Input{Text: ""})
	require.NoError(t, err)
	require.Empty(t, chunks)
}
