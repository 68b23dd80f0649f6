// Package chunker implements the Chunker Family (C6): content-type dispatch
// producing bounded-token chunk sequences, one strategy per extension,
// selected by a factory the way ChunkerFactory.get_chunker does in the
// source project, built atop internal/textsplitters the way
// internal/rag/chunker.SimpleChunker dispatches fixed/markdown/code
// strategies.
package chunker

import (
	"context"
)

// Chunk is an engine-produced fragment of a document (§3).
type Chunk struct {
	Index         int
	Content       string
	EmbeddingText string // text actually sent to the embedder; defaults to Content
	Page          int
	Offset        int
	Length        int
	Title         string
	Summary       string
	Category      string
	Filepath      string
	URL           string
	RelatedImages []string
	RelatedFiles  []string
	ImageCaptions string
	CaptionVector []float32
}

// Params are the chunker family's shared token-budget knobs, read once per
// process from config and captured at chunker construction (§9 "deep
// parameter-passing").
type Params struct {
	MaxChunkSize                       int
	MinChunkSize                       int
	TokenOverlap                       int
	Multimodal                         bool
	SpreadsheetByRow                   bool
	SpreadsheetByRowIncludeHeader      bool
	SpreadsheetNumTokens               int
	MinimumFigureAreaPercentage        float64
	FiguresContainer                   string
}

// Input is the chunker's input document. Per the design notes, document
// bytes may arrive as raw bytes or as an already-decoded string; chunkers
// must accept either via Bytes/Text without assuming which is populated.
type Input struct {
	Filename    string
	ContentType string
	Bytes       []byte
	Text        string
}

// Content returns the input's text, decoding Bytes as UTF-8 if Text is unset.
func (in Input) Content() string {
	if in.Text != "" {
		return in.Text
	}
	return string(in.Bytes)
}

// Chunker produces a chunk sequence for one document. Implementations are
// constructed with their parameters captured (Params), not re-read from a
// process-wide config on every call.
type Chunker interface {
	Chunk(ctx context.Context, in Input) ([]Chunk, error)
}
