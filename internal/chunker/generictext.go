package chunker

import (
	"context"

	"ingestpipe/internal/textsplitters"
	"ingestpipe/internal/tokenestimator"
)

// TextSubtype selects the splitter variant the Generic Text Chunker uses.
type TextSubtype int

const (
	SubtypeProse TextSubtype = iota
	SubtypeMarkdown
	SubtypeCode
)

// charsPerToken approximates a GPT-2-style token as 4 characters, the same
// heuristic internal/rag/chunker.go's targetLen uses, so splitters that only
// understand character budgets still respect a token budget.
const charsPerToken = 4

// GenericTextChunker splits markdown/code/prose by subtype using the
// recursive character splitter (sentence then word separators), producing
// chunks between MinChunkSize and MaxChunkSize tokens with TokenOverlap
// overlap (§4.6.7).
type GenericTextChunker struct {
	params  Params
	subtype TextSubtype
	lang    string
}

// NewGenericTextChunker constructs a GenericTextChunker with its parameters
// captured at construction. lang is the file extension, used as a code-block
// language hint when subtype is SubtypeCode; it may be empty otherwise.
func NewGenericTextChunker(params Params, subtype TextSubtype, lang string) *GenericTextChunker {
	return &GenericTextChunker{params: params, subtype: subtype, lang: lang}
}

func (c *GenericTextChunker) splitter() textsplitters.Splitter {
	targetChars := c.params.MaxChunkSize * charsPerToken
	overlapChars := c.params.TokenOverlap * charsPerToken
	boundary := textsplitters.BoundaryConfig{Unit: textsplitters.UnitChars, Size: targetChars, Overlap: overlapChars}
	cfg := textsplitters.Config{
		Kind: textsplitters.KindRecursive,
		Recursive: textsplitters.RecursiveConfig{
			Markdown:   textsplitters.MarkdownConfig{Within: boundary},
			Paragraphs: boundary,
			Sentences:  boundary,
			Fallback:   textsplitters.FixedConfig{Unit: textsplitters.UnitChars, Size: targetChars, Overlap: overlapChars},
		},
	}
	if c.subtype == SubtypeCode {
		cfg = textsplitters.Config{Kind: textsplitters.KindCode, Code: textsplitters.CodeConfig{Language: c.lang, Within: boundary}}
	}
	s, err := textsplitters.NewFromConfig(cfg)
	if err != nil {
		// Fallback that always constructs successfully.
		s, _ = textsplitters.NewFromConfig(textsplitters.Config{Kind: textsplitters.KindFixed, Fixed: textsplitters.FixedConfig{Unit: textsplitters.UnitChars, Size: targetChars, Overlap: overlapChars}})
	}
	return s
}

func (c *GenericTextChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	text := in.Content()
	if text == "" {
		return nil, nil
	}
	parts := c.splitter().Split(text)
	chunks := make([]Chunk, 0, len(parts))
	offset := 0
	for _, p := range parts {
		if tokenestimator.Estimate(p) < c.params.MinChunkSize && len(chunks) > 0 {
			continue
		}
		p = truncateToBudget(p, c.params.MaxChunkSize)
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: p,
			Offset:  offset,
			Length:  len(p),
		})
		offset += len(p)
	}
	return chunks, nil
}

// truncateToBudget truncates text by character, growing the step size the
// way the embedding client's input truncation does, until it fits maxTokens.
func truncateToBudget(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	step := 1
	iterations := 0
	for tokenestimator.Estimate(text) > maxTokens && len(text) > 0 {
		cut := step
		if cut > len(text) {
			cut = len(text)
		}
		text = text[:len(text)-cut]
		iterations++
		if iterations%5 == 0 && step < 100 {
			step *= 2
		}
	}
	return text
}

var _ Chunker = (*GenericTextChunker)(nil)
