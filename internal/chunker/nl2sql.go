package chunker

import (
	"context"
	"encoding/json"
	"sort"
)

// NL2SQLSubtree identifies which of the three NL2SQL source subtrees a
// document came from, determining its embedding-text field mapping
// (SPEC_FULL §C.5, restoring the full field mapping the distilled spec only
// mentions in passing at §4.7).
type NL2SQLSubtree int

const (
	SubtreeQueries NL2SQLSubtree = iota
	SubtreeTables
	SubtreeMeasures
)

// NL2SQLChunker produces one chunk per top-level entry of a {query-id ->
// record} JSON dictionary (§4.6.6). Chunk content is the pretty-printed
// record; embedding text depends on the subtree: the "question" field for
// queries, a synthesized schema description for tables/measures.
type NL2SQLChunker struct {
	params  Params
	subtree NL2SQLSubtree
}

// NewNL2SQLChunker constructs an NL2SQLChunker defaulting to the queries
// subtree; use NewNL2SQLChunkerForSubtree when the connector knows which of
// queries/tables/measures produced the input.
func NewNL2SQLChunker(params Params) *NL2SQLChunker {
	return &NL2SQLChunker{params: params, subtree: SubtreeQueries}
}

// NewNL2SQLChunkerForSubtree constructs an NL2SQLChunker for a known subtree.
func NewNL2SQLChunkerForSubtree(params Params, subtree NL2SQLSubtree) *NL2SQLChunker {
	return &NL2SQLChunker{params: params, subtree: subtree}
}

func (c *NL2SQLChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	raw := in.Content()
	if raw == "" {
		return nil, nil
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chunks := make([]Chunk, 0, len(ids))
	offset := 0
	for _, id := range ids {
		var fields map[string]any
		if err := json.Unmarshal(records[id], &fields); err != nil {
			continue
		}
		body := render(fields)
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Content:       body,
			EmbeddingText: embeddingTextFor(c.subtree, fields, body),
			Offset:        offset,
			Length:        len(body),
		})
		offset += len(body)
	}
	return chunks, nil
}

func embeddingTextFor(subtree NL2SQLSubtree, fields map[string]any, fallback string) string {
	switch subtree {
	case SubtreeQueries:
		if q, ok := fields["question"].(string); ok && q != "" {
			return q
		}
	case SubtreeTables, SubtreeMeasures:
		if d, ok := fields["description"].(string); ok && d != "" {
			return d
		}
		if s, ok := fields["schema"]; ok {
			return render(s)
		}
	}
	return fallback
}

var _ Chunker = (*NL2SQLChunker)(nil)
