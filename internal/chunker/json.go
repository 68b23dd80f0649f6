package chunker

import (
	"context"
	"encoding/json"
	"sort"

	"ingestpipe/internal/tokenestimator"
)

// JSONChunker recursively partitions a parsed JSON value so each partition,
// pretty-printed, fits the token budget (§4.6.5).
type JSONChunker struct {
	params Params
}

// NewJSONChunker constructs a JSONChunker with its parameters captured.
func NewJSONChunker(params Params) *JSONChunker {
	return &JSONChunker{params: params}
}

func (c *JSONChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	raw := in.Content()
	if raw == "" {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	var partitions []string
	partition(value, c.params.MaxChunkSize, &partitions)

	chunks := make([]Chunk, 0, len(partitions))
	offset := 0
	for _, p := range partitions {
		if tokenestimator.Estimate(p) < c.params.MinChunkSize {
			continue
		}
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

// partition implements the list/object/scalar recursion of §4.6.5: lists
// greedily accumulate items until the next one would overflow, then recurse
// into an overflowing single item if it's a container; objects do the same
// over key-value pairs; scalars emit whole.
func partition(value any, maxTokens int, out *[]string) {
	switch v := value.(type) {
	case []any:
		partitionSlice(v, maxTokens, out)
	case map[string]any:
		partitionObject(v, maxTokens, out)
	default:
		*out = append(*out, render(v))
	}
}

func partitionSlice(items []any, maxTokens int, out *[]string) {
	var acc []any
	flush := func() {
		if len(acc) > 0 {
			*out = append(*out, render(acc))
			acc = nil
		}
	}
	for _, item := range items {
		candidate := append(append([]any{}, acc...), item)
		if tokenestimator.Estimate(render(candidate)) <= maxTokens {
			acc = candidate
			continue
		}
		flush()
		if tokenestimator.Estimate(render(item)) <= maxTokens {
			*out = append(*out, render(item))
			continue
		}
		switch item.(type) {
		case []any, map[string]any:
			partition(item, maxTokens, out)
		default:
			*out = append(*out, render(item))
		}
	}
	flush()
}

func partitionObject(obj map[string]any, maxTokens int, out *[]string) {
	keys := orderedKeys(obj)
	acc := map[string]any{}
	flush := func() {
		if len(acc) > 0 {
			*out = append(*out, render(acc))
			acc = map[string]any{}
		}
	}
	for _, k := range keys {
		v := obj[k]
		candidate := cloneMap(acc)
		candidate[k] = v
		if tokenestimator.Estimate(render(candidate)) <= maxTokens {
			acc = candidate
			continue
		}
		flush()
		single := map[string]any{k: v}
		if tokenestimator.Estimate(render(single)) <= maxTokens {
			*out = append(*out, render(single))
			continue
		}
		switch v.(type) {
		case []any, map[string]any:
			partition(v, maxTokens, out)
		default:
			*out = append(*out, render(single))
		}
	}
	flush()
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// orderedKeys walks a decoded object's keys in sorted order so partitioning
// is deterministic across runs (map iteration order is not).
func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

var _ Chunker = (*JSONChunker)(nil)
