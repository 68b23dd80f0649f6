package chunker

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ingestpipe/internal/textsplitters"
	"ingestpipe/internal/tokenestimator"
)

var (
	barePageBreakRE   = regexp.MustCompile(`<!--\s*PageBreak\s*-->`)
	numberedBreakRE   = regexp.MustCompile(`<!--\s*PageBreak(\d{5})\s*-->`)
	tableHTMLRE       = regexp.MustCompile(`(?s)<table>.*?</table>`)
	tablePlaceholder  = "\x00TABLE%d\x00"
	tablePlaceholdRE  = regexp.MustCompile(`\x00TABLE(\d+)\x00`)
)

// DocAnalysisChunker implements §4.6.1: layout analysis, page-break
// numbering, table-aware splitting with table merging, and budget-truncation
// with page attribution.
type DocAnalysisChunker struct {
	params Params
	layout LayoutAnalyzer
}

// NewDocAnalysisChunker constructs a DocAnalysisChunker with its parameters
// and layout analyzer captured.
func NewDocAnalysisChunker(params Params, layout LayoutAnalyzer) *DocAnalysisChunker {
	if layout == nil {
		layout = FallbackLayoutAnalyzer{}
	}
	return &DocAnalysisChunker{params: params, layout: layout}
}

func (c *DocAnalysisChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	result, err := c.layout.Analyze(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("chunker: layout analysis: %w", err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, nil
	}

	content := result.Content
	if result.IsMarkdown {
		content = numberPageBreaks(content)
	}

	tableHTML := tableHTMLRE.FindAllString(content, -1)
	tableHTML = mergeConsecutiveTables(tableHTML, result.Tables)
	stripped, placeholders := extractTables(content)

	parts := splitResidual(stripped, result.IsMarkdown, c.params)

	chunks := make([]Chunk, 0, len(parts))
	offset := 0
	for _, p := range parts {
		restored := restoreTables(p, placeholders, tableHTML)
		restored = truncateDocChunk(restored, c.params.MaxChunkSize)
		page := pageForChunk(restored)
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: stripMarkers(restored),
			Page:    page,
			Offset:  offset,
			Length:  len(restored),
		})
		offset += len(restored)
	}
	return chunks, nil
}

// numberPageBreaks replaces bare <!-- PageBreak --> markers with
// sequence-numbered variants so chunk-to-page attribution survives
// splitting (§4.6.1 step 2).
func numberPageBreaks(content string) string {
	n := 0
	return barePageBreakRE.ReplaceAllStringFunc(content, func(string) string {
		n++
		return fmt.Sprintf("<!-- PageBreak%05d -->", n)
	})
}

// extractTables replaces each <table>...</table> span with a private-use
// placeholder token so splitting never cuts a table in half, returning the
// placeholder tokens in document order.
func extractTables(content string) (string, []string) {
	var placeholders []string
	i := 0
	stripped := tableHTMLRE.ReplaceAllStringFunc(content, func(match string) string {
		tok := fmt.Sprintf(tablePlaceholder, i)
		placeholders = append(placeholders, tok)
		i++
		return tok
	})
	return stripped, placeholders
}

// mergeConsecutiveTables merges adjacent tables sharing column count and
// whose bounding regions are within 3 inches and at most one page apart,
// into one logical table's HTML before rendering (§4.6.1 step 4). Appended
// rows keep their original <tr> markup; only the merge decision depends on
// the analyzed Table metadata.
func mergeConsecutiveTables(tableHTML []string, tables []Table) []string {
	if len(tableHTML) != len(tables) || len(tables) < 2 {
		return tableHTML
	}
	var out []string
	i := 0
	for i < len(tableHTML) {
		merged := tableHTML[i]
		j := i + 1
		for j < len(tables) && tablesMergeable(tables[j-1], tables[j]) {
			merged = mergeTableHTML(merged, tableHTML[j])
			j++
		}
		out = append(out, merged)
		i = j
	}
	return out
}

func tablesMergeable(a, b Table) bool {
	if a.ColumnCount != b.ColumnCount {
		return false
	}
	if math.Abs(a.BoundingTop-b.BoundingTop) > 3 && math.Abs(a.BoundingLeft-b.BoundingLeft) > 3 {
		return false
	}
	return b.Page-a.Page <= 1
}

var tableRowRE = regexp.MustCompile(`(?s)<tr>.*?</tr>`)

// mergeTableHTML appends the second table's rows inside the first table's
// closing tag, offsetting nothing in the markup itself: row-index offsetting
// is an analyzer-side concern reflected only in the Table metadata used for
// the merge decision above.
func mergeTableHTML(first, second string) string {
	rows := tableRowRE.FindAllString(second, -1)
	if len(rows) == 0 {
		return first
	}
	closeIdx := strings.LastIndex(first, "</table>")
	if closeIdx < 0 {
		return first + strings.Join(rows, "")
	}
	return first[:closeIdx] + strings.Join(rows, "") + first[closeIdx:]
}

// restoreTables substitutes each placeholder token back with its table HTML.
func restoreTables(chunk string, placeholders, tableHTML []string) string {
	return tablePlaceholdRE.ReplaceAllStringFunc(chunk, func(tok string) string {
		for idx, p := range placeholders {
			if p == tok && idx < len(tableHTML) {
				return tableHTML[idx]
			}
		}
		return ""
	})
}

// splitResidual splits table-stripped content using a markdown-aware
// splitter when the layout output is markdown, otherwise a sentence/word
// recursive splitter (§4.6.1 step 3).
func splitResidual(text string, isMarkdown bool, params Params) []string {
	boundary := textsplitters.BoundaryConfig{Unit: textsplitters.UnitChars, Size: params.MaxChunkSize * charsPerToken, Overlap: params.TokenOverlap * charsPerToken}
	cfg := textsplitters.Config{Kind: textsplitters.KindRecursive, Recursive: textsplitters.RecursiveConfig{
		Paragraphs: boundary,
		Sentences:  boundary,
		Fallback:   textsplitters.FixedConfig{Unit: textsplitters.UnitChars, Size: boundary.Size, Overlap: boundary.Overlap},
	}}
	if isMarkdown {
		cfg.Kind = textsplitters.KindMarkdown
		cfg.Markdown = textsplitters.MarkdownConfig{Within: boundary}
	}
	s, err := textsplitters.NewFromConfig(cfg)
	if err != nil {
		s, _ = textsplitters.NewFromConfig(textsplitters.Config{Kind: textsplitters.KindFixed, Fixed: textsplitters.FixedConfig{Unit: textsplitters.UnitChars, Size: boundary.Size, Overlap: boundary.Overlap}})
	}
	parts := s.Split(text)
	if len(parts) == 0 && text != "" {
		parts = []string{text}
	}
	return parts
}

// truncateDocChunk truncates by character with an exponentially growing
// step (§4.6.1 step 5), re-appending a dropped trailing page-break marker
// when the budget still permits it.
func truncateDocChunk(chunk string, maxTokens int) string {
	if tokenestimator.Estimate(chunk) <= maxTokens {
		return chunk
	}
	lastMarkers := numberedBreakRE.FindAllString(chunk, -1)
	var trailingMarker string
	if len(lastMarkers) > 0 {
		trailingMarker = lastMarkers[len(lastMarkers)-1]
	}
	truncated := truncateToBudget(chunk, maxTokens)
	if trailingMarker != "" && !strings.Contains(truncated, trailingMarker) {
		withMarker := truncated + trailingMarker
		if tokenestimator.Estimate(withMarker) <= maxTokens {
			truncated = withMarker
		}
	}
	return truncated
}

// pageForChunk determines a chunk's page via the highest PageBreakNNNNN
// marker present: if the marker's position is in the first half of the
// chunk, the page is marker+1, else marker (§4.6.1 step 6).
func pageForChunk(chunk string) int {
	matches := numberedBreakRE.FindAllStringSubmatchIndex(chunk, -1)
	if len(matches) == 0 {
		return 1
	}
	last := matches[len(matches)-1]
	numStr := chunk[last[2]:last[3]]
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 1
	}
	pos := last[0]
	if pos < len(chunk)/2 {
		return n + 1
	}
	return n
}

func stripMarkers(chunk string) string {
	return strings.TrimSpace(numberedBreakRE.ReplaceAllString(chunk, ""))
}

var _ Chunker = (*DocAnalysisChunker)(nil)
