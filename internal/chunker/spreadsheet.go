package chunker

import (
	"context"
	"fmt"
	"strings"

	"ingestpipe/internal/embedding"
	"ingestpipe/internal/tokenestimator"
)

const spreadsheetSummaryPrompt = "Summarize this spreadsheet data in a few sentences, covering what it records and any notable values:\n\n%s"

// SpreadsheetChunker implements §4.6.3's two modes: per-sheet (one summarized
// chunk for the whole grid) and per-row (one chunk per non-empty row).
type SpreadsheetChunker struct {
	params Params
	chat   *embedding.ChatClient
}

// NewSpreadsheetChunker constructs a SpreadsheetChunker with its parameters
// and chat-completion client captured.
func NewSpreadsheetChunker(params Params, chat *embedding.ChatClient) *SpreadsheetChunker {
	return &SpreadsheetChunker{params: params, chat: chat}
}

func (c *SpreadsheetChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	sheet, err := parseXLSX([]byte(in.Content()))
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}
	if c.params.SpreadsheetByRow {
		return c.chunkByRow(in, sheet), nil
	}
	return c.chunkBySheet(ctx, in, sheet)
}

func (c *SpreadsheetChunker) chunkBySheet(ctx context.Context, in Input, sheet xlsxSheet) ([]Chunk, error) {
	table := renderMarkdownTable(collapseRows(sheet.Rows))
	budget := c.spreadsheetBudget()

	content := table
	embeddingText := table
	var summary string
	if c.chat != nil {
		if s, err := c.chat.Complete(ctx, fmt.Sprintf(spreadsheetSummaryPrompt, table), 512); err == nil && s != "" {
			summary = s
		}
	}
	if summary != "" {
		embeddingText = summary
		if tokenestimator.Estimate(table) > budget {
			content = summary
		}
	}
	return []Chunk{{
		Index:         0,
		Content:       content,
		EmbeddingText: embeddingText,
		Summary:       summary,
		Length:        len(content),
		Filepath:      in.Filename,
	}}, nil
}

func (c *SpreadsheetChunker) chunkByRow(in Input, sheet xlsxSheet) []Chunk {
	header := sheet.Rows[0]
	budget := c.spreadsheetBudget()

	var chunks []Chunk
	offset := 0
	for i := 1; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		if rowEmpty(row) {
			continue
		}
		var table string
		if c.params.SpreadsheetByRowIncludeHeader {
			table = renderMarkdownTable([][]string{header, row})
		} else {
			table = renderMarkdownTable([][]string{row})
		}
		content := truncateToBudget(table, budget)
		embText := truncateToBudget(rowEmbeddingText(in.Filename, i, header, row), budget)
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Content:       content,
			EmbeddingText: embText,
			Offset:        offset,
			Length:        len(content),
			Filepath:      in.Filename,
		})
		offset += len(content)
	}
	return chunks
}

func (c *SpreadsheetChunker) spreadsheetBudget() int {
	if c.params.SpreadsheetNumTokens > 0 {
		return c.params.SpreadsheetNumTokens
	}
	return c.params.MaxChunkSize
}

// rowEmbeddingText builds the compact positional schema from §4.6.3:
// "file=…\nsheet=…\nrow=N\ncols=h1|h2|…\nvals=v1|v2|…"
func rowEmbeddingText(filename string, rowIndex int, header, row []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "file=%s\n", filename)
	fmt.Fprintf(&b, "sheet=1\n")
	fmt.Fprintf(&b, "row=%d\n", rowIndex)
	fmt.Fprintf(&b, "cols=%s\n", strings.Join(header, "|"))
	fmt.Fprintf(&b, "vals=%s", strings.Join(row, "|"))
	return b.String()
}

func renderMarkdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	cols := len(rows[0])
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < cols; i++ {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(cell, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return b.String()
}

// collapseRows collapses internal whitespace runs within each cell so the
// rendered table stays compact (§4.6.3 "collapse whitespace").
func collapseRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.Join(strings.Fields(c), " ")
		}
		out[i] = cells
	}
	return out
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var _ Chunker = (*SpreadsheetChunker)(nil)
