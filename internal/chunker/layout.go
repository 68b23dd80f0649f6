package chunker

import (
	"context"
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Paragraph is one analyzed paragraph with its position in the document.
type Paragraph struct {
	Content string
	Offset  int
	Page    int
}

// TableCell is one cell of an analyzed table.
type TableCell struct {
	RowIndex, ColumnIndex int
	RowSpan, ColumnSpan   int
	Content               string
}

// Table is one analyzed table, in document order.
type Table struct {
	Cells         []TableCell
	ColumnCount   int
	Page          int
	BoundingTop   float64 // inches from page top, best-effort
	BoundingLeft  float64
}

// Page describes one page of the analyzed document.
type Page struct {
	Number int
	Width  float64
	Height float64
}

// Figure is a non-text region detected by the layout analyzer (§GLOSSARY).
type Figure struct {
	ID          string
	Page        int
	BoundingAreaSqIn float64 // summed bounding-polygon area across regions, in square inches
	ImageBytes  []byte
}

// LayoutResult is the external layout service's output (§4.6.1 step 1): the
// actual document-layout analysis provider is out of scope per the purpose
// statement, specified here only at the contract level.
type LayoutResult struct {
	Content      string // markdown or plain text, with <table> and <figure> placeholders inline
	IsMarkdown   bool
	Paragraphs   []Paragraph
	Tables       []Table
	Pages        []Page
	Figures      []Figure
}

// LayoutAnalyzer is the contract the Doc-Analysis and Multimodal chunkers
// invoke. A real implementation calls out to a layout-analysis provider
// (e.g. a document-intelligence service); FallbackLayoutAnalyzer below
// treats input as already-plain text, for environments without one
// configured.
type LayoutAnalyzer interface {
	Analyze(ctx context.Context, in Input) (LayoutResult, error)
}

// FallbackLayoutAnalyzer treats the raw input as single-page plain text,
// with no tables or figures. It lets Doc-Analysis/Multimodal chunkers run
// (and their tests pass) without a live layout-analysis provider configured.
type FallbackLayoutAnalyzer struct{}

func (FallbackLayoutAnalyzer) Analyze(ctx context.Context, in Input) (LayoutResult, error) {
	return LayoutResult{
		Content:    in.Content(),
		IsMarkdown: false,
		Pages:      []Page{{Number: 1}},
	}, nil
}

// HTMLLayoutAnalyzer decorates a LayoutAnalyzer whose Content is raw HTML
// (IsMarkdown false, but actual markup rather than plain text) and converts
// it to Markdown the way internal/tools/web/fetch.go converts fetched pages,
// so Doc-Analysis/Multimodal chunking always splits Markdown. <table> blocks
// are left as-is beforehand so the table-merge step (§4.6.1 step 4) still
// sees them.
type HTMLLayoutAnalyzer struct {
	Inner LayoutAnalyzer
}

func (a HTMLLayoutAnalyzer) Analyze(ctx context.Context, in Input) (LayoutResult, error) {
	result, err := a.Inner.Analyze(ctx, in)
	if err != nil || result.IsMarkdown {
		return result, err
	}
	tableHTML := tableHTMLRE.FindAllString(result.Content, -1)
	stripped, placeholders := extractTables(result.Content)
	md, err := htmltomarkdown.ConvertString(stripped)
	if err != nil {
		return LayoutResult{}, fmt.Errorf("chunker: html to markdown: %w", err)
	}
	result.Content = restoreTables(md, placeholders, tableHTML)
	result.IsMarkdown = true
	return result, nil
}

// ImageSink is where the multimodal chunker uploads extracted figure
// images; the actual object store and collaboration APIs are out of scope
// per the purpose statement, specified here only at the operation level.
type ImageSink interface {
	// Put uploads imageBytes and returns a stable, dereferenceable name.
	Put(ctx context.Context, parentID string, figureID string, imageBytes []byte) (name string, err error)
}
