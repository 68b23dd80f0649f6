package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ingestpipe/internal/embedding"
)

const figureCaptionPrompt = "Describe this image concisely for use as a search index caption."

var (
	figureTagRE    = regexp.MustCompile(`(?s)<figure>(.*?)</figure>`)
	figureShortRE  = regexp.MustCompile(`<figure(\w+)>`)
)

// MultimodalChunker extends DocAnalysisChunker: after text chunking it
// resolves <figureID> markers into uploaded images with generated captions
// and caption embeddings (§4.6.2).
type MultimodalChunker struct {
	params Params
	layout LayoutAnalyzer
	chat   *embedding.ChatClient
	embed  *embedding.Client
	images ImageSink
}

// NewMultimodalChunker constructs a MultimodalChunker with its dependencies
// captured.
func NewMultimodalChunker(params Params, deps Deps) *MultimodalChunker {
	layout := deps.Layout
	if layout == nil {
		layout = FallbackLayoutAnalyzer{}
	}
	return &MultimodalChunker{params: params, layout: layout, chat: deps.Chat, embed: deps.Embed, images: deps.Images}
}

func (c *MultimodalChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
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
	content = figureTagRE.ReplaceAllStringFunc(content, func(m string) string {
		sub := figureTagRE.FindStringSubmatch(m)
		id := strings.TrimSpace(sub[1])
		return fmt.Sprintf("<figure%s>", sanitizeFigureID(id))
	})

	tableHTML := tableHTMLRE.FindAllString(content, -1)
	tableHTML = mergeConsecutiveTables(tableHTML, result.Tables)
	stripped, placeholders := extractTables(content)
	parts := splitResidual(stripped, result.IsMarkdown, c.params)

	figuresByID := make(map[string]Figure, len(result.Figures))
	for _, f := range result.Figures {
		figuresByID[sanitizeFigureID(f.ID)] = f
	}

	chunks := make([]Chunk, 0, len(parts))
	offset := 0
	for _, p := range parts {
		restored := restoreTables(p, placeholders, tableHTML)
		restored = truncateDocChunk(restored, c.params.MaxChunkSize)
		page := pageForChunk(restored)

		resolved, related, captions, captionVec := c.resolveFigures(ctx, in, restored, figuresByID, page)

		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Content:       stripMarkers(resolved),
			Page:          page,
			Offset:        offset,
			Length:        len(resolved),
			RelatedImages: related,
			ImageCaptions: captions,
			CaptionVector: captionVec,
		})
		offset += len(restored)
	}
	return chunks, nil
}

// resolveFigures implements §4.6.2 steps 2-3: for each <figureID> marker,
// fetch the image, skip it when areaSufficient rejects it, upload it,
// caption it via chat-completion, and replace the marker with a
// <figure>NAME</figure> reference.
func (c *MultimodalChunker) resolveFigures(ctx context.Context, in Input, chunk string, figures map[string]Figure, page int) (resolved string, related []string, captions string, captionVec []float32) {
	var captionParts []string
	resolved = figureShortRE.ReplaceAllStringFunc(chunk, func(m string) string {
		id := figureShortRE.FindStringSubmatch(m)[1]
		fig, ok := figures[id]
		if !ok {
			return ""
		}
		if !c.areaSufficient(fig, page) {
			return ""
		}
		name := fig.ID
		if c.images != nil {
			if n, err := c.images.Put(ctx, in.Filename, fig.ID, fig.ImageBytes); err == nil {
				name = n
			}
		}
		caption := c.captionFigure(ctx, fig)
		if caption != "" {
			captionParts = append(captionParts, caption)
		}
		related = append(related, name)
		return fmt.Sprintf("<figure>%s</figure>", name)
	})
	captions = strings.Join(captionParts, "\n")
	if captions != "" && c.embed != nil {
		if v, err := c.embed.Embed(ctx, captions); err == nil {
			captionVec = v
		}
	}
	return resolved, related, captions, captionVec
}

func (c *MultimodalChunker) areaSufficient(fig Figure, page int) bool {
	minPct := c.params.MinimumFigureAreaPercentage
	if minPct <= 0 {
		return true
	}
	// When a minimum percentage is set, only a zero-sized bounding area is
	// rejected; the figure's area is not compared against the page area.
	return fig.BoundingAreaSqIn > 0
}

func (c *MultimodalChunker) captionFigure(ctx context.Context, fig Figure) string {
	if c.chat == nil || len(fig.ImageBytes) == 0 {
		return ""
	}
	mediaType := detectImageMediaType(fig.ImageBytes)
	caption, err := c.chat.Caption(ctx, fig.ImageBytes, mediaType)
	if err != nil {
		return ""
	}
	return caption
}

func detectImageMediaType(b []byte) string {
	switch {
	case len(b) >= 8 && string(b[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func sanitizeFigureID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ Chunker = (*MultimodalChunker)(nil)
