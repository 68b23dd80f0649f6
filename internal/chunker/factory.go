package chunker

import (
	"path/filepath"
	"strings"

	"ingestpipe/internal/embedding"
)

// Deps bundles the external collaborators chunkers need beyond raw bytes:
// a chat-completion client for captions/summaries, an embedding client only
// the multimodal chunker needs directly (to produce caption vectors), a
// layout analyzer, and an image store for uploaded figures.
type Deps struct {
	Chat      *embedding.ChatClient
	Embed     *embedding.Client
	Layout    LayoutAnalyzer
	Images    ImageSink
}

// ForFile dispatches to a chunker by file extension, matching
// ChunkerFactory.get_chunker's extension table (§4.6):
//
//	vtt              -> Transcription
//	xlsx, xls        -> Spreadsheet
//	pdf,png,jpeg,jpg,
//	bmp,tiff,docx,
//	pptx             -> DocAnalysis, or Multimodal if params.Multimodal
//	nl2sql (virtual) -> NL2SQL
//	json             -> JSON
//	otherwise        -> GenericText
func ForFile(filename string, params Params, deps Deps) Chunker {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "vtt":
		return NewTranscriptionChunker(params, deps.Chat)
	case "xlsx", "xls":
		return NewSpreadsheetChunker(params, deps.Chat)
	case "pdf", "png", "jpeg", "jpg", "bmp", "tiff", "docx", "pptx":
		if params.Multimodal {
			return NewMultimodalChunker(params, deps)
		}
		return NewDocAnalysisChunker(params, deps.Layout)
	case "nl2sql":
		return NewNL2SQLChunker(params)
	case "json":
		return NewJSONChunker(params)
	default:
		return NewGenericTextChunker(params, subtypeFor(ext), ext)
	}
}

// SupportedExtensions lists every extension the factory recognizes.
func SupportedExtensions() []string {
	return []string{"vtt", "xlsx", "xls", "pdf", "png", "jpeg", "jpg", "bmp", "tiff", "docx", "pptx", "nl2sql", "json"}
}

func subtypeFor(ext string) TextSubtype {
	switch ext {
	case "md", "markdown":
		return SubtypeMarkdown
	case "py", "go", "js", "ts", "java", "c", "cpp", "cs", "rb":
		return SubtypeCode
	default:
		return SubtypeProse
	}
}
