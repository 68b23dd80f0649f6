package chunker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForFileDispatchesByExtension(t *testing.T) {
	params := Params{MaxChunkSize: 2048, MinChunkSize: 100, TokenOverlap: 100}
	deps := Deps{}

	require.IsType(t, &TranscriptionChunker{}, ForFile("call.vtt", params, deps))
	require.IsType(t, &SpreadsheetChunker{}, ForFile("data.xlsx", params, deps))
	require.IsType(t, &DocAnalysisChunker{}, ForFile("report.pdf", params, deps))
	require.IsType(t, &NL2SQLChunker{}, ForFile("record.nl2sql", params, deps))
	require.IsType(t, &JSONChunker{}, ForFile("blob.json", params, deps))
	require.IsType(t, &GenericTextChunker{}, ForFile("README.md", params, deps))

	multimodalParams := params
	multimodalParams.Multimodal = true
	require.IsType(t, &MultimodalChunker{}, ForFile("scan.pdf", multimodalParams, deps))
}

func TestSubtypeForMapsExtensions(t *testing.T) {
	require.Equal(t, SubtypeMarkdown, subtypeFor("md"))
	require.Equal(t, SubtypeCode, subtypeFor("go"))
	require.Equal(t, SubtypeProse, subtypeFor("txt"))
}
