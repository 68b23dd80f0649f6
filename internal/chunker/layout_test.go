package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type rawHTMLLayoutAnalyzer struct {
	content string
}

func (a rawHTMLLayoutAnalyzer) Analyze(ctx context.Context, in Input) (LayoutResult, error) {
	return LayoutResult{Content: a.content, IsMarkdown: false, Pages: []Page{{Number: 1}}}, nil
}

func TestHTMLLayoutAnalyzerConvertsAndKeepsTables(t *testing.T) {
	inner := rawHTMLLayoutAnalyzer{content: "<h1>Title</h1><p>Hello world</p><table><tr><td>a</td></tr></table>"}
	a := HTMLLayoutAnalyzer{Inner: inner}

	result, err := a.Analyze(context.Background(), Input{Text: "ignored"})
	require.NoError(t, err)
	require.True(t, result.IsMarkdown)
	require.Contains(t, result.Content, "# Title")
	require.Contains(t, result.Content, "Hello world")
	require.True(t, strings.Contains(result.Content, "<table>"))
}
