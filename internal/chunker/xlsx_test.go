package chunker

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestXLSX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	shared, err := w.Create("xl/sharedStrings.xml")
	require.NoError(t, err)
	_, err = shared.Write([]byte(`<?xml version="1.0"?><sst><si><t>Name</t></si><si><t>Amount</t></si><si><t>Widgets</t></si></sst>`))
	require.NoError(t, err)

	sheet, err := w.Create("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	_, err = sheet.Write([]byte(`<?xml version="1.0"?>
<worksheet><sheetData>
<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
<row><c t="s"><v>2</v></c><c><v>12</v></c></row>
</sheetData></worksheet>`))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParseXLSXReadsSheetRows(t *testing.T) {
	sheet, err := parseXLSX(buildTestXLSX(t))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	require.Equal(t, []string{"Name", "Amount"}, sheet.Rows[0])
	require.Equal(t, []string{"Widgets", "12"}, sheet.Rows[1])
}

func TestRenderMarkdownTable(t *testing.T) {
	out := renderMarkdownTable([][]string{{"a", "b"}, {"1", "2"}})
	require.Contains(t, out, "| a | b |")
	require.Contains(t, out, "| --- | --- |")
	require.Contains(t, out, "| 1 | 2 |")
}

func TestRowEmbeddingTextFormat(t *testing.T) {
	text := rowEmbeddingText("data.xlsx", 1, []string{"Name", "Amount"}, []string{"Widgets", "12"})
	require.Equal(t, "file=data.xlsx\nsheet=1\nrow=1\ncols=Name|Amount\nvals=Widgets|12", text)
}
