package chunker

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// xlsxSheet is a minimal row/column grid decoded from an .xlsx package's
// first worksheet. No third-party spreadsheet library exists anywhere in
// the retrieved corpus (DESIGN.md), so this reads the OOXML zip directly:
// shared strings plus the first sheetN.xml, which is all the Spreadsheet
// Chunker needs.
type xlsxSheet struct {
	Header string
	Rows   [][]string
}

func parseXLSX(raw []byte) (xlsxSheet, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return xlsxSheet{}, fmt.Errorf("chunker: open xlsx: %w", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return xlsxSheet{}, err
	}

	sheetFile, err := firstSheetFile(zr)
	if err != nil {
		return xlsxSheet{}, err
	}

	rows, err := readSheetRows(sheetFile, shared)
	if err != nil {
		return xlsxSheet{}, err
	}
	if len(rows) == 0 {
		return xlsxSheet{}, nil
	}
	return xlsxSheet{Header: strings.Join(rows[0], "|"), Rows: rows}, nil
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	f := findFile(zr, "xl/sharedStrings.xml")
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("chunker: open sharedStrings.xml: %w", err)
	}
	defer rc.Close()

	var sst struct {
		SI []struct {
			T  string `xml:"t"`
			R  []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
		return nil, fmt.Errorf("chunker: decode sharedStrings.xml: %w", err)
	}
	out := make([]string, len(sst.SI))
	for i, si := range sst.SI {
		if si.T != "" {
			out[i] = si.T
			continue
		}
		var b strings.Builder
		for _, r := range si.R {
			b.WriteString(r.T)
		}
		out[i] = b.String()
	}
	return out, nil
}

func firstSheetFile(zr *zip.Reader) (*zip.File, error) {
	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("chunker: xlsx contains no worksheets")
	}
	sort.Strings(names)
	return findFile(zr, names[0]), nil
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readSheetRows(f *zip.File, shared []string) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("chunker: open worksheet: %w", err)
	}
	defer rc.Close()

	var sheet struct {
		SheetData struct {
			Row []struct {
				C []struct {
					T string `xml:"t,attr"`
					V string `xml:"v"`
				} `xml:"c"`
			} `xml:"row"`
		} `xml:"sheetData"`
	}
	if err := xml.NewDecoder(rc).Decode(&sheet); err != nil && err != io.EOF {
		return nil, fmt.Errorf("chunker: decode worksheet: %w", err)
	}

	rows := make([][]string, 0, len(sheet.SheetData.Row))
	for _, r := range sheet.SheetData.Row {
		row := make([]string, 0, len(r.C))
		for _, c := range r.C {
			if c.T == "s" {
				idx, err := strconv.Atoi(c.V)
				if err == nil && idx >= 0 && idx < len(shared) {
					row = append(row, shared[idx])
					continue
				}
			}
			row = append(row, c.V)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
