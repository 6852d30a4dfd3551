// Package input reads the business list from delimited text or a spreadsheet
// and resolves its logical columns.
package input

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Table is a loaded sheet. Every row has exactly len(Headers) cells.
type Table struct {
	Headers  []string
	Rows     [][]string
	Encoding string
}

// ErrUnsupported is returned for file types Load cannot read.
var ErrUnsupported = errors.New("unsupported input format")

var delimiters = []rune{',', ';', '\t', '|'}

// Load reads path as a spreadsheet (.xlsx, .xlsm) or delimited text (.csv,
// .tsv, .txt).
func Load(path string) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadExcel(path)
	case ".csv", ".tsv", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return Table{}, fmt.Errorf("read input: %w", err)
		}
		return ParseDelimited(data)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
	}
}

// ParseDelimited decodes delimited text, trying UTF-8, then Windows-1252,
// then ISO-8859-1, and sniffing the delimiter from the header line.
func ParseDelimited(data []byte) (Table, error) {
	text, enc := decode(data)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var raw [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parse input: %w", err)
		}
		raw = append(raw, rec)
	}
	t, err := newTable(raw)
	if err != nil {
		return Table{}, err
	}
	t.Encoding = enc
	return t, nil
}

func decode(data []byte) (string, string) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	if out, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return string(out), "windows-1252"
	}
	// ISO-8859-1 maps every byte, so it always succeeds.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out), "iso-8859-1"
}

func sniffDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func loadExcel(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("workbook has no sheets")
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	t, err := newTable(raw)
	if err != nil {
		return Table{}, err
	}
	t.Encoding = "xlsx"
	return t, nil
}

// newTable takes the first row as headers, names blank or repeated headers,
// squares every row to the header width and drops blank rows.
func newTable(raw [][]string) (Table, error) {
	if len(raw) == 0 {
		return Table{}, errors.New("input is empty")
	}
	headers := make([]string, len(raw[0]))
	seen := make(map[string]int, len(headers))
	for i, h := range raw[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}
		headers[i] = h
	}

	t := Table{Headers: headers}
	for _, rec := range raw[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Records turns every row into a BusinessRecord numbered from 1.
func Records(t Table, mapping audit.ColumnMapping) []audit.BusinessRecord {
	out := make([]audit.BusinessRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		cols := make([]audit.Column, len(t.Headers))
		for j, h := range t.Headers {
			cols[j] = audit.Column{Name: h, Value: row[j]}
		}
		out = append(out, audit.NewRecord(i+1, cols, mapping))
	}
	return out
}
