// Package lookup loads the two-column code -> label spreadsheets that the
// dashboard joins against stock rows (product descriptions, classifications).
package lookup

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

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	ErrLookupMissing   = errors.New("lookup file missing")
	ErrLookupMalformed = errors.New("lookup file malformed")
)

const (
	EncodingUTF8        = ""
	EncodingWindows1252 = "windows-1252"
)

type Options struct {
	// Encoding applies to CSV files only; xlsx is always UTF-8.
	Encoding string
	// Uppercase normalizes labels, used for classification tags.
	Uppercase bool
}

// Table is a loaded lookup. Entries keeps the first label seen per code.
type Table struct {
	Entries    map[int]string
	Duplicates int
	Source     string
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Load reads a lookup by extension: .xlsx/.xlsm via excelize, anything else as CSV.
func Load(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLookupMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		t, err = LoadXLSX(f, opts)
	default:
		t, err = LoadCSV(f, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Source = path
	return t, nil
}

func LoadXLSX(r io.Reader, opts Options) (*Table, error) {
	xf, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupMalformed, err)
	}
	defer xf.Close()

	sheets := xf.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrLookupMalformed)
	}
	rows, err := xf.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupMalformed, err)
	}
	return parseRows(rows, opts)
}

func LoadCSV(r io.Reader, opts Options) (*Table, error) {
	switch strings.ToLower(opts.Encoding) {
	case EncodingUTF8, "utf-8", "utf8":
	case EncodingWindows1252, "cp1252", "latin1", "iso-8859-1":
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sniffDelimiter(raw)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupMalformed, err)
	}
	return parseRows(rows, opts)
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas (pt-BR spreadsheet exports), ',' otherwise.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func parseRows(rows [][]string, opts Options) (*Table, error) {
	t := &Table{Entries: make(map[int]string, len(rows))}
	headerChecked := false

	for i, row := range rows {
		line := i + 1
		code, label := cell(row, 0), cell(row, 1)
		if code == "" && label == "" {
			continue
		}

		n, ok := parseCode(code)
		if !headerChecked {
			headerChecked = true
			if !ok {
				// first non-empty row with a non-numeric code is the header
				continue
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: row %d: code %q is not an integer", ErrLookupMalformed, line, code)
		}
		if label == "" {
			continue
		}
		if opts.Uppercase {
			label = strings.ToUpper(label)
		}
		if _, exists := t.Entries[n]; exists {
			t.Duplicates++
			continue
		}
		t.Entries[n] = label
	}

	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrLookupMalformed)
	}
	return t, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// parseCode accepts "100" and spreadsheet-formatted "100.0"/"100,0".
func parseCode(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
