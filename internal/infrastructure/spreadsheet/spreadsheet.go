// Package spreadsheet reads the first worksheet of an uploaded file as rows
// keyed by header. Cells missing from a row read as "".
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyFile is returned when the input has no bytes
	ErrEmptyFile = errors.New("spreadsheet is empty")
	// ErrInvalidEncoding is returned when CSV input is not UTF-8
	ErrInvalidEncoding = errors.New("spreadsheet is not valid UTF-8")
	// ErrMissingHeader is returned when the first row is absent or blank
	ErrMissingHeader = errors.New("spreadsheet has no header row")
	// ErrNoWorksheet is returned for a workbook without sheets
	ErrNoWorksheet = errors.New("workbook has no worksheets")
	// ErrUnsupportedFormat is returned for extensions other than .xlsx and .csv
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// ParseError reports a failure to read the input. Line is 1-based and 0 when
// the failure is not tied to a line.
type ParseError struct {
	Format string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s at line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Row is one data row of the sheet
type Row struct {
	// Line is the 1-based line in the sheet; the header is line 1
	Line   int
	Values map[string]string
}

// Get returns the cell under header, or ""
func (r Row) Get(header string) string {
	return r.Values[header]
}

// IsBlank reports whether every cell is empty
func (r Row) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Reader parses a spreadsheet stream
type Reader interface {
	Read(r io.Reader) ([]Row, error)
}

// ReaderFor picks a reader from the file name's extension
func ReaderFor(filename string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return NewXLSXReader(), nil
	case ".csv":
		return NewCSVReader(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ReadFile parses a spreadsheet from disk
func ReadFile(path string) ([]Row, error) {
	reader, err := ReaderFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return reader.Read(f)
}

// buildRows keys records by header. Blank records are dropped and duplicate
// headers keep the first column. lines holds each record's sheet line.
func buildRows(header []string, records [][]string, lines []int) []Row {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	rows := make([]Row, 0, len(records))
	for n, record := range records {
		row := Row{Line: lines[n], Values: make(map[string]string, len(index))}
		for h, i := range index {
			if i < len(record) {
				row.Values[h] = record[i]
			} else {
				row.Values[h] = ""
			}
		}
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
