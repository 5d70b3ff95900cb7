package spreadsheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// encodingProbeSize is how much of the input is checked for valid UTF-8
const encodingProbeSize = 4096

// CSVReader reads comma-separated input with an optional UTF-8 BOM
type CSVReader struct {
	delimiter rune
}

// CSVOption configures a CSVReader
type CSVOption func(*CSVReader)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) CSVOption {
	return func(r *CSVReader) {
		r.delimiter = d
	}
}

// NewCSVReader creates a CSVReader
func NewCSVReader(opts ...CSVOption) *CSVReader {
	r := &CSVReader{delimiter: ','}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read implements Reader
func (c *CSVReader) Read(r io.Reader) ([]Row, error) {
	buf := bufio.NewReader(r)

	bom, err := buf.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Format: "csv", Err: err}
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	probe, err := buf.Peek(encodingProbeSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Format: "csv", Err: err}
	}
	if len(probe) == 0 {
		return nil, &ParseError{Format: "csv", Err: ErrEmptyFile}
	}
	if len(probe) == encodingProbeSize {
		probe = trimPartialRune(probe)
	}
	if !utf8.Valid(probe) {
		return nil, &ParseError{Format: "csv", Err: ErrInvalidEncoding}
	}

	reader := csv.NewReader(buf)
	reader.Comma = c.delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Format: "csv", Line: 1, Err: ErrMissingHeader}
	}
	if err != nil {
		return nil, &ParseError{Format: "csv", Line: 1, Err: err}
	}
	if isBlankRecord(header) {
		return nil, &ParseError{Format: "csv", Line: 1, Err: ErrMissingHeader}
	}

	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				line = csvErr.Line
			}
			return nil, &ParseError{Format: "csv", Line: line, Err: fmt.Errorf("malformed row: %w", err)}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return buildRows(header, records, lines), nil
}

// trimPartialRune drops a multi-byte rune cut off by the probe window
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
