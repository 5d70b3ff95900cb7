package spreadsheet

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads the first worksheet of an Office Open XML workbook
type XLSXReader struct{}

// NewXLSXReader creates an XLSXReader
func NewXLSXReader() *XLSXReader {
	return &XLSXReader{}
}

// Read implements Reader. Other worksheets are ignored.
func (x *XLSXReader) Read(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Format: "xlsx", Err: ErrNoWorksheet}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Format: "xlsx", Err: err}
	}
	if len(records) == 0 || isBlankRecord(records[0]) {
		return nil, &ParseError{Format: "xlsx", Line: 1, Err: ErrMissingHeader}
	}
	lines := make([]int, len(records)-1)
	for i := range lines {
		lines[i] = i + 2
	}
	return buildRows(records[0], records[1:], lines), nil
}
