package importapp

import "fmt"

// maxReportedSkips bounds the skipped rows echoed back in a Summary
const maxReportedSkips = 100

// SkippedRow is a spreadsheet row that produced no utility account
type SkippedRow struct {
	Line     int    `json:"line"`
	BPNumber string `json:"bpNumber,omitempty"`
	Reason   string `json:"reason"`
}

func (s SkippedRow) String() string {
	if s.BPNumber != "" {
		return fmt.Sprintf("line %d (BP %s): %s", s.Line, s.BPNumber, s.Reason)
	}
	return fmt.Sprintf("line %d: %s", s.Line, s.Reason)
}

// skipLog counts every skip but keeps only the first max entries
type skipLog struct {
	rows  []SkippedRow
	max   int
	total int
}

func newSkipLog(max int) *skipLog {
	if max <= 0 {
		max = maxReportedSkips
	}
	return &skipLog{rows: make([]SkippedRow, 0), max: max}
}

func (l *skipLog) Add(row SkippedRow) {
	l.total++
	if len(l.rows) < l.max {
		l.rows = append(l.rows, row)
	}
}

func (l *skipLog) Total() int {
	return l.total
}

func (l *skipLog) Rows() []SkippedRow {
	return l.rows
}

// IsTruncated reports whether skips were dropped from Rows
func (l *skipLog) IsTruncated() bool {
	return l.total > len(l.rows)
}
