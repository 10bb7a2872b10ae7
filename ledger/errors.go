package ledger

import (
	"fmt"
	"strings"
)

// Error types for loading and reporting on a ledger

// MalformedLedgerError is returned when the ledger's shape prevents loading it:
// required columns are missing, or a cell cannot be read as the column's type.
type MalformedLedgerError struct {
	Source  string
	Missing []string // Required columns absent from the header
	Row     int      // 1-based row, 0 for header problems
	Column  string
	Value   string
	Reason  string
}

func (e *MalformedLedgerError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: malformed ledger: missing required column(s) %s", e.Source, strings.Join(e.Missing, ", "))
	}

	location := e.Source
	if e.Row > 0 {
		location = fmt.Sprintf("%s:%d", e.Source, e.Row)
	}

	if e.Column != "" {
		return fmt.Sprintf("%s: malformed ledger: %s %q: %s", location, e.Column, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: malformed ledger: %s", location, e.Reason)
}

func (e *MalformedLedgerError) GetRow() int {
	return e.Row
}

// UnparseableDateError is returned for a row whose date cannot be read with any
// of the day-first layouts. Such rows fail the load instead of being dropped.
type UnparseableDateError struct {
	Source string
	Row    int
	Value  string
}

func (e *UnparseableDateError) Error() string {
	return fmt.Sprintf("%s:%d: cannot parse date %q (expected day-first, e.g. 31/01/2024)", e.Source, e.Row, e.Value)
}

func (e *UnparseableDateError) GetRow() int {
	return e.Row
}

// NoDataForPeriodError reports that nothing in the ledger was classified into
// the period. It is a warning: reports are still produced with zero totals.
type NoDataForPeriodError struct {
	Period Period
}

func (e *NoDataForPeriodError) Error() string {
	return fmt.Sprintf("no income or expense transactions for %s", e.Period)
}

// NewMissingColumnsError creates an error for a header that lacks required columns.
func NewMissingColumnsError(source string, missing []string) *MalformedLedgerError {
	return &MalformedLedgerError{
		Source:  source,
		Missing: missing,
	}
}

// NewInvalidCellError creates an error for a cell that cannot be parsed.
func NewInvalidCellError(source string, row int, column, value, reason string) *MalformedLedgerError {
	return &MalformedLedgerError{
		Source: source,
		Row:    row,
		Column: column,
		Value:  value,
		Reason: reason,
	}
}
