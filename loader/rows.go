package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/robinvdvleuten/ledgerreport/config"
	"github.com/robinvdvleuten/ledgerreport/ledger"
)

const utf8BOM = "\ufeff"

// isoDate is the layout date cells are converted to. It is always accepted,
// whatever layouts are configured.
const isoDate = "2006-01-02"

// record is one row of a ledger file with its 1-based line number.
type record struct {
	line  int
	cells []string
}

func readCSV(r io.Reader) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []record
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		// Blank lines are skipped by the reader, so count from the file
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}
}

// readXLSX returns the rows of the first sheet. Cells are read unformatted,
// and date cells are converted from their serial number, so the locale's
// display format never decides between day and month.
func readXLSX(r io.Reader) ([]record, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := xl.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	dates := &dateCells{xl: xl, sheet: sheet, styles: make(map[int]bool)}
	if props, err := xl.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		dates.date1904 = *props.Date1904
	}

	records := make([]record, len(rows))
	for i, row := range rows {
		for j, value := range row {
			if t, ok := dates.convert(j+1, i+1, value); ok {
				row[j] = t.Format(isoDate)
			}
		}
		records[i] = record{line: i + 1, cells: row}
	}

	return records, nil
}

// dateCells recognizes numeric cells styled with a date format.
type dateCells struct {
	xl       *excelize.File
	sheet    string
	date1904 bool

	// styles caches whether a style index formats dates
	styles map[int]bool
}

func (d *dateCells) convert(col, row int, value string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return time.Time{}, false
	}

	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return time.Time{}, false
	}
	idx, err := d.xl.GetCellStyle(d.sheet, name)
	if err != nil {
		return time.Time{}, false
	}

	isDate, ok := d.styles[idx]
	if !ok {
		if style, err := d.xl.GetStyle(idx); err == nil {
			isDate = isDateFormat(style)
		}
		d.styles[idx] = isDate
	}
	if !isDate {
		return time.Time{}, false
	}

	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// isDateFormat reports whether style shows a calendar date. Time-only
// formats do not count.
func isDateFormat(style *excelize.Style) bool {
	switch n := style.NumFmt; {
	case n >= 14 && n <= 17, n == 22, n >= 27 && n <= 36, n >= 50 && n <= 58:
		return true
	}

	if style.CustomNumFmt == nil {
		return false
	}

	// Drop quoted literals and [colour]/[locale] sections before looking
	// for day or year tokens. "m" alone could be minutes.
	var code strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(*style.CustomNumFmt) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case !bracket:
			code.WriteRune(r)
		}
	}
	return strings.ContainsAny(code.String(), "dy")
}

// readXLS returns the rows of the first sheet of a legacy workbook.
func readXLS(data []byte) (records []record, err error) {
	// The xls reader panics on some corrupt files
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("unreadable workbook: %v", r)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("not an excel workbook")
	}

	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			records = append(records, record{line: i + 1})
			continue
		}

		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		records = append(records, record{line: i + 1, cells: cells})
	}

	return records, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	// WorkSheet.Row dereferences missing rows
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// columnIndex holds the position of each field in a row, -1 when absent.
type columnIndex struct {
	date, kind, category, amount, note int
	names                              [5]string
}

type rowParser struct {
	source  string
	layouts []string
}

func (p *rowParser) parse(ctx context.Context, records []record, cols config.Columns) ([]ledger.Transaction, error) {
	if len(records) == 0 {
		return nil, ledger.NewMissingColumnsError(p.source, requiredNames(cols))
	}

	idx, err := p.header(records[0].cells, cols)
	if err != nil {
		return nil, err
	}

	var txs []ledger.Transaction
	for i, rec := range records[1:] {
		if i%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		if isBlank(rec.cells) {
			continue
		}

		txn, err := p.row(rec.line, rec.cells, idx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, txn)
	}

	return txs, nil
}

// header resolves the column mapping against the header row.
func (p *rowParser) header(header []string, cols config.Columns) (columnIndex, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
	}

	find := func(aliases []string) (int, string) {
		for _, alias := range aliases {
			want := strings.ToUpper(strings.TrimSpace(alias))
			for i, h := range normalized {
				if h == want {
					return i, header[i]
				}
			}
		}
		return -1, ""
	}

	var idx columnIndex
	var missing []string

	fields := []struct {
		target  *int
		aliases []string
		slot    int
		require bool
	}{
		{&idx.date, cols.Date, 0, true},
		{&idx.kind, cols.Type, 1, true},
		{&idx.category, cols.Category, 2, true},
		{&idx.amount, cols.Amount, 3, true},
		{&idx.note, cols.Note, 4, false},
	}
	for _, f := range fields {
		i, name := find(f.aliases)
		*f.target = i
		idx.names[f.slot] = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		if i < 0 && f.require {
			missing = append(missing, strings.Join(f.aliases, "|"))
		}
	}

	if len(missing) > 0 {
		return idx, ledger.NewMissingColumnsError(p.source, missing)
	}

	return idx, nil
}

func (p *rowParser) row(line int, row []string, idx columnIndex) (ledger.Transaction, error) {
	rawDate := cell(row, idx.date)
	date, ok := parseDate(rawDate, p.layouts)
	if !ok {
		return ledger.Transaction{}, &ledger.UnparseableDateError{
			Source: p.source,
			Row:    line,
			Value:  rawDate,
		}
	}

	rawAmount := cell(row, idx.amount)
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return ledger.Transaction{}, ledger.NewInvalidCellError(p.source, line, idx.names[3], rawAmount, "not a decimal amount")
	}

	return ledger.Transaction{
		Row:      line,
		Date:     date,
		Type:     cell(row, idx.kind),
		Category: cell(row, idx.category),
		Amount:   amount,
		Note:     cell(row, idx.note),
	}, nil
}

// parseDate tries each layout in order. Only the calendar date is kept.
func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseAmount reads a decimal, ignoring thousands separators and spaces.
// A blank cell is zero.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	return decimal.NewFromString(s)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func requiredNames(cols config.Columns) []string {
	return []string{
		strings.Join(cols.Date, "|"),
		strings.Join(cols.Type, "|"),
		strings.Join(cols.Category, "|"),
		strings.Join(cols.Amount, "|"),
	}
}
