// Package render turns an assembled report.Report into a document.
//
// Two sinks are available:
//   - PDF: one page per report page, pie charts drawn as filled wedges
//   - XLSX: one sheet per report page, pie charts as native workbook charts
//
// Renderers only read the report. Everything they allocate is released before
// Render returns, and the document is written to the given io.Writer in one
// go, so callers decide where and how the bytes land.
package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/report"
)

// Supported output formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// Formats lists the supported output formats.
var Formats = []string{FormatPDF, FormatXLSX}

// For returns the renderer for an output format.
func For(format string) (report.Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPDF:
		return NewPDF(), nil
	case FormatXLSX:
		return NewXLSX(), nil
	}
	return nil, fmt.Errorf("unknown report format %q, expected one of %s", format, strings.Join(Formats, ", "))
}

type rgb struct {
	r, g, b uint8
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.r, c.g, c.b)
}

// palette colours pie wedges in order, wrapping around.
var palette = []rgb{
	{31, 119, 180},
	{255, 127, 14},
	{44, 160, 44},
	{214, 39, 40},
	{148, 103, 189},
	{140, 86, 75},
	{227, 119, 194},
	{127, 127, 127},
	{188, 189, 34},
	{23, 190, 207},
}

var (
	incomeColor  = rgb{0, 135, 90}
	expenseColor = rgb{200, 40, 60}
	textColor    = rgb{40, 44, 52}
	mutedColor   = rgb{120, 124, 130}
	headerFill   = rgb{235, 238, 242}
)

func classColor(page report.Page) rgb {
	switch page.Kind() {
	case report.IncomeTablePageKind, report.IncomePiePageKind:
		return incomeColor
	default:
		return expenseColor
	}
}

func formatAmount(currency string, amount decimal.Decimal) string {
	if currency == "" {
		return ledger.FormatAmount(amount)
	}
	return currency + " " + ledger.FormatAmount(amount)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%1.1f%%", p)
}

const dateLayout = "02/01/2006"
