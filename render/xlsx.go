package render

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/robinvdvleuten/ledgerreport/report"
	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

// amountFormat is the built-in "#,##0.00" number format.
const amountFormat = 4

// XLSX renders reports as workbooks, one sheet per report page.
type XLSX struct{}

// NewXLSX creates an XLSX renderer.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Extension returns "xlsx".
func (x *XLSX) Extension() string {
	return FormatXLSX
}

// Render writes rep as a workbook. Pie pages get a native pie chart next to
// their data so the workbook stays editable.
func (x *XLSX) Render(ctx context.Context, rep *report.Report, w io.Writer) error {
	timer := telemetry.StartTimer(ctx, "render.xlsx")
	defer timer.End()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	book := &workbook{file: f, currency: rep.Currency}

	var err error
	if book.amountStyle, err = f.NewStyle(&excelize.Style{NumFmt: amountFormat}); err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	if book.headerStyle, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill.hex()}, Pattern: 1},
	}); err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, page := range rep.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		sheet := page.Kind().String()
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
		}

		switch pg := page.(type) {
		case *report.SummaryPage:
			err = book.summary(sheet, pg, rep.Notes)
		case *report.TablePage:
			err = book.table(sheet, pg)
		case *report.PiePage:
			err = book.pie(sheet, pg)
		default:
			err = fmt.Errorf("unsupported page %s", page.Kind())
		}
		if err != nil {
			return fmt.Errorf("failed to render %s sheet: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type workbook struct {
	file        *excelize.File
	currency    string
	amountStyle int
	headerStyle int
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func (b *workbook) header(sheet string, row int, titles ...interface{}) error {
	if err := b.file.SetSheetRow(sheet, cell(1, row), &titles); err != nil {
		return err
	}
	return b.file.SetCellStyle(sheet, cell(1, row), cell(len(titles), row), b.headerStyle)
}

func (b *workbook) summary(sheet string, pg *report.SummaryPage, notes []report.Note) error {
	rows := [][]interface{}{
		{"Monthly Report", pg.Period.String()},
		{"Currency", b.currency},
		{},
		{"Total Income", amount(pg.Income)},
		{"Total Expense", amount(pg.Expense)},
		{"Net", amount(pg.Net)},
	}
	if len(notes) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Notes"})
		for _, note := range notes {
			rows = append(rows, []interface{}{note.String()})
		}
	}

	for i := range rows {
		if err := b.file.SetSheetRow(sheet, cell(1, i+1), &rows[i]); err != nil {
			return err
		}
	}

	if err := b.file.SetCellStyle(sheet, "B4", "B6", b.amountStyle); err != nil {
		return err
	}
	return b.file.SetColWidth(sheet, "A", "B", 24)
}

func (b *workbook) table(sheet string, pg *report.TablePage) error {
	if err := b.header(sheet, 1, "Date", "Category", "Amount", "Note"); err != nil {
		return err
	}
	if len(pg.Rows) == 0 {
		return nil
	}

	for i, r := range pg.Rows {
		values := []interface{}{r.Date.Format(dateLayout), r.Category, amount(r.Amount), r.Note}
		if err := b.file.SetSheetRow(sheet, cell(1, i+2), &values); err != nil {
			return err
		}
	}

	totalRow := len(pg.Rows) + 2
	total := []interface{}{"Total", "", amount(pg.Total)}
	if err := b.file.SetSheetRow(sheet, cell(1, totalRow), &total); err != nil {
		return err
	}

	if err := b.file.SetCellStyle(sheet, "C2", cell(3, totalRow), b.amountStyle); err != nil {
		return err
	}
	if err := b.file.SetColWidth(sheet, "A", "C", 16); err != nil {
		return err
	}
	return b.file.SetColWidth(sheet, "D", "D", 40)
}

func (b *workbook) pie(sheet string, pg *report.PiePage) error {
	if err := b.header(sheet, 1, "Category", "Amount", "Share"); err != nil {
		return err
	}

	for i, s := range pg.Slices {
		values := []interface{}{s.Name, amount(s.Amount), formatPercent(pg.Percent(i))}
		if err := b.file.SetSheetRow(sheet, cell(1, i+2), &values); err != nil {
			return err
		}
	}

	last := len(pg.Slices) + 1
	if err := b.file.SetCellStyle(sheet, "B2", cell(2, last), b.amountStyle); err != nil {
		return err
	}
	if err := b.file.SetColWidth(sheet, "A", "C", 16); err != nil {
		return err
	}

	return b.file.AddChart(sheet, "E2", &excelize.Chart{
		Type: excelize.Pie,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("'%s'!$A$1", sheet),
				Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheet, last),
				Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", sheet, last),
			},
		},
		Title: []excelize.RichTextRun{{Text: pg.Title()}},
		Legend: excelize.ChartLegend{
			Position: "right",
		},
		PlotArea: excelize.ChartPlotArea{
			ShowPercent: true,
		},
	})
}
