package render

import (
	"context"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/report"
	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

const (
	fontRegular = "GoRegular"
	fontBold    = "GoBold"

	// A4 portrait in points
	pageWidth  = 595.28
	pageHeight = 841.89

	margin    = 40.0
	rowHeight = 18.0

	pieRadius     = 150.0
	pieStartAngle = 90.0
	pieStep       = 2.0 // degrees per polygon segment

	// Slices thinner than this get no label on the wedge, only in the legend
	minLabelPercent = 3.0
)

var (
	white       = rgb{255, 255, 255}
	summaryTint = rgb{52, 73, 94}
)

type column struct {
	title string
	x     float64
	width float64
	right bool
}

var tableColumns = []column{
	{title: "Date", x: margin, width: 75},
	{title: "Category", x: margin + 85, width: 150},
	{title: "Amount", x: margin + 245, width: 110, right: true},
	{title: "Note", x: margin + 370, width: pageWidth - 2*margin - 370},
}

// PDF renders reports as A4 PDF documents.
type PDF struct{}

// NewPDF creates a PDF renderer.
func NewPDF() *PDF {
	return &PDF{}
}

// Extension returns "pdf".
func (p *PDF) Extension() string {
	return FormatPDF
}

// Render writes rep as a PDF, one or more document pages per report page.
func (p *PDF) Render(ctx context.Context, rep *report.Report, w io.Writer) error {
	timer := telemetry.StartTimer(ctx, "render.pdf")
	defer timer.End()

	doc := &pdfDoc{pdf: &gopdf.GoPdf{}, currency: rep.Currency, period: rep.Period}
	doc.pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})

	if err := doc.pdf.AddTTFFontData(fontRegular, goregular.TTF); err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	if err := doc.pdf.AddTTFFontData(fontBold, gobold.TTF); err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}

	for _, page := range rep.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch pg := page.(type) {
		case *report.SummaryPage:
			doc.summary(pg, rep.Notes)
		case *report.TablePage:
			doc.table(pg)
		case *report.PiePage:
			doc.pie(pg)
		default:
			return fmt.Errorf("unsupported page %s", page.Kind())
		}

		if doc.err != nil {
			return fmt.Errorf("failed to render %s page: %w", page.Kind(), doc.err)
		}
	}

	if _, err := doc.pdf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// pdfDoc wraps gopdf with a sticky error, so drawing code can run straight
// through and be checked once per page.
type pdfDoc struct {
	pdf      *gopdf.GoPdf
	currency string
	period   ledger.Period
	err      error
}

func (d *pdfDoc) font(family string, size float64) {
	if d.err != nil {
		return
	}
	d.err = d.pdf.SetFont(family, "", size)
}

func (d *pdfDoc) color(c rgb) {
	d.pdf.SetTextColor(c.r, c.g, c.b)
}

func (d *pdfDoc) text(x, y float64, s string) {
	if d.err != nil {
		return
	}
	d.pdf.SetXY(x, y)
	d.err = d.pdf.Cell(nil, s)
}

func (d *pdfDoc) width(s string) float64 {
	if d.err != nil {
		return 0
	}
	w, err := d.pdf.MeasureTextWidth(s)
	if err != nil {
		d.err = err
	}
	return w
}

func (d *pdfDoc) textRight(right, y float64, s string) {
	d.text(right-d.width(s), y, s)
}

// fit shortens s until it fits in width, marking the cut with "...".
func (d *pdfDoc) fit(s string, width float64) string {
	if d.width(s) <= width {
		return s
	}
	for len(s) > 0 && d.err == nil {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
		if d.width(s+"...") <= width {
			return s + "..."
		}
	}
	return s
}

func (d *pdfDoc) rect(x, y, w, h float64, c rgb) {
	d.pdf.SetFillColor(c.r, c.g, c.b)
	d.pdf.RectFromUpperLeftWithStyle(x, y, w, h, "F")
}

// heading draws the coloured page banner and returns the y below it.
func (d *pdfDoc) heading(title string, tint rgb) float64 {
	d.rect(0, 0, pageWidth, 90, tint)

	d.color(white)
	d.font(fontBold, 24)
	d.text(margin, 24, title)
	d.font(fontRegular, 13)
	d.text(margin, 58, d.period.String())

	return 120
}

func (d *pdfDoc) summary(pg *report.SummaryPage, notes []report.Note) {
	d.pdf.AddPage()
	y := d.heading("Monthly Report", summaryTint)

	netColor := incomeColor
	if pg.Net.IsNegative() {
		netColor = expenseColor
	}

	lines := []struct {
		label  string
		amount decimal.Decimal
		color  rgb
	}{
		{"Total Income", pg.Income, incomeColor},
		{"Total Expense", pg.Expense, expenseColor},
		{"Net", pg.Net, netColor},
	}

	d.rect(margin, y, pageWidth-2*margin, float64(len(lines))*30+16, headerFill)
	y += 14
	for _, line := range lines {
		d.color(textColor)
		d.font(fontRegular, 14)
		d.text(margin+20, y, line.label)

		d.color(line.color)
		d.font(fontBold, 14)
		d.textRight(pageWidth-margin-20, y, formatAmount(d.currency, line.amount))
		y += 30
	}

	if len(notes) == 0 {
		return
	}

	y += 30
	d.color(textColor)
	d.font(fontBold, 12)
	d.text(margin, y, "Notes")
	y += 20

	d.color(mutedColor)
	d.font(fontRegular, 11)
	for _, note := range notes {
		d.text(margin, y, "- "+note.String())
		y += 16
	}
}

func (d *pdfDoc) tableHeader(y float64) float64 {
	d.rect(margin, y-4, pageWidth-2*margin, rowHeight+2, headerFill)
	d.color(textColor)
	d.font(fontBold, 11)
	d.row(y, tableColumns[0].title, tableColumns[1].title, tableColumns[2].title, tableColumns[3].title)
	return y + rowHeight + 4
}

func (d *pdfDoc) row(y float64, cells ...string) {
	for i, col := range tableColumns {
		s := d.fit(cells[i], col.width)
		if col.right {
			d.textRight(col.x+col.width, y, s)
		} else {
			d.text(col.x, y, s)
		}
	}
}

func (d *pdfDoc) table(pg *report.TablePage) {
	tint := classColor(pg)

	d.pdf.AddPage()
	y := d.tableHeader(d.heading(pg.Title(), tint))
	if len(pg.Rows) == 0 {
		return
	}

	for _, r := range pg.Rows {
		if y > pageHeight-margin-2*rowHeight {
			d.pdf.AddPage()
			y = d.tableHeader(margin)
		}

		d.color(textColor)
		d.font(fontRegular, 10)
		d.row(y, r.Date.Format(dateLayout), r.Category, formatAmount(d.currency, r.Amount), r.Note)
		y += rowHeight
	}

	d.pdf.SetStrokeColor(mutedColor.r, mutedColor.g, mutedColor.b)
	d.pdf.SetLineWidth(0.5)
	d.pdf.Line(margin, y, pageWidth-margin, y)

	d.color(tint)
	d.font(fontBold, 11)
	d.row(y+6, "Total", "", formatAmount(d.currency, pg.Total), "")
}

func (d *pdfDoc) pie(pg *report.PiePage) {
	d.pdf.AddPage()
	y := d.heading(pg.Title(), classColor(pg))

	cx, cy := pageWidth/2, y+pieRadius+10
	angle := pieStartAngle

	for i := range pg.Slices {
		percent := pg.Percent(i)
		sweep := 360 * percent / 100

		d.wedge(cx, cy, pieRadius, angle, angle+sweep, palette[i%len(palette)])

		if percent >= minLabelPercent {
			mid := (angle + sweep/2) * math.Pi / 180
			label := formatPercent(percent)
			lx := cx + 0.65*pieRadius*math.Cos(mid)
			ly := cy - 0.65*pieRadius*math.Sin(mid)

			d.color(white)
			d.font(fontBold, 10)
			d.text(lx-d.width(label)/2, ly-5, label)
		}

		angle += sweep
	}

	y = cy + pieRadius + 30
	for i, s := range pg.Slices {
		if y > pageHeight-margin-2*rowHeight {
			d.pdf.AddPage()
			y = margin
		}

		d.rect(margin, y+2, 10, 10, palette[i%len(palette)])
		d.color(textColor)
		d.font(fontRegular, 11)
		d.text(margin+18, y, d.fit(s.Name, 250))
		d.textRight(pageWidth-margin, y, fmt.Sprintf("%s  (%s)", formatAmount(d.currency, s.Amount), formatPercent(pg.Percent(i))))
		y += rowHeight
	}

	d.color(classColor(pg))
	d.font(fontBold, 11)
	d.text(margin+18, y+6, "Total")
	d.textRight(pageWidth-margin, y+6, formatAmount(d.currency, pg.Total))
}

// wedge fills the circle sector between two angles, in degrees measured
// counter-clockwise from three o'clock.
func (d *pdfDoc) wedge(cx, cy, r, from, to float64, c rgb) {
	if d.err != nil || to <= from {
		return
	}

	steps := int(math.Ceil((to - from) / pieStep))
	points := make([]gopdf.Point, 0, steps+2)
	points = append(points, gopdf.Point{X: cx, Y: cy})
	for i := 0; i <= steps; i++ {
		a := (from + (to-from)*float64(i)/float64(steps)) * math.Pi / 180
		// Page y grows downwards
		points = append(points, gopdf.Point{X: cx + r*math.Cos(a), Y: cy - r*math.Sin(a)})
	}

	d.pdf.SetFillColor(c.r, c.g, c.b)
	d.pdf.Polygon(points, "F")
}
