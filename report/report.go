// Package report assembles and writes the monthly income and expense report.
//
// A Report is an ordered list of pages built from one period of a ledger:
//
//  1. Summary: income, expense and net totals
//  2. Expense table: the period's expense transactions
//  3. Income table: the period's income transactions
//  4. Income pie: income per category
//  5. Expense pie: expense per category
//
// Pages are independent. A side without data still gets a header-only table,
// while its pie page is left out and a Note records why. Assemble is pure; the
// Generator drives the full run from loading the ledger to writing the file.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/ledgerreport/ledger"
)

// NoDataMessage is recorded for pages that have nothing to show.
const NoDataMessage = "no data for this period"

// PageKind identifies one of the five report pages.
type PageKind int

const (
	SummaryPageKind PageKind = iota
	ExpenseTablePageKind
	IncomeTablePageKind
	IncomePiePageKind
	ExpensePiePageKind
)

// PageOrder is the fixed order pages appear in.
var PageOrder = []PageKind{
	SummaryPageKind,
	ExpenseTablePageKind,
	IncomeTablePageKind,
	IncomePiePageKind,
	ExpensePiePageKind,
}

func (k PageKind) String() string {
	switch k {
	case SummaryPageKind:
		return "Summary"
	case ExpenseTablePageKind:
		return "Expense Table"
	case IncomeTablePageKind:
		return "Income Table"
	case IncomePiePageKind:
		return "Income Pie"
	case ExpensePiePageKind:
		return "Expense Pie"
	default:
		return fmt.Sprintf("PageKind(%d)", int(k))
	}
}

// Page is one self-contained unit of the document.
type Page interface {
	Kind() PageKind
	Title() string
}

// SummaryPage shows the period's headline totals.
type SummaryPage struct {
	Period  ledger.Period
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

func (p *SummaryPage) Kind() PageKind { return SummaryPageKind }

func (p *SummaryPage) Title() string {
	return fmt.Sprintf("Summary for %s", p.Period)
}

// Row is one transaction on a table page.
type Row struct {
	Date     time.Time
	Category string
	Amount   decimal.Decimal
	Note     string
}

// TablePage lists the transactions of one side in ledger order.
type TablePage struct {
	Class ledger.Class
	Rows  []Row
	Total decimal.Decimal
}

func (p *TablePage) Kind() PageKind {
	if p.Class == ledger.Income {
		return IncomeTablePageKind
	}
	return ExpenseTablePageKind
}

func (p *TablePage) Title() string {
	return fmt.Sprintf("%s Transactions", p.Class)
}

// Slice is one wedge of a pie chart.
type Slice struct {
	Name   string
	Amount decimal.Decimal
}

// PiePage shows the distribution of one side across categories.
type PiePage struct {
	Class  ledger.Class
	Slices []Slice
	Total  decimal.Decimal
}

func (p *PiePage) Kind() PageKind {
	if p.Class == ledger.Income {
		return IncomePiePageKind
	}
	return ExpensePiePageKind
}

func (p *PiePage) Title() string {
	return fmt.Sprintf("%s Distribution", p.Class)
}

// Percent returns the share of slice i in percent.
func (p *PiePage) Percent(i int) float64 {
	if p.Total.IsZero() {
		return 0
	}
	return p.Slices[i].Amount.Div(p.Total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Note records a page that degraded or was left out.
type Note struct {
	Page    PageKind
	Message string
}

func (n Note) String() string {
	return fmt.Sprintf("%s: %s", n.Page, n.Message)
}

// Report is the assembled document, ready for a renderer.
type Report struct {
	Period   ledger.Period
	Summary  ledger.Summary
	Currency string
	Pages    []Page
	Notes    []Note
}

// Page returns the page of the given kind, if present.
func (r *Report) Page(kind PageKind) (Page, bool) {
	for _, p := range r.Pages {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// Options controls report assembly.
type Options struct {
	Order    ledger.Order
	Currency string
}

// Assemble builds the report pages for a classified period. It only reads
// the partition; nothing it was given is modified.
func Assemble(period ledger.Period, part ledger.Partition, opts Options) *Report {
	summary := ledger.Summarize(period, part)

	r := &Report{
		Period:   period,
		Summary:  summary,
		Currency: opts.Currency,
	}

	for _, kind := range PageOrder {
		var page Page
		switch kind {
		case SummaryPageKind:
			page = &SummaryPage{
				Period:  period,
				Income:  summary.Income,
				Expense: summary.Expense,
				Net:     summary.Net(),
			}
		case ExpenseTablePageKind:
			page = newTablePage(ledger.Expense, part.Expense)
		case IncomeTablePageKind:
			page = newTablePage(ledger.Income, part.Income)
		case IncomePiePageKind:
			page = newPiePage(ledger.Income, part.Income, opts.Order)
		case ExpensePiePageKind:
			page = newPiePage(ledger.Expense, part.Expense, opts.Order)
		}

		if pie, ok := page.(*PiePage); ok && len(pie.Slices) == 0 {
			r.Notes = append(r.Notes, Note{Page: kind, Message: NoDataMessage})
			continue
		}
		if table, ok := page.(*TablePage); ok && len(table.Rows) == 0 {
			r.Notes = append(r.Notes, Note{Page: kind, Message: NoDataMessage})
		}

		r.Pages = append(r.Pages, page)
	}

	return r
}

func newTablePage(class ledger.Class, txs []ledger.Transaction) *TablePage {
	rows := make([]Row, 0, len(txs))
	for _, txn := range txs {
		rows = append(rows, Row{
			Date:     txn.Date,
			Category: txn.Category,
			Amount:   txn.Amount,
			Note:     txn.Note,
		})
	}

	return &TablePage{
		Class: class,
		Rows:  rows,
		Total: ledger.Total(txs),
	}
}

// newPiePage keeps only positive categories; a wedge cannot show a zero or
// negative share.
func newPiePage(class ledger.Class, txs []ledger.Transaction, order ledger.Order) *PiePage {
	page := &PiePage{Class: class, Total: decimal.Zero}

	for _, c := range ledger.Aggregate(txs, order).Categories() {
		if !c.Amount.IsPositive() {
			continue
		}
		page.Slices = append(page.Slices, Slice{Name: c.Name, Amount: c.Amount})
		page.Total = page.Total.Add(c.Amount)
	}

	return page
}

// Filename returns the deterministic name of a period's report, for example
// "Report_March_2024.pdf". An empty ext leaves the name without extension.
func Filename(period ledger.Period, ext string) string {
	name := fmt.Sprintf("Report_%s_%s", period.MonthName(), period.YearString())
	if ext == "" {
		return name
	}
	return name + "." + ext
}
