package report

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/ledgerreport/ledger"
)

var march = ledger.Period{Month: time.March, Year: 2024}

func txn(month time.Month, day int, kind, category, amount string) ledger.Transaction {
	return ledger.Transaction{
		Date:     time.Date(2024, month, day, 0, 0, 0, 0, time.UTC),
		Type:     kind,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
	}
}

func sampleLedger() *ledger.Ledger {
	return ledger.New("sample.csv", []ledger.Transaction{
		txn(time.March, 5, "Income", "Salary", "50000.00"),
		txn(time.March, 10, "Expense", "Rent", "15000.00"),
		txn(time.April, 1, "Income", "Bonus", "2000.00"),
	})
}

func kinds(r *Report) []PageKind {
	var out []PageKind
	for _, p := range r.Pages {
		out = append(out, p.Kind())
	}
	return out
}

func TestAssemble(t *testing.T) {
	r := Assemble(march, sampleLedger().Partition(march), Options{Currency: "INR"})

	assert.Equal(t, PageOrder, kinds(r))
	assert.Equal(t, 0, len(r.Notes))
	assert.Equal(t, "INR", r.Currency)

	page, ok := r.Page(SummaryPageKind)
	assert.True(t, ok)
	summary := page.(*SummaryPage)
	assert.Equal(t, "50000.00", ledger.FormatAmount(summary.Income))
	assert.Equal(t, "15000.00", ledger.FormatAmount(summary.Expense))
	assert.Equal(t, "35000.00", ledger.FormatAmount(summary.Net))
	assert.Equal(t, "Summary for March 2024", summary.Title())

	page, ok = r.Page(IncomePiePageKind)
	assert.True(t, ok)
	pie := page.(*PiePage)
	assert.Equal(t, 1, len(pie.Slices))
	assert.Equal(t, "Salary", pie.Slices[0].Name)
	assert.Equal(t, 100.0, pie.Percent(0))

	page, ok = r.Page(ExpenseTablePageKind)
	assert.True(t, ok)
	table := page.(*TablePage)
	assert.Equal(t, 1, len(table.Rows))
	assert.Equal(t, "Rent", table.Rows[0].Category)
	assert.Equal(t, "15000.00", ledger.FormatAmount(table.Total))
	assert.Equal(t, "Expense Transactions", table.Title())
}

func TestAssembleEmptyPeriod(t *testing.T) {
	period := ledger.Period{Month: time.January, Year: 2020}
	r := Assemble(period, sampleLedger().Partition(period), Options{})

	assert.Equal(t, []PageKind{SummaryPageKind, ExpenseTablePageKind, IncomeTablePageKind}, kinds(r))
	assert.Equal(t, "0.00", ledger.FormatAmount(r.Summary.Net()))

	var pieNotes []PageKind
	for _, n := range r.Notes {
		assert.Equal(t, NoDataMessage, n.Message)
		if n.Page == IncomePiePageKind || n.Page == ExpensePiePageKind {
			pieNotes = append(pieNotes, n.Page)
		}
	}
	assert.Equal(t, []PageKind{IncomePiePageKind, ExpensePiePageKind}, pieNotes)

	page, _ := r.Page(IncomeTablePageKind)
	assert.Equal(t, 0, len(page.(*TablePage).Rows))
}

func TestAssembleOneSidedPeriod(t *testing.T) {
	l := ledger.New("expenses.csv", []ledger.Transaction{
		txn(time.March, 1, "Expense", "Food", "10"),
		txn(time.March, 2, "Expense", "Rent", "500"),
	})
	r := Assemble(march, l.Partition(march), Options{Order: ledger.OrderAmount})

	_, ok := r.Page(IncomePiePageKind)
	assert.False(t, ok)

	page, ok := r.Page(ExpensePiePageKind)
	assert.True(t, ok)
	pie := page.(*PiePage)
	assert.Equal(t, "Rent", pie.Slices[0].Name)
	assert.Equal(t, "510.00", ledger.FormatAmount(pie.Total))
}

func TestAssembleSkipsNonPositiveSlices(t *testing.T) {
	l := ledger.New("refunds.csv", []ledger.Transaction{
		txn(time.March, 1, "Expense", "Food", "10"),
		txn(time.March, 2, "Expense", "Refund", "-4"),
		txn(time.March, 3, "Expense", "Free", "0"),
	})
	r := Assemble(march, l.Partition(march), Options{})

	page, ok := r.Page(ExpensePiePageKind)
	assert.True(t, ok)
	pie := page.(*PiePage)
	assert.Equal(t, 1, len(pie.Slices))
	assert.Equal(t, 100.0, pie.Percent(0))

	table, _ := r.Page(ExpenseTablePageKind)
	assert.Equal(t, 3, len(table.(*TablePage).Rows))
	assert.Equal(t, "6.00", ledger.FormatAmount(table.(*TablePage).Total))
}

func TestAssembleDoesNotMutate(t *testing.T) {
	l := sampleLedger()
	part := l.Partition(march)
	before := part.Income[0]

	r := Assemble(march, part, Options{})
	page, _ := r.Page(IncomeTablePageKind)
	page.(*TablePage).Rows[0].Category = "Changed"

	assert.Equal(t, before, part.Income[0])
	assert.Equal(t, "Salary", l.Transactions()[0].Category)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Report_March_2024.pdf", Filename(march, "pdf"))
	assert.Equal(t, "Report_March_2024", Filename(march, ""))
	assert.Equal(t, "Report_January_2021.xlsx", Filename(ledger.Period{Month: time.January, Year: 2021}, "xlsx"))
}

func TestPageKindString(t *testing.T) {
	assert.Equal(t, "Summary", SummaryPageKind.String())
	assert.Equal(t, "Expense Pie", ExpensePiePageKind.String())
	assert.Equal(t, "Income Pie: no data for this period", Note{Page: IncomePiePageKind, Message: NoDataMessage}.String())
}
