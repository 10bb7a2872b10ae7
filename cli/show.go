package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-runewidth"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/output"
	"github.com/robinvdvleuten/ledgerreport/report"
)

// ShowCmd prints a period's report to the terminal without writing a file.
type ShowCmd struct {
	Source       string      `help:"Ledger file or http(s) URL (.csv, .xlsx or .xls)." arg:""`
	Period       PeriodFlags `embed:""`
	Currency     string      `help:"Currency code shown next to amounts." env:"LEDGER_REPORT_CURRENCY"`
	Order        string      `help:"Category order (first-seen, amount)." env:"LEDGER_REPORT_CATEGORY_ORDER"`
	Transactions bool        `help:"List the individual transactions as well." short:"t"`
}

func (cmd *ShowCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "show")
	if err != nil {
		return err
	}
	defer s.finish()

	period, err := cmd.Period.resolve(s.cfg)
	if err != nil {
		return err
	}

	cfg := OutputFlags{Currency: cmd.Currency, Order: cmd.Order}.apply(s.cfg)
	order, err := ledger.ParseOrder(cfg.CategoryOrder)
	if err != nil {
		return err
	}

	staged, err := s.fetcher().Acquire(s.ctx, cmd.Source)
	if err != nil {
		return reportFailure(ctx.Stderr, err)
	}

	l, err := s.loader().Load(s.ctx, staged.Path)
	s.release(staged, err == nil)
	if err != nil {
		s.finish()
		return reportFailure(ctx.Stderr, err)
	}

	part := l.Partition(period)
	rep := report.Assemble(period, part, report.Options{Order: order, Currency: cfg.Currency})

	writeReport(ctx.Stdout, output.NewStyles(ctx.Stdout), rep, cmd.Transactions)
	printWarnings(ctx.Stderr, &report.Result{Period: period, Report: rep, Partition: part})

	return nil
}

// writeReport prints the summary followed by one block per page.
func writeReport(w io.Writer, styles *output.Styles, rep *report.Report, transactions bool) {
	currency := rep.Currency
	sum := rep.Summary

	_, _ = fmt.Fprintln(w, styles.Keyword(fmt.Sprintf("Summary for %s", rep.Period)))
	_, _ = fmt.Fprintln(w)

	amounts := []string{
		ledger.FormatAmount(sum.Income),
		ledger.FormatAmount(sum.Expense),
		ledger.FormatAmount(sum.Net()),
	}
	width := maxWidth(amounts)

	line := func(label, amount string, style func(string) string) {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n",
			runewidth.FillRight(label, 8),
			style(runewidth.FillLeft(amount, width)),
			styles.Dim(currency))
	}
	line("Income", amounts[0], styles.Income)
	line("Expense", amounts[1], styles.Expense)
	line("Net", amounts[2], func(s string) string { return styles.Net(s, sum.Net()) })

	for _, page := range rep.Pages {
		switch p := page.(type) {
		case *report.TablePage:
			if transactions {
				writeTable(w, styles, p)
			}
		case *report.PiePage:
			writePie(w, styles, p)
		}
	}
}

func writeTable(w io.Writer, styles *output.Styles, page *report.TablePage) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.Keyword(page.Title()))

	if len(page.Rows) == 0 {
		_, _ = fmt.Fprintf(w, "  %s\n", styles.Dim(report.NoDataMessage))
		return
	}

	categories := make([]string, 0, len(page.Rows)+1)
	amounts := make([]string, 0, len(page.Rows)+1)
	for _, row := range page.Rows {
		categories = append(categories, row.Category)
		amounts = append(amounts, ledger.FormatAmount(row.Amount))
	}
	total := ledger.FormatAmount(page.Total)
	catWidth := maxWidth(append(categories, "Total"))
	amtWidth := maxWidth(append(amounts, total))

	for i, row := range page.Rows {
		note := ""
		if row.Note != "" {
			note = " " + styles.Dim(row.Note)
		}
		_, _ = fmt.Fprintf(w, "  %s  %s  %s%s\n",
			row.Date.Format("02/01/2006"),
			styles.Category(runewidth.FillRight(categories[i], catWidth)),
			runewidth.FillLeft(amounts[i], amtWidth),
			note)
	}

	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n",
		strings.Repeat(" ", 10),
		runewidth.FillRight("Total", catWidth),
		styles.Keyword(runewidth.FillLeft(total, amtWidth)))
}

func writePie(w io.Writer, styles *output.Styles, page *report.PiePage) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.Keyword(page.Title()))

	names := make([]string, 0, len(page.Slices)+1)
	amounts := make([]string, 0, len(page.Slices)+1)
	for _, slice := range page.Slices {
		names = append(names, slice.Name)
		amounts = append(amounts, ledger.FormatAmount(slice.Amount))
	}
	total := ledger.FormatAmount(page.Total)
	nameWidth := maxWidth(append(names, "Total"))
	amtWidth := maxWidth(append(amounts, total))

	for i := range page.Slices {
		_, _ = fmt.Fprintf(w, "  %s  %s  %s\n",
			styles.Category(runewidth.FillRight(names[i], nameWidth)),
			runewidth.FillLeft(amounts[i], amtWidth),
			styles.Dim(runewidth.FillLeft(fmt.Sprintf("%.1f%%", page.Percent(i)), 6)))
	}

	_, _ = fmt.Fprintf(w, "  %s  %s\n",
		runewidth.FillRight("Total", nameWidth),
		styles.Keyword(runewidth.FillLeft(total, amtWidth)))
}

func maxWidth(values []string) int {
	width := 0
	for _, v := range values {
		if n := runewidth.StringWidth(v); n > width {
			width = n
		}
	}
	return width
}
