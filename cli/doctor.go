package cli

import (
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"

	"github.com/robinvdvleuten/ledgerreport/ledger"
)

// DoctorCmd provides doctor utilities for debugging ledger files.
type DoctorCmd struct {
	Rows RowsCmd `cmd:"" help:"Show how each ledger row was parsed and classified."`
}

// RowsCmd shows the parsed rows of a ledger file.
type RowsCmd struct {
	Source string `help:"Ledger file or http(s) URL (.csv, .xlsx or .xls)." arg:""`
	Month  string `help:"Only show rows of this month (requires --year)." short:"m"`
	Year   string `help:"Only show rows of this year (requires --month)." short:"y"`
}

// rowView is the debugging view of a single transaction.
type rowView struct {
	Row      int
	Date     string
	Type     string
	Class    string
	Match    string
	Category string
	Amount   string
	Note     string
}

// Run executes the rows command.
func (cmd *RowsCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "doctor rows")
	if err != nil {
		return err
	}
	defer s.finish()

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

	if cmd.Month != "" || cmd.Year != "" {
		period, err := ledger.ParsePeriod(cmd.Month, cmd.Year)
		if err != nil {
			return err
		}
		l = l.Filter(period)
	}

	dumpRows(ctx.Stdout, l)

	return nil
}

// dumpRows prints one repr block per transaction, followed by a count.
func dumpRows(w io.Writer, l *ledger.Ledger) {
	for _, txn := range l.Transactions() {
		class, match := ledger.Classify(txn.Type)

		view := rowView{
			Row:      txn.Row,
			Date:     txn.Date.Format("2006-01-02"),
			Type:     txn.Type,
			Class:    class.String(),
			Match:    match.String(),
			Category: txn.Category,
			Amount:   ledger.FormatAmount(txn.Amount),
			Note:     txn.Note,
		}

		_, _ = fmt.Fprintln(w, repr.String(view, repr.Indent("  "), repr.OmitEmpty(true)))
	}

	_, _ = fmt.Fprintf(w, "%d row(s)\n", l.Len())
}
