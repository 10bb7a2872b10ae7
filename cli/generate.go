package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/report"
)

type GenerateCmd struct {
	Source string      `help:"Ledger file or http(s) URL (.csv, .xlsx or .xls)." arg:"" optional:""`
	Period PeriodFlags `embed:""`
	Output OutputFlags `embed:""`
	Force  bool        `help:"Overwrite an existing report without asking." short:"F"`
}

func (cmd *GenerateCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "generate")
	if err != nil {
		return err
	}
	defer s.finish()

	if cmd.Source == "" {
		return reportFailure(ctx.Stderr, report.ErrMissingInput)
	}

	period, err := cmd.Period.resolve(s.cfg)
	if err != nil {
		return err
	}

	gen, _, err := s.generator(cmd.Output, report.WithConfirm(confirmOverwrite))
	if err != nil {
		return err
	}

	month, year := periodRequest(period)
	res, err := gen.Generate(s.ctx, report.Request{
		Month:  month,
		Year:   year,
		Source: cmd.Source,
		Force:  cmd.Force,
	})
	if err != nil {
		s.finish()
		return reportFailure(ctx.Stderr, err)
	}

	printWarnings(ctx.Stderr, res)
	printSuccess(ctx.Stdout, fmt.Sprintf("Report written to %s", pathStyle.Render(res.Path)))

	return nil
}

// printWarnings shows what a finished run degraded on.
func printWarnings(w io.Writer, res *report.Result) {
	for _, warning := range res.Warnings {
		var noData *ledger.NoDataForPeriodError
		if errors.As(warning, &noData) {
			printWarnf(w, "No income or expense transactions for %s, totals are zero", noData.Period)
			continue
		}
		printWarnf(w, "%s", warning)
	}

	if n := len(res.Partition.Ambiguous); n > 0 {
		printWarnf(w, "%d transaction(s) have a type matching both income and expense and were left out", n)
	}
	if n := len(res.Partition.Unclassified); n > 0 {
		printWarnf(w, "%d transaction(s) have an unrecognized type and were left out", n)
	}

	if res.Report != nil {
		for _, note := range res.Report.Notes {
			printInfof(w, "%s", note)
		}
	}
}
