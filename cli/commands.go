package cli

import (
	"fmt"

	"github.com/robinvdvleuten/ledgerreport/config"
	"github.com/robinvdvleuten/ledgerreport/ledger"
)

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Config    string `help:"YAML configuration file." type:"path" env:"LEDGER_REPORT_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"warn" enum:"debug,info,warn,error" env:"LEDGER_REPORT_LOG_LEVEL"`
	LogFormat string `help:"Log format (text, json)." default:"text" enum:"text,json" env:"LEDGER_REPORT_LOG_FORMAT"`
}

type Commands struct {
	Globals

	Generate GenerateCmd `cmd:"" help:"Generate the monthly report for a ledger." default:"withargs"`
	Show     ShowCmd     `cmd:"" help:"Print a month's totals and category breakdown."`
	Watch    WatchCmd    `cmd:"" help:"Regenerate a month's report whenever the ledger changes."`
	Schedule ScheduleCmd `cmd:"" help:"Generate last month's report on a cron schedule."`
	Doctor   DoctorCmd   `cmd:"" help:"Doctor utilities for debugging ledger files."`
}

// PeriodFlags select the reporting month.
type PeriodFlags struct {
	Month string `help:"Month to report on (name, abbreviation or 1-12)." short:"m" env:"LEDGER_REPORT_MONTH"`
	Year  string `help:"Four digit year." short:"y" env:"LEDGER_REPORT_YEAR"`
}

// resolve returns the selected period, asking for missing parts on a
// terminal. The year must fall inside the configured range.
func (f PeriodFlags) resolve(cfg *config.Config) (ledger.Period, error) {
	month, year := f.Month, f.Year
	if (month == "" || year == "") && isTerminal() {
		if err := promptPeriod(cfg, &month, &year); err != nil {
			return ledger.Period{}, err
		}
	}

	period, err := ledger.ParsePeriod(month, year)
	if err != nil {
		return ledger.Period{}, err
	}

	if period.Year < cfg.Years.From || period.Year > cfg.Years.To {
		return ledger.Period{}, fmt.Errorf("year %d is outside %d-%d", period.Year, cfg.Years.From, cfg.Years.To)
	}

	return period, nil
}

// periodRequest returns the month and year as the generator expects them.
func periodRequest(p ledger.Period) (string, string) {
	return p.MonthName(), p.YearString()
}

// OutputFlags override the report settings from the configuration file.
type OutputFlags struct {
	Format   string `help:"Report format (pdf, xlsx)." short:"f" env:"LEDGER_REPORT_FORMAT"`
	Output   string `help:"Directory to write reports to." short:"o" type:"path" env:"LEDGER_REPORT_OUTPUT_DIR"`
	Currency string `help:"Currency code shown next to amounts." env:"LEDGER_REPORT_CURRENCY"`
	Order    string `help:"Category order on charts (first-seen, amount)." env:"LEDGER_REPORT_CATEGORY_ORDER"`
}

func (f OutputFlags) apply(cfg *config.Config) config.Config {
	out := *cfg
	if f.Format != "" {
		out.Format = f.Format
	}
	if f.Output != "" {
		out.OutputDir = f.Output
	}
	if f.Currency != "" {
		out.Currency = f.Currency
	}
	if f.Order != "" {
		out.CategoryOrder = f.Order
	}
	return out
}
