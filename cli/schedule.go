package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/robfig/cron/v3"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/report"
)

// ScheduleCmd generates the previous month's report on a cron schedule.
type ScheduleCmd struct {
	Source   string      `help:"Ledger file or http(s) URL (.csv, .xlsx or .xls)." arg:""`
	Cron     string      `help:"Cron expression (minute hour day month weekday)." default:"0 6 1 * *" env:"LEDGER_REPORT_SCHEDULE"`
	Timezone string      `help:"IANA time zone the schedule runs in." default:"Local" env:"LEDGER_REPORT_TIMEZONE"`
	Output   OutputFlags `embed:""`
	Force    bool        `help:"Overwrite existing reports instead of skipping them." short:"F"`
	RunNow   bool        `help:"Also generate once at startup."`
}

func (cmd *ScheduleCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "schedule")
	if err != nil {
		return err
	}
	defer s.finish()

	loc, err := time.LoadLocation(cmd.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cmd.Timezone, err)
	}

	gen, _, err := s.generator(cmd.Output)
	if err != nil {
		return err
	}

	job := &monthlyJob{
		generator: gen,
		source:    cmd.Source,
		force:     cmd.Force,
		loc:       loc,
		now:       time.Now,
	}

	outcomes := make(chan outcome)
	c, err := newScheduler(cmd.Cron, loc, func() { job.run(s.ctx, "schedule", outcomes) })
	if err != nil {
		return err
	}

	c.Start()
	defer func() { <-c.Stop().Done() }()

	if entries := c.Entries(); len(entries) > 0 {
		printInfof(ctx.Stdout, "Next report run at %s (press Ctrl+C to stop)", entries[0].Next.Format(time.RFC1123))
	}

	if cmd.RunNow {
		go job.run(s.ctx, "startup", outcomes)
	}

	for {
		select {
		case o := <-outcomes:
			printOutcome(ctx.Stdout, ctx.Stderr, o)
		case <-s.ctx.Done():
			return nil
		}
	}
}

// newScheduler registers fn under the cron expression expr. Schedules use the standard five
// field cron syntax and descriptors such as @monthly.
func newScheduler(expr string, loc *time.Location, fn func()) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(expr, fn); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return c, nil
}

// monthlyJob generates the report of the month before the current one.
type monthlyJob struct {
	generator *report.Generator
	source    string
	force     bool
	loc       *time.Location
	now       func() time.Time
}

// request builds the generation request for the month preceding now.
func (j *monthlyJob) request() report.Request {
	period := ledger.PeriodOf(j.now().In(j.loc)).Previous()
	month, year := periodRequest(period)

	return report.Request{
		Month:  month,
		Year:   year,
		Source: j.source,
		Force:  j.force,
	}
}

func (j *monthlyJob) run(ctx context.Context, trigger string, outcomes chan<- outcome) {
	res, err := j.generator.Generate(ctx, j.request())

	select {
	case outcomes <- outcome{Trigger: trigger, Result: res, Err: err}:
	case <-ctx.Done():
	}
}
