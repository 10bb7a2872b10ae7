package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fsnotify/fsnotify"

	"github.com/robinvdvleuten/ledgerreport/report"
)

// WatchCmd keeps one period's report in sync with a local ledger file.
type WatchCmd struct {
	Source string      `help:"Local ledger file to watch (.csv, .xlsx or .xls)." arg:"" type:"existingfile"`
	Period PeriodFlags `embed:""`
	Output OutputFlags `embed:""`
	Force  bool        `help:"Overwrite an existing report without asking." short:"F"`
}

func (cmd *WatchCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "watch")
	if err != nil {
		return err
	}
	defer s.finish()

	period, err := cmd.Period.resolve(s.cfg)
	if err != nil {
		return err
	}

	gen, renderer, err := s.generator(cmd.Output)
	if err != nil {
		return err
	}

	file, err := filepath.Abs(cmd.Source)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Regenerations replace the report every time, so ask once up front.
	path := filepath.Join(cmd.Output.apply(s.cfg).OutputDir, report.Filename(period, renderer.Extension()))
	if !cmd.Force {
		if _, err := os.Stat(path); err == nil {
			confirmed, err := promptYesNo(fmt.Sprintf("Report %q already exists. Overwrite it on every change?", path))
			if err != nil {
				return err
			}
			if !confirmed {
				printError(ctx.Stderr, fmt.Sprintf("%s already exists, not overwritten", path))
				return NewCommandError(ExitDeclined)
			}
		}
	}

	month, year := periodRequest(period)
	w := &ledgerWatcher{
		generator: gen,
		file:      file,
		request:   report.Request{Month: month, Year: year, Source: file, Force: true},
		logger:    s.logger,
	}

	printInfof(ctx.Stdout, "Watching %s for %s (press Ctrl+C to stop)", pathStyle.Render(file), period)

	outcomes := make(chan outcome)
	errc := make(chan error, 1)
	go func() {
		errc <- w.run(s.ctx, outcomes)
	}()

	for {
		select {
		case o := <-outcomes:
			printOutcome(ctx.Stdout, ctx.Stderr, o)
		case err := <-errc:
			return err
		}
	}
}

// outcome is the result of one background generation.
type outcome struct {
	Trigger string
	Result  *report.Result
	Err     error
}

// printOutcome reports a background generation. Conflicts and overlapping
// runs are skips, not failures.
func printOutcome(stdout, stderr io.Writer, o outcome) {
	var conflict *report.OutputConflictError

	switch {
	case o.Err == nil:
		printWarnings(stderr, o.Result)
		printSuccess(stdout, fmt.Sprintf("%s: report for %s written to %s", o.Trigger, o.Result.Period, pathStyle.Render(o.Result.Path)))
	case errors.Is(o.Err, context.Canceled):
	case errors.Is(o.Err, report.ErrGenerationInProgress):
		printWarnf(stderr, "%s: skipped, a generation for this report is still running", o.Trigger)
	case errors.As(o.Err, &conflict):
		printWarnf(stderr, "%s: skipped, %s already exists (use --force to replace it)", o.Trigger, conflict.Path)
	default:
		_, _ = fmt.Fprintln(stderr, NewErrorRenderer(nil).Render(o.Err))
		printError(stderr, fmt.Sprintf("%s: %s", o.Trigger, failureTitle(o.Err)))
	}
}

// ledgerWatcher regenerates a report whenever its ledger file changes.
// Changes that arrive while a generation runs are queued into one more run.
type ledgerWatcher struct {
	generator *report.Generator
	file      string
	request   report.Request
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	pending bool
}

// debounceDelay absorbs editors that write files in multiple steps.
const debounceDelay = 100 * time.Millisecond

// run generates once, then after every settled change until ctx is done.
// Generations run on timer goroutines and send their outcome to outcomes.
func (w *ledgerWatcher) run(ctx context.Context, outcomes chan<- outcome) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory; atomic saves replace the file itself.
	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.file, err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	go w.generate(ctx, "initial run", outcomes)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug("ledger changed", "path", event.Name, "op", event.Op.String())

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				w.generate(ctx, "change", outcomes)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// generate runs until no change is pending. A call made while another is
// running only marks the report stale.
func (w *ledgerWatcher) generate(ctx context.Context, trigger string, outcomes chan<- outcome) {
	w.mu.Lock()
	if w.running {
		w.pending = true
		w.mu.Unlock()
		w.logger.Debug("generation running, change queued", "path", w.file)
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		res, err := w.generator.Generate(ctx, w.request)

		select {
		case outcomes <- outcome{Trigger: trigger, Result: res, Err: err}:
		case <-ctx.Done():
		}

		w.mu.Lock()
		if !w.pending || ctx.Err() != nil {
			w.running, w.pending = false, false
			w.mu.Unlock()
			return
		}
		w.pending = false
		w.mu.Unlock()

		trigger = "change"
	}
}
