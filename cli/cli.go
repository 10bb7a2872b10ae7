// Package cli implements the ledgerreport command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/robinvdvleuten/ledgerreport/config"
	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/loader"
	"github.com/robinvdvleuten/ledgerreport/render"
	"github.com/robinvdvleuten/ledgerreport/report"
	"github.com/robinvdvleuten/ledgerreport/source"
	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	warnSymbol    = "!"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D7AF00", Dark: "#FFD75F"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printWarnf(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		warnStyle.Render(warnSymbol),
		formatted,
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

// promptYesNo prompts the user with a yes/no question.
// Returns false by default if stdin is not a terminal.
func promptYesNo(question string) (bool, error) {
	if !isTerminal() {
		return false, nil
	}

	var confirm bool

	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)

	err := form.Run()
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	return confirm, nil
}

// confirmOverwrite asks before an existing report is replaced.
func confirmOverwrite(ctx context.Context, path string) (bool, error) {
	return promptYesNo(fmt.Sprintf("Report %q already exists. Overwrite it?", path))
}

// promptPeriod asks for the missing parts of a period with select lists.
func promptPeriod(cfg *config.Config, month, year *string) error {
	var fields []huh.Field

	if *month == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Month").
			Options(huh.NewOptions(ledger.Months...)...).
			Value(month))
	}
	if *year == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Year").
			Options(huh.NewOptions(cfg.Years.Years()...)...).
			Value(year))
	}
	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("failed to read period: %w", err)
	}
	return nil
}

var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// session holds what a command run needs: settings, logging and telemetry.
type session struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	collector telemetry.Collector
	timer     telemetry.Timer
	stop      context.CancelFunc
	once      sync.Once
}

func newSession(ctx *kong.Context, globals *Globals, name string) (*session, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}

	s := &session{
		ctx:    context.Background(),
		cfg:    cfg,
		logger: newLogger(ctx.Stderr, globals.LogLevel, globals.LogFormat),
		stdout: ctx.Stdout,
		stderr: ctx.Stderr,
	}

	if globals.Telemetry {
		s.collector = telemetry.NewTimingCollector()
		s.ctx = telemetry.WithCollector(s.ctx, s.collector)

		s.timer = s.collector.Start(name)
		s.ctx = telemetry.WithRootTimer(s.ctx, s.timer)
	}

	s.ctx = cfg.WithContext(s.ctx)
	s.ctx, s.stop = signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)

	return s, nil
}

// finish releases the signal handler and prints collected timings once.
func (s *session) finish() {
	s.once.Do(func() {
		s.stop()
		if s.collector != nil {
			s.timer.End()
			_, _ = fmt.Fprintln(s.stderr)
			s.collector.Report(s.stderr)
		}
	})
}

func (s *session) loader() *loader.Loader {
	return loader.New(loader.FromConfig(s.cfg)...)
}

func (s *session) fetcher() *source.Fetcher {
	return source.New(
		source.WithStagingDir(s.cfg.StagingDir),
		source.WithTimeout(s.cfg.FetchTimeout),
	)
}

// release removes a transient copy of the ledger once it has been read.
// Failing to remove it is only worth a warning.
func (s *session) release(staged *source.Staged, success bool) {
	if err := staged.Release(success); err != nil {
		s.logger.Warn("failed to remove staged ledger", "path", staged.Path, "error", err)
	}
}

// generator builds a report generator from the configuration and the
// command's overrides.
func (s *session) generator(flags OutputFlags, opts ...report.GeneratorOption) (*report.Generator, report.Renderer, error) {
	cfg := flags.apply(s.cfg)

	renderer, err := render.For(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	order, err := ledger.ParseOrder(cfg.CategoryOrder)
	if err != nil {
		return nil, nil, err
	}

	base := []report.GeneratorOption{
		report.WithLoader(s.loader()),
		report.WithAcquirer(s.fetcher()),
		report.WithRenderer(renderer),
		report.WithOutputDir(cfg.OutputDir),
		report.WithLogger(s.logger),
		report.WithCategoryOrder(order),
		report.WithCurrency(cfg.Currency),
	}

	return report.NewGenerator(append(base, opts...)...), renderer, nil
}
