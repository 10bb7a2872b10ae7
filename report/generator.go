package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/loader"
	"github.com/robinvdvleuten/ledgerreport/source"
	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

// State is a step of a single generation run.
//
//	Idle → Validating → CheckingOverwrite → Loading → Filtering →
//	Aggregating → Rendering → Writing → Done | Failed
//
// A rejected request (missing input, declined overwrite, a run already in
// progress) goes back to Idle without touching any file.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCheckingOverwrite
	StateLoading
	StateFiltering
	StateAggregating
	StateRendering
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCheckingOverwrite:
		return "checking-overwrite"
	case StateLoading:
		return "loading"
	case StateFiltering:
		return "filtering"
	case StateAggregating:
		return "aggregating"
	case StateRendering:
		return "rendering"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event reports a state change of a run. Err is set on Failed, and on Idle
// when the request was rejected.
type Event struct {
	RunID  string
	State  State
	Period ledger.Period
	Path   string
	Err    error
}

// Renderer writes a report as a document.
type Renderer interface {
	Render(ctx context.Context, r *Report, w io.Writer) error
	Extension() string
}

// LedgerLoader reads a ledger file.
type LedgerLoader interface {
	Load(ctx context.Context, filename string) (*ledger.Ledger, error)
}

// ConfirmFunc asks whether an existing report at path may be overwritten.
type ConfirmFunc func(ctx context.Context, path string) (bool, error)

// Request is a single report generation request.
type Request struct {
	Month  string
	Year   string
	Source string

	// Force overwrites an existing report without asking.
	Force bool
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Period    ledger.Period
	Path      string
	Report    *Report
	Partition ledger.Partition

	// Warnings hold problems that did not stop the report, such as
	// *ledger.NoDataForPeriodError.
	Warnings []error
}

// Generator runs report generation requests. A Generator is safe for
// concurrent use; requests for the same output file are serialized by
// rejecting the later one with ErrGenerationInProgress.
type Generator struct {
	loader    LedgerLoader
	renderer  Renderer
	acquirer  source.Acquirer
	outputDir string
	confirm   ConfirmFunc
	notify    func(Event)
	logger    *slog.Logger
	order     ledger.Order
	currency  string

	guard *guard
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLoader sets the ledger loader.
func WithLoader(l LedgerLoader) GeneratorOption {
	return func(g *Generator) {
		g.loader = l
	}
}

// WithRenderer sets the document renderer. It also decides the file extension.
func WithRenderer(r Renderer) GeneratorOption {
	return func(g *Generator) {
		g.renderer = r
	}
}

// WithAcquirer sets how ledger references are resolved to local files.
func WithAcquirer(a source.Acquirer) GeneratorOption {
	return func(g *Generator) {
		g.acquirer = a
	}
}

// WithOutputDir sets the directory reports are written to.
func WithOutputDir(dir string) GeneratorOption {
	return func(g *Generator) {
		g.outputDir = dir
	}
}

// WithConfirm sets the overwrite confirmation. Without one, existing reports
// are only replaced for requests with Force set.
func WithConfirm(fn ConfirmFunc) GeneratorOption {
	return func(g *Generator) {
		g.confirm = fn
	}
}

// WithNotify sets the callback receiving state changes. It is called from the
// goroutine running Generate.
func WithNotify(fn func(Event)) GeneratorOption {
	return func(g *Generator) {
		g.notify = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithCategoryOrder sets the order of categories on the pie pages.
func WithCategoryOrder(order ledger.Order) GeneratorOption {
	return func(g *Generator) {
		g.order = order
	}
}

// WithCurrency sets the currency code shown next to amounts.
func WithCurrency(currency string) GeneratorOption {
	return func(g *Generator) {
		g.currency = currency
	}
}

// NewGenerator creates a Generator. A renderer must be configured with
// WithRenderer before Generate can succeed.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		loader:    loader.New(),
		acquirer:  source.New(),
		outputDir: ".",
		logger:    slog.New(slog.DiscardHandler),
		order:     ledger.OrderFirstSeen,
		currency:  "INR",
		guard:     newGuard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// run carries the per-request state of Generate.
type run struct {
	g      *Generator
	id     string
	period ledger.Period
	path   string
	logger *slog.Logger
	ctx    context.Context
}

func (r *run) emit(state State, err error) {
	if r.g.notify != nil {
		r.g.notify(Event{RunID: r.id, State: state, Period: r.period, Path: r.path, Err: err})
	}
}

func (r *run) enter(state State) telemetry.Timer {
	r.logger.Debug("state", "state", state.String())
	r.emit(state, nil)
	return telemetry.StartTimer(r.ctx, "report."+state.String())
}

// reject returns the run to Idle without side effects.
func (r *run) reject(err error) error {
	r.logger.Info("request rejected", "error", err)
	r.emit(StateIdle, err)
	return err
}

func (r *run) fail(state State, err error) error {
	err = &StageError{State: state, Err: err}
	r.logger.Error("report generation failed", "state", state.String(), "error", err)
	r.emit(StateFailed, err)
	return err
}

// Generate runs one request through every state. The context is honoured up
// to the Writing state; once writing starts it runs to completion or fails
// without leaving a partial file behind.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	r := &run{g: g, id: uuid.NewString(), ctx: ctx}
	r.logger = g.logger.With("run_id", r.id)

	timer := r.enter(StateValidating)
	period, err := g.validate(req)
	timer.End()
	if err != nil {
		return nil, r.reject(err)
	}
	r.period = period
	r.path = filepath.Join(g.outputDir, Filename(period, g.renderer.Extension()))
	r.logger = r.logger.With("period", period.String(), "path", r.path)

	release, ok := g.guard.tryAcquire(r.path)
	if !ok {
		return nil, r.reject(fmt.Errorf("%s: %w", r.path, ErrGenerationInProgress))
	}
	defer release()

	timer = r.enter(StateCheckingOverwrite)
	err = g.checkOverwrite(ctx, r.path, req.Force)
	timer.End()
	if err != nil {
		var conflict *OutputConflictError
		if errors.As(err, &conflict) {
			return nil, r.reject(err)
		}
		return nil, r.fail(StateCheckingOverwrite, err)
	}

	timer = r.enter(StateLoading)
	staged, err := g.acquirer.Acquire(ctx, req.Source)
	if err != nil {
		timer.End()
		return nil, r.fail(StateLoading, err)
	}

	// A downloaded ledger survives failures so the run can be retried
	succeeded := false
	defer func() {
		if err := staged.Release(succeeded); err != nil {
			r.logger.Warn("failed to remove staged ledger", "staged", staged.Path, "error", err)
		} else if staged.Transient {
			r.logger.Warn("staged ledger kept for retry", "staged", staged.Path)
		}
	}()

	l, err := g.loader.Load(ctx, staged.Path)
	timer.End()
	if err != nil {
		return nil, r.fail(StateLoading, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(StateFiltering, err)
	}
	timer = r.enter(StateFiltering)
	part := l.Partition(period)
	g.logClassification(r.logger, part)
	timer.End()

	if err := ctx.Err(); err != nil {
		return nil, r.fail(StateAggregating, err)
	}
	timer = r.enter(StateAggregating)
	rep := Assemble(period, part, Options{Order: g.order, Currency: g.currency})
	timer.End()

	result := &Result{
		RunID:     r.id,
		Period:    period,
		Path:      r.path,
		Report:    rep,
		Partition: part,
	}
	if part.IsEmpty() {
		warning := &ledger.NoDataForPeriodError{Period: period}
		r.logger.Warn("no transactions for period", "error", warning)
		result.Warnings = append(result.Warnings, warning)
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(StateRendering, err)
	}
	timer = r.enter(StateRendering)
	var buf bytes.Buffer
	err = g.renderer.Render(ctx, rep, &buf)
	timer.End()
	if err != nil {
		return nil, r.fail(StateRendering, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(StateWriting, err)
	}
	timer = r.enter(StateWriting)
	err = g.write(r.path, buf.Bytes())
	timer.End()
	if err != nil {
		return nil, r.fail(StateWriting, err)
	}

	succeeded = true
	r.logger.Info("report written", "pages", len(rep.Pages), "bytes", buf.Len())
	r.emit(StateDone, nil)

	return result, nil
}

func (g *Generator) validate(req Request) (ledger.Period, error) {
	var missing []string
	if strings.TrimSpace(req.Month) == "" {
		missing = append(missing, "month")
	}
	if strings.TrimSpace(req.Year) == "" {
		missing = append(missing, "year")
	}
	if strings.TrimSpace(req.Source) == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return ledger.Period{}, fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}

	if g.renderer == nil {
		return ledger.Period{}, errors.New("no renderer configured")
	}

	return ledger.ParsePeriod(req.Month, req.Year)
}

func (g *Generator) checkOverwrite(ctx context.Context, path string, force bool) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) || force {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check existing report: %w", err)
	}

	if g.confirm == nil {
		return &OutputConflictError{Path: path}
	}

	ok, err := g.confirm(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to confirm overwrite: %w", err)
	}
	if !ok {
		return &OutputConflictError{Path: path}
	}
	return nil
}

func (g *Generator) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeAtomic(path, data)
}

func (g *Generator) logClassification(logger *slog.Logger, part ledger.Partition) {
	for _, txn := range part.Fallback {
		class, match := ledger.Classify(txn.Type)
		logger.Warn("type classified by fallback rule",
			"row", txn.Row, "type", txn.Type, "class", class.String(), "match", match.String())
	}
	for _, txn := range part.Ambiguous {
		logger.Warn("type names both income and expense, row excluded",
			"row", txn.Row, "type", txn.Type)
	}
	for _, txn := range part.Unclassified {
		logger.Warn("type is neither income nor expense, row excluded",
			"row", txn.Row, "type", txn.Type)
	}
}
