// Package loader reads tabular ledger files into a ledger.Ledger.
//
// Three formats are supported:
//   - CSV: comma-delimited text with a header row
//   - XLSX: the first sheet of a workbook, header in the first row
//   - XLS: the first sheet of a legacy Excel 97-2003 workbook
//
// The header must name a date, type, category and amount column. Which header
// names count for each field is configurable through config.Columns, so
// exports that say "TIME" instead of "DATE" or "CATEGORIES" instead of
// "CATEGORY" load without special casing. Dates are read day-first.
//
// Example usage:
//
//	// Load with the default column names
//	l, err := loader.New().Load(ctx, "ledger.csv")
//
//	// Load an export with custom headers
//	cols := config.DefaultColumns()
//	cols.Date = []string{"WHEN"}
//	l, err := loader.New(loader.WithColumns(cols)).Load(ctx, "export.xlsx")
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/robinvdvleuten/ledgerreport/config"
	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

// Format identifies a ledger file format.
type Format int

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = iota
	FormatCSV
	FormatXLSX
	FormatXLS
)

// ParseFormat parses "csv", "xlsx", "xls" or "auto".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	}
	return FormatAuto, fmt.Errorf("unknown ledger format %q", s)
}

// Loader parses ledger files. Configure it with functional options passed to New:
//
//	loader := New(WithColumns(cols), WithDateLayouts(layouts))
type Loader struct {
	// Columns maps ledger fields to accepted header names.
	Columns config.Columns

	// DateLayouts are tried in order for every date cell.
	DateLayouts []string

	// Format forces a file format instead of detecting it from the extension.
	Format Format
}

// Option configures how files are loaded.
type Option func(*Loader)

// WithColumns sets the header names accepted for each field.
func WithColumns(cols config.Columns) Option {
	return func(l *Loader) {
		l.Columns = cols
	}
}

// WithDateLayouts replaces the date layouts. Layouts are tried in order, so
// day-first layouts should come first.
func WithDateLayouts(layouts []string) Option {
	return func(l *Loader) {
		if len(layouts) > 0 {
			l.DateLayouts = layouts
		}
	}
}

// WithFormat forces the file format.
func WithFormat(format Format) Option {
	return func(l *Loader) {
		l.Format = format
	}
}

// FromConfig returns the options matching cfg.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithColumns(cfg.Columns),
		WithDateLayouts(cfg.DateLayouts),
	}
}

// New creates a new Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{
		Columns:     config.DefaultColumns(),
		DateLayouts: config.DefaultDateLayouts,
		Format:      FormatAuto,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads and parses a ledger file.
func (l *Loader) Load(ctx context.Context, filename string) (*ledger.Ledger, error) {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("loader.load %s", filepath.Base(filename)))
	defer timer.End()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	return l.LoadBytes(ctx, filename, data)
}

// LoadReader reads a ledger from r. The name is used for format detection and
// error messages.
func (l *Loader) LoadReader(ctx context.Context, name string, r io.Reader) (*ledger.Ledger, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return l.LoadBytes(ctx, name, data)
}

// LoadBytes parses ledger content already held in memory.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (*ledger.Ledger, error) {
	var (
		records []record
		err     error
	)

	switch l.formatFor(name) {
	case FormatXLSX:
		records, err = readXLSX(bytes.NewReader(data))
	case FormatXLS:
		records, err = readXLS(data)
	default:
		records, err = readCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &ledger.MalformedLedgerError{Source: name, Reason: err.Error()}
	}

	p := &rowParser{
		source:  name,
		layouts: l.DateLayouts,
	}

	txs, err := p.parse(ctx, records, l.Columns)
	if err != nil {
		return nil, err
	}

	return ledger.New(name, txs), nil
}

func (l *Loader) formatFor(name string) Format {
	if l.Format != FormatAuto {
		return l.Format
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatCSV
}
