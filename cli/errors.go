package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/report"
	"github.com/robinvdvleuten/ledgerreport/source"
)

var (
	errCaretStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
)

// ErrorRenderer renders errors with terminal styling and source context.
type ErrorRenderer struct {
	source []byte
}

// NewErrorRenderer creates a renderer with source content for context.
func NewErrorRenderer(source []byte) *ErrorRenderer {
	return &ErrorRenderer{source: source}
}

// Render formats a single error. Errors that point at a ledger row are shown
// with the surrounding lines when the source text is available.
func (r *ErrorRenderer) Render(err error) string {
	var rowErr interface{ GetRow() int }
	if errors.As(err, &rowErr) && r.source != nil {
		row := rowErr.GetRow()

		var malformed *ledger.MalformedLedgerError
		if errors.As(err, &malformed) && len(malformed.Missing) > 0 {
			row = 1
		}

		if row > 0 {
			return r.renderWithSourceContext(row, err.Error(), r.source)
		}
	}

	return err.Error()
}

// RenderAll formats multiple errors, separating them with blank lines.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf strings.Builder
	for i, err := range errs {
		buf.WriteString(r.Render(err))

		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}

	return buf.String()
}

func (r *ErrorRenderer) renderWithSourceContext(row int, message string, sourceContent []byte) string {
	var buf strings.Builder

	buf.WriteString(errorStyle.Render(message))
	buf.WriteString("\n\n")

	sourceStr := strings.ReplaceAll(string(sourceContent), "\r\n", "\n")
	sourceLines := strings.Split(sourceStr, "\n")

	startLine := row - 3
	endLine := row

	if startLine < 0 {
		startLine = 0
	}
	if endLine >= len(sourceLines) {
		endLine = len(sourceLines) - 1
	}

	for i := startLine; i <= endLine && i < row; i++ {
		line := sourceLines[i]
		buf.WriteString("   ")
		buf.WriteString(errContextStyle.Render(line))
		buf.WriteByte('\n')

		if i == row-1 && line != "" {
			buf.WriteString("   ")
			buf.WriteString(errCaretStyle.Render(strings.Repeat("^", runewidth.StringWidth(line))))
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// ledgerSource returns the local file a ledger error points at.
func ledgerSource(err error) string {
	var malformed *ledger.MalformedLedgerError
	if errors.As(err, &malformed) {
		return malformed.Source
	}
	var unparseable *ledger.UnparseableDateError
	if errors.As(err, &unparseable) {
		return unparseable.Source
	}
	return ""
}

// isWorkbook reports whether path is a spreadsheet, which has no text lines
// to show as context.
func isWorkbook(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// failureTitle is the one-line summary printed after the details.
func failureTitle(err error) string {
	var (
		malformed   *ledger.MalformedLedgerError
		unparseable *ledger.UnparseableDateError
		unavailable *source.SourceUnavailableError
	)

	switch {
	case errors.As(err, &malformed):
		return "malformed ledger"
	case errors.As(err, &unparseable):
		return "unparseable date"
	case errors.As(err, &unavailable):
		return "ledger source unavailable"
	case errors.Is(err, report.ErrMissingInput):
		return "missing input"
	case errors.Is(err, report.ErrGenerationInProgress):
		return "report generation already in progress"
	}
	return "report generation failed"
}

// reportFailure prints err and returns the CommandError main exits with.
func reportFailure(w io.Writer, err error) error {
	var conflict *report.OutputConflictError
	if errors.As(err, &conflict) {
		printError(w, fmt.Sprintf("%s already exists, not overwritten", conflict.Path))
		printInfof(w, "Run again with --force to replace it")
		return NewCommandError(ExitDeclined)
	}

	var content []byte
	if path := ledgerSource(err); path != "" && !isWorkbook(path) {
		content, _ = os.ReadFile(path)
	}

	_, _ = fmt.Fprintln(w, NewErrorRenderer(content).Render(err))
	_, _ = fmt.Fprintln(w)
	printError(w, failureTitle(err))

	return NewCommandError(ExitFailure)
}
