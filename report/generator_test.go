package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/ledgerreport/ledger"
	"github.com/robinvdvleuten/ledgerreport/source"
)

const sampleCSV = `DATE,TYPE,CATEGORY,AMOUNT
05/03/2024,Income,Salary,50000.00
10/03/2024,Expense,Rent,15000.00
01/04/2024,Income,Bonus,2000.00
`

// textRenderer writes the headline figures as plain text. Only the first
// render closes started and waits for block.
type textRenderer struct {
	started chan struct{}
	block   chan struct{}
	err     error

	renders atomic.Int32
}

func (r *textRenderer) Extension() string { return "txt" }

func (r *textRenderer) Render(ctx context.Context, rep *Report, w io.Writer) error {
	if r.renders.Add(1) == 1 {
		if r.started != nil {
			close(r.started)
		}
		if r.block != nil {
			<-r.block
		}
	}
	if r.err != nil {
		return r.err
	}
	_, err := fmt.Fprintf(w, "%s income=%s expense=%s net=%s pages=%d\n",
		rep.Period,
		ledger.FormatAmount(rep.Summary.Income),
		ledger.FormatAmount(rep.Summary.Expense),
		ledger.FormatAmount(rep.Summary.Net()),
		len(rep.Pages))
	return err
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		out = append(out, e.State)
	}
	return out
}

func writeLedger(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ledger.csv")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports")
	src := writeLedger(t, dir, sampleCSV)

	rec := &recorder{}
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(out), WithNotify(rec.notify))

	result, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})
	assert.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "Report_March_2024.txt"), result.Path)
	assert.Equal(t, 0, len(result.Warnings))
	assert.NotZero(t, result.RunID)

	data, err := os.ReadFile(result.Path)
	assert.NoError(t, err)
	assert.Equal(t, "March 2024 income=50000.00 expense=15000.00 net=35000.00 pages=5\n", string(data))

	assert.Equal(t, []State{
		StateValidating,
		StateCheckingOverwrite,
		StateLoading,
		StateFiltering,
		StateAggregating,
		StateRendering,
		StateWriting,
		StateDone,
	}, rec.states())

	for _, e := range rec.events {
		assert.Equal(t, result.RunID, e.RunID)
	}

	assert.Equal(t, []string{"Report_March_2024.txt"}, listDir(t, out))
}

func TestGenerateMissingInput(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir), WithNotify(rec.notify))

	tests := []struct {
		name string
		req  Request
	}{
		{"Month", Request{Year: "2024", Source: "ledger.csv"}},
		{"Year", Request{Month: "March", Source: "ledger.csv"}},
		{"Source", Request{Month: "March", Year: "2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), tt.req)
			assert.True(t, errors.Is(err, ErrMissingInput))
		})
	}

	for i, state := range rec.states() {
		if i%2 == 0 {
			assert.Equal(t, StateValidating, state)
		} else {
			assert.Equal(t, StateIdle, state)
		}
	}
	assert.Equal(t, 0, len(listDir(t, dir)))
}

func TestGenerateInvalidPeriod(t *testing.T) {
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(t.TempDir()))

	_, err := g.Generate(context.Background(), Request{Month: "Smarch", Year: "2024", Source: "ledger.csv"})
	assert.Error(t, err)
}

func TestGenerateOverwrite(t *testing.T) {
	setup := func(t *testing.T) (dir, src, existing string) {
		dir = t.TempDir()
		src = writeLedger(t, dir, sampleCSV)
		existing = filepath.Join(dir, "Report_March_2024.txt")
		assert.NoError(t, os.WriteFile(existing, []byte("previous report"), 0o644))
		return dir, src, existing
	}

	t.Run("DeclinedLeavesFileUntouched", func(t *testing.T) {
		dir, src, existing := setup(t)

		var asked string
		rec := &recorder{}
		g := NewGenerator(
			WithRenderer(&textRenderer{}),
			WithOutputDir(dir),
			WithNotify(rec.notify),
			WithConfirm(func(ctx context.Context, path string) (bool, error) {
				asked = path
				return false, nil
			}),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})

		var conflict *OutputConflictError
		assert.True(t, errors.As(err, &conflict))
		assert.Equal(t, existing, conflict.Path)
		assert.Equal(t, existing, asked)

		data, err := os.ReadFile(existing)
		assert.NoError(t, err)
		assert.Equal(t, "previous report", string(data))

		assert.Equal(t, []State{StateValidating, StateCheckingOverwrite, StateIdle}, rec.states())
	})

	t.Run("NoConfirmationDeclines", func(t *testing.T) {
		dir, src, existing := setup(t)
		g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir))

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})

		var conflict *OutputConflictError
		assert.True(t, errors.As(err, &conflict))

		data, err := os.ReadFile(existing)
		assert.NoError(t, err)
		assert.Equal(t, "previous report", string(data))
	})

	t.Run("Confirmed", func(t *testing.T) {
		dir, src, existing := setup(t)
		g := NewGenerator(
			WithRenderer(&textRenderer{}),
			WithOutputDir(dir),
			WithConfirm(func(ctx context.Context, path string) (bool, error) { return true, nil }),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})
		assert.NoError(t, err)

		data, err := os.ReadFile(existing)
		assert.NoError(t, err)
		assert.Contains(t, string(data), "net=35000.00")
	})

	t.Run("Forced", func(t *testing.T) {
		dir, src, existing := setup(t)
		g := NewGenerator(
			WithRenderer(&textRenderer{}),
			WithOutputDir(dir),
			WithConfirm(func(ctx context.Context, path string) (bool, error) {
				t.Fatal("confirmation must not be asked when forced")
				return false, nil
			}),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src, Force: true})
		assert.NoError(t, err)

		data, err := os.ReadFile(existing)
		assert.NoError(t, err)
		assert.Contains(t, string(data), "net=35000.00")
	})

	t.Run("ConfirmError", func(t *testing.T) {
		dir, src, _ := setup(t)
		rec := &recorder{}
		g := NewGenerator(
			WithRenderer(&textRenderer{}),
			WithOutputDir(dir),
			WithNotify(rec.notify),
			WithConfirm(func(ctx context.Context, path string) (bool, error) {
				return false, errors.New("no terminal")
			}),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})

		var stage *StageError
		assert.True(t, errors.As(err, &stage))
		assert.Equal(t, StateCheckingOverwrite, stage.State)
		assert.Equal(t, StateFailed, rec.states()[len(rec.states())-1])
	})
}

func TestGenerateMalformedLedger(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports")
	src := writeLedger(t, dir, "DATE,TYPE,CATEGORY\n05/03/2024,Income,Salary\n")

	rec := &recorder{}
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(out), WithNotify(rec.notify))

	_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})

	var malformed *ledger.MalformedLedgerError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, []string{"AMOUNT"}, malformed.Missing)

	states := rec.states()
	assert.Equal(t, StateFailed, states[len(states)-1])
	for _, s := range states {
		assert.NotEqual(t, StateRendering, s)
	}

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateUnparseableDate(t *testing.T) {
	dir := t.TempDir()
	src := writeLedger(t, dir, "DATE,TYPE,CATEGORY,AMOUNT\n31/02/2024x,Income,Salary,1\n")
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir))

	_, err := g.Generate(context.Background(), Request{Month: "February", Year: "2024", Source: src})

	var unparseable *ledger.UnparseableDateError
	assert.True(t, errors.As(err, &unparseable))
	assert.Equal(t, 2, unparseable.Row)
	assert.Equal(t, []string{"ledger.csv"}, listDir(t, dir))
}

func TestGenerateMissingSource(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir))

	_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: filepath.Join(dir, "nope.csv")})

	var unavailable *source.SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 0, len(listDir(t, dir)))
}

func TestGenerateEmptyPeriod(t *testing.T) {
	dir := t.TempDir()
	src := writeLedger(t, dir, sampleCSV)
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir))

	result, err := g.Generate(context.Background(), Request{Month: "January", Year: "2020", Source: src})
	assert.NoError(t, err)

	assert.Equal(t, 1, len(result.Warnings))
	var noData *ledger.NoDataForPeriodError
	assert.True(t, errors.As(result.Warnings[0], &noData))

	data, err := os.ReadFile(result.Path)
	assert.NoError(t, err)
	assert.Equal(t, "January 2020 income=0.00 expense=0.00 net=0.00 pages=3\n", string(data))
}

func TestGenerateRenderFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeLedger(t, dir, sampleCSV)
	g := NewGenerator(WithRenderer(&textRenderer{err: errors.New("boom")}), WithOutputDir(dir))

	_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src})

	var stage *StageError
	assert.True(t, errors.As(err, &stage))
	assert.Equal(t, StateRendering, stage.State)
	assert.Equal(t, []string{"ledger.csv"}, listDir(t, dir))
}

func TestGenerateCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeLedger(t, dir, sampleCSV)
	g := NewGenerator(WithRenderer(&textRenderer{}), WithOutputDir(dir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, Request{Month: "March", Year: "2024", Source: src})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"ledger.csv"}, listDir(t, dir))
}

func TestGenerateInProgress(t *testing.T) {
	dir := t.TempDir()
	src := writeLedger(t, dir, sampleCSV)

	renderer := &textRenderer{started: make(chan struct{}), block: make(chan struct{})}
	g := NewGenerator(WithRenderer(renderer), WithOutputDir(dir))
	req := Request{Month: "March", Year: "2024", Source: src}

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), req)
		done <- err
	}()
	<-renderer.started

	_, err := g.Generate(context.Background(), req)
	assert.True(t, errors.Is(err, ErrGenerationInProgress))

	// Other periods are not blocked
	_, err = g.Generate(context.Background(), Request{Month: "April", Year: "2024", Source: src})
	assert.NoError(t, err)

	close(renderer.block)
	assert.NoError(t, <-done)

	// Once finished, the same file can be generated again
	_, err = g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: src, Force: true})
	assert.NoError(t, err)

	// The rejected run never reached the renderer
	assert.Equal(t, int32(3), renderer.renders.Load())
}

func TestGenerateRemoteSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	t.Run("StagedCopyRemovedOnSuccess", func(t *testing.T) {
		staging := t.TempDir()
		g := NewGenerator(
			WithRenderer(&textRenderer{}),
			WithOutputDir(t.TempDir()),
			WithAcquirer(source.New(source.WithStagingDir(staging))),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: server.URL + "/ledger.csv"})
		assert.NoError(t, err)
		assert.Equal(t, 0, len(listDir(t, staging)))
	})

	t.Run("StagedCopyKeptOnFailure", func(t *testing.T) {
		staging := t.TempDir()
		g := NewGenerator(
			WithRenderer(&textRenderer{err: errors.New("boom")}),
			WithOutputDir(t.TempDir()),
			WithAcquirer(source.New(source.WithStagingDir(staging))),
		)

		_, err := g.Generate(context.Background(), Request{Month: "March", Year: "2024", Source: server.URL + "/ledger.csv"})
		assert.Error(t, err)
		assert.Equal(t, 1, len(listDir(t, staging)))
	})
}

func TestGenerateNoRenderer(t *testing.T) {
	_, err := NewGenerator().Generate(context.Background(), Request{Month: "March", Year: "2024", Source: "ledger.csv"})
	assert.Error(t, err)
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Report_March_2024.pdf")

	assert.NoError(t, writeAtomic(path, []byte("first")))
	assert.NoError(t, writeAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, []string{"Report_March_2024.pdf"}, listDir(t, dir))
}

func TestWriteAtomicMissingDir(t *testing.T) {
	err := writeAtomic(filepath.Join(t.TempDir(), "missing", "report.pdf"), []byte("x"))
	assert.Error(t, err)
}
