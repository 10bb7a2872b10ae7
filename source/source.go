// Package source resolves a ledger reference into a local file the loader can
// read.
//
// A reference is either a local path or an http(s) URL. Local paths are used
// in place. Remote ledgers are downloaded into a staging directory first; the
// staged copy is transient and belongs to the generation run that fetched it.
//
// Example usage:
//
//	fetcher := source.New(source.WithStagingDir(dir), source.WithTimeout(30*time.Second))
//	staged, err := fetcher.Acquire(ctx, "https://example.com/ledger.csv")
//	if err != nil {
//	    return err
//	}
//	// ... load staged.Path ...
//	staged.Release(true)
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/robinvdvleuten/ledgerreport/telemetry"
)

// Acquirer turns a ledger reference into a staged local file.
type Acquirer interface {
	Acquire(ctx context.Context, ref string) (*Staged, error)
}

// Staged is a ledger file ready for loading.
type Staged struct {
	// Ref is the reference the file was acquired from.
	Ref string

	// Path is the local file to load.
	Path string

	// Transient is set for downloaded copies that should not outlive the run.
	Transient bool
}

// Release ends the run's use of the staged file. A transient copy is removed
// only when success is true; after a failure it stays on disk so the run can
// be retried without fetching again. Releasing a local file is a no-op.
func (s *Staged) Release(success bool) error {
	if s == nil || !s.Transient || !success {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged ledger: %w", err)
	}
	s.Transient = false
	return nil
}

// SourceUnavailableError is returned when a reference cannot be resolved or
// fetched. No staged file remains behind it.
type SourceUnavailableError struct {
	Ref string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Ref, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Fetcher acquires local and remote ledgers.
type Fetcher struct {
	// Client performs remote fetches. Its timeout bounds every download.
	Client *http.Client

	// StagingDir receives downloaded ledgers.
	StagingDir string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for remote ledgers.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.Client = client
	}
}

// WithStagingDir sets where downloads are staged.
func WithStagingDir(dir string) Option {
	return func(f *Fetcher) {
		f.StagingDir = dir
	}
}

// WithTimeout bounds each download.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.Client = &http.Client{Timeout: timeout}
	}
}

// New creates a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		Client:     &http.Client{Timeout: 30 * time.Second},
		StagingDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Acquire resolves ref. Local files are checked for existence and returned as
// they are; remote files are downloaded into the staging directory.
func (f *Fetcher) Acquire(ctx context.Context, ref string) (*Staged, error) {
	if IsRemote(ref) {
		return f.fetch(ctx, ref)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}
	if info.IsDir() {
		return nil, &SourceUnavailableError{Ref: ref, Err: fmt.Errorf("is a directory")}
	}

	return &Staged{Ref: ref, Path: ref}, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref string) (staged *Staged, err error) {
	timer := telemetry.StartTimer(ctx, "source.fetch")
	defer timer.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceUnavailableError{Ref: ref, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.MkdirAll(f.StagingDir, 0o755); err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}

	file, err := os.CreateTemp(f.StagingDir, "ledger-*"+remoteExt(ref))
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}

	// A partial download is never left behind
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(file.Name())
		}
	}()

	if _, err = io.Copy(file, resp.Body); err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}
	if err = file.Close(); err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}

	return &Staged{Ref: ref, Path: file.Name(), Transient: true}, nil
}

// remoteExt keeps the URL's extension so the loader can detect the format.
func remoteExt(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".csv", ".txt", ".xlsx", ".xls":
		return ext
	}
	return ""
}
