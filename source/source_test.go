package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

const ledgerCSV = "DATE,TYPE,CATEGORY,AMOUNT\n05/03/2024,Income,Salary,50000.00\n"

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAcquireLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.csv")
	assert.NoError(t, os.WriteFile(path, []byte(ledgerCSV), 0o644))

	staged, err := New().Acquire(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, path, staged.Path)
	assert.False(t, staged.Transient)

	// Local ledgers are never removed
	assert.NoError(t, staged.Release(true))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAcquireLocalMissing(t *testing.T) {
	_, err := New().Acquire(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))

	var unavailable *SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAcquireLocalDirectory(t *testing.T) {
	_, err := New().Acquire(context.Background(), t.TempDir())

	var unavailable *SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestAcquireRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ledgerCSV))
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := New(WithStagingDir(dir), WithHTTPClient(server.Client()))

	staged, err := fetcher.Acquire(context.Background(), server.URL+"/exports/ledger.csv")
	assert.NoError(t, err)
	assert.True(t, staged.Transient)
	assert.Equal(t, ".csv", filepath.Ext(staged.Path))
	assert.Equal(t, dir, filepath.Dir(staged.Path))

	data, err := os.ReadFile(staged.Path)
	assert.NoError(t, err)
	assert.Equal(t, ledgerCSV, string(data))

	t.Run("KeptAfterFailure", func(t *testing.T) {
		assert.NoError(t, staged.Release(false))
		_, err := os.Stat(staged.Path)
		assert.NoError(t, err)
	})

	t.Run("RemovedAfterSuccess", func(t *testing.T) {
		assert.NoError(t, staged.Release(true))
		assert.Equal(t, 0, len(stagedFiles(t, dir)))
	})
}

func TestAcquireRemoteStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	_, err := New(WithStagingDir(dir)).Acquire(context.Background(), server.URL+"/ledger.csv")

	var unavailable *SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, 0, len(stagedFiles(t, dir)))
}

func TestAcquireRemotePartialDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more than is sent so the body read fails midway
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(ledgerCSV))
	}))
	defer server.Close()

	dir := t.TempDir()
	_, err := New(WithStagingDir(dir)).Acquire(context.Background(), server.URL+"/ledger.csv")

	var unavailable *SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 0, len(stagedFiles(t, dir)))
}

func TestAcquireRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	dir := t.TempDir()
	fetcher := New(WithStagingDir(dir), WithTimeout(50*time.Millisecond))

	_, err := fetcher.Acquire(context.Background(), server.URL+"/ledger.csv")

	var unavailable *SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 0, len(stagedFiles(t, dir)))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/ledger.csv"))
	assert.True(t, IsRemote("http://localhost:8080/x"))
	assert.False(t, IsRemote("ledger.csv"))
	assert.False(t, IsRemote("/tmp/ledger.csv"))
	assert.False(t, IsRemote("ftp://example.com/ledger.csv"))
	assert.False(t, IsRemote("C:\\ledgers\\ledger.csv"))
}

func TestRemoteExt(t *testing.T) {
	assert.Equal(t, ".xlsx", remoteExt("https://example.com/a/Book.XLSX?dl=1"))
	assert.Equal(t, ".csv", remoteExt("https://example.com/ledger.csv"))
	assert.Equal(t, "", remoteExt("https://example.com/export"))
}
