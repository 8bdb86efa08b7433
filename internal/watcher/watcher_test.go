package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arlobridge/invertex/internal/audit"
	"github.com/arlobridge/invertex/internal/index"
	"github.com/arlobridge/invertex/internal/workerpool"
)

func TestInitialScanIngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "fox")
	writeFile(t, dir, "b.txt", "dog")

	idx := index.New()
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c, err := New(dir, 0, idx, pool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.initialScan()
	pool.Shutdown()

	if idx.DocCount() != 2 {
		t.Fatalf("got DocCount %d, want 2", idx.DocCount())
	}
}

func TestCreateEventIngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c, err := New(dir, 0, idx, pool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	writeFile(t, dir, "new.txt", "hello world")

	if !waitForDocCount(idx, 1, time.Second) {
		t.Fatalf("expected file to be ingested, got DocCount %d", idx.DocCount())
	}
}

func TestDuplicateCreateEventsCoalesce(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c, err := New(dir, 0, idx, pool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "dup.txt")
	writeFileAt(t, path, "fox")
	c.submitIngest(path)
	c.submitIngest(path)
	pool.Shutdown()

	if idx.DocCount() != 1 {
		t.Fatalf("got DocCount %d, want 1", idx.DocCount())
	}
}

// TestDuplicateIngestWritesAuditRecordWithoutPanicking exercises the
// OutcomeSkippedDuplicate audit path with a real (nil-db, safely no-op)
// audit.Log wired in, matching how it's wired in cmd/invertex/main.go.
func TestDuplicateIngestWritesAuditRecordWithoutPanicking(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c, err := New(dir, 0, idx, pool, audit.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "dup.txt")
	writeFileAt(t, path, "fox")
	c.submitIngest(path)
	c.submitIngest(path)
	pool.Shutdown()

	if idx.DocCount() != 1 {
		t.Fatalf("got DocCount %d, want 1", idx.DocCount())
	}
}

// TestReadErrorWritesAuditRecordWithoutPanicking exercises the
// OutcomeReadError audit path: the file passes the initial stat check
// (it's a regular file, under the size cap) but is unreadable by the time
// the pool picks up the read.
func TestReadErrorWritesAuditRecordWithoutPanicking(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c, err := New(dir, 0, idx, pool, audit.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "unreadable.txt")
	writeFileAt(t, path, "fox")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(path, 0o644)

	c.submitIngest(path)
	pool.Shutdown()

	if idx.DocCount() != 0 {
		t.Fatalf("got DocCount %d, want 0", idx.DocCount())
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	writeFileAt(t, filepath.Join(dir, name), content)
}

func writeFileAt(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func waitForDocCount(idx *index.Index, want int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if idx.DocCount() >= want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return idx.DocCount() >= want
}
