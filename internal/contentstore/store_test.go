package contentstore

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gitlab.com/cgs-2025.net/internal/static/errs"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestStoreIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := makeTarGz(t, map[string]string{"statement.md": "hello"})

	ref1, err := store.Store(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := store.Store(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != ref2 {
		t.Fatalf("same bytes produced different refs: %s vs %s", ref1, ref2)
	}

	entries, err := os.ReadDir(filepath.Join(store.root, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stored blob, found %d", len(entries))
	}
}

func TestStoreDistinctContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ref1, err := store.Store(ctx, []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := store.Store(ctx, []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if ref1 == ref2 {
		t.Fatal("different bytes produced the same ref")
	}
}

func TestResolveExtractsAndCaches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := makeTarGz(t, map[string]string{
		"statement.md":    "# Problem",
		"tests/input.txt": "42",
	})

	ref, err := store.Store(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	var extractions int32
	inner := store.extract
	store.extract = func(blobPath, destPath string) error {
		atomic.AddInt32(&extractions, 1)
		return inner(blobPath, destPath)
	}

	path1, err := store.Resolve(ctx, ref, "problems")
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(path1, "tests", "input.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "42" {
		t.Fatalf("unexpected extracted content: %q", content)
	}

	path2, err := store.Resolve(ctx, ref, "problems")
	if err != nil {
		t.Fatal(err)
	}
	if path1 != path2 {
		t.Fatalf("cache hit returned a different path: %s vs %s", path1, path2)
	}
	if n := atomic.LoadInt32(&extractions); n != 1 {
		t.Fatalf("expected 1 extraction, got %d", n)
	}
}

func TestResolveConcurrentSingleExtraction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := makeTarGz(t, map[string]string{"statement.md": "concurrent"})

	ref, err := store.Store(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	var extractions int32
	inner := store.extract
	store.extract = func(blobPath, destPath string) error {
		atomic.AddInt32(&extractions, 1)
		return inner(blobPath, destPath)
	}

	const callers = 8
	paths := make([]string, callers)
	errsCh := make(chan error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			path, err := store.Resolve(ctx, ref, "problems")
			if err != nil {
				errsCh <- err
				return
			}
			paths[i] = path
		}(i)
	}
	wg.Wait()
	close(errsCh)
	for err := range errsCh {
		t.Fatal(err)
	}

	if n := atomic.LoadInt32(&extractions); n != 1 {
		t.Fatalf("expected at most one extraction, got %d", n)
	}
	for _, path := range paths {
		if path != paths[0] {
			t.Fatalf("callers received different paths: %s vs %s", paths[0], path)
		}
		content, err := os.ReadFile(filepath.Join(path, "statement.md"))
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "concurrent" {
			t.Fatalf("unexpected content: %q", content)
		}
	}
}

func TestResolveUnknownRef(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Resolve(context.Background(), "deadbeef", "problems")
	if !errors.Is(err, errs.BlobNotFound) {
		t.Fatalf("expected BlobNotFound, got %v", err)
	}
}

func TestResolveCorruptArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ref, err := store.Store(ctx, []byte("this is not a tar.gz archive"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.Resolve(ctx, ref, "problems")
	if !errors.Is(err, errs.CorruptArchive) {
		t.Fatalf("expected CorruptArchive, got %v", err)
	}

	// a failed extraction must not poison the cache
	entries, err := os.ReadDir(filepath.Join(store.root, "cache", "problems"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed extraction left %d cache entries", len(entries))
	}
}
