package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
)

func newTestPipeline(t *testing.T) (*ingest.Ingestor, store.Store) {
	t.Helper()
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ch, err := chunker.NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	return ingest.NewIngestor(extract.NewExtractor(), ch, embedding.NewMockEmbedder(8), st), st
}

// waitFor polls until check returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, check func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return check()
}

func hasDocument(st store.Store, id string) func() bool {
	return func() bool {
		_, err := st.Get(context.Background(), id)
		return err == nil
	}
}

func TestWatcher_IngestsCreatedFile(t *testing.T) {
	ing, st := newTestPipeline(t)
	dir := t.TempDir()
	w := NewWatcher(ing, []string{dir}, []string{".txt"}, true, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("watched content"), 0644); err != nil {
		t.Fatal(err)
	}
	docID := ingest.FileDocID(path)
	if !waitFor(t, 3*time.Second, hasDocument(st, docID)) {
		t.Fatal("file was not ingested")
	}
	doc, err := st.Get(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "note.txt" {
		t.Errorf("filename %q", doc.Filename)
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	ing, st := newTestPipeline(t)
	dir := t.TempDir()
	w := NewWatcher(ing, []string{dir}, []string{".txt"}, true, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte("not text"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if _, err := st.Get(context.Background(), ingest.FileDocID(path)); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	ing, st := newTestPipeline(t)
	dir := t.TempDir()
	w := NewWatcher(ing, []string{dir}, []string{".txt"}, true, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("delete me"), 0644); err != nil {
		t.Fatal(err)
	}
	docID := ingest.FileDocID(path)
	if !waitFor(t, 3*time.Second, hasDocument(st, docID)) {
		t.Fatal("file was not ingested")
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	gone := func() bool {
		_, err := st.Get(context.Background(), docID)
		return errors.Is(err, models.ErrNotFound)
	}
	if !waitFor(t, 3*time.Second, gone) {
		t.Fatal("document was not removed after file deletion")
	}
}

func TestWatcher_RewriteReplacesDocument(t *testing.T) {
	ing, st := newTestPipeline(t)
	dir := t.TempDir()
	w := NewWatcher(ing, []string{dir}, []string{".txt"}, true, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("first version"), 0644); err != nil {
		t.Fatal(err)
	}
	docID := ingest.FileDocID(path)
	if !waitFor(t, 3*time.Second, hasDocument(st, docID)) {
		t.Fatal("file was not ingested")
	}
	if err := os.WriteFile(path, []byte("second version"), 0644); err != nil {
		t.Fatal(err)
	}
	replaced := func() bool {
		doc, err := st.Get(context.Background(), docID)
		return err == nil && len(doc.Segments) == 1 && doc.Segments[0].Text == "second version"
	}
	if !waitFor(t, 3*time.Second, replaced) {
		t.Fatal("rewrite did not replace the document")
	}
	docs, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("expected one document after rewrite, got %d", len(docs))
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	ing, st := newTestPipeline(t)
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	pre1 := filepath.Join(dir, "a.txt")
	pre2 := filepath.Join(sub, "b.txt")
	for _, p := range []string{pre1, pre2} {
		if err := os.WriteFile(p, []byte("existing content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	w := NewWatcher(ing, []string{dir}, []string{".txt"}, true, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles(ctx)

	for _, p := range []string{pre1, pre2} {
		if _, err := st.Get(context.Background(), ingest.FileDocID(p)); err != nil {
			t.Errorf("existing file %s not ingested: %v", p, err)
		}
	}
}

func TestWatcher_MatchExtension(t *testing.T) {
	w := NewWatcher(nil, nil, []string{".txt", "md"}, false)
	cases := map[string]bool{
		"/a/b.txt":  true,
		"/a/b.TXT":  true,
		"/a/b.md":   true,
		"/a/b.pdf":  false,
		"/a/noext":  false,
		"/a/b.txtx": false,
	}
	for path, want := range cases {
		if got := w.matchExtension(path); got != want {
			t.Errorf("matchExtension(%q) = %v, want %v", path, got, want)
		}
	}
	all := NewWatcher(nil, nil, nil, false)
	if !all.matchExtension("/a/anything.bin") {
		t.Error("empty extension list should match everything")
	}
}
